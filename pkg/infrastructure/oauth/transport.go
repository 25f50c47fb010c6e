package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kreahealth/rehab-server/pkg/bootstrap"
)

const usageStampTimeout = 5 * time.Second

// Transport authorizes outgoing requests with the patient's Google
// token. A 401 means the access token died between the proactive
// check and the request, so the transport force-refreshes once and
// replays.
type Transport struct {
	Source TokenSource

	// Base performs the actual request. http.DefaultTransport when nil.
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	token, err := t.Source.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: cannot get token: %w", err)
	}

	authed := req.Clone(ctx)
	authed.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := base.RoundTrip(authed)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Drain so the connection can be reused for the replay.
	resp.Body.Close()
	slog.Warn("Fitness API rejected access token, forcing refresh", "url", req.URL.Path)

	token, err = t.Source.ForceRefresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: force refresh failed: %w", err)
	}

	// The first round trip consumed the body; rewind it for the replay.
	if authed.GetBody != nil {
		body, err := authed.GetBody()
		if err != nil {
			return nil, fmt.Errorf("oauth: rewinding request body: %w", err)
		}
		authed.Body = body
	}
	authed.Header.Set("Authorization", "Bearer "+token.AccessToken)
	return base.RoundTrip(authed)
}

// UsageTrackingTransport stamps the patient's credential last_used_at
// after each successful request, so the lock staleness sweep and the
// reconnect flow can tell a live credential from a dormant one.
type UsageTrackingTransport struct {
	Base      http.RoundTripper
	Service   *bootstrap.Service
	PatientID string
}

func (t *UsageTrackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// Stamp asynchronously; a fetch must never wait on bookkeeping.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), usageStampTimeout)
		defer cancel()

		updateErr := t.Service.DB.UpdatePatient(ctx, t.PatientID, map[string]interface{}{
			"google_credential": map[string]interface{}{
				"last_used_at": time.Now(),
			},
		})
		if updateErr != nil {
			slog.Warn("Failed to stamp credential usage", "patient_id", t.PatientID, "error", updateErr)
		}
	}()

	return resp, nil
}

// NewClientWithUsageTracking builds the HTTP client the telemetry
// fetcher uses: usage stamping over bearer auth over the network.
func NewClientWithUsageTracking(source TokenSource, service *bootstrap.Service, patientID string) *http.Client {
	return &http.Client{
		Transport: &UsageTrackingTransport{
			Base:      &Transport{Source: source},
			Service:   service,
			PatientID: patientID,
		},
	}
}
