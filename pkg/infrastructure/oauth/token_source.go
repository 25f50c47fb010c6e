package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/bootstrap"
	"github.com/kreahealth/rehab-server/pkg/types"
)

const googleTokenURL = "https://oauth2.googleapis.com/token"

// expiryBuffer is how long before the stored expiry we treat the access
// token as already expired and refresh proactively.
const expiryBuffer = 5 * time.Minute

const refreshTimeout = 10 * time.Second

// TokenSource returns a valid token.
// It is safe for concurrent use by multiple goroutines.
type TokenSource interface {
	Token(context.Context) (*oauth2.Token, error)
	ForceRefresh(context.Context) (*oauth2.Token, error)
}

// FirestoreTokenSource reads the patient's Google Fit credential from
// Firestore and refreshes it when necessary.
type FirestoreTokenSource struct {
	svc       *bootstrap.Service
	patientID string
	mu        sync.Mutex
}

func NewFirestoreTokenSource(svc *bootstrap.Service, patientID string) *FirestoreTokenSource {
	return &FirestoreTokenSource{
		svc:       svc,
		patientID: patientID,
	}
}

func (s *FirestoreTokenSource) credential(ctx context.Context) (*types.GoogleCredential, error) {
	patient, err := s.svc.DB.GetPatient(ctx, s.patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	cred := patient.Credential
	if cred == nil || cred.RefreshToken == "" {
		return nil, shared.ErrCredentialNotFound
	}
	if cred.Status == types.CredentialStatusInvalid {
		return nil, shared.ErrCredentialInvalid
	}
	return cred, nil
}

// Token returns a token, refreshing it if necessary.
func (s *FirestoreTokenSource) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.credential(ctx)
	if err != nil {
		return nil, err
	}

	// Proactive refresh: a token expiring inside the buffer counts as
	// already expired so long fetch loops never hit the deadline mid-run.
	if cred.ExpiresAt.IsZero() || time.Now().Add(expiryBuffer).After(cred.ExpiresAt) {
		return s.refreshToken(ctx, cred.RefreshToken)
	}

	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.ExpiresAt,
	}, nil
}

// ForceRefresh forcibly refreshes the token regardless of expiry.
func (s *FirestoreTokenSource) ForceRefresh(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.credential(ctx)
	if err != nil {
		return nil, err
	}

	return s.refreshToken(ctx, cred.RefreshToken)
}

// refreshToken performs the HTTP exchange to get a new token & updates Firestore
func (s *FirestoreTokenSource) refreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	cfg := s.svc.Config
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, fmt.Errorf("google oauth client credentials not configured")
	}

	data := url.Values{}
	data.Set("client_id", cfg.GoogleClientID)
	data.Set("client_secret", cfg.GoogleClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", googleTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: refreshTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Google reports a dead refresh token as invalid_grant on 400/401.
		// That is permanent: mark the credential so every later attempt
		// short-circuits until the patient reconnects.
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			var oauthErr struct {
				Error            string `json:"error"`
				ErrorDescription string `json:"error_description"`
			}
			if decodeErr := json.NewDecoder(resp.Body).Decode(&oauthErr); decodeErr == nil {
				if oauthErr.Error == "invalid_grant" || oauthErr.Error == "invalid_token" {
					reason := oauthErr.ErrorDescription
					if reason == "" {
						reason = "Refresh token expired or revoked"
					}
					s.markInvalid(ctx, reason)
					return nil, fmt.Errorf("refresh rejected (%s): %w", oauthErr.Error, shared.ErrReauthRequired)
				}
			}
		}
		return nil, fmt.Errorf("refresh failed with status: %d", resp.StatusCode)
	}

	// Parse Response
	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}

	newExpiry := time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)

	credUpdate := map[string]interface{}{
		"access_token": result.AccessToken,
		"expires_at":   newExpiry,
		"status":       types.CredentialStatusValid,
		"last_used_at": time.Now(),
	}
	// Google does not rotate refresh tokens on refresh; only persist a
	// new one when it actually returned one.
	if result.RefreshToken != "" {
		credUpdate["refresh_token"] = result.RefreshToken
	}

	err = s.svc.DB.UpdatePatient(ctx, s.patientID, map[string]interface{}{
		"google_credential": credUpdate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist new tokens: %w", err)
	}

	newRefreshToken := result.RefreshToken
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}

	return &oauth2.Token{
		AccessToken:  result.AccessToken,
		RefreshToken: newRefreshToken,
		Expiry:       newExpiry,
	}, nil
}

func (s *FirestoreTokenSource) markInvalid(ctx context.Context, reason string) {
	err := s.svc.DB.UpdatePatient(ctx, s.patientID, map[string]interface{}{
		"google_credential": map[string]interface{}{
			"status":              types.CredentialStatusInvalid,
			"invalidated_at":      time.Now(),
			"invalidation_reason": reason,
		},
	})
	if err != nil {
		slog.Warn("Failed to mark credential invalid", "patient_id", s.patientID, "error", err)
	}
}
