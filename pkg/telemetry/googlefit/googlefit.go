// Package googlefit fetches heart rate telemetry from the Google Fit
// aggregate API.
package googlefit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	fitness "google.golang.org/api/fitness/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/types"
)

const (
	heartRateDataType = "com.google.heart_rate.bpm"
	// One-minute buckets line up with the scoring pipeline's
	// per-minute resolution.
	bucketMillis = 60_000
)

// Sessions whose end is older than this get the progressive fetch
// treatment: Google Fit sync lag means a single narrow window often
// misses data that arrives later.
const oldSessionAge = time.Hour

var (
	recentBuffer       = 3 * time.Minute
	progressiveBuffers = []time.Duration{10 * time.Minute, 20 * time.Minute, 30 * time.Minute}
)

// Fetcher retrieves heart rate points for an absolute time window.
type Fetcher interface {
	FetchWindow(ctx context.Context, start, end time.Time) ([]types.HeartRatePoint, error)
}

// Client is the fitness API implementation of Fetcher, one per
// patient credential.
type Client struct {
	svc    *fitness.Service
	logger *slog.Logger
}

// NewClient builds a fitness client over httpClient, which is expected
// to carry the patient's OAuth transport (see oauth.NewClientWithUsageTracking).
func NewClient(ctx context.Context, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	svc, err := fitness.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating fitness service: %w", err)
	}
	return &Client{svc: svc, logger: logger}, nil
}

// FetchWindow aggregates heart rate into one-minute buckets across the
// window and flattens them into points.
func (c *Client) FetchWindow(ctx context.Context, start, end time.Time) ([]types.HeartRatePoint, error) {
	req := &fitness.AggregateRequest{
		AggregateBy:     []*fitness.AggregateBy{{DataTypeName: heartRateDataType}},
		BucketByTime:    &fitness.BucketByTime{DurationMillis: bucketMillis},
		StartTimeMillis: start.UnixMilli(),
		EndTimeMillis:   end.UnixMilli(),
	}

	resp, err := c.svc.Users.Dataset.Aggregate("me", req).Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError(err)
	}

	var points []types.HeartRatePoint
	for _, bucket := range resp.Bucket {
		if len(bucket.Dataset) == 0 {
			continue
		}
		for _, point := range bucket.Dataset[0].Point {
			if len(point.Value) == 0 || point.Value[0].FpVal == 0 {
				continue
			}
			points = append(points, types.HeartRatePoint{
				Timestamp: time.UnixMilli(point.StartTimeNanos / 1e6),
				Value:     int(math.Round(point.Value[0].FpVal)),
			})
		}
	}

	c.logger.Debug("Fetched heart rate points",
		"count", len(points),
		"window_start", start,
		"window_end", end,
	)
	return points, nil
}

func wrapAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return fmt.Errorf("fitness API rejected credential: %w", shared.ErrUnauthorized)
		case 429:
			return fmt.Errorf("fitness API rate limit: %w", shared.ErrRateLimited)
		}
	}
	return fmt.Errorf("fitness API request: %w", err)
}

// FetchSession pulls the points covering a session. Recent sessions
// get a single fetch with a small buffer; sessions that ended over an
// hour ago get three progressively wider fetches, since their data may
// have synced late and landed in odd places. Either way the result is
// clipped back to the session window.
func FetchSession(ctx context.Context, f Fetcher, sessionStart, sessionEnd, now time.Time, logger *slog.Logger) ([]types.HeartRatePoint, error) {
	if sessionEnd.Before(now.Add(-oldSessionAge)) {
		return fetchProgressive(ctx, f, sessionStart, sessionEnd, logger)
	}

	points, err := f.FetchWindow(ctx, sessionStart.Add(-recentBuffer), sessionEnd.Add(recentBuffer))
	if err != nil {
		return nil, err
	}
	return clipToWindow(points, sessionStart, sessionEnd), nil
}

func fetchProgressive(ctx context.Context, f Fetcher, sessionStart, sessionEnd time.Time, logger *slog.Logger) ([]types.HeartRatePoint, error) {
	var all []types.HeartRatePoint
	seen := make(map[int64]bool)
	var lastErr error

	for _, buffer := range progressiveBuffers {
		points, err := f.FetchWindow(ctx, sessionStart.Add(-buffer), sessionEnd.Add(buffer))
		if err != nil {
			logger.Warn("Progressive fetch cycle failed", "buffer", buffer, "error", err)
			lastErr = err
			continue
		}
		for _, p := range points {
			ts := p.Timestamp.UnixMilli()
			if seen[ts] {
				continue
			}
			seen[ts] = true
			all = append(all, p)
		}
	}

	if len(all) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return clipToWindow(all, sessionStart, sessionEnd), nil
}

func clipToWindow(points []types.HeartRatePoint, start, end time.Time) []types.HeartRatePoint {
	var clipped []types.HeartRatePoint
	for _, p := range points {
		if p.Timestamp.Before(start) || p.Timestamp.After(end) {
			continue
		}
		clipped = append(clipped, p)
	}
	return clipped
}
