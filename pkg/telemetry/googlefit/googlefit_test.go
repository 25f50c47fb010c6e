package googlefit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"google.golang.org/api/googleapi"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/types"
)

type fakeFetcher struct {
	windows [][2]time.Time
	results [][]types.HeartRatePoint
	errs    []error
	calls   int
}

func (f *fakeFetcher) FetchWindow(ctx context.Context, start, end time.Time) ([]types.HeartRatePoint, error) {
	f.windows = append(f.windows, [2]time.Time{start, end})
	i := f.calls
	f.calls++
	var result []types.HeartRatePoint
	if i < len(f.results) {
		result = f.results[i]
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return result, err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func point(ts time.Time, hr int) types.HeartRatePoint {
	return types.HeartRatePoint{Timestamp: ts, Value: hr}
}

func TestFetchSessionRecent(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	start := now.Add(-30 * time.Minute)
	end := now.Add(-10 * time.Minute)

	f := &fakeFetcher{
		results: [][]types.HeartRatePoint{{
			point(start.Add(-time.Minute), 88), // buffered, outside session
			point(start, 90),
			point(start.Add(5*time.Minute), 110),
			point(end.Add(time.Minute), 95), // buffered, outside session
		}},
	}

	points, err := FetchSession(context.Background(), f, start, end, now, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.calls != 1 {
		t.Fatalf("calls = %d, want 1 for a recent session", f.calls)
	}
	wantStart := start.Add(-3 * time.Minute)
	wantEnd := end.Add(3 * time.Minute)
	if !f.windows[0][0].Equal(wantStart) || !f.windows[0][1].Equal(wantEnd) {
		t.Errorf("fetch window = %v..%v, want %v..%v", f.windows[0][0], f.windows[0][1], wantStart, wantEnd)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points after clipping, want 2", len(points))
	}
	if points[0].Value != 90 || points[1].Value != 110 {
		t.Errorf("clipped points = %v", points)
	}
}

func TestFetchSessionOldUsesProgressiveBuffers(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	start := now.Add(-3 * time.Hour)
	end := now.Add(-2 * time.Hour)

	inWindow := point(start.Add(10*time.Minute), 105)
	f := &fakeFetcher{
		results: [][]types.HeartRatePoint{
			{inWindow},
			{inWindow, point(start.Add(12*time.Minute), 108)}, // first point is a duplicate
			nil,
		},
	}

	points, err := FetchSession(context.Background(), f, start, end, now, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.calls != 3 {
		t.Fatalf("calls = %d, want 3 progressive cycles", f.calls)
	}

	wantBuffers := []time.Duration{10 * time.Minute, 20 * time.Minute, 30 * time.Minute}
	for i, b := range wantBuffers {
		if !f.windows[i][0].Equal(start.Add(-b)) || !f.windows[i][1].Equal(end.Add(b)) {
			t.Errorf("cycle %d window = %v..%v, want buffer %v", i, f.windows[i][0], f.windows[i][1], b)
		}
	}

	if len(points) != 2 {
		t.Fatalf("got %d points, want 2 after dedup", len(points))
	}
}

func TestFetchSessionOldToleratesFailedCycle(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	start := now.Add(-3 * time.Hour)
	end := now.Add(-2 * time.Hour)

	f := &fakeFetcher{
		results: [][]types.HeartRatePoint{
			nil,
			{point(start.Add(time.Minute), 100)},
			nil,
		},
		errs: []error{errors.New("transient"), nil, nil},
	}

	points, err := FetchSession(context.Background(), f, start, end, now, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}
}

func TestFetchSessionOldAllCyclesFail(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	start := now.Add(-3 * time.Hour)
	end := now.Add(-2 * time.Hour)

	boom := errors.New("token rejected")
	f := &fakeFetcher{errs: []error{boom, boom, boom}}

	_, err := FetchSession(context.Background(), f, start, end, now, discardLogger())
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

func TestWrapAPIError(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"unauthorized", 401, shared.ErrUnauthorized},
		{"forbidden", 403, shared.ErrUnauthorized},
		{"rate limited", 429, shared.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapAPIError(&googleapi.Error{Code: tt.code})
			if !errors.Is(err, tt.want) {
				t.Errorf("wrapAPIError(%d) = %v, want %v", tt.code, err, tt.want)
			}
		})
	}

	t.Run("other codes pass through", func(t *testing.T) {
		err := wrapAPIError(&googleapi.Error{Code: 500})
		if errors.Is(err, shared.ErrUnauthorized) || errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("unexpected sentinel mapping for 500: %v", err)
		}
	})
}
