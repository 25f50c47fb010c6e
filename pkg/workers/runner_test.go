package workers

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kreahealth/rehab-server/pkg/lock"
	"github.com/kreahealth/rehab-server/pkg/testing/mocks"
	"github.com/kreahealth/rehab-server/pkg/types"
)

var workerClock = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

type fakeProcessor struct {
	mu        sync.Mutex
	promoted  []*types.SessionRecord
	processed []string
	panicOn   string
}

func (f *fakeProcessor) InitializeReadySessions(ctx context.Context) ([]*types.SessionRecord, error) {
	return f.promoted, nil
}

func (f *fakeProcessor) ProcessAttempt(ctx context.Context, sessionID string) error {
	if sessionID == f.panicOn {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, sessionID)
	return nil
}

func newTestRunner(db *mocks.MockDatabase, processor *fakeProcessor) *Runner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Runner{
		DB:           db,
		Orchestrator: processor,
		Locks:        lock.NewManager(db, logger),
		Logger:       logger,
		Clock:        func() time.Time { return workerClock },
	}
}

func TestRunRetrySweepMergesPromotedAndDue(t *testing.T) {
	processor := &fakeProcessor{
		promoted: []*types.SessionRecord{{ID: "sess-1"}, {ID: "sess-2"}},
	}
	db := &mocks.MockDatabase{
		ListDueSessionsFunc: func(ctx context.Context, now time.Time) ([]*types.SessionRecord, error) {
			assert.Equal(t, workerClock, now)
			// sess-2 shows up in both lists and must run once.
			return []*types.SessionRecord{{ID: "sess-2"}, {ID: "sess-3"}}, nil
		},
	}

	r := newTestRunner(db, processor)
	r.RunRetrySweep(context.Background())

	sort.Strings(processor.processed)
	assert.Equal(t, []string{"sess-1", "sess-2", "sess-3"}, processor.processed)
}

func TestRunRetrySweepSurvivesPanic(t *testing.T) {
	processor := &fakeProcessor{panicOn: "sess-bad"}
	db := &mocks.MockDatabase{
		ListDueSessionsFunc: func(ctx context.Context, now time.Time) ([]*types.SessionRecord, error) {
			return []*types.SessionRecord{{ID: "sess-bad"}, {ID: "sess-ok"}}, nil
		},
	}

	r := newTestRunner(db, processor)
	require.NotPanics(t, func() { r.RunRetrySweep(context.Background()) })
	assert.Equal(t, []string{"sess-ok"}, processor.processed)
}

func TestRunAutoStop(t *testing.T) {
	updates := map[string]map[string]interface{}{}
	db := &mocks.MockDatabase{
		ListActiveSessionsFunc: func(ctx context.Context) ([]*types.SessionRecord, error) {
			return []*types.SessionRecord{
				{ID: "sess-done", EndedAt: workerClock.Add(-time.Minute)},
				{ID: "sess-running", EndedAt: workerClock.Add(10 * time.Minute)},
				{ID: "sess-no-end"},
			}, nil
		},
		UpdateSessionFunc: func(ctx context.Context, sessionID string, u map[string]interface{}) error {
			updates[sessionID] = u
			return nil
		},
	}

	r := newTestRunner(db, &fakeProcessor{})
	r.RunAutoStop(context.Background())

	require.Len(t, updates, 1)
	assert.Equal(t, map[string]interface{}{
		"status": types.SessionStatusInProgress,
	}, updates["sess-done"])
}

func TestRunCleanup(t *testing.T) {
	updates := map[string]map[string]interface{}{}
	swept := false
	db := &mocks.MockDatabase{
		ListActiveSessionsFunc: func(ctx context.Context) ([]*types.SessionRecord, error) {
			return []*types.SessionRecord{
				{ID: "sess-stale", CreatedAt: workerClock.Add(-3 * time.Hour)},
				{ID: "sess-fresh", CreatedAt: workerClock.Add(-time.Hour)},
			}, nil
		},
		UpdateSessionFunc: func(ctx context.Context, sessionID string, u map[string]interface{}) error {
			updates[sessionID] = u
			return nil
		},
		ReleaseStaleCredentialLocksFunc: func(ctx context.Context, staleAfter time.Duration) (int, error) {
			swept = true
			return 1, nil
		},
	}

	r := newTestRunner(db, &fakeProcessor{})
	r.RunCleanup(context.Background())

	require.Len(t, updates, 1)
	assert.Equal(t, types.SessionStatusAbandoned, updates["sess-stale"]["status"])
	assert.Equal(t, FailureReasonAbandoned, updates["sess-stale"]["failure_reason"])
	assert.True(t, swept)
}
