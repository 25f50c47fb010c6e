// Package workers runs the periodic loops that keep the session
// pipeline moving: the retry sweep, the auto-stop and cleanup passes,
// and the historical sync schedule.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/domain/schedule"
	"github.com/kreahealth/rehab-server/pkg/infrastructure/sentry"
	"github.com/kreahealth/rehab-server/pkg/lock"
	"github.com/kreahealth/rehab-server/pkg/types"
)

const (
	defaultRetryInterval    = 5 * time.Minute
	defaultAutoStopInterval = time.Minute
	defaultCleanupInterval  = 30 * time.Minute

	// abandonAfter is how long a session may sit active before the
	// cleanup pass writes it off.
	abandonAfter = 2 * time.Hour
)

// FailureReasonAbandoned is stored on sessions the cleanup pass
// writes off.
const FailureReasonAbandoned = "Session was started but never stopped (abandoned after 2 hours)"

// AttemptProcessor is the slice of the orchestrator the retry sweep
// drives.
type AttemptProcessor interface {
	InitializeReadySessions(ctx context.Context) ([]*types.SessionRecord, error)
	ProcessAttempt(ctx context.Context, sessionID string) error
}

// SyncJob is one run of the historical sync.
type SyncJob interface {
	Run(ctx context.Context) error
}

// Runner owns the background loops. Construct it, call Start once,
// and cancel the context to stop.
type Runner struct {
	DB           shared.Database
	Orchestrator AttemptProcessor
	Sync         SyncJob
	Locks        *lock.Manager
	Logger       *slog.Logger
	Clock        func() time.Time

	// Intervals default when zero.
	RetryInterval    time.Duration
	AutoStopInterval time.Duration
	CleanupInterval  time.Duration
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func or(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// Start launches all loops. Each interval loop fires once immediately
// so a restart never waits a full period; the sync loop waits for its
// next scheduled slot.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx, "retry", or(r.RetryInterval, defaultRetryInterval), r.RunRetrySweep)
	go r.loop(ctx, "auto-stop", or(r.AutoStopInterval, defaultAutoStopInterval), r.RunAutoStop)
	go r.loop(ctx, "cleanup", or(r.CleanupInterval, defaultCleanupInterval), r.RunCleanup)
	go r.syncLoop(ctx)
	r.Logger.Info("Background workers started")
}

func (r *Runner) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	r.guard(name, func() { fn(ctx) })

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.guard(name, func() { fn(ctx) })
		}
	}
}

// syncLoop fires the historical sync at its fixed hours of day rather
// than on an interval, so runs land at predictable times the fallback
// scheduling can target.
func (r *Runner) syncLoop(ctx context.Context) {
	for {
		next := schedule.NextHistoricalSyncTime(r.now())
		timer := time.NewTimer(next.Sub(r.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		r.guard("historical-sync", func() {
			if err := r.Sync.Run(ctx); err != nil {
				r.Logger.Error("Historical sync failed", "error", err)
			}
		})
	}
}

// guard isolates one worker pass: a panic is reported and swallowed so
// the loop survives.
func (r *Runner) guard(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", rec)
			}
			sentry.CaptureException(err, map[string]interface{}{"worker": name}, r.Logger)
			r.Logger.Error("Worker panic recovered", "worker", name, "error", err)
		}
	}()
	fn()
}

// RunRetrySweep promotes sessions whose processing window opened and
// processes every session whose next attempt is due. Attempts run
// concurrently; the per-patient credential lock keeps two attempts for
// the same patient from interleaving.
func (r *Runner) RunRetrySweep(ctx context.Context) {
	promoted, err := r.Orchestrator.InitializeReadySessions(ctx)
	if err != nil {
		r.Logger.Error("Ready session init failed", "error", err)
	}

	due, err := r.DB.ListDueSessions(ctx, r.now())
	if err != nil {
		r.Logger.Error("Due session list failed", "error", err)
		return
	}

	pending := make(map[string]bool, len(promoted)+len(due))
	var ids []string
	for _, session := range append(promoted, due...) {
		if pending[session.ID] {
			continue
		}
		pending[session.ID] = true
		ids = append(ids, session.ID)
	}
	if len(ids) == 0 {
		return
	}
	r.Logger.Info("Retry sweep", "sessions", len(ids))

	var wg sync.WaitGroup
	for _, sessionID := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.guard("retry", func() {
				if err := r.Orchestrator.ProcessAttempt(ctx, id); err != nil {
					r.Logger.Error("Attempt failed", "session_id", id, "error", err)
				}
			})
		}(sessionID)
	}
	wg.Wait()
}

// RunAutoStop transitions active sessions past their planned end time
// to in_progress so the retry sweep can pick them up. End time and
// duration were set at session start and stay untouched.
func (r *Runner) RunAutoStop(ctx context.Context) {
	sessions, err := r.DB.ListActiveSessions(ctx)
	if err != nil {
		r.Logger.Error("Active session list failed", "error", err)
		return
	}

	now := r.now()
	for _, session := range sessions {
		if session.EndedAt.IsZero() || now.Before(session.EndedAt) {
			continue
		}
		err := r.DB.UpdateSession(ctx, session.ID, map[string]interface{}{
			"status": types.SessionStatusInProgress,
		})
		if err != nil {
			r.Logger.Error("Auto-stop failed", "session_id", session.ID, "error", err)
			continue
		}
		r.Logger.Info("Session auto-stopped at planned end time",
			"session_id", session.ID, "patient_id", session.PatientID)
	}
}

// RunCleanup writes off sessions left active for hours and frees any
// credential locks whose holders died.
func (r *Runner) RunCleanup(ctx context.Context) {
	sessions, err := r.DB.ListActiveSessions(ctx)
	if err != nil {
		r.Logger.Error("Active session list failed", "error", err)
		return
	}

	cutoff := r.now().Add(-abandonAfter)
	for _, session := range sessions {
		if !session.CreatedAt.Before(cutoff) {
			continue
		}
		err := r.DB.UpdateSession(ctx, session.ID, map[string]interface{}{
			"status":         types.SessionStatusAbandoned,
			"failure_reason": FailureReasonAbandoned,
		})
		if err != nil {
			r.Logger.Error("Cleanup failed", "session_id", session.ID, "error", err)
			continue
		}
		r.Logger.Info("Session marked abandoned", "session_id", session.ID)
	}

	if _, err := r.Locks.SweepStale(ctx); err != nil {
		r.Logger.Error("Stale lock sweep failed", "error", err)
	}
}
