// Package schedule owns the retry timetable a session walks through
// while the pipeline waits for wearable data to sync.
package schedule

import (
	"time"

	"github.com/kreahealth/rehab-server/pkg/types"
)

// MaxAttempts is the number of scheduled retries before the pipeline
// falls back to the historical sync path.
const MaxAttempts = 11

// HistoricalFallbackAttempt is the attempt number reserved for the
// post-sync fallback pass.
const HistoricalFallbackAttempt = 12

// GracePeriod lets the worker pick up an attempt slightly before its
// scheduled time so a tick landing just short of the deadline does not
// push the attempt a full interval out.
const GracePeriod = time.Minute

// attemptDelays maps attempt number to its offset from the base time.
// Attempts 2-6 poll fast; later attempts back off for slow device syncs.
var attemptDelays = map[int]time.Duration{
	1:  0,
	2:  5 * time.Minute,
	3:  5 * time.Minute,
	4:  5 * time.Minute,
	5:  5 * time.Minute,
	6:  5 * time.Minute,
	7:  15 * time.Minute,
	8:  30 * time.Minute,
	9:  time.Hour,
	10: 3 * time.Hour,
	11: 6 * time.Hour,
}

// NextAttemptTime returns when the given attempt should run, measured
// from base. Returns nil when the attempt number has no slot.
func NextAttemptTime(base time.Time, attempt int) *time.Time {
	delay, ok := attemptDelays[attempt]
	if !ok {
		return nil
	}
	at := base.Add(delay)
	return &at
}

// ShouldAttemptNow reports whether a scheduled attempt is due, allowing
// the grace period.
func ShouldAttemptNow(nextAttemptAt *time.Time, now time.Time) bool {
	if nextAttemptAt == nil {
		return false
	}
	return !now.Before(nextAttemptAt.Add(-GracePeriod))
}

// Generate builds the full pending schedule for a session, with every
// attempt offset from the session start.
func Generate(sessionStart time.Time) []types.RetryAttempt {
	attempts := make([]types.RetryAttempt, 0, MaxAttempts)
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		attempts = append(attempts, types.RetryAttempt{
			Attempt:      attempt,
			ScheduledFor: NextAttemptTime(sessionStart, attempt),
			Status:       types.AttemptStatusPending,
		})
	}
	return attempts
}

// Outcome records how an attempt went.
type Outcome struct {
	Status       string
	Result       string
	DataPoints   int
	ErrorMessage string
}

// MarkAttempt returns a copy of the schedule with the given attempt
// stamped with its outcome and execution time.
func MarkAttempt(attempts []types.RetryAttempt, attempt int, outcome Outcome) []types.RetryAttempt {
	updated := make([]types.RetryAttempt, len(attempts))
	copy(updated, attempts)

	for i := range updated {
		if updated[i].Attempt != attempt {
			continue
		}
		now := time.Now()
		updated[i].ExecutedAt = &now
		updated[i].Status = outcome.Status
		updated[i].Result = outcome.Result
		updated[i].DataPoints = outcome.DataPoints
		updated[i].ErrorMessage = outcome.ErrorMessage
		break
	}
	return updated
}

// NextPending returns the first attempt still waiting to run, or nil
// when the schedule is exhausted.
func NextPending(attempts []types.RetryAttempt) *types.RetryAttempt {
	for i := range attempts {
		if attempts[i].Status == types.AttemptStatusPending {
			return &attempts[i]
		}
	}
	return nil
}

// Completeness returns actual/expected as a percentage.
func Completeness(actualDataPoints, expectedDataPoints int) float64 {
	if expectedDataPoints == 0 {
		return 0
	}
	return float64(actualDataPoints) / float64(expectedDataPoints) * 100
}

// AcceptanceThreshold returns the minimum completeness percentage for
// an attempt. Early attempts demand more; by the final attempts any
// scoreable amount of data beats falling back.
func AcceptanceThreshold(attempt int) float64 {
	switch {
	case attempt >= 1 && attempt <= 2:
		return 70
	case attempt >= 3 && attempt <= 4:
		return 60
	case attempt >= 5 && attempt <= 6:
		return 50
	default:
		return 40
	}
}

// AcceptPartialData reports whether the completeness percentage clears
// the attempt's threshold.
func AcceptPartialData(attempt int, completenessPercentage float64) bool {
	return completenessPercentage >= AcceptanceThreshold(attempt)
}

// syncHours are the hours of day the historical sync job fires.
var syncHours = []int{0, 6, 12, 18}

// NextHistoricalSyncTime returns the next historical sync slot strictly
// after now.
func NextHistoricalSyncTime(now time.Time) time.Time {
	for _, h := range syncHours {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), h, 0, 0, 0, now.Location())
		if candidate.After(now) {
			return candidate
		}
	}
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}
