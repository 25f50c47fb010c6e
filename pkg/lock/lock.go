// Package lock coordinates access to a patient's Google credential.
// Only one holder may use a credential at a time; a holder that dies
// without releasing is overtaken once its claim goes stale.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	shared "github.com/kreahealth/rehab-server/pkg"
)

// DefaultStaleAfter is how long a held lock survives without release
// before another holder may take it over.
const DefaultStaleAfter = 5 * time.Minute

// HistoricalSyncHolder identifies the background sync job as a lock
// holder.
const HistoricalSyncHolder = "historical_sync"

// SessionHolder names the lock holder for a session attempt.
func SessionHolder(sessionID string) string {
	return "session_" + sessionID
}

// Manager wraps the database's credential lock primitives with the
// staleness policy.
type Manager struct {
	DB         shared.Database
	StaleAfter time.Duration
	Logger     *slog.Logger
}

func NewManager(db shared.Database, logger *slog.Logger) *Manager {
	return &Manager{DB: db, StaleAfter: DefaultStaleAfter, Logger: logger}
}

// Acquire claims the patient's credential for holder. A live claim by
// another holder surfaces as shared.ErrLockBusy.
func (m *Manager) Acquire(ctx context.Context, patientID, holder string) error {
	acquired, err := m.DB.AcquireCredentialLock(ctx, patientID, holder, m.StaleAfter)
	if err != nil {
		return fmt.Errorf("acquiring credential lock for %s: %w", patientID, err)
	}
	if !acquired {
		m.Logger.Debug("Credential lock busy", "patient_id", patientID, "holder", holder)
		return fmt.Errorf("credential lock for %s: %w", patientID, shared.ErrLockBusy)
	}
	return nil
}

// Release frees the patient's credential. Safe to call when the lock
// is not held.
func (m *Manager) Release(ctx context.Context, patientID string) error {
	if err := m.DB.ReleaseCredentialLock(ctx, patientID); err != nil {
		return fmt.Errorf("releasing credential lock for %s: %w", patientID, err)
	}
	return nil
}

// SweepStale force-releases locks whose holders never cleaned up.
func (m *Manager) SweepStale(ctx context.Context) (int, error) {
	released, err := m.DB.ReleaseStaleCredentialLocks(ctx, m.StaleAfter)
	if err != nil {
		return 0, fmt.Errorf("sweeping stale credential locks: %w", err)
	}
	if released > 0 {
		m.Logger.Warn("Released stale credential locks", "count", released)
	}
	return released, nil
}
