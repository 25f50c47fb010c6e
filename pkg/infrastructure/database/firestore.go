package database

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	shared "github.com/kreahealth/rehab-server/pkg"
	storage "github.com/kreahealth/rehab-server/pkg/storage/firestore"
	"github.com/kreahealth/rehab-server/pkg/types"
)

// FirestoreAdapter provides database operations using Firestore
// It wraps our typed storage client
type FirestoreAdapter struct {
	Client  *firestore.Client
	storage *storage.Client // internal typed wrapper
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{
		Client:  client,
		storage: storage.NewClient(client),
	}
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// --- Patients ---

func (a *FirestoreAdapter) GetPatient(ctx context.Context, patientID string) (*types.PatientRecord, error) {
	patient, err := a.storage.Patients().Doc(patientID).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return patient, nil
}

func (a *FirestoreAdapter) UpdatePatient(ctx context.Context, patientID string, updates map[string]interface{}) error {
	return a.storage.Patients().Doc(patientID).Update(ctx, updates)
}

func (a *FirestoreAdapter) ListConnectedPatients(ctx context.Context) ([]*types.PatientRecord, error) {
	return a.storage.Patients().Query().
		Where("google_credential.status", "==", types.CredentialStatusValid).
		GetAll(ctx)
}

// --- Credential locking ---

// claimBlocks reports whether an existing claim on the credential
// still blocks a new holder. A claim older than staleAfter belongs to
// a crashed worker and is taken over.
func claimBlocks(cred *types.GoogleCredential, now time.Time, staleAfter time.Duration) bool {
	return cred.InUse && now.Sub(cred.LockedAt) <= staleAfter
}

// AcquireCredentialLock takes the patient's credential lock inside a
// transaction. A lock held longer than staleAfter is treated as
// abandoned by a crashed worker and taken over.
func (a *FirestoreAdapter) AcquireCredentialLock(ctx context.Context, patientID, holder string, staleAfter time.Duration) (bool, error) {
	ref := a.Client.Collection(shared.CollectionPatients).Doc(patientID)
	acquired := false

	err := a.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		patient := storage.FirestoreToPatient(snap.Data())
		if patient.Credential == nil {
			return shared.ErrCredentialNotFound
		}

		now := time.Now()
		if claimBlocks(patient.Credential, now, staleAfter) {
			acquired = false
			return nil
		}

		acquired = true
		return tx.Set(ref, map[string]interface{}{
			"google_credential": map[string]interface{}{
				"in_use":    true,
				"locked_by": holder,
				"locked_at": now,
			},
		}, firestore.MergeAll)
	})
	if err != nil {
		if notFound(err) {
			return false, shared.ErrNotFound
		}
		return false, err
	}
	return acquired, nil
}

func (a *FirestoreAdapter) ReleaseCredentialLock(ctx context.Context, patientID string) error {
	return a.storage.Patients().Doc(patientID).Update(ctx, map[string]interface{}{
		"google_credential": map[string]interface{}{
			"in_use":       false,
			"locked_by":    "",
			"locked_at":    nil,
			"last_used_at": time.Now(),
		},
	})
}

func (a *FirestoreAdapter) ReleaseStaleCredentialLocks(ctx context.Context, staleAfter time.Duration) (int, error) {
	locked, err := a.storage.Patients().Query().
		Where("google_credential.in_use", "==", true).
		GetAll(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-staleAfter)
	released := 0
	for _, patient := range locked {
		if patient.Credential == nil || !patient.Credential.LockedAt.Before(cutoff) {
			continue
		}
		if err := a.ReleaseCredentialLock(ctx, patient.ID); err != nil {
			return released, fmt.Errorf("releasing stale lock for %s: %w", patient.ID, err)
		}
		released++
	}
	return released, nil
}

// --- Sessions ---

func (a *FirestoreAdapter) CreateSession(ctx context.Context, session *types.SessionRecord) error {
	doc := a.storage.Sessions().NewDoc()
	if session.ID != "" {
		doc = a.storage.Sessions().Doc(session.ID)
	}
	session.ID = doc.ID()
	return doc.Set(ctx, session)
}

func (a *FirestoreAdapter) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	session, err := a.storage.Sessions().Doc(sessionID).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

func (a *FirestoreAdapter) UpdateSession(ctx context.Context, sessionID string, updates map[string]interface{}) error {
	normalized := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if schedule, ok := v.([]types.RetryAttempt); ok {
			entries := make([]interface{}, len(schedule))
			for i := range schedule {
				entries[i] = storage.AttemptToFirestore(&schedule[i])
			}
			normalized[k] = entries
			continue
		}
		normalized[k] = v
	}
	return a.storage.Sessions().Doc(sessionID).Update(ctx, normalized)
}

func (a *FirestoreAdapter) ListDueSessions(ctx context.Context, now time.Time) ([]*types.SessionRecord, error) {
	return a.storage.Sessions().Query().
		Where("status", "in", []string{types.SessionStatusProcessing, types.SessionStatusPendingSync}).
		Where("next_attempt_at", "<=", now).
		OrderBy("next_attempt_at", firestore.Asc).
		GetAll(ctx)
}

func (a *FirestoreAdapter) ListReadySessions(ctx context.Context, now time.Time) ([]*types.SessionRecord, error) {
	return a.storage.Sessions().Query().
		Where("status", "in", []string{types.SessionStatusInProgress, types.SessionStatusActive}).
		Where("processing_starts_at", "<=", now).
		GetAll(ctx)
}

func (a *FirestoreAdapter) ListActiveSessions(ctx context.Context) ([]*types.SessionRecord, error) {
	return a.storage.Sessions().Query().
		Where("status", "==", types.SessionStatusActive).
		GetAll(ctx)
}

func (a *FirestoreAdapter) LatestSession(ctx context.Context, patientID string) (*types.SessionRecord, error) {
	return a.storage.Sessions().Query().
		Where("patient_id", "==", patientID).
		OrderBy("created_at", firestore.Desc).
		First(ctx)
}

func (a *FirestoreAdapter) CountWeekSessions(ctx context.Context, patientID string, week int) (int, error) {
	sessions, err := a.storage.Sessions().Query().
		Where("patient_id", "==", patientID).
		Where("week_number", "==", week).
		GetAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

func (a *FirestoreAdapter) CountCompletedSessions(ctx context.Context, patientID string) (int, error) {
	sessions, err := a.ListCompletedSessions(ctx, patientID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

func (a *FirestoreAdapter) ListCompletedSessions(ctx context.Context, patientID string) ([]*types.SessionRecord, error) {
	return a.storage.Sessions().Query().
		Where("patient_id", "==", patientID).
		Where("status", "==", types.SessionStatusCompleted).
		OrderBy("created_at", firestore.Desc).
		GetAll(ctx)
}

func (a *FirestoreAdapter) ListWeekCompletedSessions(ctx context.Context, patientID string, week int) ([]*types.SessionRecord, error) {
	return a.storage.Sessions().Query().
		Where("patient_id", "==", patientID).
		Where("week_number", "==", week).
		Where("status", "==", types.SessionStatusCompleted).
		OrderBy("session_score", firestore.Desc).
		GetAll(ctx)
}

func (a *FirestoreAdapter) HasProcessingSessions(ctx context.Context, patientID string) (bool, error) {
	session, err := a.storage.Sessions().Query().
		Where("patient_id", "==", patientID).
		Where("status", "in", []string{types.SessionStatusProcessing, types.SessionStatusPendingSync}).
		First(ctx)
	if err != nil {
		return false, err
	}
	return session != nil, nil
}

func (a *FirestoreAdapter) SetBaselineOnSessions(ctx context.Context, patientID string, baseline float64) error {
	sessions, err := a.storage.Sessions().Query().
		Where("patient_id", "==", patientID).
		GetAll(ctx)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		err := a.UpdateSession(ctx, session.ID, map[string]interface{}{
			"baseline_score": baseline,
		})
		if err != nil {
			return fmt.Errorf("setting baseline on session %s: %w", session.ID, err)
		}
	}
	return nil
}

// --- Heart rate readings ---

// InsertReadings stores readings with deterministic IDs so replays of
// the same window are deduplicated. Returns the number actually
// inserted.
func (a *FirestoreAdapter) InsertReadings(ctx context.Context, readings []*types.HeartRateReadingRecord) (int, error) {
	inserted := 0
	for _, reading := range readings {
		reading.ID = fmt.Sprintf("%s_%d", reading.PatientID, reading.RecordedAt.UnixMilli())
		err := a.storage.HeartRateReadings().Doc(reading.ID).Create(ctx, reading)
		if err != nil {
			if status.Code(err) == codes.AlreadyExists {
				continue
			}
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (a *FirestoreAdapter) ListReadingsBetween(ctx context.Context, patientID string, from, to time.Time) ([]*types.HeartRateReadingRecord, error) {
	return a.storage.HeartRateReadings().Query().
		Where("patient_id", "==", patientID).
		Where("recorded_at", ">=", from).
		Where("recorded_at", "<=", to).
		OrderBy("recorded_at", firestore.Asc).
		GetAll(ctx)
}

func (a *FirestoreAdapter) ListReadings(ctx context.Context, patientID string) ([]*types.HeartRateReadingRecord, error) {
	return a.storage.HeartRateReadings().Query().
		Where("patient_id", "==", patientID).
		OrderBy("recorded_at", firestore.Asc).
		GetAll(ctx)
}

func (a *FirestoreAdapter) LatestReadingTime(ctx context.Context, patientID string) (time.Time, error) {
	reading, err := a.storage.HeartRateReadings().Query().
		Where("patient_id", "==", patientID).
		OrderBy("recorded_at", firestore.Desc).
		First(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if reading == nil {
		return time.Time{}, nil
	}
	return reading.RecordedAt, nil
}

// --- Baseline thresholds ---

func (a *FirestoreAdapter) CreateBaselineThreshold(ctx context.Context, threshold *types.BaselineThresholdRecord) error {
	doc := a.storage.BaselineThresholds().NewDoc()
	threshold.ID = doc.ID()
	return doc.Set(ctx, threshold)
}

func (a *FirestoreAdapter) LatestBaselineThreshold(ctx context.Context, patientID string) (*types.BaselineThresholdRecord, error) {
	return a.storage.BaselineThresholds().Query().
		Where("patient_id", "==", patientID).
		OrderBy("calculated_at_session", firestore.Desc).
		First(ctx)
}

// --- Weekly scores ---

func weeklyScoreID(patientID string, week int) string {
	return fmt.Sprintf("%s_week%d", patientID, week)
}

func (a *FirestoreAdapter) GetWeeklyScore(ctx context.Context, patientID string, week int) (*types.WeeklyScoreRecord, error) {
	score, err := a.storage.WeeklyScores().Doc(weeklyScoreID(patientID, week)).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return score, nil
}

func (a *FirestoreAdapter) UpsertWeeklyScore(ctx context.Context, score *types.WeeklyScoreRecord) error {
	score.ID = weeklyScoreID(score.PatientID, score.WeekNumber)
	return a.storage.WeeklyScores().Doc(score.ID).Set(ctx, score)
}
