package shared

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/kreahealth/rehab-server/pkg/types"
)

// Database abstracts the persistence layer so the orchestrator, workers
// and API handlers can be tested against mocks.
type Database interface {
	// Patients
	GetPatient(ctx context.Context, patientID string) (*types.PatientRecord, error)
	UpdatePatient(ctx context.Context, patientID string, updates map[string]interface{}) error
	ListConnectedPatients(ctx context.Context) ([]*types.PatientRecord, error)

	// Credential locking. AcquireCredentialLock returns false without
	// error when the lock is held and not yet stale.
	AcquireCredentialLock(ctx context.Context, patientID, holder string, staleAfter time.Duration) (bool, error)
	ReleaseCredentialLock(ctx context.Context, patientID string) error
	ReleaseStaleCredentialLocks(ctx context.Context, staleAfter time.Duration) (int, error)

	// Sessions
	CreateSession(ctx context.Context, session *types.SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error)
	UpdateSession(ctx context.Context, sessionID string, updates map[string]interface{}) error
	ListDueSessions(ctx context.Context, now time.Time) ([]*types.SessionRecord, error)
	ListReadySessions(ctx context.Context, now time.Time) ([]*types.SessionRecord, error)
	ListActiveSessions(ctx context.Context) ([]*types.SessionRecord, error)
	LatestSession(ctx context.Context, patientID string) (*types.SessionRecord, error)
	CountWeekSessions(ctx context.Context, patientID string, week int) (int, error)
	CountCompletedSessions(ctx context.Context, patientID string) (int, error)
	ListCompletedSessions(ctx context.Context, patientID string) ([]*types.SessionRecord, error)
	ListWeekCompletedSessions(ctx context.Context, patientID string, week int) ([]*types.SessionRecord, error)
	HasProcessingSessions(ctx context.Context, patientID string) (bool, error)
	SetBaselineOnSessions(ctx context.Context, patientID string, baseline float64) error

	// Heart rate readings
	InsertReadings(ctx context.Context, readings []*types.HeartRateReadingRecord) (int, error)
	ListReadingsBetween(ctx context.Context, patientID string, from, to time.Time) ([]*types.HeartRateReadingRecord, error)
	ListReadings(ctx context.Context, patientID string) ([]*types.HeartRateReadingRecord, error)
	LatestReadingTime(ctx context.Context, patientID string) (time.Time, error)

	// Baseline thresholds
	CreateBaselineThreshold(ctx context.Context, threshold *types.BaselineThresholdRecord) error
	LatestBaselineThreshold(ctx context.Context, patientID string) (*types.BaselineThresholdRecord, error)

	// Weekly scores
	GetWeeklyScore(ctx context.Context, patientID string, week int) (*types.WeeklyScoreRecord, error)
	UpsertWeeklyScore(ctx context.Context, score *types.WeeklyScoreRecord) error
}

// Publisher emits CloudEvents for downstream consumers.
type Publisher interface {
	PublishCloudEvent(ctx context.Context, topicName string, event cloudevents.Event) error
}

// BlobStore archives raw fetch payloads for later inspection.
type BlobStore interface {
	Write(ctx context.Context, bucketName, objectName string, data []byte) error
	Read(ctx context.Context, bucketName, objectName string) ([]byte, error)
}

// NotificationService delivers push notifications to a patient's
// registered devices.
type NotificationService interface {
	SendPushNotification(ctx context.Context, userID, title, body string, tokens []string, data map[string]string) error
}
