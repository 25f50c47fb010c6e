package mocks

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/types"
)

// --- Mock Database ---
type MockDatabase struct {
	GetPatientFunc            func(ctx context.Context, patientID string) (*types.PatientRecord, error)
	UpdatePatientFunc         func(ctx context.Context, patientID string, updates map[string]interface{}) error
	ListConnectedPatientsFunc func(ctx context.Context) ([]*types.PatientRecord, error)

	AcquireCredentialLockFunc       func(ctx context.Context, patientID, holder string, staleAfter time.Duration) (bool, error)
	ReleaseCredentialLockFunc       func(ctx context.Context, patientID string) error
	ReleaseStaleCredentialLocksFunc func(ctx context.Context, staleAfter time.Duration) (int, error)

	CreateSessionFunc             func(ctx context.Context, session *types.SessionRecord) error
	GetSessionFunc                func(ctx context.Context, sessionID string) (*types.SessionRecord, error)
	UpdateSessionFunc             func(ctx context.Context, sessionID string, updates map[string]interface{}) error
	ListDueSessionsFunc           func(ctx context.Context, now time.Time) ([]*types.SessionRecord, error)
	ListReadySessionsFunc         func(ctx context.Context, now time.Time) ([]*types.SessionRecord, error)
	ListActiveSessionsFunc        func(ctx context.Context) ([]*types.SessionRecord, error)
	LatestSessionFunc             func(ctx context.Context, patientID string) (*types.SessionRecord, error)
	CountWeekSessionsFunc         func(ctx context.Context, patientID string, week int) (int, error)
	CountCompletedSessionsFunc    func(ctx context.Context, patientID string) (int, error)
	ListCompletedSessionsFunc     func(ctx context.Context, patientID string) ([]*types.SessionRecord, error)
	ListWeekCompletedSessionsFunc func(ctx context.Context, patientID string, week int) ([]*types.SessionRecord, error)
	HasProcessingSessionsFunc     func(ctx context.Context, patientID string) (bool, error)
	SetBaselineOnSessionsFunc     func(ctx context.Context, patientID string, baseline float64) error

	InsertReadingsFunc      func(ctx context.Context, readings []*types.HeartRateReadingRecord) (int, error)
	ListReadingsBetweenFunc func(ctx context.Context, patientID string, from, to time.Time) ([]*types.HeartRateReadingRecord, error)
	ListReadingsFunc        func(ctx context.Context, patientID string) ([]*types.HeartRateReadingRecord, error)
	LatestReadingTimeFunc   func(ctx context.Context, patientID string) (time.Time, error)

	CreateBaselineThresholdFunc func(ctx context.Context, threshold *types.BaselineThresholdRecord) error
	LatestBaselineThresholdFunc func(ctx context.Context, patientID string) (*types.BaselineThresholdRecord, error)

	GetWeeklyScoreFunc    func(ctx context.Context, patientID string, week int) (*types.WeeklyScoreRecord, error)
	UpsertWeeklyScoreFunc func(ctx context.Context, score *types.WeeklyScoreRecord) error
}

func (m *MockDatabase) GetPatient(ctx context.Context, patientID string) (*types.PatientRecord, error) {
	if m.GetPatientFunc != nil {
		return m.GetPatientFunc(ctx, patientID)
	}
	return nil, shared.ErrNotFound
}

func (m *MockDatabase) UpdatePatient(ctx context.Context, patientID string, updates map[string]interface{}) error {
	if m.UpdatePatientFunc != nil {
		return m.UpdatePatientFunc(ctx, patientID, updates)
	}
	return nil
}

func (m *MockDatabase) ListConnectedPatients(ctx context.Context) ([]*types.PatientRecord, error) {
	if m.ListConnectedPatientsFunc != nil {
		return m.ListConnectedPatientsFunc(ctx)
	}
	return nil, nil
}

func (m *MockDatabase) AcquireCredentialLock(ctx context.Context, patientID, holder string, staleAfter time.Duration) (bool, error) {
	if m.AcquireCredentialLockFunc != nil {
		return m.AcquireCredentialLockFunc(ctx, patientID, holder, staleAfter)
	}
	return true, nil
}

func (m *MockDatabase) ReleaseCredentialLock(ctx context.Context, patientID string) error {
	if m.ReleaseCredentialLockFunc != nil {
		return m.ReleaseCredentialLockFunc(ctx, patientID)
	}
	return nil
}

func (m *MockDatabase) ReleaseStaleCredentialLocks(ctx context.Context, staleAfter time.Duration) (int, error) {
	if m.ReleaseStaleCredentialLocksFunc != nil {
		return m.ReleaseStaleCredentialLocksFunc(ctx, staleAfter)
	}
	return 0, nil
}

func (m *MockDatabase) CreateSession(ctx context.Context, session *types.SessionRecord) error {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, session)
	}
	return nil
}

func (m *MockDatabase) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return nil, shared.ErrNotFound
}

func (m *MockDatabase) UpdateSession(ctx context.Context, sessionID string, updates map[string]interface{}) error {
	if m.UpdateSessionFunc != nil {
		return m.UpdateSessionFunc(ctx, sessionID, updates)
	}
	return nil
}

func (m *MockDatabase) ListDueSessions(ctx context.Context, now time.Time) ([]*types.SessionRecord, error) {
	if m.ListDueSessionsFunc != nil {
		return m.ListDueSessionsFunc(ctx, now)
	}
	return nil, nil
}

func (m *MockDatabase) ListReadySessions(ctx context.Context, now time.Time) ([]*types.SessionRecord, error) {
	if m.ListReadySessionsFunc != nil {
		return m.ListReadySessionsFunc(ctx, now)
	}
	return nil, nil
}

func (m *MockDatabase) ListActiveSessions(ctx context.Context) ([]*types.SessionRecord, error) {
	if m.ListActiveSessionsFunc != nil {
		return m.ListActiveSessionsFunc(ctx)
	}
	return nil, nil
}

func (m *MockDatabase) LatestSession(ctx context.Context, patientID string) (*types.SessionRecord, error) {
	if m.LatestSessionFunc != nil {
		return m.LatestSessionFunc(ctx, patientID)
	}
	return nil, nil
}

func (m *MockDatabase) CountWeekSessions(ctx context.Context, patientID string, week int) (int, error) {
	if m.CountWeekSessionsFunc != nil {
		return m.CountWeekSessionsFunc(ctx, patientID, week)
	}
	return 0, nil
}

func (m *MockDatabase) CountCompletedSessions(ctx context.Context, patientID string) (int, error) {
	if m.CountCompletedSessionsFunc != nil {
		return m.CountCompletedSessionsFunc(ctx, patientID)
	}
	return 0, nil
}

func (m *MockDatabase) ListCompletedSessions(ctx context.Context, patientID string) ([]*types.SessionRecord, error) {
	if m.ListCompletedSessionsFunc != nil {
		return m.ListCompletedSessionsFunc(ctx, patientID)
	}
	return nil, nil
}

func (m *MockDatabase) ListWeekCompletedSessions(ctx context.Context, patientID string, week int) ([]*types.SessionRecord, error) {
	if m.ListWeekCompletedSessionsFunc != nil {
		return m.ListWeekCompletedSessionsFunc(ctx, patientID, week)
	}
	return nil, nil
}

func (m *MockDatabase) HasProcessingSessions(ctx context.Context, patientID string) (bool, error) {
	if m.HasProcessingSessionsFunc != nil {
		return m.HasProcessingSessionsFunc(ctx, patientID)
	}
	return false, nil
}

func (m *MockDatabase) SetBaselineOnSessions(ctx context.Context, patientID string, baseline float64) error {
	if m.SetBaselineOnSessionsFunc != nil {
		return m.SetBaselineOnSessionsFunc(ctx, patientID, baseline)
	}
	return nil
}

func (m *MockDatabase) InsertReadings(ctx context.Context, readings []*types.HeartRateReadingRecord) (int, error) {
	if m.InsertReadingsFunc != nil {
		return m.InsertReadingsFunc(ctx, readings)
	}
	return len(readings), nil
}

func (m *MockDatabase) ListReadingsBetween(ctx context.Context, patientID string, from, to time.Time) ([]*types.HeartRateReadingRecord, error) {
	if m.ListReadingsBetweenFunc != nil {
		return m.ListReadingsBetweenFunc(ctx, patientID, from, to)
	}
	return nil, nil
}

func (m *MockDatabase) ListReadings(ctx context.Context, patientID string) ([]*types.HeartRateReadingRecord, error) {
	if m.ListReadingsFunc != nil {
		return m.ListReadingsFunc(ctx, patientID)
	}
	return nil, nil
}

func (m *MockDatabase) LatestReadingTime(ctx context.Context, patientID string) (time.Time, error) {
	if m.LatestReadingTimeFunc != nil {
		return m.LatestReadingTimeFunc(ctx, patientID)
	}
	return time.Time{}, nil
}

func (m *MockDatabase) CreateBaselineThreshold(ctx context.Context, threshold *types.BaselineThresholdRecord) error {
	if m.CreateBaselineThresholdFunc != nil {
		return m.CreateBaselineThresholdFunc(ctx, threshold)
	}
	return nil
}

func (m *MockDatabase) LatestBaselineThreshold(ctx context.Context, patientID string) (*types.BaselineThresholdRecord, error) {
	if m.LatestBaselineThresholdFunc != nil {
		return m.LatestBaselineThresholdFunc(ctx, patientID)
	}
	return nil, nil
}

func (m *MockDatabase) GetWeeklyScore(ctx context.Context, patientID string, week int) (*types.WeeklyScoreRecord, error) {
	if m.GetWeeklyScoreFunc != nil {
		return m.GetWeeklyScoreFunc(ctx, patientID, week)
	}
	return nil, nil
}

func (m *MockDatabase) UpsertWeeklyScore(ctx context.Context, score *types.WeeklyScoreRecord) error {
	if m.UpsertWeeklyScoreFunc != nil {
		return m.UpsertWeeklyScoreFunc(ctx, score)
	}
	return nil
}

// --- Mock Publisher ---
type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topicName string, event cloudevents.Event) error
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topicName string, event cloudevents.Event) error {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topicName, event)
	}
	return nil
}

// --- Mock Storage ---
type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucketName, objectName string, data []byte) error
	ReadFunc  func(ctx context.Context, bucketName, objectName string) ([]byte, error)
}

func (m *MockBlobStore) Write(ctx context.Context, bucketName, objectName string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucketName, objectName, data)
	}
	return nil
}

func (m *MockBlobStore) Read(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucketName, objectName)
	}
	return []byte("mock-data"), nil
}

// --- Mock Notifications ---
type MockNotificationService struct {
	SendPushNotificationFunc func(ctx context.Context, userID, title, body string, tokens []string, data map[string]string) error
}

func (m *MockNotificationService) SendPushNotification(ctx context.Context, userID, title, body string, tokens []string, data map[string]string) error {
	if m.SendPushNotificationFunc != nil {
		return m.SendPushNotificationFunc(ctx, userID, title, body, tokens, data)
	}
	return nil
}
