package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/testing/mocks"
	"github.com/kreahealth/rehab-server/pkg/types"
)

var apiClock = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func newTestServer(db *mocks.MockDatabase) *Server {
	return &Server{
		DB:     db,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  func() time.Time { return apiClock },
	}
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decoded))
	return rec, decoded
}

func dataOf(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response data missing")
	return data
}

func testAPIPatient() *types.PatientRecord {
	return &types.PatientRecord{
		ID:          "pat-1",
		Name:        "Asha",
		Age:         58,
		RegimeWeeks: 12,
	}
}

func patientDB() *mocks.MockDatabase {
	return &mocks.MockDatabase{
		GetPatientFunc: func(ctx context.Context, patientID string) (*types.PatientRecord, error) {
			if patientID != "pat-1" {
				return nil, shared.ErrNotFound
			}
			return testAPIPatient(), nil
		},
	}
}

func TestStartSession(t *testing.T) {
	db := patientDB()
	db.CountWeekSessionsFunc = func(ctx context.Context, patientID string, week int) (int, error) {
		return 2, nil
	}
	var created *types.SessionRecord
	db.CreateSessionFunc = func(ctx context.Context, session *types.SessionRecord) error {
		created = session
		return nil
	}

	rec, body := doRequest(t, newTestServer(db), http.MethodPost, "/api/startSession",
		map[string]interface{}{"patientId": "pat-1", "weekNumber": 1})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Session started successfully", body["message"])

	require.NotNil(t, created)
	assert.Equal(t, types.SessionStatusActive, created.Status)
	assert.Equal(t, 3, created.SessionAttemptNumber)
	assert.Equal(t, apiClock, created.StartedAt)
	assert.Equal(t, apiClock.Add(20*time.Minute), created.EndedAt)
	assert.Equal(t, apiClock.Add(22*time.Minute), created.ProcessingStartsAt)
	require.NotNil(t, created.Zones)
	// Age 58, week 1: max 162, target 70% = 113.
	assert.Equal(t, 113, created.Zones.TargetHR)
	assert.Equal(t, 20, created.Zones.SessionDuration)

	data := dataOf(t, body)
	assert.Equal(t, created.ID, data["sessionId"])
	assert.Equal(t, float64(3), data["sessionNumber"])

	sessionData, ok := data["sessionData"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2026-03-10", sessionData["sessionDate"])
	assert.Equal(t, "10:00:00", sessionData["sessionStartTime"])
	assert.Equal(t, "20 mins", sessionData["sessionDuration"])

	instructions, ok := data["instructions"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "5 minutes - Keep HR between 98-108 bpm", instructions["warmup"])
	assert.Equal(t, "10 minutes - Keep HR between 108-118 bpm", instructions["exercise"])
	assert.Equal(t, "5 minutes - Keep HR between 98-108 bpm", instructions["cooldown"])
}

func TestStartSessionPatientNotFound(t *testing.T) {
	rec, body := doRequest(t, newTestServer(patientDB()), http.MethodPost, "/api/startSession",
		map[string]interface{}{"patientId": "pat-missing", "weekNumber": 1})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Patient not found", body["message"])
}

func TestStartSessionInvalidWeek(t *testing.T) {
	rec, body := doRequest(t, newTestServer(patientDB()), http.MethodPost, "/api/startSession",
		map[string]interface{}{"patientId": "pat-1", "weekNumber": 13})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid week number. Patient is on 12-week regime.", body["message"])
}

func TestStartSessionAlreadyInProgress(t *testing.T) {
	db := patientDB()
	db.LatestSessionFunc = func(ctx context.Context, patientID string) (*types.SessionRecord, error) {
		return &types.SessionRecord{ID: "sess-open", Status: types.SessionStatusActive}, nil
	}

	rec, body := doRequest(t, newTestServer(db), http.MethodPost, "/api/startSession",
		map[string]interface{}{"patientId": "pat-1", "weekNumber": 1})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Patient already has a session in progress", body["message"])
}

func TestStartSessionTooSoonAfterLast(t *testing.T) {
	db := patientDB()
	db.LatestSessionFunc = func(ctx context.Context, patientID string) (*types.SessionRecord, error) {
		return &types.SessionRecord{
			ID:        "sess-prev",
			Status:    types.SessionStatusCompleted,
			CreatedAt: apiClock.Add(-4 * time.Hour),
		}, nil
	}

	rec, body := doRequest(t, newTestServer(db), http.MethodPost, "/api/startSession",
		map[string]interface{}{"patientId": "pat-1", "weekNumber": 1})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please wait 14 more hours before starting next session", body["message"])
	assert.NotEmpty(t, body["nextSessionAvailable"])
}

func TestEndSession(t *testing.T) {
	db := patientDB()
	db.GetSessionFunc = func(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
		return &types.SessionRecord{
			ID:        "sess-1",
			PatientID: "pat-1",
			Status:    types.SessionStatusActive,
			StartedAt: apiClock.Add(-25 * time.Minute),
		}, nil
	}
	var updates map[string]interface{}
	db.UpdateSessionFunc = func(ctx context.Context, sessionID string, u map[string]interface{}) error {
		updates = u
		return nil
	}

	rec, body := doRequest(t, newTestServer(db), http.MethodPost, "/api/endSession",
		map[string]interface{}{"sessionId": "sess-1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Session ended. Processing heart rate data...", body["message"])

	require.NotNil(t, updates)
	assert.Equal(t, types.SessionStatusInProgress, updates["status"])
	assert.Equal(t, 25, updates["actual_duration"])
	assert.Equal(t, apiClock.Add(2*time.Minute), updates["processing_starts_at"])

	data := dataOf(t, body)
	assert.Equal(t, "sess-1", data["sessionId"])
	assert.Equal(t, "2-5 minutes", data["estimatedTime"])
	assert.Equal(t, "/api/getSessionStatus/sess-1", data["checkStatusUrl"])
}

func TestEndSessionAlreadyEnded(t *testing.T) {
	db := patientDB()
	db.GetSessionFunc = func(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
		return &types.SessionRecord{ID: "sess-1", Status: types.SessionStatusCompleted}, nil
	}

	rec, body := doRequest(t, newTestServer(db), http.MethodPost, "/api/endSession",
		map[string]interface{}{"sessionId": "sess-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Session already ended or not started", body["message"])
}

func TestEndSessionNotFound(t *testing.T) {
	rec, body := doRequest(t, newTestServer(patientDB()), http.MethodPost, "/api/endSession",
		map[string]interface{}{"sessionId": "sess-missing"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Session not found", body["message"])
}

func TestSessionStatusProcessing(t *testing.T) {
	nextAt := apiClock.Add(10 * time.Minute)
	db := &mocks.MockDatabase{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
			return &types.SessionRecord{
				ID:            "sess-1",
				Status:        types.SessionStatusProcessing,
				AttemptCount:  3,
				NextAttemptAt: &nextAt,
			}, nil
		},
	}

	rec, body := doRequest(t, newTestServer(db), http.MethodGet, "/api/getSessionStatus/sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, "Still processing heart rate data...", body["message"])

	data := dataOf(t, body)
	assert.Equal(t, float64(3), data["attemptCount"])
	assert.NotEmpty(t, data["nextAttemptAt"])
}

func TestSessionStatusFailed(t *testing.T) {
	db := &mocks.MockDatabase{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
			return &types.SessionRecord{
				ID:            "sess-1",
				Status:        types.SessionStatusDataUnavailable,
				AttemptCount:  11,
				FailureReason: "All retry attempts exhausted without sufficient data",
			}, nil
		},
	}

	rec, body := doRequest(t, newTestServer(db), http.MethodGet, "/api/getSessionStatus/sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "All retry attempts exhausted without sufficient data", body["message"])
	assert.Equal(t, float64(11), dataOf(t, body)["attemptCount"])
}

func TestSessionStatusCompleted(t *testing.T) {
	db := &mocks.MockDatabase{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
			return &types.SessionRecord{
				ID:                   "sess-1",
				PatientID:            "pat-1",
				WeekNumber:           2,
				SessionAttemptNumber: 1,
				Status:               types.SessionStatusCompleted,
				StartedAt:            apiClock.Add(-2 * time.Hour),
				Zones:                &types.ZoneSet{TargetHR: 115, SessionDuration: 21},
				SessionScore:         92,
				RiskLevel:            types.RiskLevelLow,
				Summary:              "Low risk level detected. Session compliance: 92%.",
				MaxHR:                138,
				MinHR:                72,
				AvgHR:                114,
			}, nil
		},
		GetWeeklyScoreFunc: func(ctx context.Context, patientID string, week int) (*types.WeeklyScoreRecord, error) {
			return &types.WeeklyScoreRecord{WeekNumber: 2, WeeklyScore: 88.5, CumulativeScore: 90.2}, nil
		},
	}

	rec, body := doRequest(t, newTestServer(db), http.MethodGet, "/api/getSessionStatus/sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Session completed successfully", body["message"])

	data := dataOf(t, body)
	assert.Equal(t, "pat-1", data["patientId"])
	assert.Equal(t, float64(92), data["sessionRiskScore"])
	assert.Equal(t, 88.5, data["cumulativeRiskScore"])
	assert.Equal(t, types.RiskLevelLow, data["riskLevel"])

	sessionData, ok := data["sessionData"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2026-03-10", sessionData["sessionDate"])
	assert.Equal(t, "08:00:00", sessionData["sessionStartTime"])
	assert.Equal(t, float64(21), sessionData["sessionDuration"])
	assert.Equal(t, float64(138), sessionData["MaxHR"])
	assert.Equal(t, float64(114), sessionData["AvgHR"])
}

func TestSessionStatusUnknown(t *testing.T) {
	db := &mocks.MockDatabase{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
			return &types.SessionRecord{ID: "sess-1", Status: types.SessionStatusActive}, nil
		},
	}

	rec, body := doRequest(t, newTestServer(db), http.MethodGet, "/api/getSessionStatus/sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unknown", body["status"])
	assert.Equal(t, "Session status unclear", body["message"])
	assert.Equal(t, types.SessionStatusActive, body["sessionStatus"])
}

func encodeUploadFit(t *testing.T, start time.Time, heartRates []int) []byte {
	t.Helper()

	fit := &proto.FIT{}
	fileId := mesgdef.NewFileId(nil).
		SetType(typedef.FileActivity).
		SetManufacturer(typedef.ManufacturerDevelopment).
		SetProduct(1).
		SetTimeCreated(start)
	fit.Messages = append(fit.Messages, fileId.ToMesg(nil))

	for i, hr := range heartRates {
		record := mesgdef.NewRecord(nil).
			SetTimestamp(start.Add(time.Duration(i) * time.Minute)).
			SetHeartRate(uint8(hr))
		fit.Messages = append(fit.Messages, record.ToMesg(nil))
	}

	var buf bytes.Buffer
	require.NoError(t, encoder.New(&buf).Encode(fit))
	return buf.Bytes()
}

func TestFitUpload(t *testing.T) {
	db := patientDB()
	var inserted []*types.HeartRateReadingRecord
	db.InsertReadingsFunc = func(ctx context.Context, readings []*types.HeartRateReadingRecord) (int, error) {
		inserted = readings
		return len(readings), nil
	}

	fitData := encodeUploadFit(t, apiClock.Add(-time.Hour), []int{88, 104, 111})

	rec, body := doRequest(t, newTestServer(db), http.MethodPost, "/api/patients/pat-1/fit-upload", fitData)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "FIT file processed", body["message"])

	data := dataOf(t, body)
	assert.Equal(t, float64(3), data["decoded"])
	assert.Equal(t, float64(3), data["inserted"])

	require.Len(t, inserted, 3)
	assert.Equal(t, "pat-1", inserted[0].PatientID)
	assert.Equal(t, 88, inserted[0].HeartRate)
}

func TestFitUploadInvalidFile(t *testing.T) {
	rec, body := doRequest(t, newTestServer(patientDB()), http.MethodPost,
		"/api/patients/pat-1/fit-upload", []byte("not a fit file"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["message"], "Invalid FIT file")
}

func TestFitUploadPatientNotFound(t *testing.T) {
	rec, body := doRequest(t, newTestServer(patientDB()), http.MethodPost,
		"/api/patients/pat-missing/fit-upload", []byte("irrelevant"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Patient not found", body["message"])
}
