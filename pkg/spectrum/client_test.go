package spectrum

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatTimestamp(t *testing.T) {
	// 10:00 UTC is 15:30 IST.
	ts := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-10 15:30:00", FormatTimestamp(ts))
}

func TestSendSession(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	payload := &SessionPayload{
		PatientID:        "patient-1",
		SessionNumber:    4,
		WeekNumber:       2,
		SessionRiskScore: 85,
		RiskLevel:        "Low",
		SessionData: SessionData{
			SessionDuration:  21,
			MaxHR:            130,
			DataCompleteness: 0.9,
		},
		SessionZones: SessionZones{TargetHR: 114},
	}

	require.NoError(t, c.SendSession(context.Background(), payload))

	assert.Equal(t, "/api/patients/cardiac-rehab-session/patient-1", gotPath)
	assert.Equal(t, "patient-1", gotBody["patient_id"])
	assert.Equal(t, float64(2), gotBody["week_number"])

	sessionData, ok := gotBody["session_data"].(map[string]interface{})
	require.True(t, ok, "session_data must be a nested object")
	assert.Equal(t, float64(130), sessionData["MaxHR"])
	assert.Equal(t, float64(21), sessionData["sessionDuration"])

	zones, ok := gotBody["session_zones"].(map[string]interface{})
	require.True(t, ok, "session_zones must be a nested object")
	assert.Equal(t, float64(114), zones["targetHR"])
}

func TestNotifyTokenExpired(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	require.NoError(t, c.NotifyTokenExpired(context.Background(), "patient-1", "session-9"))

	assert.Equal(t, "reconnect_google_fit", gotBody["action_required"])
	assert.Equal(t, "session-9", gotBody["session_id"])
	assert.Contains(t, gotBody["message"], "reconnect")
}

func TestPushHistoricalHR(t *testing.T) {
	var gotBody struct {
		PatientID string            `json:"patient_id"`
		Data      []HistoricalPoint `json:"data"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	points := []HistoricalPoint{
		{HR: 72, Timestamp: "2026-03-10 08:00:00"},
		{HR: 75, Timestamp: "2026-03-10 08:01:00"},
	}
	require.NoError(t, c.PushHistoricalHR(context.Background(), "patient-1", points))

	assert.Equal(t, "patient-1", gotBody.PatientID)
	assert.Equal(t, points, gotBody.Data)
}

func TestPushRestingHRRoundsToInteger(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	require.NoError(t, c.PushRestingHR(context.Background(), "patient-1", 63.5))

	assert.Equal(t, float64(64), gotBody["hr"])
}

func TestErrorResponsesSurfaceBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","week_number"],"msg":"field required"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	err := c.SendSession(context.Background(), &SessionPayload{PatientID: "patient-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "week_number")
}
