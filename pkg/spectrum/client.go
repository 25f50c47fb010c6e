// Package spectrum is the API client for the Spectrum care platform,
// the downstream consumer of session results and heart rate history.
package spectrum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	httputil "github.com/kreahealth/rehab-server/pkg/infrastructure/http"
)

const defaultBaseURL = "https://sandbox.spectrum-api.healthkon.com"

// Historical batches can run to thousands of points, so they get a
// longer deadline than the small session payloads.
const (
	sessionTimeout    = 10 * time.Second
	historicalTimeout = 15 * time.Second
)

// Spectrum expects historical timestamps in IST wall-clock time.
var istZone = time.FixedZone("IST", int(5.5*60*60))

// SessionData mirrors Spectrum's camelCase nested session object.
type SessionData struct {
	SessionDate      string  `json:"sessionDate"`
	SessionStartTime string  `json:"sessionStartTime"`
	SessionDuration  int     `json:"sessionDuration"`
	MaxHR            int     `json:"MaxHR"`
	MinHR            int     `json:"MinHR"`
	AvgHR            int     `json:"AvgHR"`
	SessionRiskLevel string  `json:"sessionRiskLevel"`
	DataCompleteness float64 `json:"dataCompleteness"`
}

// SessionZones mirrors Spectrum's camelCase nested zones object.
type SessionZones struct {
	TargetHR         int `json:"targetHR"`
	MaxPermissibleHR int `json:"maxPermissibleHR"`
	WarmupZoneMin    int `json:"warmupZoneMin"`
	WarmupZoneMax    int `json:"warmupZoneMax"`
	ExerciseZoneMin  int `json:"exerciseZoneMin"`
	ExerciseZoneMax  int `json:"exerciseZoneMax"`
	CooldownZoneMin  int `json:"cooldownZoneMin"`
	CooldownZoneMax  int `json:"cooldownZoneMax"`
	SessionDuration  int `json:"sessionDuration"`
}

// SessionPayload is the completed-session report. Top-level fields are
// snake_case, nested objects camelCase; that asymmetry is Spectrum's
// contract, not ours.
type SessionPayload struct {
	PatientID           string       `json:"patient_id"`
	SessionNumber       int          `json:"session_number"`
	WeekNumber          int          `json:"week_number"`
	SessionRiskScore    float64      `json:"session_risk_score"`
	CumulativeRiskScore float64      `json:"cumulative_risk_score"`
	RiskLevel           string       `json:"risk_level"`
	BaselineScore       float64      `json:"baseline_score"`
	Summary             string       `json:"summary"`
	SessionData         SessionData  `json:"session_data"`
	SessionZones        SessionZones `json:"session_zones"`
}

// HistoricalPoint is one entry of a historical heart rate batch.
type HistoricalPoint struct {
	HR        int    `json:"hr"`
	Timestamp string `json:"timestamp"`
}

// FormatTimestamp renders a point's time the way Spectrum parses it.
func FormatTimestamp(t time.Time) string {
	return t.In(istZone).Format("2006-01-02 15:04:05")
}

// Client talks to the Spectrum patient API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  logger,
	}
}

// SendSession reports a completed session.
func (c *Client) SendSession(ctx context.Context, payload *SessionPayload) error {
	path := fmt.Sprintf("/api/patients/cardiac-rehab-session/%s", payload.PatientID)
	if err := c.post(ctx, path, payload, sessionTimeout); err != nil {
		return fmt.Errorf("sending session report: %w", err)
	}
	c.logger.Info("Sent session report to Spectrum",
		"patient_id", payload.PatientID, "week", payload.WeekNumber)
	return nil
}

// NotifyTokenExpired tells Spectrum the patient must reconnect Google
// Fit before sessions can be processed again.
func (c *Client) NotifyTokenExpired(ctx context.Context, patientID, sessionID string) error {
	payload := map[string]interface{}{
		"patient_id":      patientID,
		"message":         "Google Fit access expired. Patient needs to reconnect.",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"session_id":      sessionID,
		"action_required": "reconnect_google_fit",
	}
	path := fmt.Sprintf("/api/patients/token-expired/%s", patientID)
	if err := c.post(ctx, path, payload, sessionTimeout); err != nil {
		return fmt.Errorf("notifying token expiry: %w", err)
	}
	return nil
}

// PushHistoricalHR uploads a batch of historical heart rate points.
func (c *Client) PushHistoricalHR(ctx context.Context, patientID string, points []HistoricalPoint) error {
	payload := map[string]interface{}{
		"patient_id": patientID,
		"data":       points,
	}
	path := fmt.Sprintf("/api/patients/rehab-historical-hr/%s", patientID)
	if err := c.post(ctx, path, payload, historicalTimeout); err != nil {
		return fmt.Errorf("pushing historical HR batch: %w", err)
	}
	c.logger.Info("Pushed historical HR to Spectrum",
		"patient_id", patientID, "points", len(points))
	return nil
}

// PushRestingHR uploads the patient's latest resting heart rate.
func (c *Client) PushRestingHR(ctx context.Context, patientID string, restingHR float64) error {
	payload := map[string]interface{}{
		"patient_id": patientID,
		"hr":         int(math.Round(restingHR)),
	}
	path := fmt.Sprintf("/api/patients/rehab-resting-hr/%s", patientID)
	if err := c.post(ctx, path, payload, sessionTimeout); err != nil {
		return fmt.Errorf("pushing resting HR: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, timeout time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.ResponseError(resp); err != nil {
		return fmt.Errorf("spectrum %s: %w", path, err)
	}
	return nil
}
