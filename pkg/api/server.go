// Package api exposes the session lifecycle over HTTP: start, stop,
// status polling, and the manual FIT upload path.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/domain/zones"
	"github.com/kreahealth/rehab-server/pkg/fitingest"
	"github.com/kreahealth/rehab-server/pkg/types"
)

// sessionGap is the minimum rest between consecutive sessions.
const sessionGap = 18 * time.Hour

// processingDelay is how long after the planned end the pipeline waits
// before the first fetch, giving Google Fit time to ingest the watch
// data.
const processingDelay = 2 * time.Minute

// maxFitUploadBytes bounds the accepted FIT file size.
const maxFitUploadBytes = 10 << 20

// Server holds the HTTP handlers' dependencies.
type Server struct {
	DB     shared.Database
	Logger *slog.Logger
	Clock  func() time.Time
}

func (s *Server) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/startSession", s.handleStartSession)
		r.Post("/endSession", s.handleEndSession)
		r.Get("/getSessionStatus/{sessionID}", s.handleSessionStatus)
		r.Post("/patients/{patientID}/fit-upload", s.handleFitUpload)
	})
	return r
}

type response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Error("Response encode failed", "error", err)
	}
}

func (s *Server) failure(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, response{Status: "failure", Message: message})
}

func (s *Server) internalError(w http.ResponseWriter, operation string, err error) {
	s.Logger.Error(operation, "error", err)
	s.failure(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startSessionRequest struct {
	PatientID  string `json:"patientId"`
	WeekNumber int    `json:"weekNumber"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.failure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	patient, err := s.DB.GetPatient(ctx, req.PatientID)
	if errors.Is(err, shared.ErrNotFound) {
		s.failure(w, http.StatusNotFound, "Patient not found")
		return
	}
	if err != nil {
		s.internalError(w, "Patient lookup failed", err)
		return
	}

	if req.WeekNumber < 1 || req.WeekNumber > patient.RegimeWeeks {
		s.failure(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid week number. Patient is on %d-week regime.", patient.RegimeWeeks))
		return
	}

	last, err := s.DB.LatestSession(ctx, req.PatientID)
	if err != nil {
		s.internalError(w, "Last session lookup failed", err)
		return
	}
	if last != nil {
		if last.Status == types.SessionStatusActive || last.Status == types.SessionStatusInProgress {
			s.failure(w, http.StatusConflict, "Patient already has a session in progress")
			return
		}
		nextAvailable := last.CreatedAt.Add(sessionGap)
		if now := s.now(); now.Before(nextAvailable) {
			remaining := int(math.Ceil(nextAvailable.Sub(now).Hours()))
			s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"status":               "failure",
				"message":              fmt.Sprintf("Please wait %d more hours before starting next session", remaining),
				"nextSessionAvailable": nextAvailable,
			})
			return
		}
	}

	weekSessions, err := s.DB.CountWeekSessions(ctx, req.PatientID, req.WeekNumber)
	if err != nil {
		s.internalError(w, "Week session count failed", err)
		return
	}

	z := zones.Calculate(zones.Profile{
		Age:                 patient.Age,
		OnBetaBlockers:      patient.OnBetaBlockers,
		LowEjectionFraction: patient.LowEjectionFraction,
	}, req.WeekNumber)

	now := s.now()
	plannedEnd := now.Add(time.Duration(z.SessionDuration) * time.Minute)
	session := &types.SessionRecord{
		ID:                   uuid.NewString(),
		PatientID:            req.PatientID,
		WeekNumber:           req.WeekNumber,
		SessionAttemptNumber: weekSessions + 1,
		Status:               types.SessionStatusActive,
		Zones:                z,
		StartedAt:            now,
		EndedAt:              plannedEnd,
		ProcessingStartsAt:   plannedEnd.Add(processingDelay),
		CreatedAt:            now,
	}
	if err := s.DB.CreateSession(ctx, session); err != nil {
		s.internalError(w, "Session create failed", err)
		return
	}
	s.Logger.Info("Session started",
		"session_id", session.ID, "patient_id", req.PatientID, "week", req.WeekNumber)

	s.writeJSON(w, http.StatusOK, response{
		Status:  "success",
		Message: "Session started successfully",
		Data: map[string]interface{}{
			"patientId":     req.PatientID,
			"weekNumber":    req.WeekNumber,
			"sessionNumber": session.SessionAttemptNumber,
			"sessionId":     session.ID,
			"sessionZones":  z,
			"sessionData": map[string]interface{}{
				"sessionDate":      now.Format("2006-01-02"),
				"sessionStartTime": now.Format("15:04:05"),
				"sessionDuration":  fmt.Sprintf("%d mins", z.SessionDuration),
			},
			"instructions": map[string]string{
				"warmup":   fmt.Sprintf("5 minutes - Keep HR between %d-%d bpm", z.WarmupZoneMin, z.WarmupZoneMax),
				"exercise": fmt.Sprintf("%d minutes - Keep HR between %d-%d bpm", z.SessionDuration-10, z.ExerciseZoneMin, z.ExerciseZoneMax),
				"cooldown": fmt.Sprintf("5 minutes - Keep HR between %d-%d bpm", z.CooldownZoneMin, z.CooldownZoneMax),
			},
		},
	})
}

type endSessionRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.failure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	session, err := s.DB.GetSession(ctx, req.SessionID)
	if errors.Is(err, shared.ErrNotFound) {
		s.failure(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.internalError(w, "Session lookup failed", err)
		return
	}

	if session.Status != types.SessionStatusActive {
		s.failure(w, http.StatusBadRequest, "Session already ended or not started")
		return
	}

	// The retry sweep picks the session up once processing_starts_at
	// passes; an early stop just shortens the measured window.
	now := s.now()
	actualMinutes := int(math.Round(now.Sub(session.StartedAt).Minutes()))
	err = s.DB.UpdateSession(ctx, session.ID, map[string]interface{}{
		"status":               types.SessionStatusInProgress,
		"actual_duration":      actualMinutes,
		"processing_starts_at": now.Add(processingDelay),
	})
	if err != nil {
		s.internalError(w, "Session update failed", err)
		return
	}
	s.Logger.Info("Session ended", "session_id", session.ID, "actual_duration", actualMinutes)

	s.writeJSON(w, http.StatusOK, response{
		Status:  "success",
		Message: "Session ended. Processing heart rate data...",
		Data: map[string]interface{}{
			"sessionId":      session.ID,
			"status":         types.SessionStatusProcessing,
			"estimatedTime":  "2-5 minutes",
			"checkStatusUrl": "/api/getSessionStatus/" + session.ID,
		},
	})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	session, err := s.DB.GetSession(ctx, sessionID)
	if errors.Is(err, shared.ErrNotFound) {
		s.failure(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.internalError(w, "Session lookup failed", err)
		return
	}

	switch session.Status {
	case types.SessionStatusProcessing, types.SessionStatusPendingSync:
		s.writeJSON(w, http.StatusOK, response{
			Status:  "processing",
			Message: "Still processing heart rate data...",
			Data: map[string]interface{}{
				"sessionId":     session.ID,
				"attemptCount":  session.AttemptCount,
				"nextAttemptAt": session.NextAttemptAt,
				"retrySchedule": session.RetrySchedule,
			},
		})

	case types.SessionStatusFailed, types.SessionStatusDataUnavailable, types.SessionStatusAbandoned:
		message := session.FailureReason
		if message == "" {
			message = "Session processing failed"
		}
		s.writeJSON(w, http.StatusOK, response{
			Status:  "failed",
			Message: message,
			Data: map[string]interface{}{
				"sessionId":     session.ID,
				"attemptCount":  session.AttemptCount,
				"retrySchedule": session.RetrySchedule,
			},
		})

	case types.SessionStatusCompleted:
		s.writeCompletedStatus(ctx, w, session)

	default:
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":        "unknown",
			"message":       "Session status unclear",
			"sessionStatus": session.Status,
		})
	}
}

func (s *Server) writeCompletedStatus(ctx context.Context, w http.ResponseWriter, session *types.SessionRecord) {
	sessionDuration := session.ActualDuration
	if session.Zones != nil {
		sessionDuration = session.Zones.SessionDuration
	}

	cumulative := float64(session.SessionScore)
	if weeklyScore, err := s.DB.GetWeeklyScore(ctx, session.PatientID, session.WeekNumber); err == nil && weeklyScore != nil {
		cumulative = weeklyScore.WeeklyScore
	}

	s.writeJSON(w, http.StatusOK, response{
		Status:  "success",
		Message: "Session completed successfully",
		Data: map[string]interface{}{
			"patientId":           session.PatientID,
			"weekNumber":          session.WeekNumber,
			"sessionNumber":       session.SessionAttemptNumber,
			"sessionRiskScore":    session.SessionScore,
			"cumulativeRiskScore": cumulative,
			"riskLevel":           session.RiskLevel,
			"summary":             session.Summary,
			"sessionData": map[string]interface{}{
				"sessionDate":      session.StartedAt.Format("2006-01-02"),
				"sessionStartTime": session.StartedAt.Format("15:04:05"),
				"sessionDuration":  sessionDuration,
				"MaxHR":            session.MaxHR,
				"MinHR":            session.MinHR,
				"AvgHR":            session.AvgHR,
			},
			"sessionZones": session.Zones,
		},
	})
}

func (s *Server) handleFitUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := chi.URLParam(r, "patientID")

	if _, err := s.DB.GetPatient(ctx, patientID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.failure(w, http.StatusNotFound, "Patient not found")
			return
		}
		s.internalError(w, "Patient lookup failed", err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxFitUploadBytes))
	if err != nil {
		s.failure(w, http.StatusBadRequest, "Could not read upload")
		return
	}

	readings, err := fitingest.ExtractHeartRate(data, patientID, s.now())
	if err != nil {
		s.failure(w, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid FIT file: %v", err))
		return
	}

	inserted, err := s.DB.InsertReadings(ctx, readings)
	if err != nil {
		s.internalError(w, "Reading insert failed", err)
		return
	}
	s.Logger.Info("FIT upload ingested",
		"patient_id", patientID, "decoded", len(readings), "inserted", inserted)

	s.writeJSON(w, http.StatusOK, response{
		Status:  "success",
		Message: "FIT file processed",
		Data: map[string]interface{}{
			"patientId": patientID,
			"decoded":   len(readings),
			"inserted":  inserted,
		},
	})
}
