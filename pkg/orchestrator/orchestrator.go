// Package orchestrator drives session processing: it claims a
// patient's credential, fetches telemetry, imputes and scores the
// session, and walks the retry schedule when data is not ready yet.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/domain/baseline"
	"github.com/kreahealth/rehab-server/pkg/domain/imputation"
	"github.com/kreahealth/rehab-server/pkg/domain/schedule"
	"github.com/kreahealth/rehab-server/pkg/domain/scoring"
	"github.com/kreahealth/rehab-server/pkg/domain/weekly"
	"github.com/kreahealth/rehab-server/pkg/domain/zones"
	"github.com/kreahealth/rehab-server/pkg/infrastructure/pubsub"
	"github.com/kreahealth/rehab-server/pkg/lock"
	"github.com/kreahealth/rehab-server/pkg/spectrum"
	"github.com/kreahealth/rehab-server/pkg/telemetry/googlefit"
	"github.com/kreahealth/rehab-server/pkg/types"
)

// FailureReasonDisconnected is stored on sessions that failed because
// the patient's Google Fit connection is gone.
const FailureReasonDisconnected = "Google Fit disconnected. Patient needs to reconnect."

// SpectrumReporter is the slice of the Spectrum client the
// orchestrator needs.
type SpectrumReporter interface {
	SendSession(ctx context.Context, payload *spectrum.SessionPayload) error
	NotifyTokenExpired(ctx context.Context, patientID, sessionID string) error
}

// TelemetryFactory builds a telemetry fetcher bound to one patient's
// credential. It fails with a credential sentinel when the patient's
// token cannot be made valid.
type TelemetryFactory func(ctx context.Context, patientID string) (googlefit.Fetcher, error)

// Orchestrator wires the session pipeline together. All fields are
// required except Store/ArtifactBucket (archival is optional) and
// Clock (defaults to time.Now).
type Orchestrator struct {
	DB             shared.Database
	Locks          *lock.Manager
	Baseline       *baseline.Engine
	Weekly         *weekly.Engine
	Spectrum       SpectrumReporter
	Pub            shared.Publisher
	Notify         shared.NotificationService
	Store          shared.BlobStore
	ArtifactBucket string
	Telemetry      TelemetryFactory
	Logger         *slog.Logger
	Clock          func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

func isCredentialError(err error) bool {
	return errors.Is(err, shared.ErrCredentialNotFound) ||
		errors.Is(err, shared.ErrCredentialInvalid) ||
		errors.Is(err, shared.ErrReauthRequired) ||
		errors.Is(err, shared.ErrUnauthorized)
}

// InitializeReadySessions promotes sessions whose processing window
// has opened: it generates the retry schedule from the session start
// and marks them due immediately. Returns the promoted sessions.
func (o *Orchestrator) InitializeReadySessions(ctx context.Context) ([]*types.SessionRecord, error) {
	ready, err := o.DB.ListReadySessions(ctx, o.now())
	if err != nil {
		return nil, fmt.Errorf("listing ready sessions: %w", err)
	}

	var promoted []*types.SessionRecord
	for _, session := range ready {
		retrySchedule := schedule.Generate(session.StartedAt)
		now := o.now()
		err := o.DB.UpdateSession(ctx, session.ID, map[string]interface{}{
			"status":          types.SessionStatusProcessing,
			"attempt_count":   0,
			"retry_schedule":  retrySchedule,
			"next_attempt_at": now,
		})
		if err != nil {
			o.Logger.Error("Failed to initialize session", "session_id", session.ID, "error", err)
			continue
		}
		session.Status = types.SessionStatusProcessing
		session.AttemptCount = 0
		session.RetrySchedule = retrySchedule
		session.NextAttemptAt = &now
		promoted = append(promoted, session)
		o.Logger.Info("Session ready to process", "session_id", session.ID, "patient_id", session.PatientID)
	}
	return promoted, nil
}

// ProcessAttempt runs one attempt of the session pipeline. Expected
// outcomes (no data yet, partial data, credential failure) are
// recorded on the session rather than returned as errors.
func (o *Orchestrator) ProcessAttempt(ctx context.Context, sessionID string) error {
	session, err := o.DB.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	attemptNumber := session.AttemptCount + 1
	o.Logger.Info("Processing session attempt",
		"session_id", sessionID, "patient_id", session.PatientID, "attempt", attemptNumber)

	if attemptNumber >= schedule.HistoricalFallbackAttempt {
		return o.processHistoricalFallback(ctx, session)
	}

	if err := o.Locks.Acquire(ctx, session.PatientID, lock.SessionHolder(sessionID)); err != nil {
		if errors.Is(err, shared.ErrLockBusy) {
			// The next sweep retries since next_attempt_at stays in
			// the past.
			o.Logger.Info("Credential busy, deferring attempt", "session_id", sessionID)
			return nil
		}
		return err
	}
	defer func() {
		if err := o.Locks.Release(ctx, session.PatientID); err != nil {
			o.Logger.Error("Failed to release credential lock", "patient_id", session.PatientID, "error", err)
		}
	}()

	patient, err := o.DB.GetPatient(ctx, session.PatientID)
	if err != nil {
		return fmt.Errorf("loading patient %s: %w", session.PatientID, err)
	}
	z := o.sessionZones(session, patient)

	fetcher, err := o.Telemetry(ctx, session.PatientID)
	if err != nil {
		if isCredentialError(err) {
			return o.failCredential(ctx, session, patient, attemptNumber)
		}
		return o.scheduleNextAttempt(ctx, session, attemptNumber, schedule.Outcome{
			Status:       types.AttemptStatusFailed,
			Result:       types.AttemptResultError,
			ErrorMessage: err.Error(),
		})
	}

	sessionStart := session.StartedAt
	sessionEnd := session.EndedAt
	if sessionEnd.IsZero() {
		sessionEnd = sessionStart.Add(time.Duration(z.SessionDuration) * time.Minute)
	}

	points, err := googlefit.FetchSession(ctx, fetcher, sessionStart, sessionEnd, o.now(), o.Logger)
	if err != nil {
		if isCredentialError(err) {
			return o.failCredential(ctx, session, patient, attemptNumber)
		}
		return o.scheduleNextAttempt(ctx, session, attemptNumber, schedule.Outcome{
			Status:       types.AttemptStatusFailed,
			Result:       types.AttemptResultError,
			ErrorMessage: err.Error(),
		})
	}

	o.archiveRawFetch(ctx, session, attemptNumber, points)

	if len(points) == 0 {
		if attemptNumber >= schedule.MaxAttempts {
			// Final regular attempt: the historical store may have data
			// the live API never returned.
			readings, err := o.DB.ListReadingsBetween(ctx, session.PatientID, sessionStart, sessionEnd)
			if err != nil {
				o.Logger.Error("Historical readings lookup failed", "session_id", sessionID, "error", err)
			}
			if len(readings) == 0 {
				return o.scheduleSyncFallback(ctx, session, attemptNumber, 0, 0)
			}
			o.Logger.Info("Using stored readings for final attempt",
				"session_id", sessionID, "points", len(readings))
			points = readingsToPoints(readings)
		} else {
			return o.scheduleNextAttempt(ctx, session, attemptNumber, schedule.Outcome{
				Status:       types.AttemptStatusFailed,
				Result:       types.AttemptResultInsufficientData,
				ErrorMessage: "No data available from Google Fit",
			})
		}
	}

	result := imputation.Impute(points, sessionStart, sessionEnd)
	completenessPct := result.Completeness * 100

	if !schedule.AcceptPartialData(attemptNumber, completenessPct) {
		if attemptNumber >= schedule.MaxAttempts {
			return o.scheduleSyncFallback(ctx, session, attemptNumber, len(points), completenessPct)
		}
		return o.scheduleNextAttempt(ctx, session, attemptNumber, schedule.Outcome{
			Status:     types.AttemptStatusFailed,
			Result:     types.AttemptResultInsufficientData,
			DataPoints: len(points),
			ErrorMessage: fmt.Sprintf("Only %.1f%% data available (need %.0f%%)",
				completenessPct, schedule.AcceptanceThreshold(attemptNumber)),
		})
	}

	o.storeImputedReadings(ctx, session, result.Points)

	updatedSchedule := schedule.MarkAttempt(session.RetrySchedule, attemptNumber, schedule.Outcome{
		Status:     types.AttemptStatusCompleted,
		Result:     types.AttemptResultSuccess,
		DataPoints: len(result.Points),
	})
	return o.completeSession(ctx, session, z, result.Points, result.Completeness, attemptNumber, updatedSchedule, true)
}

// sessionZones prefers the snapshot taken at session start and only
// recomputes for legacy rows that predate snapshotting.
func (o *Orchestrator) sessionZones(session *types.SessionRecord, patient *types.PatientRecord) *types.ZoneSet {
	if session.Zones != nil {
		return session.Zones
	}
	return zones.Calculate(zones.Profile{
		Age:                 patient.Age,
		OnBetaBlockers:      patient.OnBetaBlockers,
		LowEjectionFraction: patient.LowEjectionFraction,
	}, session.WeekNumber)
}

func readingsToPoints(readings []*types.HeartRateReadingRecord) []types.HeartRatePoint {
	points := make([]types.HeartRatePoint, 0, len(readings))
	for _, r := range readings {
		points = append(points, types.HeartRatePoint{
			Timestamp: r.RecordedAt,
			Value:     r.HeartRate,
		})
	}
	return points
}

func (o *Orchestrator) archiveRawFetch(ctx context.Context, session *types.SessionRecord, attemptNumber int, points []types.HeartRatePoint) {
	if o.Store == nil || o.ArtifactBucket == "" || len(points) == 0 {
		return
	}
	data, err := json.Marshal(points)
	if err != nil {
		return
	}
	object := fmt.Sprintf("sessions/%s/attempt_%02d.json", session.ID, attemptNumber)
	if err := o.Store.Write(ctx, o.ArtifactBucket, object, data); err != nil {
		o.Logger.Warn("Raw fetch archival failed", "session_id", session.ID, "error", err)
		return
	}
	err = o.DB.UpdateSession(ctx, session.ID, map[string]interface{}{
		"raw_artifact_path": object,
	})
	if err != nil {
		o.Logger.Warn("Failed to record artifact path", "session_id", session.ID, "error", err)
	}
}

func (o *Orchestrator) storeImputedReadings(ctx context.Context, session *types.SessionRecord, points []types.HeartRatePoint) {
	records := make([]*types.HeartRateReadingRecord, 0, len(points))
	for _, p := range points {
		records = append(records, &types.HeartRateReadingRecord{
			PatientID:    session.PatientID,
			RecordedAt:   p.Timestamp,
			HeartRate:    p.Value,
			ActivityType: "session",
			DataSource:   "google_fit",
			CreatedAt:    o.now(),
		})
	}
	inserted, err := o.DB.InsertReadings(ctx, records)
	if err != nil {
		o.Logger.Error("Failed to store session readings", "session_id", session.ID, "error", err)
		return
	}
	o.Logger.Info("Stored session readings", "session_id", session.ID, "inserted", inserted)
}

// failCredential is the terminal path for a dead Google Fit
// connection: no amount of retrying fixes a revoked token.
func (o *Orchestrator) failCredential(ctx context.Context, session *types.SessionRecord, patient *types.PatientRecord, attemptNumber int) error {
	o.Logger.Warn("Credential invalid, failing session",
		"session_id", session.ID, "patient_id", session.PatientID)

	if err := o.Spectrum.NotifyTokenExpired(ctx, session.PatientID, session.ID); err != nil {
		o.Logger.Error("Token expiry notification failed", "patient_id", session.PatientID, "error", err)
	}

	if len(patient.FCMTokens) > 0 {
		err := o.Notify.SendPushNotification(ctx, patient.ID,
			"Reconnect Google Fit",
			"Your Google Fit connection expired. Reconnect to keep your rehab sessions tracked.",
			patient.FCMTokens,
			map[string]string{"action": "reconnect_google_fit", "session_id": session.ID},
		)
		if err != nil {
			o.Logger.Error("Reconnect push failed", "patient_id", patient.ID, "error", err)
		}
	}

	now := o.now()
	failedEntry := types.RetryAttempt{
		Attempt:      attemptNumber,
		ExecutedAt:   &now,
		Status:       types.AttemptStatusFailed,
		Result:       types.AttemptResultTokenExpired,
		ErrorMessage: "Google Fit access expired",
	}
	updatedSchedule := append(append([]types.RetryAttempt{}, session.RetrySchedule...), failedEntry)

	err := o.DB.UpdateSession(ctx, session.ID, map[string]interface{}{
		"status":          types.SessionStatusFailed,
		"failure_reason":  FailureReasonDisconnected,
		"next_attempt_at": nil,
		"retry_schedule":  updatedSchedule,
		"last_attempt_at": now,
	})
	if err != nil {
		return fmt.Errorf("marking session failed: %w", err)
	}

	o.publishSessionEvent(ctx, shared.TopicSessionFailed, pubsub.EventTypeSessionFailed,
		session, FailureReasonDisconnected)
	return nil
}

func (o *Orchestrator) scheduleNextAttempt(ctx context.Context, session *types.SessionRecord, attemptNumber int, outcome schedule.Outcome) error {
	updatedSchedule := schedule.MarkAttempt(session.RetrySchedule, attemptNumber, outcome)
	now := o.now()

	next := schedule.NextPending(updatedSchedule)
	if next == nil {
		reason := "All retry attempts exhausted without sufficient data"
		err := o.DB.UpdateSession(ctx, session.ID, map[string]interface{}{
			"status":          types.SessionStatusDataUnavailable,
			"attempt_count":   attemptNumber,
			"retry_schedule":  updatedSchedule,
			"next_attempt_at": nil,
			"last_attempt_at": now,
			"failure_reason":  reason,
		})
		if err != nil {
			return fmt.Errorf("marking session data_unavailable: %w", err)
		}
		o.Logger.Warn("Retry schedule exhausted", "session_id", session.ID)
		o.publishSessionEvent(ctx, shared.TopicSessionDataUnavailable,
			pubsub.EventTypeSessionDataUnavailable, session, reason)
		return nil
	}

	// Delays are measured from now, not session start: an attempt that
	// ran late should not make the next one instantly due.
	nextAt := schedule.NextAttemptTime(now, next.Attempt)
	err := o.DB.UpdateSession(ctx, session.ID, map[string]interface{}{
		"attempt_count":   attemptNumber,
		"retry_schedule":  updatedSchedule,
		"next_attempt_at": nextAt,
		"last_attempt_at": now,
	})
	if err != nil {
		return fmt.Errorf("scheduling next attempt: %w", err)
	}
	o.Logger.Info("Scheduled next attempt",
		"session_id", session.ID, "attempt", next.Attempt, "at", nextAt)
	return nil
}

// scheduleSyncFallback parks the session until 10 minutes after the
// next historical sync, as a twelfth and final attempt.
func (o *Orchestrator) scheduleSyncFallback(ctx context.Context, session *types.SessionRecord, attemptNumber, dataPoints int, completenessPct float64) error {
	now := o.now()
	fallbackAt := schedule.NextHistoricalSyncTime(now).Add(10 * time.Minute)

	updatedSchedule := schedule.MarkAttempt(session.RetrySchedule, attemptNumber, schedule.Outcome{
		Status:       types.AttemptStatusFailed,
		Result:       types.AttemptResultInsufficientData,
		DataPoints:   dataPoints,
		ErrorMessage: fmt.Sprintf("Only %.1f%% data available", completenessPct),
	})
	updatedSchedule = append(updatedSchedule, types.RetryAttempt{
		Attempt:      schedule.HistoricalFallbackAttempt,
		ScheduledFor: &fallbackAt,
		Status:       types.AttemptStatusPending,
	})

	err := o.DB.UpdateSession(ctx, session.ID, map[string]interface{}{
		"status":          types.SessionStatusPendingSync,
		"attempt_count":   attemptNumber,
		"retry_schedule":  updatedSchedule,
		"next_attempt_at": fallbackAt,
		"last_attempt_at": now,
	})
	if err != nil {
		return fmt.Errorf("scheduling sync fallback: %w", err)
	}
	o.Logger.Info("Scheduled historical sync fallback",
		"session_id", session.ID, "at", fallbackAt)
	return nil
}

// processHistoricalFallback is attempt 12: score the session from the
// historical store alone, or give up for good.
func (o *Orchestrator) processHistoricalFallback(ctx context.Context, session *types.SessionRecord) error {
	patient, err := o.DB.GetPatient(ctx, session.PatientID)
	if err != nil {
		return fmt.Errorf("loading patient %s: %w", session.PatientID, err)
	}
	z := o.sessionZones(session, patient)

	sessionStart := session.StartedAt
	sessionEnd := sessionStart.Add(time.Duration(z.SessionDuration) * time.Minute)

	readings, err := o.DB.ListReadingsBetween(ctx, session.PatientID, sessionStart, sessionEnd)
	if err != nil {
		return fmt.Errorf("loading historical readings: %w", err)
	}

	giveUp := func(reason string) error {
		err := o.DB.UpdateSession(ctx, session.ID, map[string]interface{}{
			"status":          types.SessionStatusDataUnavailable,
			"attempt_count":   schedule.HistoricalFallbackAttempt,
			"next_attempt_at": nil,
			"failure_reason":  reason,
		})
		if err != nil {
			return fmt.Errorf("marking session data_unavailable: %w", err)
		}
		o.publishSessionEvent(ctx, shared.TopicSessionDataUnavailable,
			pubsub.EventTypeSessionDataUnavailable, session, reason)
		return nil
	}

	if len(readings) == 0 {
		return giveUp("No data available even after historical sync")
	}

	points := readingsToPoints(readings)
	completenessPct := schedule.Completeness(len(points), z.SessionDuration)
	if completenessPct < 40 {
		return giveUp(fmt.Sprintf("Insufficient data even after historical sync (%.0f%%)", completenessPct))
	}

	o.Logger.Info("Processing session from historical data",
		"session_id", session.ID, "points", len(points))
	// The historical path skips the Spectrum report; the batch push
	// already delivered these readings.
	return o.completeSession(ctx, session, z, points, -1, schedule.HistoricalFallbackAttempt, nil, false)
}

// completeSession scores the session, persists the result, and runs
// the downstream aggregates. completeness < 0 means "not measured"
// (the historical fallback path). A session is never reverted out of
// completed once this commits, even if a downstream push fails.
func (o *Orchestrator) completeSession(ctx context.Context, session *types.SessionRecord, z *types.ZoneSet, points []types.HeartRatePoint, completeness float64, attemptNumber int, updatedSchedule []types.RetryAttempt, sendToSpectrum bool) error {
	actualDuration := session.ActualDuration
	if actualDuration == 0 {
		actualDuration = z.SessionDuration
	}

	scores := scoring.Score(points, z, actualDuration, z.SessionDuration)
	sessionRiskLevel := scoring.RiskLevel(float64(scores.Overall))

	// The headline risk level tracks the cumulative weekly score once
	// one exists; a single session should not swing it.
	cumulative := float64(scores.Overall)
	if weeklyRecord, err := o.DB.GetWeeklyScore(ctx, session.PatientID, session.WeekNumber); err == nil && weeklyRecord != nil {
		cumulative = weeklyRecord.CumulativeScore
	}
	overallRiskLevel := scoring.RiskLevel(cumulative)

	maxHR, minHR, avgHR := scoring.HRStats(points)
	summary := scoring.Summary(overallRiskLevel, scores.Overall, z, maxHR)

	now := o.now()
	updates := map[string]interface{}{
		"status":           types.SessionStatusCompleted,
		"warmup_score":     scores.Warmup,
		"exercise_score":   scores.Exercise,
		"cooldown_score":   scores.Cooldown,
		"session_score":    scores.Overall,
		"risk_level":       overallRiskLevel,
		"max_hr":           maxHR,
		"min_hr":           minHR,
		"avg_hr":           avgHR,
		"summary":          summary,
		"attempt_count":    attemptNumber,
		"next_attempt_at":  nil,
		"last_attempt_at":  now,
	}
	if completeness >= 0 {
		updates["data_completeness"] = completeness
	}
	if updatedSchedule != nil {
		updates["retry_schedule"] = updatedSchedule
	}
	if err := o.DB.UpdateSession(ctx, session.ID, updates); err != nil {
		return fmt.Errorf("marking session completed: %w", err)
	}
	o.Logger.Info("Session completed",
		"session_id", session.ID,
		"score", scores.Overall,
		"risk_level", overallRiskLevel,
		"attempt", attemptNumber,
	)

	if err := o.Weekly.Update(ctx, session.PatientID, session.WeekNumber); err != nil {
		o.Logger.Error("Weekly score update failed", "patient_id", session.PatientID, "error", err)
	}
	if _, _, err := o.Baseline.Recalculate(ctx, session.PatientID); err != nil {
		o.Logger.Error("Baseline recalculation failed", "patient_id", session.PatientID, "error", err)
	}

	healthStatus, err := o.Baseline.HealthStatusFor(ctx, session.PatientID, float64(scores.Overall))
	if err != nil {
		o.Logger.Error("Health status classification failed", "patient_id", session.PatientID, "error", err)
	} else if healthStatus != "" {
		err := o.DB.UpdatePatient(ctx, session.PatientID, map[string]interface{}{
			"health_status": healthStatus,
		})
		if err != nil {
			o.Logger.Error("Health status update failed", "patient_id", session.PatientID, "error", err)
		}
	}

	o.publishSessionEvent(ctx, shared.TopicSessionCompleted, pubsub.EventTypeSessionCompleted, session, "")

	if sendToSpectrum {
		o.reportToSpectrum(ctx, session, z, scores, sessionRiskLevel, overallRiskLevel, cumulative, completeness, maxHR, minHR, avgHR, healthStatus)
	}
	return nil
}

func (o *Orchestrator) reportToSpectrum(ctx context.Context, session *types.SessionRecord, z *types.ZoneSet, scores scoring.PhaseScores, sessionRiskLevel, overallRiskLevel string, cumulative, completeness float64, maxHR, minHR, avgHR int, healthStatus string) {
	baselineScore := session.BaselineScore
	if threshold, err := o.DB.LatestBaselineThreshold(ctx, session.PatientID); err == nil && threshold != nil {
		baselineScore = threshold.BaselineScore
	}
	if healthStatus == "" {
		healthStatus = "unknown"
	}

	payload := &spectrum.SessionPayload{
		PatientID:           session.PatientID,
		SessionNumber:       session.SessionAttemptNumber,
		WeekNumber:          session.WeekNumber,
		SessionRiskScore:    float64(scores.Overall),
		CumulativeRiskScore: cumulative,
		RiskLevel:           overallRiskLevel,
		BaselineScore:       baselineScore,
		Summary:             healthStatus,
		SessionData: spectrum.SessionData{
			SessionDate:      session.StartedAt.Format("2006-01-02"),
			SessionStartTime: session.StartedAt.Format("15:04:05"),
			SessionDuration:  z.SessionDuration,
			MaxHR:            maxHR,
			MinHR:            minHR,
			AvgHR:            avgHR,
			SessionRiskLevel: sessionRiskLevel,
			DataCompleteness: completeness,
		},
		SessionZones: spectrum.SessionZones{
			TargetHR:         z.TargetHR,
			MaxPermissibleHR: z.MaxPermissibleHR,
			WarmupZoneMin:    z.WarmupZoneMin,
			WarmupZoneMax:    z.WarmupZoneMax,
			ExerciseZoneMin:  z.ExerciseZoneMin,
			ExerciseZoneMax:  z.ExerciseZoneMax,
			CooldownZoneMin:  z.CooldownZoneMin,
			CooldownZoneMax:  z.CooldownZoneMax,
			SessionDuration:  z.SessionDuration,
		},
	}

	spectrumUpdates := map[string]interface{}{
		"spectrum_sent_at": o.now(),
	}
	if err := o.Spectrum.SendSession(ctx, payload); err != nil {
		o.Logger.Error("Spectrum report failed", "session_id", session.ID, "error", err)
		spectrumUpdates["sent_to_spectrum"] = false
		spectrumUpdates["spectrum_status"] = "failed"
	} else {
		spectrumUpdates["sent_to_spectrum"] = true
		spectrumUpdates["spectrum_status"] = "success"
	}
	if err := o.DB.UpdateSession(ctx, session.ID, spectrumUpdates); err != nil {
		o.Logger.Error("Failed to record Spectrum status", "session_id", session.ID, "error", err)
	}
}

type sessionEventData struct {
	SessionID  string `json:"session_id"`
	PatientID  string `json:"patient_id"`
	WeekNumber int    `json:"week_number"`
	Reason     string `json:"reason,omitempty"`
}

func (o *Orchestrator) publishSessionEvent(ctx context.Context, topic, eventType string, session *types.SessionRecord, reason string) {
	event, err := pubsub.NewCloudEvent(pubsub.EventSourceOrchestrator, eventType, sessionEventData{
		SessionID:  session.ID,
		PatientID:  session.PatientID,
		WeekNumber: session.WeekNumber,
		Reason:     reason,
	})
	if err != nil {
		o.Logger.Error("Failed to build event", "type", eventType, "error", err)
		return
	}
	if err := o.Pub.PublishCloudEvent(ctx, topic, event); err != nil {
		o.Logger.Error("Failed to publish event", "type", eventType, "error", err)
	}
}
