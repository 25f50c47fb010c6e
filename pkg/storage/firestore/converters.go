package firestore

import (
	"time"

	"github.com/kreahealth/rehab-server/pkg/types"
)

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Helper to safely get bool from map
func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Helper to safely get time from map (handles time.Time from Firestore)
func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

func getTimePtr(m map[string]interface{}, key string) *time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return &t
		}
	}
	return nil
}

// Firestore hands numbers back as int64, but callers sometimes write
// plain ints or floats, so accept all three.
func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int64:
			return int(n)
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return 0
}

func getFloat(m map[string]interface{}, key string) float64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		case int:
			return float64(n)
		}
	}
	return 0
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// --- PatientRecord Converters ---

func PatientToFirestore(p *types.PatientRecord) map[string]interface{} {
	m := map[string]interface{}{
		"id":                    p.ID,
		"name":                  p.Name,
		"age":                   p.Age,
		"email":                 p.Email,
		"regime_weeks":          p.RegimeWeeks,
		"on_beta_blockers":      p.OnBetaBlockers,
		"low_ejection_fraction": p.LowEjectionFraction,
		"created_at":            p.CreatedAt,
		"updated_at":            p.UpdatedAt,
	}

	if p.HealthStatus != "" {
		m["health_status"] = p.HealthStatus
	}
	if len(p.FCMTokens) > 0 {
		m["fcm_tokens"] = p.FCMTokens
	}

	if p.Credential != nil {
		m["google_credential"] = map[string]interface{}{
			"access_token":        p.Credential.AccessToken,
			"refresh_token":       p.Credential.RefreshToken,
			"expires_at":          p.Credential.ExpiresAt,
			"status":              p.Credential.Status,
			"in_use":              p.Credential.InUse,
			"locked_by":           p.Credential.LockedBy,
			"locked_at":           p.Credential.LockedAt,
			"last_used_at":        p.Credential.LastUsedAt,
			"invalidated_at":      p.Credential.InvalidatedAt,
			"invalidation_reason": p.Credential.InvalidationReason,
		}
	}

	return m
}

func FirestoreToPatient(m map[string]interface{}) *types.PatientRecord {
	p := &types.PatientRecord{
		ID:                  getString(m, "id"),
		Name:                getString(m, "name"),
		Age:                 getInt(m, "age"),
		Email:               getString(m, "email"),
		RegimeWeeks:         getInt(m, "regime_weeks"),
		OnBetaBlockers:      getBool(m, "on_beta_blockers"),
		LowEjectionFraction: getBool(m, "low_ejection_fraction"),
		HealthStatus:        getString(m, "health_status"),
		CreatedAt:           getTime(m, "created_at"),
		UpdatedAt:           getTime(m, "updated_at"),
	}

	if raw, ok := m["fcm_tokens"].([]interface{}); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				p.FCMTokens = append(p.FCMTokens, s)
			}
		}
	}

	if raw, ok := m["google_credential"].(map[string]interface{}); ok {
		p.Credential = &types.GoogleCredential{
			AccessToken:        getString(raw, "access_token"),
			RefreshToken:       getString(raw, "refresh_token"),
			ExpiresAt:          getTime(raw, "expires_at"),
			Status:             getString(raw, "status"),
			InUse:              getBool(raw, "in_use"),
			LockedBy:           getString(raw, "locked_by"),
			LockedAt:           getTime(raw, "locked_at"),
			LastUsedAt:         getTime(raw, "last_used_at"),
			InvalidatedAt:      getTime(raw, "invalidated_at"),
			InvalidationReason: getString(raw, "invalidation_reason"),
		}
	}

	return p
}

// --- ZoneSet Converters ---

func zonesToFirestore(z *types.ZoneSet) map[string]interface{} {
	return map[string]interface{}{
		"max_permissible_hr": z.MaxPermissibleHR,
		"target_hr":          z.TargetHR,
		"warmup_zone_min":    z.WarmupZoneMin,
		"warmup_zone_max":    z.WarmupZoneMax,
		"exercise_zone_min":  z.ExerciseZoneMin,
		"exercise_zone_max":  z.ExerciseZoneMax,
		"cooldown_zone_min":  z.CooldownZoneMin,
		"cooldown_zone_max":  z.CooldownZoneMax,
		"session_duration":   z.SessionDuration,
	}
}

func firestoreToZones(m map[string]interface{}) *types.ZoneSet {
	return &types.ZoneSet{
		MaxPermissibleHR: getInt(m, "max_permissible_hr"),
		TargetHR:         getInt(m, "target_hr"),
		WarmupZoneMin:    getInt(m, "warmup_zone_min"),
		WarmupZoneMax:    getInt(m, "warmup_zone_max"),
		ExerciseZoneMin:  getInt(m, "exercise_zone_min"),
		ExerciseZoneMax:  getInt(m, "exercise_zone_max"),
		CooldownZoneMin:  getInt(m, "cooldown_zone_min"),
		CooldownZoneMax:  getInt(m, "cooldown_zone_max"),
		SessionDuration:  getInt(m, "session_duration"),
	}
}

// --- RetryAttempt Converters ---

func AttemptToFirestore(a *types.RetryAttempt) map[string]interface{} {
	return map[string]interface{}{
		"attempt":       a.Attempt,
		"scheduled_for": timeOrNil(a.ScheduledFor),
		"executed_at":   timeOrNil(a.ExecutedAt),
		"status":        a.Status,
		"result":        a.Result,
		"data_points":   a.DataPoints,
		"error_message": a.ErrorMessage,
	}
}

func FirestoreToAttempt(m map[string]interface{}) types.RetryAttempt {
	return types.RetryAttempt{
		Attempt:      getInt(m, "attempt"),
		ScheduledFor: getTimePtr(m, "scheduled_for"),
		ExecutedAt:   getTimePtr(m, "executed_at"),
		Status:       getString(m, "status"),
		Result:       getString(m, "result"),
		DataPoints:   getInt(m, "data_points"),
		ErrorMessage: getString(m, "error_message"),
	}
}

// --- SessionRecord Converters ---

func SessionToFirestore(s *types.SessionRecord) map[string]interface{} {
	m := map[string]interface{}{
		"id":                     s.ID,
		"patient_id":             s.PatientID,
		"week_number":            s.WeekNumber,
		"session_attempt_number": s.SessionAttemptNumber,
		"status":                 s.Status,
		"started_at":             s.StartedAt,
		"ended_at":               s.EndedAt,
		"actual_duration":        s.ActualDuration,
		"processing_starts_at":   s.ProcessingStartsAt,
		"attempt_count":          s.AttemptCount,
		"next_attempt_at":        timeOrNil(s.NextAttemptAt),
		"last_attempt_at":        s.LastAttemptAt,
		"failure_reason":         s.FailureReason,
		"warmup_score":           s.WarmupScore,
		"exercise_score":         s.ExerciseScore,
		"cooldown_score":         s.CooldownScore,
		"session_score":          s.SessionScore,
		"risk_level":             s.RiskLevel,
		"max_hr":                 s.MaxHR,
		"min_hr":                 s.MinHR,
		"avg_hr":                 s.AvgHR,
		"data_completeness":      s.DataCompleteness,
		"is_counted_in_weekly":   s.IsCountedInWeekly,
		"summary":                s.Summary,
		"sent_to_spectrum":       s.SentToSpectrum,
		"spectrum_sent_at":       s.SpectrumSentAt,
		"spectrum_status":        s.SpectrumStatus,
		"raw_artifact_path":      s.RawArtifactPath,
		"created_at":             s.CreatedAt,
		"updated_at":             s.UpdatedAt,
	}

	if s.Zones != nil {
		m["zones"] = zonesToFirestore(s.Zones)
	}
	if s.HasBaseline {
		m["baseline_score"] = s.BaselineScore
	}

	if len(s.RetrySchedule) > 0 {
		schedule := make([]map[string]interface{}, len(s.RetrySchedule))
		for i := range s.RetrySchedule {
			schedule[i] = AttemptToFirestore(&s.RetrySchedule[i])
		}
		m["retry_schedule"] = schedule
	}

	return m
}

func FirestoreToSession(m map[string]interface{}) *types.SessionRecord {
	s := &types.SessionRecord{
		ID:                   getString(m, "id"),
		PatientID:            getString(m, "patient_id"),
		WeekNumber:           getInt(m, "week_number"),
		SessionAttemptNumber: getInt(m, "session_attempt_number"),
		Status:               getString(m, "status"),
		StartedAt:            getTime(m, "started_at"),
		EndedAt:              getTime(m, "ended_at"),
		ActualDuration:       getInt(m, "actual_duration"),
		ProcessingStartsAt:   getTime(m, "processing_starts_at"),
		AttemptCount:         getInt(m, "attempt_count"),
		NextAttemptAt:        getTimePtr(m, "next_attempt_at"),
		LastAttemptAt:        getTime(m, "last_attempt_at"),
		FailureReason:        getString(m, "failure_reason"),
		WarmupScore:          getInt(m, "warmup_score"),
		ExerciseScore:        getInt(m, "exercise_score"),
		CooldownScore:        getInt(m, "cooldown_score"),
		SessionScore:         getInt(m, "session_score"),
		RiskLevel:            getString(m, "risk_level"),
		MaxHR:                getInt(m, "max_hr"),
		MinHR:                getInt(m, "min_hr"),
		AvgHR:                getInt(m, "avg_hr"),
		DataCompleteness:     getFloat(m, "data_completeness"),
		IsCountedInWeekly:    getBool(m, "is_counted_in_weekly"),
		Summary:              getString(m, "summary"),
		SentToSpectrum:       getBool(m, "sent_to_spectrum"),
		SpectrumSentAt:       getTime(m, "spectrum_sent_at"),
		SpectrumStatus:       getString(m, "spectrum_status"),
		RawArtifactPath:      getString(m, "raw_artifact_path"),
		CreatedAt:            getTime(m, "created_at"),
		UpdatedAt:            getTime(m, "updated_at"),
	}

	if raw, ok := m["zones"].(map[string]interface{}); ok {
		s.Zones = firestoreToZones(raw)
	}
	if _, ok := m["baseline_score"]; ok {
		s.BaselineScore = getFloat(m, "baseline_score")
		s.HasBaseline = true
	}

	if raw, ok := m["retry_schedule"].([]interface{}); ok {
		for _, item := range raw {
			if am, ok := item.(map[string]interface{}); ok {
				s.RetrySchedule = append(s.RetrySchedule, FirestoreToAttempt(am))
			}
		}
	}

	return s
}

// --- HeartRateReadingRecord Converters ---

func ReadingToFirestore(r *types.HeartRateReadingRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":            r.ID,
		"patient_id":    r.PatientID,
		"recorded_at":   r.RecordedAt,
		"heart_rate":    r.HeartRate,
		"activity_type": r.ActivityType,
		"data_source":   r.DataSource,
		"created_at":    r.CreatedAt,
	}
}

func FirestoreToReading(m map[string]interface{}) *types.HeartRateReadingRecord {
	return &types.HeartRateReadingRecord{
		ID:           getString(m, "id"),
		PatientID:    getString(m, "patient_id"),
		RecordedAt:   getTime(m, "recorded_at"),
		HeartRate:    getInt(m, "heart_rate"),
		ActivityType: getString(m, "activity_type"),
		DataSource:   getString(m, "data_source"),
		CreatedAt:    getTime(m, "created_at"),
	}
}

// --- BaselineThresholdRecord Converters ---

func BaselineThresholdToFirestore(b *types.BaselineThresholdRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":                    b.ID,
		"patient_id":            b.PatientID,
		"calculated_at_session": b.CalculatedAtSession,
		"baseline_score":        b.BaselineScore,
		"standard_deviation":    b.StandardDeviation,
		"upper_threshold_1sd":   b.UpperThreshold1SD,
		"upper_threshold_2sd":   b.UpperThreshold2SD,
		"lower_threshold_1sd":   b.LowerThreshold1SD,
		"lower_threshold_2sd":   b.LowerThreshold2SD,
		"resting_heart_rate":    b.RestingHeartRate,
		"created_at":            b.CreatedAt,
	}
}

func FirestoreToBaselineThreshold(m map[string]interface{}) *types.BaselineThresholdRecord {
	return &types.BaselineThresholdRecord{
		ID:                  getString(m, "id"),
		PatientID:           getString(m, "patient_id"),
		CalculatedAtSession: getInt(m, "calculated_at_session"),
		BaselineScore:       getFloat(m, "baseline_score"),
		StandardDeviation:   getFloat(m, "standard_deviation"),
		UpperThreshold1SD:   getFloat(m, "upper_threshold_1sd"),
		UpperThreshold2SD:   getFloat(m, "upper_threshold_2sd"),
		LowerThreshold1SD:   getFloat(m, "lower_threshold_1sd"),
		LowerThreshold2SD:   getFloat(m, "lower_threshold_2sd"),
		RestingHeartRate:    getFloat(m, "resting_heart_rate"),
		CreatedAt:           getTime(m, "created_at"),
	}
}

// --- WeeklyScoreRecord Converters ---

func WeeklyScoreToFirestore(w *types.WeeklyScoreRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":               w.ID,
		"patient_id":       w.PatientID,
		"week_number":      w.WeekNumber,
		"weekly_score":     w.WeeklyScore,
		"cumulative_score": w.CumulativeScore,
		"updated_at":       w.UpdatedAt,
	}
}

func FirestoreToWeeklyScore(m map[string]interface{}) *types.WeeklyScoreRecord {
	return &types.WeeklyScoreRecord{
		ID:              getString(m, "id"),
		PatientID:       getString(m, "patient_id"),
		WeekNumber:      getInt(m, "week_number"),
		WeeklyScore:     getFloat(m, "weekly_score"),
		CumulativeScore: getFloat(m, "cumulative_score"),
		UpdatedAt:       getTime(m, "updated_at"),
	}
}
