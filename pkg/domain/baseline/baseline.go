// Package baseline maintains each patient's robust session-score
// baseline and classifies new scores against it.
package baseline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/types"
)

// madScaleFactor converts a median absolute deviation into a standard
// deviation estimate under a normality assumption.
const madScaleFactor = 1.4826

// Baselines are recalculated only when the patient's completed session
// count hits one of these milestones. The first session seeds a naive
// baseline; resting heart rate joins from session 3 on.
var (
	milestones          = map[int]bool{1: true, 3: true, 7: true, 14: true}
	restingHRMilestones = map[int]bool{3: true, 7: true, 14: true}
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Thresholds is a computed baseline with its deviation bands.
type Thresholds struct {
	Baseline          float64
	StandardDeviation float64
	Lower1SD          float64
	Lower2SD          float64
	Upper1SD          float64
	Upper2SD          float64
}

// ComputeThresholds derives the baseline from the last three session
// scores: the median is the baseline and the scaled median absolute
// deviation stands in for the standard deviation, so one bad session
// cannot drag the whole baseline down.
func ComputeThresholds(scores [3]float64) Thresholds {
	sorted := scores
	sort.Float64s(sorted[:])
	baseline := sorted[1]

	deviations := [3]float64{
		math.Abs(sorted[0] - baseline),
		math.Abs(sorted[1] - baseline),
		math.Abs(sorted[2] - baseline),
	}
	sort.Float64s(deviations[:])
	mad := deviations[1]

	sd := madScaleFactor * mad

	return Thresholds{
		Baseline:          baseline,
		StandardDeviation: sd,
		Lower1SD:          baseline - sd,
		Lower2SD:          baseline - 2*sd,
		Upper1SD:          baseline + sd,
		Upper2SD:          baseline + 2*sd,
	}
}

// HealthStatus classifies a session score against the threshold bands.
func HealthStatus(score float64, t *types.BaselineThresholdRecord) string {
	switch {
	case score < t.LowerThreshold2SD:
		return types.HealthStatusAtRisk
	case score < t.LowerThreshold1SD:
		return types.HealthStatusDeclining
	case score <= t.UpperThreshold1SD:
		return types.HealthStatusConsistent
	case score <= t.UpperThreshold2SD:
		return types.HealthStatusImproving
	default:
		return types.HealthStatusStrongImprovement
	}
}

// RestingHeartRate estimates resting HR from historical readings:
// exclude anything recorded during a session, keep the typical resting
// band, strip outliers beyond two standard deviations, take the median.
// ok is false when no readings survive the filters.
func RestingHeartRate(readings []*types.HeartRateReadingRecord, sessions []*types.SessionRecord) (restingHR float64, ok bool) {
	if len(readings) == 0 {
		return 0, false
	}

	type window struct{ start, end time.Time }
	windows := make([]window, 0, len(sessions))
	for _, s := range sessions {
		duration := s.ActualDuration
		if s.Zones != nil && s.Zones.SessionDuration > 0 {
			duration = s.Zones.SessionDuration
		}
		windows = append(windows, window{
			start: s.StartedAt,
			end:   s.StartedAt.Add(time.Duration(duration) * time.Minute),
		})
	}

	var filtered []float64
	for _, r := range readings {
		inSession := false
		for _, w := range windows {
			if !r.RecordedAt.Before(w.start) && !r.RecordedAt.After(w.end) {
				inSession = true
				break
			}
		}
		if inSession {
			continue
		}
		if r.HeartRate >= 50 && r.HeartRate <= 80 {
			filtered = append(filtered, float64(r.HeartRate))
		}
	}
	if len(filtered) == 0 {
		return 0, false
	}

	mean := 0.0
	for _, v := range filtered {
		mean += v
	}
	mean /= float64(len(filtered))

	variance := 0.0
	for _, v := range filtered {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(filtered))
	sd := math.Sqrt(variance)

	lower, upper := mean-2*sd, mean+2*sd
	var cleaned []float64
	for _, v := range filtered {
		if v >= lower && v <= upper {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return 0, false
	}

	sort.Float64s(cleaned)
	mid := len(cleaned) / 2
	var median float64
	if len(cleaned)%2 == 0 {
		median = (cleaned[mid-1] + cleaned[mid]) / 2
	} else {
		median = cleaned[mid]
	}

	return round2(median), true
}

// Engine recalculates and persists baselines at session milestones.
type Engine struct {
	DB     shared.Database
	Logger *slog.Logger
}

func NewEngine(db shared.Database, logger *slog.Logger) *Engine {
	return &Engine{DB: db, Logger: logger}
}

// Recalculate runs after a session completes. At a milestone it writes
// a fresh immutable threshold row, stamps the baseline onto the
// patient's sessions, and returns the new baseline. Outside milestones
// it does nothing.
func (e *Engine) Recalculate(ctx context.Context, patientID string) (float64, bool, error) {
	completed, err := e.DB.ListCompletedSessions(ctx, patientID)
	if err != nil {
		return 0, false, fmt.Errorf("listing completed sessions: %w", err)
	}

	total := len(completed)
	if !milestones[total] {
		return 0, false, nil
	}

	if total == 1 {
		first := completed[0]
		baseline := round2(float64(first.SessionScore))
		err := e.DB.UpdateSession(ctx, first.ID, map[string]interface{}{
			"baseline_score": baseline,
		})
		if err != nil {
			return 0, false, fmt.Errorf("seeding first-session baseline: %w", err)
		}
		e.Logger.Info("Seeded baseline from first session",
			"patient_id", patientID, "baseline", baseline)
		return baseline, true, nil
	}

	// completed is ordered newest first; the last three sessions feed
	// the robust estimate.
	var scores [3]float64
	for i := 0; i < 3; i++ {
		scores[i] = float64(completed[i].SessionScore)
	}
	thresholds := ComputeThresholds(scores)

	restingHR := 0.0
	if restingHRMilestones[total] {
		restingHR, err = e.restingHR(ctx, patientID, completed)
		if err != nil {
			// Resting HR is enrichment; a failure should not block the
			// baseline itself.
			e.Logger.Warn("Resting HR calculation failed", "patient_id", patientID, "error", err)
		}
	}

	record := &types.BaselineThresholdRecord{
		PatientID:           patientID,
		CalculatedAtSession: total,
		BaselineScore:       round2(thresholds.Baseline),
		StandardDeviation:   round2(thresholds.StandardDeviation),
		UpperThreshold1SD:   round2(thresholds.Upper1SD),
		UpperThreshold2SD:   round2(thresholds.Upper2SD),
		LowerThreshold1SD:   round2(thresholds.Lower1SD),
		LowerThreshold2SD:   round2(thresholds.Lower2SD),
		RestingHeartRate:    restingHR,
		CreatedAt:           time.Now(),
	}
	if err := e.DB.CreateBaselineThreshold(ctx, record); err != nil {
		return 0, false, fmt.Errorf("storing baseline threshold: %w", err)
	}

	if err := e.DB.SetBaselineOnSessions(ctx, patientID, record.BaselineScore); err != nil {
		return 0, false, fmt.Errorf("propagating baseline to sessions: %w", err)
	}

	e.Logger.Info("Recalculated baseline",
		"patient_id", patientID,
		"milestone", total,
		"baseline", record.BaselineScore,
		"standard_deviation", record.StandardDeviation,
		"resting_hr", restingHR,
	)
	return record.BaselineScore, true, nil
}

func (e *Engine) restingHR(ctx context.Context, patientID string, completed []*types.SessionRecord) (float64, error) {
	readings, err := e.DB.ListReadings(ctx, patientID)
	if err != nil {
		return 0, fmt.Errorf("listing readings: %w", err)
	}
	hr, ok := RestingHeartRate(readings, completed)
	if !ok {
		return 0, nil
	}
	return hr, nil
}

// HealthStatusFor classifies a score against the patient's most recent
// baseline. Returns empty when no baseline exists yet.
func (e *Engine) HealthStatusFor(ctx context.Context, patientID string, score float64) (string, error) {
	threshold, err := e.DB.LatestBaselineThreshold(ctx, patientID)
	if err != nil {
		return "", fmt.Errorf("loading latest threshold: %w", err)
	}
	if threshold == nil {
		return "", nil
	}
	return HealthStatus(score, threshold), nil
}
