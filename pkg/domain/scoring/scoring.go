// Package scoring turns a session's minute-resolution heart rate trace
// into phase compliance scores and a risk level.
package scoring

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kreahealth/rehab-server/pkg/types"
)

// printer renders the patient-facing summary text.
var printer = message.NewPrinter(language.English)

// Phase weights for the overall score: exercise dominates, warmup and
// cooldown bracket it.
const (
	warmupWeight   = 0.1
	exerciseWeight = 0.8
	cooldownWeight = 0.1
)

// PhaseScores holds the per-phase and weighted overall scores, all on a
// 0-100 scale.
type PhaseScores struct {
	Warmup   int
	Exercise int
	Cooldown int
	Overall  int
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SplitPhases divides the trace into warmup, exercise and cooldown
// segments. The standard split is first 5 minutes / middle / last 5.
// When the session ran shorter than planned the cooldown shrinks
// proportionally (min 2 minutes); when longer, the exercise phase
// absorbs the extra time.
func SplitPhases(values []int, actualDuration, plannedDuration int) (warmup, exercise, cooldown []int) {
	n := len(values)

	warmupMinutes := 5
	cooldownMinutes := 5
	if plannedDuration > 0 && actualDuration < plannedDuration {
		ratio := float64(actualDuration) / float64(plannedDuration)
		cooldownMinutes = int(math.Round(5 * ratio))
		if cooldownMinutes < 2 {
			cooldownMinutes = 2
		}
	}

	warmupEnd := clamp(warmupMinutes, 0, n)
	exerciseEnd := clamp(actualDuration-cooldownMinutes, warmupEnd, n)
	cooldownStart := clamp(n-cooldownMinutes, 0, n)

	return values[:warmupEnd], values[warmupEnd:exerciseEnd], values[cooldownStart:]
}

// WarmupScore is the percentage of warmup samples that reached the
// warmup floor. The ceiling is not enforced; ramping up fast is fine.
func WarmupScore(values []int, zoneMin int) int {
	if len(values) == 0 {
		return 0
	}
	inRange := 0
	for _, hr := range values {
		if hr >= zoneMin {
			inRange++
		}
	}
	return int(math.Round(float64(inRange) / float64(len(values)) * 100))
}

// ExerciseScore scores the average exercise heart rate against the
// target band: full marks inside, stepped penalties above, and a
// deviation ladder below. High in-phase variability caps the score.
func ExerciseScore(values []int, zoneMin, zoneMax int) int {
	if len(values) == 0 {
		return 0
	}

	sum := 0
	maxHR, minHR := values[0], values[0]
	for _, hr := range values {
		sum += hr
		if hr > maxHR {
			maxHR = hr
		}
		if hr < minHR {
			minHR = hr
		}
	}
	avg := float64(sum) / float64(len(values))

	var score int
	switch {
	case avg >= float64(zoneMin) && avg <= float64(zoneMax):
		score = 100
	case avg > float64(zoneMax):
		switch {
		case avg <= float64(zoneMax)+10:
			score = 80
		case avg <= float64(zoneMax)+20:
			score = 70
		default:
			score = 20
		}
	default: // below zone
		deviation := int(math.Round(math.Min(
			math.Abs(avg-float64(zoneMin)),
			math.Abs(avg-float64(zoneMax)),
		)))
		switch {
		case deviation <= 5:
			score = 100
		case deviation <= 10:
			score = 95
		case deviation <= 15:
			score = 80
		case deviation <= 20:
			score = 70
		case deviation <= 30:
			score = 20
		case deviation <= 40:
			score = 15
		case deviation <= 50:
			score = 10
		case deviation <= 60:
			score = 8
		default:
			score = 5
		}
	}

	// A swing over 25 bpm within the phase means unstable effort.
	if maxHR-minHR > 25 && score > 80 {
		score = 80
	}

	return score
}

// CooldownScore scores the average cooldown heart rate against the
// recovery band by deviation.
func CooldownScore(values []int, zoneMin, zoneMax int) int {
	if len(values) == 0 {
		return 0
	}

	sum := 0
	for _, hr := range values {
		sum += hr
	}
	avg := float64(sum) / float64(len(values))

	if avg >= float64(zoneMin) && avg <= float64(zoneMax) {
		return 100
	}

	deviation := int(math.Round(math.Min(
		math.Abs(avg-float64(zoneMin)),
		math.Abs(avg-float64(zoneMax)),
	)))
	switch {
	case deviation <= 5:
		return 100
	case deviation <= 10:
		return 90
	case deviation <= 15:
		return 80
	case deviation <= 25:
		return 60
	default:
		return 40
	}
}

// Score computes all phase scores for the trace.
func Score(points []types.HeartRatePoint, zones *types.ZoneSet, actualDuration, plannedDuration int) PhaseScores {
	values := make([]int, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	warmup, exercise, cooldown := SplitPhases(values, actualDuration, plannedDuration)

	sw := WarmupScore(warmup, zones.WarmupZoneMin)
	se := ExerciseScore(exercise, zones.ExerciseZoneMin, zones.ExerciseZoneMax)
	sc := CooldownScore(cooldown, zones.CooldownZoneMin, zones.CooldownZoneMax)

	overall := warmupWeight*float64(sw) + exerciseWeight*float64(se) + cooldownWeight*float64(sc)

	return PhaseScores{
		Warmup:   sw,
		Exercise: se,
		Cooldown: sc,
		Overall:  int(math.Round(overall)),
	}
}

// RiskLevel maps a score to its risk band.
func RiskLevel(score float64) string {
	switch {
	case score <= 50:
		return types.RiskLevelHigh
	case score <= 79:
		return types.RiskLevelModerate
	default:
		return types.RiskLevelLow
	}
}

// HRStats returns max, min and rounded mean of the trace. All zero for
// an empty trace.
func HRStats(points []types.HeartRatePoint) (maxHR, minHR, avgHR int) {
	if len(points) == 0 {
		return 0, 0, 0
	}

	maxHR, minHR = points[0].Value, points[0].Value
	sum := 0
	for _, p := range points {
		sum += p.Value
		if p.Value > maxHR {
			maxHR = p.Value
		}
		if p.Value < minHR {
			minHR = p.Value
		}
	}
	avgHR = int(math.Round(float64(sum) / float64(len(points))))
	return maxHR, minHR, avgHR
}

// Summary builds the patient-facing one-liner for a completed session.
func Summary(riskLevel string, sessionScore int, zones *types.ZoneSet, maxHR int) string {
	summary := printer.Sprintf("%s risk level detected. Session compliance: %d%%.", riskLevel, sessionScore)

	if maxHR > zones.MaxPermissibleHR {
		summary += printer.Sprintf(" Warning: Maximum heart rate (%d bpm) exceeded safe limit.", maxHR)
	}

	if sessionScore < 50 {
		summary += " Significant time spent outside target zones. Consider adjusting exercise intensity."
	} else if sessionScore >= 80 {
		summary += " Excellent adherence to target heart rate zones!"
	}

	return summary
}
