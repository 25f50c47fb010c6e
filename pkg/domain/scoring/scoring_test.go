package scoring

import (
	"strings"
	"testing"

	"github.com/kreahealth/rehab-server/pkg/types"
)

func repeat(value, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = value
	}
	return out
}

func pointsFrom(values []int) []types.HeartRatePoint {
	points := make([]types.HeartRatePoint, len(values))
	for i, v := range values {
		points[i].Value = v
	}
	return points
}

func testZones() *types.ZoneSet {
	// Target 112: warmup [97, 107], exercise [107, 117], cooldown [97, 107].
	return &types.ZoneSet{
		MaxPermissibleHR: 160,
		TargetHR:         112,
		WarmupZoneMin:    97,
		WarmupZoneMax:    107,
		ExerciseZoneMin:  107,
		ExerciseZoneMax:  117,
		CooldownZoneMin:  97,
		CooldownZoneMax:  107,
		SessionDuration:  20,
	}
}

func TestSplitPhasesStandard(t *testing.T) {
	values := make([]int, 20)
	for i := range values {
		values[i] = i
	}

	warmup, exercise, cooldown := SplitPhases(values, 20, 20)

	if len(warmup) != 5 || warmup[4] != 4 {
		t.Errorf("warmup = %v", warmup)
	}
	if len(exercise) != 10 || exercise[0] != 5 || exercise[9] != 14 {
		t.Errorf("exercise = %v", exercise)
	}
	if len(cooldown) != 5 || cooldown[0] != 15 {
		t.Errorf("cooldown = %v", cooldown)
	}
}

func TestSplitPhasesShorterSession(t *testing.T) {
	// 12 actual of 20 planned: cooldown shrinks to max(2, round(5*0.6)) = 3.
	values := make([]int, 12)
	for i := range values {
		values[i] = i
	}

	warmup, exercise, cooldown := SplitPhases(values, 12, 20)

	if len(warmup) != 5 {
		t.Errorf("warmup length %d, want 5", len(warmup))
	}
	if len(cooldown) != 3 || cooldown[0] != 9 {
		t.Errorf("cooldown = %v, want last 3", cooldown)
	}
	if len(exercise) != 4 || exercise[0] != 5 || exercise[3] != 8 {
		t.Errorf("exercise = %v", exercise)
	}
}

func TestSplitPhasesShorterSessionMinimumCooldown(t *testing.T) {
	values := make([]int, 8)
	_, _, cooldown := SplitPhases(values, 8, 30)

	// round(5 * 8/30) = 1, floored to the 2-minute minimum.
	if len(cooldown) != 2 {
		t.Errorf("cooldown length %d, want 2", len(cooldown))
	}
}

func TestSplitPhasesLongerSession(t *testing.T) {
	values := make([]int, 30)
	warmup, exercise, cooldown := SplitPhases(values, 30, 20)

	if len(warmup) != 5 || len(cooldown) != 5 {
		t.Errorf("warmup %d cooldown %d, want 5 and 5", len(warmup), len(cooldown))
	}
	if len(exercise) != 20 {
		t.Errorf("exercise length %d, want 20", len(exercise))
	}
}

func TestWarmupScore(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   int
	}{
		{"Empty", nil, 0},
		{"All above floor", []int{100, 105, 110}, 100},
		{"None above floor", []int{80, 85, 90}, 0},
		{"Three of five above floor", []int{80, 100, 105, 110, 90}, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WarmupScore(tt.values, 97); got != tt.want {
				t.Errorf("WarmupScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExerciseScore(t *testing.T) {
	const zoneMin, zoneMax = 107, 117

	tests := []struct {
		name   string
		values []int
		want   int
	}{
		{"Empty", nil, 0},
		{"Average in zone", repeat(110, 10), 100},
		{"Slightly above ceiling", repeat(125, 10), 80},
		{"Well above ceiling", repeat(135, 10), 70},
		{"Far above ceiling", repeat(140, 10), 20},
		{"Just below floor scores full", repeat(103, 10), 100},
		{"Ten under floor", repeat(98, 10), 95},
		{"Fifteen under floor", repeat(93, 10), 80},
		{"Twenty under floor", repeat(88, 10), 70},
		{"Thirty under floor", repeat(78, 10), 20},
		{"Seventy under floor", repeat(37, 10), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExerciseScore(tt.values, zoneMin, zoneMax); got != tt.want {
				t.Errorf("ExerciseScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExerciseScoreVariabilityCap(t *testing.T) {
	// Average 110 is in zone (100), but 30 bpm swing caps at 80.
	values := []int{95, 125, 110, 110, 110}
	if got := ExerciseScore(values, 107, 117); got != 80 {
		t.Errorf("ExerciseScore = %d, want 80 with variability cap", got)
	}

	// Cap never raises a lower score.
	low := []int{60, 95, 78, 78, 79} // avg 78, deviation 29 → 20
	if got := ExerciseScore(low, 107, 117); got != 20 {
		t.Errorf("ExerciseScore = %d, want 20", got)
	}
}

func TestCooldownScore(t *testing.T) {
	const zoneMin, zoneMax = 97, 107

	tests := []struct {
		name   string
		values []int
		want   int
	}{
		{"Empty", nil, 0},
		{"Average in zone", repeat(100, 5), 100},
		{"Five over ceiling", repeat(112, 5), 100},
		{"Ten over ceiling", repeat(117, 5), 90},
		{"Fifteen over ceiling", repeat(122, 5), 80},
		{"Twenty-five over ceiling", repeat(132, 5), 60},
		{"Way over ceiling", repeat(140, 5), 40},
		{"Below floor", repeat(80, 5), 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CooldownScore(tt.values, zoneMin, zoneMax); got != tt.want {
				t.Errorf("CooldownScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreWeighting(t *testing.T) {
	zones := testZones()

	// 20-minute trace: warmup on target, exercise on target, cooldown on target.
	values := append(append(repeat(100, 5), repeat(110, 10)...), repeat(100, 5)...)
	scores := Score(pointsFrom(values), zones, 20, 20)

	if scores.Warmup != 100 || scores.Exercise != 100 || scores.Cooldown != 100 {
		t.Errorf("phase scores = %+v, want all 100", scores)
	}
	if scores.Overall != 100 {
		t.Errorf("overall = %d, want 100", scores.Overall)
	}

	// Exercise dominates: failing only warmup costs 10 points.
	values = append(append(repeat(80, 5), repeat(110, 10)...), repeat(100, 5)...)
	scores = Score(pointsFrom(values), zones, 20, 20)
	if scores.Overall != 90 {
		t.Errorf("overall = %d, want 90 (0.1*0 + 0.8*100 + 0.1*100)", scores.Overall)
	}
}

func TestRiskLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, types.RiskLevelHigh},
		{50, types.RiskLevelHigh},
		{51, types.RiskLevelModerate},
		{79, types.RiskLevelModerate},
		{79.5, types.RiskLevelModerate},
		{80, types.RiskLevelLow},
		{100, types.RiskLevelLow},
	}

	for _, tt := range tests {
		if got := RiskLevel(tt.score); got != tt.want {
			t.Errorf("RiskLevel(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestHRStats(t *testing.T) {
	maxHR, minHR, avgHR := HRStats(pointsFrom([]int{100, 120, 110}))
	if maxHR != 120 || minHR != 100 || avgHR != 110 {
		t.Errorf("stats = %d/%d/%d, want 120/100/110", maxHR, minHR, avgHR)
	}

	maxHR, minHR, avgHR = HRStats(nil)
	if maxHR != 0 || minHR != 0 || avgHR != 0 {
		t.Error("empty trace should have zero stats")
	}
}

func TestSummary(t *testing.T) {
	zones := testZones()

	s := Summary(types.RiskLevelLow, 85, zones, 140)
	if !strings.Contains(s, "Low risk level detected") {
		t.Errorf("summary missing risk level: %q", s)
	}
	if !strings.Contains(s, "85%") {
		t.Errorf("summary missing compliance: %q", s)
	}
	if !strings.Contains(s, "Excellent adherence") {
		t.Errorf("high score should praise adherence: %q", s)
	}
	if strings.Contains(s, "Warning") {
		t.Errorf("no warning expected under max permissible: %q", s)
	}

	s = Summary(types.RiskLevelHigh, 30, zones, 170)
	if !strings.Contains(s, "Warning: Maximum heart rate (170 bpm) exceeded safe limit.") {
		t.Errorf("summary missing overshoot warning: %q", s)
	}
	if !strings.Contains(s, "outside target zones") {
		t.Errorf("low score should suggest adjustment: %q", s)
	}
}
