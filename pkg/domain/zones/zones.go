// Package zones computes the personalised heart rate zones a patient
// trains in during a given week of their rehab regime.
package zones

import (
	"math"

	"github.com/kreahealth/rehab-server/pkg/types"
)

// weeklyPercentages is the percent of max permissible HR targeted in
// each regime week, indexed by week number - 1.
var weeklyPercentages = []int{70, 71, 71, 72, 73, 73, 74, 75, 75, 76, 77, 78}

// Intensity reductions for cardiac medication and function.
const (
	reductionBetaBlockers = 15
	reductionLowEF        = 10
	reductionBoth         = 20
)

// Profile is the subset of patient data the zone computation needs.
type Profile struct {
	Age                 int
	OnBetaBlockers      bool
	LowEjectionFraction bool
}

// SessionDuration returns the planned session length in minutes for a
// regime week. Week 1 is 20 minutes, each later week adds one.
func SessionDuration(weekNumber int) int {
	return 19 + weekNumber
}

// Calculate derives the full zone set for a patient in a given week.
func Calculate(p Profile, weekNumber int) *types.ZoneSet {
	maxPermissibleHR := 220 - p.Age

	percentage := weeklyPercentages[0]
	if weekNumber >= 1 && weekNumber <= len(weeklyPercentages) {
		percentage = weeklyPercentages[weekNumber-1]
	}

	switch {
	case p.OnBetaBlockers && p.LowEjectionFraction:
		percentage -= reductionBoth
	case p.OnBetaBlockers:
		percentage -= reductionBetaBlockers
	case p.LowEjectionFraction:
		percentage -= reductionLowEF
	}

	targetHR := int(math.Round(float64(maxPermissibleHR) * float64(percentage) / 100))

	exerciseZoneMax := targetHR + 5

	return &types.ZoneSet{
		MaxPermissibleHR: maxPermissibleHR,
		TargetHR:         targetHR,
		WarmupZoneMin:    targetHR - 15,
		WarmupZoneMax:    targetHR - 5,
		ExerciseZoneMin:  targetHR - 5,
		ExerciseZoneMax:  exerciseZoneMax,
		CooldownZoneMin:  exerciseZoneMax - 20,
		CooldownZoneMax:  exerciseZoneMax - 10,
		SessionDuration:  SessionDuration(weekNumber),
	}
}

// WithinSafeLimits reports whether a heart rate sample is plausible and
// under the patient's max permissible HR.
func WithinSafeLimits(heartRate, maxPermissibleHR int) bool {
	const minSafeHR = 30
	const maxSafeHR = 250
	return heartRate >= minSafeHR && heartRate <= maxSafeHR && heartRate <= maxPermissibleHR
}
