// Package imputation fills per-minute gaps in a session's heart rate
// trace so downstream scoring always sees a complete timeline.
package imputation

import (
	"math"
	"sort"
	"time"

	"github.com/kreahealth/rehab-server/pkg/types"
)

// interpolationCoverageFloor is the minimum fraction of real minutes
// required before gaps are linearly interpolated. Below it the trace is
// too sparse for interpolation to mean anything and every gap gets the
// session median instead.
const interpolationCoverageFloor = 0.4

const minuteMs = int64(60 * 1000)

// Result is the imputed minute-resolution trace. Completeness is the
// fraction of minutes backed by real samples, rounded to 3 decimals.
type Result struct {
	Points       []types.HeartRatePoint
	Completeness float64
}

// Impute expands raw samples into one point per session minute. Real
// samples are floored to their minute and averaged when several land in
// the same one; missing minutes are interpolated between their nearest
// real neighbours, forward/backward filled at the edges, or set to the
// session median when coverage is too sparse.
func Impute(samples []types.HeartRatePoint, sessionStart, sessionEnd time.Time) Result {
	if len(samples) == 0 {
		return Result{}
	}

	durationMinutes := int(math.Round(float64(sessionEnd.Sub(sessionStart).Milliseconds()) / float64(minuteMs)))
	if durationMinutes <= 0 {
		return Result{}
	}

	// Session start floored to its minute so expected timestamps sit on
	// exact minute boundaries.
	roundedStart := sessionStart.UnixMilli() / minuteMs * minuteMs

	// Bucket samples per minute, averaging duplicates.
	buckets := make(map[int64][]int)
	rawValues := make([]int, 0, len(samples))
	for _, s := range samples {
		minute := s.Timestamp.UnixMilli() / minuteMs * minuteMs
		buckets[minute] = append(buckets[minute], s.Value)
		rawValues = append(rawValues, s.Value)
	}

	averaged := make(map[int64]float64, len(buckets))
	for minute, values := range buckets {
		sum := 0
		for _, v := range values {
			sum += v
		}
		averaged[minute] = float64(sum) / float64(len(values))
	}

	medianHR := Median(rawValues)
	coverage := float64(len(averaged)) / float64(durationMinutes)

	expected := make([]int64, durationMinutes)
	for i := range expected {
		expected[i] = roundedStart + int64(i)*minuteMs
	}

	points := make([]types.HeartRatePoint, 0, durationMinutes)
	realCount := 0
	for index, minute := range expected {
		if value, ok := averaged[minute]; ok {
			points = append(points, types.HeartRatePoint{
				Timestamp: time.UnixMilli(minute),
				Value:     int(math.Round(value)),
			})
			realCount++
			continue
		}

		var imputedValue int
		if coverage < interpolationCoverageFloor {
			imputedValue = medianHR
		} else {
			prevIndex, nextIndex := -1, -1
			var prevValue, nextValue float64
			for i := index - 1; i >= 0; i-- {
				if v, ok := averaged[expected[i]]; ok {
					prevIndex, prevValue = i, v
					break
				}
			}
			for i := index + 1; i < len(expected); i++ {
				if v, ok := averaged[expected[i]]; ok {
					nextIndex, nextValue = i, v
					break
				}
			}

			switch {
			case prevIndex != -1 && nextIndex != -1:
				fraction := float64(index-prevIndex) / float64(nextIndex-prevIndex)
				imputedValue = int(math.Round(prevValue + (nextValue-prevValue)*fraction))
			case prevIndex != -1:
				imputedValue = int(math.Round(prevValue))
			case nextIndex != -1:
				imputedValue = int(math.Round(nextValue))
			default:
				imputedValue = medianHR
			}
		}

		points = append(points, types.HeartRatePoint{
			Timestamp: time.UnixMilli(minute),
			Value:     imputedValue,
			Imputed:   true,
		})
	}

	completeness := float64(realCount) / float64(durationMinutes)
	return Result{
		Points:       points,
		Completeness: math.Round(completeness*1000) / 1000,
	}
}

// Median returns the middle value of the set, averaging the two middle
// values for even-sized input. Returns 0 for an empty set.
func Median(values []int) int {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return int(math.Round(float64(sorted[mid-1]+sorted[mid]) / 2))
	}
	return sorted[mid]
}
