package imputation

import (
	"testing"
	"time"

	"github.com/kreahealth/rehab-server/pkg/types"
)

func minute(base time.Time, offset int) time.Time {
	return base.Add(time.Duration(offset) * time.Minute)
}

func sample(ts time.Time, value int) types.HeartRatePoint {
	return types.HeartRatePoint{Timestamp: ts, Value: value}
}

func TestImputeEmptyInput(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	result := Impute(nil, start, start.Add(20*time.Minute))

	if len(result.Points) != 0 {
		t.Errorf("got %d points, want 0", len(result.Points))
	}
	if result.Completeness != 0 {
		t.Errorf("completeness = %v, want 0", result.Completeness)
	}
}

func TestImputeFullCoverage(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	var samples []types.HeartRatePoint
	for i := 0; i < 10; i++ {
		samples = append(samples, sample(minute(start, i), 100+i))
	}

	result := Impute(samples, start, start.Add(10*time.Minute))

	if len(result.Points) != 10 {
		t.Fatalf("got %d points, want 10", len(result.Points))
	}
	if result.Completeness != 1 {
		t.Errorf("completeness = %v, want 1", result.Completeness)
	}
	for i, p := range result.Points {
		if p.Imputed {
			t.Errorf("point %d marked imputed", i)
		}
		if p.Value != 100+i {
			t.Errorf("point %d value %d, want %d", i, p.Value, 100+i)
		}
	}
}

func TestImputeLinearInterpolation(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	// Minutes 0 and 4 present, 1-3 missing. Coverage 6/10 >= 40% so the
	// gap is interpolated between 100 and 120.
	samples := []types.HeartRatePoint{
		sample(minute(start, 0), 100),
		sample(minute(start, 4), 120),
		sample(minute(start, 5), 120),
		sample(minute(start, 6), 120),
		sample(minute(start, 7), 120),
		sample(minute(start, 8), 120),
	}

	result := Impute(samples, start, start.Add(10*time.Minute))

	wantGap := []int{105, 110, 115}
	for i, want := range wantGap {
		p := result.Points[i+1]
		if !p.Imputed {
			t.Errorf("minute %d should be imputed", i+1)
		}
		if p.Value != want {
			t.Errorf("minute %d value %d, want %d", i+1, p.Value, want)
		}
	}

	// Trailing minute 9 has no next neighbour: forward fill from 120.
	if result.Points[9].Value != 120 || !result.Points[9].Imputed {
		t.Errorf("minute 9 = %+v, want imputed 120", result.Points[9])
	}

	if result.Completeness != 0.6 {
		t.Errorf("completeness = %v, want 0.6", result.Completeness)
	}
}

func TestImputeSparseCoverageUsesMedian(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	// 2 of 10 minutes → coverage 20%, below the interpolation floor.
	samples := []types.HeartRatePoint{
		sample(minute(start, 0), 90),
		sample(minute(start, 9), 110),
	}

	result := Impute(samples, start, start.Add(10*time.Minute))

	median := Median([]int{90, 110})
	for i := 1; i < 9; i++ {
		if result.Points[i].Value != median {
			t.Errorf("minute %d value %d, want median %d", i, result.Points[i].Value, median)
		}
	}
	if result.Completeness != 0.2 {
		t.Errorf("completeness = %v, want 0.2", result.Completeness)
	}
}

func TestImputeAveragesDuplicateMinutes(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	// Three samples inside minute 0 average to 101.
	samples := []types.HeartRatePoint{
		sample(start.Add(5*time.Second), 100),
		sample(start.Add(20*time.Second), 101),
		sample(start.Add(40*time.Second), 102),
		sample(minute(start, 1), 105),
	}

	result := Impute(samples, start, start.Add(2*time.Minute))

	if len(result.Points) != 2 {
		t.Fatalf("got %d points, want 2", len(result.Points))
	}
	if result.Points[0].Value != 101 {
		t.Errorf("averaged minute value %d, want 101", result.Points[0].Value)
	}
	if result.Points[0].Imputed {
		t.Error("averaged minute should count as real data")
	}
}

func TestImputeFloorsStartToMinute(t *testing.T) {
	// Session started at 09:00:45; points land on 09:00, 09:01, ...
	start := time.Date(2026, 3, 10, 9, 0, 45, 0, time.UTC)
	samples := []types.HeartRatePoint{sample(start, 100)}

	result := Impute(samples, start, start.Add(2*time.Minute))

	want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if !result.Points[0].Timestamp.Equal(want) {
		t.Errorf("first point at %v, want %v", result.Points[0].Timestamp, want)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   int
	}{
		{"Empty", nil, 0},
		{"Single", []int{85}, 85},
		{"Odd count", []int{110, 90, 100}, 100},
		{"Even count averages middle pair", []int{90, 100, 110, 120}, 105},
		{"Even count rounds half up", []int{100, 101}, 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.values); got != tt.want {
				t.Errorf("Median(%v) = %d, want %d", tt.values, got, tt.want)
			}
		})
	}
}
