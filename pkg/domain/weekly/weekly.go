// Package weekly maintains per-week session aggregates. Each week's
// score is the mean of the patient's three best completed sessions,
// and the cumulative score smooths week over week.
package weekly

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/types"
)

// Up to this many best sessions count toward a week's score.
const countedSessions = 3

// Cumulative blend weights: the current week dominates, the previous
// week's weekly score anchors it.
const (
	currentWeight  = 0.6
	previousWeight = 0.4
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Engine recomputes a patient's weekly aggregate after a session
// completes.
type Engine struct {
	DB     shared.Database
	Logger *slog.Logger
}

func NewEngine(db shared.Database, logger *slog.Logger) *Engine {
	return &Engine{DB: db, Logger: logger}
}

// Update recalculates the aggregate for the given week: re-marks which
// sessions count, averages the top three, and blends the cumulative
// score. A week with no completed sessions leaves the aggregate
// untouched.
func (e *Engine) Update(ctx context.Context, patientID string, week int) error {
	sessions, err := e.DB.ListWeekCompletedSessions(ctx, patientID, week)
	if err != nil {
		return fmt.Errorf("listing week %d sessions: %w", week, err)
	}
	if len(sessions) == 0 {
		return nil
	}

	// sessions arrive ordered best score first. Re-mark counted flags
	// from scratch so a better session displaces an earlier one.
	for i, s := range sessions {
		counted := i < countedSessions
		if s.IsCountedInWeekly == counted {
			continue
		}
		err := e.DB.UpdateSession(ctx, s.ID, map[string]interface{}{
			"is_counted_in_weekly": counted,
		})
		if err != nil {
			return fmt.Errorf("marking session %s: %w", s.ID, err)
		}
	}

	top := sessions
	if len(top) > countedSessions {
		top = top[:countedSessions]
	}
	sum := 0.0
	for _, s := range top {
		sum += float64(s.SessionScore)
	}
	weekly := round2(sum / float64(len(top)))

	cumulative := weekly
	if week > 1 {
		previous, err := e.DB.GetWeeklyScore(ctx, patientID, week-1)
		if err != nil {
			return fmt.Errorf("loading week %d aggregate: %w", week-1, err)
		}
		if previous != nil {
			cumulative = round2(currentWeight*weekly + previousWeight*previous.WeeklyScore)
		}
	}

	record := &types.WeeklyScoreRecord{
		PatientID:       patientID,
		WeekNumber:      week,
		WeeklyScore:     weekly,
		CumulativeScore: cumulative,
		UpdatedAt:       time.Now(),
	}
	if err := e.DB.UpsertWeeklyScore(ctx, record); err != nil {
		return fmt.Errorf("storing weekly score: %w", err)
	}

	e.Logger.Info("Updated weekly score",
		"patient_id", patientID,
		"week", week,
		"weekly_score", weekly,
		"cumulative_score", cumulative,
		"counted_sessions", len(top),
	)
	return nil
}
