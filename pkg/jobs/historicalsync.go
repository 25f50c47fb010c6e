// Package jobs holds the periodic background jobs that run outside the
// session pipeline, chiefly the historical heart rate sync.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/domain/baseline"
	"github.com/kreahealth/rehab-server/pkg/infrastructure/pubsub"
	"github.com/kreahealth/rehab-server/pkg/lock"
	"github.com/kreahealth/rehab-server/pkg/spectrum"
	"github.com/kreahealth/rehab-server/pkg/telemetry/googlefit"
	"github.com/kreahealth/rehab-server/pkg/types"
)

const (
	// defaultChunk is the fetch window size; Google Fit aggregate calls
	// degrade on long ranges.
	defaultChunk = 6 * time.Hour

	// defaultSkipRetryDelay is how long the job waits before retrying
	// patients it skipped because a session was mid-processing.
	defaultSkipRetryDelay = 5 * time.Minute

	// spikeWindow is the context kept around each extreme reading when
	// condensing a sync batch for the Spectrum push.
	spikeWindow = 10 * time.Minute

	// condenseThreshold is the batch size above which the spike-window
	// condensing kicks in; smaller batches are pushed whole.
	condenseThreshold = 50
)

// SpectrumPusher is the slice of the Spectrum client the sync job
// needs.
type SpectrumPusher interface {
	PushHistoricalHR(ctx context.Context, patientID string, points []spectrum.HistoricalPoint) error
	PushRestingHR(ctx context.Context, patientID string, restingHR float64) error
}

// TelemetryFactory builds a telemetry fetcher bound to one patient's
// credential.
type TelemetryFactory func(ctx context.Context, patientID string) (googlefit.Fetcher, error)

// HistoricalSync backfills each connected patient's heart rate history
// from Google Fit into the reading store, then pushes a condensed view
// and a fresh resting heart rate to Spectrum.
type HistoricalSync struct {
	DB        shared.Database
	Locks     *lock.Manager
	Spectrum  SpectrumPusher
	Telemetry TelemetryFactory
	Pub       shared.Publisher
	Logger    *slog.Logger
	Clock     func() time.Time

	// ChunkSize and SkipRetryDelay default when zero.
	ChunkSize      time.Duration
	SkipRetryDelay time.Duration
}

func (h *HistoricalSync) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

func (h *HistoricalSync) chunk() time.Duration {
	if h.ChunkSize > 0 {
		return h.ChunkSize
	}
	return defaultChunk
}

func (h *HistoricalSync) skipRetryDelay() time.Duration {
	if h.SkipRetryDelay > 0 {
		return h.SkipRetryDelay
	}
	return defaultSkipRetryDelay
}

// Run performs one full sync pass. Patients with a session currently
// processing are skipped first and retried once after a delay, so the
// sync never competes with the session pipeline for a credential.
func (h *HistoricalSync) Run(ctx context.Context) error {
	patients, err := h.DB.ListConnectedPatients(ctx)
	if err != nil {
		return err
	}
	h.Logger.Info("Historical sync started", "patients", len(patients))

	var skipped []*types.PatientRecord
	synced := 0
	for _, patient := range patients {
		busy, err := h.DB.HasProcessingSessions(ctx, patient.ID)
		if err != nil {
			h.Logger.Error("Processing check failed", "patient_id", patient.ID, "error", err)
			continue
		}
		if busy {
			skipped = append(skipped, patient)
			continue
		}
		if h.syncPatient(ctx, patient) {
			synced++
		}
	}

	if len(skipped) > 0 {
		h.Logger.Info("Waiting to retry skipped patients", "count", len(skipped))
		if err := sleepCtx(ctx, h.skipRetryDelay()); err != nil {
			return err
		}
		for _, patient := range skipped {
			busy, err := h.DB.HasProcessingSessions(ctx, patient.ID)
			if err != nil || busy {
				h.Logger.Info("Patient still busy, skipping sync", "patient_id", patient.ID)
				continue
			}
			if h.syncPatient(ctx, patient) {
				synced++
			}
		}
	}

	h.publishCompleted(ctx, len(patients), synced)
	h.Logger.Info("Historical sync finished", "patients", len(patients), "synced", synced)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// syncPatient backfills one patient. Returns true when any new
// readings landed.
func (h *HistoricalSync) syncPatient(ctx context.Context, patient *types.PatientRecord) bool {
	if err := h.Locks.Acquire(ctx, patient.ID, lock.HistoricalSyncHolder); err != nil {
		if errors.Is(err, shared.ErrLockBusy) {
			h.Logger.Info("Credential busy, skipping sync", "patient_id", patient.ID)
		} else {
			h.Logger.Error("Lock acquire failed", "patient_id", patient.ID, "error", err)
		}
		return false
	}
	defer func() {
		if err := h.Locks.Release(ctx, patient.ID); err != nil {
			h.Logger.Error("Lock release failed", "patient_id", patient.ID, "error", err)
		}
	}()

	// Credential problems here are not terminal for the patient: the
	// session pipeline owns reconnect notifications, the sync just
	// moves on.
	fetcher, err := h.Telemetry(ctx, patient.ID)
	if err != nil {
		h.Logger.Warn("Telemetry unavailable, skipping sync", "patient_id", patient.ID, "error", err)
		return false
	}

	now := h.now()
	since, err := h.DB.LatestReadingTime(ctx, patient.ID)
	if err != nil {
		h.Logger.Error("Latest reading lookup failed", "patient_id", patient.ID, "error", err)
		return false
	}
	if since.IsZero() {
		since = now.Add(-h.chunk())
	}

	points := h.fetchChunks(ctx, fetcher, patient.ID, since, now)
	if len(points) == 0 {
		h.pushRestingHR(ctx, patient.ID)
		return false
	}

	records := make([]*types.HeartRateReadingRecord, 0, len(points))
	for _, p := range points {
		records = append(records, &types.HeartRateReadingRecord{
			PatientID:  patient.ID,
			RecordedAt: p.Timestamp,
			HeartRate:  p.Value,
			DataSource: "google_fit",
			CreatedAt:  now,
		})
	}
	inserted, err := h.DB.InsertReadings(ctx, records)
	if err != nil {
		h.Logger.Error("Reading insert failed", "patient_id", patient.ID, "error", err)
		return false
	}
	h.Logger.Info("Synced readings", "patient_id", patient.ID, "fetched", len(points), "inserted", inserted)

	if inserted > 0 {
		h.pushHistoricalHR(ctx, patient.ID, points)
	}
	h.pushRestingHR(ctx, patient.ID)
	return inserted > 0
}

// fetchChunks walks [since, until] in fixed windows, tolerating
// per-chunk failures and deduplicating on timestamp.
func (h *HistoricalSync) fetchChunks(ctx context.Context, fetcher googlefit.Fetcher, patientID string, since, until time.Time) []types.HeartRatePoint {
	var all []types.HeartRatePoint
	seen := make(map[int64]bool)

	for start := since; start.Before(until); start = start.Add(h.chunk()) {
		end := start.Add(h.chunk())
		if end.After(until) {
			end = until
		}
		points, err := fetcher.FetchWindow(ctx, start, end)
		if err != nil {
			h.Logger.Warn("Chunk fetch failed",
				"patient_id", patientID, "from", start, "to", end, "error", err)
			continue
		}
		for _, p := range points {
			key := p.Timestamp.UnixMilli()
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, p)
		}
	}
	return all
}

func (h *HistoricalSync) pushHistoricalHR(ctx context.Context, patientID string, points []types.HeartRatePoint) {
	batch := CondenseForPush(points)
	if len(batch) == 0 {
		return
	}
	if err := h.Spectrum.PushHistoricalHR(ctx, patientID, batch); err != nil {
		h.Logger.Error("Historical HR push failed", "patient_id", patientID, "error", err)
	}
}

func (h *HistoricalSync) pushRestingHR(ctx context.Context, patientID string) {
	readings, err := h.DB.ListReadings(ctx, patientID)
	if err != nil {
		h.Logger.Error("Reading list failed", "patient_id", patientID, "error", err)
		return
	}
	sessions, err := h.DB.ListCompletedSessions(ctx, patientID)
	if err != nil {
		h.Logger.Error("Session list failed", "patient_id", patientID, "error", err)
		return
	}
	resting, ok := baseline.RestingHeartRate(readings, sessions)
	if !ok || resting <= 0 {
		return
	}
	if err := h.Spectrum.PushRestingHR(ctx, patientID, resting); err != nil {
		h.Logger.Error("Resting HR push failed", "patient_id", patientID, "error", err)
	}
}

func (h *HistoricalSync) publishCompleted(ctx context.Context, patients, synced int) {
	event, err := pubsub.NewCloudEvent(pubsub.EventSourceHistoricalSync,
		pubsub.EventTypeHistoricalSyncCompleted, map[string]interface{}{
			"patients": patients,
			"synced":   synced,
		})
	if err != nil {
		h.Logger.Error("Failed to build sync event", "error", err)
		return
	}
	if err := h.Pub.PublishCloudEvent(ctx, shared.TopicHistoricalSyncDone, event); err != nil {
		h.Logger.Error("Failed to publish sync event", "error", err)
	}
}

// CondenseForPush shrinks a large batch to the clinically interesting
// parts: the minimum and maximum readings plus their surrounding
// windows, deduplicated and in time order. Small batches pass through
// whole.
func CondenseForPush(points []types.HeartRatePoint) []spectrum.HistoricalPoint {
	if len(points) == 0 {
		return nil
	}

	sorted := make([]types.HeartRatePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	selected := sorted
	if len(sorted) > condenseThreshold {
		minIdx, maxIdx := 0, 0
		for i, p := range sorted {
			if p.Value < sorted[minIdx].Value {
				minIdx = i
			}
			if p.Value > sorted[maxIdx].Value {
				maxIdx = i
			}
		}

		keep := make(map[int64]types.HeartRatePoint)
		for _, center := range []types.HeartRatePoint{sorted[minIdx], sorted[maxIdx]} {
			from := center.Timestamp.Add(-spikeWindow)
			to := center.Timestamp.Add(spikeWindow)
			for _, p := range sorted {
				if !p.Timestamp.Before(from) && !p.Timestamp.After(to) {
					keep[p.Timestamp.UnixMilli()] = p
				}
			}
		}

		selected = make([]types.HeartRatePoint, 0, len(keep))
		for _, p := range keep {
			selected = append(selected, p)
		}
		sort.Slice(selected, func(i, j int) bool {
			return selected[i].Timestamp.Before(selected[j].Timestamp)
		})
	}

	batch := make([]spectrum.HistoricalPoint, 0, len(selected))
	for _, p := range selected {
		batch = append(batch, spectrum.HistoricalPoint{
			HR:        p.Value,
			Timestamp: spectrum.FormatTimestamp(p.Timestamp),
		})
	}
	return batch
}
