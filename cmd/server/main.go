package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kreahealth/rehab-server/pkg/api"
	"github.com/kreahealth/rehab-server/pkg/bootstrap"
	"github.com/kreahealth/rehab-server/pkg/domain/baseline"
	"github.com/kreahealth/rehab-server/pkg/domain/weekly"
	"github.com/kreahealth/rehab-server/pkg/infrastructure/oauth"
	"github.com/kreahealth/rehab-server/pkg/infrastructure/sentry"
	"github.com/kreahealth/rehab-server/pkg/jobs"
	"github.com/kreahealth/rehab-server/pkg/lock"
	"github.com/kreahealth/rehab-server/pkg/orchestrator"
	"github.com/kreahealth/rehab-server/pkg/spectrum"
	"github.com/kreahealth/rehab-server/pkg/telemetry/googlefit"
	"github.com/kreahealth/rehab-server/pkg/workers"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.NewService(ctx)
	if err != nil {
		slog.Error("Service init failed", "error", err)
		os.Exit(1)
	}
	logger := slog.Default()

	if err := sentry.Init(sentry.Config{
		DSN:         os.Getenv("SENTRY_DSN"),
		Environment: os.Getenv("SENTRY_ENVIRONMENT"),
		Release:     os.Getenv("SENTRY_RELEASE"),
		ServerName:  "rehab-server",
	}, logger); err != nil {
		logger.Warn("Continuing without Sentry", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	// One fetcher per patient credential. The token probe surfaces
	// credential sentinels before any fitness API call is made; the
	// transport stack then handles mid-fetch 401s and usage stamping.
	telemetry := func(ctx context.Context, patientID string) (googlefit.Fetcher, error) {
		source := oauth.NewFirestoreTokenSource(svc, patientID)
		if _, err := source.Token(ctx); err != nil {
			return nil, err
		}
		return googlefit.NewClient(ctx, oauth.NewClientWithUsageTracking(source, svc, patientID), logger)
	}

	locks := lock.NewManager(svc.DB, logger)
	spectrumClient := spectrum.NewClient(svc.Config.SpectrumBaseURL, logger)

	orch := &orchestrator.Orchestrator{
		DB:             svc.DB,
		Locks:          locks,
		Baseline:       baseline.NewEngine(svc.DB, logger),
		Weekly:         weekly.NewEngine(svc.DB, logger),
		Spectrum:       spectrumClient,
		Pub:            svc.Pub,
		Notify:         svc.Notify,
		Store:          svc.Store,
		ArtifactBucket: svc.Config.GCSArtifactBucket,
		Telemetry:      telemetry,
		Logger:         logger,
	}

	sync := &jobs.HistoricalSync{
		DB:        svc.DB,
		Locks:     locks,
		Spectrum:  spectrumClient,
		Telemetry: telemetry,
		Pub:       svc.Pub,
		Logger:    logger,
	}

	runner := &workers.Runner{
		DB:           svc.DB,
		Orchestrator: orch,
		Sync:         sync,
		Locks:        locks,
		Logger:       logger,
	}
	runner.Start(ctx)

	server := &http.Server{
		Addr:    ":" + svc.Config.Port,
		Handler: (&api.Server{DB: svc.DB, Logger: logger}).Routes(),
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.Info("Listening", "port", svc.Config.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
