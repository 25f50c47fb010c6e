package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"

	shared "github.com/kreahealth/rehab-server/pkg"
	"github.com/kreahealth/rehab-server/pkg/infrastructure/database"
	"github.com/kreahealth/rehab-server/pkg/infrastructure/notifications"
	infrapubsub "github.com/kreahealth/rehab-server/pkg/infrastructure/pubsub"
	infrastorage "github.com/kreahealth/rehab-server/pkg/infrastructure/storage"
)

// Config holds standard configuration for all services
type Config struct {
	ProjectID           string
	Port                string
	EnablePublish       bool
	EnableNotifications bool
	GCSArtifactBucket   string
	SpectrumBaseURL     string
	GoogleClientID      string
	GoogleClientSecret  string
}

// Service holds initialized dependencies
type Service struct {
	DB     shared.Database
	Store  shared.BlobStore
	Pub    shared.Publisher
	Notify shared.NotificationService
	Config *Config
}

// LoadConfig reads configuration from environment variables
func LoadConfig() *Config {
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		projectID = shared.ProjectID // Fallback
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	spectrumURL := os.Getenv("SPECTRUM_BASE_URL")
	if spectrumURL == "" {
		spectrumURL = "https://sandbox.spectrum-api.healthkon.com"
	}

	return &Config{
		ProjectID:           projectID,
		Port:                port,
		EnablePublish:       os.Getenv("ENABLE_PUBLISH") == "true",
		EnableNotifications: os.Getenv("ENABLE_NOTIFICATIONS") == "true",
		GCSArtifactBucket:   os.Getenv("GCS_ARTIFACT_BUCKET"),
		SpectrumBaseURL:     spectrumURL,
		GoogleClientID:      os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  os.Getenv("GOOGLE_CLIENT_SECRET"),
	}
}

// GetSlogHandlerOptions returns standard handler options for GCP
func GetSlogHandlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Map standard keys to Cloud Logging keys
			if a.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: a.Value}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{Key: "severity", Value: a.Value}
			}
			return a
		},
	}
}

// ComponentHandler wraps a slog.Handler to prepend [component] to the message
type ComponentHandler struct {
	slog.Handler
	component string
}

// WithGroup implements slog.Handler
func (h *ComponentHandler) WithGroup(name string) slog.Handler {
	return &ComponentHandler{
		Handler:   h.Handler.WithGroup(name),
		component: h.component,
	}
}

// WithAttrs implements slog.Handler
func (h *ComponentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newComp := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			newComp = a.Value.String()
		}
	}
	return &ComponentHandler{
		Handler:   h.Handler.WithAttrs(attrs),
		component: newComp,
	}
}

// Handle implements slog.Handler
func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	comp := h.component

	// Check if component is overridden in the record attributes
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			comp = a.Value.String()
			return false // stop
		}
		return true
	})

	if comp != "" {
		newMsg := fmt.Sprintf("[%s] %s", comp, r.Message)
		// Create a new record with modified message
		// We use r.Time, r.Level, and r.PC to preserve original metadata
		newRecord := slog.NewRecord(r.Time, r.Level, newMsg, r.PC)

		// Keep the 'component' attribute in the structured payload as well
		r.Attrs(func(a slog.Attr) bool {
			newRecord.AddAttrs(a)
			return true
		})
		r = newRecord
	}

	return h.Handler.Handle(ctx, r)
}

// InitLogger configures structured logging with Cloud Logging compatible keys
func InitLogger() {
	opts := GetSlogHandlerOptions(slog.LevelInfo)
	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(&ComponentHandler{Handler: handler})
	slog.SetDefault(logger)
}

// NewLogger creates a configured logger instance
func NewLogger(serviceName string, isDev bool) *slog.Logger {
	logLevelStr := os.Getenv("LOG_LEVEL")
	var level slog.Level
	switch strings.ToLower(logLevelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := GetSlogHandlerOptions(level)
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(&ComponentHandler{Handler: handler}).With("service", serviceName)
}

// NewService initializes all standard dependencies
func NewService(ctx context.Context) (*Service, error) {
	InitLogger()
	cfg := LoadConfig()

	slog.Info("Initializing service", "project_id", cfg.ProjectID)

	// Firestore
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("Firestore init failed", "error", err)
		return nil, fmt.Errorf("firestore init: %w", err)
	}

	// Pub/Sub
	var pubAdapter shared.Publisher
	if cfg.EnablePublish {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			slog.Error("PubSub init failed", "error", err)
			return nil, fmt.Errorf("pubsub init: %w", err)
		}
		pubAdapter = &infrapubsub.PubSubAdapter{Client: psClient}
		slog.Info("Pub/Sub: REAL (ENABLE_PUBLISH=true)")
	} else {
		pubAdapter = &infrapubsub.LogPublisher{}
		slog.Info("Pub/Sub: MOCK (LogPublisher)")
	}

	// Notifications
	var notifier shared.NotificationService
	if cfg.EnableNotifications {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID})
		if err != nil {
			slog.Error("Firebase init failed", "error", err)
			return nil, fmt.Errorf("firebase init: %w", err)
		}
		notifier, err = notifications.NewFCMAdapter(ctx, app, fsClient)
		if err != nil {
			slog.Error("FCM init failed", "error", err)
			return nil, fmt.Errorf("fcm init: %w", err)
		}
		slog.Info("Notifications: REAL (ENABLE_NOTIFICATIONS=true)")
	} else {
		notifier = &notifications.LogNotifier{}
		slog.Info("Notifications: MOCK (LogNotifier)")
	}

	// Storage
	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		slog.Error("Storage init failed", "error", err)
		return nil, fmt.Errorf("storage init: %w", err)
	}

	return &Service{
		DB:     database.NewFirestoreAdapter(fsClient),
		Pub:    pubAdapter,
		Store:  &infrastorage.StorageAdapter{Client: gcsClient},
		Notify: notifier,
		Config: cfg,
	}, nil
}
