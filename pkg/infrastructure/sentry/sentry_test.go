package sentry

import (
	"io"
	"log/slog"
	"testing"
)

func TestInitWithoutDSNIsDisabledNotFatal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Init(Config{}, logger); err != nil {
		t.Fatalf("empty DSN must disable reporting, got error: %v", err)
	}
}

func TestCaptureExceptionIgnoresNil(t *testing.T) {
	// Must be a no-op even before Init has run.
	CaptureException(nil, map[string]interface{}{"worker": "retry"}, nil)
}
