package testutil

import (
	"io"
	"log/slog"

	"github.com/ovialab/cliniguard-server/internal/logger"
)

// MakeNoopLogger returns a logger that drops every record, for tests
// that only need a non-nil logger.
func MakeNoopLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
