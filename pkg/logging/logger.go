// Package logging provides structured logging for stagehand using zerolog.
// Console output is used on terminals and structured JSON everywhere else.
//
// Commands scope a logger to the draft they touch and hand it down through
// the context:
//
//	ctx = logging.WithLogger(ctx, logger)
//	ctx = logging.WithSession(ctx, "po-42")
//	logging.FromContext(ctx).Info().Int("changes", 3).Msg("Submitted")
package logging

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/agentstation/stagehand/pkg/constants"
)

var defaultLogger atomic.Pointer[zerolog.Logger]

func init() {
	logger := NewLoggerFromConfig(&Config{
		Level:  envLevel(),
		Format: "auto",
		Output: "stderr",
	})
	defaultLogger.Store(&logger)
}

// envLevel reads STAGEHAND_LOG_LEVEL, then LOG_LEVEL. DEBUG=1 means debug.
func envLevel() string {
	for _, key := range []string{constants.EnvPrefix + "_LOG_LEVEL", "LOG_LEVEL"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if os.Getenv("DEBUG") != "" {
		return "debug"
	}
	return "info"
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger, including zerolog's global
// log.Logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger.Store(&logger)
	log.Logger = logger
}

// New creates a JSON logger writing to w at the global level.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(zerolog.GlobalLevel()).
		With().
		Timestamp().
		Logger()
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
