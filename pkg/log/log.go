package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// EnvLevel is consulted when no level is configured explicitly.
const EnvLevel = "FOUNDRY_LOG_LEVEL"

// base is the process logger every scoped logger derives from. Until
// Setup runs it is a no-op, so packages can log unconditionally.
var base = zerolog.Nop()

// Options configure the process logger.
type Options struct {
	// Level filters by severity: debug, info, warn, or error. When
	// empty, the FOUNDRY_LOG_LEVEL environment variable applies, then
	// info.
	Level string

	// Console switches from the default JSON output to a human-readable
	// console format.
	Console bool

	// Writer receives the log stream. Defaults to stderr.
	Writer io.Writer
}

// Setup initializes the process logger. An unknown level is an error
// so the CLI can surface it instead of silently logging at the wrong
// severity.
func Setup(opts Options) error {
	level := opts.Level
	if level == "" {
		level = os.Getenv(EnvLevel)
	}
	if level == "" {
		level = zerolog.InfoLevel.String()
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	base = zerolog.New(w).Level(parsed).With().Timestamp().Logger()
	return nil
}

// Component returns a logger scoped to one engine component
// (executor, sandbox, api, ...).
func Component(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// Request returns a logger scoped to one invocation request. Every
// line a request produces carries its id so concurrent requests can be
// untangled in the stream.
func Request(requestID string) zerolog.Logger {
	return base.With().Str("request_id", requestID).Logger()
}

// Sandbox returns a logger scoped to one sandbox of a request.
func Sandbox(requestID, name string) zerolog.Logger {
	return base.With().
		Str("request_id", requestID).
		Str("sandbox", name).
		Logger()
}
