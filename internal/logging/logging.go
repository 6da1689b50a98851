// Package logging provides zerolog-based structured logging for tfmodel.
//
// Loggers travel through context.Context so that library code can log with
// the caller's configuration without holding a logger field. Every CLI
// invocation and HTTP request gets a ULID trace ID attached to its context.
package logging

import (
	"context"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Format names accepted by Config.Format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// traceIDKey is a private context key type to avoid collisions.
type traceIDKey struct{}

// Config controls logger construction.
type Config struct {
	// Level is a zerolog level name ("debug", "info", "warn", "error").
	// Invalid or empty values fall back to info.
	Level string

	// Format selects console or JSON output. Empty means auto: console when
	// stderr is a terminal, JSON otherwise.
	Format string

	// File, when non-empty, appends JSON logs to the given path in addition
	// to the primary writer.
	File string
}

// Result holds the constructed logger and any file handle that must be
// closed when the process is done logging.
type Result struct {
	Logger    zerolog.Logger
	file      *os.File
	UsingFile bool
	FilePath  string
}

// Close releases the log file handle, if any.
func (r *Result) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// NewLogger builds a zerolog.Logger from cfg.
//
// The primary writer is stderr, rendered through zerolog.ConsoleWriter when
// the effective format is console. When cfg.File is set the logger also
// appends raw JSON lines to that file; a file open failure is not fatal and
// leaves Result.UsingFile false.
func NewLogger(cfg Config) Result {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	format := cfg.Format
	if format == "" {
		format = FormatJSON
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = FormatConsole
		}
	}

	var primary io.Writer = os.Stderr
	if format == FormatConsole {
		primary = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	result := Result{}
	writers := []io.Writer{primary}
	if cfg.File != "" {
		f, openErr := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if openErr == nil {
			writers = append(writers, f)
			result.file = f
			result.UsingFile = true
			result.FilePath = cfg.File
		}
	}

	out := writers[0]
	if len(writers) > 1 {
		out = zerolog.MultiLevelWriter(writers...)
	}

	result.Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return result
}

// ComponentLogger returns a child logger tagged with a component name.
func ComponentLogger(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// FromContext returns the logger stored in ctx, or a disabled logger when
// none was attached. Library code should always obtain its logger this way.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// ContextWithLogger attaches log to ctx for retrieval via FromContext.
func ContextWithLogger(ctx context.Context, log zerolog.Logger) context.Context {
	return log.WithContext(ctx)
}

// NewTraceID generates a ULID suitable for correlating log lines across one
// logical operation.
func NewTraceID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0) //nolint:gosec // Trace IDs are not security sensitive.
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ContextWithTraceID stores a trace ID in ctx.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace ID stored in ctx, or empty string.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// GetOrGenerateTraceID returns the context's trace ID, generating a fresh
// one when the context carries none.
func GetOrGenerateTraceID(ctx context.Context) string {
	if id := TraceIDFromContext(ctx); id != "" {
		return id
	}
	return NewTraceID()
}
