//go:generate mockgen -source=logger.go -destination=logger_mock.go -package=logger
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"jigctl/internal/config"
)

const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
	FatalLevel = "fatal"
	PanicLevel = "panic"
	TraceLevel = "trace"

	ConsoleFormat = "console"
	JSONFormat    = "json"

	TimeFormat = "02.01.2006 15:04:05"
)

// Logger is the application-wide logging interface, wrapping zerolog so call
// sites never import it directly.
type Logger interface {
	Debug() Event
	Info() Event
	Warn() Event
	Error() Event
	Fatal() Event
	WithComponent(name string) Logger
}

// Event is a single in-flight log line being built up with fields.
type Event interface {
	Msg(msg string)
	Msgf(format string, v ...interface{})
	Str(key, value string) Event
	Int(key string, value int) Event
	Dur(key string, value time.Duration) Event
	Err(err error) Event
}

// zerologEvent wraps zerolog.Event to implement our Event interface.
type zerologEvent struct {
	event    *zerolog.Event
	fatal    bool
	reportTo func(msg string)
}

func (e *zerologEvent) Msg(msg string) {
	if e.fatal && e.reportTo != nil {
		e.reportTo(msg)
	}

	e.event.Msg(msg)
}

func (e *zerologEvent) Msgf(format string, v ...interface{}) {
	if e.fatal && e.reportTo != nil {
		e.reportTo(fmt.Sprintf(format, v...))
	}

	e.event.Msgf(format, v...)
}

func (e *zerologEvent) Str(key, value string) Event {
	return &zerologEvent{event: e.event.Str(key, value), fatal: e.fatal, reportTo: e.reportTo}
}

func (e *zerologEvent) Int(key string, value int) Event {
	return &zerologEvent{event: e.event.Int(key, value), fatal: e.fatal, reportTo: e.reportTo}
}

func (e *zerologEvent) Dur(key string, value time.Duration) Event {
	return &zerologEvent{event: e.event.Dur(key, value), fatal: e.fatal, reportTo: e.reportTo}
}

func (e *zerologEvent) Err(err error) Event {
	return &zerologEvent{event: e.event.Err(err), fatal: e.fatal, reportTo: e.reportTo}
}

// NoopEvent is a simple no-op implementation, returned by NoOp().
type NoopEvent struct{}

func (n *NoopEvent) Msg(msg string)                            {}
func (n *NoopEvent) Msgf(format string, v ...interface{})      {}
func (n *NoopEvent) Str(key, value string) Event               { return n }
func (n *NoopEvent) Int(key string, value int) Event           { return n }
func (n *NoopEvent) Dur(key string, value time.Duration) Event { return n }
func (n *NoopEvent) Err(err error) Event                       { return n }

// AppLogger is a Logger implementation backed by zerolog.
type AppLogger struct {
	log       zerolog.Logger
	sentryHub *sentry.Hub
}

// NewLogger creates a new logger instance from config.
func NewLogger(cfg *config.Config) Logger {
	return NewLoggerWithOutput(cfg, nil)
}

// NewLoggerWithOutput creates a logger writing to a custom output, or the
// default console/JSON writer when output is nil.
func NewLoggerWithOutput(cfg *config.Config, output io.Writer) Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339

	level := getLogLevel(cfg.Logging.Level)

	if output == nil {
		switch cfg.Logging.Format {
		case JSONFormat:
			output = os.Stdout
		default:
			output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: TimeFormat}
		}
	}

	zl := zerolog.New(output).Level(level).With().Timestamp().Str("version", cfg.Version).Logger()

	var hub *sentry.Hub
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if client, err := sentry.NewClient(sentry.ClientOptions{Dsn: dsn}); err == nil {
			hub = sentry.NewHub(client, sentry.NewScope())
		}
	}

	return &AppLogger{log: zl, sentryHub: hub}
}

// Debug returns a debug level Event.
func (l *AppLogger) Debug() Event { return &zerologEvent{event: l.log.Debug()} }

// Info returns an info level Event.
func (l *AppLogger) Info() Event { return &zerologEvent{event: l.log.Info()} }

// Warn returns a warn level Event.
func (l *AppLogger) Warn() Event { return &zerologEvent{event: l.log.Warn()} }

// Error returns an error level Event.
func (l *AppLogger) Error() Event { return &zerologEvent{event: l.log.Error()} }

// Fatal returns an Event logged at error level; it does not exit the
// process. If SENTRY_DSN is configured, the message is also reported to
// Sentry (§7 Fatal error kind).
func (l *AppLogger) Fatal() Event {
	e := &zerologEvent{event: l.log.Error()}

	if l.sentryHub != nil {
		e.fatal = true
		e.reportTo = func(msg string) {
			l.sentryHub.CaptureMessage(msg)
		}
	}

	return e
}

// WithComponent returns a Logger tagging every line with a "component" field.
func (l *AppLogger) WithComponent(name string) Logger {
	return &AppLogger{log: l.log.With().Str("component", name).Logger(), sentryHub: l.sentryHub}
}

// NoOp returns a Logger that discards everything; used in tests.
func NoOp() Logger {
	return &noopLogger{}
}

type noopLogger struct{}

func (n *noopLogger) Debug() Event                { return &NoopEvent{} }
func (n *noopLogger) Info() Event                  { return &NoopEvent{} }
func (n *noopLogger) Warn() Event                  { return &NoopEvent{} }
func (n *noopLogger) Error() Event                 { return &NoopEvent{} }
func (n *noopLogger) Fatal() Event                 { return &NoopEvent{} }
func (n *noopLogger) WithComponent(string) Logger { return n }

// getLogLevel converts string level to zerolog.Level.
func getLogLevel(level string) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case FatalLevel:
		return zerolog.FatalLevel
	case PanicLevel:
		return zerolog.PanicLevel
	case TraceLevel:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}
