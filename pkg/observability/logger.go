package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plugin-portal/pkg/contextkeys"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger writes JSON lines for the HTTP edge: access lines, panics, startup
// and shutdown.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a JSON logger writing to output, stdout when nil
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level.slogLevel()})
	return &Logger{logger: slog.New(handler)}
}

// NewLogrus returns a JSON logrus logger at the same level for the services
// that log workflow steps.
func NewLogrus(level LogLevel, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(level.logrusLevel())
	return l
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With(key, value)}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{logger: l.logger.With(args...)}
}

// WithError adds an error to the logger context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(message string) { l.logger.Debug(message) }
func (l *Logger) Info(message string)  { l.logger.Info(message) }
func (l *Logger) Warn(message string)  { l.logger.Warn(message) }
func (l *Logger) Error(message string) { l.logger.Error(message) }

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// RequestFields holds the fields inner handlers learn about a request after
// the access logger has started: the caller, their role, the plugin or
// account being addressed. Values set later replace earlier ones.
type RequestFields struct {
	mu     sync.Mutex
	keys   []string
	values map[string]interface{}
}

type requestFieldsKey struct{}

// WithRequestFields attaches an empty field set to ctx
func WithRequestFields(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestFieldsKey{}, &RequestFields{values: make(map[string]interface{})})
}

// AddRequestField records key on the request's field set. Without one it does nothing.
func AddRequestField(ctx context.Context, key string, value interface{}) {
	f, ok := ctx.Value(requestFieldsKey{}).(*RequestFields)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, seen := f.values[key]; !seen {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f *RequestFields) apply(l *Logger) *Logger {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.keys) == 0 {
		return l
	}
	args := make([]interface{}, 0, len(f.keys)*2)
	for _, k := range f.keys {
		args = append(args, k, f.values[k])
	}
	return &Logger{logger: l.logger.With(args...)}
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return contextkeys.WithLogger(ctx, logger)
}

// GetLogger retrieves the logger from context
func GetLogger(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextkeys.LoggerKey).(*Logger); ok {
		return logger
	}
	return NewLogger(InfoLevel, os.Stdout)
}

// FromContext returns the request logger carrying the request id and any
// request fields recorded so far.
func FromContext(ctx context.Context) *Logger {
	logger := GetLogger(ctx)
	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		logger = logger.WithField("request_id", requestID)
	}
	if f, ok := ctx.Value(requestFieldsKey{}).(*RequestFields); ok {
		logger = f.apply(logger)
	}
	return logger
}
