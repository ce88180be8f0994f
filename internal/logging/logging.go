// Package logging holds the process-wide zap logger. Engine components take
// an optional *zap.Logger and fall back to a named child of this one.
package logging

import (
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	rerrors "parcel-rate/internal/errors"
)

// Config contains logging configuration
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level"`

	// Format is json or console
	Format string `json:"format"`

	// Output is stdout, stderr or a file path
	Output string `json:"output"`

	// Development adds stack traces to errors
	Development bool `json:"development"`
}

// DefaultConfig logs warnings and above to stderr
func DefaultConfig() Config {
	return Config{
		Level:  "warn",
		Format: "console",
		Output: "stderr",
	}
}

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
	if l, err := New(DefaultConfig()); err == nil {
		global.Store(l)
	}
}

func sink(output string) (*os.File, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, rerrors.Config("cannot open log output", err).WithContext("output", output)
	}
	return f, nil
}

func encoder(format string, out *os.File) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder

	if format != "console" {
		return zapcore.NewJSONEncoder(ec)
	}

	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	if isatty.IsTerminal(out.Fd()) {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(ec)
}

// New builds a logger from cfg without touching the global one.
// An unparseable level falls back to warn.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.WarnLevel
	}

	out, err := sink(cfg.Output)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder(cfg.Format, out), zapcore.Lock(out), level)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.New(core, opts...), nil
}

// Initialize replaces the global logger
func Initialize(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	global.Store(l)
	return nil
}

// L returns the global logger
func L() *zap.Logger {
	return global.Load()
}

// Sync flushes the global logger
func Sync() {
	_ = L().Sync()
}

// Named returns a child of the global logger for one component
// (zone, surcharge, engine, ...).
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// OrDefault returns l, or Named(component) when l is nil.
func OrDefault(l *zap.Logger, component string) *zap.Logger {
	if l != nil {
		return l
	}
	return Named(component)
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }
