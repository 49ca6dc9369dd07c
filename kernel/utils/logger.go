package utils

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message, mirroring zap's own
// levels so call sites never need to import zapcore directly.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Field is a key-value pair attached to a log line. Kept under the
// teacher's own name so call sites read the same (utils.String(...),
// utils.Err(...)) even though the implementation is now a zap.Field.
type Field = zap.Field

// Logger provides structured, component-scoped logging. Generalizes the
// teacher's hand-rolled logger onto zap, keeping the teacher's
// construction and call shape (NewLogger/DefaultLogger/With/Debug/...).
type Logger struct {
	z *zap.Logger
}

// LoggerConfig configures a logger instance.
type LoggerConfig struct {
	Level     LogLevel
	Component string
	Colorize  bool
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(config LoggerConfig) *Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	if config.Colorize {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		config.Level.zapLevel(),
	)
	z := zap.New(core)
	if config.Component != "" {
		z = z.Named(config.Component)
	}
	return &Logger{z: z}
}

// DefaultLogger creates a logger with sensible defaults for the named
// component.
func DefaultLogger(component string) *Logger {
	return NewLogger(LoggerConfig{Level: INFO, Component: component, Colorize: true})
}

// With returns a new logger with the given fields permanently attached.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

// Fatal logs at fatal level and terminates the process, same as the
// teacher's Logger.Fatal.
func (l *Logger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, fields...) }

// Sync flushes buffered log entries.
func (l *Logger) Sync() error { return l.z.Sync() }

// Field constructors, kept under the teacher's naming so call sites are
// unchanged.
func String(key, value string) Field      { return zap.String(key, value) }
func Int(key string, value int) Field     { return zap.Int(key, value) }
func Int64(key string, value int64) Field { return zap.Int64(key, value) }
func Uint64(key string, v uint64) Field   { return zap.Uint64(key, v) }
func Float64(key string, v float64) Field { return zap.Float64(key, v) }
func Bool(key string, v bool) Field       { return zap.Bool(key, v) }
func Err(err error) Field                 { return zap.Error(err) }
func Duration(key string, v time.Duration) Field {
	return zap.Duration(key, v)
}
func Any(key string, v interface{}) Field { return zap.Any(key, v) }

// Global logger instance, used by the package-level convenience functions
// below for call sites that have no scheduler/logger handle at hand yet
// (e.g. package init, early boot).
var globalLogger = DefaultLogger("kernel")

// SetGlobalLogger sets the global logger instance.
func SetGlobalLogger(logger *Logger) { globalLogger = logger }

func Debug(msg string, fields ...Field) { globalLogger.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { globalLogger.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { globalLogger.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { globalLogger.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { globalLogger.Fatal(msg, fields...) }
