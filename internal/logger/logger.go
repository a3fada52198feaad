// Package logger provides leveled logging for certglue.
//
// The logger package writes operational logs to stderr, separate from the
// user-facing output that goes to stdout. It is a thin package-level facade
// over a zap core so call sites stay short while the output stays structured.
//
// # Log Levels
//
// Four log levels are supported, in order of severity:
//   - Debug: Detailed information for debugging (certbot output, argv)
//   - Info: Loop transitions, launches, sleeps
//   - Warn: Recoverable failures that trigger a retry
//   - Error: Failures that need an operator
//
// # Initialization
//
//	logger.Init(verbose)            // verbose=true enables Debug level
//	logger.SetFormat(logger.FormatJSON)
//
// By default (verbose=false) Info and above are shown, since the supervisor
// is a long-running process whose transitions are worth keeping.
//
// # Usage
//
//	logger.Info("Started HAProxy (pid = %d)", pid)
//	logger.WarnFields("Renewal failed", map[string]interface{}{
//	    "exit_status": 1,
//	    "retry_in":    "1m0s",
//	})
//
// # Output Format
//
// Console (default):
//
//	2026-02-03T10:30:45.000Z	INFO	Sleeping	{"duration": "24h0m0s"}
//
// JSON:
//
//	{"level":"INFO","ts":"2026-02-03T10:30:45.000Z","msg":"Sleeping","duration":"24h0m0s"}
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents a logging severity level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zap() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// ParseLevel converts a level name (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s)
}

// Format selects the zap encoder.
type Format string

// Supported output formats.
const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Logger handles leveled logging with thread-safe output.
type Logger struct {
	mu     sync.Mutex
	level  Level
	atom   zap.AtomicLevel
	output io.Writer
	format Format
	zl     *zap.Logger
}

// Global logger instance.
var std = newLogger(os.Stderr, LevelInfo, FormatConsole)

func newLogger(w io.Writer, level Level, format Format) *Logger {
	l := &Logger{
		level:  level,
		atom:   zap.NewAtomicLevelAt(level.zap()),
		output: w,
		format: format,
	}
	l.rebuild()
	return l
}

// rebuild recreates the zap core after an output or format change.
// Callers hold l.mu (or own l exclusively).
func (l *Logger) rebuild() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	var enc zapcore.Encoder
	if l.format == FormatJSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(l.output)), l.atom)
	l.zl = zap.New(core)
}

// Init initializes the global logger with the specified verbosity.
// When verbose is true, Debug level is enabled; otherwise Info.
func Init(verbose bool) {
	if verbose {
		SetLevel(LevelDebug)
	} else {
		SetLevel(LevelInfo)
	}
}

// SetLevel sets the minimum log level for the global logger.
func SetLevel(level Level) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level = level
	std.atom.SetLevel(level.zap())
}

// SetOutput sets the output destination for the global logger.
// Useful for testing. A nil writer restores os.Stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	std.mu.Lock()
	defer std.mu.Unlock()
	std.output = w
	std.rebuild()
}

// SetFormat switches between console and JSON encoding.
func SetFormat(f Format) error {
	if f != FormatConsole && f != FormatJSON {
		return fmt.Errorf("invalid log format %q (valid: console, json)", f)
	}
	std.mu.Lock()
	defer std.mu.Unlock()
	std.format = f
	std.rebuild()
	return nil
}

// GetLevel returns the current log level.
func GetLevel() Level {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.level
}

// Sync flushes buffered log entries.
func Sync() {
	_ = std.current().Sync()
}

func (l *Logger) current() *zap.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zl
}

// log writes a formatted message at the specified level.
func (l *Logger) log(level Level, format string, args ...interface{}) {
	zl := l.current()
	if ce := zl.Check(level.zap(), fmt.Sprintf(format, args...)); ce != nil {
		ce.Write()
	}
}

// logFields writes a message with structured key-value fields.
func (l *Logger) logFields(level Level, msg string, fields map[string]interface{}) {
	zl := l.current()
	ce := zl.Check(level.zap(), msg)
	if ce == nil {
		return
	}

	// Sort field keys for consistent output
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zf := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	ce.Write(zf...)
}

// Debug logs a debug message.
// Only shown when verbose mode is enabled.
func Debug(format string, args ...interface{}) {
	std.log(LevelDebug, format, args...)
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	std.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	std.log(LevelWarn, format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	std.log(LevelError, format, args...)
}

// DebugFields logs a debug message with structured fields.
func DebugFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelDebug, msg, fields)
}

// InfoFields logs an informational message with structured fields.
func InfoFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelInfo, msg, fields)
}

// WarnFields logs a warning message with structured fields.
func WarnFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelWarn, msg, fields)
}

// ErrorFields logs an error message with structured fields.
func ErrorFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelError, msg, fields)
}

// LogError logs an error with additional context message.
func LogError(err error, msg string) {
	if err == nil {
		return
	}
	std.log(LevelError, "%s: %v", msg, err)
}

// Zap returns the underlying zap logger, for libraries that take one.
func Zap() *zap.Logger {
	return std.current()
}
