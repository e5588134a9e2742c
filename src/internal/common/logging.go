package common

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
	LogFatal
)

var logLevelNames = map[LogLevel]string{
	LogDebug: "DEBUG",
	LogInfo:  "INFO",
	LogWarn:  "WARN",
	LogError: "ERROR",
	LogFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return "INFO"
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogDebug:
		return zapcore.DebugLevel
	case LogWarn:
		return zapcore.WarnLevel
	case LogError:
		return zapcore.ErrorLevel
	case LogFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLogLevel maps a config string to a level; unknown names map to info.
func ParseLogLevel(name string) LogLevel {
	for level, n := range logLevelNames {
		if strings.EqualFold(n, name) {
			return level
		}
	}
	if strings.EqualFold(name, "warning") {
		return LogWarn
	}
	return LogInfo
}

// DebugEnvVar enables debug output for every logger created after it is set
const DebugEnvVar = "LSP_INDEXER_DEBUG"

// LogSink receives each formatted line, level included in the text, in
// addition to stderr. The indexer uses this to surface progress to a host.
type LogSink func(line string)

// SafeLogger provides STDIO-safe logging that only writes to stderr.
// Stdout belongs to the CLI's own output and, in server mode, to the protocol.
type SafeLogger struct {
	prefix string
	level  zap.AtomicLevel
	sugar  *zap.SugaredLogger
	sink   LogSink
}

func newCore(level zap.AtomicLevel) zapcore.Core {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeCaller = nil
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)
}

// NewSafeLogger creates a new safe logger with the given prefix
func NewSafeLogger(prefix string) *SafeLogger {
	initial := LogInfo
	if v := os.Getenv(DebugEnvVar); v == "1" || strings.EqualFold(v, "true") {
		initial = LogDebug
	}
	level := zap.NewAtomicLevelAt(initial.zapLevel())
	return newSafeLoggerWithCore(prefix, level, newCore(level))
}

// NewSafeLoggerWithCore builds a logger over an arbitrary zap core. Tests
// pass an observer core here.
func NewSafeLoggerWithCore(prefix string, core zapcore.Core) *SafeLogger {
	return newSafeLoggerWithCore(prefix, zap.NewAtomicLevelAt(zapcore.DebugLevel), core)
}

func newSafeLoggerWithCore(prefix string, level zap.AtomicLevel, core zapcore.Core) *SafeLogger {
	return &SafeLogger{
		prefix: prefix,
		level:  level,
		sugar:  zap.New(core).Named(prefix).Sugar(),
	}
}

// SetLevel sets the minimum log level
func (l *SafeLogger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Level returns the current minimum level
func (l *SafeLogger) Level() LogLevel {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return LogDebug
	case zapcore.WarnLevel:
		return LogWarn
	case zapcore.ErrorLevel:
		return LogError
	case zapcore.FatalLevel:
		return LogFatal
	default:
		return LogInfo
	}
}

// WithSink returns a logger sharing this logger's output that also tees
// every emitted line to sink.
func (l *SafeLogger) WithSink(sink LogSink) *SafeLogger {
	return &SafeLogger{
		prefix: l.prefix,
		level:  l.level,
		sugar:  l.sugar,
		sink:   sink,
	}
}

// Prefix returns the component name the logger was created with
func (l *SafeLogger) Prefix() string {
	return l.prefix
}

func (l *SafeLogger) log(level LogLevel, format string, args ...interface{}) {
	if !l.level.Enabled(level.zapLevel()) {
		return
	}

	message := fmt.Sprintf(format, args...)
	switch level {
	case LogDebug:
		l.sugar.Debug(message)
	case LogWarn:
		l.sugar.Warn(message)
	case LogError:
		l.sugar.Error(message)
	case LogFatal:
		// Fatal exits inside zap; emit at error and exit ourselves so the sink sees it.
		l.sugar.Error(message)
	default:
		l.sugar.Info(message)
	}

	if l.sink != nil {
		l.sink(fmt.Sprintf("[%s] %s: %s", level, l.prefix, message))
	}
}

// Debug logs a debug message
func (l *SafeLogger) Debug(format string, args ...interface{}) {
	l.log(LogDebug, format, args...)
}

// Info logs an info message
func (l *SafeLogger) Info(format string, args ...interface{}) {
	l.log(LogInfo, format, args...)
}

// Warn logs a warning message
func (l *SafeLogger) Warn(format string, args ...interface{}) {
	l.log(LogWarn, format, args...)
}

// Error logs an error message
func (l *SafeLogger) Error(format string, args ...interface{}) {
	l.log(LogError, format, args...)
}

// Fatal logs a fatal message and exits
func (l *SafeLogger) Fatal(format string, args ...interface{}) {
	l.log(LogFatal, format, args...)
	_ = l.sugar.Sync()
	os.Exit(1)
}

// Sync flushes buffered output
func (l *SafeLogger) Sync() error {
	return l.sugar.Sync()
}

// Global logger instances for convenience
var (
	LSPLogger   = NewSafeLogger("LSP")
	IndexLogger = NewSafeLogger("Index")
	CLILogger   = NewSafeLogger("CLI")
)

// SetGlobalLevel applies a level to every global logger
func SetGlobalLevel(level LogLevel) {
	LSPLogger.SetLevel(level)
	IndexLogger.SetLevel(level)
	CLILogger.SetLevel(level)
}

const maxSanitizedLength = 200

// SanitizeErrorForLogging reduces a server error to a single bounded line.
// Multi-line stack traces keep only their first line.
func SanitizeErrorForLogging(v interface{}) string {
	if v == nil {
		return ""
	}
	var s string
	switch e := v.(type) {
	case error:
		s = e.Error()
	case string:
		s = e
	default:
		s = fmt.Sprintf("%v", e)
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if len(s) > maxSanitizedLength {
		s = s[:maxSanitizedLength] + "..."
	}
	return s
}
