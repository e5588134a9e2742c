package common

import (
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSafeLoggerLevels(t *testing.T) {
	old, had := os.LookupEnv(DebugEnvVar)
	defer func() {
		if had {
			os.Setenv(DebugEnvVar, old)
		} else {
			os.Unsetenv(DebugEnvVar)
		}
	}()

	os.Unsetenv(DebugEnvVar)
	l := NewSafeLogger("TEST")
	assert.Equal(t, LogInfo, l.Level())

	os.Setenv(DebugEnvVar, "true")
	l2 := NewSafeLogger("TEST")
	assert.Equal(t, LogDebug, l2.Level())
}

func TestSafeLoggerFiltersByLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewSafeLoggerWithCore("TEST", core)
	l.SetLevel(LogWarn)

	l.Debug("hidden %d", 1)
	l.Info("hidden %d", 2)
	l.Warn("shown %d", 3)
	l.Error("shown %d", 4)

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "shown 3", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "TEST", entries[0].LoggerName)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestSafeLoggerWithSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := NewSafeLoggerWithCore("Index", core)

	var mu sync.Mutex
	var lines []string
	l := base.WithSink(func(line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
	})

	l.Info("Indexed %d symbols in %d files", 3, 1)
	base.Info("not teed")

	assert.Equal(t, 2, logs.Len())
	require.Len(t, lines, 1)
	assert.Equal(t, "[INFO] Index: Indexed 3 symbols in 1 files", lines[0])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogDebug, ParseLogLevel("debug"))
	assert.Equal(t, LogWarn, ParseLogLevel("WARN"))
	assert.Equal(t, LogWarn, ParseLogLevel("warning"))
	assert.Equal(t, LogError, ParseLogLevel("error"))
	assert.Equal(t, LogInfo, ParseLogLevel("bogus"))
}

func TestSanitizeErrorForLogging(t *testing.T) {
	assert.Equal(t, "", SanitizeErrorForLogging(nil))

	long := strings.Repeat("x", 250)
	got := SanitizeErrorForLogging(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Len(t, got, maxSanitizedLength+3)

	trace := "clangd crashed: x\n  at a\n  at b"
	assert.Equal(t, "clangd crashed: x", SanitizeErrorForLogging(trace))
}
