// Package logger provides the process-wide structured logger. It mirrors
// the teacher's singleton-plus-level-functions shape: call Initialize once
// at process start, then use the package-level functions anywhere, or call
// Get() for the underlying *zap.SugaredLogger. The bridge's own components
// (routers, the webhook router) log through the package-level functions.
package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var singleton atomic.Pointer[zap.SugaredLogger]

func init() {
	singleton.Store(newLogger(unstructuredLogs()))
}

// unstructuredLogs reports whether UNSTRUCTURED_LOGS is unset or "true"
// (the default: human-readable console output). Set to "false" to switch
// to JSON, e.g. when shipping logs to an aggregator.
func unstructuredLogs() bool {
	v, ok := os.LookupEnv("UNSTRUCTURED_LOGS")
	if !ok {
		return true
	}
	return v != "false"
}

func newLogger(unstructured bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if unstructured {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a bare logger rather than fail the process over a
		// logging misconfiguration.
		l = zap.NewNop()
	}
	return l.Sugar()
}

// Initialize (re)builds the singleton logger from the current
// environment. Call once from a command's PersistentPreRun.
func Initialize() {
	singleton.Store(newLogger(unstructuredLogs()))
}

// Get returns the current singleton logger.
func Get() *zap.SugaredLogger {
	return singleton.Load()
}

func Debug(args ...any)                  { Get().Debug(args...) }
func Debugf(format string, args ...any)  { Get().Debugf(format, args...) }
func Debugw(msg string, kv ...any)       { Get().Debugw(msg, kv...) }
func Info(args ...any)                   { Get().Info(args...) }
func Infof(format string, args ...any)   { Get().Infof(format, args...) }
func Infow(msg string, kv ...any)        { Get().Infow(msg, kv...) }
func Warn(args ...any)                   { Get().Warn(args...) }
func Warnf(format string, args ...any)   { Get().Warnf(format, args...) }
func Warnw(msg string, kv ...any)        { Get().Warnw(msg, kv...) }
func Error(args ...any)                  { Get().Error(args...) }
func Errorf(format string, args ...any)  { Get().Errorf(format, args...) }
func Errorw(msg string, kv ...any)       { Get().Errorw(msg, kv...) }
func Panic(args ...any)                  { Get().Panic(args...) }
func Panicf(format string, args ...any)  { Get().Panicf(format, args...) }
func Panicw(msg string, kv ...any)       { Get().Panicw(msg, kv...) }
