package core

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	// Log a message with a printf format for different log levels.
	Errorf(string, ...interface{})
	Warnf(string, ...interface{})
	Infof(string, ...interface{})
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})

	// Return a new logger with the given `name` appended to this logger
	// current name.
	Extend(string) Logger
}

var globalLogger Logger = &noLogger{}

func SetLogger(logger Logger) {
	globalLogger = logger
}

func Errorf(format string, args ...interface{}) {
	globalLogger.Errorf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	globalLogger.Warnf(format, args...)
}

func Infof(format string, args ...interface{}) {
	globalLogger.Infof(format, args...)
}

func Debugf(format string, args ...interface{}) {
	globalLogger.Debugf(format, args...)
}

func Tracef(format string, args ...interface{}) {
	globalLogger.Tracef(format, args...)
}

func ExtendLogger(name string) Logger {
	return globalLogger.Extend(name)
}

// NopLogger returns a logger that drops every message.
func NopLogger() Logger {
	return &noLogger{}
}

type noLogger struct {
}

func (l *noLogger) Errorf(string, ...interface{}) {}
func (l *noLogger) Warnf(string, ...interface{})  {}
func (l *noLogger) Infof(string, ...interface{})  {}
func (l *noLogger) Debugf(string, ...interface{}) {}
func (l *noLogger) Tracef(string, ...interface{}) {}
func (l *noLogger) Extend(string) Logger          { return l }

// zapLogger adapts a zap sugared logger. zap has no trace level, trace
// messages are emitted at debug level with a "trace" field.
type zapLogger struct {
	sugar *zap.SugaredLogger
	trace bool
}

// NewZapLogger wraps the given zap logger. Trace messages are dropped unless
// `trace` is set.
func NewZapLogger(logger *zap.Logger, trace bool) Logger {
	return &zapLogger{
		sugar: logger.Sugar(),
		trace: trace,
	}
}

// NewDevelopmentLogger builds the console logger used by the command line
// tool.
func NewDevelopmentLogger(level zapcore.Level) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level = zap.NewAtomicLevelAt(level)
	return config.Build()
}

func (l *zapLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *zapLogger) Warnf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *zapLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *zapLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *zapLogger) Tracef(format string, args ...interface{}) {
	if l.trace {
		l.sugar.With("trace", true).Debugf(format, args...)
	}
}

func (l *zapLogger) Extend(name string) Logger {
	return &zapLogger{
		sugar: l.sugar.Named(name),
		trace: l.trace,
	}
}
