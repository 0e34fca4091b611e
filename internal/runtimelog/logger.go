// Package runtimelog wraps go.uber.org/zap behind a small interface so the
// rest of the runtime depends on a logging contract, not a vendor type,
// following the shape of the teacher's internal/driver/servicelog package.
// Unlike the teacher, this package does not dual-write through an OS
// service manager logger, and neither does internal/service: it logs only
// through the Logger it is given.
package runtimelog

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field is a structured log attribute, re-exported from zap so callers
// never need to import it directly.
type Field = zap.Field

func String(key, val string) Field            { return zap.String(key, val) }
func Error(err error) Field                   { return zap.Error(err) }
func Int(key string, val int) Field           { return zap.Int(key, val) }
func Int64(key string, val int64) Field       { return zap.Int64(key, val) }
func Bool(key string, val bool) Field         { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Time(key string, val time.Time) Field    { return zap.Time(key, val) }
func Any(key string, val any) Field           { return zap.Any(key, val) }

// Logger is the structured logging contract every component, the Aligner
// and the Runner log through. The Compound does not log.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type zapLogger struct {
	log *zap.Logger
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.log.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.log.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.log.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.log.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.log.Fatal(msg, fields...) }
func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{log: l.log.With(fields...)}
}

// Options configures New, mirroring the teacher's servicelog.New(root,
// debug) shape: a debug toggle plus rotation settings for the lumberjack
// sink. RotateFile left empty disables file rotation; logs still go to
// stdout.
type Options struct {
	Debug      bool
	RotateFile string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a Logger writing JSON records to stdout and, if
// Options.RotateFile is set, through a lumberjack-rotated file sink, the
// way the teacher's servicelog.New registers a "lumberjack://" zap sink.
func New(opts Options) Logger {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}
	if opts.RotateFile != "" {
		rotate := &lumberjack.Logger{
			Filename:   opts.RotateFile,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotate), level))
	}
	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return &zapLogger{log: log}
}

// NewNop returns a Logger that discards everything, for tests and for
// components that are not given an explicit logger.
func NewNop() Logger {
	return &zapLogger{log: zap.NewNop()}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
