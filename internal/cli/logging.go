package cli

import (
	"io"
	"log/slog"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// slog debug records reach zap through logr as V(4), i.e. zap level -4.
const verboseLevel = zapcore.Level(-4)

// newLogger returns a slog logger backed by zap. Records go to w, which is
// always stderr in production: stdout carries the report.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = verboseLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = encodeLevel

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	zl := zap.New(core)

	return slog.New(logr.ToSlogHandler(zapr.NewLogger(zl)))
}

// encodeLevel prints the V-levels below zap's debug as "debug".
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l < zapcore.DebugLevel {
		l = zapcore.DebugLevel
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}
