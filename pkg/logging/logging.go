// Package logging builds the zap logger shared by the worker and CLI.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a sugared logger at the given level. Output goes to stderr, or
// to a rotated file when file is non-empty.
func New(level, file string) (*zap.SugaredLogger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	var enc zapcore.Encoder
	if file != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		sink = zapcore.Lock(os.Stderr)
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(lvl))
	return zap.New(core, zap.AddCaller()).Sugar(), nil
}
