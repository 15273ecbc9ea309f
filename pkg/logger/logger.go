package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the production JSON logger used by every binary.
// Set debug to lower the level for local runs.
func New(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.LevelKey = "level"
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return config.Build()
}

// Must is New for main packages, where there is no logger yet to report to.
func Must(debug bool) *zap.Logger {
	log, err := New(debug)
	if err != nil {
		panic(err)
	}
	return log
}
