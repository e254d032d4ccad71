package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger instance. Tests replace it with zap.NewNop().
var Log = zap.NewNop()

// Sets up the global Zap logger with the given level. Unknown levels fall
// back to info.
func InitLogger(logLevel string) error {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "message",
			LevelKey:      "level",
			TimeKey:       "time",
			NameKey:       "logger",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			LineEnding:    zapcore.DefaultLineEnding,
			EncodeLevel:   zapcore.LowercaseLevelEncoder,
			EncodeTime:    zapcore.ISO8601TimeEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
		},
	}

	log, err := config.Build()
	if err != nil {
		return err
	}

	Log = log.Named("perfsummary")
	return nil
}

// Flushes buffered entries; call before the process exits.
func Sync() {
	_ = Log.Sync()
}
