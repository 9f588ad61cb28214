package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Cfg struct {
	Level string
	JSON  bool
}

// New builds a production logger. An unknown level falls back to info.
func New(c Cfg) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !c.JSON {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if c.Level != "" {
		if err := cfg.Level.UnmarshalText([]byte(c.Level)); err != nil {
			cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		}
	}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l.Named("quiz-platform")
}
