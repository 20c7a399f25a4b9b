package logger

import (
	"os"

	"github.com/stanleyndaba/clario-detection-engine/config"
	"github.com/rs/zerolog"
)

// New returns a configured zerolog.Logger. Development gets a
// human-readable console writer; every other environment gets
// structured JSON on stdout, suitable for log aggregation.
func New(cfg *config.Config) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if cfg.Env == "development" {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if cfg.Env == "development" {
		out := zerolog.ConsoleWriter{Out: os.Stderr}
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "detection-engine").Logger()
}
