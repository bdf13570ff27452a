// internal/logger/log.go
package logger

import (
	"io"
	stdlog "log"
	"os"
	"strings"

	"beacon-agent/internal/config"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger once at startup.
//
//   - LOG_PRETTY=true: colored console output for local development.
//   - LOG_PRETTY=false: raw JSON to stdout for log shippers.
//   - Every line carries "service" and "instance" so logs from a fleet of
//     agents stay attributable.
//   - LOG_SAMPLE_N>1 samples Debug/Info down to 1/N; Warn/Error are never
//     sampled.
//
// The stdlib logger is redirected into zerolog so config.Load's fail-fast
// messages and any stray log.Printf land in the same stream.
func Init(cfg config.Config) {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	} else {
		w = os.Stdout
	}

	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	logger := base
	if cfg.LogSampleN > 1 {
		logger = base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
			// Warn/Error stay unsampled.
		})
	}

	zlog.Logger = logger

	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}
