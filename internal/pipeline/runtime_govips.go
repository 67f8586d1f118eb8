//go:build govips && cgo

package pipeline

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/rs/zerolog"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

func Startup(cfg RuntimeConfig, logger zerolog.Logger) error {
	startupOnce.Do(func() {
		vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
			logger.WithLevel(vipsLogLevel(level)).Str("vips_domain", domain).Msg(msg)
		}, vips.LogLevelWarning)

		vips.Startup(&vips.Config{
			ConcurrencyLevel: cfg.Concurrency,
			MaxCacheFiles:    0,
			MaxCacheMem:      cfg.MaxCacheMem,
			MaxCacheSize:     cfg.MaxCacheSize,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func newTransformer() (Transformer, error) {
	return govipsTransformer{}, nil
}

func vipsLogLevel(level vips.LogLevel) zerolog.Level {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		return zerolog.ErrorLevel
	case vips.LogLevelWarning:
		return zerolog.WarnLevel
	case vips.LogLevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
