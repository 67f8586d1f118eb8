//go:build !govips || !cgo

package pipeline

import "github.com/rs/zerolog"

func Startup(_ RuntimeConfig, logger zerolog.Logger) error {
	logger.Debug().Msg("govips build tag not set, using imaging backend")
	return nil
}

func Shutdown() {}

func newTransformer() (Transformer, error) {
	return stdTransformer{}, nil
}
