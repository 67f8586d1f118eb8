// Package pipeline turns one decoded request into an encoded image.
//
// Two backends exist. Building with -tags govips (cgo required) uses libvips
// and writes progressive JPEG, interlaced PNG at compression 9 and webp at
// effort 6. The default imaging backend writes baseline JPEG and
// non-interlaced PNG at best compression. Its webp encoder is libwebp through
// cgo, or a WebAssembly build at effort 6 when cgo is off. Deployments that
// need every encoder option must build with the govips tag.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dunamismax/pixelshift/internal/domain"
)

// RuntimeConfig tunes the libvips runtime. It is ignored by the imaging backend.
type RuntimeConfig struct {
	Concurrency  int
	MaxCacheMem  int
	MaxCacheSize int
}

type Result struct {
	Data        []byte
	Format      domain.Format
	Width       int
	Height      int
	SourceBytes int
}

type Processor struct {
	transformer Transformer
}

func NewProcessor() (*Processor, error) {
	transformer, err := newTransformer()
	if err != nil {
		return nil, fmt.Errorf("build transformer: %w", err)
	}
	return &Processor{transformer: transformer}, nil
}

func (p *Processor) Backend() string {
	return p.transformer.Name()
}

// Process runs the byte and pixel guards, resize, encode and probe for a
// single request.
// Codec failures come back as *domain.ProcessingError.
func (p *Processor) Process(ctx context.Context, req domain.ImageRequest) (Result, error) {
	if len(req.Buffer) > domain.MaxImageBytes {
		return Result{}, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrPayloadTooLarge, len(req.Buffer), domain.MaxImageBytes)
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	if err := guardPixels(req.Buffer); err != nil {
		return Result{}, domain.NewProcessingError(err)
	}

	encoded, err := p.transformer.Transform(ctx, req.Buffer, Options{
		Width:   req.Width,
		Height:  req.Height,
		Format:  req.Format,
		Quality: req.Quality,
	})
	if err != nil {
		return Result{}, domain.NewProcessingError(err)
	}

	meta, err := p.transformer.Probe(encoded)
	if err != nil {
		return Result{}, domain.NewProcessingError(fmt.Errorf("probe output image: %w", err))
	}

	return Result{
		Data:        encoded,
		Format:      meta.Format,
		Width:       meta.Width,
		Height:      meta.Height,
		SourceBytes: len(req.Buffer),
	}, nil
}
