package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/dunamismax/pixelshift/internal/domain"
)

const (
	webpEffort     = 6
	pngCompression = 9

	// MaxInputPixels caps width*height of a source image (16383 x 16383).
	MaxInputPixels = 268402689
)

var ErrPixelLimitExceeded = errors.New("image exceeds pixel limit")

func checkPixelLimit(w, h int) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	if int64(w)*int64(h) > MaxInputPixels {
		return fmt.Errorf("%w: %dx%d is over %d pixels", ErrPixelLimitExceeded, w, h, MaxInputPixels)
	}
	return nil
}

// guardPixels reads only the header of input. Formats the Go decoders do not
// recognise are left to the backend, which checks again after loading.
func guardPixels(input []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return nil
	}
	return checkPixelLimit(cfg.Width, cfg.Height)
}

type Transformer interface {
	Name() string
	// Transform decodes input, applies an optional fit-inside resize and
	// re-encodes to opts.Format.
	Transform(ctx context.Context, input []byte, opts Options) ([]byte, error)
	// Probe reads format and dimensions back from an encoded buffer.
	Probe(data []byte) (Metadata, error)
}

type Options struct {
	Width   int
	Height  int
	Format  domain.Format
	Quality int
}

func (o Options) wantsResize() bool {
	return o.Width > 0 || o.Height > 0
}

func (o Options) quality() int {
	if o.Quality < domain.MinQuality || o.Quality > domain.MaxQuality {
		return domain.DefaultQuality
	}
	return o.Quality
}

type Metadata struct {
	Format domain.Format
	Width  int
	Height int
}

// fitInside returns the largest size within maxW x maxH (0 = unbounded) that
// keeps the source aspect ratio and never exceeds the source size.
func fitInside(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return srcW, srcH
	}

	scale := 1.0
	if maxW > 0 {
		scale = math.Min(scale, float64(maxW)/float64(srcW))
	}
	if maxH > 0 {
		scale = math.Min(scale, float64(maxH)/float64(srcH))
	}
	if scale >= 1 {
		return srcW, srcH
	}

	w := max(1, int(math.Round(float64(srcW)*scale)))
	h := max(1, int(math.Round(float64(srcH)*scale)))
	if maxW > 0 {
		w = min(w, maxW)
	}
	if maxH > 0 {
		h = min(h, maxH)
	}
	return w, h
}

func formatFromName(name string) domain.Format {
	switch name {
	case "jpeg", "jpg":
		return domain.FormatJPEG
	case "png":
		return domain.FormatPNG
	case "webp":
		return domain.FormatWebP
	default:
		return domain.Format(name)
	}
}
