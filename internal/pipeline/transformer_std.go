package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/pixelshift/internal/domain"
	_ "golang.org/x/image/webp"
)

type stdTransformer struct{}

func (stdTransformer) Name() string {
	return "imaging"
}

func (t stdTransformer) Transform(ctx context.Context, input []byte, opts Options) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	if err := checkPixelLimit(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	src, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	out := src
	if opts.wantsResize() {
		out, err = resizeToFit(src, opts.Width, opts.Height)
		if err != nil {
			return nil, err
		}
	}

	return encodeImage(out, opts.Format, opts.quality())
}

func (stdTransformer) Probe(data []byte) (Metadata, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, fmt.Errorf("read image header: %w", err)
	}
	return Metadata{
		Format: formatFromName(name),
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

func resizeToFit(src image.Image, maxW, maxH int) (image.Image, error) {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, errors.New("source image has invalid dimensions")
	}

	w, h := fitInside(srcW, srcH, maxW, maxH)
	if w == srcW && h == srcH {
		return src, nil
	}
	return imaging.Resize(src, w, h, imaging.Lanczos), nil
}

func encodeImage(img image.Image, format domain.Format, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case domain.FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case domain.FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case domain.FormatWebP:
		if err := encodeWebP(&buf, img, quality); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	return buf.Bytes(), nil
}
