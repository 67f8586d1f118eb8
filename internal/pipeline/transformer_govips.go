//go:build govips && cgo

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/pixelshift/internal/domain"
)

type govipsTransformer struct{}

func (govipsTransformer) Name() string {
	return "govips"
}

func (t govipsTransformer) Transform(ctx context.Context, input []byte, opts Options) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	defer img.Close()

	// libvips loads lazily, so the header is all that has been read here.
	if err := checkPixelLimit(img.Width(), img.Height()); err != nil {
		return nil, err
	}

	if opts.wantsResize() {
		if err := applyGovipsFit(img, opts.Width, opts.Height); err != nil {
			return nil, err
		}
	}

	return exportGovipsImage(img, opts.Format, opts.quality())
}

func (govipsTransformer) Probe(data []byte) (Metadata, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return Metadata{}, fmt.Errorf("read image header: %w", err)
	}
	defer img.Close()

	meta := img.Metadata()
	return Metadata{
		Format: formatFromVips(meta.Format),
		Width:  meta.Width,
		Height: meta.Height,
	}, nil
}

func applyGovipsFit(img *vips.ImageRef, maxW, maxH int) error {
	srcW, srcH := img.Width(), img.Height()
	if srcW <= 0 || srcH <= 0 {
		return errors.New("source image has invalid dimensions")
	}

	w, h := fitInside(srcW, srcH, maxW, maxH)
	if w == srcW && h == srcH {
		return nil
	}

	hscale := float64(w) / float64(srcW)
	vscale := float64(h) / float64(srcH)
	if err := img.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("resize image: %w", err)
	}
	return nil
}

func exportGovipsImage(img *vips.ImageRef, format domain.Format, quality int) ([]byte, error) {
	switch format {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = quality
		params.Interlace = true
		params.OptimizeCoding = true
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case domain.FormatPNG:
		params := vips.NewPngExportParams()
		params.Quality = quality
		params.Interlace = true
		params.Compression = pngCompression
		data, _, err := img.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case domain.FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = quality
		params.ReductionEffort = webpEffort
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatFromVips(t vips.ImageType) domain.Format {
	switch t {
	case vips.ImageTypeJPEG:
		return domain.FormatJPEG
	case vips.ImageTypePNG:
		return domain.FormatPNG
	case vips.ImageTypeWEBP:
		return domain.FormatWebP
	default:
		return formatFromName(vips.ImageTypes[t])
	}
}
