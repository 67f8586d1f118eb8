//go:build govips && cgo

package pipeline

import (
	"context"
	"os"
	"testing"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/pixelshift/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := Startup(RuntimeConfig{MaxCacheMem: 16 * 1024 * 1024, MaxCacheSize: 10}, zerolog.Nop()); err != nil {
		panic(err)
	}
	code := m.Run()
	Shutdown()
	os.Exit(code)
}

func TestGovipsTransformer_ExportsRequestedFormat(t *testing.T) {
	transformer := govipsTransformer{}
	src := buildTestPNG(t, 300, 150)

	for _, format := range []domain.Format{domain.FormatWebP, domain.FormatPNG, domain.FormatJPEG} {
		t.Run(string(format), func(t *testing.T) {
			data, err := transformer.Transform(context.Background(), src, Options{
				Width:   100,
				Height:  100,
				Format:  format,
				Quality: 75,
			})
			require.NoError(t, err)

			meta, err := transformer.Probe(data)
			require.NoError(t, err)
			assert.Equal(t, format, meta.Format)
			assert.Equal(t, 100, meta.Width)
			assert.Equal(t, 50, meta.Height)
		})
	}
}

func TestGovipsTransformer_NoEnlargement(t *testing.T) {
	transformer := govipsTransformer{}
	data, err := transformer.Transform(context.Background(), buildTestPNG(t, 40, 20), Options{
		Width:   400,
		Format:  domain.FormatPNG,
		Quality: 80,
	})
	require.NoError(t, err)

	meta, err := transformer.Probe(data)
	require.NoError(t, err)
	assert.Equal(t, 40, meta.Width)
	assert.Equal(t, 20, meta.Height)
}

func TestGovipsTransformer_CorruptInput(t *testing.T) {
	_, err := govipsTransformer{}.Transform(context.Background(), []byte("nope"), Options{Format: domain.FormatWebP})
	require.Error(t, err)
}

func TestFormatFromVips(t *testing.T) {
	assert.Equal(t, domain.FormatJPEG, formatFromVips(vips.ImageTypeJPEG))
	assert.Equal(t, domain.FormatPNG, formatFromVips(vips.ImageTypePNG))
	assert.Equal(t, domain.FormatWebP, formatFromVips(vips.ImageTypeWEBP))
	assert.Equal(t, domain.Format("gif"), formatFromVips(vips.ImageTypeGIF))
}
