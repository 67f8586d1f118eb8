package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dunamismax/pixelshift/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_FormatConversionPreservesDimensions(t *testing.T) {
	processor, err := NewProcessor()
	require.NoError(t, err)

	src := buildTestPNG(t, 240, 120)
	for _, format := range []domain.Format{domain.FormatWebP, domain.FormatPNG, domain.FormatJPEG} {
		t.Run(string(format), func(t *testing.T) {
			result, err := processor.Process(context.Background(), domain.ImageRequest{
				Buffer:  src,
				Format:  format,
				Quality: domain.DefaultQuality,
			})
			require.NoError(t, err)

			assert.Equal(t, format, result.Format)
			assert.Equal(t, 240, result.Width)
			assert.Equal(t, 120, result.Height)
			assert.Equal(t, len(src), result.SourceBytes)
			verifyDecodedSize(t, result.Data, 240, 120)
		})
	}
}

func TestProcessor_FitInsideResize(t *testing.T) {
	processor, err := NewProcessor()
	require.NoError(t, err)

	src := buildTestPNG(t, 240, 120)
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{name: "width only", width: 80, wantW: 80, wantH: 40},
		{name: "height only", height: 60, wantW: 120, wantH: 60},
		{name: "square box keeps aspect", width: 100, height: 100, wantW: 100, wantH: 50},
		{name: "height bound", width: 200, height: 20, wantW: 40, wantH: 20},
		{name: "no enlargement", width: 480, wantW: 240, wantH: 120},
		{name: "box larger than source", width: 1000, height: 1000, wantW: 240, wantH: 120},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := processor.Process(context.Background(), domain.ImageRequest{
				Buffer:  src,
				Width:   tc.width,
				Height:  tc.height,
				Format:  domain.FormatPNG,
				Quality: domain.DefaultQuality,
			})
			require.NoError(t, err)

			assert.Equal(t, tc.wantW, result.Width)
			assert.Equal(t, tc.wantH, result.Height)
			assert.LessOrEqual(t, result.Width, 240)
			assert.LessOrEqual(t, result.Height, 120)
			verifyDecodedSize(t, result.Data, tc.wantW, tc.wantH)
		})
	}
}

func TestProcessor_UnrecognizedFormatDefaultsToWebP(t *testing.T) {
	processor, err := NewProcessor()
	require.NoError(t, err)

	result, err := processor.Process(context.Background(), domain.ImageRequest{
		Buffer:  buildTestPNG(t, 32, 32),
		Format:  domain.ParseFormat("gif"),
		Quality: domain.DefaultQuality,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FormatWebP, result.Format)
}

func TestProcessor_SinglePixelToWebP(t *testing.T) {
	processor, err := NewProcessor()
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	result, err := processor.Process(context.Background(), domain.ImageRequest{
		Buffer:  buf.Bytes(),
		Format:  domain.FormatWebP,
		Quality: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FormatWebP, result.Format)
	assert.Equal(t, 1, result.Width)
	assert.Equal(t, 1, result.Height)
}

func TestProcessor_ReencodeIsStable(t *testing.T) {
	processor, err := NewProcessor()
	require.NoError(t, err)

	src := buildTestPNG(t, 240, 120)
	for _, format := range []domain.Format{domain.FormatPNG, domain.FormatJPEG} {
		t.Run(string(format), func(t *testing.T) {
			req := domain.ImageRequest{Buffer: src, Width: 200, Format: format, Quality: 85}
			first, err := processor.Process(context.Background(), req)
			require.NoError(t, err)

			req.Buffer = first.Data
			second, err := processor.Process(context.Background(), req)
			require.NoError(t, err)

			assert.Equal(t, first.Width, second.Width)
			assert.Equal(t, first.Height, second.Height)
			assert.InEpsilon(t, len(first.Data), len(second.Data), 0.15)
		})
	}
}

func TestProcessor_CorruptInputIsProcessingFailure(t *testing.T) {
	processor, err := NewProcessor()
	require.NoError(t, err)

	_, err = processor.Process(context.Background(), domain.ImageRequest{
		Buffer:  []byte("definitely not an image"),
		Format:  domain.FormatPNG,
		Quality: domain.DefaultQuality,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProcessingFailure)
	assert.NotErrorIs(t, err, domain.ErrPayloadTooLarge)
}

func TestProcessor_SizeGuardBoundary(t *testing.T) {
	fake := &countingTransformer{}
	processor := &Processor{transformer: fake}

	atLimit := make([]byte, domain.MaxImageBytes)
	_, err := processor.Process(context.Background(), domain.ImageRequest{Buffer: atLimit, Format: domain.FormatWebP})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	overLimit := make([]byte, domain.MaxImageBytes+1)
	_, err = processor.Process(context.Background(), domain.ImageRequest{Buffer: overLimit, Format: domain.FormatWebP})
	require.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	assert.Equal(t, 1, fake.calls, "transformer must not run for oversized input")
}

func TestProcessor_CanceledContext(t *testing.T) {
	fake := &countingTransformer{}
	processor := &Processor{transformer: fake}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := processor.Process(ctx, domain.ImageRequest{Buffer: []byte{1}, Format: domain.FormatWebP})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fake.calls)
}

func TestProcessor_PixelLimit(t *testing.T) {
	tests := []struct {
		name      string
		w, h      uint32
		wantErr   bool
		wantCalls int
	}{
		{name: "at limit", w: 16383, h: 16383, wantCalls: 1},
		{name: "one row over", w: 16383, h: 16384, wantErr: true},
		{name: "small file huge canvas", w: 17000, h: 17000, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &countingTransformer{}
			processor := &Processor{transformer: fake}
			src := pngWithDimensions(t, tc.w, tc.h)
			require.Less(t, len(src), domain.MaxImageBytes)

			_, err := processor.Process(context.Background(), domain.ImageRequest{Buffer: src, Format: domain.FormatWebP})
			if tc.wantErr {
				require.ErrorIs(t, err, domain.ErrProcessingFailure)
				assert.ErrorIs(t, err, ErrPixelLimitExceeded)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantCalls, fake.calls)
		})
	}
}

func TestTransformer_RejectsOversizedCanvas(t *testing.T) {
	transformer, err := newTransformer()
	require.NoError(t, err)

	_, err = transformer.Transform(context.Background(), pngWithDimensions(t, 17000, 17000), Options{Format: domain.FormatPNG})
	require.ErrorIs(t, err, ErrPixelLimitExceeded)
}

type countingTransformer struct {
	calls int
}

func (*countingTransformer) Name() string {
	return "counting"
}

func (c *countingTransformer) Transform(_ context.Context, input []byte, _ Options) ([]byte, error) {
	c.calls++
	return input[:1], nil
}

func (*countingTransformer) Probe(_ []byte) (Metadata, error) {
	return Metadata{Format: domain.FormatWebP, Width: 1, Height: 1}, nil
}

func buildTestPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

// pngWithDimensions returns a 1x1 PNG whose IHDR claims w x h. Only header
// readers accept it; a full decode fails on the short pixel data.
func pngWithDimensions(t testing.TB, w, h uint32) []byte {
	t.Helper()

	data := buildTestPNG(t, 1, 1)
	ihdr := data[8:]
	require.Equal(t, "IHDR", string(ihdr[4:8]))
	binary.BigEndian.PutUint32(ihdr[8:12], w)
	binary.BigEndian.PutUint32(ihdr[12:16], h)
	binary.BigEndian.PutUint32(ihdr[21:25], crc32.ChecksumIEEE(ihdr[4:21]))
	return data
}

func verifyDecodedSize(t *testing.T, data []byte, wantW, wantH int) {
	t.Helper()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, wantW, cfg.Width)
	assert.Equal(t, wantH, cfg.Height)
}
