//go:build !cgo

package pipeline

import (
	"image"
	"io"

	"github.com/gen2brain/webp"
)

// Without cgo libwebp runs as WebAssembly through wazero.
func encodeWebP(w io.Writer, img image.Image, quality int) error {
	return webp.Encode(w, img, webp.Options{Quality: quality, Method: webpEffort})
}
