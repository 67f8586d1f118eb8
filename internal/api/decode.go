package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dunamismax/pixelshift/internal/domain"
)

func decodeImageRequest(w http.ResponseWriter, r *http.Request, maxBodyBytes int64) (domain.ImageRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if !isJSONContentType(contentType) {
		return domain.ImageRequest{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedMediaType, contentType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var body domain.ResizeRequest
	if err := decoder.Decode(&body); err != nil {
		return domain.ImageRequest{}, bodyError(err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("multiple JSON values are not allowed")
		}
		return domain.ImageRequest{}, bodyError(err)
	}

	return body.ImageRequest()
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrPayloadTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err)
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
