package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	FormatWebP Format = "webp"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"

	DefaultFormat  = FormatWebP
	DefaultQuality = 80
	MinQuality     = 1
	MaxQuality     = 100

	// MaxImageBytes is the decoded payload ceiling (4.5 MiB).
	MaxImageBytes = 9 * 1024 * 1024 / 2
)

var dataURLPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

type Format string

// ParseFormat maps a requested format onto an encoder. Unknown or empty
// values select webp.
func ParseFormat(raw string) Format {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "png":
		return FormatPNG
	case "jpeg", "jpg":
		return FormatJPEG
	default:
		return FormatWebP
	}
}

func (f Format) ContentType() string {
	return "image/" + string(f)
}

func (f Format) String() string {
	return string(f)
}

type ImageRequest struct {
	Buffer          []byte
	Width           int
	Height          int
	Format          Format
	RequestedFormat string
	Quality         int
}

func (r ImageRequest) WantsResize() bool {
	return r.Width > 0 || r.Height > 0
}

// ResizeRequest is the JSON body accepted by the resize endpoint. Fields are
// kept raw so that any JSON type can be coerced without failing the decode.
type ResizeRequest struct {
	Image   json.RawMessage `json:"image"`
	Width   json.RawMessage `json:"width,omitempty"`
	Height  json.RawMessage `json:"height,omitempty"`
	Format  json.RawMessage `json:"format,omitempty"`
	Quality json.RawMessage `json:"quality,omitempty"`
}

// ImageRequest resolves the lenient body into an ImageRequest. Numeric and
// format fields never fail; only the image field can.
func (r ResizeRequest) ImageRequest() (ImageRequest, error) {
	requested := stringField(r.Format)
	out := ImageRequest{
		Width:           positiveInt(r.Width),
		Height:          positiveInt(r.Height),
		Format:          ParseFormat(requested),
		RequestedFormat: strings.ToLower(strings.TrimSpace(requested)),
		Quality:         quality(r.Quality),
	}
	if out.RequestedFormat == "" {
		out.RequestedFormat = string(DefaultFormat)
	}

	image, ok := rawString(r.Image)
	if !ok {
		return ImageRequest{}, NewProcessingError(errors.New("image field is required and must be a string"))
	}
	buf, err := DecodeImagePayload(image)
	if err != nil {
		return ImageRequest{}, NewProcessingError(err)
	}
	out.Buffer = buf
	return out, nil
}

var urlAlphabet = strings.NewReplacer("-", "+", "_", "/")

// DecodeImagePayload strips an optional data-URL prefix and decodes the
// remaining base64 payload. Standard and URL alphabets are accepted, even
// mixed in one payload, with or without padding. Whitespace is ignored.
func DecodeImagePayload(payload string) ([]byte, error) {
	payload = dataURLPrefix.ReplaceAllString(payload, "")
	payload = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)
	payload = strings.TrimRight(payload, "=")
	if payload == "" {
		return nil, errors.New("image payload is empty")
	}

	payload = urlAlphabet.Replace(payload)
	buf, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image payload: %w", err)
	}
	return buf, nil
}

func positiveInt(raw json.RawMessage) int {
	v, ok := LenientInt(raw)
	if !ok || v <= 0 {
		return 0
	}
	return v
}

func quality(raw json.RawMessage) int {
	v, ok := LenientInt(raw)
	if !ok || v == 0 {
		return DefaultQuality
	}
	return min(MaxQuality, max(MinQuality, v))
}

func stringField(raw json.RawMessage) string {
	s, _ := rawString(raw)
	return s
}

func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
