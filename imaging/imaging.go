// Package imaging validates an uploaded image and turns it into an
// Artifact the backend can consume inline.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// ErrUnsupportedFormat marks uploads that cannot be used: undecodable
// bytes, formats outside jpeg/png, or a declared media type that does
// not match the actual content.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// MaxBytes caps uploads; backends reject oversized inline media anyway.
const MaxBytes = 8 << 20

// Artifact is a decoded, validated image ready for a backend request.
type Artifact struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

var canonicalMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// Ingest validates raw image bytes against the declared media type.
// An empty mediaType means "trust the sniffed format".
func Ingest(raw []byte, mediaType string) (Artifact, error) {
	if len(raw) == 0 {
		return Artifact{}, fmt.Errorf("%w: empty upload", ErrUnsupportedFormat)
	}
	if len(raw) > MaxBytes {
		return Artifact{}, fmt.Errorf("%w: image exceeds %d bytes", ErrUnsupportedFormat, MaxBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	mime, ok := canonicalMIME[format]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if declared := normalizeMIME(mediaType); declared != "" && declared != mime {
		return Artifact{}, fmt.Errorf("%w: declared %s but content is %s", ErrUnsupportedFormat, mediaType, mime)
	}

	return Artifact{Data: raw, MIME: mime, Width: cfg.Width, Height: cfg.Height}, nil
}

func normalizeMIME(mediaType string) string {
	switch mediaType {
	// Generic upload types carry no format claim worth checking.
	case "", "application/octet-stream":
		return ""
	case "image/jpg", "image/jpeg":
		return "image/jpeg"
	case "image/png":
		return "image/png"
	default:
		return mediaType
	}
}
