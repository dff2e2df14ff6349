// Package media validates inline image payloads sent as base64 data URLs.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxImageBytes caps the decoded size of an image.
	MaxImageBytes = 4 << 20
	// MaxDataURLBytes is the longest data URL a MaxImageBytes image encodes
	// to, with room for the "data:<mime>;base64," header. Request body limits
	// must be at least this large.
	MaxDataURLBytes = (MaxImageBytes+2)/3*4 + 64
)

var (
	ErrNotDataURL       = errors.New("image is not a base64 data url")
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrUnsupportedType  = errors.New("image type not supported")
	ErrMismatchedHeader = errors.New("declared type does not match content")
)

var allowed = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/gif":  {},
	"image/webp": {},
}

// Image is a validated inline image.
type Image struct {
	MIME    string
	Size    int
	DataURL string
}

// ParseImage decodes a data URL of the form data:<mime>;base64,<payload>,
// sniffs the decoded bytes and returns the image when the type is allowed.
func ParseImage(dataURL string) (*Image, error) {
	dataURL = strings.TrimSpace(dataURL)
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, ErrNotDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrNotDataURL
	}
	declared, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, ErrNotDataURL
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+3 {
		return nil, ErrImageTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDataURL, err)
	}
	if len(raw) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}

	detected := mimetype.Detect(raw).String()
	if _, ok := allowed[detected]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, detected)
	}
	if declared != "" && !strings.EqualFold(declared, detected) {
		return nil, fmt.Errorf("%w: declared %s, got %s", ErrMismatchedHeader, declared, detected)
	}

	return &Image{
		MIME:    detected,
		Size:    len(raw),
		DataURL: "data:" + detected + ";base64," + payload,
	}, nil
}
