package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds width*height of an accepted image when callers
// pass no explicit cap.
const DefaultMaxPixels = 4096 * 4096

var (
	ErrInvalidPayload = errors.New("invalid base64 image payload")
	ErrInvalidImage   = errors.New("invalid image data")
	ErrImageTooLarge  = fmt.Errorf("%w: image dimensions exceed limit", ErrInvalidImage)
)

// DecodeDataURI decodes a "data:image/...;base64," URI or a bare base64
// string. The raw encoded bytes are returned alongside the raster so callers
// can forward them untouched. maxPixels <= 0 means DefaultMaxPixels.
func DecodeDataURI(payload string, maxPixels int) (image.Image, []byte, error) {
	data := payload
	if i := strings.IndexByte(payload, ','); i >= 0 {
		data = payload[i+1:]
	}
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil, ErrInvalidPayload
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	img, err := Decode(raw, maxPixels)
	if err != nil {
		return nil, nil, err
	}

	return img, raw, nil
}

// Decode reads the header first and refuses images whose declared size is
// over maxPixels before any raster is allocated.
func Decode(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrInvalidImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if img.Bounds().Empty() {
		return nil, ErrInvalidImage
	}

	return img, nil
}
