package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
)

const (
	DefaultJPEGQuality = 80
	jpegDataURIPrefix  = "data:image/jpeg;base64,"
)

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func JPEGDataURI(data []byte) string {
	return jpegDataURIPrefix + base64.StdEncoding.EncodeToString(data)
}
