// Package processing turns in-memory bitmaps into the payloads vision
// providers accept, and loads those bitmaps from disk or the web.
package processing

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
)

// PNGMimeType is the MIME type of everything EncodePNG produces.
const PNGMimeType = "image/png"

// EncodingError reports a bitmap that could not be serialized.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return "failed to convert image to base64: " + e.Err.Error()
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

var (
	errNilImage   = errors.New("image is nil")
	errEmptyImage = errors.New("image has empty bounds")
)

// EncodePNG serializes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, &EncodingError{Err: errNilImage}
	}
	if img.Bounds().Empty() {
		return nil, &EncodingError{Err: errEmptyImage}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &EncodingError{Err: err}
	}
	return buf.Bytes(), nil
}

// EncodePNGBase64 returns the standard base64 text of img's PNG encoding.
func EncodePNGBase64(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DataURI embeds base64 data of the given MIME type inline.
func DataURI(mimeType, b64 string) string {
	return "data:" + mimeType + ";base64," + b64
}
