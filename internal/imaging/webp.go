package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/gen2brain/webp"
)

// EncodeWebP encodes img as lossy WebP at the given quality (0-100).
// Used for every tile the engine writes, per SPEC_FULL.md §4.6/§4.7:
// quality 85, default (lossy) method.
func EncodeWebP(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: float32(quality)}); err != nil {
		return nil, fmt.Errorf("imaging: encoding webp: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWebP decodes WebP-encoded bytes into an image.Image.
func DecodeWebP(data []byte) (image.Image, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decoding webp: %w", err)
	}
	return img, nil
}
