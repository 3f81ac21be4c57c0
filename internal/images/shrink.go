// Package images bounds illustration payloads to the configured database
// limit. Shrinking is real image work (decode, resize, JPEG re-encode), not
// base64 string truncation.
package images

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// Options bounds the shrink output.
type Options struct {
	MaxEncodedBytes int // max length of the returned base64 payload
	TargetWidth     int
	TargetHeight    int
	Quality         int // initial JPEG quality, 1-100
}

// Result is a size-bounded, base64-encoded JPEG.
type Result struct {
	B64     string
	Raw     []byte
	Quality int
	Width   int
	Height  int
}

// Shrink resizes raw image bytes to fit within the target box and re-encodes
// as JPEG, lowering quality until the base64 payload fits MaxEncodedBytes.
// Returns an error when even the lowest quality cannot fit, or the input
// does not decode; callers then fall back per their configured strategy.
func Shrink(raw []byte, opts Options) (*Result, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Fit(img, opts.TargetWidth, opts.TargetHeight, imaging.Lanczos)
	bounds := resized.Bounds()

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 60
	}

	// Lower quality stepwise; the floor keeps the output recognizable.
	for ; quality >= 10; quality -= 15 {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
		if len(encoded) <= opts.MaxEncodedBytes {
			log.Debug().
				Int("raw_bytes", len(raw)).
				Int("encoded_bytes", len(encoded)).
				Int("quality", quality).
				Int("width", bounds.Dx()).
				Int("height", bounds.Dy()).
				Msg("Image shrunk under limit")
			return &Result{
				B64:     encoded,
				Raw:     buf.Bytes(),
				Quality: quality,
				Width:   bounds.Dx(),
				Height:  bounds.Dy(),
			}, nil
		}
	}

	return nil, fmt.Errorf("image does not fit %d bytes even at minimum quality", opts.MaxEncodedBytes)
}
