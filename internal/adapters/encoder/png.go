package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"imageblender/internal/core/domain"
	"os"

	// Decoders for blend scripts that write JPEG or WebP files.
	_ "image/jpeg"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// PNGEncoder normalizes blend results to PNG bytes.
type PNGEncoder struct{}

func NewPNGEncoder() *PNGEncoder {
	return &PNGEncoder{}
}

// Encode returns the PNG encoding of result. Files that already hold a readable PNG are passed through unchanged,
// anything else is decoded and re-encoded. Every failure wraps domain.ErrEncoding.
func (e *PNGEncoder) Encode(result domain.BlendResult) ([]byte, error) {
	switch result.Kind() {
	case domain.ResultImage:
		return encodeImage(result.Image())
	case domain.ResultPath:
		return encodeFile(result.Path())
	default:
		return nil, fmt.Errorf("%w: empty blend result", domain.ErrEncoding)
	}
}

// IsPNG checks if the given data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngMagic)
}

func encodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression)); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEncoding, err)
	}

	return buf.Bytes(), nil
}

func encodeFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("could not read blend result")
		return nil, fmt.Errorf("%w: could not read result file: %w", domain.ErrEncoding, err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: result file is empty", domain.ErrEncoding)
	}

	if IsPNG(data) {
		if _, err := png.Decode(bytes.NewReader(data)); err == nil {
			return data, nil
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: result file is not a decodable image: %w", domain.ErrEncoding, err)
	}

	log.Debug().Str("format", format).Msg("re-encoding blend result as png")

	return encodeImage(img)
}
