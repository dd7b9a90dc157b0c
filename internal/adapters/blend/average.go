// Package blend implements the built-in average blend used when no user blend script applies.
package blend

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"imageblender/internal/core/domain"

	// Decoders for the accepted upload formats.
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// AverageBlender computes the per-pixel mean of a set of images.
//
// The first image decides the canvas: every other image is resized to its width and height with a Lanczos
// filter. Reordering images of equal size does not change the result, but moving a differently sized image to
// the front does.
type AverageBlender struct{}

func NewAverageBlender() *AverageBlender {
	return &AverageBlender{}
}

// Blend decodes the payloads and averages them channel by channel, rounding to the nearest integer. Alpha is
// averaged like the colour channels, so a batch of opaque images produces an opaque result.
func (b *AverageBlender) Blend(ctx context.Context, payloads [][]byte) (image.Image, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: no images to blend", domain.ErrFallback)
	}

	decoded, err := decodeAll(ctx, payloads)
	if err != nil {
		return nil, err
	}

	bounds := decoded[0].Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	frames := make([]*image.NRGBA, len(decoded))
	for i, img := range decoded {
		if r := img.Bounds(); r.Dx() == width && r.Dy() == height {
			frames[i] = imaging.Clone(img)
		} else {
			frames[i] = imaging.Resize(img, width, height, imaging.Lanczos)
		}
	}

	zerolog.Ctx(ctx).Debug().Int("images", len(frames)).Int("width", width).Int("height", height).
		Msg("blending with built-in average")

	return average(frames, width, height), nil
}

// decodeAll decodes concurrently into an index-addressed slice so the result order never depends on scheduling.
// Headers are checked against domain.MaxPixels before any pixel data is allocated.
func decodeAll(ctx context.Context, payloads [][]byte) ([]image.Image, error) {
	decoded := make([]image.Image, len(payloads))

	g, _ := errgroup.WithContext(ctx)
	for i, payload := range payloads {
		g.Go(func() error {
			cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("%w: image %d could not be decoded: %w", domain.ErrFallback, i+1, err)
			}

			if int64(cfg.Width)*int64(cfg.Height) > domain.MaxPixels {
				return fmt.Errorf("%w: image %d is %dx%d, more than %d pixels", domain.ErrFallback, i+1,
					cfg.Width, cfg.Height, domain.MaxPixels)
			}

			img, _, err := image.Decode(bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("%w: image %d could not be decoded: %w", domain.ErrFallback, i+1, err)
			}

			if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
				return fmt.Errorf("%w: image %d has no pixels", domain.ErrFallback, i+1)
			}

			decoded[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return decoded, nil
}

func average(frames []*image.NRGBA, width, height int) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	n := uint32(len(frames))
	sums := make([]uint32, len(out.Pix))

	for _, frame := range frames {
		for y := 0; y < height; y++ {
			src := frame.Pix[y*frame.Stride : y*frame.Stride+width*4]
			dst := sums[y*out.Stride : y*out.Stride+width*4]
			for i, v := range src {
				dst[i] += uint32(v)
			}
		}
	}

	for i, sum := range sums {
		out.Pix[i] = uint8((sum + n/2) / n)
	}

	return out
}
