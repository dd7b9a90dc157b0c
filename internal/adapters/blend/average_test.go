package blend

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"imageblender/internal/core/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fataler interface {
	Fatalf(format string, args ...any)
}

func solidPNG(t fataler, width, height int, c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	return encode(t, img)
}

func encode(t fataler, img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}

	return buf.Bytes()
}

func assertUniform(t *testing.T, img image.Image, want color.NRGBA) {
	t.Helper()
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestBlendPrimaries(t *testing.T) {
	payloads := [][]byte{
		solidPNG(t, 100, 100, color.NRGBA{R: 255, A: 255}),
		solidPNG(t, 100, 100, color.NRGBA{G: 255, A: 255}),
		solidPNG(t, 100, 100, color.NRGBA{B: 255, A: 255}),
	}

	img, err := NewAverageBlender().Blend(context.Background(), payloads)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
	assertUniform(t, img, color.NRGBA{R: 85, G: 85, B: 85, A: 255})
}

func TestBlendIdenticalImages(t *testing.T) {
	c := color.NRGBA{R: 12, G: 200, B: 77, A: 255}
	payload := solidPNG(t, 8, 6, c)

	img, err := NewAverageBlender().Blend(context.Background(), [][]byte{payload, payload, payload, payload})
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
	assertUniform(t, img, c)
}

func TestBlendRoundsToNearest(t *testing.T) {
	payloads := [][]byte{
		solidPNG(t, 2, 2, color.NRGBA{R: 0, G: 1, B: 254, A: 255}),
		solidPNG(t, 2, 2, color.NRGBA{R: 1, G: 2, B: 255, A: 255}),
	}

	img, err := NewAverageBlender().Blend(context.Background(), payloads)
	require.NoError(t, err)

	assertUniform(t, img, color.NRGBA{R: 1, G: 2, B: 255, A: 255})
}

func TestBlendAveragesAlpha(t *testing.T) {
	payloads := [][]byte{
		solidPNG(t, 3, 3, color.NRGBA{R: 255, A: 0}),
		solidPNG(t, 3, 3, color.NRGBA{B: 255, A: 255}),
	}

	img, err := NewAverageBlender().Blend(context.Background(), payloads)
	require.NoError(t, err)

	assertUniform(t, img, color.NRGBA{R: 128, B: 128, A: 128})
}

func TestBlendFirstImageSetsCanvas(t *testing.T) {
	wide := solidPNG(t, 20, 10, color.NRGBA{R: 200, A: 255})
	small := solidPNG(t, 5, 5, color.NRGBA{R: 100, A: 255})
	blender := NewAverageBlender()

	img, err := blender.Blend(context.Background(), [][]byte{wide, small})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())
	assertUniform(t, img, color.NRGBA{R: 150, A: 255})

	img, err = blender.Blend(context.Background(), [][]byte{small, wide})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 5), img.Bounds())
}

func TestBlendMixedFormats(t *testing.T) {
	var jpg bytes.Buffer
	src := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	require.NoError(t, jpeg.Encode(&jpg, src, &jpeg.Options{Quality: 100}))

	img, err := NewAverageBlender().Blend(context.Background(), [][]byte{
		solidPNG(t, 16, 16, color.NRGBA{R: 128, G: 128, B: 128, A: 255}),
		jpg.Bytes(),
	})
	require.NoError(t, err)

	got := color.NRGBAModel.Convert(img.At(8, 8)).(color.NRGBA)
	assert.InDelta(t, 128, int(got.R), 2)
	assert.Equal(t, uint8(255), got.A)
}

// hugeHeaderPNG encodes a 1x1 image and rewrites its header to claim width x height pixels.
func hugeHeaderPNG(t fataler, width, height uint32) []byte {
	data := encode(t, image.NewGray(image.Rect(0, 0, 1, 1)))
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))

	return data
}

func TestBlendRejectsUnreadablePayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		wantErr string
	}{
		{
			name:    "truncated png",
			payload: []byte("\x89PNG\r\n\x1a\ntruncated"),
			wantErr: "image 2 could not be decoded",
		},
		{
			name:    "not an image",
			payload: []byte("MZ\x90\x00"),
			wantErr: "image 2 could not be decoded",
		},
		{
			name:    "header declares too many pixels",
			payload: hugeHeaderPNG(t, 100_000, 100_000),
			wantErr: "image 2 is 100000x100000",
		},
		{
			name:    "just over the pixel limit",
			payload: hugeHeaderPNG(t, domain.MaxPixels+1, 1),
			wantErr: "more than 89478485 pixels",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Less(t, len(tc.payload), 1024)

			_, err := NewAverageBlender().Blend(context.Background(), [][]byte{
				solidPNG(t, 4, 4, color.NRGBA{A: 255}),
				tc.payload,
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrFallback)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestBlendNoPayloads(t *testing.T) {
	_, err := NewAverageBlender().Blend(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrFallback)
}

func randomImage(t *rapid.T, width, height int, label string) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, rapid.SliceOfN(rapid.Byte(), len(img.Pix), len(img.Pix)).Draw(t, label))
	return encode(t, img)
}

func TestBlendDeterministicAndOrderInvariant(t *testing.T) {
	blender := NewAverageBlender()

	rapid.Check(t, func(t *rapid.T) {
		width := rapid.IntRange(1, 6).Draw(t, "width")
		height := rapid.IntRange(1, 6).Draw(t, "height")
		count := rapid.IntRange(domain.MinFiles, 6).Draw(t, "count")

		payloads := make([][]byte, count)
		for i := range payloads {
			payloads[i] = randomImage(t, width, height, "pixels")
		}
		shuffled := rapid.Permutation(payloads).Draw(t, "order")

		first, err := blender.Blend(context.Background(), payloads)
		if err != nil {
			t.Fatalf("blend failed: %v", err)
		}
		again, err := blender.Blend(context.Background(), payloads)
		if err != nil {
			t.Fatalf("blend failed: %v", err)
		}
		reordered, err := blender.Blend(context.Background(), shuffled)
		if err != nil {
			t.Fatalf("blend failed: %v", err)
		}

		if !bytes.Equal(first.(*image.NRGBA).Pix, again.(*image.NRGBA).Pix) {
			t.Fatalf("blend is not deterministic")
		}
		if !bytes.Equal(first.(*image.NRGBA).Pix, reordered.(*image.NRGBA).Pix) {
			t.Fatalf("blend depends on input order for equally sized images")
		}
	})
}
