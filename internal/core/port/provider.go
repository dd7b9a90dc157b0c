package port

import (
	"context"
	"image"
	"imageblender/internal/core/domain"
)

type BlendProvider interface {
	// Name identifies the provider contract in logs.
	Name() string
	// Attempt tries to blend the images through one external contract. It never panics on a missing or mismatching
	// contract and reports it as domain.OutcomeNotApplicable instead.
	Attempt(ctx context.Context, images []domain.UploadedImage, ws Workspace) domain.Outcome
}

type FallbackBlender interface {
	// Blend decodes the payloads and returns their per-pixel average, sized like the first payload.
	Blend(ctx context.Context, payloads [][]byte) (image.Image, error)
}

type ResultEncoder interface {
	// Encode turns a blend result into PNG bytes.
	Encode(result domain.BlendResult) ([]byte, error)
}

type ImageBlender interface {
	// Blend validates the uploads and returns the blended image as PNG bytes.
	Blend(ctx context.Context, images []domain.UploadedImage) ([]byte, error)
}
