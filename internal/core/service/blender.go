package service

import (
	"context"
	"errors"
	"fmt"
	"imageblender/internal/core/domain"
	"imageblender/internal/core/port"

	"github.com/rs/zerolog"
)

// Blender runs one blend request: validation, workspace, provider chain, fallback and encoding.
type Blender struct {
	chain      *ProviderChain
	workspaces port.WorkspaceManager
	fallback   port.FallbackBlender
	encoder    port.ResultEncoder
}

func NewBlender(chain *ProviderChain, workspaces port.WorkspaceManager, fallback port.FallbackBlender,
	encoder port.ResultEncoder) *Blender {
	if chain == nil {
		chain = &ProviderChain{}
	}

	return &Blender{chain: chain, workspaces: workspaces, fallback: fallback, encoder: encoder}
}

// Blend returns the blended image as PNG. The workspace is released on every return path, including panics, and
// a failed release is reported as domain.ErrWorkspace.
func (b *Blender) Blend(ctx context.Context, images []domain.UploadedImage) (out []byte, err error) {
	l := zerolog.Ctx(ctx)

	if err := domain.ValidateUploads(images); err != nil {
		l.Info().Err(err).Int("files", len(images)).Msg("rejected upload")
		return nil, err
	}

	ws, err := b.workspaces.Acquire()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrWorkspace, err)
	}

	defer func() {
		if releaseErr := ws.Release(); releaseErr != nil {
			l.Error().Err(releaseErr).Msg("failed to release workspace")
			if err == nil {
				out, err = nil, fmt.Errorf("%w: %w", domain.ErrWorkspace, releaseErr)
			}
		}
	}()

	if result, ok := b.chain.Run(ctx, images, ws); ok {
		out, err = b.encoder.Encode(result)
		if err == nil {
			return out, nil
		}

		l.Warn().Err(err).Msg("provider result could not be encoded, using built-in blend")
	}

	img, err := b.fallback.Blend(ctx, domain.Payloads(images))
	if err != nil {
		if errors.Is(err, domain.ErrFallback) {
			l.Info().Err(err).Msg("built-in blend could not read the uploads")
			return nil, err
		}

		l.Error().Err(err).Msg("built-in blend failed")
		return nil, fmt.Errorf("built-in blend failed: %w", err)
	}

	out, err = b.encoder.Encode(domain.NewImageResult(img))
	if err != nil {
		if !errors.Is(err, domain.ErrEncoding) {
			err = fmt.Errorf("%w: %w", domain.ErrEncoding, err)
		}
		l.Error().Err(err).Msg("failed to encode blended image")
		return nil, err
	}

	return out, nil
}
