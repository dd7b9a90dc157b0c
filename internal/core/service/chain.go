package service

import (
	"context"
	"errors"
	"fmt"
	"imageblender/internal/core/domain"
	"imageblender/internal/core/port"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ProviderChain tries the registered blend providers in registration order.
type ProviderChain struct {
	providers []port.BlendProvider
}

func (c *ProviderChain) Register(provider port.BlendProvider) {
	log.Info().Str("provider", provider.Name()).Msg("adding blend provider to chain")
	c.providers = append(c.providers, provider)
}

func (c *ProviderChain) ListProviders() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}

	return names
}

// Run returns the result of the first provider that succeeds. Inapplicable and failed providers are logged and
// skipped; ok is false when every provider was skipped.
func (c *ProviderChain) Run(ctx context.Context, images []domain.UploadedImage, ws port.Workspace) (domain.BlendResult, bool) {
	l := zerolog.Ctx(ctx)

	for _, provider := range c.providers {
		outcome := attempt(ctx, provider, images, ws)

		switch outcome.Status {
		case domain.OutcomeSuccess:
			l.Info().Str("provider", provider.Name()).Str("result", string(outcome.Result.Kind())).
				Msg("blend provider succeeded")
			return outcome.Result, true
		case domain.OutcomeNotApplicable:
			l.Debug().Str("provider", provider.Name()).Err(outcome.Err).Msg("blend provider not applicable")
		default:
			l.Warn().Str("provider", provider.Name()).Err(outcome.Err).Msg("blend provider failed")
		}
	}

	return domain.BlendResult{}, false
}

func attempt(ctx context.Context, provider port.BlendProvider, images []domain.UploadedImage,
	ws port.Workspace) (outcome domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = domain.Failed(fmt.Errorf("provider panicked: %v", r))
		}
	}()

	outcome = provider.Attempt(ctx, images, ws)
	if outcome.Status == domain.OutcomeSuccess && outcome.Result.Kind() == domain.ResultNone {
		return domain.Failed(errors.New("provider reported success without a result"))
	}

	return outcome
}
