package service

import (
	"context"
	"errors"
	"image"
	"imageblender/internal/core/domain"
	"imageblender/internal/core/port"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
	name string
}

func newMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Attempt(ctx context.Context, images []domain.UploadedImage, ws port.Workspace) domain.Outcome {
	args := m.Called(ctx, images, ws)
	return args.Get(0).(domain.Outcome)
}

func TestRegisterAndList(t *testing.T) {
	chain := &ProviderChain{}
	chain.Register(newMockProvider("memory"))
	chain.Register(newMockProvider("path"))
	chain.Register(newMockProvider("command"))

	assert.Equal(t, []string{"memory", "path", "command"}, chain.ListProviders())
}

func TestRun(t *testing.T) {
	imageResult := domain.NewImageResult(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	pathResult := domain.NewPathResult("/tmp/out.png")

	tests := []struct {
		name       string
		outcomes   []domain.Outcome
		wantOK     bool
		wantResult domain.BlendResult
		wantCalls  []bool
	}{
		{
			name:      "empty chain",
			wantOK:    false,
			wantCalls: nil,
		},
		{
			name:       "first success stops the chain",
			outcomes:   []domain.Outcome{domain.Success(imageResult), domain.Success(pathResult)},
			wantOK:     true,
			wantResult: imageResult,
			wantCalls:  []bool{true, false},
		},
		{
			name: "contract mismatch proceeds to the next contract",
			outcomes: []domain.Outcome{
				domain.NotApplicable("symbol BlendImagesFromBytes has signature func(int)"),
				domain.Success(pathResult),
				domain.Success(imageResult),
			},
			wantOK:     true,
			wantResult: pathResult,
			wantCalls:  []bool{true, true, false},
		},
		{
			name: "failure proceeds to the next contract",
			outcomes: []domain.Outcome{
				domain.Failed(errors.New("boom")),
				domain.Success(pathResult),
			},
			wantOK:     true,
			wantResult: pathResult,
			wantCalls:  []bool{true, true},
		},
		{
			name: "exhausted chain",
			outcomes: []domain.Outcome{
				domain.NotApplicable("missing"),
				domain.NotApplicable("missing"),
				domain.Failed(errors.New("exit status 1")),
			},
			wantOK:    false,
			wantCalls: []bool{true, true, true},
		},
		{
			name:      "success without result counts as failure",
			outcomes:  []domain.Outcome{{Status: domain.OutcomeSuccess}},
			wantOK:    false,
			wantCalls: []bool{true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chain := &ProviderChain{}
			providers := make([]*MockProvider, len(tc.outcomes))
			for i, outcome := range tc.outcomes {
				providers[i] = newMockProvider("provider")
				providers[i].On("Attempt", mock.Anything, mock.Anything, mock.Anything).Return(outcome)
				chain.Register(providers[i])
			}

			result, ok := chain.Run(context.Background(), nil, nil)

			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantResult, result)
			for i, called := range tc.wantCalls {
				if called {
					providers[i].AssertNumberOfCalls(t, "Attempt", 1)
				} else {
					providers[i].AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything, mock.Anything)
				}
			}
		})
	}
}

func TestRunRecoversProviderPanic(t *testing.T) {
	pathResult := domain.NewPathResult("/tmp/out.png")

	panicking := newMockProvider("memory")
	panicking.On("Attempt", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("nil map write") }).
		Return(domain.Outcome{})

	next := newMockProvider("path")
	next.On("Attempt", mock.Anything, mock.Anything, mock.Anything).Return(domain.Success(pathResult))

	chain := &ProviderChain{}
	chain.Register(panicking)
	chain.Register(next)

	result, ok := chain.Run(context.Background(), nil, nil)

	assert.True(t, ok)
	assert.Equal(t, pathResult, result)
}
