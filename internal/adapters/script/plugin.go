package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"imageblender/internal/core/domain"
	"imageblender/internal/core/port"
	"io/fs"
	"os"
	"plugin"

	"github.com/rs/zerolog"

	// Formats a script may hand back as encoded bytes.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	// MemorySymbol takes the raw upload bytes: func([][]byte) (image.Image, error) or func([][]byte) ([]byte, error).
	MemorySymbol = "BlendImagesFromBytes"
	// PathSymbol takes staged file paths: func([]string) (image.Image, error) or func([]string) (string, error).
	PathSymbol = "BlendImages"
)

// Library is the part of *plugin.Plugin the providers use.
type Library interface {
	Lookup(symName string) (plugin.Symbol, error)
}

// Opener loads the user blend script. OpenPlugin is the production implementation.
type Opener func(path string) (Library, error)

func OpenPlugin(path string) (Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// loadSymbol resolves name in the library at path. A missing library or symbol is not an error, only a reason
// the contract does not apply; a library that exists but cannot be loaded is.
func loadSymbol(open Opener, path, name string) (plugin.Symbol, string, error) {
	if path == "" {
		return nil, "no blend script configured", nil
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Sprintf("blend script %s not found", path), nil
	}

	lib, err := open(path)
	if err != nil {
		return nil, "", fmt.Errorf("error loading blend script %w", err)
	}

	sym, err := lib.Lookup(name)
	if err != nil {
		return nil, fmt.Sprintf("symbol %s not exported", name), nil
	}

	return sym, "", nil
}

// call runs fn and turns a panic inside the user script into an error.
func call(fn func() (domain.BlendResult, error)) (result domain.BlendResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("blend script panicked: %v", r)
		}
	}()

	return fn()
}

func outcome(result domain.BlendResult, err error) domain.Outcome {
	if err != nil {
		return domain.Failed(err)
	}

	if result.Kind() == domain.ResultNone {
		return domain.Failed(errors.New("blend script returned no image"))
	}

	return domain.Success(result)
}

func decodeResult(data []byte) (domain.BlendResult, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.BlendResult{}, fmt.Errorf("could not interpret blend result as an image: %w", err)
	}

	return domain.NewImageResult(img), nil
}

func imageResult(img image.Image, err error) (domain.BlendResult, error) {
	if err != nil {
		return domain.BlendResult{}, err
	}

	if img == nil {
		return domain.BlendResult{}, nil
	}

	return domain.NewImageResult(img), nil
}

// MemoryProvider passes the upload bytes straight to the script.
type MemoryProvider struct {
	path string
	open Opener
}

func NewMemoryProvider(path string, open Opener) *MemoryProvider {
	return &MemoryProvider{path: path, open: open}
}

func (p *MemoryProvider) Name() string {
	return "memory"
}

func (p *MemoryProvider) Attempt(ctx context.Context, images []domain.UploadedImage, _ port.Workspace) domain.Outcome {
	sym, reason, err := loadSymbol(p.open, p.path, MemorySymbol)
	if err != nil {
		return domain.Failed(err)
	}
	if sym == nil {
		return domain.NotApplicable(reason)
	}

	payloads := domain.Payloads(images)

	switch fn := sym.(type) {
	case func([][]byte) (image.Image, error):
		return outcome(call(func() (domain.BlendResult, error) {
			return imageResult(fn(payloads))
		}))
	case func([][]byte) ([]byte, error):
		return outcome(call(func() (domain.BlendResult, error) {
			data, err := fn(payloads)
			if err != nil {
				return domain.BlendResult{}, err
			}
			if len(data) == 0 {
				return domain.BlendResult{}, nil
			}
			return decodeResult(data)
		}))
	default:
		zerolog.Ctx(ctx).Debug().Str("symbol", MemorySymbol).Str("type", fmt.Sprintf("%T", sym)).
			Msg("unsupported symbol signature")
		return domain.NotApplicable(fmt.Sprintf("symbol %s has signature %T", MemorySymbol, sym))
	}
}

// PathProvider stages the uploads in the workspace and passes the file paths to the script.
type PathProvider struct {
	path string
	open Opener
}

func NewPathProvider(path string, open Opener) *PathProvider {
	return &PathProvider{path: path, open: open}
}

func (p *PathProvider) Name() string {
	return "path"
}

func (p *PathProvider) Attempt(ctx context.Context, images []domain.UploadedImage, ws port.Workspace) domain.Outcome {
	sym, reason, err := loadSymbol(p.open, p.path, PathSymbol)
	if err != nil {
		return domain.Failed(err)
	}
	if sym == nil {
		return domain.NotApplicable(reason)
	}

	switch sym.(type) {
	case func([]string) (image.Image, error), func([]string) (string, error):
	default:
		zerolog.Ctx(ctx).Debug().Str("symbol", PathSymbol).Str("type", fmt.Sprintf("%T", sym)).
			Msg("unsupported symbol signature")
		return domain.NotApplicable(fmt.Sprintf("symbol %s has signature %T", PathSymbol, sym))
	}

	paths, err := ws.Stage(images)
	if err != nil {
		return domain.Failed(err)
	}

	return outcome(call(func() (domain.BlendResult, error) {
		switch fn := sym.(type) {
		case func([]string) (image.Image, error):
			return imageResult(fn(paths))
		case func([]string) (string, error):
			out, err := fn(paths)
			if err != nil {
				return domain.BlendResult{}, err
			}
			if out == "" {
				return domain.BlendResult{}, nil
			}
			return domain.NewPathResult(out), nil
		}
		return domain.BlendResult{}, nil
	}))
}
