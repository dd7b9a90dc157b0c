package file

import (
	"errors"
	"fmt"
	"imageblender/internal/core/domain"
	"imageblender/internal/core/port"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

// WorkspaceManager hands out request-scoped directories below root.
type WorkspaceManager struct {
	root   string
	prefix string
}

func NewWorkspaceManager(root, prefix string) *WorkspaceManager {
	if root == "" {
		root = os.TempDir()
	}

	return &WorkspaceManager{root: root, prefix: prefix}
}

// Acquire creates a new directory named after a random UUID. os.Mkdir fails on an existing directory, so two
// requests never share one.
func (m *WorkspaceManager) Acquire() (port.Workspace, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("error generating workspace id %w", err)
	}

	dir, err := filepath.Abs(filepath.Join(m.root, m.prefix+id.String()))
	if err != nil {
		return nil, fmt.Errorf("error resolving workspace path %w", err)
	}

	if err := os.Mkdir(dir, 0o700); err != nil {
		err = fmt.Errorf("error creating workspace %w", err)
		log.Error().Err(err).Send()
		return nil, err
	}

	log.Debug().Str("path", dir).Msg("created workspace")

	return &Workspace{dir: dir}, nil
}

// Workspace is a directory owned by a single request.
type Workspace struct {
	dir      string
	mu       sync.Mutex
	staged   []string
	released bool
}

func (w *Workspace) Dir() string {
	return w.dir
}

// Stage writes the images as NN_<sanitized name> so duplicate client names cannot overwrite each other.
func (w *Workspace) Stage(images []domain.UploadedImage) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return nil, errors.New("workspace already released")
	}

	if w.staged != nil {
		return w.staged, nil
	}

	paths := make([]string, len(images))
	for i, img := range images {
		path := filepath.Join(w.dir, fmt.Sprintf("%02d_%s", i, SanitizeFilename(img.Filename)))

		log.Debug().Int("bytes", len(img.Data)).Str("path", path).Msg("staging upload")

		if err := os.WriteFile(path, img.Data, 0o600); err != nil {
			err = fmt.Errorf("error writing staged file %w", err)
			log.Error().Err(err).Send()
			return nil, err
		}

		paths[i] = path
	}

	w.staged = paths

	return paths, nil
}

func (w *Workspace) OutputPath(name string) string {
	return filepath.Join(w.dir, SanitizeFilename(name))
}

// Release removes the workspace and logs success or failure. Calling it again is a no-op.
func (w *Workspace) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return nil
	}

	w.released = true
	w.staged = nil

	if err := os.RemoveAll(w.dir); err != nil {
		log.Warn().Str("path", w.dir).Err(err).Msg("could not clean up workspace")
		return err
	}

	log.Debug().Str("path", w.dir).Msg("cleaned up workspace")

	return nil
}
