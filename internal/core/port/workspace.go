package port

import "imageblender/internal/core/domain"

type Workspace interface {
	// Dir returns the absolute path of the request-scoped directory.
	Dir() string
	// Stage writes every image into the workspace under a sanitized name and returns the paths in upload order.
	// Repeated calls return the same paths without writing again.
	Stage(images []domain.UploadedImage) ([]string, error)
	// OutputPath returns a sanitized path inside the workspace for a file the caller wants to create.
	OutputPath(name string) string
	// Release removes the directory and everything in it.
	Release() error
}

type WorkspaceManager interface {
	// Acquire creates a fresh, uniquely named workspace.
	Acquire() (Workspace, error)
}
