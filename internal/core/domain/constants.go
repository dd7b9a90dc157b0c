package domain

import "errors"

const (
	MinFiles     = 2
	MaxFiles     = 15
	MaxFileMB    = 4
	MaxFileBytes = MaxFileMB * 1024 * 1024
	// MaxPixels caps the decoded size of a single image. Compressed formats can declare far more pixels than
	// their byte size suggests.
	MaxPixels = 89_478_485
)

// AcceptedExtensions and AcceptedMediaTypes describe the formats the blender decodes: PNG, JPEG and WebP.
var (
	AcceptedExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}
	AcceptedMediaTypes = map[string]bool{"image/png": true, "image/jpeg": true, "image/webp": true}
)

var (
	ErrValidation            = errors.New("invalid upload")
	ErrProviderNotApplicable = errors.New("blend provider not applicable")
	ErrProviderFailed        = errors.New("blend provider failed")
	ErrFallback              = errors.New("unreadable image")
	ErrEncoding              = errors.New("failed to encode blended image")
	ErrWorkspace             = errors.New("workspace unavailable")
)
