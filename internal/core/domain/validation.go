package domain

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

type Constraint string

const (
	ConstraintCount Constraint = "count"
	ConstraintType  Constraint = "type"
	ConstraintSize  Constraint = "size"
	ConstraintEmpty Constraint = "empty"
)

// ValidationError describes an upload that breaks one of the input constraints. It matches ErrValidation.
type ValidationError struct {
	Constraint Constraint
	Filename   string
	Message    string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidateUploads checks file count, type and size of a blend request. It has no side effects.
func ValidateUploads(images []UploadedImage) error {
	if len(images) < MinFiles || len(images) > MaxFiles {
		return &ValidationError{
			Constraint: ConstraintCount,
			Message:    fmt.Sprintf("Please upload between %d and %d images.", MinFiles, MaxFiles),
		}
	}

	for _, img := range images {
		if !IsAcceptedImage(img) {
			return &ValidationError{
				Constraint: ConstraintType,
				Filename:   img.Filename,
				Message:    fmt.Sprintf("File '%s' is not a PNG, JPEG, or WebP image.", img.Filename),
			}
		}

		if img.Size > MaxFileBytes || int64(len(img.Data)) > MaxFileBytes {
			return NewFileTooLargeError(img.Filename)
		}

		if len(img.Data) == 0 {
			return &ValidationError{
				Constraint: ConstraintEmpty,
				Filename:   img.Filename,
				Message:    fmt.Sprintf("File '%s' is empty.", img.Filename),
			}
		}
	}

	return nil
}

func NewFileTooLargeError(filename string) *ValidationError {
	return &ValidationError{
		Constraint: ConstraintSize,
		Filename:   filename,
		Message:    fmt.Sprintf("File '%s' exceeds %d MB limit.", filename, MaxFileMB),
	}
}

// IsAcceptedImage reports whether the declared media type, the filename extension or the sniffed content type
// names one of the accepted formats. Client media types are unreliable, so any one of them is enough.
func IsAcceptedImage(img UploadedImage) bool {
	if AcceptedMediaTypes[normalizeMediaType(img.ContentType)] {
		return true
	}

	if AcceptedExtensions[strings.ToLower(filepath.Ext(img.Filename))] {
		return true
	}

	if len(img.Data) > 0 && AcceptedMediaTypes[http.DetectContentType(img.Data)] {
		return true
	}

	return false
}

func normalizeMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}

	return mediaType
}
