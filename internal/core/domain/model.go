package domain

import (
	"fmt"
	"image"
)

// UploadedImage is one file of a blend request. Size is the number of bytes the client sent for the part, which
// can be larger than len(Data) when the transport stopped buffering at the size cap.
type UploadedImage struct {
	Filename    string
	ContentType string
	Data        []byte
	Size        int64
}

// NewUploadedImage creates an UploadedImage whose Size matches its data.
func NewUploadedImage(filename, contentType string, data []byte) UploadedImage {
	return UploadedImage{Filename: filename, ContentType: contentType, Data: data, Size: int64(len(data))}
}

// Payloads returns the raw bytes of every image, in upload order.
func Payloads(images []UploadedImage) [][]byte {
	payloads := make([][]byte, len(images))
	for i, img := range images {
		payloads[i] = img.Data
	}

	return payloads
}

type ResultKind string

const (
	ResultNone  ResultKind = ""
	ResultImage ResultKind = "image"
	ResultPath  ResultKind = "path"
)

// BlendResult holds either a decoded image or the path of an image file, never both.
type BlendResult struct {
	image image.Image
	path  string
}

func NewImageResult(img image.Image) BlendResult {
	return BlendResult{image: img}
}

func NewPathResult(path string) BlendResult {
	return BlendResult{path: path}
}

func (r BlendResult) Kind() ResultKind {
	switch {
	case r.image != nil:
		return ResultImage
	case r.path != "":
		return ResultPath
	default:
		return ResultNone
	}
}

func (r BlendResult) Image() image.Image {
	return r.image
}

func (r BlendResult) Path() string {
	return r.path
}

type OutcomeStatus string

const (
	OutcomeSuccess       OutcomeStatus = "success"
	OutcomeNotApplicable OutcomeStatus = "not_applicable"
	OutcomeFailed        OutcomeStatus = "failed"
)

// Outcome is the result of one provider attempt.
type Outcome struct {
	Status OutcomeStatus
	Result BlendResult
	Err    error
}

func Success(result BlendResult) Outcome {
	return Outcome{Status: OutcomeSuccess, Result: result}
}

// NotApplicable reports that the external script does not implement a contract. The reason is kept for logging.
func NotApplicable(reason string) Outcome {
	return Outcome{Status: OutcomeNotApplicable, Err: fmt.Errorf("%w: %s", ErrProviderNotApplicable, reason)}
}

func Failed(err error) Outcome {
	return Outcome{Status: OutcomeFailed, Err: fmt.Errorf("%w: %w", ErrProviderFailed, err)}
}
