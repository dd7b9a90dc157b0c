package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"imageblender/internal/core/domain"
	"imageblender/internal/core/port"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const (
	filesField     = "files"
	resultFilename = "blended.png"
	// Room for one file over the limit plus multipart framing, so the validator can report the count.
	maxBodyBytes = (domain.MaxFiles+1)*domain.MaxFileBytes + 1<<20
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type BlendHandler struct {
	blender port.ImageBlender
}

func NewBlendHandler(blender port.ImageBlender) *BlendHandler {
	return &BlendHandler{blender: blender}
}

func (h *BlendHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *BlendHandler) Blend(w http.ResponseWriter, r *http.Request) {
	l := hlog.FromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	images, err := readUploads(r)
	if err != nil {
		status, detail := classifyUploadError(err)
		l.Info().Err(err).Int("status", status).Msg("could not read upload")
		writeJSON(w, status, errorResponse{Detail: detail})
		return
	}

	l.Info().Int("files", len(images)).Msg("handling blend request")

	png, err := h.blender.Blend(r.Context(), images)
	if err != nil {
		status, detail := classifyBlendError(err)
		event := l.Info()
		if status >= http.StatusInternalServerError {
			event = l.Error()
		}
		event.Err(err).Int("status", status).Msg("blend request failed")
		writeJSON(w, status, errorResponse{Detail: detail})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", resultFilename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(png); err != nil {
		l.Warn().Err(err).Msg("failed to write blended image")
	}
}

// readUploads buffers the parts of the files field in memory. At most MaxFileBytes+1 bytes of a part are kept;
// the rest is counted into Size and discarded, so oversized files never reach the disk.
func readUploads(r *http.Request) ([]domain.UploadedImage, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	var images []domain.UploadedImage
	for len(images) <= domain.MaxFiles {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if part.FormName() != filesField {
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, domain.MaxFileBytes+1))
		if err != nil {
			return nil, partError(part.FileName(), int64(len(data)), err)
		}

		rest, err := io.Copy(io.Discard, part)
		if err != nil {
			return nil, partError(part.FileName(), int64(len(data))+rest, err)
		}

		images = append(images, domain.UploadedImage{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
			Size:        int64(len(data)) + rest,
		})
	}

	return images, nil
}

// partError reports a body that hit the request limit inside a file already over the per-file cap as that
// file's size error.
func partError(filename string, read int64, err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) && read > domain.MaxFileBytes {
		return domain.NewFileTooLargeError(filename)
	}

	return err
}

func classifyUploadError(err error) (int, string) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return classifyBlendError(err)
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge, "Request body too large."
	}

	return http.StatusBadRequest, "Expected a multipart form with image files in the 'files' field."
}

// classifyBlendError maps a blend failure to a status and a message that is safe to show to the client.
func classifyBlendError(err error) (int, string) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		switch validationErr.Constraint {
		case domain.ConstraintType:
			return http.StatusUnsupportedMediaType, validationErr.Message
		case domain.ConstraintSize:
			return http.StatusRequestEntityTooLarge, validationErr.Message
		default:
			return http.StatusUnprocessableEntity, validationErr.Message
		}
	case errors.Is(err, domain.ErrFallback):
		return http.StatusUnprocessableEntity, "One or more images could not be read. Please upload valid image files."
	default:
		return http.StatusInternalServerError, "Blending failed."
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to write json response")
	}
}
