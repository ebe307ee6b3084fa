package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/snapfeed/internal/apperror"
	"github.com/sakif/snapfeed/internal/storage"
)

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

// multipartOverhead leaves room for the form framing and text fields around
// the file itself.
const multipartOverhead = 64 << 10

// imageSaver checks and stores uploaded images. The content type is sniffed
// from the bytes; the client's declared type and file name are ignored.
type imageSaver struct {
	store    storage.Store
	maxBytes int64
	logger   *slog.Logger
}

// parseForm caps and parses a multipart body. Errors name field, the file
// the caller is after.
func (s *imageSaver) parseForm(w http.ResponseWriter, r *http.Request, field string) error {
	limit := s.maxBytes + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return s.tooLarge(field)
		}
		return apperror.ValidationFailed(field, "expected a multipart form")
	}
	return nil
}

// formImage stores the file sent in the named field of a parsed form. found
// is false when the request carries no such file.
func (s *imageSaver) formImage(r *http.Request, field string) (url string, found bool, err error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", false, nil
		}
		return "", false, apperror.ValidationFailed(field, "could not read the upload")
	}
	defer file.Close()

	url, err = s.save(r.Context(), field, file)
	return url, true, err
}

func (s *imageSaver) save(ctx context.Context, field string, file io.Reader) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", apperror.ValidationFailed(field, "the file is empty")
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if _, ok := storage.AllowedTypes[contentType]; !ok {
		return "", apperror.ValidationFailed(field, "only JPEG, PNG, GIF and WebP images are allowed")
	}

	// Read one byte past the cap to detect overflow.
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), file), s.maxBytes+1)
	buf, err := io.ReadAll(body)
	if err != nil {
		return "", apperror.ValidationFailed(field, "could not read the upload")
	}
	if int64(len(buf)) > s.maxBytes {
		return "", s.tooLarge(field)
	}

	url, err := s.store.Save(ctx, contentType, bytes.NewReader(buf))
	if err != nil {
		s.logger.Error("upload failed", slog.String("error", err.Error()))
		return "", apperror.Transient("file upload", err)
	}

	s.logger.Info("file uploaded", slog.String("url", url), slog.Int("bytes", len(buf)))
	return url, nil
}

func (s *imageSaver) tooLarge(field string) error {
	return apperror.ValidationFailed(field, fmt.Sprintf("file must be %d bytes or smaller", s.maxBytes))
}
