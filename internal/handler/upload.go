package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/snapfeed/internal/apperror"
	"github.com/sakif/snapfeed/internal/storage"
)

// UploadHandler accepts standalone image uploads.
type UploadHandler struct {
	images *imageSaver
}

func NewUploadHandler(store storage.Store, maxBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{images: &imageSaver{store: store, maxBytes: maxBytes, logger: logger}}
}

// HandleUpload stores one image and returns its public URL.
//
// HTTP: POST /api/file (multipart/form-data, field "file")
// RESPONSE: 201 {"url": "..."}
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := h.images.parseForm(w, r, "file"); err != nil {
		writeError(w, err)
		return
	}

	url, found, err := h.images.formImage(r, "file")
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, apperror.ValidationFailed("file", "a file is required"))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
