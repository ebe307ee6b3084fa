package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/snapfeed/internal/caption"
)

// CaptionHandler suggests captions for a post.
type CaptionHandler struct {
	captions *caption.Service
	logger   *slog.Logger
}

func NewCaptionHandler(captions *caption.Service, logger *slog.Logger) *CaptionHandler {
	return &CaptionHandler{captions: captions, logger: logger}
}

type captionRequest struct {
	Prompt string `json:"prompt" validate:"max=500"`
}

type captionResponse struct {
	Caption string `json:"caption"`
}

// HandleGenerate: POST /api/ai/generate-caption {"prompt": "..."}
//
// Always answers 200 for a non-empty prompt; when no model responds the
// caption is the prompt itself.
func (h *CaptionHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req captionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	text, err := h.captions.Generate(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, captionResponse{Caption: text})
}
