package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snapfeed/internal/auth"
	"github.com/sakif/snapfeed/internal/service"
)

// CommentHandler serves comments on posts.
type CommentHandler struct {
	comments *service.CommentService
	users    *service.UserService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, users *service.UserService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, users: users, logger: logger}
}

// HandleList: GET /api/comments?post=<postId>. Without ?post every comment
// is returned.
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.List(r.Context(), r.URL.Query().Get("post"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// HandleGetByID: GET /api/comments/{id}
func (h *CommentHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	comment, err := h.comments.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comment)
}

type createCommentRequest struct {
	PostID  string `json:"post" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// HandleCreate: POST /api/comments {"post": "<postId>", "content": "..."}
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	callerID, _ := auth.UserIDFromContext(r.Context())
	author, err := h.users.Author(r.Context(), callerID)
	if err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.comments.CreateComment(r.Context(), req.PostID, author, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

type updateCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

// HandleUpdate: PUT /api/comments/{id}
func (h *CommentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	callerID, _ := auth.UserIDFromContext(r.Context())
	comment, err := h.comments.Update(r.Context(), callerID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comment)
}

// HandleDelete: DELETE /api/comments/{id}. Responds with the removed comment.
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	callerID, _ := auth.UserIDFromContext(r.Context())
	comment, err := h.comments.DeleteOwn(r.Context(), callerID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comment)
}
