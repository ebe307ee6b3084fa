package handler

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snapfeed/internal/auth"
	"github.com/sakif/snapfeed/internal/model"
	"github.com/sakif/snapfeed/internal/service"
	"github.com/sakif/snapfeed/internal/storage"
)

// PostHandler serves the feed. Reads are public; writes need an access token.
//
// The author of a new post is always the caller: the user id comes from the
// token and the display name from the user record, never from the body.
type PostHandler struct {
	posts  *service.PostService
	users  *service.UserService
	images *imageSaver
	logger *slog.Logger
}

func NewPostHandler(
	posts *service.PostService,
	users *service.UserService,
	store storage.Store,
	maxImageBytes int64,
	logger *slog.Logger,
) *PostHandler {
	return &PostHandler{
		posts:  posts,
		users:  users,
		images: &imageSaver{store: store, maxBytes: maxImageBytes, logger: logger},
		logger: logger,
	}
}

// postView is a post as the caller sees it. Liked is false for anonymous
// readers.
type postView struct {
	*model.Post
	Liked bool `json:"liked"`
}

func viewFor(r *http.Request, post *model.Post) postView {
	callerID, ok := auth.UserIDFromContext(r.Context())
	return postView{Post: post, Liked: ok && post.LikedBy(callerID)}
}

// HandleList returns posts newest first.
//
// HTTP: GET /api/posts?userId=&limit=&offset=
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, err)
		return
	}

	posts, err := h.posts.List(r.Context(), service.PostFilter{
		UserID: r.URL.Query().Get("userId"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]postView, len(posts))
	for i := range posts {
		views[i] = viewFor(r, &posts[i])
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleGetByID: GET /api/posts/{id}
func (h *PostHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewFor(r, post))
}

type postRequest struct {
	Text     string `json:"text" validate:"required"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

// readPost accepts either JSON or a multipart form with a "text" field and an
// optional "image" file. An uploaded image wins over an imageUrl field. The
// text is validated before the image is stored.
func (h *PostHandler) readPost(w http.ResponseWriter, r *http.Request) (postRequest, error) {
	var req postRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		err := decodeJSON(w, r, &req)
		return req, err
	}

	if err := h.images.parseForm(w, r, "image"); err != nil {
		return req, err
	}
	req.Text = r.FormValue("text")
	req.ImageURL = r.FormValue("imageUrl")
	if err := validateStruct(&req); err != nil {
		return req, err
	}

	url, found, err := h.images.formImage(r, "image")
	if err != nil {
		return req, err
	}
	if found {
		req.ImageURL = url
	}
	return req, nil
}

// HandleCreate: POST /api/posts
//
// BODY: {"text": "...", "imageUrl": "..."} or multipart/form-data with
// "text" and an optional "image" file.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, err := h.readPost(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	callerID, _ := auth.UserIDFromContext(r.Context())
	author, err := h.users.Author(r.Context(), callerID)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Create(r.Context(), author, req.Text, req.ImageURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate: PUT /api/posts/{id}, same body as HandleCreate. Sending
// neither an image nor imageUrl keeps the old image.
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	req, err := h.readPost(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	callerID, _ := auth.UserIDFromContext(r.Context())
	post, err := h.posts.Update(r.Context(), callerID, chi.URLParam(r, "id"), req.Text, req.ImageURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// HandleDelete: DELETE /api/posts/{id}. Responds with the removed post.
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	callerID, _ := auth.UserIDFromContext(r.Context())
	post, err := h.posts.Delete(r.Context(), callerID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// HandleLike toggles the caller's like and returns the updated post.
//
// HTTP: POST /api/posts/{id}/like
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	callerID, _ := auth.UserIDFromContext(r.Context())
	post, err := h.posts.ToggleLike(r.Context(), chi.URLParam(r, "id"), callerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewFor(r, post))
}
