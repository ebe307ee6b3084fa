package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/snapfeed/internal/apperror"
	"github.com/sakif/snapfeed/internal/auth"
	"github.com/sakif/snapfeed/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler exposes registration, login and session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin  → password accounts
//   - HandleGoogle                  → sign in with an ID token from Google's JS client
//   - HandleGoogleLogin / Callback  → server-side redirect flow ending in the same sign-in
//   - HandleRefresh / HandleLogout  → rotate or end a session (refresh token as Bearer)
//
// google is nil when Google sign-in is not configured; the redirect routes are
// then not mounted at all.
type AuthHandler struct {
	auth   *service.AuthService
	google *auth.GoogleProvider
	logger *slog.Logger
}

func NewAuthHandler(authSvc *service.AuthService, google *auth.GoogleProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, google: google, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister creates a password account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"email": "...", "username": "...", "password": "..."}
// RESPONSE: 201 with the new user (no tokens; the client logs in next).
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin checks credentials and returns a token pair.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

type googleRequest struct {
	Credential string `json:"credential"`
}

// HandleGoogle signs in with a Google ID token obtained by the frontend.
//
// HTTP: POST /api/auth/google
// REQUEST BODY: {"credential": "<id token>"}
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	// An empty credential is a 401 from the service, not a 400.
	result, err := h.auth.FederatedLogin(r.Context(), req.Credential)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /api/auth/google/login
//
// A random state value goes into a short-lived HttpOnly cookie and into the
// redirect; the callback only proceeds when both match (CSRF protection).
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback finishes the redirect flow.
//
// HTTP: GET /api/auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Check the state against the cookie, then clear the cookie
//  2. Exchange the code; Google returns an ID token alongside the access token
//  3. Run the same federated sign-in as HandleGoogle
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("google callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		writeError(w, apperror.Unauthenticated("Google sign-in was cancelled"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	idToken, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: code exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Unauthenticated("Google sign-in failed"))
		return
	}

	result, err := h.auth.FederatedLogin(r.Context(), idToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleRefresh rotates the refresh token sent as the Bearer credential.
//
// HTTP: POST /api/auth/refresh
// Header: Authorization: Bearer <refresh token>
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	pair, err := h.auth.Refresh(r.Context(), auth.BearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// HandleLogout ends the session owning the Bearer refresh token.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), auth.BearerToken(r)); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}
