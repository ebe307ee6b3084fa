package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/snapfeed/internal/apperror"
	"github.com/sakif/snapfeed/internal/auth"
	"github.com/sakif/snapfeed/internal/model"
	"github.com/sakif/snapfeed/internal/repository"
)

// badCredentials is the one message for both unknown email and wrong
// password, so login never reveals which accounts exist.
const badCredentials = "bad email or password"

// PasswordHasher hashes and checks passwords. *auth.PasswordService is the
// production implementation.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
}

// AuthService manages the session lifecycle: register, password login,
// federated login, refresh-token rotation and logout.
//
// INVARIANT: the refresh tokens a user can redeem are exactly the ones stored
// on that user's record. Every mutation of that list is a single repository
// call, so concurrent requests cannot lose each other's updates.
//
// Per refresh token:
//
//	issued ──► active ──► rotated out      (Refresh)
//	                  ├─► removed          (Logout)
//	                  └─► revoked with all (reuse detected)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords PasswordHasher
	verifier  auth.IdentityVerifier
	runner

	dummyOnce sync.Once
	dummy     string
}

// NewAuthService wires the session manager. verifier may be nil when Google
// sign-in is not configured; FederatedLogin then always fails with 401.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords PasswordHasher,
	verifier auth.IdentityVerifier,
	timeout time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		verifier:  verifier,
		runner:    newRunner(timeout, logger),
	}
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// FederatedResult is the outcome of a Google sign-in. Created reports whether
// the account was made by this call.
type FederatedResult struct {
	TokenPair
	User    *model.User `json:"user"`
	Created bool        `json:"created"`
}

// Register creates a password account. No tokens are issued; the client logs
// in afterwards.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)

	if email == "" || username == "" || password == "" {
		return nil, apperror.ValidationFailed("", "incomplete user data provided")
	}
	if len(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or fewer", MaxUsernameLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	user := &model.User{Email: email, Username: username, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("user", email)
		}
		return nil, s.fail("register", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return user, nil
}

// Login checks the password and starts a new session. Every successful login
// adds exactly one refresh token, so a user may hold several sessions.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "incomplete user data provided")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, s.fail("login", err)
		}
		user = nil
	}

	// Unknown and federated accounts still pay for one bcrypt comparison, so
	// response time does not tell them apart from a wrong password.
	if user == nil || user.IsFederated() {
		_ = s.passwords.Verify(s.dummyHash(), password)
		return nil, apperror.Unauthenticated(badCredentials)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthenticated(badCredentials)
	}

	pair, err := s.issue(ctx, user.ID)
	if err != nil {
		// Deleted between the lookup and the token insert.
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated(badCredentials)
		}
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return pair, nil
}

// FederatedLogin signs a user in with a Google ID token. A first-time email
// gets an account holding the federated password sentinel. Both new and
// existing users receive a fresh token pair.
func (s *AuthService) FederatedLogin(ctx context.Context, identityToken string) (*FederatedResult, error) {
	if identityToken == "" {
		return nil, apperror.Unauthenticated("no identity token provided")
	}
	if s.verifier == nil {
		return nil, apperror.Unauthenticated("federated sign-in is not configured")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	identity, err := s.verifier.Verify(ctx, identityToken)
	if err != nil {
		if errors.Is(err, auth.ErrIdentityRejected) {
			s.logger.Warn("identity token rejected", slog.String("error", err.Error()))
			return nil, apperror.Unauthenticated("identity token could not be verified")
		}
		return nil, s.fail("federated login", err)
	}

	user, created, err := s.findOrCreateFederated(ctx, identity)
	if err != nil {
		return nil, err
	}

	pair, err := s.issue(ctx, user.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("account no longer exists")
		}
		return nil, err
	}

	s.logger.Info("user signed in with google",
		slog.String("userID", user.ID),
		slog.Bool("created", created),
	)
	return &FederatedResult{TokenPair: *pair, User: user, Created: created}, nil
}

func (s *AuthService) findOrCreateFederated(ctx context.Context, id *auth.Identity) (*model.User, bool, error) {
	user, err := s.users.GetByEmail(ctx, id.Email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, s.fail("federated login", err)
	}

	username := strings.TrimSpace(id.Name)
	if username == "" {
		username, _, _ = strings.Cut(id.Email, "@")
	}

	user = &model.User{
		Email:        id.Email,
		Username:     username,
		PasswordHash: model.FederatedPassword,
		AvatarURL:    id.Picture,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, false, s.fail("federated login", err)
		}
		// Another request created the account between our lookup and insert.
		existing, err := s.users.GetByEmail(ctx, id.Email)
		if err != nil {
			return nil, false, s.fail("federated login", err)
		}
		return existing, false, nil
	}
	return user, true, nil
}

// Refresh rotates a refresh token. The presented token is replaced in place
// by a new one and a new access token is issued.
//
// A validly signed token that is no longer on the user's list has already
// been rotated or logged out, so someone is replaying it. Every session of
// that user is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, apperror.Unauthenticated("no token provided")
	}

	userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, apperror.Forbidden("invalid refresh token")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Forbidden("invalid request")
		}
		return nil, s.fail("refresh", err)
	}

	access, err := s.tokens.GenerateAccess(userID)
	if err != nil {
		return nil, s.fail("refresh", err)
	}
	next, err := s.tokens.GenerateRefresh(userID)
	if err != nil {
		return nil, s.fail("refresh", err)
	}

	rotated, err := s.users.ReplaceToken(ctx, userID, refreshToken, next)
	if err != nil {
		return nil, s.fail("refresh", err)
	}
	if !rotated {
		return nil, s.revokeAll(ctx, userID, "refresh")
	}

	return &TokenPair{AccessToken: access, RefreshToken: next}, nil
}

// Logout ends the session that owns refreshToken.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperror.Unauthenticated("no token provided")
	}

	userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return apperror.Forbidden("invalid refresh token")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Forbidden("invalid request")
		}
		return s.fail("logout", err)
	}

	removed, err := s.users.RemoveToken(ctx, userID, refreshToken)
	if err != nil {
		return s.fail("logout", err)
	}
	if !removed {
		return s.revokeAll(ctx, userID, "logout")
	}

	s.logger.Info("user logged out", slog.String("userID", userID))
	return nil
}

// revokeAll clears every refresh token of the user after a replayed token was
// presented. It always returns the Forbidden error for the caller to surface.
func (s *AuthService) revokeAll(ctx context.Context, userID, op string) error {
	s.logger.Warn("refresh token reuse detected, revoking all sessions",
		slog.String("userID", userID),
		slog.String("op", op),
	)
	if err := s.users.ClearTokens(ctx, userID); err != nil {
		return s.fail(op, err)
	}
	return apperror.Forbidden("invalid request")
}

// dummyHash returns a hash of a fixed string at the configured cost, built
// on first use.
func (s *AuthService) dummyHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.passwords.Hash("snapfeed-timing-equaliser")
		if err != nil {
			s.logger.Error("hashing dummy password", slog.String("error", err.Error()))
			return
		}
		s.dummy = hash
	})
	return s.dummy
}

// issue mints a token pair and records the refresh token on the user.
func (s *AuthService) issue(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := s.tokens.GenerateAccess(userID)
	if err != nil {
		return nil, s.fail("issuing tokens", err)
	}
	refresh, err := s.tokens.GenerateRefresh(userID)
	if err != nil {
		return nil, s.fail("issuing tokens", err)
	}

	if err := s.users.AppendToken(ctx, userID, refresh); err != nil {
		return nil, s.fail("issuing tokens", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
