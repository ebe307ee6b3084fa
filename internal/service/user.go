package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/snapfeed/internal/apperror"
	"github.com/sakif/snapfeed/internal/model"
	"github.com/sakif/snapfeed/internal/repository"
)

// UserService serves profile reads and self-service profile edits.
type UserService struct {
	users repository.UserRepository
	runner
}

func NewUserService(users repository.UserRepository, timeout time.Duration, logger *slog.Logger) *UserService {
	return &UserService{users: users, runner: newRunner(timeout, logger)}
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	users, err := s.users.List(ctx, repository.ListOptions{Limit: clampLimit(limit), Offset: max(offset, 0)})
	if err != nil {
		return nil, s.fail("listing users", err)
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user id is required")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("reading user", err)
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.fail("reading user", err)
	}
	return user, nil
}

// Author resolves the display identity that goes onto new posts and comments.
// A caller whose account has been deleted is treated as unauthenticated.
func (s *UserService) Author(ctx context.Context, userID string) (Author, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return Author{}, apperror.Unauthenticated("account no longer exists")
		}
		return Author{}, err
	}
	return Author{ID: user.ID, Name: user.Username}, nil
}

// UpdateProfile changes the caller's own username and avatar. An empty
// avatarURL keeps the current avatar. Taking a username another account
// already uses is a conflict.
func (s *UserService) UpdateProfile(ctx context.Context, callerID, id, username, avatarURL string) (*model.User, error) {
	username = strings.TrimSpace(username)

	if callerID != id {
		return nil, apperror.Forbidden("you can only edit your own profile")
	}
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or fewer", MaxUsernameLength))
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("updating user", err)
	}

	if username != user.Username {
		other, err := s.users.GetByUsername(ctx, username)
		switch {
		case err == nil && other.ID != id:
			return nil, apperror.Conflict("username", username)
		case err != nil && !errors.Is(err, apperror.ErrNotFound):
			return nil, s.fail("updating user", err)
		}
	}

	user.Username = username
	if avatarURL != "" {
		user.AvatarURL = avatarURL
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, s.fail("updating user", err)
	}

	s.logger.Info("profile updated", slog.String("userID", id))
	return user, nil
}

// Delete removes the caller's own account together with its sessions.
func (s *UserService) Delete(ctx context.Context, callerID, id string) error {
	if callerID != id {
		return apperror.Forbidden("you can only delete your own account")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	if err := s.users.Delete(ctx, id); err != nil {
		return s.fail("deleting user", err)
	}

	s.logger.Info("user deleted", slog.String("userID", id))
	return nil
}
