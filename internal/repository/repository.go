package repository

import (
	"context"

	"github.com/sakif/snapfeed/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// PostListOptions narrows a post listing. An empty UserID lists every author.
type PostListOptions struct {
	ListOptions
	UserID string
}

// UserRepository stores accounts and their refresh-token lists.
//
// The token methods are single-statement updates, so two requests touching the
// same user's list never overwrite each other.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) error

	// AppendToken adds a refresh token to the end of the user's list. It
	// returns apperror.ErrNotFound when the user does not exist.
	AppendToken(ctx context.Context, userID, token string) error
	// ReplaceToken swaps oldToken for newToken in place. It reports false
	// when oldToken is not on the list, in which case nothing changes.
	ReplaceToken(ctx context.Context, userID, oldToken, newToken string) (bool, error)
	// RemoveToken deletes one token and reports whether it was present.
	RemoveToken(ctx context.Context, userID, token string) (bool, error)
	// ClearTokens revokes every session of the user.
	ClearTokens(ctx context.Context, userID string) error
}

// PostRepository stores posts together with their liker sets and counters.
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	List(ctx context.Context, opts PostListOptions) ([]model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id string) error

	// ToggleLike flips userID's membership in the liker set and adjusts
	// LikeCount in the same atomic step, returning the post afterwards.
	ToggleLike(ctx context.Context, postID, userID string) (*model.Post, error)
}

// CommentRepository stores comments. Create and Delete also maintain the
// owning post's CommentCount atomically.
type CommentRepository interface {
	// Create returns apperror.ErrNotFound when the post does not exist.
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	List(ctx context.Context, postID string) ([]model.Comment, error)
	Update(ctx context.Context, comment *model.Comment) error
	// Delete removes the comment and returns it as it was stored.
	Delete(ctx context.Context, id string) (*model.Comment, error)
}
