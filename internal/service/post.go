package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/snapfeed/internal/apperror"
	"github.com/sakif/snapfeed/internal/model"
	"github.com/sakif/snapfeed/internal/repository"
)

// PostService handles posts and likes.
//
// Counter consistency is the repository's job: ToggleLike is one atomic
// store call, so N concurrent toggles by N different users always leave
// LikeCount == N.
type PostService struct {
	posts repository.PostRepository
	runner
}

func NewPostService(posts repository.PostRepository, timeout time.Duration, logger *slog.Logger) *PostService {
	return &PostService{posts: posts, runner: newRunner(timeout, logger)}
}

// PostFilter narrows List. An empty UserID lists everyone's posts.
type PostFilter struct {
	UserID string
	Limit  int
	Offset int
}

// List returns posts newest first.
func (s *PostService) List(ctx context.Context, f PostFilter) ([]model.Post, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	posts, err := s.posts.List(ctx, repository.PostListOptions{
		ListOptions: repository.ListOptions{Limit: clampLimit(f.Limit), Offset: max(f.Offset, 0)},
		UserID:      f.UserID,
	})
	if err != nil {
		return nil, s.fail("listing posts", err)
	}
	return posts, nil
}

func (s *PostService) GetByID(ctx context.Context, id string) (*model.Post, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "post id is required")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("reading post", err)
	}
	return post, nil
}

func validatePostText(text string) error {
	if text == "" {
		return apperror.ValidationFailed("text", "post text is required")
	}
	if len(text) > MaxPostTextLength {
		return apperror.ValidationFailed("text",
			fmt.Sprintf("post text must be %d characters or fewer", MaxPostTextLength))
	}
	return nil
}

// Create publishes a post by author. imageURL is optional.
func (s *PostService) Create(ctx context.Context, author Author, text, imageURL string) (*model.Post, error) {
	text = strings.TrimSpace(text)

	if author.ID == "" || author.Name == "" {
		return nil, apperror.ValidationFailed("userId", "incomplete post data provided")
	}
	if err := validatePostText(text); err != nil {
		return nil, err
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	post := &model.Post{
		UserID:   author.ID,
		UserName: author.Name,
		Text:     text,
		ImageURL: imageURL,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, s.fail("creating post", err)
	}

	s.logger.Info("post created", slog.String("postID", post.ID), slog.String("userID", author.ID))
	return post, nil
}

// Update replaces the text of the caller's own post. An empty imageURL keeps
// the current image.
func (s *PostService) Update(ctx context.Context, callerID, id, text, imageURL string) (*model.Post, error) {
	text = strings.TrimSpace(text)
	if err := validatePostText(text); err != nil {
		return nil, err
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("updating post", err)
	}
	if post.UserID != callerID {
		return nil, apperror.Forbidden("you can only edit your own posts")
	}

	post.Text = text
	if imageURL != "" {
		post.ImageURL = imageURL
	}
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, s.fail("updating post", err)
	}

	return post, nil
}

// Delete removes the caller's own post along with its comments and likes and
// returns the post as it was.
func (s *PostService) Delete(ctx context.Context, callerID, id string) (*model.Post, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("deleting post", err)
	}
	if post.UserID != callerID {
		return nil, apperror.Forbidden("you can only delete your own posts")
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return nil, s.fail("deleting post", err)
	}

	s.logger.Info("post deleted", slog.String("postID", id))
	return post, nil
}

// ToggleLike adds userID to the post's likers if absent and removes it if
// present, moving LikeCount with it. Calling it twice restores the original
// state.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID string) (*model.Post, error) {
	if postID == "" {
		return nil, apperror.ValidationFailed("id", "post id is required")
	}
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user id is required")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	post, err := s.posts.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, s.fail("toggling like", err)
	}
	return post, nil
}
