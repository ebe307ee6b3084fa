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

// CommentService handles comments. The post's CommentCount moves in the same
// store transaction as the comment row, so it always equals the number of
// comments on the post.
type CommentService struct {
	comments repository.CommentRepository
	runner
}

func NewCommentService(comments repository.CommentRepository, timeout time.Duration, logger *slog.Logger) *CommentService {
	return &CommentService{comments: comments, runner: newRunner(timeout, logger)}
}

// List returns comments oldest first. An empty postID lists all comments.
func (s *CommentService) List(ctx context.Context, postID string) ([]model.Comment, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	comments, err := s.comments.List(ctx, postID)
	if err != nil {
		return nil, s.fail("listing comments", err)
	}
	return comments, nil
}

func (s *CommentService) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "comment id is required")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("reading comment", err)
	}
	return comment, nil
}

func validateContent(content string) error {
	if content == "" {
		return apperror.ValidationFailed("content", "comment content is required")
	}
	if len(content) > MaxCommentLength {
		return apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be %d characters or fewer", MaxCommentLength))
	}
	return nil
}

// CreateComment adds a comment to an existing post and bumps its
// CommentCount by one. A missing post yields NotFound and writes nothing.
func (s *CommentService) CreateComment(ctx context.Context, postID string, author Author, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)

	if postID == "" || author.ID == "" || author.Name == "" {
		return nil, apperror.ValidationFailed("", "incomplete comment data provided")
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	comment := &model.Comment{
		PostID:   postID,
		UserID:   author.ID,
		UserName: author.Name,
		Content:  content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, s.fail("creating comment", err)
	}

	s.logger.Info("comment created",
		slog.String("commentID", comment.ID),
		slog.String("postID", postID),
	)
	return comment, nil
}

// Update rewrites the caller's own comment.
func (s *CommentService) Update(ctx context.Context, callerID, id, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if err := validateContent(content); err != nil {
		return nil, err
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("updating comment", err)
	}
	if comment.UserID != callerID {
		return nil, apperror.Forbidden("you can only edit your own comments")
	}

	comment.Content = content
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, s.fail("updating comment", err)
	}
	return comment, nil
}

// DeleteComment removes a comment and decrements its post's CommentCount by
// one. Deleting the same comment again yields NotFound and leaves the count
// alone.
func (s *CommentService) DeleteComment(ctx context.Context, commentID string) (*model.Comment, error) {
	if commentID == "" {
		return nil, apperror.ValidationFailed("id", "comment id is required")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	comment, err := s.comments.Delete(ctx, commentID)
	if err != nil {
		return nil, s.fail("deleting comment", err)
	}

	s.logger.Info("comment deleted",
		slog.String("commentID", commentID),
		slog.String("postID", comment.PostID),
	)
	return comment, nil
}

// DeleteOwn is DeleteComment restricted to the comment's author.
func (s *CommentService) DeleteOwn(ctx context.Context, callerID, commentID string) (*model.Comment, error) {
	comment, err := s.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != callerID {
		return nil, apperror.Forbidden("you can only delete your own comments")
	}
	return s.DeleteComment(ctx, commentID)
}
