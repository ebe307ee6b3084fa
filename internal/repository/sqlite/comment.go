package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snapfeed/internal/apperror"
	"github.com/sakif/snapfeed/internal/model"
	"github.com/sakif/snapfeed/internal/repository"
)

var _ repository.CommentRepository = (*CommentDB)(nil)

type CommentDB struct {
	db *DB
}

const commentColumns = `id, post_id, user_id, user_name, content, created_at`

func scanComment(s scanner) (*model.Comment, error) {
	var c model.Comment
	if err := s.Scan(&c.ID, &c.PostID, &c.UserID, &c.UserName, &c.Content, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func getComment(ctx context.Context, q querier, id string) (*model.Comment, error) {
	c, err := scanComment(q.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("getting comment %s: %w", id, err)
	}
	return c, nil
}

// Create inserts the comment and bumps the post's comment_count in one
// transaction. If the post is gone nothing is written.
func (c *CommentDB) Create(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	comment.CreatedAt = time.Now().UTC()

	err := c.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE posts SET comment_count = comment_count + 1 WHERE id = ?`,
			comment.PostID,
		)
		if err != nil {
			return fmt.Errorf("incrementing comment count: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("post", comment.PostID)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			comment.ID,
			comment.PostID,
			comment.UserID,
			comment.UserName,
			comment.Content,
			comment.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting comment: %w", err)
		}
		return nil
	})
	return wrapTxErr("creating comment", err)
}

// GetByID returns apperror.ErrNotFound if the comment does not exist.
func (c *CommentDB) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	comment, err := getComment(ctx, c.db.conn, id)
	if err != nil {
		return nil, wrapTxErr("reading comment", err)
	}
	return comment, nil
}

// List returns comments oldest first. An empty postID lists all comments.
func (c *CommentDB) List(ctx context.Context, postID string) ([]model.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments`
	args := []any{}
	if postID != "" {
		query += ` WHERE post_id = ?`
		args = append(args, postID)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := c.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments: %w", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, *comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}

// Update rewrites the comment's content.
func (c *CommentDB) Update(ctx context.Context, comment *model.Comment) error {
	result, err := c.db.conn.ExecContext(ctx,
		`UPDATE comments SET content = ? WHERE id = ?`,
		comment.Content, comment.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating comment %s: %w", comment.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("comment", comment.ID)
	}
	return nil
}

// Delete removes the comment and decrements the owning post's comment_count
// in the same transaction. A post that has already gone does not fail the
// delete, and the counter never drops below zero.
func (c *CommentDB) Delete(ctx context.Context, id string) (*model.Comment, error) {
	var deleted *model.Comment

	err := c.db.withTx(ctx, func(tx *sql.Tx) error {
		comment, err := getComment(ctx, tx, id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting comment: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET comment_count = comment_count - 1
			 WHERE id = ? AND comment_count > 0`,
			comment.PostID,
		)
		if err != nil {
			return fmt.Errorf("decrementing comment count: %w", err)
		}

		deleted = comment
		return nil
	})
	if err != nil {
		return nil, wrapTxErr("deleting comment "+id, err)
	}
	return deleted, nil
}

// wrapTxErr passes typed application errors through untouched and prefixes
// everything else with the store name and action.
func wrapTxErr(action string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("sqlite: %s: %w", action, err)
}
