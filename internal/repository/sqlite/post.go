package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snapfeed/internal/apperror"
	"github.com/sakif/snapfeed/internal/model"
	"github.com/sakif/snapfeed/internal/repository"
)

var _ repository.PostRepository = (*PostDB)(nil)

// PostDB stores posts. The liker set lives in post_likes; like_count and
// comment_count are denormalised onto the post row and only ever changed in
// the same transaction as the rows they count.
type PostDB struct {
	db *DB
}

// postSelect reads a post together with its likers as a JSON array in the
// order they liked it.
const postSelect = `
	SELECT p.id, p.user_id, p.user_name, p.text, p.image_url,
	       p.like_count, p.comment_count, p.created_at, p.updated_at,
	       (SELECT json_group_array(l.user_id ORDER BY l.rowid)
	          FROM post_likes l WHERE l.post_id = p.id)
	  FROM posts p`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*model.Post, error) {
	var (
		p     model.Post
		likes string
	)
	if err := s.Scan(
		&p.ID,
		&p.UserID,
		&p.UserName,
		&p.Text,
		&p.ImageURL,
		&p.LikeCount,
		&p.CommentCount,
		&p.CreatedAt,
		&p.UpdatedAt,
		&likes,
	); err != nil {
		return nil, err
	}

	p.Likes = []string{}
	if likes != "" {
		if err := json.Unmarshal([]byte(likes), &p.Likes); err != nil {
			return nil, fmt.Errorf("decoding likes of post %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func getPost(ctx context.Context, q querier, id string) (*model.Post, error) {
	post, err := scanPost(q.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return post, nil
}

// Create inserts a post with an empty liker set and zero counters.
func (p *PostDB) Create(ctx context.Context, post *model.Post) error {
	now := time.Now().UTC()
	post.ID = xid.New().String()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.Likes = []string{}
	post.LikeCount = 0
	post.CommentCount = 0

	_, err := p.db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, user_name, text, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.UserID,
		post.UserName,
		post.Text,
		post.ImageURL,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}
	return nil
}

// GetByID returns apperror.ErrNotFound if the post does not exist.
func (p *PostDB) GetByID(ctx context.Context, id string) (*model.Post, error) {
	return getPost(ctx, p.db.conn, id)
}

// List returns posts newest first, optionally restricted to one author.
func (p *PostDB) List(ctx context.Context, opts repository.PostListOptions) ([]model.Post, error) {
	limit, offset := clampList(opts.ListOptions)

	query := postSelect
	args := []any{}
	if opts.UserID != "" {
		query += ` WHERE p.user_id = ?`
		args = append(args, opts.UserID)
	}
	query += ` ORDER BY p.created_at DESC, p.rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := p.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}

// Update writes the editable fields (text and image). Counters and likes are
// owned by ToggleLike and the comment store.
func (p *PostDB) Update(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = time.Now().UTC()

	result, err := p.db.conn.ExecContext(ctx,
		`UPDATE posts SET text = ?, image_url = ?, updated_at = ? WHERE id = ?`,
		post.Text,
		post.ImageURL,
		post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %s: %w", post.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", post.ID)
	}
	return nil
}

// Delete removes the post. Its likes and comments are removed by the
// foreign-key cascade.
func (p *PostDB) Delete(ctx context.Context, id string) error {
	result, err := p.db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}

// ToggleLike adds userID to the liker set if absent, otherwise removes it,
// and moves like_count by one in the same direction. Membership and counter
// change in one transaction, so like_count always equals the number of
// post_likes rows for the post.
func (p *PostDB) ToggleLike(ctx context.Context, postID, userID string) (*model.Post, error) {
	var post *model.Post

	err := p.db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&exists)
		if err == sql.ErrNoRows {
			return apperror.NotFound("post", postID)
		}
		if err != nil {
			return fmt.Errorf("checking post %s: %w", postID, err)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)`,
			postID, userID, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("adding like: %w", err)
		}
		added, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}

		if added == 1 {
			_, err = tx.ExecContext(ctx,
				`UPDATE posts SET like_count = like_count + 1 WHERE id = ?`, postID)
			if err != nil {
				return fmt.Errorf("incrementing like count: %w", err)
			}
		} else {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
			if err != nil {
				return fmt.Errorf("removing like: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE posts SET like_count = like_count - 1 WHERE id = ? AND like_count > 0`, postID)
			if err != nil {
				return fmt.Errorf("decrementing like count: %w", err)
			}
		}

		post, err = getPost(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, wrapTxErr("toggling like on post "+postID, err)
	}

	return post, nil
}
