package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snapfeed/internal/apperror"
	"github.com/sakif/snapfeed/internal/model"
	"github.com/sakif/snapfeed/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB stores users and their refresh-token lists.
type UserDB struct {
	db *DB
}

const userColumns = `id, email, username, password_hash, avatar_url, created_at, updated_at`

// Create inserts a new user. The ID and timestamps are filled in on the
// caller's struct. A duplicate email is reported as apperror.ErrConflict, so
// two racing registrations for the same address cannot both succeed.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Tokens = []string{}

	_, err := u.db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user, including the refresh-token list, by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.getBy(ctx, "id", id)
}

// GetByEmail looks a user up by exact email.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getBy(ctx, "email", email)
}

// GetByUsername returns the first user registered with username.
func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.getBy(ctx, "username", username)
}

// getBy is shared by the single-user lookups. column is always one of our
// own constants, never user input.
func (u *UserDB) getBy(ctx context.Context, column, value string) (*model.User, error) {
	var user model.User
	err := u.db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ? ORDER BY created_at LIMIT 1`,
		value,
	).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}

	tokens, err := u.tokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Tokens = tokens

	return &user, nil
}

// tokens loads the user's refresh tokens in issue order.
func (u *UserDB) tokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := u.db.conn.QueryContext(ctx,
		`SELECT token FROM refresh_tokens WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tokens for user %s: %w", userID, err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("sqlite: scanning token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tokens: %w", err)
	}
	return tokens, nil
}

// List returns users ordered by registration time. Token lists are not loaded.
func (u *UserDB) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	limit, offset := clampList(opts)

	rows, err := u.db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		var usr model.User
		if err := rows.Scan(
			&usr.ID, &usr.Email, &usr.Username, &usr.PasswordHash,
			&usr.AvatarURL, &usr.CreatedAt, &usr.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, usr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// UpdateProfile writes username and avatar. Email, password and tokens are
// not touched here.
func (u *UserDB) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := u.db.conn.ExecContext(ctx,
		`UPDATE users SET username = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		user.Username,
		user.AvatarURL,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}

// Delete removes a user. Their refresh tokens go with them (ON DELETE CASCADE).
func (u *UserDB) Delete(ctx context.Context, id string) error {
	result, err := u.db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}

// AppendToken records a new session for the user. Returns
// apperror.ErrNotFound if the user is gone, since the INSERT ... SELECT then
// matches nothing.
func (u *UserDB) AppendToken(ctx context.Context, userID, token string) error {
	result, err := u.db.conn.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token, created_at)
		 SELECT id, ?, ? FROM users WHERE id = ?`,
		token, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending token for user %s: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// ReplaceToken rotates oldToken to newToken with a single UPDATE. The row
// keeps its id, so the token keeps its position in the list. Exactly one of
// two concurrent rotations of the same token sees a matched row.
func (u *UserDB) ReplaceToken(ctx context.Context, userID, oldToken, newToken string) (bool, error) {
	result, err := u.db.conn.ExecContext(ctx,
		`UPDATE refresh_tokens SET token = ?, created_at = ?
		 WHERE user_id = ? AND token = ?`,
		newToken, time.Now().UTC(), userID, oldToken,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: rotating token for user %s: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// RemoveToken ends one session.
func (u *UserDB) RemoveToken(ctx context.Context, userID, token string) (bool, error) {
	result, err := u.db.conn.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ? AND token = ?`,
		userID, token,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing token for user %s: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// ClearTokens ends every session of the user.
func (u *UserDB) ClearTokens(ctx context.Context, userID string) error {
	_, err := u.db.conn.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: clearing tokens for user %s: %w", userID, err)
	}
	return nil
}
