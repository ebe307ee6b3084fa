// Package model holds the users, posts and comments passed between the
// repository, service and handler layers.
package model

import "time"

// FederatedPassword is stored in place of a bcrypt hash for accounts created
// through Google sign-in. It is not a valid bcrypt hash, so password login for
// such accounts always fails.
const FederatedPassword = "!federated"

// User represents a registered account.
//
// Email is the login identifier and is unique as stored (no case folding).
// PasswordHash and Tokens are never serialised: the `json:"-"` tag tells
// encoding/json to skip the field entirely.
//
// WHY Tokens ON THE USER?
// The refresh-token list IS the session table. A refresh token is valid exactly
// when it appears here, so "is this session alive?" is answered by looking at
// one user record instead of a separate global store.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"imgUrl,omitempty"`
	Tokens       []string  `json:"-"` // valid refresh tokens, oldest first
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsFederated reports whether the account was created by Google sign-in and
// has no usable password.
func (u *User) IsFederated() bool {
	return u.PasswordHash == FederatedPassword
}
