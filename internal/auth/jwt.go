// Package auth issues and checks the credentials used by the feed API.
//
// SESSION MODEL:
//  1. Register stores a bcrypt hash; nothing is issued yet.
//  2. Login (or Google sign-in) issues a pair of tokens:
//     - an ACCESS token: short-lived, sent on every API call as
//     "Authorization: Bearer <token>" (or the "token" cookie)
//     - a REFRESH token: no expiry of its own, stored on the user row
//  3. When the access token expires, the client trades the refresh token for a
//     new pair. The old refresh token is replaced on the user row (rotation).
//  4. Logout removes the refresh token from the user row.
//
// A refresh token is therefore only as good as its presence in the database:
// the signature proves we issued it, the row proves it is still live. That is
// why the codec never puts an expiry on refresh tokens.
//
// The two kinds are signed with different secrets, so an access token can never
// be replayed as a refresh token or the other way round.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "snapfeed"

// DefaultAccessTTL is the access token lifetime when none is configured.
const DefaultAccessTTL = 15 * time.Minute

// ErrTokenExpired is returned by ValidateAccess for a well-formed but expired token.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService handles JWT creation and validation for both token kinds.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
}

// NewTokenService creates a TokenService. Both secrets must be at least 16
// characters and must differ. A zero accessTTL means DefaultAccessTTL.
// Example: ACCESS_TOKEN_SECRET=$(openssl rand -hex 32)
func NewTokenService(accessSecret, refreshSecret string, accessTTL time.Duration) (*TokenService, error) {
	if len(accessSecret) < 16 || len(refreshSecret) < 16 {
		return nil, errors.New("auth: token secrets must be at least 16 characters")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
	}, nil
}

// claims is the JWT payload. "sub" carries the internal user ID and "jti" a
// random xid, so two tokens minted in the same second still differ.
type claims struct {
	jwt.RegisteredClaims
}

// GenerateAccess signs a short-lived access token for userID.
func (s *TokenService) GenerateAccess(userID string) (string, error) {
	return s.generate(userID, s.accessSecret, s.accessTTL)
}

// GenerateAccessWithDuration is GenerateAccess with a custom lifetime.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateAccessWithDuration(userID string, d time.Duration) (string, error) {
	return s.generate(userID, s.accessSecret, d)
}

// GenerateRefresh signs a refresh token for userID. It has no exp claim.
func (s *TokenService) GenerateRefresh(userID string) (string, error) {
	return s.generate(userID, s.refreshSecret, 0)
}

func (s *TokenService) generate(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       xid.New().String(),
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   issuer,
		},
	}
	if ttl != 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// ValidateAccess verifies an access token and returns its subject.
// The token must carry an exp claim that is still in the future.
func (s *TokenService) ValidateAccess(tokenStr string) (string, error) {
	return s.validate(tokenStr, s.accessSecret, jwt.WithExpirationRequired())
}

// ValidateRefresh verifies a refresh token's signature and issuer and returns
// its subject. Whether the token is still live is decided by the user row.
func (s *TokenService) ValidateRefresh(tokenStr string) (string, error) {
	return s.validate(tokenStr, s.refreshSecret)
}

// validate runs the checks shared by both kinds:
//   - signature is valid for the given secret
//   - algorithm is HS256 (blocks "alg: none" and algorithm-confusion tricks)
//   - issuer is ours
//   - subject is present
func (s *TokenService) validate(tokenStr string, secret []byte, extra ...jwt.ParserOption) (string, error) {
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
	}, extra...)

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
