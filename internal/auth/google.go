package auth

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

// Identity is what a verified identity token tells us about the caller.
type Identity struct {
	Email   string
	Name    string
	Picture string
}

// IdentityVerifier checks a third-party identity token and returns the
// identity it asserts. The session layer only depends on this interface.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// ErrIdentityRejected is returned for any token that fails verification.
var ErrIdentityRejected = errors.New("auth: identity token rejected")

// GoogleVerifier validates Google ID tokens: signature against Google's
// published keys, expiry, and audience equal to our OAuth client ID.
type GoogleVerifier struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// NewGoogleVerifier returns a verifier that accepts tokens minted for clientID.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

var _ IdentityVerifier = (*GoogleVerifier)(nil)

// Verify returns the token's identity. The email must be present and, when
// Google states it, verified.
func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrIdentityRejected)
	}
	if v.clientID == "" {
		return nil, fmt.Errorf("%w: google sign-in is not configured", ErrIdentityRejected)
	}

	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		// Deadline errors are not a verdict on the token.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("auth: validating google token: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrIdentityRejected, err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: token has no email", ErrIdentityRejected)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, fmt.Errorf("%w: email %s is not verified", ErrIdentityRejected, email)
	}

	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)

	return &Identity{Email: email, Name: name, Picture: picture}, nil
}
