package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/api/idtoken"
)

func fakeVerifier(claims map[string]any, err error) *GoogleVerifier {
	return &GoogleVerifier{
		clientID: "client-123",
		validate: func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
			if err != nil {
				return nil, err
			}
			return &idtoken.Payload{Audience: audience, Claims: claims}, nil
		},
	}
}

func TestGoogleVerifier_Valid(t *testing.T) {
	v := fakeVerifier(map[string]any{
		"email":          "a@x.com",
		"email_verified": true,
		"name":           "Alice",
		"picture":        "https://pic/a.png",
	}, nil)

	id, err := v.Verify(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.Email != "a@x.com" || id.Name != "Alice" || id.Picture != "https://pic/a.png" {
		t.Errorf("Verify() = %+v", id)
	}
}

func TestGoogleVerifier_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		v     *GoogleVerifier
		token string
	}{
		{"empty token", fakeVerifier(map[string]any{"email": "a@x.com"}, nil), ""},
		{"invalid signature", fakeVerifier(nil, errors.New("idtoken: invalid token")), "tok"},
		{"no email", fakeVerifier(map[string]any{"name": "x"}, nil), "tok"},
		{"unverified email", fakeVerifier(map[string]any{"email": "a@x.com", "email_verified": false}, nil), "tok"},
		{"not configured", &GoogleVerifier{validate: idtoken.Validate}, "tok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.v.Verify(context.Background(), tt.token)
			if !errors.Is(err, ErrIdentityRejected) {
				t.Errorf("Verify() error = %v, want ErrIdentityRejected", err)
			}
		})
	}
}

func TestGoogleVerifier_DeadlineIsNotRejection(t *testing.T) {
	v := fakeVerifier(nil, context.DeadlineExceeded)

	_, err := v.Verify(context.Background(), "tok")
	if errors.Is(err, ErrIdentityRejected) {
		t.Error("Verify() reported a timeout as a rejected token")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Verify() error = %v, want DeadlineExceeded", err)
	}
}

func TestGoogleProvider_AuthURL(t *testing.T) {
	p := NewGoogleProvider("client-123", "secret", "http://localhost/cb")

	u := p.AuthURL("state-xyz")
	for _, want := range []string{"accounts.google.com", "client_id=client-123", "state=state-xyz", "openid"} {
		if !strings.Contains(u, want) {
			t.Errorf("AuthURL() = %q, missing %q", u, want)
		}
	}
}
