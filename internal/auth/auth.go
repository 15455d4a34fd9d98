// Package auth defines the token-decoding contract the gateway relies on to
// resolve a caller's identity at session accept. Issuing and validating
// tokens against a real identity provider is out of scope for the core; this
// package only specifies the boundary.
package auth

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned when a token cannot be decoded to a user identity.
var ErrInvalidToken = errors.New("auth: invalid token")

// Authenticator resolves a bearer token to a user identity.
type Authenticator interface {
	Decode(ctx context.Context, token string) (userID string, err error)
}

// StaticAuthenticator is a test double that accepts any non-empty token and
// echoes it back as the user ID, or a fixed anonymous ID when none is
// presented. It lets cmd/gateway run end to end without a real IdP.
type StaticAuthenticator struct {
	AnonymousID string
}

// NewStaticAuthenticator creates an Authenticator that requires no real
// identity provider; tokens are accepted at face value.
func NewStaticAuthenticator(anonymousID string) *StaticAuthenticator {
	if anonymousID == "" {
		anonymousID = "anonymous"
	}
	return &StaticAuthenticator{AnonymousID: anonymousID}
}

// Decode accepts any token and returns it (or AnonymousID) as the user ID.
func (a *StaticAuthenticator) Decode(ctx context.Context, token string) (string, error) {
	if token == "" {
		return a.AnonymousID, nil
	}
	return token, nil
}
