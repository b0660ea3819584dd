//go:generate go run go.uber.org/mock/mockgen -source=verifier.go -destination=../mocks/mock_verifier.go -package=mocks
package auth

import (
	"context"
	"fmt"
)

// Identity is the externally verified user reference. It is produced only by
// a verifier and is immutable for a given credential.
type Identity struct {
	UID         string
	PhoneNumber string
}

// IIdentityVerifier wraps the external token-verification capability.
// Implementations may perform network calls; failures are never retried here.
type IIdentityVerifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// TokenVerifier verifies identity tokens locally against the shared signing
// key. It is the default verifier wired into the server.
type TokenVerifier struct{}

func NewTokenVerifier() IIdentityVerifier {
	return TokenVerifier{}
}

// Verify validates the credential and extracts the identity claims.
// The returned error carries a human-readable reason suitable for the
// authenticationFailed event.
func (TokenVerifier) Verify(_ context.Context, credential string) (Identity, error) {
	claims, err := ValidateToken(credential)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid or expired token: %v", err)
	}

	return Identity{
		UID:         claims.UID,
		PhoneNumber: claims.PhoneNumber,
	}, nil
}
