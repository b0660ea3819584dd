package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", "+33612345678", time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal("user-42", claims.UID)
	req.Equal("+33612345678", claims.PhoneNumber)
}

func TestValidateToken_Expired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", "+33612345678", -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)
}

func TestValidateToken_Garbage(t *testing.T) {
	req := require.New(t)

	_, err := ValidateToken("not.a.token")
	req.Error(err)
}

func TestTokenVerifier(t *testing.T) {
	ctx := context.Background()
	verifier := NewTokenVerifier()

	t.Run("should return the identity for a valid token", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken("user-1", "+33601020304", time.Hour)
		req.NoError(err)

		identity, err := verifier.Verify(ctx, token)
		req.NoError(err)
		req.Equal(Identity{UID: "user-1", PhoneNumber: "+33601020304"}, identity)
	})

	t.Run("should fail with a readable reason for a forged token", func(t *testing.T) {
		req := require.New(t)

		_, err := verifier.Verify(ctx, "forged")
		req.Error(err)
		req.Contains(err.Error(), "invalid or expired token")
	})

	t.Run("should pass through tokens missing claims", func(t *testing.T) {
		// Claim completeness is the session manager's concern, not the verifier's.
		req := require.New(t)
		token, err := GenerateToken("user-1", "", time.Hour)
		req.NoError(err)

		identity, err := verifier.Verify(ctx, token)
		req.NoError(err)
		req.Empty(identity.PhoneNumber)
	})
}
