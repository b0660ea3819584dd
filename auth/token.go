package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtKey is the secret shared with the identity provider that issues tokens.
// In a production environment, this should be loaded from an environment variable or a secret manager.
var jwtKey = []byte("my_strong_and_long_relay_secret_2026")

// SetSigningKey replaces the shared secret. Called once at startup, before
// any connection is accepted.
func SetSigningKey(key []byte) {
	jwtKey = key
}

// IdentityClaims defines the structure of the data stored inside the identity token.
// UID is the stable user id assigned by the identity provider; PhoneNumber is
// the verified phone number attached to it.
type IdentityClaims struct {
	UID         string `json:"uid"`
	PhoneNumber string `json:"phone_number"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed identity token for a specific user.
// The relay itself never issues tokens to clients; this exists for the
// tokengen CLI and the test suites, standing in for the external provider.
func GenerateToken(uid, phoneNumber string, duration time.Duration) (string, error) {
	expirationTime := time.Now().Add(duration)

	claims := &IdentityClaims{
		UID:         uid,
		PhoneNumber: phoneNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-relay",
		},
	}

	// Create the token using the HS256 algorithm (HMAC with SHA256).
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(jwtKey)
}

// ValidateToken parses and validates the signature and expiration of a token string.
func ValidateToken(tokenString string) (*IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*IdentityClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
