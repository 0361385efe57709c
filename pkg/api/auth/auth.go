// Package auth verifies the bearer tokens presented to the upload API.
//
// Identity issuance is external: the service only validates HMAC-signed
// JWTs minted by the platform's identity provider and extracts the
// principal.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum accepted HMAC secret length in bytes.
const MinSecretLength = 32

var (
	// ErrInvalidToken is returned for tokens that fail signature,
	// expiry, or issuer validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingSubject is returned for structurally valid tokens with
	// no subject claim.
	ErrMissingSubject = errors.New("token has no subject")
)

// Principal is the authenticated caller extracted from a token.
type Principal struct {
	// UserID is the token subject. Sessions are owned by it.
	UserID string
}

// Config holds token verification settings.
type Config struct {
	// Secret is the HMAC signing secret shared with the identity
	// provider. Must be at least MinSecretLength bytes.
	Secret string

	// Issuer, when set, must match the token's iss claim.
	Issuer string
}

// Verifier validates bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a token verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("JWT secret must be at least %d characters", MinSecretLength)
	}
	return &Verifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer}, nil
}

// Verify parses and validates a bearer token and returns its principal.
func (v *Verifier) Verify(tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return &Principal{UserID: claims.Subject}, nil
}
