package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"fleet/internal/domain"
)

const tokenIssuer = "fleet"

// SessionClaims are the JWT claims carried by a session token.
// The registered ID claim holds the session ID.
type SessionClaims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer creates a TokenIssuer using HS256 with the given secret.
func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret}
}

// Issue returns a signed token for the session.
func (t *TokenIssuer) Issue(session *domain.Session) (string, error) {
	claims := &SessionClaims{
		Role: string(session.Identity.Role),
		Name: session.Identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.Identity.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies the token and returns its claims.
func (t *TokenIssuer) Parse(tokenStr string) (*SessionClaims, error) {
	return t.parse(tokenStr)
}

// ParseIgnoringExpiry verifies the signature but accepts expired tokens.
// Logout uses it so an expired token can still end its session.
func (t *TokenIssuer) ParseIgnoringExpiry(tokenStr string) (*SessionClaims, error) {
	return t.parse(tokenStr, jwt.WithoutClaimsValidation())
}

func (t *TokenIssuer) parse(tokenStr string, opts ...jwt.ParserOption) (*SessionClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
