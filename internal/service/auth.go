// Package service provides the business logic layer (use cases) of the
// ledger: transfer orchestration, authorization codes, blacklist checks,
// history, fraud administration and reconciliation.
package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

const tokenIssuer = "grambank-ledger"

// Claims represents the custom claims in access tokens. Sub is the
// account id.
type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token grants fraud-desk access.
func (c *Claims) IsAdmin() bool {
	return c.Role == domain.RoleAdmin
}

// TokenService validates the bearer tokens issued by the identity provider.
// IssueAccessToken exists for operators and tests; the ledger never logs
// anyone in.
type TokenService struct {
	secret    []byte
	accessTTL time.Duration
}

// NewTokenService creates a token service for HS256 tokens.
func NewTokenService(secret string, accessTTL time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), accessTTL: accessTTL}
}

// ValidateAccessToken parses and verifies an access token.
func (s *TokenService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Invalid or expired token"}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Invalid token"}
	}
	if claims.Type != "access" || claims.Sub == "" {
		return nil, &domain.ErrUnauthorized{Message: "Invalid token type"}
	}
	return claims, nil
}

// IssueAccessToken signs an access token for accountID with the given role.
func (s *TokenService) IssueAccessToken(accountID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Sub:  accountID,
		Role: role,
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
