package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/service"
)

func TestTokenService_RoundTrip(t *testing.T) {
	tokens := service.NewTokenService("test-secret", time.Hour)

	signed, err := tokens.IssueAccessToken(asha.ID, domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := tokens.ValidateAccessToken(signed)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Sub != asha.ID || !claims.IsAdmin() {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestTokenService_Rejects(t *testing.T) {
	tokens := service.NewTokenService("test-secret", time.Hour)

	wrongSecret, _ := service.NewTokenService("other", time.Hour).IssueAccessToken(asha.ID, domain.RoleUser)
	expired, _ := service.NewTokenService("test-secret", -time.Minute).IssueAccessToken(asha.ID, domain.RoleUser)
	refresh, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, service.Claims{
		Sub: asha.ID, Type: "refresh",
	}).SignedString([]byte("test-secret"))
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, service.Claims{
		Type: "access",
	}).SignedString([]byte("test-secret"))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", wrongSecret},
		{"expired", expired},
		{"refresh token", refresh},
		{"missing subject", noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.ValidateAccessToken(tt.token)
			var unauthorized *domain.ErrUnauthorized
			if !errors.As(err, &unauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}
