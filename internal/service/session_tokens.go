package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// Token types.
const (
	TokenSelection = "selection"
	TokenAccess    = "access"
)

const tokenIssuer = "coop-bfa"

// SessionClaims are the claims of the BFA's own session tokens. The session
// registry stays authoritative: a token whose session is gone is rejected.
type SessionClaims struct {
	SID  string `json:"sid"`
	Role string `json:"role,omitempty"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// ValidateSessionToken parses token and checks its type.
func (s *SessionService) ValidateSessionToken(tokenString, wantType string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido o expirado"}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	if claims.Type != wantType {
		return nil, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}
	return claims, nil
}

func (s *SessionService) signSessionToken(sess domain.Session, tokenType string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SID:  sess.ID,
		Role: string(sess.ActiveRole),
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.Identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
