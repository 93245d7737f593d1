package utils

import (
	"fmt"
	"strings"
	"time"

	"smartschedule/core/config"
	"smartschedule/core/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ScopeTokenAccess = "access"

type TokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  *string   `json:"email,omitempty"`
	Scope  string    `json:"scope"`
	jwt.RegisteredClaims
}

func jwtSecret() ([]byte, error) {
	cfg, ok := config.GetSafe()
	if !ok || cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is not configured")
	}
	return []byte(cfg.JWT.Secret), nil
}

// GenerateToken signs an HS256 token for the user valid for ttl.
func GenerateToken(userID uuid.UUID, email *string, scope string, ttl time.Duration) (string, error) {
	secret, err := jwtSecret()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := &TokenClaims{
		UserID: userID,
		Email:  email,
		Scope:  scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ValidateAndParseToken(tokenString string) (*TokenClaims, *errors.AppError) {
	secret, err := jwtSecret()
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "token validation unavailable", err)
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.NewAppError(errors.ErrTokenExpired, "token has expired", err)
		}
		return nil, errors.NewAppError(errors.ErrInvalidTokenFormat, "invalid token", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.NewAppError(errors.ErrInvalidTokenFormat, "invalid token", nil)
	}
	if claims.Scope != ScopeTokenAccess {
		return nil, errors.NewAppError(errors.ErrInvalidTokenFormat, "invalid token scope", nil)
	}
	return claims, nil
}

// GetTokenFromHeader extracts the bearer token from an Authorization header value.
func GetTokenFromHeader(header string) (string, *errors.AppError) {
	if header == "" {
		return "", errors.NewAppError(errors.ErrMissingAuthorizationHeader, "missing authorization header", nil)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.NewAppError(errors.ErrInvalidTokenFormat, "authorization header must be Bearer <token>", nil)
	}
	return strings.TrimSpace(parts[1]), nil
}
