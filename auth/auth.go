// Package auth verifies bearer credentials on the agent-facing API.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// principalKey is the echo context key the middleware stores the verified
// principal under.
const principalKey = "principal"

// Verifier checks a bearer credential and returns the authenticated
// principal. Single-user deployments have no principal identity and return
// the empty string.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// StaticTokenVerifier accepts one configured token. An empty configured token
// disables verification (development mode).
type StaticTokenVerifier struct {
	Token string
}

func (v *StaticTokenVerifier) Verify(ctx context.Context, token string) (string, error) {
	if v.Token == "" {
		return "", nil
	}
	if token != v.Token {
		return "", fmt.Errorf("invalid token")
	}
	return "", nil
}

// JWTVerifier validates HS256 tokens and takes the principal from the sub
// claim.
type JWTVerifier struct {
	Secret []byte
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.Secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// Middleware authenticates requests with the given verifier and stores the
// principal in the request context.
func Middleware(v Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimPrefix(header, "Bearer ")
			if token == header {
				token = ""
			}

			principal, err := v.Verify(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
			}

			c.Set(principalKey, principal)
			return next(c)
		}
	}
}

// Principal returns the authenticated principal stored by Middleware.
func Principal(c echo.Context) string {
	if p, ok := c.Get(principalKey).(string); ok {
		return p
	}
	return ""
}
