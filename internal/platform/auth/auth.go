// Package auth provides bearer-token authentication and role checks for the
// compliance API. Tokens are HMAC-signed JWTs carrying tenant and role
// claims; development mode bypasses token verification and grants admin.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

// Claims are the JWT claims the server understands.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
}

// Config holds token verification settings.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// Middleware verifies the Authorization bearer token and stashes the user
// id, roles, and tenant claim on the request.
func Middleware(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := &Claims{}
			parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
			if cfg.Issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
			}
			if cfg.Audience != "" {
				parserOpts = append(parserOpts, jwt.WithAudience(cfg.Audience))
			}

			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.Secret, nil
			}, parserOpts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			apply(c, claims.Subject, claims.Roles, claims.TenantID)
			return next(c)
		}
	}
}

// DevMiddleware grants every request admin access. Development only.
func DevMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apply(c, "dev-user", []string{"admin"}, "")
			return next(c)
		}
	}
}

func apply(c echo.Context, userID string, roles []string, tenantID string) {
	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	c.SetRequest(c.Request().WithContext(ctx))
	c.Set("user_id", userID)
	if tenantID != "" {
		c.Set("jwt_tenant_id", tenantID)
	}
}

// RequireRole returns middleware that passes when the user holds any of the
// given roles. Admin always passes.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == "admin" {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// UserIDFromContext returns the authenticated user id, or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

// RolesFromContext returns the authenticated user's roles.
func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}
