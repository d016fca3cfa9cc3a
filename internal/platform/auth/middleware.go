package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Authenticate returns middleware that resolves the bearer token on each
// request into a Principal stored in the request context.
//
// The middleware itself never rejects a request for a missing or invalid
// token: it simply lets the request proceed unauthenticated, and RequireRole
// decides at the endpoint whether that is acceptable. This keeps fully
// public endpoints free of special cases and guarantees clients cannot
// learn why a token was refused.
//
// A credential-store failure other than an unknown subject is surfaced as
// 503 so the caller can retry; a lookup timeout is an authentication
// failure, never an allow.
func Authenticate(tokens *TokenService, resolver PrincipalResolver, skip Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip != nil && skip(c) {
				return next(c)
			}

			tokenStr, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return next(c)
			}

			if !tokens.Validate(tokenStr) {
				return next(c)
			}

			subject, err := tokens.Subject(tokenStr)
			if err != nil {
				return next(c)
			}

			ctx := c.Request().Context()
			principal, err := resolver.Resolve(ctx, subject)
			if err != nil {
				if errors.Is(err, ErrUnknownSubject) {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication backend unavailable")
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, principal)))
			return next(c)
		}
	}
}

// bearerToken extracts the token from an Authorization header value.
// Returns false for an absent or malformed header.
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
