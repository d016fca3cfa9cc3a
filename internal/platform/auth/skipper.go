package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPrefixes lists URL path prefixes that bypass authentication
// entirely: the login/registration group and infrastructure endpoints that
// must stay reachable without credentials. No token parsing is attempted
// for these paths.
var publicPrefixes = []string{
	"/auth/",
	"/health",
}

// Skipper reports whether a request should skip authentication.
type Skipper func(c echo.Context) bool

// DefaultSkipper returns true for requests whose path matches a public
// prefix. Pass it to Authenticate so the auth group and health checks
// remain accessible without a bearer token.
func DefaultSkipper(c echo.Context) bool {
	return IsPublicPath(c.Request().URL.Path)
}

// IsPublicPath reports whether the given path bypasses authentication.
func IsPublicPath(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
