package middleware

// identity.go holds the context keys written by the JWT middleware and the
// accessors handlers use to read them.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	ctxUserID   = "user_id"  // uint64
	ctxUsername = "username" // string
	ctxRole     = "role"     // string
)

// UserID returns the authenticated user's id.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Username returns the authenticated user's name, or "".
func Username(c echo.Context) string {
	s, _ := c.Get(ctxUsername).(string)
	return s
}

// Role returns the authenticated user's role, or "".
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}

// IsAuthenticated reports whether a valid access token was presented.
func IsAuthenticated(c echo.Context) bool {
	_, ok := UserID(c)
	return ok
}

// currentUserID renders the caller for rate-limit keys and logs; anonymous
// callers are "anon".
func currentUserID(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
