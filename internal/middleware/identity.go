package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth and OptionalJWT.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// UserID returns the authenticated user, if any.
func UserID(c echo.Context) (uint64, bool) {
	uid, ok := c.Get(ContextUserID).(uint64)
	return uid, ok && uid != 0
}

// Role returns the role claim of the authenticated user or "".
func Role(c echo.Context) string {
	role, _ := c.Get(ContextRole).(string)
	return role
}

// identityKey names the caller for rate limit keys; "anon" for guests.
func identityKey(c echo.Context) string {
	if uid, ok := UserID(c); ok {
		return strconv.FormatUint(uid, 10)
	}
	return "anon"
}
