package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// UserID returns the authenticated user id stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	uid, ok := c.Get(userIDKey).(uint64)
	return uid, ok && uid != 0
}

// Role returns the role claim stored by JWTAuth, or "".
func Role(c echo.Context) string {
	r, _ := c.Get(roleKey).(string)
	return r
}

// identityKey is the user id as a string for log fields and Redis keys,
// "guest" when the request is anonymous.
func identityKey(c echo.Context) string {
	if uid, ok := UserID(c); ok {
		return strconv.FormatUint(uid, 10)
	}
	return "guest"
}

// subjectID converts a "sub" claim into a user id. JSON numbers decode as
// float64; some issuers send numeric strings.
func subjectID(v any) (uint64, bool) {
	switch sub := v.(type) {
	case float64:
		if sub <= 0 {
			return 0, false
		}
		return uint64(sub), true
	case string:
		n, err := strconv.ParseUint(sub, 10, 64)
		return n, err == nil && n != 0
	}
	return 0, false
}
