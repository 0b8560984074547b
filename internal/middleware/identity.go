package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the acting operator stored by JWTAuth.  The sub claim
// may arrive as a JSON string or number; anything else yields 0, which
// the engine records as "unknown operator".
func UserID(c echo.Context) uint64 {
	switch v := c.Get("user_id").(type) {
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	case float64:
		if v > 0 {
			return uint64(v)
		}
	case uint64:
		return v
	case int:
		if v > 0 {
			return uint64(v)
		}
	}
	return 0
}

// userKey is the rate limit identity: the operator id, or "anon".
func userKey(c echo.Context) string {
	if id := UserID(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
