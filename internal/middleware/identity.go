package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// currentUserID extracts a rate-limit identity from the request
// context. JWTAuth stores the JWT subject, which arrives as a float64
// through MapClaims; anything unauthenticated collapses into "anon".
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case float64:
		return fmt.Sprintf("%.0f", v)
	case uint64:
		return fmt.Sprintf("%d", v)
	case string:
		if v != "" {
			return v
		}
	}
	return "anon"
}
