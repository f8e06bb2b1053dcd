package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRoles restricts a route to the listed roles, e.g.
// RequireRoles("provider"). The role comes off the verified token.
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient role"})
		}
	}
}
