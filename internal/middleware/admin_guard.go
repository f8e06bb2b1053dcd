package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminGuard rejects any request whose token role is not admin. It
// expects JWTMiddleware to have run first and stored the role.
func AdminGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if role, _ := c.Get("role").(string); role != "admin" {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin privileges required"})
		}
		return next(c)
	}
}
