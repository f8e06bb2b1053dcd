package user

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/collabhub/collabhub/internal/db"
)

// GetPublicProfile returns another user's public profile by id
func GetPublicProfile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing user id"})
	}

	var p PublicProfile
	err := db.Conn.QueryRow(context.Background(), `
		SELECT id, name, role, COALESCE(bio, ''), COALESCE(avatar_url, ''), created_at
		FROM users WHERE id = $1 AND COALESCE(is_active, TRUE)
	`, id).Scan(&p.ID, &p.Name, &p.Role, &p.Bio, &p.AvatarURL, &p.JoinedAt)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, p)
}
