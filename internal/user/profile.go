package user

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/collabhub/collabhub/internal/db"
)

// GetProfile returns the authenticated user's own profile
func GetProfile(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var p Profile
	err := db.Conn.QueryRow(context.Background(), `
		SELECT id, name, email, role, COALESCE(bio, ''), COALESCE(avatar_url, ''),
		       COALESCE(payout_account_id, ''), created_at
		FROM users WHERE id = $1
	`, userID).Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.Bio, &p.AvatarURL, &p.PayoutAccountID, &p.CreatedAt)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, p)
}

type UpdateProfileRequest struct {
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

// UpdateProfile updates name, bio and avatar. Empty fields keep their
// current value.
func UpdateProfile(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(UpdateProfileRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	_, err := db.Conn.Exec(context.Background(), `
		UPDATE users
		SET
			name = COALESCE(NULLIF($1, ''), name),
			bio = COALESCE(NULLIF($2, ''), bio),
			avatar_url = COALESCE(NULLIF($3, ''), avatar_url)
		WHERE id = $4
	`, req.Name, req.Bio, req.AvatarURL, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update profile"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Profile updated successfully"})
}

type PayoutAccountRequest struct {
	PayoutAccountID string `json:"payout_account_id"`
}

// SetPayoutAccount links the provider's gateway account. Approvals fail
// payment release until this is set.
func SetPayoutAccount(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if role, _ := c.Get("role").(string); role != "provider" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "providers only"})
	}

	req := new(PayoutAccountRequest)
	if err := c.Bind(req); err != nil || req.PayoutAccountID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payout_account_id is required"})
	}

	_, err := db.Conn.Exec(context.Background(),
		`UPDATE users SET payout_account_id = $1 WHERE id = $2`, req.PayoutAccountID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update payout account"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Payout account linked"})
}
