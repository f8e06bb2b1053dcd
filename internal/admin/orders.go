package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/collabhub/collabhub/internal/db"
)

type AdminOrder struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Amount     string    `json:"amount"`
	Status     string    `json:"status"`
	ClientID   string    `json:"client_id"`
	ProviderID string    `json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GET /admin/orders?status=submitted
func ListOrders(c echo.Context) error {
	query := `
		SELECT id::text, kind, title, amount::text, status,
		       client_id::text, provider_id::text, created_at, updated_at
		FROM orders`
	args := []any{}
	if status := c.QueryParam("status"); status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT 200`

	rows, err := db.Conn.Query(context.Background(), query, args...)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch orders"})
	}
	defer rows.Close()

	var orders []AdminOrder
	for rows.Next() {
		var o AdminOrder
		if err := rows.Scan(&o.ID, &o.Kind, &o.Title, &o.Amount, &o.Status,
			&o.ClientID, &o.ProviderID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read order"})
		}
		orders = append(orders, o)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}
