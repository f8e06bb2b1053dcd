package admin

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/collabhub/collabhub/internal/db"
)

// GET /admin/stats
func Stats(c echo.Context) error {
	ctx := context.Background()

	var users, listings, orders, disputes, payouts int

	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&users)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&listings)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM disputes WHERE status = 'open'`).Scan(&disputes)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM payouts WHERE status = 'released'`).Scan(&payouts)

	statuses := map[string]int{}
	rows, err := db.Conn.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var status string
			var n int
			if err := rows.Scan(&status, &n); err == nil {
				statuses[status] = n
			}
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"users":            users,
		"listings":         listings,
		"orders":           orders,
		"orders_by_status": statuses,
		"open_disputes":    disputes,
		"payouts":          payouts,
	})
}
