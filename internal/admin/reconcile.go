package admin

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/collabhub/collabhub/internal/db"
	"github.com/collabhub/collabhub/internal/payments"
)

// POST /admin/orders/:id/reconcile
//
// Repairs the gap left when a payment release went through but the
// status flip afterwards did not: if a released payout exists for the
// order and the order is still submitted, finish the approval.
func ReconcileOrder(c echo.Context) error {
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id required"})
	}

	ctx := context.Background()

	var status string
	err := db.Conn.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	}
	if status != "submitted" {
		return c.JSON(http.StatusOK, echo.Map{"message": "nothing to reconcile", "status": status})
	}

	released, err := payments.Released(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not check payout history"})
	}
	if !released {
		return c.JSON(http.StatusConflict, echo.Map{"error": "no released payout on record, cannot reconcile"})
	}

	res, err := db.Conn.Exec(ctx,
		`UPDATE orders SET status = 'approved', updated_at = NOW() WHERE id = $1 AND status = 'submitted'`,
		orderID)
	if err != nil || res.RowsAffected() == 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "order changed underneath, retry"})
	}
	_, _ = db.Conn.Exec(ctx, `
		INSERT INTO contract_usage (order_id, state, updated_at) VALUES ($1, 'completed', NOW())
		ON CONFLICT (order_id) DO UPDATE SET state = 'completed', updated_at = NOW()`, orderID)

	log.Printf("[admin] RECONCILE order=%s payment already released, approval persisted", orderID)
	return c.JSON(http.StatusOK, echo.Map{"message": "order reconciled", "status": "approved"})
}
