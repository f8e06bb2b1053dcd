package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/collabhub/collabhub/internal/alerts"
	"github.com/collabhub/collabhub/internal/db"
	"github.com/collabhub/collabhub/internal/engine"
	"github.com/collabhub/collabhub/internal/ledger"
)

// gateway releases funds when a dispute resolves in the provider's
// favor. Wired at startup.
var gateway engine.Gateway

func Init(gw engine.Gateway) {
	gateway = gw
}

type Dispute struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	FilerID string `json:"filer_id"`
	Reason  string `json:"reason"`
	Status  string `json:"status"`
}

// GET /admin/disputes
func ListDisputes(c echo.Context) error {
	rows, err := db.Conn.Query(context.Background(), `
		SELECT id::text, order_id::text, filer_id::text, reason, status
		FROM disputes ORDER BY created_at DESC`)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch disputes"})
	}
	defer rows.Close()

	var disputes []Dispute
	for rows.Next() {
		var d Dispute
		if err := rows.Scan(&d.ID, &d.OrderID, &d.FilerID, &d.Reason, &d.Status); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read dispute"})
		}
		disputes = append(disputes, d)
	}
	return c.JSON(http.StatusOK, echo.Map{"disputes": disputes})
}

// releaseAmount recomputes the payable for a dispute release. A stored
// total is never used as the payment input, and milestone parents carry
// no releasable amount of their own.
func releaseAmount(o engine.Order) (decimal.Decimal, error) {
	if o.Kind() == engine.KindMilestone {
		return decimal.Decimal{}, errors.New("milestone orders pay out per milestone, resolve those individually")
	}
	return o.Payable(), nil
}

type ResolveDisputeRequest struct {
	Resolution string `json:"resolution"` // refund | release | none
	Notes      string `json:"notes"`
}

// POST /admin/disputes/:id/resolve
//
// refund closes the order in the client's favor; it is only possible
// while no payment has been released, and marks the order rejected.
// release pays the provider the order's full payable and approves it.
func ResolveDispute(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)
	disputeID := c.Param("id")
	if disputeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "dispute id required"})
	}

	req := new(ResolveDisputeRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Resolution != "refund" && req.Resolution != "release" && req.Resolution != "none" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "resolution must be refund, release or none"})
	}

	ctx := context.Background()

	var orderID, status string
	err := db.Conn.QueryRow(ctx,
		`SELECT order_id::text, status FROM disputes WHERE id = $1`, disputeID).Scan(&orderID, &status)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "dispute not found"})
	}
	if status != "open" {
		return c.JSON(http.StatusConflict, echo.Map{"error": "dispute already resolved"})
	}

	o, err := ledger.New(db.Conn).GetOrder(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	}
	core := o.Core()
	orderStatus := string(core.Status)

	switch req.Resolution {
	case "refund":
		if orderStatus == "approved" {
			return c.JSON(http.StatusConflict, echo.Map{"error": "payment already released, refund is no longer possible"})
		}
		res, err := db.Conn.Exec(ctx,
			`UPDATE orders SET status = 'rejected', updated_at = NOW() WHERE id = $1 AND status = $2`,
			orderID, orderStatus)
		if err != nil || res.RowsAffected() == 0 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "order changed underneath, retry"})
		}
		_, _ = db.Conn.Exec(ctx, `
			INSERT INTO contract_usage (order_id, state, updated_at) VALUES ($1, 'rejected', NOW())
			ON CONFLICT (order_id) DO UPDATE SET state = 'rejected', updated_at = NOW()`, orderID)
		_ = alerts.CreateNotification(core.ClientID, "dispute:resolved", "Dispute resolved in your favor", req.Notes, &orderID)

	case "release":
		if orderStatus != "submitted" {
			return c.JSON(http.StatusConflict, echo.Map{"error": "only submitted orders can be released"})
		}
		amount, err := releaseAmount(o)
		if err != nil {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		if err := gateway.ReleasePayment(ctx, core.ProviderAccountID, amount, orderID); err != nil {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment release failed"})
		}
		res, err := db.Conn.Exec(ctx,
			`UPDATE orders SET status = 'approved', updated_at = NOW() WHERE id = $1 AND status = 'submitted'`,
			orderID)
		if err != nil || res.RowsAffected() == 0 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "payment released but order changed underneath, reconcile"})
		}
		_, _ = db.Conn.Exec(ctx, `
			INSERT INTO contract_usage (order_id, state, updated_at) VALUES ($1, 'completed', NOW())
			ON CONFLICT (order_id) DO UPDATE SET state = 'completed', updated_at = NOW()`, orderID)
		_ = alerts.CreateNotification(core.ProviderID, "dispute:resolved", "Dispute resolved in your favor", req.Notes, &orderID)
	}

	_, err = db.Conn.Exec(ctx, `
		UPDATE disputes SET status = 'resolved', resolution = $1, notes = NULLIF($2, ''),
		       resolved_by = $3, resolved_at = NOW()
		WHERE id = $4 AND status = 'open'`, req.Resolution, req.Notes, adminID, disputeID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to close dispute"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "dispute resolved", "resolution": req.Resolution})
}
