package marketplace

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/collabhub/collabhub/internal/alerts"
	"github.com/collabhub/collabhub/internal/db"
)

type Dispute struct {
	ID         string     `json:"id"`
	OrderID    string     `json:"order_id"`
	FilerID    string     `json:"filer_id"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	Resolution string     `json:"resolution,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type OpenDisputeRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// =========================
// OpenDispute - Either party flags an order for admin review
// =========================
func OpenDispute(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(OpenDisputeRequest)
	if err := c.Bind(req); err != nil || req.OrderID == "" || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id and reason are required"})
	}

	ctx := context.Background()

	var clientID, providerID, status string
	err := db.Conn.QueryRow(ctx,
		`SELECT client_id::text, provider_id::text, status FROM orders WHERE id = $1`,
		req.OrderID).Scan(&clientID, &providerID, &status)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	}
	if uid != clientID && uid != providerID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your order"})
	}
	if status == "rejected" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order was already closed"})
	}

	var existing int
	_ = db.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM disputes WHERE order_id = $1 AND status = 'open'`, req.OrderID).Scan(&existing)
	if existing > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "a dispute is already open for this order"})
	}

	var id string
	err = db.Conn.QueryRow(ctx, `
		INSERT INTO disputes (order_id, filer_id, reason) VALUES ($1, $2, $3) RETURNING id
	`, req.OrderID, uid, req.Reason).Scan(&id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to open dispute"})
	}

	// Tell the other party (best-effort)
	other := providerID
	if uid == providerID {
		other = clientID
	}
	_ = alerts.CreateNotification(other, "dispute:opened", "A dispute was opened", req.Reason, &req.OrderID)

	return c.JSON(http.StatusCreated, echo.Map{"dispute_id": id, "message": "Dispute opened"})
}

// =========================
// ListMyDisputes - Disputes on orders the user is party to
// =========================
func ListMyDisputes(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(), `
		SELECT d.id::text, d.order_id::text, d.filer_id::text, d.reason, d.status,
		       COALESCE(d.resolution, ''), COALESCE(d.notes, ''), d.created_at, d.resolved_at
		FROM disputes d JOIN orders o ON o.id = d.order_id
		WHERE o.client_id = $1 OR o.provider_id = $1
		ORDER BY d.created_at DESC
	`, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch disputes"})
	}
	defer rows.Close()

	var disputes []Dispute
	for rows.Next() {
		var d Dispute
		if err := rows.Scan(&d.ID, &d.OrderID, &d.FilerID, &d.Reason, &d.Status,
			&d.Resolution, &d.Notes, &d.CreatedAt, &d.ResolvedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse dispute"})
		}
		disputes = append(disputes, d)
	}

	return c.JSON(http.StatusOK, echo.Map{"disputes": disputes})
}
