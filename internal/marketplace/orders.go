package marketplace

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/collabhub/collabhub/internal/db"
	"github.com/collabhub/collabhub/internal/engine"
	"github.com/collabhub/collabhub/internal/messaging"
)

// readUpload pulls the multipart "file" part into memory for the
// engine's storage upload.
func readUpload(c echo.Context) (engine.File, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return engine.File{}, err
	}
	src, err := fh.Open()
	if err != nil {
		return engine.File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return engine.File{}, err
	}
	return engine.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// =========================
// SubmitDeliverable - Provider uploads finished work
// =========================
func SubmitDeliverable(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order id in URL"})
	}

	file, err := readUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a deliverable file is required"})
	}

	url, err := eng.SubmitDeliverable(context.Background(), actor, orderID, file)
	if err != nil {
		return lifecycleError(c, err)
	}

	messaging.BroadcastOrderUpdate(orderID, "submitted")
	return c.JSON(http.StatusOK, echo.Map{"deliverable_url": url, "message": "Deliverable submitted"})
}

// =========================
// SubmitMilestone - Provider uploads work for one checkpoint
// =========================
func SubmitMilestone(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	milestoneID := c.Param("id")
	if milestoneID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing milestone id in URL"})
	}

	file, err := readUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a deliverable file is required"})
	}

	url, err := eng.SubmitMilestone(context.Background(), actor, milestoneID, file)
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deliverable_url": url, "message": "Milestone submitted"})
}

type ApproveRequest struct {
	ReviewScore float64          `json:"review_score"`
	ReviewText  string           `json:"review_text"`
	Tip         *decimal.Decimal `json:"tip"`
}

// =========================
// ApproveWork - Client approves a submitted order, releasing payment
// =========================
func ApproveWork(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order id in URL"})
	}

	req := new(ApproveRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	review := engine.Review{Score: req.ReviewScore, Text: req.ReviewText}
	o, err := eng.ApproveWork(context.Background(), actor, orderID, review, req.Tip)
	if err != nil {
		return lifecycleError(c, err)
	}

	messaging.BroadcastOrderUpdate(orderID, "approved")
	return c.JSON(http.StatusOK, echo.Map{"order": o, "message": "Work approved and payment released"})
}

// =========================
// ApproveMilestone - Client approves one checkpoint
// =========================
func ApproveMilestone(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	milestoneID := c.Param("id")
	if milestoneID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing milestone id in URL"})
	}

	m, err := eng.ApproveMilestone(context.Background(), actor, milestoneID)
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"milestone": m, "message": "Milestone approved and payment released"})
}

// =========================
// CompleteProject - Client closes a milestone order after all checkpoints
// =========================
func CompleteProject(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order id in URL"})
	}

	req := new(ApproveRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	review := engine.Review{Score: req.ReviewScore, Text: req.ReviewText}
	o, err := eng.CompleteProject(context.Background(), actor, orderID, review, req.Tip)
	if err != nil {
		return lifecycleError(c, err)
	}

	messaging.BroadcastOrderUpdate(orderID, "approved")
	return c.JSON(http.StatusOK, echo.Map{"order": o, "message": "Project completed"})
}

// =========================
// GetOrder - Either party fetches one order with milestones
// =========================
func GetOrder(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order id in URL"})
	}

	o, err := eng.Store().GetOrder(context.Background(), orderID)
	if err != nil {
		return lifecycleError(c, err)
	}
	core := o.Core()
	if actor.UserID != core.ClientID && actor.UserID != core.ProviderID && actor.Role != "admin" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your order"})
	}
	return c.JSON(http.StatusOK, echo.Map{"order": o})
}

// =========================
// GetUserOrders - Fetch all orders for a user (as client or provider)
// =========================
func GetUserOrders(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(), `
		SELECT id::text, kind, client_id::text, provider_id::text, title, amount, status,
		       COALESCE(deliverable_url, ''), created_at, updated_at
		FROM orders WHERE client_id = $1 OR provider_id = $1 ORDER BY created_at DESC
	`, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch orders"})
	}
	defer rows.Close()

	var orders []OrderSummary
	for rows.Next() {
		var o OrderSummary
		if err := rows.Scan(&o.ID, &o.Kind, &o.ClientID, &o.ProviderID, &o.Title, &o.Amount,
			&o.Status, &o.DeliverableURL, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		orders = append(orders, o)
	}

	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}
