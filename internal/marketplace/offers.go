package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/collabhub/collabhub/internal/alerts"
	"github.com/collabhub/collabhub/internal/db"
	"github.com/collabhub/collabhub/internal/engine"
	"github.com/collabhub/collabhub/internal/messaging"
)

type MilestoneInput struct {
	Title   string          `json:"title"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate *time.Time      `json:"due_date"`
}

type CreateOfferRequest struct {
	Kind       string           `json:"kind"`
	ProviderID string           `json:"provider_id"`
	Title      string           `json:"title"`
	Amount     decimal.Decimal  `json:"amount"`
	PriceType  string           `json:"price_type"`
	ListingID  string           `json:"listing_id"`
	AddOns     []string         `json:"add_ons"` // selected add-on names for service offers
	Milestones []MilestoneInput `json:"milestones"`
}

// ensureConversation returns the thread between client and provider,
// creating it on first contact.
func ensureConversation(ctx context.Context, clientID, providerID string) (string, error) {
	var id string
	err := db.Conn.QueryRow(ctx, `
		INSERT INTO conversations (client_id, provider_id)
		VALUES ($1, $2)
		ON CONFLICT (client_id, provider_id) DO UPDATE SET client_id = EXCLUDED.client_id
		RETURNING id
	`, clientID, providerID).Scan(&id)
	return id, err
}

// =========================
// CreateOffer - Client sends an offer to a provider
// =========================
func CreateOffer(c echo.Context) error {
	clientID, ok := c.Get("user_id").(string)
	if !ok || clientID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(CreateOfferRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}

	ctx := context.Background()
	var (
		providerID = req.ProviderID
		amount     = req.Amount
		priceType  = req.PriceType
		packageName string
		addOns      []engine.AddOn
	)

	switch engine.Kind(req.Kind) {
	case engine.KindDirect:
		if priceType == "" {
			priceType = "fixed"
		}
		if priceType != "fixed" && priceType != "hourly" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "direct offers are fixed or hourly"})
		}
		if !amount.IsPositive() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be greater than zero"})
		}
	case engine.KindMilestone:
		if len(req.Milestones) == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one milestone is required"})
		}
		priceType = "milestone"
		amount = decimal.Zero
		for _, m := range req.Milestones {
			if m.Title == "" || !m.Amount.IsPositive() {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "each milestone needs a title and positive amount"})
			}
			amount = amount.Add(m.Amount)
		}
	case engine.KindService:
		if req.ListingID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "listing_id is required for service offers"})
		}
		var (
			addOnsJSON []byte
			status     string
		)
		err := db.Conn.QueryRow(ctx, `
			SELECT provider_id::text, title, base_price, add_ons, status
			FROM listings WHERE id = $1
		`, req.ListingID).Scan(&providerID, &packageName, &amount, &addOnsJSON, &status)
		if err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		if status != "active" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "listing is not available"})
		}
		var available []engine.AddOn
		if err := json.Unmarshal(addOnsJSON, &available); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "listing add-ons are corrupt"})
		}
		selected := make(map[string]bool, len(req.AddOns))
		for _, name := range req.AddOns {
			selected[name] = true
		}
		for _, a := range available {
			a.Enabled = selected[a.Name]
			addOns = append(addOns, a)
			delete(selected, a.Name)
		}
		if len(selected) > 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown add-on selected"})
		}
		priceType = "fixed"
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be direct, milestone or service"})
	}

	if providerID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provider_id is required"})
	}
	if providerID == clientID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "you cannot send an offer to yourself"})
	}
	var providerRole string
	if err := db.Conn.QueryRow(ctx,
		`SELECT role FROM users WHERE id = $1 AND COALESCE(is_active, TRUE)`, providerID).Scan(&providerRole); err != nil || providerRole != "provider" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "recipient is not an active provider"})
	}

	conversationID, err := ensureConversation(ctx, clientID, providerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not open conversation"})
	}

	addOnsJSON, _ := json.Marshal(addOns)
	if addOns == nil {
		addOnsJSON = []byte("[]")
	}

	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction start failed"})
	}
	defer tx.Rollback(ctx)

	orderID := uuid.New().String()
	var listingID any
	if req.ListingID != "" {
		listingID = req.ListingID
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, kind, conversation_id, listing_id, client_id, provider_id,
		                    title, amount, price_type, package_name, add_ons, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, 'pending')
	`, orderID, req.Kind, conversationID, listingID, clientID, providerID,
		req.Title, amount, priceType, packageName, addOnsJSON)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create offer"})
	}

	for _, m := range req.Milestones {
		_, err = tx.Exec(ctx, `
			INSERT INTO milestones (order_id, title, amount, due_date, status)
			VALUES ($1, $2, $3, $4, 'pending')
		`, orderID, m.Title, m.Amount, m.DueDate)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create milestones"})
		}
	}

	// Offer creation seeds the linked contract-tool usage record.
	_, err = tx.Exec(ctx, `
		INSERT INTO contract_usage (order_id, state) VALUES ($1, 'pending')
		ON CONFLICT (order_id) DO NOTHING
	`, orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record contract usage"})
	}

	if err = tx.Commit(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	// Notify provider of the new offer (best-effort)
	_ = alerts.CreateNotification(providerID, "offer:created", "New offer received", req.Title, &orderID)

	return c.JSON(http.StatusCreated, echo.Map{
		"order_id":        orderID,
		"conversation_id": conversationID,
		"message":         "Offer sent. Awaiting provider response.",
	})
}

// =========================
// AcceptOffer - Provider accepts a pending offer
// =========================
func AcceptOffer(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order id in URL"})
	}

	o, err := eng.AcceptOffer(context.Background(), actor, orderID)
	if err != nil {
		return lifecycleError(c, err)
	}

	messaging.BroadcastOrderUpdate(orderID, "accepted")
	return c.JSON(http.StatusOK, echo.Map{"order": o, "message": "Offer accepted"})
}

// =========================
// RejectOffer - Provider rejects a pending offer
// =========================
func RejectOffer(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order id in URL"})
	}

	o, err := eng.RejectOffer(context.Background(), actor, orderID)
	if err != nil {
		return lifecycleError(c, err)
	}

	messaging.BroadcastOrderUpdate(orderID, "rejected")
	return c.JSON(http.StatusOK, echo.Map{"order": o, "message": "Offer rejected"})
}
