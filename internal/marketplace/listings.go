package marketplace

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/collabhub/collabhub/internal/db"
	"github.com/collabhub/collabhub/internal/engine"
)

type CreateListingRequest struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	BasePrice        decimal.Decimal `json:"base_price"`
	AddOns           []engine.AddOn  `json:"add_ons"`
	Category         string          `json:"category"`
	DeliveryTimeDays int             `json:"delivery_time_days"`
}

// =========================
// CreateListing - Provider publishes a service package
// =========================
func CreateListing(c echo.Context) error {
	providerID, ok := c.Get("user_id").(string)
	if !ok || providerID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if role, _ := c.Get("role").(string); role != "provider" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "providers only"})
	}

	req := new(CreateListingRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Title == "" || !req.BasePrice.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and a positive base_price are required"})
	}
	for _, a := range req.AddOns {
		if a.Name == "" || a.Price.IsNegative() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "each add-on needs a name and non-negative price"})
		}
	}

	addOnsJSON, _ := json.Marshal(req.AddOns)
	if req.AddOns == nil {
		addOnsJSON = []byte("[]")
	}

	var id string
	err := db.Conn.QueryRow(context.Background(), `
		INSERT INTO listings (provider_id, title, description, base_price, add_ons, category, delivery_time_days)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, 0))
		RETURNING id
	`, providerID, req.Title, req.Description, req.BasePrice, addOnsJSON, req.Category, req.DeliveryTimeDays).Scan(&id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create listing"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"listing_id": id, "message": "Listing published"})
}

// =========================
// BrowseListings - Public catalog, optionally filtered by category
// =========================
func BrowseListings(c echo.Context) error {
	query := `
		SELECT id::text, provider_id::text, title, COALESCE(description, ''), base_price,
		       add_ons, COALESCE(category, ''), COALESCE(delivery_time_days, 0), status, created_at
		FROM listings WHERE status = 'active'`
	args := []any{}
	if cat := c.QueryParam("category"); cat != "" {
		query += ` AND category = $1`
		args = append(args, cat)
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	rows, err := db.Conn.Query(context.Background(), query, args...)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch listings"})
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var (
			l          Listing
			addOnsJSON []byte
		)
		if err := rows.Scan(&l.ID, &l.ProviderID, &l.Title, &l.Description, &l.BasePrice,
			&addOnsJSON, &l.Category, &l.DeliveryTimeDays, &l.Status, &l.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse listing"})
		}
		if err := json.Unmarshal(addOnsJSON, &l.AddOns); err != nil {
			l.AddOns = nil
		}
		listings = append(listings, l)
	}

	return c.JSON(http.StatusOK, echo.Map{"listings": listings})
}

// =========================
// GetListing - Fetch one listing with its add-ons and computed totals
// =========================
func GetListing(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing listing id"})
	}

	var (
		l          Listing
		addOnsJSON []byte
	)
	err := db.Conn.QueryRow(context.Background(), `
		SELECT id::text, provider_id::text, title, COALESCE(description, ''), base_price,
		       add_ons, COALESCE(category, ''), COALESCE(delivery_time_days, 0), status, created_at
		FROM listings WHERE id = $1
	`, id).Scan(&l.ID, &l.ProviderID, &l.Title, &l.Description, &l.BasePrice,
		&addOnsJSON, &l.Category, &l.DeliveryTimeDays, &l.Status, &l.CreatedAt)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
	}
	if err := json.Unmarshal(addOnsJSON, &l.AddOns); err != nil {
		l.AddOns = nil
	}

	// Full price with every add-on enabled, for the listing page.
	all := make([]engine.AddOn, len(l.AddOns))
	for i, a := range l.AddOns {
		a.Enabled = true
		all[i] = a
	}

	return c.JSON(http.StatusOK, echo.Map{
		"listing":   l,
		"max_total": engine.ComputeTotal(l.BasePrice, all),
	})
}

type UpdateListingStatusRequest struct {
	Status string `json:"status"`
}

// =========================
// UpdateListingStatus - Provider pauses or removes a listing
// =========================
func UpdateListingStatus(c echo.Context) error {
	providerID, ok := c.Get("user_id").(string)
	if !ok || providerID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	req := new(UpdateListingStatusRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Status != "active" && req.Status != "paused" && req.Status != "removed" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be active, paused or removed"})
	}

	res, err := db.Conn.Exec(context.Background(),
		`UPDATE listings SET status = $1 WHERE id = $2 AND provider_id = $3`, req.Status, id, providerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update listing"})
	}
	if res.RowsAffected() == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found or not yours"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Listing updated"})
}
