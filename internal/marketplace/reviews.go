package marketplace

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/collabhub/collabhub/internal/db"
)

// Review is the client feedback captured at approval time.
type Review struct {
	OrderID    string          `json:"order_id"`
	OrderTitle string          `json:"order_title"`
	ClientID   string          `json:"client_id"`
	ClientName string          `json:"client_name"`
	Score      float64         `json:"score"`
	Text       string          `json:"text"`
	Tip        decimal.Decimal `json:"tip"`
	ApprovedAt time.Time       `json:"approved_at"`
}

// =========================
// ProviderReviews - Public review feed and rating summary
// =========================
// Reviews are written once, at approval, onto the order row itself;
// there is no separate review submission endpoint.
func ProviderReviews(c echo.Context) error {
	providerID := c.Param("id")
	if providerID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing provider id"})
	}

	rows, err := db.Conn.Query(context.Background(), `
		SELECT o.id::text, o.title, o.client_id::text, u.name,
		       o.review_score, COALESCE(o.review_text, ''), o.tip, o.updated_at
		FROM orders o JOIN users u ON u.id = o.client_id
		WHERE o.provider_id = $1 AND o.status = 'approved' AND o.review_score IS NOT NULL
		ORDER BY o.updated_at DESC
	`, providerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reviews"})
	}
	defer rows.Close()

	var (
		reviews []Review
		total   float64
	)
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.OrderID, &r.OrderTitle, &r.ClientID, &r.ClientName,
			&r.Score, &r.Text, &r.Tip, &r.ApprovedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse review"})
		}
		total += r.Score
		reviews = append(reviews, r)
	}

	average := 0.0
	if len(reviews) > 0 {
		average = total / float64(len(reviews))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"reviews": reviews,
		"count":   len(reviews),
		"average": average,
	})
}
