package payments

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/collabhub/collabhub/internal/db"
)

// gateway is the shared client wired at startup.
var gateway *Client

func Init(c *Client) {
	gateway = c
}

// Payout model for responses
type Payout struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// PayoutsHandler returns the payout history for the authenticated
// provider's connected account.
func PayoutsHandler(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var accountID string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT COALESCE(payout_account_id, '') FROM users WHERE id = $1`, uid).Scan(&accountID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch account"})
	}
	if accountID == "" {
		return c.JSON(http.StatusOK, echo.Map{"payouts": []Payout{}})
	}

	rows, err := db.Conn.Query(context.Background(),
		`SELECT id, account_id, amount, reference, status, created_at
		 FROM payouts WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch payouts"})
	}
	defer rows.Close()

	var payouts []Payout
	for rows.Next() {
		var p Payout
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Amount, &p.Reference, &p.Status, &p.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "scan error"})
		}
		payouts = append(payouts, p)
	}

	return c.JSON(http.StatusOK, echo.Map{"payouts": payouts})
}

// AccountStatusHandler reports whether the provider's connected account
// is ready to receive payouts.
func AccountStatusHandler(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var accountID string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT COALESCE(payout_account_id, '') FROM users WHERE id = $1`, uid).Scan(&accountID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch account"})
	}
	if accountID == "" {
		return c.JSON(http.StatusOK, echo.Map{"onboarded": false, "payouts_enabled": false})
	}

	acct, err := gateway.RetrieveAccount(context.Background(), accountID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "gateway unavailable"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"onboarded":       true,
		"payouts_enabled": acct.PayoutsEnabled,
	})
}

// AdminListPayouts returns every recorded payout, newest first.
func AdminListPayouts(c echo.Context) error {
	rows, err := db.Conn.Query(context.Background(),
		`SELECT id, account_id, amount, reference, status, created_at
		 FROM payouts ORDER BY created_at DESC LIMIT 200`)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch payouts"})
	}
	defer rows.Close()

	var payouts []Payout
	for rows.Next() {
		var p Payout
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Amount, &p.Reference, &p.Status, &p.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "scan error"})
		}
		payouts = append(payouts, p)
	}

	return c.JSON(http.StatusOK, echo.Map{"payouts": payouts})
}
