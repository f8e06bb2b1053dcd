package marketplace

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/collabhub/collabhub/internal/engine"
	"github.com/collabhub/collabhub/internal/ledger"
)

// eng is the shared lifecycle engine wired at startup.
var eng *engine.Engine

func Init(e *engine.Engine) {
	eng = e
}

// Listing is a provider's published service package.
type Listing struct {
	ID               string          `json:"id"`
	ProviderID       string          `json:"provider_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	BasePrice        decimal.Decimal `json:"base_price"`
	AddOns           []engine.AddOn  `json:"add_ons"`
	Category         string          `json:"category,omitempty"`
	DeliveryTimeDays int             `json:"delivery_time_days,omitempty"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// OrderSummary is the list-view shape for both parties.
type OrderSummary struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	ClientID       string          `json:"client_id"`
	ProviderID     string          `json:"provider_id"`
	Title          string          `json:"title"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	DeliverableURL string          `json:"deliverable_url,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func actorFromContext(c echo.Context) (engine.ActorContext, bool) {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return engine.ActorContext{}, false
	}
	role, _ := c.Get("role").(string)
	return engine.ActorContext{UserID: uid, Role: role}, true
}

// lifecycleError maps engine errors onto HTTP responses. Conflicts are
// 409 so clients can refetch and retry; upload and gateway failures are
// 502 because retrying the same request can succeed.
func lifecycleError(c echo.Context, err error) error {
	var (
		ve  *engine.ValidationError
		ue  *engine.UploadError
		pe  *engine.PersistError
		pre *engine.PaymentReleaseError
	)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	case errors.Is(err, engine.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you are not allowed to act on this order"})
	case errors.Is(err, engine.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "order is not in a state that allows this action"})
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Reason, "field": ve.Field})
	case errors.As(err, &ue):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "deliverable upload failed, please retry"})
	case errors.As(err, &pre):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment release failed, nothing was approved"})
	case errors.As(err, &pe):
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not save the order"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
