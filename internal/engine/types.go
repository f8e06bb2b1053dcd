package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state shared by orders and milestones.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusSubmitted, StatusApproved:
		return true
	}
	return false
}

// Kind discriminates the order variants.
type Kind string

const (
	KindDirect    Kind = "direct"
	KindMilestone Kind = "milestone"
	KindService   Kind = "service"
)

// PriceType of a direct hire offer.
type PriceType string

const (
	PriceFixed     PriceType = "fixed"
	PriceHourly    PriceType = "hourly"
	PriceMilestone PriceType = "milestone"
)

// UsageState mirrors the linked contract-tool usage record states.
type UsageState string

const (
	UsagePending   UsageState = "pending"
	UsageRejected  UsageState = "rejected"
	UsageCompleted UsageState = "completed"
)

// ActorContext identifies the authenticated user invoking an operation.
// Passed explicitly so guards never read ambient session state.
type ActorContext struct {
	UserID string
	Role   string
}

// Review carries the score and text a client leaves on approval.
type Review struct {
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// File is a deliverable payload to be uploaded to durable storage.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// AddOn is one optional priced extra on a service package.
type AddOn struct {
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Enabled bool            `json:"enabled"`
}

// Milestone is one payable checkpoint of a milestone-priced order.
type Milestone struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	Title          string          `json:"title"`
	Amount         decimal.Decimal `json:"amount"`
	DueDate        time.Time       `json:"due_date"`
	Status         Status          `json:"status"`
	DeliverableURL string          `json:"deliverable_url,omitempty"`
}

// OrderCore holds the fields every order variant shares.
type OrderCore struct {
	ID                string          `json:"id"`
	ClientID          string          `json:"client_id"`
	ProviderID        string          `json:"provider_id"`
	ProviderAccountID string          `json:"provider_account_id,omitempty"`
	ConversationID    string          `json:"conversation_id"`
	Title             string          `json:"title"`
	Amount            decimal.Decimal `json:"amount"`
	Status            Status          `json:"status"`
	DeliverableURL    string          `json:"deliverable_url,omitempty"`
	ReviewScore       *float64        `json:"review_score,omitempty"`
	ReviewText        string          `json:"review_text,omitempty"`
	Tip               decimal.Decimal `json:"tip"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Order is the tagged-variant boundary type. Store rows are parsed into
// one of the three concrete variants before any business logic runs.
type Order interface {
	Core() *OrderCore
	Kind() Kind
	// Payable is the base amount released on approval, before tip.
	Payable() decimal.Decimal
}

// DirectOrder is a single-deliverable hire engagement.
type DirectOrder struct {
	OrderCore
	PriceType PriceType `json:"price_type"`
}

func (o *DirectOrder) Core() *OrderCore         { return &o.OrderCore }
func (o *DirectOrder) Kind() Kind               { return KindDirect }
func (o *DirectOrder) Payable() decimal.Decimal { return o.Amount }

// MilestoneOrder segments payment across child milestones. The parent's
// own status and amount are advisory; authoritative per-payment state
// lives in the milestones.
type MilestoneOrder struct {
	OrderCore
	Milestones []Milestone `json:"milestones"`
}

func (o *MilestoneOrder) Core() *OrderCore { return &o.OrderCore }
func (o *MilestoneOrder) Kind() Kind       { return KindMilestone }

// Payable for a milestone parent is zero: each milestone releases its
// own amount on approval, and CompleteProject releases only the tip.
func (o *MilestoneOrder) Payable() decimal.Decimal { return decimal.Zero }

// AllMilestonesApproved reports whether every checkpoint is paid out.
func (o *MilestoneOrder) AllMilestonesApproved() bool {
	if len(o.Milestones) == 0 {
		return false
	}
	for _, m := range o.Milestones {
		if m.Status != StatusApproved {
			return false
		}
	}
	return true
}

// ServiceOrder is a packaged-service purchase with optional add-ons.
type ServiceOrder struct {
	OrderCore
	PackageName string  `json:"package_name"`
	AddOns      []AddOn `json:"add_ons"`
}

func (o *ServiceOrder) Core() *OrderCore { return &o.OrderCore }
func (o *ServiceOrder) Kind() Kind       { return KindService }

// Payable recomputes the total from the add-on list on every read; a
// stored total is never trusted as input to a payment call.
func (o *ServiceOrder) Payable() decimal.Decimal {
	return ComputeTotal(o.Amount, o.AddOns)
}

// Row is the untyped shape a store row crosses the trust boundary in.
type Row struct {
	ID                string
	ClientID          string
	ProviderID        string
	ProviderAccountID string
	ConversationID    string
	Kind              string
	Title             string
	Amount            decimal.Decimal
	PriceType         string
	Status            string
	DeliverableURL    string
	ReviewScore       *float64
	ReviewText        string
	Tip               decimal.Decimal
	PackageName       string
	AddOns            []AddOn
	Milestones        []Milestone
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ParseOrder validates a raw store row and returns the typed variant.
func ParseOrder(r Row) (Order, error) {
	if r.ID == "" || r.ClientID == "" || r.ProviderID == "" {
		return nil, fmt.Errorf("order row %q: missing identity fields", r.ID)
	}
	status := Status(r.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("order row %q: unknown status %q", r.ID, r.Status)
	}
	core := OrderCore{
		ID:                r.ID,
		ClientID:          r.ClientID,
		ProviderID:        r.ProviderID,
		ProviderAccountID: r.ProviderAccountID,
		ConversationID:    r.ConversationID,
		Title:             r.Title,
		Amount:            r.Amount,
		Status:            status,
		DeliverableURL:    r.DeliverableURL,
		ReviewScore:       r.ReviewScore,
		ReviewText:        r.ReviewText,
		Tip:               r.Tip,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}

	switch Kind(r.Kind) {
	case KindDirect:
		pt := PriceType(r.PriceType)
		switch pt {
		case PriceFixed, PriceHourly:
		case PriceMilestone:
			return nil, fmt.Errorf("order row %q: milestone price type on direct order", r.ID)
		default:
			return nil, fmt.Errorf("order row %q: unknown price type %q", r.ID, r.PriceType)
		}
		if r.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("order row %q: non-positive amount", r.ID)
		}
		return &DirectOrder{OrderCore: core, PriceType: pt}, nil

	case KindMilestone:
		for _, m := range r.Milestones {
			if m.OrderID != r.ID {
				return nil, fmt.Errorf("order row %q: milestone %q belongs to %q", r.ID, m.ID, m.OrderID)
			}
			if !m.Status.Valid() {
				return nil, fmt.Errorf("order row %q: milestone %q has unknown status %q", r.ID, m.ID, m.Status)
			}
		}
		return &MilestoneOrder{OrderCore: core, Milestones: r.Milestones}, nil

	case KindService:
		if r.PackageName == "" {
			return nil, fmt.Errorf("order row %q: service order without package name", r.ID)
		}
		if r.Amount.Sign() < 0 {
			return nil, fmt.Errorf("order row %q: negative base amount", r.ID)
		}
		for _, a := range r.AddOns {
			if a.Price.Sign() < 0 {
				return nil, fmt.Errorf("order row %q: add-on %q has negative price", r.ID, a.Name)
			}
		}
		return &ServiceOrder{OrderCore: core, PackageName: r.PackageName, AddOns: r.AddOns}, nil
	}
	return nil, fmt.Errorf("order row %q: unknown kind %q", r.ID, r.Kind)
}
