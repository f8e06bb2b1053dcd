package admin

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/collabhub/internal/engine"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReleaseAmountDirectOrder(t *testing.T) {
	o := &engine.DirectOrder{
		OrderCore: engine.OrderCore{ID: "o1", Amount: d("120"), Status: engine.StatusSubmitted},
		PriceType: engine.PriceFixed,
	}

	amount, err := releaseAmount(o)
	require.NoError(t, err)
	assert.True(t, amount.Equal(d("120")))
}

func TestReleaseAmountServiceOrderRecomputesAddOns(t *testing.T) {
	// Base 200 with one enabled add-on: the release must be 250 even if
	// the stored amount column says otherwise.
	o := &engine.ServiceOrder{
		OrderCore:   engine.OrderCore{ID: "s1", Amount: d("200"), Status: engine.StatusSubmitted},
		PackageName: "Brand Kit Pro",
		AddOns: []engine.AddOn{
			{Name: "Rush delivery", Price: d("50"), Enabled: true},
			{Name: "Source files", Price: d("30"), Enabled: false},
		},
	}

	amount, err := releaseAmount(o)
	require.NoError(t, err)
	assert.True(t, amount.Equal(d("250")), "got %s, want 250", amount)
}

func TestReleaseAmountRejectsMilestoneParent(t *testing.T) {
	// The parent's amount is the milestone sum; releasing it wholesale
	// would double-pay anything already released per milestone.
	o := &engine.MilestoneOrder{
		OrderCore: engine.OrderCore{ID: "m1", Amount: d("300"), Status: engine.StatusSubmitted},
		Milestones: []engine.Milestone{
			{ID: "ms-a", OrderID: "m1", Amount: d("150"), Status: engine.StatusApproved},
			{ID: "ms-b", OrderID: "m1", Amount: d("150"), Status: engine.StatusPending},
		},
	}

	_, err := releaseAmount(o)
	require.Error(t, err)
}
