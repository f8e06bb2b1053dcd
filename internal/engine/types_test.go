package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/collabhub/internal/engine"
)

func baseRow() engine.Row {
	return engine.Row{
		ID:         "o1",
		ClientID:   "client-1",
		ProviderID: "provider-1",
		Kind:       "direct",
		Title:      "Logo design",
		Amount:     d("100"),
		PriceType:  "fixed",
		Status:     "pending",
		CreatedAt:  time.Now(),
	}
}

func TestParseOrderDirect(t *testing.T) {
	o, err := engine.ParseOrder(baseRow())
	require.NoError(t, err)
	direct, ok := o.(*engine.DirectOrder)
	require.True(t, ok)
	assert.Equal(t, engine.KindDirect, direct.Kind())
	assert.True(t, direct.Payable().Equal(d("100")))
}

func TestParseOrderService(t *testing.T) {
	r := baseRow()
	r.Kind = "service"
	r.PackageName = "Brand Kit Pro"
	r.AddOns = []engine.AddOn{{Name: "Rush", Price: d("50"), Enabled: true}}

	o, err := engine.ParseOrder(r)
	require.NoError(t, err)
	svc, ok := o.(*engine.ServiceOrder)
	require.True(t, ok)
	assert.True(t, svc.Payable().Equal(d("150")))
}

func TestParseOrderMilestone(t *testing.T) {
	r := baseRow()
	r.Kind = "milestone"
	r.Milestones = []engine.Milestone{
		{ID: "ms-1", OrderID: "o1", Title: "Phase 1", Amount: d("50"), Status: engine.StatusPending},
	}

	o, err := engine.ParseOrder(r)
	require.NoError(t, err)
	mo, ok := o.(*engine.MilestoneOrder)
	require.True(t, ok)
	assert.False(t, mo.AllMilestonesApproved())
	assert.True(t, mo.Payable().IsZero())
}

func TestParseOrderRejectsBadRows(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*engine.Row)
	}{
		{"missing client", func(r *engine.Row) { r.ClientID = "" }},
		{"unknown status", func(r *engine.Row) { r.Status = "paused" }},
		{"unknown kind", func(r *engine.Row) { r.Kind = "subscription" }},
		{"direct with milestone pricing", func(r *engine.Row) { r.PriceType = "milestone" }},
		{"zero amount direct", func(r *engine.Row) { r.Amount = d("0") }},
		{"service without package", func(r *engine.Row) { r.Kind = "service" }},
		{"foreign milestone", func(r *engine.Row) {
			r.Kind = "milestone"
			r.Milestones = []engine.Milestone{{ID: "ms-1", OrderID: "other", Status: engine.StatusPending}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := baseRow()
			tt.mutate(&r)
			_, err := engine.ParseOrder(r)
			assert.Error(t, err)
		})
	}
}

func TestEmptyMilestoneOrderNeverComplete(t *testing.T) {
	mo := &engine.MilestoneOrder{}
	assert.False(t, mo.AllMilestonesApproved())
}
