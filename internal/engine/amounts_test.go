package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collabhub/collabhub/internal/engine"
)

func TestComputeTotal(t *testing.T) {
	addOns := []engine.AddOn{
		{Name: "Rush delivery", Price: d("50"), Enabled: true},
		{Name: "Source files", Price: d("30"), Enabled: false},
		{Name: "Extra revision", Price: d("15.50"), Enabled: true},
	}

	total := engine.ComputeTotal(d("200"), addOns)
	assert.True(t, total.Equal(d("265.50")), "got %s", total)
}

func TestComputeTotalNoAddOns(t *testing.T) {
	assert.True(t, engine.ComputeTotal(d("99.99"), nil).Equal(d("99.99")))
}

func TestComputeTotalIsPure(t *testing.T) {
	// Recomputing from the same inputs always yields the same value and
	// never mutates the add-on list.
	addOns := []engine.AddOn{
		{Name: "a", Price: d("10"), Enabled: true},
		{Name: "b", Price: d("20"), Enabled: true},
	}
	first := engine.ComputeTotal(d("100"), addOns)
	second := engine.ComputeTotal(d("100"), addOns)
	assert.True(t, first.Equal(second))
	assert.True(t, addOns[0].Price.Equal(d("10")))
}

func TestServiceOrderPayableIgnoresStaleStoredTotal(t *testing.T) {
	// Amount is the base; any cached grand total a row might carry is
	// never consulted.
	o := &engine.ServiceOrder{
		OrderCore:   engine.OrderCore{ID: "s1", ClientID: "c", ProviderID: "p", Amount: d("100")},
		PackageName: "Starter",
		AddOns: []engine.AddOn{
			{Name: "addon", Price: d("40"), Enabled: true},
		},
	}
	assert.True(t, o.Payable().Equal(d("140")))

	o.AddOns[0].Enabled = false
	assert.True(t, o.Payable().Equal(d("100")))
}
