package engine

import "github.com/shopspring/decimal"

// ComputeTotal returns base plus the sum of enabled add-on prices.
// Pure; callers must recompute from the add-on list on every read
// instead of trusting a stored total.
func ComputeTotal(base decimal.Decimal, addOns []AddOn) decimal.Decimal {
	total := base
	for _, a := range addOns {
		if a.Enabled {
			total = total.Add(a.Price)
		}
	}
	return total
}

// payout is the amount handed to the gateway: the variant's payable
// base plus the optional tip.
func payout(o Order, tip *decimal.Decimal) decimal.Decimal {
	amount := o.Payable()
	if tip != nil {
		amount = amount.Add(*tip)
	}
	return amount
}

// validReviewScore accepts 0 through 5 in half-point steps.
func validReviewScore(score float64) bool {
	if score < 0 || score > 5 {
		return false
	}
	doubled := score * 2
	return doubled == float64(int64(doubled))
}
