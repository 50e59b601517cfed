package plan

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimal places charged amounts are
// rounded to.
const MinorUnitPlaces = 2

var (
	hundred = decimal.NewFromInt(100)
)

// InvalidPlanError reports pricing inputs that cannot produce a charge.
type InvalidPlanError struct {
	Field  string
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan: %s %s", e.Field, e.Reason)
}

// Quote is the price breakdown of a plan.
type Quote struct {
	BasePrice       decimal.Decimal `json:"base_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Discount        decimal.Decimal `json:"discount"`
	FinalPrice      decimal.Decimal `json:"final_price"`
}

func validatePricing(p MembershipPlan) error {
	if p.BasePrice.IsNegative() {
		return &InvalidPlanError{Field: "base_price", Reason: "must not be negative"}
	}
	if p.DiscountPercent.IsNegative() || p.DiscountPercent.GreaterThan(hundred) {
		return &InvalidPlanError{Field: "discount_percent", Reason: "must be between 0 and 100"}
	}
	return nil
}

// FinalPrice returns basePrice * (1 - discountPercent/100) rounded half-up
// to the currency minor unit.
func FinalPrice(p MembershipPlan) (decimal.Decimal, error) {
	if err := validatePricing(p); err != nil {
		return decimal.Zero, err
	}
	factor := hundred.Sub(p.DiscountPercent).Div(hundred)
	// Round is half away from zero, which is half-up for non-negative values.
	return p.BasePrice.Mul(factor).Round(MinorUnitPlaces), nil
}

func DiscountAmount(p MembershipPlan) (decimal.Decimal, error) {
	final, err := FinalPrice(p)
	if err != nil {
		return decimal.Zero, err
	}
	return p.BasePrice.Sub(final), nil
}

// ProjectedMonthlyRevenue is FinalPrice times the plan's member count.
func ProjectedMonthlyRevenue(p MembershipPlan) (decimal.Decimal, error) {
	final, err := FinalPrice(p)
	if err != nil {
		return decimal.Zero, err
	}
	return final.Mul(decimalFromInt(p.MemberCount)), nil
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func QuoteFor(p MembershipPlan) (Quote, error) {
	final, err := FinalPrice(p)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		BasePrice:       p.BasePrice,
		DiscountPercent: p.DiscountPercent,
		Discount:        p.BasePrice.Sub(final),
		FinalPrice:      final,
	}, nil
}
