package plan

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFinalPrice_DiscountedPlan(t *testing.T) {
	p := MembershipPlan{BasePrice: d("1000"), DiscountPercent: d("20"), MemberCount: 5}

	final, err := FinalPrice(p)
	require.NoError(t, err)
	assert.True(t, final.Equal(d("800")), "got %s", final)

	revenue, err := ProjectedMonthlyRevenue(p)
	require.NoError(t, err)
	assert.True(t, revenue.Equal(d("4000")), "got %s", revenue)

	discount, err := DiscountAmount(p)
	require.NoError(t, err)
	assert.True(t, discount.Equal(d("200")), "got %s", discount)
}

func TestFinalPrice_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		base     string
		discount string
		want     string
	}{
		{"10.01", "50", "5.01"},     // 5.005
		{"0.05", "10", "0.05"},      // 0.045
		{"99.99", "33.33", "66.66"}, // 66.663333
		{"1", "0", "1"},
		{"1500", "100", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.base+"@"+tt.discount, func(t *testing.T) {
			final, err := FinalPrice(MembershipPlan{BasePrice: d(tt.base), DiscountPercent: d(tt.discount)})
			require.NoError(t, err)
			assert.True(t, final.Equal(d(tt.want)), "got %s want %s", final, tt.want)
		})
	}
}

func TestFinalPrice_InvalidInputs(t *testing.T) {
	tests := []struct {
		name  string
		plan  MembershipPlan
		field string
	}{
		{"negative base", MembershipPlan{BasePrice: d("-1"), DiscountPercent: d("0")}, "base_price"},
		{"negative discount", MembershipPlan{BasePrice: d("100"), DiscountPercent: d("-0.01")}, "discount_percent"},
		{"discount over 100", MembershipPlan{BasePrice: d("100"), DiscountPercent: d("100.5")}, "discount_percent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FinalPrice(tt.plan)
			var invalid *InvalidPlanError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
			assert.NotEmpty(t, invalid.Error())

			_, err = ProjectedMonthlyRevenue(tt.plan)
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestFinalPrice_BoundedAndMonotonic(t *testing.T) {
	for _, base := range []string{"0", "0.99", "250", "1000", "12345.67"} {
		prev := d(base)
		for pct := 0; pct <= 100; pct += 5 {
			p := MembershipPlan{BasePrice: d(base), DiscountPercent: decimal.NewFromInt(int64(pct))}
			final, err := FinalPrice(p)
			require.NoError(t, err)

			assert.False(t, final.IsNegative(), "base %s pct %d", base, pct)
			assert.True(t, final.LessThanOrEqual(p.BasePrice), "base %s pct %d", base, pct)
			assert.True(t, final.LessThanOrEqual(prev), "not monotonic at base %s pct %d", base, pct)
			prev = final
		}
	}
}

func TestQuoteFor(t *testing.T) {
	q, err := QuoteFor(MembershipPlan{BasePrice: d("2500"), DiscountPercent: d("10")})
	require.NoError(t, err)

	assert.True(t, q.FinalPrice.Equal(d("2250")))
	assert.True(t, q.Discount.Equal(d("250")))
	assert.True(t, q.BasePrice.Sub(q.Discount).Equal(q.FinalPrice))
}
