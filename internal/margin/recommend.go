package margin

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Thresholds drive recommendation generation. Ratios are fractions
// (0.10 = 10%); fee and return rates are percentages like the input.
type Thresholds struct {
	MinMarginRate     float64 `json:"minMarginRate"`
	TargetMarginRate  float64 `json:"targetMarginRate"`
	MaxShippingShare  float64 `json:"maxShippingShare"`
	MaxFeeRate        float64 `json:"maxFeeRate"`
	MaxMarketingShare float64 `json:"maxMarketingShare"`
	MaxReturnRate     float64 `json:"maxReturnRate"`
	MaxPaybackMonths  float64 `json:"maxPaybackMonths"`
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinMarginRate:     0.10,
		TargetMarginRate:  0.20,
		MaxShippingShare:  0.15,
		MaxFeeRate:        15,
		MaxMarketingShare: 0.20,
		MaxReturnRate:     10,
		MaxPaybackMonths:  12,
	}
}

// Validate returns a *ValidationError naming every out-of-range threshold.
func (t Thresholds) Validate() error {
	var v validator
	v.between("minMarginRate", t.MinMarginRate, 0, 1)
	v.between("targetMarginRate", t.TargetMarginRate, 0, 1)
	v.between("maxShippingShare", t.MaxShippingShare, 0, 1)
	v.between("maxFeeRate", t.MaxFeeRate, 0, 100)
	v.between("maxMarketingShare", t.MaxMarketingShare, 0, 1)
	v.between("maxReturnRate", t.MaxReturnRate, 0, 100)
	v.nonNegative("maxPaybackMonths", t.MaxPaybackMonths)
	if len(v.fields) == 0 && t.TargetMarginRate < t.MinMarginRate {
		v.add("targetMarginRate", "must be greater than or equal to minMarginRate")
	}
	return v.err()
}

// exact carries the unrounded figures recommendations are judged on.
type exact struct {
	unitProfit     decimal.Decimal
	monthlyRevenue decimal.Decimal
	marginRate     decimal.Decimal
	roi            decimal.Decimal
}

// recommend returns advice ordered from most to least severe.
func (c *Calculator) recommend(in Input, x exact, b Breakeven) []string {
	t := c.thresholds
	recs := make([]string, 0, 4)

	if !x.unitProfit.IsPositive() || x.roi.IsNegative() {
		recs = append(recs, "This product is not viable at current costs: each unit sold loses money.")
	}
	// Without projected sales the monthly ratios are zero; judge the unit instead.
	rate := x.marginRate
	if x.monthlyRevenue.IsZero() {
		rate = x.unitProfit.Div(decimal.NewFromFloat(in.SellingPrice))
	}
	if x.unitProfit.IsPositive() && rate.LessThan(decimal.NewFromFloat(t.MinMarginRate)) {
		recs = append(recs, fmt.Sprintf("Increase the selling price or reduce costs: margin is below %s.", percent(t.MinMarginRate)))
	}

	shippingShare := in.ShippingCost / in.SellingPrice
	if rate.LessThan(decimal.NewFromFloat(t.TargetMarginRate)) && shippingShare > t.MaxShippingShare {
		recs = append(recs, fmt.Sprintf("Reduce shipping cost: shipping takes %s of the selling price.", percent(shippingShare)))
	}
	if in.MarketplaceFeeRate > t.MaxFeeRate {
		recs = append(recs, fmt.Sprintf("Compare marketplaces with lower fees: the current fee rate is %s.", percent(in.MarketplaceFeeRate/100)))
	}
	if marketingShare := in.MarketingCost / in.SellingPrice; marketingShare > t.MaxMarketingShare {
		recs = append(recs, fmt.Sprintf("Review marketing spend: it takes %s of the selling price.", percent(marketingShare)))
	}
	if in.ExpectedReturnRate > t.MaxReturnRate {
		recs = append(recs, fmt.Sprintf("Reduce the return rate: %s of units are expected back.", percent(in.ExpectedReturnRate/100)))
	}
	if p := b.PeriodMonths; p != nil && *p > t.MaxPaybackMonths {
		recs = append(recs, fmt.Sprintf("Break-even takes %s months, longer than the %s-month target.",
			decimal.NewFromFloat(*p).String(), decimal.NewFromFloat(t.MaxPaybackMonths).String()))
	}
	if in.ExpectedSales == 0 {
		recs = append(recs, "Add an expected sales volume to project monthly results.")
	}

	return recs
}

// percent formats a fraction as a percentage with at most one decimal.
func percent(f float64) string {
	return decimal.NewFromFloat(f).Mul(hundred).Round(1).String() + "%"
}
