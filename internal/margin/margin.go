package margin

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	one      = decimal.NewFromInt(1)
	maxUnits = decimal.NewFromInt(math.MaxInt64)
)

// Input represents the unit economics of a product sourced for resale.
// Money values are per unit; rates are percentages in [0,100].
type Input struct {
	CostPrice          float64 `json:"costPrice"`
	ShippingCost       float64 `json:"shippingCost"`
	CustomsDuty        float64 `json:"customsDuty"`
	MarketplaceFeeRate float64 `json:"marketplaceFeeRate"`
	MarketingCost      float64 `json:"marketingCost"`
	AdditionalCosts    float64 `json:"additionalCosts"`
	SellingPrice       float64 `json:"sellingPrice"`
	ExpectedSales      int64   `json:"expectedSales"`
	ExpectedReturnRate float64 `json:"expectedReturnRate"`

	// FixedCosts are one-time costs (tooling, samples, listing setup) that
	// break-even has to recover. Zero means break-even is immediate.
	FixedCosts float64 `json:"fixedCosts"`
}

// BreakevenStatus tells whether cumulative profit can offset fixed costs.
type BreakevenStatus string

const (
	BreakevenImmediate   BreakevenStatus = "immediate"
	BreakevenReachable   BreakevenStatus = "reachable"
	BreakevenUnreachable BreakevenStatus = "unreachable"
)

// Breakeven describes when fixed costs are recovered. Nil fields are
// undefined: an unreachable break-even has none, and PeriodMonths is nil
// when there are no effective monthly sales to recover with.
type Breakeven struct {
	Status       BreakevenStatus `json:"status"`
	Units        *int64          `json:"units"`
	Revenue      *float64        `json:"revenue"`
	PeriodMonths *float64        `json:"periodMonths"`
}

// Reachable reports whether the fixed costs can ever be recovered.
func (b Breakeven) Reachable() bool {
	return b.Status != BreakevenUnreachable
}

// Result contains the per-unit breakdown, monthly projection, ratios,
// break-even analysis and advice for one Input.
type Result struct {
	UnitCost       float64 `json:"unitCost"`
	UnitRevenue    float64 `json:"unitRevenue"`
	FeeAmount      float64 `json:"feeAmount"`
	UnitProfit     float64 `json:"unitProfit"`
	EffectiveUnits float64 `json:"effectiveUnits"`

	MonthlyRevenue float64 `json:"monthlyRevenue"`
	MonthlyCost    float64 `json:"monthlyCost"`
	MonthlyProfit  float64 `json:"monthlyProfit"`

	MarginRate float64 `json:"marginRate"`
	ROI        float64 `json:"roi"`

	Breakeven       Breakeven `json:"breakeven"`
	Recommendations []string  `json:"recommendations"`
}

// Calculator computes margin results against a fixed set of thresholds.
// It holds no mutable state and may be shared between goroutines.
type Calculator struct {
	thresholds Thresholds
}

// NewCalculator returns a Calculator using t for recommendations.
func NewCalculator(t Thresholds) (*Calculator, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{thresholds: t}, nil
}

var defaultCalculator = &Calculator{thresholds: DefaultThresholds()}

// Calculate computes a Result with the default thresholds.
func Calculate(in Input) (Result, error) {
	return defaultCalculator.Calculate(in)
}

// Calculate validates in and computes its Result. The only error returned
// is a *ValidationError.
func (c *Calculator) Calculate(in Input) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	price := decimal.NewFromFloat(in.SellingPrice)
	marketing := decimal.NewFromFloat(in.MarketingCost)

	unitCost := decimal.NewFromFloat(in.CostPrice).
		Add(decimal.NewFromFloat(in.ShippingCost)).
		Add(decimal.NewFromFloat(in.CustomsDuty)).
		Add(decimal.NewFromFloat(in.AdditionalCosts))
	feeAmount := price.Mul(decimal.NewFromFloat(in.MarketplaceFeeRate)).Div(hundred)
	keptShare := one.Sub(decimal.NewFromFloat(in.ExpectedReturnRate).Div(hundred))
	effectiveUnits := decimal.NewFromInt(in.ExpectedSales).Mul(keptShare)
	unitProfit := price.Sub(unitCost).Sub(feeAmount).Sub(marketing)

	monthlyRevenue := price.Mul(effectiveUnits)
	monthlyCost := unitCost.Add(feeAmount).Add(marketing).Mul(effectiveUnits)
	monthlyProfit := monthlyRevenue.Sub(monthlyCost)

	marginRate := safeDiv(monthlyProfit, monthlyRevenue)
	roi := safeDiv(monthlyProfit, monthlyCost)

	breakeven, err := computeBreakeven(decimal.NewFromFloat(in.FixedCosts), unitProfit, price, effectiveUnits)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		UnitCost:       money(unitCost),
		UnitRevenue:    money(price),
		FeeAmount:      money(feeAmount),
		UnitProfit:     money(unitProfit),
		EffectiveUnits: money(effectiveUnits),
		MonthlyRevenue: money(monthlyRevenue),
		MonthlyCost:    money(monthlyCost),
		MonthlyProfit:  money(monthlyProfit),
		MarginRate:     ratio(marginRate),
		ROI:            ratio(roi),
		Breakeven:      breakeven,
	}
	result.Recommendations = c.recommend(in, exact{
		unitProfit:     unitProfit,
		monthlyRevenue: monthlyRevenue,
		marginRate:     marginRate,
		roi:            roi,
	}, result.Breakeven)

	return result, nil
}

func computeBreakeven(fixedCosts, unitProfit, price, effectiveUnits decimal.Decimal) (Breakeven, error) {
	if !unitProfit.IsPositive() {
		return Breakeven{Status: BreakevenUnreachable}, nil
	}

	if fixedCosts.IsZero() {
		b := Breakeven{
			Status:  BreakevenImmediate,
			Units:   int64Ptr(0),
			Revenue: float64Ptr(0),
		}
		if effectiveUnits.IsPositive() {
			b.PeriodMonths = float64Ptr(0)
		}
		return b, nil
	}

	units := fixedCosts.Div(unitProfit).Ceil()
	if units.GreaterThan(maxUnits) {
		return Breakeven{}, &ValidationError{Fields: []FieldError{{
			Field:   "fixedCosts",
			Message: "is too large to recover at this unit profit",
		}}}
	}

	b := Breakeven{
		Status:  BreakevenReachable,
		Units:   int64Ptr(units.IntPart()),
		Revenue: float64Ptr(money(units.Mul(price))),
	}
	if effectiveUnits.IsPositive() {
		b.PeriodMonths = float64Ptr(money(units.Div(effectiveUnits)))
	}
	return b, nil
}

// safeDiv returns zero instead of dividing by zero.
func safeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// money rounds currency and unit counts to 2 decimal places.
func money(d decimal.Decimal) float64 {
	return round(d, 2)
}

// ratio rounds margin and ROI ratios to 4 decimal places.
func ratio(d decimal.Decimal) float64 {
	return round(d, 4)
}

// round keeps the first significant digit of a non-zero value that would
// otherwise round to zero, so a sub-cent profit never reads as break-even.
func round(d decimal.Decimal, places int32) float64 {
	r := d.Round(places)
	if r.IsZero() && !d.IsZero() {
		leading := d.Exponent() + int32(d.NumDigits()) - 1
		r = d.Round(-leading)
	}
	return r.InexactFloat64()
}

func int64Ptr(v int64) *int64 { return &v }

func float64Ptr(v float64) *float64 { return &v }
