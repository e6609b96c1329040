package margin

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
		fields []string
	}{
		{name: "valid", mutate: func(*Input) {}},
		{name: "zero selling price", mutate: func(in *Input) { in.SellingPrice = 0 }, fields: []string{"sellingPrice"}},
		{name: "negative selling price", mutate: func(in *Input) { in.SellingPrice = -1 }, fields: []string{"sellingPrice"}},
		{name: "negative cost price", mutate: func(in *Input) { in.CostPrice = -0.01 }, fields: []string{"costPrice"}},
		{name: "negative fee rate", mutate: func(in *Input) { in.MarketplaceFeeRate = -1 }, fields: []string{"marketplaceFeeRate"}},
		{name: "return rate above 100", mutate: func(in *Input) { in.ExpectedReturnRate = 100.5 }, fields: []string{"expectedReturnRate"}},
		{name: "return rate at bound", mutate: func(in *Input) { in.ExpectedReturnRate = 100 }},
		{name: "negative sales", mutate: func(in *Input) { in.ExpectedSales = -3 }, fields: []string{"expectedSales"}},
		{name: "negative fixed costs", mutate: func(in *Input) { in.FixedCosts = -10 }, fields: []string{"fixedCosts"}},
		{name: "nan shipping", mutate: func(in *Input) { in.ShippingCost = math.NaN() }, fields: []string{"shippingCost"}},
		{name: "infinite price", mutate: func(in *Input) { in.SellingPrice = math.Inf(1) }, fields: []string{"sellingPrice"}},
		{
			name: "several fields",
			mutate: func(in *Input) {
				in.CostPrice = -1
				in.MarketplaceFeeRate = 150
				in.SellingPrice = 0
			},
			fields: []string{"costPrice", "marketplaceFeeRate", "sellingPrice"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := scenarioA()
			tc.mutate(&in)

			err := in.Validate()
			if len(tc.fields) == 0 {
				require.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			got := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			assert.Equal(t, tc.fields, got)
		})
	}
}

func TestCalculate_NoPartialResultOnError(t *testing.T) {
	result, err := Calculate(Input{SellingPrice: 0, CostPrice: 10})
	require.Error(t, err)
	assert.Equal(t, Result{}, result)
}

func TestThresholdsValidate_TargetBelowMinimum(t *testing.T) {
	th := DefaultThresholds()
	th.TargetMarginRate = 0.05

	var verr *ValidationError
	require.ErrorAs(t, th.Validate(), &verr)
	assert.True(t, verr.Has("targetMarginRate"))
	assert.NoError(t, DefaultThresholds().Validate())
}
