package margin

import (
	"fmt"
	"math"
	"strings"
)

// FieldError describes why a single input field was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when an input is malformed or out of range.
// It lists every offending field so callers can render targeted messages.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Has reports whether field was rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

type validator struct {
	fields []FieldError
}

func (v *validator) add(field, format string, args ...any) {
	v.fields = append(v.fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) finite(field string, value float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		v.add(field, "must be a finite number")
		return false
	}
	return true
}

func (v *validator) nonNegative(field string, value float64) {
	if v.finite(field, value) && value < 0 {
		v.add(field, "must be greater than or equal to 0")
	}
}

func (v *validator) positive(field string, value float64) {
	if v.finite(field, value) && value <= 0 {
		v.add(field, "must be greater than 0")
	}
}

func (v *validator) between(field string, value, lo, hi float64) {
	if v.finite(field, value) && (value < lo || value > hi) {
		v.add(field, "must be between %s and %s", formatBound(lo), formatBound(hi))
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

func formatBound(f float64) string {
	return fmt.Sprintf("%g", f)
}

// Validate checks the input invariants and returns a *ValidationError
// naming every offending field, or nil.
func (in Input) Validate() error {
	var v validator
	v.nonNegative("costPrice", in.CostPrice)
	v.nonNegative("shippingCost", in.ShippingCost)
	v.nonNegative("customsDuty", in.CustomsDuty)
	v.between("marketplaceFeeRate", in.MarketplaceFeeRate, 0, 100)
	v.nonNegative("marketingCost", in.MarketingCost)
	v.nonNegative("additionalCosts", in.AdditionalCosts)
	v.positive("sellingPrice", in.SellingPrice)
	if in.ExpectedSales < 0 {
		v.add("expectedSales", "must be greater than or equal to 0")
	}
	v.between("expectedReturnRate", in.ExpectedReturnRate, 0, 100)
	v.nonNegative("fixedCosts", in.FixedCosts)
	return v.err()
}
