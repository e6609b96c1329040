// Package export renders saved calculations as CSV, plain text or PDF.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/marginlab/internal/margin"
	"github.com/Simplici0/marginlab/internal/store"
)

// Format selects an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
	FormatPDF  Format = "pdf"
)

// ParseFormat maps a query value to a Format. Empty selects CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatText, "text":
		return FormatText, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported export format %q", raw)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Render encodes c in format f.
func Render(f Format, c store.Calculation) ([]byte, error) {
	switch f {
	case FormatCSV:
		return renderCSV(c)
	case FormatText:
		return renderText(c), nil
	case FormatPDF:
		return renderPDF(c)
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}

// Filename builds a download name such as "desk-lamp-1a2b3c4d.pdf".
func Filename(title, id string, f Format) string {
	base := slug.Make(title)
	if base == "" {
		base = "calculation"
	}
	if short := strings.ReplaceAll(id, "-", ""); short != "" {
		if len(short) > 8 {
			short = short[:8]
		}
		base += "-" + short
	}
	return base + "." + string(f)
}

type field struct {
	label string
	value string
}

type section struct {
	title  string
	fields []field
}

// sections is the shared layout of every format.
func sections(c store.Calculation) []section {
	in, r := c.Input, c.Result

	return []section{
		{
			title: "Inputs",
			fields: []field{
				{"Cost price", amount(in.CostPrice)},
				{"Shipping cost", amount(in.ShippingCost)},
				{"Customs duty", amount(in.CustomsDuty)},
				{"Marketplace fee rate", rate(in.MarketplaceFeeRate)},
				{"Marketing cost", amount(in.MarketingCost)},
				{"Additional costs", amount(in.AdditionalCosts)},
				{"Selling price", amount(in.SellingPrice)},
				{"Expected sales", fmt.Sprintf("%d", in.ExpectedSales)},
				{"Expected return rate", rate(in.ExpectedReturnRate)},
				{"Fixed costs", amount(in.FixedCosts)},
			},
		},
		{
			title: "Unit economics",
			fields: []field{
				{"Unit cost", amount(r.UnitCost)},
				{"Marketplace fee", amount(r.FeeAmount)},
				{"Unit profit", amount(r.UnitProfit)},
				{"Effective units", amount(r.EffectiveUnits)},
			},
		},
		{
			title: "Monthly projection",
			fields: []field{
				{"Revenue", amount(r.MonthlyRevenue)},
				{"Cost", amount(r.MonthlyCost)},
				{"Profit", amount(r.MonthlyProfit)},
				{"Margin", rate(r.MarginRate * 100)},
				{"ROI", rate(r.ROI * 100)},
			},
		},
		{
			title:  "Break-even",
			fields: breakevenFields(r.Breakeven),
		},
	}
}

func breakevenFields(b margin.Breakeven) []field {
	fields := []field{{"Status", string(b.Status)}}
	if b.Units != nil {
		fields = append(fields, field{"Units", fmt.Sprintf("%d", *b.Units)})
	}
	if b.Revenue != nil {
		fields = append(fields, field{"Revenue", amount(*b.Revenue)})
	}
	if b.PeriodMonths != nil {
		fields = append(fields, field{"Months", decimal.NewFromFloat(*b.PeriodMonths).StringFixed(2)})
	} else if b.Reachable() {
		fields = append(fields, field{"Months", "n/a"})
	}
	return fields
}

func amount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func rate(percent float64) string {
	return decimal.NewFromFloat(percent).StringFixed(2) + "%"
}

func createdAt(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func title(c store.Calculation) string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return "Untitled calculation"
}
