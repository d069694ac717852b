package fiscal

import "github.com/shopspring/decimal"

// Withholding at source applies to service lines flagged as eligible, at 6.5%,
// and only once the eligible base exceeds the regulatory threshold.
var (
	WithholdingRate      = decimal.New(65, -3)          // 6.5%
	WithholdingThreshold = decimal.NewFromInt(20_000)
)

// WithholdingLine is the slice of a document line relevant to the calculation.
type WithholdingLine struct {
	IsService bool
	Eligible  bool
	LineTotal decimal.Decimal
}

// ComputeWithholding returns the amount withheld at source for a document:
// 6.5% of the summed eligible service lines, or zero when the eligible base
// does not exceed 20,000. The result is rounded to two decimals.
func ComputeWithholding(lines []WithholdingLine) decimal.Decimal {
	base := decimal.Zero
	for _, l := range lines {
		if l.IsService && l.Eligible {
			base = base.Add(l.LineTotal)
		}
	}
	if !base.GreaterThan(WithholdingThreshold) {
		return decimal.Zero
	}
	return base.Mul(WithholdingRate).Round(2)
}
