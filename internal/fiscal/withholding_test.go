package fiscal

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeWithholding_AboveThreshold(t *testing.T) {
	// Single eligible service line of 100,000 → 6.5% = 6,500.
	got := ComputeWithholding([]WithholdingLine{
		{IsService: true, Eligible: true, LineTotal: decimal.NewFromInt(100_000)},
	})
	assert.True(t, decimal.NewFromInt(6_500).Equal(got), got.String())
}

func TestComputeWithholding_AtThresholdIsZero(t *testing.T) {
	// The base must exceed 20,000; exactly 20,000 withholds nothing.
	got := ComputeWithholding([]WithholdingLine{
		{IsService: true, Eligible: true, LineTotal: decimal.NewFromInt(20_000)},
	})
	assert.True(t, got.IsZero(), got.String())
}

func TestComputeWithholding_BelowThreshold(t *testing.T) {
	got := ComputeWithholding([]WithholdingLine{
		{IsService: true, Eligible: true, LineTotal: decimal.NewFromInt(5_000)},
	})
	assert.True(t, got.IsZero())
}

func TestComputeWithholding_OnlyEligibleServiceLinesCount(t *testing.T) {
	got := ComputeWithholding([]WithholdingLine{
		// Physical goods never enter the base, eligible or not.
		{IsService: false, Eligible: true, LineTotal: decimal.NewFromInt(500_000)},
		// Non-eligible services stay out too.
		{IsService: true, Eligible: false, LineTotal: decimal.NewFromInt(500_000)},
		{IsService: true, Eligible: true, LineTotal: decimal.NewFromInt(15_000)},
	})
	assert.True(t, got.IsZero(), "base of 15,000 is under the threshold")
}

func TestComputeWithholding_SumsAcrossLines(t *testing.T) {
	// 12,000 + 13,000 = 25,000 base → 1,625.
	got := ComputeWithholding([]WithholdingLine{
		{IsService: true, Eligible: true, LineTotal: decimal.NewFromInt(12_000)},
		{IsService: true, Eligible: true, LineTotal: decimal.NewFromInt(13_000)},
	})
	assert.True(t, decimal.NewFromInt(1_625).Equal(got), got.String())
}

func TestComputeWithholding_Rounds(t *testing.T) {
	// 20,001 × 0.065 = 1300.065 → 1300.07 (round half up, 2 decimals)
	got := ComputeWithholding([]WithholdingLine{
		{IsService: true, Eligible: true, LineTotal: decimal.NewFromInt(20_001)},
	})
	assert.Equal(t, "1300.07", got.StringFixed(2))
}
