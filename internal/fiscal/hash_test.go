package fiscal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func sampleInput() FingerprintInput {
	return FingerprintInput{
		Type:          "FT",
		Number:        "FT T2024/1",
		Date:          time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		CustomerTaxID: "5417123456",
		SupplierTaxID: "5401999888",
		LineTotals: []decimal.Decimal{
			decimal.NewFromInt(1500),
			decimal.RequireFromString("249.90"),
		},
		TaxAmount:   decimal.RequireFromString("244.99"),
		Withholding: decimal.Zero,
		Total:       decimal.RequireFromString("1994.89"),
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint(sampleInput())
	b := Fingerprint(sampleInput())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // sha-256 hex
}

func TestFingerprint_TimeOfDayIrrelevant(t *testing.T) {
	in := sampleInput()
	morning := Fingerprint(in)
	in.Date = time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)
	evening := Fingerprint(in)
	assert.Equal(t, morning, evening, "hash covers the date, not the instant")
}

func TestFingerprint_AmountScaleInsensitive(t *testing.T) {
	in := sampleInput()
	a := Fingerprint(in)
	// 1500 and 1500.00 are the same fiscal amount and must hash identically.
	in.LineTotals[0] = decimal.RequireFromString("1500.00")
	b := Fingerprint(in)
	assert.Equal(t, a, b)
}

func TestFingerprint_SensitiveToEveryField(t *testing.T) {
	base := Fingerprint(sampleInput())

	mutations := []func(*FingerprintInput){
		func(in *FingerprintInput) { in.Type = "FR" },
		func(in *FingerprintInput) { in.Number = "FT T2024/2" },
		func(in *FingerprintInput) { in.Date = in.Date.AddDate(0, 0, 1) },
		func(in *FingerprintInput) { in.CustomerTaxID = "5417000000" },
		func(in *FingerprintInput) { in.SupplierTaxID = "5401000000" },
		func(in *FingerprintInput) { in.LineTotals[0] = decimal.NewFromInt(1501) },
		func(in *FingerprintInput) { in.LineTotals = in.LineTotals[:1] },
		func(in *FingerprintInput) { in.TaxAmount = decimal.NewFromInt(245) },
		func(in *FingerprintInput) { in.Withholding = decimal.NewFromInt(10) },
		func(in *FingerprintInput) { in.Total = decimal.NewFromInt(2000) },
	}
	for i, mutate := range mutations {
		in := sampleInput()
		mutate(&in)
		assert.NotEqual(t, base, Fingerprint(in), "mutation %d must change the hash", i)
	}
}
