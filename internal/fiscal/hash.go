package fiscal

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FingerprintInput enumerates the immutable fiscal fields covered by the
// content hash, in the strict concatenation order below. The hash is computed
// exactly once, at certification time; recomputing or mutating it afterwards
// is a protocol violation.
type FingerprintInput struct {
	Type          string
	Number        string
	Date          time.Time
	CustomerTaxID string
	SupplierTaxID string
	LineTotals    []decimal.Decimal
	TaxAmount     decimal.Decimal
	Withholding   decimal.Decimal
	Total         decimal.Decimal
}

// Fingerprint computes the deterministic SHA-256 content hash of a document.
// Amounts are rendered with two fixed decimals and no thousands separator so
// identical fiscal content always yields the identical hex digest.
func Fingerprint(in FingerprintInput) string {
	var b strings.Builder
	b.WriteString(in.Type)
	b.WriteByte(';')
	b.WriteString(in.Number)
	b.WriteByte(';')
	b.WriteString(in.Date.Format("2006-01-02"))
	b.WriteByte(';')
	b.WriteString(in.CustomerTaxID)
	b.WriteByte(';')
	b.WriteString(in.SupplierTaxID)
	for _, lt := range in.LineTotals {
		b.WriteByte(';')
		b.WriteString(formatAmount(lt))
	}
	b.WriteByte(';')
	b.WriteString(formatAmount(in.TaxAmount))
	b.WriteByte(';')
	b.WriteString(formatAmount(in.Withholding))
	b.WriteByte(';')
	b.WriteString(formatAmount(in.Total))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// formatAmount renders amounts for the hash string: point decimal, two fixed
// decimals (e.g. 1500.00).
func formatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}
