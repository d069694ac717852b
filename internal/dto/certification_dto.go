package dto

import (
	"numera/internal/fiscal"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LineRequest struct {
	Description string `json:"description" validate:"required"`
	// ProductID is set for physical products only; service lines leave it empty.
	ProductID           *string         `json:"product_id"           validate:"omitempty,uuid"`
	IsService           bool            `json:"is_service"`
	WithholdingEligible bool            `json:"withholding_eligible"`
	Quantity            decimal.Decimal `json:"quantity"             validate:"required"`
	UnitPrice           decimal.Decimal `json:"unit_price"           validate:"required"`
	DiscountPct         decimal.Decimal `json:"discount_pct"`
	TaxRate             decimal.Decimal `json:"tax_rate"`
}

// CertifyRequest is the draft submitted for certification
// (POST /v1/documents/certify).
type CertifyRequest struct {
	Type     string `json:"type"      validate:"required,oneof=FT FR RC NC ND PP"`
	SeriesID string `json:"series_id" validate:"required,uuid"`
	// Date is the drafted issue date (YYYY-MM-DD). For non-manual series it is
	// normalized to the certification instant; manual series keep it as given.
	Date    string  `json:"date"     validate:"omitempty,datetime=2006-01-02"`
	DueDate *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`

	CustomerName  string `json:"customer_name"   validate:"required"`
	CustomerTaxID string `json:"customer_tax_id" validate:"required"`
	SupplierTaxID string `json:"supplier_tax_id" validate:"required"`

	Currency       string          `json:"currency"        validate:"omitempty,len=3"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`
	GlobalDiscount decimal.Decimal `json:"global_discount"`

	// PaymentMethod + RegisterID trigger the cash ledger side effect.
	PaymentMethod *string `json:"payment_method" validate:"omitempty,oneof=cash card transfer"`
	RegisterID    *string `json:"register_id"    validate:"omitempty,uuid"`
	Operator      string  `json:"operator"       validate:"required"`

	Lines []LineRequest `json:"lines" validate:"required,min=1,dive"`

	// Manual series only: the operator supplies number and hash directly.
	ManualNumber *string `json:"manual_number"`
	ManualHash   *string `json:"manual_hash"`
}

type CancelRequest struct {
	Reason   string `json:"reason"   validate:"required,min=5"`
	Operator string `json:"operator" validate:"required"`
}

// LiquidateRequest registers a partial or full payment against an invoice
// (POST /v1/documents/:id/liquidate).
type LiquidateRequest struct {
	Amount     decimal.Decimal `json:"amount"      validate:"required"`
	Method     string          `json:"method"      validate:"required,oneof=cash card transfer"`
	RegisterID string          `json:"register_id" validate:"required,uuid"`
	Operator   string          `json:"operator"    validate:"required"`
}

// ─── Filter / List ───────────────────────────────────────────────────────────

// DocumentFilter is bound from the query string of GET /v1/documents.
type DocumentFilter struct {
	Type      string `form:"type"`
	SeriesID  string `form:"series_id"`
	Status    string `form:"status"` // pending | partially_paid | paid | cancelled | all
	Certified *bool  `form:"certified"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type DocumentListResponse struct {
	Data  []DocumentResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LineResponse struct {
	Description         string          `json:"description"`
	ProductID           *string         `json:"product_id,omitempty"`
	IsService           bool            `json:"is_service"`
	WithholdingEligible bool            `json:"withholding_eligible"`
	Quantity            decimal.Decimal `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	DiscountPct         decimal.Decimal `json:"discount_pct"`
	TaxRate             decimal.Decimal `json:"tax_rate"`
	LineTotal           decimal.Decimal `json:"line_total"`
}

type DocumentResponse struct {
	ID                 string          `json:"id"`
	Type               string          `json:"type"`
	SeriesID           string          `json:"series_id"`
	Number             *string         `json:"number"`
	Date               string          `json:"date"`
	DueDate            *string         `json:"due_date,omitempty"`
	CustomerName       string          `json:"customer_name"`
	CustomerTaxID      string          `json:"customer_tax_id"`
	Currency           string          `json:"currency"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	GlobalDiscount     decimal.Decimal `json:"global_discount"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	WithholdingAmount  decimal.Decimal `json:"withholding_amount"`
	Total              decimal.Decimal `json:"total"`
	PaidAmount         decimal.Decimal `json:"paid_amount"`
	IsCertified        bool            `json:"is_certified"`
	Hash               *string         `json:"hash"`
	Status             string          `json:"status"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	CorrectiveID       *string         `json:"corrective_id,omitempty"`
	SourceInvoiceID    *string         `json:"source_invoice_id,omitempty"`
	Lines              []LineResponse  `json:"lines"`
	CreatedAt          string          `json:"created_at"`
}

// CertifyResponse pairs the certified document with any side-effect warnings.
// Warnings never mean the certification failed — the document is numbered,
// hashed and persisted; the named ledger effects will be retried.
type CertifyResponse struct {
	Document DocumentResponse           `json:"document"`
	Warnings []fiscal.SideEffectWarning `json:"warnings,omitempty"`
}

type CancelResponse struct {
	Original   DocumentResponse           `json:"original"`
	Corrective DocumentResponse           `json:"corrective"`
	Warnings   []fiscal.SideEffectWarning `json:"warnings,omitempty"`
}

type LiquidateResponse struct {
	Invoice  DocumentResponse           `json:"invoice"`
	Receipt  DocumentResponse           `json:"receipt"`
	Warnings []fiscal.SideEffectWarning `json:"warnings,omitempty"`
}
