package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentType is the fiscal class of a document. The value doubles as the
// numbering prefix printed on the formatted number ("FT T2024/1").
type DocumentType string

const (
	DocInvoice     DocumentType = "FT" // standard invoice
	DocCashInvoice DocumentType = "FR" // invoice-receipt, settled at issue
	DocReceipt     DocumentType = "RC" // payment receipt (liquidation)
	DocCreditNote  DocumentType = "NC"
	DocDebitNote   DocumentType = "ND"
	DocProforma    DocumentType = "PP"
)

// Prefix returns the series prefix used for number allocation.
func (t DocumentType) Prefix() string { return string(t) }

// Valid reports whether t belongs to the closed set of document types.
func (t DocumentType) Valid() bool {
	switch t {
	case DocInvoice, DocCashInvoice, DocReceipt, DocCreditNote, DocDebitNote, DocProforma:
		return true
	}
	return false
}

// IsSale reports whether the document increases revenue: sales exit stock and
// add cash. Credit notes do the inverse; proformas and receipts move no stock.
func (t DocumentType) IsSale() bool {
	return t == DocInvoice || t == DocCashInvoice || t == DocDebitNote
}

// MovesStock reports whether certifying this type produces stock ledger entries.
func (t DocumentType) MovesStock() bool {
	return t == DocInvoice || t == DocCashInvoice || t == DocCreditNote || t == DocDebitNote
}

// CorrectiveType returns the type of the document that rectifies t on
// cancellation: a credit note reverses everything except another credit note,
// which is reversed by a debit note.
func (t DocumentType) CorrectiveType() DocumentType {
	if t == DocCreditNote {
		return DocDebitNote
	}
	return DocCreditNote
}

// DocumentStatus is the settlement state of a certified document.
type DocumentStatus string

const (
	StatusPending       DocumentStatus = "pending"
	StatusPartiallyPaid DocumentStatus = "partially_paid"
	StatusPaid          DocumentStatus = "paid"
	StatusCancelled     DocumentStatus = "cancelled"
)

// FiscalDocument is the central entity: a draft until certification, then an
// immutable legally numbered record. Number, Sequence and Hash are assigned
// exactly once by the certification workflow and never recomputed.
type FiscalDocument struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`

	Type       DocumentType `gorm:"type:varchar(4);not null;index:idx_documents_series_type"`
	SeriesID   uuid.UUID    `gorm:"type:uuid;not null;index:idx_documents_series_type"`
	SeriesCode string       `gorm:"type:varchar(20);not null"`
	Year       int          `gorm:"not null"`

	// Sequence is the allocated integer; Number the canonical formatted form.
	// Both stay empty until the workflow reaches Certified.
	Sequence int64   `gorm:"not null;default:0"`
	Number   *string `gorm:"type:varchar(40);uniqueIndex"`

	Date           time.Time  `gorm:"not null"`
	AccountingDate time.Time  `gorm:"not null"`
	DueDate        *time.Time

	CustomerName  string `gorm:"not null"`
	CustomerTaxID string `gorm:"column:customer_tax_id;not null"`
	SupplierTaxID string `gorm:"column:supplier_tax_id;not null"`

	Currency     string          `gorm:"type:varchar(3);not null;default:'AOA'"`
	ExchangeRate decimal.Decimal `gorm:"type:decimal(20,6);not null;default:1"`

	Subtotal          decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	GlobalDiscount    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	TaxAmount         decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	WithholdingAmount decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	Total             decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	PaidAmount        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`

	IsCertified bool    `gorm:"not null;default:false"`
	Hash        *string `gorm:"type:varchar(128)"`

	Status             DocumentStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	CancellationReason *string
	// CorrectiveID points at the NC/ND that rectified this document;
	// SourceInvoiceID points back from a corrective or derived receipt.
	CorrectiveID    *uuid.UUID `gorm:"type:uuid"`
	SourceInvoiceID *uuid.UUID `gorm:"type:uuid;index"`

	// PaymentMethod + RegisterID enable the cash ledger side effect.
	PaymentMethod *string    `gorm:"type:varchar(20)"`
	RegisterID    *uuid.UUID `gorm:"type:uuid"`
	Operator      string     `gorm:"type:varchar(80);not null;default:''"`

	Lines []DocumentLine `gorm:"foreignKey:DocumentID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FiscalDocument) TableName() string { return "fiscal_documents" }

// DocumentLine is one ordered item of a FiscalDocument.
type DocumentLine struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index"`
	Position   int       `gorm:"not null"`

	Description string `gorm:"not null"`
	// ProductID is set only for physical products; service lines leave it nil.
	ProductID *uuid.UUID `gorm:"type:uuid;index"`
	IsService bool       `gorm:"not null;default:false"`
	// WithholdingEligible marks service lines subject to withholding at source.
	WithholdingEligible bool `gorm:"not null;default:false"`

	Quantity    decimal.Decimal `gorm:"type:decimal(14,3);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	DiscountPct decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(14,2);not null"`

	CreatedAt time.Time
}

func (DocumentLine) TableName() string { return "document_lines" }
