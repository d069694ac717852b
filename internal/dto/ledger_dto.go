package dto

import "github.com/shopspring/decimal"

type CashEntryResponse struct {
	DocumentNumber string          `json:"document_number"`
	EntryType      string          `json:"entry_type"`
	Method         *string         `json:"method,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Operator       string          `json:"operator"`
	Origin         string          `json:"origin"`
	CreatedAt      string          `json:"created_at"`
}

// CashLedgerResponse returns a register's balance alongside its entries so an
// operator can spot drift between the cached balance and the ledger sum.
type CashLedgerResponse struct {
	RegisterID string              `json:"register_id"`
	Name       string              `json:"name"`
	Balance    decimal.Decimal     `json:"balance"`
	LedgerSum  decimal.Decimal     `json:"ledger_sum"`
	Entries    []CashEntryResponse `json:"entries"`
}

type StockEntryResponse struct {
	DocumentNumber string          `json:"document_number"`
	Direction      string          `json:"direction"`
	Quantity       decimal.Decimal `json:"quantity"`
	Reason         string          `json:"reason"`
	CreatedAt      string          `json:"created_at"`
}

type StockLedgerResponse struct {
	ProductID string               `json:"product_id"`
	Entries   []StockEntryResponse `json:"entries"`
}

// EffectResponse exposes side-effect bookkeeping for a document
// (GET /v1/documents/:id/effects) so drift is visible, never silent.
type EffectResponse struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	LastError   *string `json:"last_error,omitempty"`
	NextRetryAt *string `json:"next_retry_at,omitempty"`
	AppliedAt   *string `json:"applied_at,omitempty"`
}
