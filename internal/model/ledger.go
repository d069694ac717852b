package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashRegister holds a running balance. The balance column is only ever
// touched through an atomic SQL increment; the audited truth is the sum of
// its ledger entries.
type CashRegister struct {
	ID      uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name    string          `gorm:"not null"`
	Balance decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	Active  bool            `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CashRegister) TableName() string { return "cash_registers" }

// CashLedgerEntry is an immutable event in the cash ledger.
// Entries are NEVER modified or deleted — corrections create inverse entries.
type CashLedgerEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RegisterID uuid.UUID `gorm:"type:uuid;not null;index"`
	// DocumentNumber is the formatted number of the originating document.
	DocumentNumber string `gorm:"type:varchar(40);not null;index"`
	// EntryType: "sale" | "refund" | "liquidation" | "purchase_payment"
	EntryType string          `gorm:"type:varchar(20);not null"`
	Method    *string         `gorm:"type:varchar(20)"`
	Amount    decimal.Decimal `gorm:"type:decimal(14,2);not null"` // signed
	Operator  string          `gorm:"type:varchar(80);not null"`
	Origin    string          `gorm:"type:varchar(40);not null"` // "certification" | "cancellation" | "liquidation"
	CreatedAt time.Time
}

func (CashLedgerEntry) TableName() string { return "cash_ledger_entries" }

// StockDirection is the side of a stock movement.
type StockDirection string

const (
	StockEntry StockDirection = "ENTRY"
	StockExit  StockDirection = "EXIT"
)

// Inverse returns the opposite direction, used when a corrective document
// reverses the original's stock effect.
func (d StockDirection) Inverse() StockDirection {
	if d == StockEntry {
		return StockExit
	}
	return StockEntry
}

// StockLedgerEntry is an immutable record of an inventory movement tied to a
// certified document.
type StockLedgerEntry struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	DocumentNumber string          `gorm:"type:varchar(40);not null;index"`
	Direction      StockDirection  `gorm:"type:varchar(5);not null"`
	Quantity       decimal.Decimal `gorm:"type:decimal(14,3);not null"`
	Reason         string          `gorm:"not null"`
	CreatedAt      time.Time
}

func (StockLedgerEntry) TableName() string { return "stock_ledger_entries" }

// EffectKind distinguishes ledger side effects.
type EffectKind string

const (
	EffectCash  EffectKind = "cash"
	EffectStock EffectKind = "stock"
)

// EffectStatus is the lifecycle of a ledger effect record.
type EffectStatus string

const (
	EffectPending EffectStatus = "pending"
	EffectApplied EffectStatus = "applied"
	EffectFailed  EffectStatus = "failed"
)

// LedgerEffect is one idempotent, independently retryable side effect derived
// from a certified document. Effects are written with the document so a
// reconciliation job can detect drift instead of silently losing failures.
type LedgerEffect struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Kind       EffectKind      `gorm:"type:varchar(10);not null"`
	Payload    json.RawMessage `gorm:"type:jsonb;not null"`
	Status     EffectStatus    `gorm:"type:varchar(10);not null;default:'pending';index"`
	Attempts   int             `gorm:"not null;default:0"`
	LastError  *string
	// NextRetryAt drives the reconciliation cron for failed effects.
	NextRetryAt *time.Time `gorm:"index"`
	AppliedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (LedgerEffect) TableName() string { return "ledger_effects" }

// CashEffectPayload is the serialized form of a cash ledger effect.
type CashEffectPayload struct {
	RegisterID     uuid.UUID       `json:"register_id"`
	DocumentNumber string          `json:"document_number"`
	EntryType      string          `json:"entry_type"`
	Method         *string         `json:"method,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Operator       string          `json:"operator"`
	Origin         string          `json:"origin"`
}

// StockEffectPayload is the serialized form of a stock ledger effect.
type StockEffectPayload struct {
	ProductID      uuid.UUID       `json:"product_id"`
	DocumentNumber string          `json:"document_number"`
	Direction      StockDirection  `json:"direction"`
	Quantity       decimal.Decimal `json:"quantity"`
	Reason         string          `json:"reason"`
}
