package repository

import (
	"context"
	"time"

	"numera/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LedgerRepository interface {
	// Effect records — the saga bookkeeping around the append-only ledgers.
	CreateEffects(ctx context.Context, tx *gorm.DB, effects []model.LedgerEffect) error
	FindEffect(ctx context.Context, id uuid.UUID) (*model.LedgerEffect, error)
	EffectsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.LedgerEffect, error)
	// MarkEffectApplied flips pending/failed → applied inside tx. Returns
	// false when the effect was already applied (idempotent re-delivery).
	MarkEffectApplied(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	MarkEffectFailed(ctx context.Context, id uuid.UUID, cause string, nextRetry *time.Time) error
	// ListRetryableEffects feeds the reconciliation cron.
	ListRetryableEffects(ctx context.Context, before time.Time, limit int) ([]model.LedgerEffect, error)

	// Append-only ledgers.
	AppendCashEntry(ctx context.Context, tx *gorm.DB, e *model.CashLedgerEntry) error
	AppendStockEntry(ctx context.Context, tx *gorm.DB, e *model.StockLedgerEntry) error
	ListCashEntries(ctx context.Context, registerID uuid.UUID) ([]model.CashLedgerEntry, error)
	ListStockEntries(ctx context.Context, productID uuid.UUID) ([]model.StockLedgerEntry, error)

	// IncrementRegisterBalance is an atomic SQL increment — never a
	// read-then-write of the cached balance column.
	IncrementRegisterBalance(ctx context.Context, tx *gorm.DB, registerID uuid.UUID, delta decimal.Decimal) error
	FindRegister(ctx context.Context, id uuid.UUID) (*model.CashRegister, error)

	DB() *gorm.DB
}

type ledgerRepo struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepo{db: db} }

func (r *ledgerRepo) DB() *gorm.DB { return r.db }

func (r *ledgerRepo) orDB(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *ledgerRepo) CreateEffects(ctx context.Context, tx *gorm.DB, effects []model.LedgerEffect) error {
	if len(effects) == 0 {
		return nil
	}
	return r.orDB(tx).WithContext(ctx).Create(&effects).Error
}

func (r *ledgerRepo) FindEffect(ctx context.Context, id uuid.UUID) (*model.LedgerEffect, error) {
	var e model.LedgerEffect
	err := r.db.WithContext(ctx).First(&e, id).Error
	return &e, err
}

func (r *ledgerRepo) EffectsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.LedgerEffect, error) {
	var effects []model.LedgerEffect
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&effects).Error
	return effects, err
}

func (r *ledgerRepo) MarkEffectApplied(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	now := time.Now()
	res := r.orDB(tx).WithContext(ctx).Model(&model.LedgerEffect{}).
		Where("id = ? AND status <> ?", id, model.EffectApplied).
		Updates(map[string]interface{}{
			"status":        model.EffectApplied,
			"applied_at":    now,
			"last_error":    nil,
			"next_retry_at": nil,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *ledgerRepo) MarkEffectFailed(ctx context.Context, id uuid.UUID, cause string, nextRetry *time.Time) error {
	return r.db.WithContext(ctx).Model(&model.LedgerEffect{}).
		Where("id = ? AND status <> ?", id, model.EffectApplied).
		Updates(map[string]interface{}{
			"status":        model.EffectFailed,
			"attempts":      gorm.Expr("attempts + 1"),
			"last_error":    cause,
			"next_retry_at": nextRetry,
		}).Error
}

func (r *ledgerRepo) ListRetryableEffects(ctx context.Context, before time.Time, limit int) ([]model.LedgerEffect, error) {
	var effects []model.LedgerEffect
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", model.EffectFailed, before).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&effects).Error
	return effects, err
}

func (r *ledgerRepo) AppendCashEntry(ctx context.Context, tx *gorm.DB, e *model.CashLedgerEntry) error {
	return r.orDB(tx).WithContext(ctx).Create(e).Error
}

func (r *ledgerRepo) AppendStockEntry(ctx context.Context, tx *gorm.DB, e *model.StockLedgerEntry) error {
	return r.orDB(tx).WithContext(ctx).Create(e).Error
}

func (r *ledgerRepo) ListCashEntries(ctx context.Context, registerID uuid.UUID) ([]model.CashLedgerEntry, error) {
	var entries []model.CashLedgerEntry
	err := r.db.WithContext(ctx).
		Where("register_id = ?", registerID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *ledgerRepo) ListStockEntries(ctx context.Context, productID uuid.UUID) ([]model.StockLedgerEntry, error) {
	var entries []model.StockLedgerEntry
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *ledgerRepo) IncrementRegisterBalance(ctx context.Context, tx *gorm.DB, registerID uuid.UUID, delta decimal.Decimal) error {
	return r.orDB(tx).WithContext(ctx).Model(&model.CashRegister{}).
		Where("id = ?", registerID).
		Update("balance", gorm.Expr("balance + ?", delta)).Error
}

func (r *ledgerRepo) FindRegister(ctx context.Context, id uuid.UUID) (*model.CashRegister, error) {
	var reg model.CashRegister
	err := r.db.WithContext(ctx).First(&reg, id).Error
	return &reg, err
}
