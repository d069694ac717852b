package infra

import (
	"fmt"

	"numera/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that GORM
// cannot express (partial indexes for the reconciliation queries).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations creates/updates the schema. Also used by integration tests
// against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.DocumentSeries{},
		&model.SequenceCounter{},
		&model.FiscalDocument{},
		&model.DocumentLine{},
		&model.CashRegister{},
		&model.CashLedgerEntry{},
		&model.StockLedgerEntry{},
		&model.LedgerEffect{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Each statement is guarded by an existence check so re-running on an
// already-patched schema is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Partial index feeding the effect reconciliation cron: only failed
		// effects with a scheduled retry are ever scanned.
		{"partial index for retryable effects", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_effects_retryable') THEN
    CREATE INDEX idx_effects_retryable
        ON ledger_effects (next_retry_at)
        WHERE status = 'failed' AND next_retry_at IS NOT NULL;
  END IF;
END $$`},
		// Chronology lookups scan certified documents of one (series, type)
		// ordered by date; a partial index keeps drafts and cancellations out.
		{"partial index for chronology lookups", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_documents_chronology') THEN
    CREATE INDEX idx_documents_chronology
        ON fiscal_documents (series_id, type, date)
        WHERE is_certified = true;
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
