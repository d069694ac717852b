package repository

import (
	"context"

	"numera/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SeriesRepository interface {
	Create(ctx context.Context, s *model.DocumentSeries) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.DocumentSeries, error)
	List(ctx context.Context) ([]model.DocumentSeries, error)
	// Counters returns the read-mostly view for display; never a source for
	// allocation decisions.
	Counters(ctx context.Context, seriesID uuid.UUID) ([]model.SequenceCounter, error)
	// Allocate issues the next integer for (series, prefix, year). It is a
	// single conditional upsert at the storage layer, so two concurrent
	// callers can never observe the same value.
	Allocate(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, prefix string, year int) (int64, error)
}

type seriesRepo struct{ db *gorm.DB }

func NewSeriesRepository(db *gorm.DB) SeriesRepository { return &seriesRepo{db: db} }

func (r *seriesRepo) Create(ctx context.Context, s *model.DocumentSeries) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *seriesRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.DocumentSeries, error) {
	var s model.DocumentSeries
	err := r.db.WithContext(ctx).Preload("Counters").First(&s, id).Error
	return &s, err
}

func (r *seriesRepo) List(ctx context.Context) ([]model.DocumentSeries, error) {
	var series []model.DocumentSeries
	err := r.db.WithContext(ctx).Preload("Counters").
		Order("year DESC, code ASC").Find(&series).Error
	return series, err
}

func (r *seriesRepo) Counters(ctx context.Context, seriesID uuid.UUID) ([]model.SequenceCounter, error) {
	var counters []model.SequenceCounter
	err := r.db.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Order("prefix ASC, year DESC").
		Find(&counters).Error
	return counters, err
}

func (r *seriesRepo) Allocate(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, prefix string, year int) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	// Atomic read-modify-write owned by PostgreSQL: the upsert either seeds
	// the counter at 1 or increments it, and RETURNING hands back the issued
	// value. No client-side fetch-then-increment ever happens.
	var next int64
	err := tx.WithContext(ctx).Raw(`
		INSERT INTO sequence_counters (series_id, prefix, year, last_value, updated_at)
		VALUES (?, ?, ?, 1, NOW())
		ON CONFLICT (series_id, prefix, year)
		DO UPDATE SET last_value = sequence_counters.last_value + 1, updated_at = NOW()
		RETURNING last_value
	`, seriesID, prefix, year).Scan(&next).Error
	return next, err
}
