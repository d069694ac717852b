package repository

import (
	"context"
	"time"

	"numera/internal/dto"
	"numera/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, d *model.FiscalDocument) error
	Save(ctx context.Context, tx *gorm.DB, d *model.FiscalDocument) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error)
	// ExistsByNumber is the pre-persist duplicate guard: it defends against a
	// prior crash between allocation and persistence.
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	// LatestCertifiedDate feeds the chronology guard. Returns nil when no
	// document of that (series, type) has been certified yet.
	LatestCertifiedDate(ctx context.Context, seriesID uuid.UUID, docType model.DocumentType) (*time.Time, error)
	List(ctx context.Context, filter dto.DocumentFilter) ([]model.FiscalDocument, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type documentRepo struct{ db *gorm.DB }

func NewDocumentRepository(db *gorm.DB) DocumentRepository { return &documentRepo{db: db} }

func (r *documentRepo) DB() *gorm.DB { return r.db }

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, d *model.FiscalDocument) error {
	return tx.WithContext(ctx).Create(d).Error
}

func (r *documentRepo) Save(ctx context.Context, tx *gorm.DB, d *model.FiscalDocument) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(d).Error
}

func (r *documentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error) {
	var d model.FiscalDocument
	err := r.db.WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&d, id).Error
	return &d, err
}

func (r *documentRepo) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.FiscalDocument{}).
		Where("number = ?", number).Count(&count).Error
	return count > 0, err
}

func (r *documentRepo) LatestCertifiedDate(ctx context.Context, seriesID uuid.UUID, docType model.DocumentType) (*time.Time, error) {
	var d model.FiscalDocument
	err := r.db.WithContext(ctx).
		Where("series_id = ? AND type = ? AND is_certified = true", seriesID, docType).
		Order("date DESC").
		First(&d).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d.Date, nil
}

func (r *documentRepo) List(ctx context.Context, filter dto.DocumentFilter) ([]model.FiscalDocument, int64, error) {
	var docs []model.FiscalDocument
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.FiscalDocument{})

	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.SeriesID != "" {
		q = q.Where("series_id = ?", filter.SeriesID)
	}
	if filter.Status != "" && filter.Status != "all" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Certified != nil {
		q = q.Where("is_certified = ?", *filter.Certified)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Lines").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&docs).Error

	return docs, total, err
}
