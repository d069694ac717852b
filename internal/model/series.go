package model

import (
	"time"

	"github.com/google/uuid"
)

// SeriesKind controls how numbering behaves for documents in the series.
// Manual series exist for backfilling/recovery: the operator supplies number
// and hash, and the chronology guard does not apply.
type SeriesKind string

const (
	SeriesNormal SeriesKind = "normal"
	SeriesManual SeriesKind = "manual"
	SeriesPOS    SeriesKind = "pos"
)

// DocumentSeries is a named numbering stream under which sequential numbers
// are issued per fiscal year.
type DocumentSeries struct {
	ID     uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code   string     `gorm:"type:varchar(20);not null;uniqueIndex:idx_series_code_year"`
	Year   int        `gorm:"not null;uniqueIndex:idx_series_code_year"`
	Kind   SeriesKind `gorm:"type:varchar(10);not null;default:'normal'"`
	Active bool       `gorm:"not null;default:true"`

	// Counters is a read-mostly view for display. The durable source of truth
	// is the sequence_counters row, mutated only by SeriesRepository.Allocate.
	Counters []SequenceCounter `gorm:"foreignKey:SeriesID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DocumentSeries) TableName() string { return "document_series" }

// SequenceCounter is the durable monotonic counter per (series, prefix, year).
// LastValue only ever moves forward, through a single conditional upsert.
type SequenceCounter struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SeriesID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_counter_key"`
	Prefix    string    `gorm:"type:varchar(4);not null;uniqueIndex:idx_counter_key"`
	Year      int       `gorm:"not null;uniqueIndex:idx_counter_key"`
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (SequenceCounter) TableName() string { return "sequence_counters" }
