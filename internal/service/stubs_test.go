package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"numera/internal/dto"
	"numera/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory DocumentRepository ─────────────────────────────────────────────

type stubDocRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*model.FiscalDocument
	// preExisting simulates numbers stranded by a prior crash.
	preExisting map[string]bool
	saveErr     error
}

func newStubDocRepo() *stubDocRepo {
	return &stubDocRepo{
		docs:        make(map[uuid.UUID]*model.FiscalDocument),
		preExisting: make(map[string]bool),
	}
}

func (r *stubDocRepo) Create(_ context.Context, _ *gorm.DB, d *model.FiscalDocument) error {
	return r.Save(context.Background(), nil, d)
}

func (r *stubDocRepo) Save(_ context.Context, _ *gorm.DB, d *model.FiscalDocument) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.docs[d.ID] = &cp
	return nil
}

func (r *stubDocRepo) FindByID(_ context.Context, id uuid.UUID) (*model.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *d
	return &cp, nil
}

func (r *stubDocRepo) ExistsByNumber(_ context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.preExisting[number] {
		return true, nil
	}
	for _, d := range r.docs {
		if d.Number != nil && *d.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubDocRepo) LatestCertifiedDate(_ context.Context, seriesID uuid.UUID, docType model.DocumentType) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *time.Time
	for _, d := range r.docs {
		if d.SeriesID == seriesID && d.Type == docType && d.IsCertified {
			if latest == nil || d.Date.After(*latest) {
				t := d.Date
				latest = &t
			}
		}
	}
	return latest, nil
}

func (r *stubDocRepo) List(_ context.Context, filter dto.DocumentFilter) ([]model.FiscalDocument, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FiscalDocument
	for _, d := range r.docs {
		if filter.Type != "" && string(d.Type) != filter.Type {
			continue
		}
		if filter.Status != "" && filter.Status != "all" && string(d.Status) != filter.Status {
			continue
		}
		out = append(out, *d)
	}
	return out, int64(len(out)), nil
}

func (r *stubDocRepo) DB() *gorm.DB { return nil }

// ── In-memory SeriesRepository ───────────────────────────────────────────────

type counterKey struct {
	seriesID uuid.UUID
	prefix   string
	year     int
}

type stubSeriesRepo struct {
	mu       sync.Mutex
	series   map[uuid.UUID]*model.DocumentSeries
	counters map[counterKey]int64
	allocErr error
}

func newStubSeriesRepo() *stubSeriesRepo {
	return &stubSeriesRepo{
		series:   make(map[uuid.UUID]*model.DocumentSeries),
		counters: make(map[counterKey]int64),
	}
}

func (r *stubSeriesRepo) add(s *model.DocumentSeries) *model.DocumentSeries {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.series[s.ID] = s
	return s
}

func (r *stubSeriesRepo) Create(_ context.Context, s *model.DocumentSeries) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(s)
	return nil
}

func (r *stubSeriesRepo) FindByID(_ context.Context, id uuid.UUID) (*model.DocumentSeries, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func (r *stubSeriesRepo) List(_ context.Context) ([]model.DocumentSeries, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DocumentSeries
	for _, s := range r.series {
		out = append(out, *s)
	}
	return out, nil
}

func (r *stubSeriesRepo) Counters(_ context.Context, seriesID uuid.UUID) ([]model.SequenceCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SequenceCounter
	for key, v := range r.counters {
		if key.seriesID != seriesID {
			continue
		}
		out = append(out, model.SequenceCounter{SeriesID: key.seriesID, Prefix: key.prefix, Year: key.year, LastValue: v})
	}
	return out, nil
}

func (r *stubSeriesRepo) Allocate(_ context.Context, _ *gorm.DB, seriesID uuid.UUID, prefix string, year int) (int64, error) {
	if r.allocErr != nil {
		return 0, r.allocErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := counterKey{seriesID: seriesID, prefix: prefix, year: year}
	r.counters[key]++
	return r.counters[key], nil
}

// ── In-memory LedgerRepository ───────────────────────────────────────────────

type stubLedgerRepo struct {
	mu           sync.Mutex
	effects      map[uuid.UUID]*model.LedgerEffect
	cashEntries  []model.CashLedgerEntry
	stockEntries []model.StockLedgerEntry
	registers    map[uuid.UUID]*model.CashRegister
	// applyErr forces effect application to fail before any mutation, the way
	// a rolled-back transaction would look from outside.
	applyErr error
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{
		effects:   make(map[uuid.UUID]*model.LedgerEffect),
		registers: make(map[uuid.UUID]*model.CashRegister),
	}
}

func (r *stubLedgerRepo) addRegister(name string) *model.CashRegister {
	reg := &model.CashRegister{ID: uuid.New(), Name: name, Balance: decimal.Zero, Active: true}
	r.registers[reg.ID] = reg
	return reg
}

func (r *stubLedgerRepo) CreateEffects(_ context.Context, _ *gorm.DB, effects []model.LedgerEffect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range effects {
		cp := effects[i]
		r.effects[cp.ID] = &cp
	}
	return nil
}

func (r *stubLedgerRepo) FindEffect(_ context.Context, id uuid.UUID) (*model.LedgerEffect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.effects[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *e
	return &cp, nil
}

func (r *stubLedgerRepo) EffectsByDocument(_ context.Context, documentID uuid.UUID) ([]model.LedgerEffect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LedgerEffect
	for _, e := range r.effects {
		if e.DocumentID == documentID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *stubLedgerRepo) MarkEffectApplied(_ context.Context, _ *gorm.DB, id uuid.UUID) (bool, error) {
	if r.applyErr != nil {
		return false, r.applyErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.effects[id]
	if !ok || e.Status == model.EffectApplied {
		return false, nil
	}
	now := time.Now()
	e.Status = model.EffectApplied
	e.AppliedAt = &now
	e.LastError = nil
	e.NextRetryAt = nil
	return true, nil
}

func (r *stubLedgerRepo) MarkEffectFailed(_ context.Context, id uuid.UUID, cause string, nextRetry *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.effects[id]
	if !ok {
		return errors.New("not found")
	}
	if e.Status == model.EffectApplied {
		return nil
	}
	e.Status = model.EffectFailed
	e.Attempts++
	e.LastError = &cause
	e.NextRetryAt = nextRetry
	return nil
}

func (r *stubLedgerRepo) ListRetryableEffects(_ context.Context, before time.Time, limit int) ([]model.LedgerEffect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LedgerEffect
	for _, e := range r.effects {
		if e.Status == model.EffectFailed && e.NextRetryAt != nil && !e.NextRetryAt.After(before) {
			out = append(out, *e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *stubLedgerRepo) AppendCashEntry(_ context.Context, _ *gorm.DB, e *model.CashLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	r.cashEntries = append(r.cashEntries, *e)
	return nil
}

func (r *stubLedgerRepo) AppendStockEntry(_ context.Context, _ *gorm.DB, e *model.StockLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	r.stockEntries = append(r.stockEntries, *e)
	return nil
}

func (r *stubLedgerRepo) ListCashEntries(_ context.Context, registerID uuid.UUID) ([]model.CashLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.CashLedgerEntry
	for _, e := range r.cashEntries {
		if e.RegisterID == registerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubLedgerRepo) ListStockEntries(_ context.Context, productID uuid.UUID) ([]model.StockLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockLedgerEntry
	for _, e := range r.stockEntries {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubLedgerRepo) IncrementRegisterBalance(_ context.Context, _ *gorm.DB, registerID uuid.UUID, delta decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registers[registerID]
	if !ok {
		return errors.New("register not found")
	}
	reg.Balance = reg.Balance.Add(delta)
	return nil
}

func (r *stubLedgerRepo) FindRegister(_ context.Context, id uuid.UUID) (*model.CashRegister, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registers[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *reg
	return &cp, nil
}

func (r *stubLedgerRepo) DB() *gorm.DB { return nil }
