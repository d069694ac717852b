package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"numera/internal/dto"
	"numera/internal/fiscal"
	"numera/internal/infra"
	"numera/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	docs     *stubDocRepo
	series   *stubSeriesRepo
	ledger   *stubLedgerRepo
	svc      *certificationService
	seriesID uuid.UUID
	register *model.CashRegister
}

func newTestEnv(t *testing.T, kind model.SeriesKind) *testEnv {
	t.Helper()
	docs := newStubDocRepo()
	seriesRepo := newStubSeriesRepo()
	ledgerRepo := newStubLedgerRepo()
	reg := ledgerRepo.addRegister("till-1")

	s := seriesRepo.add(&model.DocumentSeries{Code: "T", Year: 2024, Kind: kind, Active: true})

	ledgerSvc := NewLedgerService(ledgerRepo, infra.NewCircuitBreaker(infra.DefaultCBConfig()))
	certSvc := NewCertificationService(docs, seriesRepo, ledgerRepo, ledgerSvc, nil).(*certificationService)
	certSvc.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

	return &testEnv{
		docs:     docs,
		series:   seriesRepo,
		ledger:   ledgerRepo,
		svc:      certSvc,
		seriesID: s.ID,
		register: reg,
	}
}

func (e *testEnv) baseRequest() dto.CertifyRequest {
	return dto.CertifyRequest{
		Type:          "FT",
		SeriesID:      e.seriesID.String(),
		CustomerName:  "Acme Lda",
		CustomerTaxID: "5417123456",
		SupplierTaxID: "5401999888",
		Operator:      "ana",
		Lines: []dto.LineRequest{{
			Description: "Consulting",
			IsService:   true,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromInt(1500),
		}},
	}
}

func TestCertify_AssignsNumberHashAndSequence(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)

	resp, err := env.svc.Certify(context.Background(), env.baseRequest())
	require.NoError(t, err)
	require.NotNil(t, resp.Document.Number)

	assert.Equal(t, "FT T2024/1", *resp.Document.Number)
	assert.True(t, resp.Document.IsCertified)
	require.NotNil(t, resp.Document.Hash)
	assert.Len(t, *resp.Document.Hash, 64)
	assert.Equal(t, "2024-03-15", resp.Document.Date, "date is normalized to the certification instant")
	assert.Empty(t, resp.Warnings)

	// The counter is per (series, prefix, year): the next FT gets /2.
	resp2, err := env.svc.Certify(context.Background(), env.baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "FT T2024/2", *resp2.Document.Number)

	// A different type starts its own stream at /1.
	reqNC := env.baseRequest()
	reqNC.Type = "NC"
	resp3, err := env.svc.Certify(context.Background(), reqNC)
	require.NoError(t, err)
	assert.Equal(t, "NC T2024/1", *resp3.Document.Number)
}

func TestCertify_WithholdingOnEligibleServices(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)

	req := env.baseRequest()
	req.Lines = []dto.LineRequest{{
		Description:         "Engineering services",
		IsService:           true,
		WithholdingEligible: true,
		Quantity:            decimal.NewFromInt(1),
		UnitPrice:           decimal.NewFromInt(100_000),
	}}

	resp, err := env.svc.Certify(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "6500", resp.Document.WithholdingAmount.String())
	assert.Equal(t, "93500", resp.Document.Total.String())
}

func TestCertify_TotalsWithTaxAndGlobalDiscount(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)

	req := env.baseRequest()
	req.GlobalDiscount = decimal.NewFromInt(100)
	req.Lines = []dto.LineRequest{{
		Description: "Widget",
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.NewFromInt(1000),
		TaxRate:     decimal.NewFromInt(14),
	}}

	resp, err := env.svc.Certify(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "2000", resp.Document.Subtotal.String())
	assert.Equal(t, "280", resp.Document.TaxAmount.String())
	// total = subtotal − global discount + tax − withholding
	assert.Equal(t, "2180", resp.Document.Total.String())
}

func TestCertify_LineDiscountPercent(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)

	req := env.baseRequest()
	req.Lines = []dto.LineRequest{{
		Description: "Discounted widget",
		Quantity:    decimal.NewFromInt(4),
		UnitPrice:   decimal.RequireFromString("249.90"),
		DiscountPct: decimal.NewFromInt(10),
	}}

	resp, err := env.svc.Certify(context.Background(), req)
	require.NoError(t, err)
	// 4 × 249.90 × 0.9 = 899.64
	assert.Equal(t, "899.64", resp.Document.Lines[0].LineTotal.String())
}

func TestCertify_ChronologyGuard(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)

	// An FT certified on 2024-06-01 already exists in the series.
	existing := &model.FiscalDocument{
		ID:          uuid.New(),
		Type:        model.DocInvoice,
		SeriesID:    env.seriesID,
		Date:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		IsCertified: true,
	}
	require.NoError(t, env.docs.Save(context.Background(), nil, existing))

	req := env.baseRequest()
	req.Date = "2024-05-01"
	_, err := env.svc.Certify(context.Background(), req)

	var cv *fiscal.ChronologyViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, "2024-05-01", cv.CandidateDate.Format("2006-01-02"))
	assert.Equal(t, "2024-06-01", cv.LatestDate.Format("2006-01-02"))

	// Same-day drafts are allowed, and a different type is an independent stream.
	req.Date = "2024-06-01"
	_, err = env.svc.Certify(context.Background(), req)
	assert.NoError(t, err)

	reqNC := env.baseRequest()
	reqNC.Type = "NC"
	reqNC.Date = "2024-01-01"
	_, err = env.svc.Certify(context.Background(), reqNC)
	assert.NoError(t, err)
}

func TestCertify_DuplicateNumberNeverReused(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)
	// A prior crash stranded FT T2024/1 in the store without moving state here.
	env.docs.preExisting["FT T2024/1"] = true

	_, err := env.svc.Certify(context.Background(), env.baseRequest())
	require.ErrorIs(t, err, fiscal.ErrDuplicateNumber)

	// The allocated integer is burned, not reused: the next attempt takes /2.
	resp, err := env.svc.Certify(context.Background(), env.baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "FT T2024/2", *resp.Document.Number)
}

func TestCertify_AllocationFailure(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)
	env.series.allocErr = errors.New("counter store down")

	_, err := env.svc.Certify(context.Background(), env.baseRequest())
	require.ErrorIs(t, err, fiscal.ErrAllocationFailure)
}

func TestCertify_PersistenceFailureSurfaced(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)
	env.docs.saveErr = errors.New("disk full")

	_, err := env.svc.Certify(context.Background(), env.baseRequest())
	require.ErrorIs(t, err, fiscal.ErrPersistenceFailure)
}

func TestCertify_ManualSeries(t *testing.T) {
	env := newTestEnv(t, model.SeriesManual)

	// Manual series require operator-supplied number and hash.
	req := env.baseRequest()
	_, err := env.svc.Certify(context.Background(), req)
	var ve *fiscal.ValidationError
	require.ErrorAs(t, err, &ve)

	number := "FT LEG2019/77"
	hash := "0000aaaa"
	req.ManualNumber = &number
	req.ManualHash = &hash
	req.Date = "2019-02-01"

	resp, err := env.svc.Certify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, number, *resp.Document.Number)
	assert.Equal(t, hash, *resp.Document.Hash)
	// Backfilled documents keep their drafted date.
	assert.Equal(t, "2019-02-01", resp.Document.Date)
	assert.True(t, resp.Document.IsCertified)

	// The duplicate guard still applies to manual numbers.
	_, err = env.svc.Certify(context.Background(), req)
	require.ErrorIs(t, err, fiscal.ErrDuplicateNumber)
}

func TestCertify_ValidationRejectsBadDrafts(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)
	var ve *fiscal.ValidationError

	req := env.baseRequest()
	req.CustomerName = ""
	_, err := env.svc.Certify(context.Background(), req)
	require.ErrorAs(t, err, &ve)

	req = env.baseRequest()
	req.Lines = nil
	_, err = env.svc.Certify(context.Background(), req)
	require.ErrorAs(t, err, &ve)

	req = env.baseRequest()
	req.Lines[0].Quantity = decimal.Zero
	_, err = env.svc.Certify(context.Background(), req)
	require.ErrorAs(t, err, &ve)

	req = env.baseRequest()
	req.SeriesID = "not-a-uuid"
	_, err = env.svc.Certify(context.Background(), req)
	require.ErrorAs(t, err, &ve)
}

func TestCertify_AppliesCashAndStockEffects(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)
	productID := uuid.New()
	pid := productID.String()
	method := "cash"
	regID := env.register.ID.String()

	req := env.baseRequest()
	req.PaymentMethod = &method
	req.RegisterID = &regID
	req.Lines = []dto.LineRequest{{
		Description: "Widget",
		ProductID:   &pid,
		Quantity:    decimal.NewFromInt(3),
		UnitPrice:   decimal.NewFromInt(100),
	}}

	resp, err := env.svc.Certify(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, resp.Warnings)

	// Cash: one sale entry, register incremented by the total.
	entries, _ := env.ledger.ListCashEntries(context.Background(), env.register.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "sale", entries[0].EntryType)
	assert.Equal(t, "300", entries[0].Amount.String())
	reg, _ := env.ledger.FindRegister(context.Background(), env.register.ID)
	assert.Equal(t, "300", reg.Balance.String())

	// Stock: sales exit inventory.
	stock, _ := env.ledger.ListStockEntries(context.Background(), productID)
	require.Len(t, stock, 1)
	assert.Equal(t, model.StockExit, stock[0].Direction)
	assert.Equal(t, "3", stock[0].Quantity.String())
}

func TestCertify_CreditNoteInvertsImpact(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)
	productID := uuid.New()
	pid := productID.String()
	method := "cash"
	regID := env.register.ID.String()

	req := env.baseRequest()
	req.Type = "NC"
	req.PaymentMethod = &method
	req.RegisterID = &regID
	req.Lines = []dto.LineRequest{{
		Description: "Widget return",
		ProductID:   &pid,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.NewFromInt(250),
	}}

	_, err := env.svc.Certify(context.Background(), req)
	require.NoError(t, err)

	entries, _ := env.ledger.ListCashEntries(context.Background(), env.register.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "refund", entries[0].EntryType)
	assert.Equal(t, "-250", entries[0].Amount.String())

	stock, _ := env.ledger.ListStockEntries(context.Background(), productID)
	require.Len(t, stock, 1)
	assert.Equal(t, model.StockEntry, stock[0].Direction, "credit notes return goods to stock")
}

func TestCertify_ProformaMovesNothing(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)
	productID := uuid.New()
	pid := productID.String()

	req := env.baseRequest()
	req.Type = "PP"
	req.Lines = []dto.LineRequest{{
		Description: "Quoted widget",
		ProductID:   &pid,
		Quantity:    decimal.NewFromInt(5),
		UnitPrice:   decimal.NewFromInt(10),
	}}

	resp, err := env.svc.Certify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "PP T2024/1", *resp.Document.Number)

	stock, _ := env.ledger.ListStockEntries(context.Background(), productID)
	assert.Empty(t, stock, "proformas have no ledger impact")
}

func TestCertify_EffectFailureIsWarningNotError(t *testing.T) {
	env := newTestEnv(t, model.SeriesNormal)
	env.ledger.applyErr = errors.New("ledger store down")
	method := "card"
	regID := env.register.ID.String()

	req := env.baseRequest()
	req.PaymentMethod = &method
	req.RegisterID = &regID

	resp, err := env.svc.Certify(context.Background(), req)
	require.NoError(t, err, "certification must survive side-effect failure")
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, "cash", resp.Warnings[0].Kind)
	assert.NotEmpty(t, resp.Warnings[0].EffectID)

	// The effect record is failed and scheduled for retry.
	doc, err := env.docs.FindByID(context.Background(), uuid.MustParse(resp.Document.ID))
	require.NoError(t, err)
	effects, _ := env.ledger.EffectsByDocument(context.Background(), doc.ID)
	require.Len(t, effects, 1)
	assert.Equal(t, model.EffectFailed, effects[0].Status)
	assert.Equal(t, 1, effects[0].Attempts)
	require.NotNil(t, effects[0].NextRetryAt)
}
