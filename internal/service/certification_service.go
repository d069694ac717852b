package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"numera/internal/dto"
	"numera/internal/fiscal"
	"numera/internal/model"
	"numera/internal/repository"
	"numera/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CertState tracks the certification workflow of a single document. Every
// state may fall to Failed; until Certified is reached the document is still
// a draft from the caller's perspective — no partial number or hash is valid.
type CertState string

const (
	StateDraft           CertState = "draft"
	StateValidating      CertState = "validating"
	StateNumberAllocated CertState = "number_allocated"
	StateHashed          CertState = "hashed"
	StatePersisted       CertState = "persisted"
	StateCertified       CertState = "certified"
	StateFailed          CertState = "failed"
)

type CertificationService interface {
	Certify(ctx context.Context, req dto.CertifyRequest) (*dto.CertifyResponse, error)
	Cancel(ctx context.Context, id uuid.UUID, req dto.CancelRequest) (*dto.CancelResponse, error)
	Liquidate(ctx context.Context, id uuid.UUID, req dto.LiquidateRequest) (*dto.LiquidateResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error)
	List(ctx context.Context, filter dto.DocumentFilter) (*dto.DocumentListResponse, error)
	Effects(ctx context.Context, id uuid.UUID) ([]dto.EffectResponse, error)
}

type certificationService struct {
	docs       repository.DocumentRepository
	series     repository.SeriesRepository
	ledgerRepo repository.LedgerRepository
	ledger     LedgerService
	dispatcher *worker.Dispatcher
	now        func() time.Time // injectable clock
}

func NewCertificationService(
	docs repository.DocumentRepository,
	series repository.SeriesRepository,
	ledgerRepo repository.LedgerRepository,
	ledger LedgerService,
	dispatcher *worker.Dispatcher,
) CertificationService {
	return &certificationService{
		docs:       docs,
		series:     series,
		ledgerRepo: ledgerRepo,
		ledger:     ledger,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// ── Certify ───────────────────────────────────────────────────────────────────
// Draft → Validating → NumberAllocated → Hashed → Persisted → Certified.
// Validation and chronology failures abort before any durable mutation;
// allocation/persistence failures abort the workflow but may strand an
// allocated number (documented gap — gaps require operator review);
// side-effect failures accompany a successful result as warnings.

func (s *certificationService) Certify(ctx context.Context, req dto.CertifyRequest) (*dto.CertifyResponse, error) {
	seriesID, err := uuid.Parse(req.SeriesID)
	if err != nil {
		return nil, &fiscal.ValidationError{Reason: "invalid series_id"}
	}
	series, err := s.series.FindByID(ctx, seriesID)
	if err != nil {
		return nil, &fiscal.ValidationError{Reason: "series not found"}
	}
	doc, err := s.buildDraft(req, series)
	if err != nil {
		return nil, err
	}

	certified, warnings, err := s.certify(ctx, doc, series, "certification")
	if err != nil {
		return nil, err
	}
	return &dto.CertifyResponse{
		Document: documentToResponse(certified),
		Warnings: warnings,
	}, nil
}

// certify drives one document through the full state machine. Cancellation
// and liquidation re-enter here with their derived drafts, so corrective
// documents and receipts get identical invariant guarantees to primary ones.
func (s *certificationService) certify(ctx context.Context, doc *model.FiscalDocument, series *model.DocumentSeries, origin string) (*model.FiscalDocument, []fiscal.SideEffectWarning, error) {
	state := StateDraft

	// Draft → Validating
	if err := validateDraft(doc); err != nil {
		return nil, nil, err
	}
	state = StateValidating

	manual := series.Kind == model.SeriesManual

	// Validating → NumberAllocated
	var number string
	if manual {
		// Manual series (backfill/recovery): the operator supplies number and
		// hash; the chronology guard and auto-dating do not apply.
		if doc.Number == nil || *doc.Number == "" || doc.Hash == nil || *doc.Hash == "" {
			return nil, nil, &fiscal.ValidationError{Reason: "manual series requires operator-supplied number and hash"}
		}
		number = *doc.Number
	} else {
		latest, err := s.docs.LatestCertifiedDate(ctx, series.ID, doc.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: chronology lookup: %v", fiscal.ErrAllocationFailure, err)
		}
		if latest != nil && doc.Date.Before(*latest) {
			return nil, nil, &fiscal.ChronologyViolation{CandidateDate: doc.Date, LatestDate: *latest}
		}

		// The fiscal date is the moment of certification, not of drafting.
		certifiedAt := s.now()
		doc.Date = certifiedAt
		doc.AccountingDate = certifiedAt

		seq, err := s.series.Allocate(ctx, nil, series.ID, doc.Type.Prefix(), series.Year)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", fiscal.ErrAllocationFailure, err)
		}
		doc.Sequence = seq
		number = fiscal.FormatNumber(doc.Type.Prefix(), series.Code, series.Year, seq)
		doc.Number = &number
	}
	state = StateNumberAllocated

	// NumberAllocated → Hashed
	if !manual {
		h := fiscal.Fingerprint(fingerprintInput(doc))
		doc.Hash = &h
	}
	doc.IsCertified = true
	state = StateHashed

	// Hashed → Persisted. The pre-write existence check defends against a
	// prior crash between allocation and persistence; the allocated integer
	// is never silently reused.
	exists, err := s.docs.ExistsByNumber(ctx, number)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: existence check: %v", fiscal.ErrAllocationFailure, err)
	}
	if exists {
		return nil, nil, fmt.Errorf("%w: %s", fiscal.ErrDuplicateNumber, number)
	}

	effects, err := s.ledger.BuildEffects(doc, origin)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: building effects: %v", fiscal.ErrPersistenceFailure, err)
	}

	txErr := runTx(ctx, s.docs.DB(), func(tx *gorm.DB) error {
		if err := s.docs.Save(ctx, tx, doc); err != nil {
			return err
		}
		return s.ledger.PersistEffects(ctx, tx, effects)
	})
	if txErr != nil {
		// The most dangerous state: the document is fiscally numbered but not
		// durably stored. Surfaced loudly — logged and alerted, never swallowed.
		log.Error().
			Err(txErr).
			Str("number", number).
			Str("document_id", doc.ID.String()).
			Msg("certification: persistence failed AFTER numbering")
		if s.dispatcher != nil {
			_ = s.dispatcher.EnqueueAlert(ctx, worker.AlertJobPayload{
				Subject: fmt.Sprintf("URGENT: document %s numbered but not persisted", number),
				Body:    fmt.Sprintf("Document %s (id %s) consumed a legal number but the repository write failed: %v", number, doc.ID, txErr),
			})
		}
		return nil, nil, fmt.Errorf("%w: %s: %v", fiscal.ErrPersistenceFailure, number, txErr)
	}
	state = StatePersisted

	// Persisted → Certified: independent best-effort side effects.
	warnings := s.ledger.FanOut(ctx, effects)
	for _, w := range warnings {
		if s.dispatcher != nil {
			_ = s.dispatcher.EnqueueEffectRetry(ctx, worker.EffectJobPayload{EffectID: w.EffectID, Kind: w.Kind})
		}
	}
	state = StateCertified

	log.Info().
		Str("number", number).
		Str("type", string(doc.Type)).
		Str("state", string(state)).
		Int("warnings", len(warnings)).
		Msg("certification: document certified")

	return doc, warnings, nil
}

// ── Draft construction ────────────────────────────────────────────────────────

func (s *certificationService) buildDraft(req dto.CertifyRequest, series *model.DocumentSeries) (*model.FiscalDocument, error) {
	docType := model.DocumentType(req.Type)
	if !docType.Valid() {
		return nil, &fiscal.ValidationError{Reason: fmt.Sprintf("unknown document type %q", req.Type)}
	}

	date := s.now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return nil, &fiscal.ValidationError{Reason: "invalid date"}
		}
		date = parsed
	}
	var dueDate *time.Time
	if req.DueDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			return nil, &fiscal.ValidationError{Reason: "invalid due date"}
		}
		dueDate = &parsed
	}

	currency := req.Currency
	if currency == "" {
		currency = "AOA"
	}
	exchangeRate := req.ExchangeRate
	if exchangeRate.IsZero() {
		exchangeRate = decimal.NewFromInt(1)
	}

	doc := &model.FiscalDocument{
		ID:             uuid.New(),
		Type:           docType,
		SeriesID:       series.ID,
		SeriesCode:     series.Code,
		Year:           series.Year,
		Date:           date,
		AccountingDate: date,
		DueDate:        dueDate,
		CustomerName:   req.CustomerName,
		CustomerTaxID:  req.CustomerTaxID,
		SupplierTaxID:  req.SupplierTaxID,
		Currency:       currency,
		ExchangeRate:   exchangeRate,
		GlobalDiscount: req.GlobalDiscount,
		Status:         model.StatusPending,
		PaymentMethod:  req.PaymentMethod,
		Operator:       req.Operator,
	}
	if req.RegisterID != nil {
		rid, err := uuid.Parse(*req.RegisterID)
		if err != nil {
			return nil, &fiscal.ValidationError{Reason: "invalid register_id"}
		}
		doc.RegisterID = &rid
	}
	if series.Kind == model.SeriesManual {
		doc.Number = req.ManualNumber
		doc.Hash = req.ManualHash
	}

	for i, lr := range req.Lines {
		line := model.DocumentLine{
			ID:                  uuid.New(),
			DocumentID:          doc.ID,
			Position:            i + 1,
			Description:         lr.Description,
			IsService:           lr.IsService,
			WithholdingEligible: lr.WithholdingEligible,
			Quantity:            lr.Quantity,
			UnitPrice:           lr.UnitPrice,
			DiscountPct:         lr.DiscountPct,
			TaxRate:             lr.TaxRate,
		}
		if lr.ProductID != nil {
			pid, err := uuid.Parse(*lr.ProductID)
			if err != nil {
				return nil, &fiscal.ValidationError{Reason: fmt.Sprintf("line %d: invalid product_id", i+1)}
			}
			line.ProductID = &pid
		}
		line.LineTotal = lineTotal(line)
		doc.Lines = append(doc.Lines, line)
	}

	computeTotals(doc)
	return doc, nil
}

// lineTotal = quantity × unit price × (1 − discount%), rounded to 2 decimals.
func lineTotal(l model.DocumentLine) decimal.Decimal {
	gross := l.Quantity.Mul(l.UnitPrice)
	if l.DiscountPct.IsPositive() {
		gross = gross.Mul(decimal.NewFromInt(100).Sub(l.DiscountPct)).Div(decimal.NewFromInt(100))
	}
	return gross.Round(2)
}

// computeTotals derives subtotal, tax, withholding and total from the lines:
// total = subtotal − global discount + tax − withholding.
func computeTotals(doc *model.FiscalDocument) {
	subtotal := decimal.Zero
	tax := decimal.Zero
	wLines := make([]fiscal.WithholdingLine, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		subtotal = subtotal.Add(l.LineTotal)
		tax = tax.Add(l.LineTotal.Mul(l.TaxRate).Div(decimal.NewFromInt(100)))
		wLines = append(wLines, fiscal.WithholdingLine{
			IsService: l.IsService,
			Eligible:  l.WithholdingEligible,
			LineTotal: l.LineTotal,
		})
	}
	doc.Subtotal = subtotal
	doc.TaxAmount = tax.Round(2)
	doc.WithholdingAmount = fiscal.ComputeWithholding(wLines)
	doc.Total = subtotal.
		Sub(doc.GlobalDiscount).
		Add(doc.TaxAmount).
		Sub(doc.WithholdingAmount).
		Round(2)
}

// validateDraft enforces the Draft → Validating transition: a counterparty
// reference and at least one line item.
func validateDraft(doc *model.FiscalDocument) error {
	if doc.CustomerName == "" || doc.CustomerTaxID == "" {
		return &fiscal.ValidationError{Reason: "missing counterparty reference"}
	}
	if len(doc.Lines) == 0 {
		return &fiscal.ValidationError{Reason: "document has no line items"}
	}
	if !doc.Type.Valid() {
		return &fiscal.ValidationError{Reason: fmt.Sprintf("unknown document type %q", doc.Type)}
	}
	for _, l := range doc.Lines {
		if !l.Quantity.IsPositive() {
			return &fiscal.ValidationError{Reason: "line quantity must be positive"}
		}
		if l.UnitPrice.IsNegative() {
			return &fiscal.ValidationError{Reason: "line unit price must not be negative"}
		}
	}
	return nil
}

func fingerprintInput(doc *model.FiscalDocument) fiscal.FingerprintInput {
	lineTotals := make([]decimal.Decimal, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		lineTotals = append(lineTotals, l.LineTotal)
	}
	return fiscal.FingerprintInput{
		Type:          string(doc.Type),
		Number:        *doc.Number,
		Date:          doc.Date,
		CustomerTaxID: doc.CustomerTaxID,
		SupplierTaxID: doc.SupplierTaxID,
		LineTotals:    lineTotals,
		TaxAmount:     doc.TaxAmount,
		Withholding:   doc.WithholdingAmount,
		Total:         doc.Total,
	}
}

// ── Read side ────────────────────────────────────────────────────────────────

func (s *certificationService) Get(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, errors.New("document not found")
	}
	resp := documentToResponse(doc)
	return &resp, nil
}

func (s *certificationService) List(ctx context.Context, filter dto.DocumentFilter) (*dto.DocumentListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	docs, total, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		items = append(items, documentToResponse(&docs[i]))
	}
	return &dto.DocumentListResponse{
		Data:  items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (s *certificationService) Effects(ctx context.Context, id uuid.UUID) ([]dto.EffectResponse, error) {
	effects, err := s.ledgerRepo.EffectsByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EffectResponse, 0, len(effects))
	for _, e := range effects {
		resp := dto.EffectResponse{
			ID:        e.ID.String(),
			Kind:      string(e.Kind),
			Status:    string(e.Status),
			Attempts:  e.Attempts,
			LastError: e.LastError,
		}
		if e.NextRetryAt != nil {
			t := e.NextRetryAt.Format(time.RFC3339)
			resp.NextRetryAt = &t
		}
		if e.AppliedAt != nil {
			t := e.AppliedAt.Format(time.RFC3339)
			resp.AppliedAt = &t
		}
		out = append(out, resp)
	}
	return out, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func documentToResponse(d *model.FiscalDocument) dto.DocumentResponse {
	lines := make([]dto.LineResponse, 0, len(d.Lines))
	for _, l := range d.Lines {
		lr := dto.LineResponse{
			Description:         l.Description,
			IsService:           l.IsService,
			WithholdingEligible: l.WithholdingEligible,
			Quantity:            l.Quantity,
			UnitPrice:           l.UnitPrice,
			DiscountPct:         l.DiscountPct,
			TaxRate:             l.TaxRate,
			LineTotal:           l.LineTotal,
		}
		if l.ProductID != nil {
			pid := l.ProductID.String()
			lr.ProductID = &pid
		}
		lines = append(lines, lr)
	}

	resp := dto.DocumentResponse{
		ID:                 d.ID.String(),
		Type:               string(d.Type),
		SeriesID:           d.SeriesID.String(),
		Number:             d.Number,
		Date:               d.Date.Format("2006-01-02"),
		CustomerName:       d.CustomerName,
		CustomerTaxID:      d.CustomerTaxID,
		Currency:           d.Currency,
		Subtotal:           d.Subtotal,
		GlobalDiscount:     d.GlobalDiscount,
		TaxAmount:          d.TaxAmount,
		WithholdingAmount:  d.WithholdingAmount,
		Total:              d.Total,
		PaidAmount:         d.PaidAmount,
		IsCertified:        d.IsCertified,
		Hash:               d.Hash,
		Status:             string(d.Status),
		CancellationReason: d.CancellationReason,
		Lines:              lines,
		CreatedAt:          d.CreatedAt.Format(time.RFC3339),
	}
	if d.DueDate != nil {
		t := d.DueDate.Format("2006-01-02")
		resp.DueDate = &t
	}
	if d.CorrectiveID != nil {
		cid := d.CorrectiveID.String()
		resp.CorrectiveID = &cid
	}
	if d.SourceInvoiceID != nil {
		sid := d.SourceInvoiceID.String()
		resp.SourceInvoiceID = &sid
	}
	return resp
}
