package service

import (
	"context"
	"errors"
	"fmt"

	"numera/internal/dto"
	"numera/internal/fiscal"
	"numera/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ── Cancel ────────────────────────────────────────────────────────────────────
// Cancellation is explicit composition over the same certification workflow:
//
//	build corrective draft → certify → link → mark original cancelled
//
// The original stays untouched until the corrective document is Certified, so
// a failure at any step simply leaves the original as it was.

func (s *certificationService) Cancel(ctx context.Context, id uuid.UUID, req dto.CancelRequest) (*dto.CancelResponse, error) {
	original, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, errors.New("document not found")
	}
	if !original.IsCertified {
		return nil, &fiscal.ValidationError{Reason: "only certified documents can be cancelled"}
	}
	if original.Status == model.StatusCancelled {
		return nil, &fiscal.ValidationError{Reason: "document is already cancelled"}
	}

	series, err := s.series.FindByID(ctx, original.SeriesID)
	if err != nil {
		return nil, fmt.Errorf("series of original document not found: %w", err)
	}

	// Corrective type by inversion: a credit note is rectified by a debit
	// note; everything else by a credit note.
	corrective := buildCorrectiveDraft(original, req.Operator)

	certified, warnings, err := s.certify(ctx, corrective, series, "cancellation")
	if err != nil {
		return nil, err
	}

	// Only now — with the corrective certified — the original is cancelled and
	// cross-referenced. The link is created atomically and never removed.
	reason := fmt.Sprintf("%s (rectified by %s)", req.Reason, *certified.Number)
	original.Status = model.StatusCancelled
	original.CancellationReason = &reason
	original.CorrectiveID = &certified.ID

	txErr := runTx(ctx, s.docs.DB(), func(tx *gorm.DB) error {
		return s.docs.Save(ctx, tx, original)
	})
	if txErr != nil {
		// The corrective exists and is certified; the missing back-link must
		// be surfaced loudly for operator reconciliation.
		log.Error().
			Err(txErr).
			Str("original", *original.Number).
			Str("corrective", *certified.Number).
			Msg("cancellation: corrective certified but original could not be marked cancelled")
		return nil, fmt.Errorf("%w: linking cancellation of %s: %v", fiscal.ErrPersistenceFailure, *original.Number, txErr)
	}

	log.Info().
		Str("original", *original.Number).
		Str("corrective", *certified.Number).
		Str("reason", req.Reason).
		Msg("cancellation: original cancelled")

	return &dto.CancelResponse{
		Original:   documentToResponse(original),
		Corrective: documentToResponse(certified),
		Warnings:   warnings,
	}, nil
}

// buildCorrectiveDraft derives the rectifying document: same parties, currency
// and line items (with fresh identities), pointing back at the original. Its
// own certification allocates its own number and hash and emits ledger entries
// with the inverse impact of the original's.
func buildCorrectiveDraft(original *model.FiscalDocument, operator string) *model.FiscalDocument {
	draft := &model.FiscalDocument{
		ID:             uuid.New(),
		Type:           original.Type.CorrectiveType(),
		SeriesID:       original.SeriesID,
		SeriesCode:     original.SeriesCode,
		Year:           original.Year,
		Date:           original.Date,
		AccountingDate: original.AccountingDate,
		CustomerName:   original.CustomerName,
		CustomerTaxID:  original.CustomerTaxID,
		SupplierTaxID:  original.SupplierTaxID,
		Currency:       original.Currency,
		ExchangeRate:   original.ExchangeRate,
		GlobalDiscount: original.GlobalDiscount,
		Status:         model.StatusPaid,
		PaymentMethod:  original.PaymentMethod,
		RegisterID:     original.RegisterID,
		Operator:       operator,
		SourceInvoiceID: &original.ID,
	}
	for _, l := range original.Lines {
		draft.Lines = append(draft.Lines, model.DocumentLine{
			ID:                  uuid.New(), // fresh identity per line
			DocumentID:          draft.ID,
			Position:            l.Position,
			Description:         l.Description,
			ProductID:           l.ProductID,
			IsService:           l.IsService,
			WithholdingEligible: l.WithholdingEligible,
			Quantity:            l.Quantity,
			UnitPrice:           l.UnitPrice,
			DiscountPct:         l.DiscountPct,
			TaxRate:             l.TaxRate,
			LineTotal:           l.LineTotal,
		})
	}
	computeTotals(draft)
	return draft
}
