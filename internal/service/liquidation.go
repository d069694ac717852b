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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Liquidate ─────────────────────────────────────────────────────────────────
// A liquidation is a constrained case of the same workflow: it certifies a
// receipt (own number, own hash) referencing the invoice being paid, then
// accumulates the invoice's paid amount and derives its settlement status.

func (s *certificationService) Liquidate(ctx context.Context, id uuid.UUID, req dto.LiquidateRequest) (*dto.LiquidateResponse, error) {
	invoice, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, errors.New("document not found")
	}
	if !invoice.IsCertified {
		return nil, &fiscal.ValidationError{Reason: "only certified documents can be liquidated"}
	}
	if invoice.Status == model.StatusCancelled {
		return nil, &fiscal.ValidationError{Reason: "cancelled documents cannot be liquidated"}
	}
	if invoice.Status == model.StatusPaid {
		return nil, &fiscal.ValidationError{Reason: "document is already fully paid"}
	}
	if !req.Amount.IsPositive() {
		return nil, &fiscal.ValidationError{Reason: "payment amount must be positive"}
	}

	series, err := s.series.FindByID(ctx, invoice.SeriesID)
	if err != nil {
		return nil, fmt.Errorf("series of invoice not found: %w", err)
	}

	registerID, err := uuid.Parse(req.RegisterID)
	if err != nil {
		return nil, &fiscal.ValidationError{Reason: "invalid register_id"}
	}

	// The receipt draft: one non-stock line carrying the paid amount.
	method := req.Method
	receipt := &model.FiscalDocument{
		ID:              uuid.New(),
		Type:            model.DocReceipt,
		SeriesID:        series.ID,
		SeriesCode:      series.Code,
		Year:            series.Year,
		Date:            s.now(),
		AccountingDate:  s.now(),
		CustomerName:    invoice.CustomerName,
		CustomerTaxID:   invoice.CustomerTaxID,
		SupplierTaxID:   invoice.SupplierTaxID,
		Currency:        invoice.Currency,
		ExchangeRate:    invoice.ExchangeRate,
		Status:          model.StatusPaid,
		PaymentMethod:   &method,
		RegisterID:      &registerID,
		Operator:        req.Operator,
		SourceInvoiceID: &invoice.ID,
	}
	receipt.Lines = []model.DocumentLine{{
		ID:          uuid.New(),
		DocumentID:  receipt.ID,
		Position:    1,
		Description: fmt.Sprintf("Payment on account of %s", *invoice.Number),
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   req.Amount,
		LineTotal:   req.Amount,
	}}
	computeTotals(receipt)

	certified, warnings, err := s.certify(ctx, receipt, series, "liquidation")
	if err != nil {
		return nil, err
	}

	// Accumulate and derive: Paid once paid ≥ total, else PartiallyPaid.
	invoice.PaidAmount = invoice.PaidAmount.Add(req.Amount)
	if invoice.PaidAmount.GreaterThanOrEqual(invoice.Total) {
		invoice.Status = model.StatusPaid
	} else {
		invoice.Status = model.StatusPartiallyPaid
	}

	txErr := runTx(ctx, s.docs.DB(), func(tx *gorm.DB) error {
		return s.docs.Save(ctx, tx, invoice)
	})
	if txErr != nil {
		log.Error().
			Err(txErr).
			Str("invoice", *invoice.Number).
			Str("receipt", *certified.Number).
			Msg("liquidation: receipt certified but invoice status could not be updated")
		return nil, fmt.Errorf("%w: updating paid amount of %s: %v", fiscal.ErrPersistenceFailure, *invoice.Number, txErr)
	}

	log.Info().
		Str("invoice", *invoice.Number).
		Str("receipt", *certified.Number).
		Str("status", string(invoice.Status)).
		Msg("liquidation: payment registered")

	return &dto.LiquidateResponse{
		Invoice:  documentToResponse(invoice),
		Receipt:  documentToResponse(certified),
		Warnings: warnings,
	}, nil
}
