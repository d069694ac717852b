package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"numera/internal/dto"
	"numera/internal/fiscal"
	"numera/internal/infra"
	"numera/internal/model"
	"numera/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService propagates a certified document's monetary and inventory
// impact into the cash and stock ledgers. Effects are persisted as records
// with the document (saga), then applied best-effort: a failed effect is
// surfaced as a warning and retried later, never rolled back.
type LedgerService interface {
	// BuildEffects derives the pending effect records for a certified document.
	BuildEffects(doc *model.FiscalDocument, origin string) ([]model.LedgerEffect, error)
	// PersistEffects writes effect records inside the document's transaction.
	PersistEffects(ctx context.Context, tx *gorm.DB, effects []model.LedgerEffect) error
	// FanOut applies effects concurrently (they are independent appends) and
	// returns one warning per failed effect.
	FanOut(ctx context.Context, effects []model.LedgerEffect) []fiscal.SideEffectWarning
	// ApplyByID re-applies a single effect; used by the retry worker and cron.
	ApplyByID(ctx context.Context, effectID uuid.UUID) error

	RegisterLedger(ctx context.Context, registerID uuid.UUID) (*dto.CashLedgerResponse, error)
	StockLedger(ctx context.Context, productID uuid.UUID) (*dto.StockLedgerResponse, error)
}

type ledgerService struct {
	repo repository.LedgerRepository
	cb   *infra.CircuitBreaker
}

func NewLedgerService(repo repository.LedgerRepository, cb *infra.CircuitBreaker) LedgerService {
	return &ledgerService{repo: repo, cb: cb}
}

// effectRetryDelay is the initial reschedule for a failed effect; the
// reconciliation cron backs off further per attempt.
const effectRetryDelay = 30 * time.Second

// ── BuildEffects ──────────────────────────────────────────────────────────────

func (s *ledgerService) BuildEffects(doc *model.FiscalDocument, origin string) ([]model.LedgerEffect, error) {
	if doc.Number == nil {
		return nil, fmt.Errorf("ledger: document %s has no number", doc.ID)
	}
	var effects []model.LedgerEffect

	// Cash effect: only when the document carries a payment method and a
	// register, its total is positive, and it is not cancelled.
	if doc.PaymentMethod != nil && doc.RegisterID != nil &&
		doc.Total.IsPositive() && doc.Status != model.StatusCancelled {
		payload := model.CashEffectPayload{
			RegisterID:     *doc.RegisterID,
			DocumentNumber: *doc.Number,
			EntryType:      cashEntryType(doc.Type, origin),
			Method:         doc.PaymentMethod,
			Amount:         cashDelta(doc),
			Operator:       doc.Operator,
			Origin:         origin,
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		effects = append(effects, model.LedgerEffect{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Kind:       model.EffectCash,
			Payload:    raw,
			Status:     model.EffectPending,
		})
	}

	// Stock effects: one per line referencing a physical product. Service
	// lines are skipped; sales exit stock, credit notes enter it.
	if doc.Type.MovesStock() {
		direction := model.StockEntry
		if doc.Type.IsSale() {
			direction = model.StockExit
		}
		for _, line := range doc.Lines {
			if line.ProductID == nil || line.IsService {
				continue
			}
			payload := model.StockEffectPayload{
				ProductID:      *line.ProductID,
				DocumentNumber: *doc.Number,
				Direction:      direction,
				Quantity:       line.Quantity,
				Reason:         fmt.Sprintf("%s %s", doc.Type, *doc.Number),
			}
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, err
			}
			effects = append(effects, model.LedgerEffect{
				ID:         uuid.New(),
				DocumentID: doc.ID,
				Kind:       model.EffectStock,
				Payload:    raw,
				Status:     model.EffectPending,
			})
		}
	}

	return effects, nil
}

// cashDelta is the signed monetary impact: sales add to the register, credit
// notes (refunds) subtract from it.
func cashDelta(doc *model.FiscalDocument) decimal.Decimal {
	if doc.Type == model.DocCreditNote {
		return doc.Total.Neg()
	}
	return doc.Total
}

func cashEntryType(t model.DocumentType, origin string) string {
	switch {
	case origin == "liquidation":
		return "liquidation"
	case t == model.DocCreditNote:
		return "refund"
	default:
		return "sale"
	}
}

// ── PersistEffects / FanOut / Apply ──────────────────────────────────────────

func (s *ledgerService) PersistEffects(ctx context.Context, tx *gorm.DB, effects []model.LedgerEffect) error {
	return s.repo.CreateEffects(ctx, tx, effects)
}

func (s *ledgerService) FanOut(ctx context.Context, effects []model.LedgerEffect) []fiscal.SideEffectWarning {
	if len(effects) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		warnings []fiscal.SideEffectWarning
		wg       sync.WaitGroup
	)

	for i := range effects {
		eff := effects[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.cb.Execute(func() error {
				return s.apply(ctx, &eff)
			})
			if err == nil {
				return
			}
			next := time.Now().Add(effectRetryDelay)
			if mfErr := s.repo.MarkEffectFailed(ctx, eff.ID, err.Error(), &next); mfErr != nil {
				log.Error().Err(mfErr).Str("effect_id", eff.ID.String()).Msg("ledger: failed to record effect failure")
			}
			log.Warn().
				Err(err).
				Str("effect_id", eff.ID.String()).
				Str("kind", string(eff.Kind)).
				Msg("ledger: effect application failed, scheduled for retry")

			mu.Lock()
			warnings = append(warnings, fiscal.SideEffectWarning{
				EffectID: eff.ID.String(),
				Kind:     string(eff.Kind),
				Detail:   err.Error(),
			})
			mu.Unlock()
		}()
	}
	wg.Wait()
	return warnings
}

func (s *ledgerService) ApplyByID(ctx context.Context, effectID uuid.UUID) error {
	eff, err := s.repo.FindEffect(ctx, effectID)
	if err != nil {
		return fmt.Errorf("ledger: effect %s not found: %w", effectID, err)
	}
	if eff.Status == model.EffectApplied {
		return nil
	}
	return s.cb.Execute(func() error {
		return s.apply(ctx, eff)
	})
}

// apply performs one effect exactly once: the ledger append, the balance
// increment (cash only) and the applied-flag flip share a transaction, and
// the flip is conditional on the effect not being applied yet, so redelivery
// is a no-op.
func (s *ledgerService) apply(ctx context.Context, eff *model.LedgerEffect) error {
	return runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		claimed, err := s.repo.MarkEffectApplied(ctx, tx, eff.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return nil // already applied by a concurrent worker
		}

		switch eff.Kind {
		case model.EffectCash:
			var p model.CashEffectPayload
			if err := json.Unmarshal(eff.Payload, &p); err != nil {
				return fmt.Errorf("ledger: corrupt cash payload: %w", err)
			}
			if err := s.repo.IncrementRegisterBalance(ctx, tx, p.RegisterID, p.Amount); err != nil {
				return err
			}
			return s.repo.AppendCashEntry(ctx, tx, &model.CashLedgerEntry{
				RegisterID:     p.RegisterID,
				DocumentNumber: p.DocumentNumber,
				EntryType:      p.EntryType,
				Method:         p.Method,
				Amount:         p.Amount,
				Operator:       p.Operator,
				Origin:         p.Origin,
			})

		case model.EffectStock:
			var p model.StockEffectPayload
			if err := json.Unmarshal(eff.Payload, &p); err != nil {
				return fmt.Errorf("ledger: corrupt stock payload: %w", err)
			}
			return s.repo.AppendStockEntry(ctx, tx, &model.StockLedgerEntry{
				ProductID:      p.ProductID,
				DocumentNumber: p.DocumentNumber,
				Direction:      p.Direction,
				Quantity:       p.Quantity,
				Reason:         p.Reason,
			})

		default:
			return fmt.Errorf("ledger: unknown effect kind %q", eff.Kind)
		}
	})
}

// ── Read side ────────────────────────────────────────────────────────────────

func (s *ledgerService) RegisterLedger(ctx context.Context, registerID uuid.UUID) (*dto.CashLedgerResponse, error) {
	reg, err := s.repo.FindRegister(ctx, registerID)
	if err != nil {
		return nil, fmt.Errorf("cash register not found")
	}
	entries, err := s.repo.ListCashEntries(ctx, registerID)
	if err != nil {
		return nil, err
	}

	sum := decimal.Zero
	out := make([]dto.CashEntryResponse, 0, len(entries))
	for _, e := range entries {
		sum = sum.Add(e.Amount)
		out = append(out, dto.CashEntryResponse{
			DocumentNumber: e.DocumentNumber,
			EntryType:      e.EntryType,
			Method:         e.Method,
			Amount:         e.Amount,
			Operator:       e.Operator,
			Origin:         e.Origin,
			CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		})
	}
	return &dto.CashLedgerResponse{
		RegisterID: reg.ID.String(),
		Name:       reg.Name,
		Balance:    reg.Balance,
		LedgerSum:  sum,
		Entries:    out,
	}, nil
}

func (s *ledgerService) StockLedger(ctx context.Context, productID uuid.UUID) (*dto.StockLedgerResponse, error) {
	entries, err := s.repo.ListStockEntries(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.StockEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.StockEntryResponse{
			DocumentNumber: e.DocumentNumber,
			Direction:      string(e.Direction),
			Quantity:       e.Quantity,
			Reason:         e.Reason,
			CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		})
	}
	return &dto.StockLedgerResponse{ProductID: productID.String(), Entries: out}, nil
}
