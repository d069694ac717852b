package worker

// retry_cron.go
// Background goroutine that periodically re-attempts ledger effects stuck in
// status='failed' with a next_retry_at in the past. This is the reconciliation
// half of the saga: even if the queue loses a retry job, the effect record in
// the database eventually brings the ledgers back in line with the documents.
// Uses the Circuit Breaker to avoid hammering a struggling store.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"numera/internal/infra"
	"numera/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10
)

// RetryCronConfig holds all dependencies for the reconciliation goroutine.
type RetryCronConfig struct {
	LedgerRepo repository.LedgerRepository
	Applier    EffectApplier
	CB         *infra.CircuitBreaker
	RDB        *redis.Client
	Dispatcher *Dispatcher
}

// StartRetryCron launches a background goroutine that ticks every 30s,
// queries failed effects due for retry, and re-applies them through the CB.
// It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	// If CB is open, skip entirely — don't hammer a struggling store
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	effects, err := cfg.LedgerRepo.ListRetryableEffects(ctx, time.Now(), retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query retryable effects")
		return
	}
	if len(effects) == 0 {
		return
	}

	log.Info().Int("count", len(effects)).Msg("retry_cron: processing failed effects")

	for i := range effects {
		eff := &effects[i]

		// Check CB state before each call — it may have tripped mid-batch
		if cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}

		// ApplyByID goes through the CB inside the ledger service.
		err := cfg.Applier.ApplyByID(ctx, eff.ID)
		if err == nil {
			log.Info().
				Str("effect_id", eff.ID.String()).
				Str("kind", string(eff.Kind)).
				Int("total_retries", eff.Attempts).
				Msg("retry_cron: effect applied after retry")
			continue
		}

		attempts := eff.Attempts + 1
		if attempts >= MaxEffectRetries {
			// Exhausted: leave the record failed with no further schedule and
			// park it in the DLQ for manual reconciliation.
			if mfErr := cfg.LedgerRepo.MarkEffectFailed(ctx, eff.ID, err.Error(), nil); mfErr != nil {
				log.Error().Err(mfErr).Str("effect_id", eff.ID.String()).Msg("retry_cron: failed to record exhaustion")
			}
			log.Error().
				Str("effect_id", eff.ID.String()).
				Str("document_id", eff.DocumentID.String()).
				Int("retries", attempts).
				Msg("retry_cron: max retries exceeded, moving to DLQ")

			payload, _ := json.Marshal(EffectJobPayload{EffectID: eff.ID.String(), Kind: string(eff.Kind)})
			SendToDLQ(ctx, cfg.RDB, QueueEffects, "effect_retry", payload,
				fmt.Sprintf("max retries (%d) exceeded: %s", MaxEffectRetries, err.Error()),
				attempts)

			if cfg.Dispatcher != nil {
				_ = cfg.Dispatcher.EnqueueAlert(ctx, AlertJobPayload{
					Subject: fmt.Sprintf("ledger effect %s gave up after %d retries", eff.ID, attempts),
					Body: fmt.Sprintf("Effect %s (kind %s) for document %s exhausted its retries and was parked in the DLQ.\nLast error: %s\nThe ledgers have drifted from the certified documents until it is reconciled manually.",
						eff.ID, eff.Kind, eff.DocumentID, err.Error()),
				})
			}
			continue
		}

		nextRetry := time.Now().Add(computeRetryBackoff(attempts))
		if mfErr := cfg.LedgerRepo.MarkEffectFailed(ctx, eff.ID, err.Error(), &nextRetry); mfErr != nil {
			log.Error().Err(mfErr).Str("effect_id", eff.ID.String()).Msg("retry_cron: failed to reschedule effect")
			continue
		}
		log.Warn().
			Str("effect_id", eff.ID.String()).
			Int("retry_count", attempts).
			Time("next_retry_at", nextRetry).
			Msg("retry_cron: effect retry failed, scheduled next attempt")
	}
}

// computeRetryBackoff grows the delay per attempt: 30s, 1m, 2m, 4m, capped at 10m.
func computeRetryBackoff(attempts int) time.Duration {
	d := 30 * time.Second
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return d
}
