package worker

// effects_worker.go
// Consumes the effects queue: each job names one ledger effect that failed
// its synchronous fan-out and must be re-applied. Application is idempotent
// on the service side, so a redelivered job is harmless.

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MaxEffectRetries is the queue-side cap; the reconciliation cron enforces
// the same limit for effects it picks up from the database.
const MaxEffectRetries = 5

// EffectApplier re-applies a persisted ledger effect by id. Implemented by
// the ledger service; declared here so the worker package does not import it.
type EffectApplier interface {
	ApplyByID(ctx context.Context, effectID uuid.UUID) error
}

// EffectsWorker processes effect retry jobs.
type EffectsWorker struct {
	applier EffectApplier
}

func NewEffectsWorker(applier EffectApplier) *EffectsWorker {
	return &EffectsWorker{applier: applier}
}

func (w *EffectsWorker) Process(ctx context.Context, rdb *redis.Client, job Job) {
	var payload EffectJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		log.Error().Err(err).Msg("effects_worker: malformed payload")
		SendToDLQ(ctx, rdb, QueueEffects, job.Type, job.Payload, "malformed payload", 0)
		return
	}

	effectID, err := uuid.Parse(payload.EffectID)
	if err != nil {
		log.Error().Str("effect_id", payload.EffectID).Msg("effects_worker: invalid effect id")
		SendToDLQ(ctx, rdb, QueueEffects, job.Type, job.Payload, "invalid effect id", 0)
		return
	}

	if err := w.applier.ApplyByID(ctx, effectID); err != nil {
		// The cron will pick the effect up from the database on its own
		// schedule; nothing to re-enqueue here.
		log.Warn().
			Err(err).
			Str("effect_id", payload.EffectID).
			Str("kind", payload.Kind).
			Msg("effects_worker: re-application failed, left to reconciliation cron")
		return
	}

	log.Info().
		Str("effect_id", payload.EffectID).
		Str("kind", payload.Kind).
		Msg("effects_worker: effect applied")
}
