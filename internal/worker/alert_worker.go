package worker

// alert_worker.go
// Consumes the alerts queue: operator notifications for states that must
// never pass silently — above all a document that consumed a legal number
// but could not be persisted.

import (
	"context"
	"encoding/json"

	"numera/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// AlertWorker sends operator alerts by email.
type AlertWorker struct {
	mailer *infra.Mailer
}

func NewAlertWorker(mailer *infra.Mailer) *AlertWorker {
	return &AlertWorker{mailer: mailer}
}

func (w *AlertWorker) Process(ctx context.Context, rdb *redis.Client, job Job) {
	var payload AlertJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		log.Error().Err(err).Msg("alert_worker: malformed payload")
		SendToDLQ(ctx, rdb, QueueAlerts, job.Type, job.Payload, "malformed payload", 0)
		return
	}

	if w.mailer == nil {
		// No SMTP configured: the alert still reaches the logs at error level.
		log.Error().
			Str("subject", payload.Subject).
			Str("body", payload.Body).
			Msg("alert_worker: SMTP not configured, alert logged only")
		return
	}

	if err := w.mailer.SendAlert(payload.Subject, payload.Body); err != nil {
		log.Error().Err(err).Str("subject", payload.Subject).Msg("alert_worker: failed to send alert")
		SendToDLQ(ctx, rdb, QueueAlerts, job.Type, job.Payload, err.Error(), 1)
		return
	}

	log.Info().Str("subject", payload.Subject).Msg("alert_worker: alert sent")
}
