package main

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apppkg "github.com/servicedesk/sla-engine/cmd/api/app"
	"github.com/servicedesk/sla-engine/internal/clock"
	"github.com/servicedesk/sla-engine/internal/sla"
	"github.com/servicedesk/sla-engine/internal/store"
	"github.com/servicedesk/sla-engine/internal/telemetry"
)

// Job is a queued worker job; Data is decoded per type.
type Job struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type recalcData struct {
	Reason string `json:"reason"`
}

// Worker keeps stored ticket due dates in line with the SLA configuration.
type Worker struct {
	DB       store.DB
	Source   *store.Source
	Loc      *time.Location
	Fallback sla.Schedule
	Clock    clock.Clock
}

// Summary counts the outcome of one sweep.
type Summary struct {
	Updated  int
	Skipped  int
	Failed   int
	Breached int
}

// Sweep recomputes due dates for every open ticket and stores them.
// Tickets no policy covers are skipped; per-ticket failures are logged and
// counted without stopping the sweep.
func (w *Worker) Sweep(ctx context.Context) (Summary, error) {
	ctx, span := telemetry.Tracer("sla-worker").Start(ctx, "sla.sweep")
	defer span.End()

	var sum Summary
	snap, err := w.Source.Snapshot(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return sum, err
	}
	engine := snap.Engine(w.Loc, w.Fallback)
	tickets, err := store.ListOpenTickets(ctx, w.DB)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return sum, err
	}
	now := w.Clock.Now()
	for _, t := range tickets {
		res, err := engine.ComputeDueDate(t, now)
		if errors.Is(err, sla.ErrNoApplicablePolicy) {
			log.Debug().Int64("ticket", t.ID).Msg("no sla policy applies")
			sum.Skipped++
			continue
		}
		if err != nil {
			log.Error().Err(err).Int64("ticket", t.ID).Msg("compute due date")
			sum.Failed++
			continue
		}
		if err := store.SaveDueDates(ctx, w.DB, t.ID, res.Policy.ID, res.ResponseDueDate, res.DueDate); err != nil {
			log.Error().Err(err).Int64("ticket", t.ID).Msg("save due dates")
			sum.Failed++
			continue
		}
		sum.Updated++
		if res.Remaining.IsOverdue {
			sum.Breached++
			log.Warn().Int64("ticket", t.ID).Int64("policy", res.Policy.ID).
				Time("due", res.DueDate).Msg("resolution SLA breached")
		}
	}
	span.SetAttributes(
		attribute.Int("sla.updated", sum.Updated),
		attribute.Int("sla.skipped", sum.Skipped),
		attribute.Int("sla.failed", sum.Failed),
		attribute.Int("sla.breached", sum.Breached),
	)
	return sum, nil
}

// processQueueJob pops one job, waiting up to timeout. It returns
// redis.Nil when the queue stayed empty.
func processQueueJob(ctx context.Context, rdb *redis.Client, w *Worker, timeout time.Duration) error {
	res, err := rdb.BLPop(ctx, timeout, apppkg.JobsQueue).Result()
	if err != nil {
		return err
	}
	if len(res) < 2 {
		return nil
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		log.Error().Err(err).Msg("unmarshal job")
		return nil
	}
	switch job.Type {
	case apppkg.JobRecalculateSLA:
		var d recalcData
		if len(job.Data) > 0 {
			if err := json.Unmarshal(job.Data, &d); err != nil {
				log.Warn().Err(err).Msg("unmarshal recalculate job")
			}
		}
		// the API drops the cache on change; drop it again in case the
		// job raced a refill from an older read
		w.Source.Invalidate(ctx)
		sum, err := w.Sweep(ctx)
		if err != nil {
			return err
		}
		log.Info().Str("reason", d.Reason).Int("updated", sum.Updated).Int("breached", sum.Breached).Msg("sla recalculated")
	default:
		log.Warn().Str("type", job.Type).Msg("unknown job type")
	}
	return nil
}
