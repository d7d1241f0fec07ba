// Package worker drains the Redis job queue: bulk invitation sends and invite-code backfills.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/backfill"
	"github.com/evermore-events/backend/internal/notifications"
	"github.com/evermore-events/backend/pkg/queue"
)

// JobSource is the queue the processor drains.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job, key string) error
	Requeue(ctx context.Context, job *queue.Job, key string) error
}

var (
	// errInterrupted marks a job stopped by shutdown; its payload holds only the unfinished work.
	errInterrupted = errors.New("job interrupted")
	// errUnknownJob is never retried.
	errUnknownJob = errors.New("unknown job type")
)

// BulkSender runs bulk invitation sends.
type BulkSender interface {
	SendBulk(ctx context.Context, req notifications.BulkRequest) (*notifications.BulkResult, error)
}

// Backfiller runs invite-code backfills.
type Backfiller interface {
	Run(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, opts backfill.Options) (*backfill.Report, error)
}

// Processor executes queued jobs.
type Processor struct {
	jobs     JobSource
	sender   BulkSender
	backfill Backfiller
	backoff  time.Duration
	logger   *zap.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(jobs JobSource, sender BulkSender, bf Backfiller, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{jobs: jobs, sender: sender, backfill: bf, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeBulkNotification:
		var payload queue.BulkNotificationPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		res, err := p.sender.SendBulk(ctx, notifications.BulkRequest{
			WeddingID:       payload.WeddingID,
			InvitationIDs:   payload.InvitationIDs,
			Channels:        payload.Channels,
			IgnoreRateLimit: payload.IgnoreRateLimit,
			Actor:           payload.Actor,
		})
		if err != nil {
			if res != nil && len(res.Remaining) > 0 && ctx.Err() != nil {
				return p.narrowBulk(job, payload, res)
			}
			return fmt.Errorf("bulk send: %w", err)
		}
		p.logger.Info("bulk send completed",
			zap.String("job_id", job.ID),
			zap.String("wedding_id", payload.WeddingID.String()),
			zap.Int("total", res.Total),
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed),
		)
		return nil

	case queue.JobTypeInviteCodeBackfill:
		var payload queue.BackfillPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		rep, err := p.backfill.Run(ctx, payload.WeddingID, payload.Actor, backfill.Options{
			BatchSize:  payload.BatchSize,
			MaxRetries: payload.MaxRetries,
			DryRun:     payload.DryRun,
		})
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		p.logger.Info("backfill completed",
			zap.String("job_id", job.ID),
			zap.String("wedding_id", payload.WeddingID.String()),
			zap.Int("generated", rep.Generated),
			zap.Int("failed", rep.Failed),
			zap.String("export_url", rep.ExportURL),
		)
		return nil
	}
	return fmt.Errorf("%w: %s", errUnknownJob, job.Type)
}

// narrowBulk rewrites job to cover only the invitations a cancelled bulk send never reached,
// so already-notified guests are not sent the invitation again.
func (p *Processor) narrowBulk(job *queue.Job, payload queue.BulkNotificationPayload, res *notifications.BulkResult) error {
	payload.InvitationIDs = res.Remaining
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal remaining payload: %w", err)
	}
	job.Payload = raw
	return fmt.Errorf("%w: %d sent, %d remaining", errInterrupted, res.Total, len(res.Remaining))
}

// retryable reports whether a failed job should go back on the queue. A backfill that found
// the lock held or had bad options would only fail again or duplicate the running one.
func retryable(err error) bool {
	switch {
	case errors.Is(err, backfill.ErrAlreadyRunning),
		errors.Is(err, backfill.ErrValidation),
		errors.Is(err, errUnknownJob):
		return false
	}
	return true
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, key, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.handleFailure(ctx, job, key, err)
		}
	}
}

// handleFailure requeues, retries or drops a failed job. Queue writes outlive ctx so a job
// cut short by shutdown is not lost.
func (p *Processor) handleFailure(ctx context.Context, job *queue.Job, key string, err error) {
	log := p.logger.With(zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Error(err))
	pushCtx := context.WithoutCancel(ctx)
	switch {
	case errors.Is(err, errInterrupted):
		log.Info("job interrupted, requeueing unfinished work")
		if reErr := p.jobs.Requeue(pushCtx, job, key); reErr != nil {
			log.Error("requeue failed", zap.NamedError("requeue_error", reErr))
		}
	case !retryable(err):
		log.Warn("job dropped")
	default:
		log.Error("job failed")
		if reErr := p.jobs.Retry(pushCtx, job, key); reErr != nil {
			log.Error("retry enqueue failed", zap.NamedError("retry_error", reErr))
		}
		p.sleep(ctx)
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
