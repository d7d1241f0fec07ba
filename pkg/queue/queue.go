package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueNotifications is the Redis list key for bulk invitation send jobs.
	QueueNotifications = "worker:notifications"
	// QueueBackfill is the Redis list key for invite-code backfill jobs.
	QueueBackfill = "worker:backfill"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeBulkNotification   JobType = "bulk_notification"
	JobTypeInviteCodeBackfill JobType = "invite_code_backfill"
)

// BulkNotificationPayload asks the worker to send invitations for many invitations sequentially.
type BulkNotificationPayload struct {
	WeddingID       uuid.UUID   `json:"wedding_id"`
	InvitationIDs   []uuid.UUID `json:"invitation_ids"`
	Channels        []string    `json:"channels,omitempty"`
	IgnoreRateLimit bool        `json:"ignore_rate_limit"`
	Actor           *uuid.UUID  `json:"actor,omitempty"`
}

// BackfillPayload asks the worker to assign invite codes to guests missing one.
type BackfillPayload struct {
	WeddingID  uuid.UUID  `json:"wedding_id"`
	BatchSize  int        `json:"batch_size"`
	MaxRetries int        `json:"max_retries"`
	DryRun     bool       `json:"dry_run"`
	Actor      *uuid.UUID `json:"actor,omitempty"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueBulkNotification enqueues a bulk send job and returns its id.
func (q *Queue) EnqueueBulkNotification(ctx context.Context, payload BulkNotificationPayload) (string, error) {
	return q.enqueue(ctx, QueueNotifications, JobTypeBulkNotification, payload)
}

// EnqueueBackfill enqueues an invite-code backfill job and returns its id.
func (q *Queue) EnqueueBackfill(ctx context.Context, payload BackfillPayload) (string, error) {
	return q.enqueue(ctx, QueueBackfill, JobTypeInviteCodeBackfill, payload)
}

func (q *Queue) enqueue(ctx context.Context, key string, typ JobType, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return "", fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(typ)))
	return job.ID, nil
}

// Dequeue blocks until a job is available on any worker queue or ctx is done.
// Returns the job and the list it came from.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueNotifications, QueueBackfill).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job onto its source list with incremented attempt.
// If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job, key string) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Requeue puts a job back on its source list without counting an attempt. Used when a job
// was interrupted by shutdown rather than failing.
func (q *Queue) Requeue(ctx context.Context, job *Job, key string) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job requeued", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
