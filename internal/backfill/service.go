// Package backfill assigns invite codes to guests created before codes existed.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/cache"
	"github.com/evermore-events/backend/internal/invitations"
)

// Option bounds.
const (
	MinBatchSize      = 50
	MaxBatchSize      = 5000
	DefaultBatchSize  = 500
	MinRetries        = 1
	MaxRetries        = 10
	DefaultMaxRetries = 5
)

// Row statuses.
const (
	StatusGenerated     = "generated"
	StatusWouldGenerate = "would_generate"
	StatusFailed        = "failed"
)

var (
	// ErrAlreadyRunning means another backfill holds the wedding's lock.
	ErrAlreadyRunning = errors.New("an invite code backfill is already running for this wedding")
	// ErrValidation wraps out-of-range options.
	ErrValidation = errors.New("validation failed")
)

// GuestRef is a guest without an invite code.
type GuestRef struct {
	ID    uuid.UUID
	Email string
}

// Store lists guests missing a code, keyset-paginated by id.
type Store interface {
	ListGuestsMissingCode(ctx context.Context, weddingID, after uuid.UUID, limit int) ([]GuestRef, error)
}

// Locker is a TTL'd mutual-exclusion lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
}

// Exporter stores CSV reports. Optional.
type Exporter interface {
	PutBytes(ctx context.Context, key, contentType string, data []byte) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

// Auditor is the audit sink.
type Auditor interface {
	Log(ctx context.Context, e audit.Entry) besteffort.Outcome
}

// Options tune a run. Zero values take the defaults.
type Options struct {
	BatchSize  int  `json:"batch_size"`
	MaxRetries int  `json:"max_retries"`
	DryRun     bool `json:"dry_run"`
}

func (o Options) normalize() (Options, error) {
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BatchSize < MinBatchSize || o.BatchSize > MaxBatchSize {
		return o, fmt.Errorf("%w: batch_size must be between %d and %d", ErrValidation, MinBatchSize, MaxBatchSize)
	}
	if o.MaxRetries < MinRetries || o.MaxRetries > MaxRetries {
		return o, fmt.Errorf("%w: max_retries must be between %d and %d", ErrValidation, MinRetries, MaxRetries)
	}
	return o, nil
}

// Row is one guest's outcome.
type Row struct {
	GuestID    uuid.UUID `json:"guest_id"`
	Email      string    `json:"email,omitempty"`
	InviteCode string    `json:"invite_code,omitempty"`
	Retries    int       `json:"retries"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Report summarises a run.
type Report struct {
	WeddingID  uuid.UUID `json:"wedding_id"`
	DryRun     bool      `json:"dry_run"`
	Generated  int       `json:"generated"`
	Failed     int       `json:"failed"`
	Rows       []Row     `json:"rows"`
	ExportURL  string    `json:"export_url,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Status is the lock state for a wedding.
type Status struct {
	Running      bool `json:"running"`
	ExpiresInSec int  `json:"expires_in_seconds,omitempty"`
}

// Service runs backfills.
type Service struct {
	store    Store
	codes    *invitations.CodeGenerator
	locker   Locker
	exporter Exporter
	auditor  Auditor
	cache    *cache.Cache
	lockTTL  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a backfill service. exporter, auditor and c may be nil.
func NewService(store Store, codes *invitations.CodeGenerator, locker Locker, exporter Exporter, auditor Auditor, c *cache.Cache, lockTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &Service{
		store:    store,
		codes:    codes,
		locker:   locker,
		exporter: exporter,
		auditor:  auditor,
		cache:    c,
		lockTTL:  lockTTL,
		logger:   logger,
		now:      time.Now,
	}
}

func lockKey(weddingID uuid.UUID) string {
	return "backfill:invite-codes:" + weddingID.String()
}

// Run assigns codes to every guest of weddingID missing one. In dry-run mode codes are
// proposed but not written. Per-guest failures are reported as rows, not returned.
func (s *Service) Run(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, opts Options) (*Report, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	release, ok, err := s.locker.Acquire(ctx, lockKey(weddingID), s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire backfill lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	defer release()

	rep := &Report{WeddingID: weddingID, DryRun: opts.DryRun, Rows: []Row{}, StartedAt: s.now()}
	gen := s.codes.WithMaxRetries(opts.MaxRetries)
	proposed := map[string]bool{}
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := s.store.ListGuestsMissingCode(ctx, weddingID, after, opts.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("list guests: %w", err)
		}
		for _, g := range batch {
			row := s.process(ctx, gen, weddingID, g, opts.DryRun, proposed)
			if row.Status == StatusFailed {
				rep.Failed++
			} else {
				rep.Generated++
			}
			rep.Rows = append(rep.Rows, row)
		}
		if len(batch) < opts.BatchSize {
			break
		}
		after = batch[len(batch)-1].ID
		s.logger.Debug("backfill batch done", zap.String("wedding_id", weddingID.String()), zap.Int("rows", len(rep.Rows)))
	}
	rep.FinishedAt = s.now()

	if !opts.DryRun && rep.Generated > 0 {
		s.cache.BumpNamespaceVersion(ctx)
	}
	s.export(ctx, rep)
	if s.auditor != nil {
		s.auditor.Log(ctx, audit.Entry{
			WeddingID: weddingID,
			Action:    audit.ActionInviteCodeBackfill,
			Actor:     actor,
			Details: map[string]interface{}{
				"dry_run":   opts.DryRun,
				"generated": rep.Generated,
				"failed":    rep.Failed,
			},
		})
	}
	s.logger.Info("invite code backfill finished",
		zap.String("wedding_id", weddingID.String()),
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("generated", rep.Generated),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}

func (s *Service) process(ctx context.Context, gen *invitations.CodeGenerator, weddingID uuid.UUID, g GuestRef, dryRun bool, proposed map[string]bool) Row {
	row := Row{GuestID: g.ID, Email: g.Email}
	if !dryRun {
		code, retries, err := gen.Ensure(ctx, weddingID, g.ID)
		row.Retries = retries
		if err != nil {
			row.Status, row.Error = StatusFailed, err.Error()
			return row
		}
		row.InviteCode, row.Status = code, StatusGenerated
		return row
	}
	// Nothing is written in a dry run, so proposals must also avoid each other.
	for row.Retries <= gen.MaxRetries() {
		code, retries, err := gen.Propose(ctx)
		row.Retries += retries
		if err != nil {
			row.Status, row.Error = StatusFailed, err.Error()
			return row
		}
		if !proposed[code] {
			proposed[code] = true
			row.InviteCode, row.Status = code, StatusWouldGenerate
			return row
		}
		row.Retries++
	}
	row.Status, row.Error = StatusFailed, invitations.ErrInviteCodeExhausted.Error()
	return row
}

func (s *Service) export(ctx context.Context, rep *Report) {
	if s.exporter == nil || len(rep.Rows) == 0 {
		return
	}
	besteffort.Run(ctx, s.logger, "backfill:export", func(ctx context.Context) error {
		data, err := rep.CSV()
		if err != nil {
			return err
		}
		key := ExportKey(rep)
		if err := s.exporter.PutBytes(ctx, key, "text/csv", data); err != nil {
			return err
		}
		url, err := s.exporter.PresignedURL(ctx, key)
		if err != nil {
			return err
		}
		rep.ExportURL = url
		return nil
	})
}

// Status reports whether a backfill currently holds the wedding's lock.
func (s *Service) Status(ctx context.Context, weddingID uuid.UUID) (Status, error) {
	ttl, held, err := s.locker.TTL(ctx, lockKey(weddingID))
	if err != nil {
		return Status{}, fmt.Errorf("read backfill lock: %w", err)
	}
	if !held {
		return Status{}, nil
	}
	return Status{Running: true, ExpiresInSec: int(ttl.Round(time.Second) / time.Second)}, nil
}
