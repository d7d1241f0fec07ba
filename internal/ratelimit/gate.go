// Package ratelimit caps how many notifications one invitation may receive per calendar day.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultDailyLimit is the number of sends allowed per invitation per day.
const DefaultDailyLimit = 3

// ErrRateLimited is returned when an invitation has used up today's sends.
var ErrRateLimited = errors.New("daily notification limit reached for this invitation, try again tomorrow")

// Counter counts logged send attempts for an invitation token in [from, to).
// An empty channel counts every channel.
type Counter interface {
	CountSends(ctx context.Context, weddingID uuid.UUID, token, channel string, from, to time.Time) (int, error)
}

// Gate checks the per-invitation daily limit. Days are local wall-clock calendar days,
// matching how sent_at is written.
type Gate struct {
	counter Counter
	limit   int
	now     func() time.Time
}

// NewGate creates a gate. limit <= 0 uses DefaultDailyLimit.
func NewGate(counter Counter, limit int) *Gate {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Gate{counter: counter, limit: limit, now: time.Now}
}

// Limit returns the configured daily limit.
func (g *Gate) Limit() int { return g.limit }

// Today returns the bounds of the current local calendar day.
func (g *Gate) Today() (time.Time, time.Time) {
	now := g.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

// CanSend reports whether another send for token on channel is allowed today.
// Every logged attempt counts, successful or not.
func (g *Gate) CanSend(ctx context.Context, weddingID uuid.UUID, token, channel string) (bool, error) {
	from, to := g.Today()
	n, err := g.counter.CountSends(ctx, weddingID, token, channel, from, to)
	if err != nil {
		return false, fmt.Errorf("count sends: %w", err)
	}
	return n < g.limit, nil
}

// Check is CanSend returning ErrRateLimited when the limit is reached.
func (g *Gate) Check(ctx context.Context, weddingID uuid.UUID, token, channel string) error {
	ok, err := g.CanSend(ctx, weddingID, token, channel)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}
