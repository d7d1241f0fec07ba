// Package dashboard assembles the wedding overview from independent sources. A slow or
// failing source degrades to its fallback instead of failing the page.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/models"
)

// DefaultBudget bounds each source fetch.
const DefaultBudget = 15 * time.Second

// Section names reported in Summary.Unavailable.
const (
	SectionEvents        = "events"
	SectionTotals        = "totals"
	SectionNotifications = "notifications"
	SectionConfig        = "config"
)

// EventSummary is the RSVP breakdown of one event.
type EventSummary struct {
	EventID            uuid.UUID `json:"event_id"`
	Name               string    `json:"name"`
	Pending            int       `json:"pending"`
	Accepted           int       `json:"accepted"`
	Declined           int       `json:"declined"`
	Waitlist           int       `json:"waitlist"`
	AttendingHeadcount int       `json:"attending_headcount"`
}

// Totals are wedding-wide counters.
type Totals struct {
	Guests            int `json:"guests"`
	GuestsWithoutCode int `json:"guests_without_code"`
	Invitations       int `json:"invitations"`
}

// Summary is the dashboard payload. Unavailable lists sections that fell back.
type Summary struct {
	Events        []EventSummary             `json:"events"`
	Totals        Totals                     `json:"totals"`
	Notifications []models.NotificationStats `json:"notifications"`
	Config        *models.WeddingConfig      `json:"config"`
	LiveViewers   int                        `json:"live_viewers"`
	Unavailable   []string                   `json:"unavailable,omitempty"`
}

// Counts is the aggregate source.
type Counts interface {
	EventCounts(ctx context.Context, weddingID uuid.UUID) ([]EventSummary, error)
	Totals(ctx context.Context, weddingID uuid.UUID) (Totals, error)
}

// NotificationStats is the notification log source.
type NotificationStats interface {
	Stats(ctx context.Context, weddingID uuid.UUID) ([]models.NotificationStats, error)
}

// ConfigSource resolves wedding configuration.
type ConfigSource interface {
	GetConfig(ctx context.Context, weddingID uuid.UUID) (models.WeddingConfig, error)
}

// Viewers reports connected live-feed dashboards.
type Viewers interface {
	ViewerCount(weddingID uuid.UUID) int
}

// Service builds summaries.
type Service struct {
	counts  Counts
	stats   NotificationStats
	configs ConfigSource
	viewers Viewers
	budget  time.Duration
	logger  *zap.Logger
}

// NewService creates a dashboard service. viewers may be nil; budget <= 0 uses DefaultBudget.
func NewService(counts Counts, stats NotificationStats, configs ConfigSource, viewers Viewers, budget time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Service{counts: counts, stats: stats, configs: configs, viewers: viewers, budget: budget, logger: logger}
}

// Summary fetches every section concurrently, each under its own budget.
func (s *Service) Summary(ctx context.Context, weddingID uuid.UUID) *Summary {
	out := &Summary{}
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		unavailable = map[string]bool{}
	)
	miss := func(section string, ok bool) {
		if ok {
			return
		}
		mu.Lock()
		unavailable[section] = true
		mu.Unlock()
		s.logger.Warn("dashboard section unavailable", zap.String("section", section), zap.String("wedding_id", weddingID.String()))
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		v, ok := besteffort.WithTimeout(ctx, s.budget, []EventSummary{}, func(ctx context.Context) ([]EventSummary, error) {
			return s.counts.EventCounts(ctx, weddingID)
		})
		out.Events = v
		miss(SectionEvents, ok)
	}()
	go func() {
		defer wg.Done()
		v, ok := besteffort.WithTimeout(ctx, s.budget, Totals{}, func(ctx context.Context) (Totals, error) {
			return s.counts.Totals(ctx, weddingID)
		})
		out.Totals = v
		miss(SectionTotals, ok)
	}()
	go func() {
		defer wg.Done()
		v, ok := besteffort.WithTimeout(ctx, s.budget, []models.NotificationStats{}, func(ctx context.Context) ([]models.NotificationStats, error) {
			return s.stats.Stats(ctx, weddingID)
		})
		out.Notifications = v
		miss(SectionNotifications, ok)
	}()
	go func() {
		defer wg.Done()
		v, ok := besteffort.WithTimeout(ctx, s.budget, (*models.WeddingConfig)(nil), func(ctx context.Context) (*models.WeddingConfig, error) {
			cfg, err := s.configs.GetConfig(ctx, weddingID)
			if err != nil {
				return nil, err
			}
			return &cfg, nil
		})
		out.Config = v
		miss(SectionConfig, ok)
	}()
	wg.Wait()

	if s.viewers != nil {
		out.LiveViewers = s.viewers.ViewerCount(weddingID)
	}
	for _, section := range []string{SectionEvents, SectionTotals, SectionNotifications, SectionConfig} {
		if unavailable[section] {
			out.Unavailable = append(out.Unavailable, section)
		}
	}
	return out
}
