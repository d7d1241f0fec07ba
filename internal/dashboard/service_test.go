package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermore-events/backend/internal/models"
)

type fakeCounts struct {
	events   []EventSummary
	eventErr error
	block    bool
}

func (f *fakeCounts) EventCounts(ctx context.Context, weddingID uuid.UUID) ([]EventSummary, error) {
	return f.events, f.eventErr
}

func (f *fakeCounts) Totals(ctx context.Context, weddingID uuid.UUID) (Totals, error) {
	if f.block {
		<-ctx.Done()
		return Totals{}, ctx.Err()
	}
	return Totals{Guests: 10, Invitations: 8, GuestsWithoutCode: 2}, nil
}

type fakeStats struct{ panic bool }

func (f fakeStats) Stats(ctx context.Context, weddingID uuid.UUID) ([]models.NotificationStats, error) {
	if f.panic {
		panic("stats exploded")
	}
	return []models.NotificationStats{{Channel: "email", Sent: 5, Failed: 1}}, nil
}

type fakeConfig struct{}

func (fakeConfig) GetConfig(ctx context.Context, weddingID uuid.UUID) (models.WeddingConfig, error) {
	return models.WeddingConfig{RSVPEnabled: true, MaxPartySize: 2}, nil
}

type viewers int

func (v viewers) ViewerCount(uuid.UUID) int { return int(v) }

func TestSummary_AllSections(t *testing.T) {
	counts := &fakeCounts{events: []EventSummary{{Name: "Ceremony", Accepted: 3, AttendingHeadcount: 5}}}
	svc := NewService(counts, fakeStats{}, fakeConfig{}, viewers(2), time.Second, nil)

	out := svc.Summary(context.Background(), uuid.New())

	assert.Empty(t, out.Unavailable)
	require.Len(t, out.Events, 1)
	assert.Equal(t, 5, out.Events[0].AttendingHeadcount)
	assert.Equal(t, 10, out.Totals.Guests)
	assert.Equal(t, 5, out.Notifications[0].Sent)
	require.NotNil(t, out.Config)
	assert.Equal(t, 2, out.Config.MaxPartySize)
	assert.Equal(t, 2, out.LiveViewers)
}

func TestSummary_DegradesPerSection(t *testing.T) {
	counts := &fakeCounts{eventErr: errors.New("db down"), block: true}
	svc := NewService(counts, fakeStats{panic: true}, fakeConfig{}, nil, 20*time.Millisecond, nil)

	start := time.Now()
	out := svc.Summary(context.Background(), uuid.New())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{SectionEvents, SectionTotals, SectionNotifications}, out.Unavailable)
	assert.Equal(t, []EventSummary{}, out.Events)
	assert.Equal(t, Totals{}, out.Totals)
	assert.Equal(t, []models.NotificationStats{}, out.Notifications)
	require.NotNil(t, out.Config, "healthy sections still load")
}
