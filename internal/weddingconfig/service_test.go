package weddingconfig

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/models"
)

type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]map[string]string
	err  error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[uuid.UUID]map[string]string)}
}

func (m *memStore) ListRows(ctx context.Context, weddingID uuid.UUID) ([]models.ConfigRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.ConfigRow
	for k, v := range m.rows[weddingID] {
		out = append(out, models.ConfigRow{Key: k, Value: v})
	}
	return out, nil
}

func (m *memStore) Apply(ctx context.Context, weddingID uuid.UUID, set map[string]string, del []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[weddingID] == nil {
		m.rows[weddingID] = make(map[string]string)
	}
	for k, v := range set {
		m.rows[weddingID][k] = v
	}
	for _, k := range del {
		delete(m.rows[weddingID], k)
	}
	return nil
}

func (m *memStore) DeleteAll(ctx context.Context, weddingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, weddingID)
	return nil
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAuditor) Log(ctx context.Context, e audit.Entry) besteffort.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return besteffort.Outcome{OK: true}
}

func TestParse_Defaults(t *testing.T) {
	cfg := Defaults()
	assert.False(t, cfg.PlusOnesEnabled)
	assert.Equal(t, 1, cfg.MaxPartySize)
	assert.True(t, cfg.RSVPEnabled)
	assert.True(t, cfg.AccessCodeEnabled)
	assert.True(t, cfg.AccessCodeRequiredRSVP)
	assert.True(t, cfg.AccessCodeRequiredPass)
	assert.True(t, cfg.AccessCodeRequiredDetails)
	assert.False(t, cfg.EmailNotificationsEnabled)
	assert.Nil(t, cfg.RSVPCutoffDate)
	assert.Empty(t, cfg.EnabledChannels())
}

func TestParse_Rules(t *testing.T) {
	cfg := Parse([]models.ConfigRow{
		{Key: KeyPlusOnesEnabled, Value: "TRUE"},
		{Key: KeyEmailNotificationsEnabled, Value: "true"},
		{Key: KeySMSNotificationsEnabled, Value: "yes"},
		{Key: KeyRSVPEnabled, Value: "0"},
		{Key: KeyAccessCodeEnabled, Value: "false"},
		{Key: KeyMaxPartySize, Value: "abc"},
		{Key: KeyInvitationCustomMessage, Value: "undefined"},
		{Key: KeyRSVPAcceptedMessage, Value: "See you there!"},
	})
	assert.False(t, cfg.PlusOnesEnabled, "only the literal true is true")
	assert.True(t, cfg.EmailNotificationsEnabled)
	assert.False(t, cfg.SMSNotificationsEnabled)
	assert.True(t, cfg.RSVPEnabled, "default-true keys only turn off on the literal false")
	assert.False(t, cfg.AccessCodeEnabled)
	assert.Equal(t, 1, cfg.MaxPartySize)
	assert.Nil(t, cfg.InvitationCustomMessage)
	require.NotNil(t, cfg.RSVPAcceptedMessage)
	assert.Equal(t, "See you there!", *cfg.RSVPAcceptedMessage)

	cfg = Parse([]models.ConfigRow{{Key: KeyMaxPartySize, Value: "-3"}})
	assert.Equal(t, 1, cfg.MaxPartySize)
	cfg = Parse([]models.ConfigRow{{Key: KeyMaxPartySize, Value: "6"}})
	assert.Equal(t, 6, cfg.MaxPartySize)
}

func TestEnabledChannelsOrder(t *testing.T) {
	cfg := models.WeddingConfig{SMSNotificationsEnabled: true, WhatsAppNotificationsEnabled: true, EmailNotificationsEnabled: true}
	assert.Equal(t, []string{models.ChannelEmail, models.ChannelWhatsApp, models.ChannelSMS}, cfg.EnabledChannels())
}

func TestGetConfig_ZeroWeddingReturnsDefaults(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("must not be called")
	svc := NewService(store, &recordingAuditor{}, nil)

	cfg, err := svc.GetConfig(context.Background(), uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestUpdateConfig(t *testing.T) {
	store := newMemStore()
	auditor := &recordingAuditor{}
	svc := NewService(store, auditor, nil)
	ctx := context.Background()
	weddingID := uuid.New()
	actor := uuid.New()

	cfg, err := svc.UpdateConfig(ctx, weddingID, &actor, map[string]interface{}{
		KeyPlusOnesEnabled:    true,
		KeyMaxPartySize:       float64(4),
		KeyRSVPCutoffDate:     "2026-06-01",
		KeyRSVPCutoffTimezone: "Europe/Lisbon",
	})
	require.NoError(t, err)
	assert.True(t, cfg.PlusOnesEnabled)
	assert.Equal(t, 4, cfg.MaxPartySize)
	require.NotNil(t, cfg.RSVPCutoffDate)
	assert.Equal(t, "2026-06-01", *cfg.RSVPCutoffDate)

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, audit.ActionConfigUpdated, auditor.entries[0].Action)
	assert.Equal(t, []string{KeyMaxPartySize, KeyPlusOnesEnabled, KeyRSVPCutoffDate, KeyRSVPCutoffTimezone}, auditor.entries[0].Details["keys"])

	// Omitted keys are untouched; empty string clears whitelisted keys.
	cfg, err = svc.UpdateConfig(ctx, weddingID, &actor, map[string]interface{}{KeyRSVPCutoffDate: ""})
	require.NoError(t, err)
	assert.Nil(t, cfg.RSVPCutoffDate)
	assert.Equal(t, 4, cfg.MaxPartySize)
	_, stored := store.rows[weddingID][KeyRSVPCutoffDate]
	assert.False(t, stored)
}

func TestUpdateConfig_Validation(t *testing.T) {
	svc := NewService(newMemStore(), &recordingAuditor{}, nil)
	ctx := context.Background()
	weddingID := uuid.New()

	bad := []map[string]interface{}{
		{"colour_scheme": "blue"},
		{KeyMaxPartySize: float64(0)},
		{KeyMaxPartySize: 2.5},
		{KeyPlusOnesEnabled: "maybe"},
		{KeyPlusOnesEnabled: ""},
		{KeyRSVPCutoffDate: "01/06/2026"},
		{KeyRSVPCutoffTimezone: "Mars/Olympus"},
		{KeyRSVPAcceptedMessage: []string{"x"}},
	}
	for _, partial := range bad {
		_, err := svc.UpdateConfig(ctx, weddingID, nil, partial)
		assert.ErrorIs(t, err, ErrValidation, "%v", partial)
	}
}

func TestResetConfig(t *testing.T) {
	store := newMemStore()
	auditor := &recordingAuditor{}
	svc := NewService(store, auditor, nil)
	ctx := context.Background()
	weddingID := uuid.New()

	_, err := svc.UpdateConfig(ctx, weddingID, nil, map[string]interface{}{KeyRSVPEnabled: false})
	require.NoError(t, err)

	cfg, err := svc.ResetConfig(ctx, weddingID, nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, audit.ActionConfigReset, auditor.entries[len(auditor.entries)-1].Action)
}

func TestRSVPOpen(t *testing.T) {
	date := "2026-06-01"
	tz := "America/New_York"
	cfg := models.WeddingConfig{RSVPEnabled: true, RSVPCutoffDate: &date, RSVPCutoffTimezone: &tz}
	ny, err := time.LoadLocation(tz)
	require.NoError(t, err)

	assert.True(t, RSVPOpen(cfg, time.Date(2026, 6, 1, 23, 59, 0, 0, ny)))
	assert.False(t, RSVPOpen(cfg, time.Date(2026, 6, 2, 0, 0, 1, 0, ny)))
	// 02:00 UTC on June 2nd is still June 1st in New York.
	assert.True(t, RSVPOpen(cfg, time.Date(2026, 6, 2, 2, 0, 0, 0, time.UTC)))

	cfg.RSVPEnabled = false
	assert.False(t, RSVPOpen(cfg, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))

	assert.True(t, RSVPOpen(models.WeddingConfig{RSVPEnabled: true}, time.Now()))
}
