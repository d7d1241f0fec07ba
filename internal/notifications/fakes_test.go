package notifications

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/invitations"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/internal/ratelimit"
)

type fakeLoader struct {
	details map[uuid.UUID]*models.InvitationDetail
	order   []uuid.UUID
	failFor map[uuid.UUID]error
}

func (f *fakeLoader) GetDetail(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationDetail, error) {
	if err := f.failFor[id]; err != nil {
		return nil, err
	}
	d, ok := f.details[id]
	if !ok || d.Wedding.ID != weddingID {
		return nil, invitations.ErrNotFound
	}
	return d, nil
}

func (f *fakeLoader) ListInvitationIDs(ctx context.Context, weddingID uuid.UUID) ([]uuid.UUID, error) {
	return f.order, nil
}

type staticConfig struct{ cfg models.WeddingConfig }

func (s staticConfig) GetConfig(ctx context.Context, weddingID uuid.UUID) (models.WeddingConfig, error) {
	return s.cfg, nil
}

// countingGate limits each (token, channel) to limit calls.
type countingGate struct {
	mu    sync.Mutex
	limit int
	seen  map[string]int
}

func (g *countingGate) Check(ctx context.Context, weddingID uuid.UUID, token, channel string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen == nil {
		g.seen = map[string]int{}
	}
	k := token + "/" + channel
	if g.seen[k] >= g.limit {
		return ratelimit.ErrRateLimited
	}
	g.seen[k]++
	return nil
}

type memLogs struct {
	mu   sync.Mutex
	rows []models.NotificationLog
}

func (m *memLogs) Insert(ctx context.Context, l *models.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *l)
	return nil
}

func (m *memLogs) channels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.rows {
		out = append(out, r.Channel)
	}
	return out
}

type fakeEmail struct {
	sent  []EmailMessage
	fail  error
	panic bool
}

func (f *fakeEmail) Send(ctx context.Context, msg EmailMessage) SendResult {
	if f.panic {
		panic("smtp exploded")
	}
	if f.fail != nil {
		return Failed(f.fail)
	}
	f.sent = append(f.sent, msg)
	return SendResult{Success: true, MessageID: "email-1"}
}

type fakeSMS struct {
	to   []string
	body []string
	fail error
}

func (f *fakeSMS) Send(ctx context.Context, to, body string) SendResult {
	if f.fail != nil {
		return Failed(f.fail)
	}
	f.to = append(f.to, to)
	f.body = append(f.body, body)
	return SendResult{Success: true, MessageID: "sms-1"}
}

type fakeWhatsApp struct {
	sent []WhatsAppMessage
	fail error
}

func (f *fakeWhatsApp) Send(ctx context.Context, msg WhatsAppMessage) SendResult {
	if f.fail != nil {
		return Failed(f.fail)
	}
	f.sent = append(f.sent, msg)
	return SendResult{Success: true, MessageID: "wa-1"}
}

type fakeChecker struct {
	registered map[string]bool
	err        error
}

func (f fakeChecker) IsRegistered(ctx context.Context, e164 string) (bool, error) {
	return f.registered[e164], f.err
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAuditor) Log(ctx context.Context, e audit.Entry) besteffort.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return besteffort.Outcome{Name: e.Action, OK: true}
}
