package rsvp

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/invitations"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/internal/notifications"
	"github.com/evermore-events/backend/internal/passes"
)

var errBoom = errors.New("boom")

// memStore holds invitations for several weddings and implements Store and Loader.
type memStore struct {
	mu         sync.Mutex
	details    map[uuid.UUID]*models.InvitationDetail // by invitation id
	history    []models.RSVPRecord
	historyErr error
}

func newMemStore() *memStore {
	return &memStore{details: map[uuid.UUID]*models.InvitationDetail{}}
}

func (m *memStore) add(weddingID uuid.UUID, code string, total *int, events ...string) *models.InvitationDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := models.Invitation{ID: uuid.New(), WeddingID: weddingID, GuestID: uuid.New(), Token: "tok-" + code}
	c := code
	d := &models.InvitationDetail{
		Invitation: inv,
		Guest:      models.Guest{ID: inv.GuestID, WeddingID: weddingID, FirstName: "Ada", TotalGuests: total, InviteCode: &c},
		Wedding:    models.Wedding{ID: weddingID, Name: "Grace & Alan", Slug: "grace-alan"},
	}
	for _, name := range events {
		diet := "nuts"
		d.Events = append(d.Events, models.InvitationEventView{
			InvitationEvent: models.InvitationEvent{
				ID: uuid.New(), WeddingID: weddingID, InvitationID: inv.ID, EventID: uuid.New(),
				Status: models.StatusPending, Headcount: 1, EventToken: "evt-" + name, DietaryRestrictions: &diet,
			},
			EventName: name,
		})
	}
	m.details[inv.ID] = d
	return d
}

func (m *memStore) FindByInviteCode(ctx context.Context, code string) (uuid.UUID, uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.details {
		if d.Guest.InviteCode != nil && *d.Guest.InviteCode == code {
			return d.Wedding.ID, d.Invitation.ID, nil
		}
	}
	return uuid.Nil, uuid.Nil, ErrNotFound
}

func (m *memStore) FindByToken(ctx context.Context, weddingID uuid.UUID, token string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.details {
		if d.Wedding.ID == weddingID && d.Invitation.Token == token {
			return d.Invitation.ID, nil
		}
	}
	return uuid.Nil, ErrNotFound
}

func (m *memStore) ApplyResponses(ctx context.Context, weddingID uuid.UUID, updates []models.EventResponseUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		ev := m.findEvent(weddingID, u.InvitationEventID)
		if ev == nil {
			return ErrNotFound
		}
		ev.Status = u.Status
		ev.Headcount = u.Headcount
		ev.DietaryRestrictions = u.DietaryRestrictions
		ev.DietaryInformation = u.DietaryInformation
		ev.FoodChoice = u.FoodChoice
	}
	return nil
}

func (m *memStore) findEvent(weddingID, id uuid.UUID) *models.InvitationEventView {
	for _, d := range m.details {
		if d.Wedding.ID != weddingID {
			continue
		}
		for i := range d.Events {
			if d.Events[i].ID == id {
				return &d.Events[i]
			}
		}
	}
	return nil
}

func (m *memStore) InsertHistory(ctx context.Context, rec *models.RSVPRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return m.historyErr
	}
	rec.ID = uuid.New()
	m.history = append(m.history, *rec)
	return nil
}

// GetDetail returns a deep-enough copy so the service cannot mutate stored rows directly.
func (m *memStore) GetDetail(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.details[id]
	if !ok || d.Wedding.ID != weddingID {
		return nil, invitations.ErrNotFound
	}
	cp := *d
	cp.Events = append([]models.InvitationEventView(nil), d.Events...)
	return &cp, nil
}

func (m *memStore) event(d *models.InvitationDetail, i int) models.InvitationEventView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.details[d.Invitation.ID].Events[i]
}

type staticConfig struct{ cfg models.WeddingConfig }

func (s *staticConfig) GetConfig(ctx context.Context, weddingID uuid.UUID) (models.WeddingConfig, error) {
	return s.cfg, nil
}

type fakePasses struct {
	calls int
	err   error
}

func (f *fakePasses) Generate(ctx context.Context, d *models.InvitationDetail) ([]passes.Pass, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []passes.Pass
	for _, ev := range d.Events {
		if ev.Status == models.StatusAccepted {
			out = append(out, passes.Pass{InvitationEventID: ev.ID, EventName: ev.EventName, URL: "https://passes/" + ev.EventName, PNG: []byte("png")})
		}
	}
	return out, nil
}

type fakeConfirmer struct {
	reqs  []notifications.ConfirmationRequest
	err   error
	panic bool
}

func (f *fakeConfirmer) SendConfirmation(ctx context.Context, req notifications.ConfirmationRequest) (*notifications.OrchestrationResult, error) {
	if f.panic {
		panic("confirmation exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	f.reqs = append(f.reqs, req)
	return &notifications.OrchestrationResult{AnySuccessful: true, AllSuccessful: true}, nil
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

func (r *recordingAuditor) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, weddingID uuid.UUID, event string, payload interface{}) {
	p.events = append(p.events, event)
}
