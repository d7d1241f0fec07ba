package invitations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/models"
)

// memStore is an in-memory Store keyed like the SQL schema.
type memStore struct {
	mu          sync.Mutex
	guests      map[uuid.UUID]*models.Guest
	events      map[uuid.UUID]uuid.UUID // event id -> wedding id
	invitations map[uuid.UUID]*models.Invitation
	invEvents   map[uuid.UUID]*models.InvitationEvent
	history     map[uuid.UUID]int // invitation event id -> rsvp rows
	codes       map[string]bool

	rsvpDeleteErr error
	assignErrs    []error
}

func newMemStore() *memStore {
	return &memStore{
		guests:      make(map[uuid.UUID]*models.Guest),
		events:      make(map[uuid.UUID]uuid.UUID),
		invitations: make(map[uuid.UUID]*models.Invitation),
		invEvents:   make(map[uuid.UUID]*models.InvitationEvent),
		history:     make(map[uuid.UUID]int),
		codes:       make(map[string]bool),
	}
}

func (m *memStore) addGuest(weddingID uuid.UUID, total *int) *models.Guest {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := &models.Guest{ID: uuid.New(), WeddingID: weddingID, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", TotalGuests: total}
	m.guests[g.ID] = g
	return g
}

func (m *memStore) addEvent(weddingID uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.events[id] = weddingID
	return id
}

func (m *memStore) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[code], nil
}

func (m *memStore) AssignInviteCode(ctx context.Context, weddingID, guestID uuid.UUID, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.assignErrs) > 0 {
		err := m.assignErrs[0]
		m.assignErrs = m.assignErrs[1:]
		if err != nil {
			return "", err
		}
	}
	g, ok := m.guests[guestID]
	if !ok || g.WeddingID != weddingID {
		return "", ErrNotFound
	}
	if g.InviteCode != nil {
		return *g.InviteCode, nil
	}
	if m.codes[code] {
		return "", ErrCodeCollision
	}
	m.codes[code] = true
	g.InviteCode = &code
	return code, nil
}

func (m *memStore) GetGuest(ctx context.Context, weddingID, guestID uuid.UUID) (*models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guests[guestID]
	if !ok || g.WeddingID != weddingID {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memStore) EventIDsInWedding(ctx context.Context, weddingID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if m.events[id] == weddingID {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memStore) GetInvitation(ctx context.Context, weddingID, id uuid.UUID) (*models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok || inv.WeddingID != weddingID {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memStore) GetInvitationByGuest(ctx context.Context, weddingID, guestID uuid.UUID) (*models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.WeddingID == weddingID && inv.GuestID == guestID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.invitations {
		if other.GuestID == inv.GuestID {
			return ErrGuestHasInvitation
		}
	}
	inv.ID = uuid.New()
	inv.CreatedAt = time.Now()
	cp := *inv
	m.invitations[inv.ID] = &cp
	return nil
}

func (m *memStore) UpdateInvitationGuest(ctx context.Context, weddingID, id, guestID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok || inv.WeddingID != weddingID {
		return ErrNotFound
	}
	inv.GuestID = guestID
	return nil
}

func (m *memStore) SetInvitationToken(ctx context.Context, weddingID, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok || inv.WeddingID != weddingID {
		return ErrNotFound
	}
	inv.Token = token
	return nil
}

func (m *memStore) ListInvitationEvents(ctx context.Context, weddingID, invitationID uuid.UUID) ([]models.InvitationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.InvitationEvent
	for _, e := range m.invEvents {
		if e.WeddingID == weddingID && e.InvitationID == invitationID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) GetInvitationEvent(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.invEvents[id]
	if !ok || e.WeddingID != weddingID {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) ReplaceEvents(ctx context.Context, weddingID, invitationID uuid.UUID, events []models.InvitationEvent, replaceAll bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	replaced := make(map[uuid.UUID]bool)
	for _, e := range events {
		replaced[e.EventID] = true
	}
	for id, e := range m.invEvents {
		if e.InvitationID == invitationID && (replaceAll || replaced[e.EventID]) {
			delete(m.invEvents, id)
		}
	}
	for i := range events {
		events[i].ID = uuid.New()
		cp := events[i]
		m.invEvents[cp.ID] = &cp
	}
	return nil
}

func (m *memStore) UpdateInvitationEvent(ctx context.Context, ev *models.InvitationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invEvents[ev.ID]; !ok {
		return ErrNotFound
	}
	cp := *ev
	m.invEvents[ev.ID] = &cp
	return nil
}

func (m *memStore) UpdateHeadcounts(ctx context.Context, weddingID uuid.UUID, headcounts map[uuid.UUID]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range headcounts {
		if e, ok := m.invEvents[id]; ok && e.WeddingID == weddingID {
			e.Headcount = n
		}
	}
	return nil
}

func (m *memStore) SetEventToken(ctx context.Context, weddingID, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.invEvents[id]
	if !ok || e.WeddingID != weddingID {
		return ErrNotFound
	}
	e.EventToken = token
	return nil
}

func (m *memStore) DeleteRSVPHistory(ctx context.Context, weddingID uuid.UUID, invitationIDs []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rsvpDeleteErr != nil {
		return 0, m.rsvpDeleteErr
	}
	var n int64
	for _, invID := range invitationIDs {
		for id, e := range m.invEvents {
			if e.InvitationID == invID && e.WeddingID == weddingID {
				n += int64(m.history[id])
				delete(m.history, id)
			}
		}
	}
	return n, nil
}

func (m *memStore) DeleteInvitationEvents(ctx context.Context, weddingID uuid.UUID, invitationIDs []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, invID := range invitationIDs {
		for id, e := range m.invEvents {
			if e.InvitationID == invID && e.WeddingID == weddingID {
				delete(m.invEvents, id)
				n++
			}
		}
	}
	return n, nil
}

func (m *memStore) DeleteInvitations(ctx context.Context, weddingID uuid.UUID, ids []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if inv, ok := m.invitations[id]; ok && inv.WeddingID == weddingID {
			delete(m.invitations, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListInvitations(ctx context.Context, weddingID uuid.UUID, p ListParams) (models.Page[models.InvitationSummary], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page := models.Page[models.InvitationSummary]{Page: p.Page, PageSize: p.PageSize}
	for _, inv := range m.invitations {
		if inv.WeddingID == weddingID {
			page.Items = append(page.Items, models.InvitationSummary{ID: inv.ID, GuestID: inv.GuestID, Token: inv.Token})
		}
	}
	page.Total = len(page.Items)
	return page, nil
}

func (m *memStore) GetDetail(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationDetail, error) {
	m.mu.Lock()
	inv, ok := m.invitations[id]
	m.mu.Unlock()
	if !ok || inv.WeddingID != weddingID {
		return nil, ErrNotFound
	}
	g, err := m.GetGuest(ctx, weddingID, inv.GuestID)
	if err != nil {
		return nil, err
	}
	events, _ := m.ListInvitationEvents(ctx, weddingID, id)
	d := &models.InvitationDetail{Invitation: *inv, Guest: *g}
	for _, e := range events {
		d.Events = append(d.Events, models.InvitationEventView{InvitationEvent: e})
	}
	return d, nil
}

type staticConfig struct{ cfg models.WeddingConfig }

func (s staticConfig) GetConfig(ctx context.Context, weddingID uuid.UUID) (models.WeddingConfig, error) {
	return s.cfg, nil
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
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, weddingID uuid.UUID, event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// sequentialTokens returns tok-1, tok-2, ...
func sequentialTokens() func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("tok-%d", n), nil
	}
}

var errBoom = errors.New("boom")
