package invitations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/models"
)

type fixture struct {
	store     *memStore
	auditor   *recordingAuditor
	publisher *recordingPublisher
	svc       *Service
	wedding   uuid.UUID
}

func newFixture(t *testing.T, cfg models.WeddingConfig) *fixture {
	t.Helper()
	f := &fixture{
		store:     newMemStore(),
		auditor:   &recordingAuditor{},
		publisher: &recordingPublisher{},
		wedding:   uuid.New(),
	}
	f.svc = NewService(f.store, staticConfig{cfg: cfg}, nil, f.auditor, f.publisher, 0, nil)
	f.svc.newToken = sequentialTokens()
	return f
}

func plusOnes(limit int) models.WeddingConfig {
	return models.WeddingConfig{PlusOnesEnabled: true, MaxPartySize: limit}
}

func intPtr(n int) *int { return &n }

func TestCreateForGuests_CreatesInvitationAndCode(t *testing.T) {
	f := newFixture(t, plusOnes(4))
	ctx := context.Background()
	g := f.store.addGuest(f.wedding, intPtr(2))
	ev := f.store.addEvent(f.wedding)

	res, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{g.ID}, []models.EventDef{{EventID: ev, Headcount: 5}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Reused)
	assert.Equal(t, 1, res.Events)

	guest, _ := f.store.GetGuest(ctx, f.wedding, g.ID)
	require.NotNil(t, guest.InviteCode)
	assert.Regexp(t, codePattern, *guest.InviteCode)

	events, _ := f.store.ListInvitationEvents(ctx, f.wedding, res.Invitations[0].ID)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Headcount, "clamped to the guest's household total")
	assert.Equal(t, models.StatusPending, events[0].Status)
	assert.NotEmpty(t, events[0].EventToken)

	assert.Equal(t, []string{audit.ActionInvitationsCreated}, f.auditor.actions())
	assert.Equal(t, []string{LiveEventInvitationsChanged}, f.publisher.events)
}

func TestCreateForGuests_ReusesInvitationAndReplacesRequestedEvents(t *testing.T) {
	f := newFixture(t, plusOnes(4))
	ctx := context.Background()
	g := f.store.addGuest(f.wedding, nil)
	ceremony := f.store.addEvent(f.wedding)
	reception := f.store.addEvent(f.wedding)

	first, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{g.ID}, []models.EventDef{
		{EventID: ceremony, Headcount: 1},
		{EventID: reception, Headcount: 1},
	})
	require.NoError(t, err)
	invID := first.Invitations[0].ID
	before, _ := f.store.ListInvitationEvents(ctx, f.wedding, invID)
	require.Len(t, before, 2)

	second, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{g.ID}, []models.EventDef{{EventID: reception, Headcount: 3}})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Reused)
	assert.Equal(t, invID, second.Invitations[0].ID, "one invitation per guest")

	after, _ := f.store.ListInvitationEvents(ctx, f.wedding, invID)
	require.Len(t, after, 2, "ceremony row untouched, reception row replaced")
	for _, e := range after {
		if e.EventID == reception {
			assert.Equal(t, 3, e.Headcount)
		}
	}
}

func TestCreateForGuests_RejectsForeignEventsAndGuests(t *testing.T) {
	f := newFixture(t, plusOnes(2))
	ctx := context.Background()
	other := uuid.New()
	g := f.store.addGuest(f.wedding, nil)
	foreignGuest := f.store.addGuest(other, nil)
	ev := f.store.addEvent(f.wedding)
	foreignEvent := f.store.addEvent(other)

	_, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{g.ID}, []models.EventDef{{EventID: foreignEvent}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{foreignGuest.ID}, []models.EventDef{{EventID: ev}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{g.ID}, []models.EventDef{{EventID: ev}, {EventID: ev}})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, f.store.invitations)
}

func TestCreateForGuests_PlusOnesDisabledForcesOne(t *testing.T) {
	f := newFixture(t, models.WeddingConfig{PlusOnesEnabled: false, MaxPartySize: 6})
	ctx := context.Background()
	g := f.store.addGuest(f.wedding, intPtr(5))
	ev := f.store.addEvent(f.wedding)

	res, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{g.ID}, []models.EventDef{{EventID: ev, Headcount: 4}})
	require.NoError(t, err)
	events, _ := f.store.ListInvitationEvents(ctx, f.wedding, res.Invitations[0].ID)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Headcount)
}

func TestUpdate_ReassignReclampsHeadcounts(t *testing.T) {
	f := newFixture(t, plusOnes(6))
	ctx := context.Background()
	big := f.store.addGuest(f.wedding, intPtr(5))
	small := f.store.addGuest(f.wedding, intPtr(2))
	ev := f.store.addEvent(f.wedding)

	res, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{big.ID}, []models.EventDef{{EventID: ev, Headcount: 5}})
	require.NoError(t, err)
	invID := res.Invitations[0].ID

	d, err := f.svc.Update(ctx, f.wedding, nil, invID, UpdateInput{GuestID: &small.ID})
	require.NoError(t, err)
	assert.Equal(t, small.ID, d.Invitation.GuestID)
	require.Len(t, d.Events, 1)
	assert.Equal(t, 2, d.Events[0].Headcount)
}

func TestUpdate_ReassignToGuestWithInvitationConflicts(t *testing.T) {
	f := newFixture(t, plusOnes(2))
	ctx := context.Background()
	a := f.store.addGuest(f.wedding, nil)
	b := f.store.addGuest(f.wedding, nil)
	ev := f.store.addEvent(f.wedding)

	res, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{a.ID, b.ID}, []models.EventDef{{EventID: ev}})
	require.NoError(t, err)
	require.Len(t, res.Invitations, 2)

	_, err = f.svc.Update(ctx, f.wedding, nil, res.Invitations[0].ID, UpdateInput{GuestID: &b.ID})
	assert.ErrorIs(t, err, ErrGuestHasInvitation)
}

func TestUpdate_ReplacesAllEventsWithFreshTokens(t *testing.T) {
	f := newFixture(t, plusOnes(3))
	ctx := context.Background()
	g := f.store.addGuest(f.wedding, nil)
	ceremony := f.store.addEvent(f.wedding)
	brunch := f.store.addEvent(f.wedding)

	res, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{g.ID}, []models.EventDef{{EventID: ceremony}})
	require.NoError(t, err)
	invID := res.Invitations[0].ID
	old, _ := f.store.ListInvitationEvents(ctx, f.wedding, invID)

	events := []models.EventDef{{EventID: brunch, Headcount: 9}}
	d, err := f.svc.Update(ctx, f.wedding, nil, invID, UpdateInput{Events: &events})
	require.NoError(t, err)
	require.Len(t, d.Events, 1)
	assert.Equal(t, brunch, d.Events[0].EventID)
	assert.Equal(t, 3, d.Events[0].Headcount)
	assert.NotEqual(t, old[0].EventToken, d.Events[0].EventToken)
}

func TestUpdateEvent_ClearsDietaryUnlessAccepted(t *testing.T) {
	f := newFixture(t, plusOnes(2))
	ctx := context.Background()
	g := f.store.addGuest(f.wedding, nil)
	ev := f.store.addEvent(f.wedding)
	res, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{g.ID}, []models.EventDef{{EventID: ev}})
	require.NoError(t, err)
	rows, _ := f.store.ListInvitationEvents(ctx, f.wedding, res.Invitations[0].ID)
	rowID := rows[0].ID

	accepted := models.StatusAccepted
	vegan := "vegan"
	fish := "fish"
	out, err := f.svc.UpdateEvent(ctx, f.wedding, nil, rowID, EventEdit{Status: &accepted, DietaryRestrictions: &vegan, FoodChoice: &fish, Headcount: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Headcount)
	require.NotNil(t, out.DietaryRestrictions)
	assert.Equal(t, "vegan", *out.DietaryRestrictions)

	declined := models.StatusDeclined
	out, err = f.svc.UpdateEvent(ctx, f.wedding, nil, rowID, EventEdit{Status: &declined})
	require.NoError(t, err)
	assert.Nil(t, out.DietaryRestrictions)
	assert.Nil(t, out.FoodChoice)

	bogus := models.InvitationStatus("maybe")
	_, err = f.svc.UpdateEvent(ctx, f.wedding, nil, rowID, EventEdit{Status: &bogus})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateEvent_OtherWeddingIsNotFound(t *testing.T) {
	f := newFixture(t, plusOnes(2))
	ctx := context.Background()
	g := f.store.addGuest(f.wedding, nil)
	ev := f.store.addEvent(f.wedding)
	res, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{g.ID}, []models.EventDef{{EventID: ev}})
	require.NoError(t, err)
	rows, _ := f.store.ListInvitationEvents(ctx, f.wedding, res.Invitations[0].ID)

	_, err = f.svc.UpdateEvent(ctx, uuid.New(), nil, rows[0].ID, EventEdit{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_ContinuesWhenHistoryDeleteFails(t *testing.T) {
	f := newFixture(t, plusOnes(2))
	ctx := context.Background()
	g := f.store.addGuest(f.wedding, nil)
	ev := f.store.addEvent(f.wedding)
	res, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{g.ID}, []models.EventDef{{EventID: ev}})
	require.NoError(t, err)
	f.store.rsvpDeleteErr = errBoom

	n, err := f.svc.Delete(ctx, f.wedding, nil, []uuid.UUID{res.Invitations[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, f.store.invitations)
	assert.Empty(t, f.store.invEvents)
	assert.Contains(t, f.auditor.actions(), audit.ActionInvitationsDeleted)
}

func TestRegenerateTokens(t *testing.T) {
	f := newFixture(t, plusOnes(2))
	ctx := context.Background()
	g := f.store.addGuest(f.wedding, nil)
	ev := f.store.addEvent(f.wedding)
	res, err := f.svc.CreateForGuests(ctx, f.wedding, nil, []uuid.UUID{g.ID}, []models.EventDef{{EventID: ev}})
	require.NoError(t, err)
	inv := res.Invitations[0]

	token, err := f.svc.RegenerateInviteToken(ctx, f.wedding, nil, inv.ID)
	require.NoError(t, err)
	assert.NotEqual(t, inv.Token, token)
	stored, _ := f.store.GetInvitation(ctx, f.wedding, inv.ID)
	assert.Equal(t, token, stored.Token)

	rows, _ := f.store.ListInvitationEvents(ctx, f.wedding, inv.ID)
	evToken, err := f.svc.RegenerateEventToken(ctx, f.wedding, nil, rows[0].ID)
	require.NoError(t, err)
	row, _ := f.store.GetInvitationEvent(ctx, f.wedding, rows[0].ID)
	assert.Equal(t, evToken, row.EventToken)
	assert.Equal(t, models.StatusPending, row.Status)

	_, err = f.svc.RegenerateInviteToken(ctx, uuid.New(), nil, inv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	last := f.auditor.entries[len(f.auditor.entries)-1]
	assert.Equal(t, audit.ActionEventTokenRotated, last.Action)
	assert.Equal(t, evToken, last.Details["token"])
}
