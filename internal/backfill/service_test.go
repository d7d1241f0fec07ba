package backfill

import (
	"bytes"
	"context"
	"encoding/csv"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/invitations"
)

// memGuests backs both Store and invitations.CodeStore.
type memGuests struct {
	mu      sync.Mutex
	codes   map[uuid.UUID]string
	emails  map[uuid.UUID]string
	taken   map[string]bool
	failFor uuid.UUID
}

func newMemGuests(n int) *memGuests {
	m := &memGuests{codes: map[uuid.UUID]string{}, emails: map[uuid.UUID]string{}, taken: map[string]bool{}}
	for i := 0; i < n; i++ {
		id := uuid.New()
		m.codes[id] = ""
		m.emails[id] = id.String()[:8] + "@example.com"
	}
	return m
}

func (m *memGuests) ListGuestsMissingCode(ctx context.Context, weddingID, after uuid.UUID, limit int) ([]GuestRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, code := range m.codes {
		if code == "" && bytes.Compare(id[:], after[:]) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]GuestRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, GuestRef{ID: id, Email: m.emails[id]})
	}
	return out, nil
}

func (m *memGuests) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taken[code], nil
}

func (m *memGuests) AssignInviteCode(ctx context.Context, weddingID, guestID uuid.UUID, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if guestID == m.failFor {
		return "", assert.AnError
	}
	if m.taken[code] {
		return "", invitations.ErrCodeCollision
	}
	m.codes[guestID] = code
	m.taken[code] = true
	return code, nil
}

func (m *memGuests) missing() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.codes {
		if c == "" {
			n++
		}
	}
	return n
}

type memLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func newMemLocker() *memLocker { return &memLocker{held: map[string]time.Time{}} }

func (l *memLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.held[key]; ok && time.Now().Before(exp) {
		return nil, false, nil
	}
	l.held[key] = time.Now().Add(ttl)
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true, nil
}

func (l *memLocker) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.held[key]
	if !ok {
		return 0, false, nil
	}
	return time.Until(exp), true, nil
}

type memExporter struct {
	objects map[string][]byte
}

func (e *memExporter) PutBytes(ctx context.Context, key, contentType string, data []byte) error {
	e.objects[key] = data
	return nil
}

func (e *memExporter) PresignedURL(ctx context.Context, key string) (string, error) {
	return "https://bucket/" + key, nil
}

type recordingAuditor struct{ entries []audit.Entry }

func (r *recordingAuditor) Log(ctx context.Context, e audit.Entry) besteffort.Outcome {
	r.entries = append(r.entries, e)
	return besteffort.Outcome{Name: e.Action, OK: true}
}

func newTestService(guests *memGuests, locker Locker, exp Exporter, aud Auditor) *Service {
	return NewService(guests, invitations.NewCodeGenerator(guests, 0), locker, exp, aud, nil, time.Minute, nil)
}

func TestRun_AssignsEveryMissingCodeAcrossBatches(t *testing.T) {
	guests := newMemGuests(120)
	exp := &memExporter{objects: map[string][]byte{}}
	aud := &recordingAuditor{}
	svc := newTestService(guests, newMemLocker(), exp, aud)
	weddingID := uuid.New()

	rep, err := svc.Run(context.Background(), weddingID, nil, Options{BatchSize: 50})

	require.NoError(t, err)
	assert.Equal(t, 120, rep.Generated)
	assert.Zero(t, rep.Failed)
	assert.Len(t, rep.Rows, 120)
	assert.Zero(t, guests.missing())
	seen := map[string]bool{}
	for _, r := range rep.Rows {
		assert.Equal(t, StatusGenerated, r.Status)
		assert.Len(t, r.InviteCode, invitations.InviteCodeLength)
		assert.False(t, seen[r.InviteCode])
		seen[r.InviteCode] = true
	}
	require.Len(t, aud.entries, 1)
	assert.Equal(t, audit.ActionInviteCodeBackfill, aud.entries[0].Action)
	assert.Len(t, exp.objects, 1)
	assert.Contains(t, rep.ExportURL, "exports/"+weddingID.String()+"/")
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	guests := newMemGuests(60)
	svc := newTestService(guests, newMemLocker(), nil, nil)

	rep, err := svc.Run(context.Background(), uuid.New(), nil, Options{BatchSize: 50, DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 60, guests.missing())
	require.Len(t, rep.Rows, 60)
	seen := map[string]bool{}
	for _, r := range rep.Rows {
		assert.Equal(t, StatusWouldGenerate, r.Status)
		assert.False(t, seen[r.InviteCode])
		seen[r.InviteCode] = true
	}
}

func TestRun_FailedGuestIsReportedAndRunContinues(t *testing.T) {
	guests := newMemGuests(3)
	for id := range guests.codes {
		guests.failFor = id
		break
	}
	svc := newTestService(guests, newMemLocker(), nil, nil)

	rep, err := svc.Run(context.Background(), uuid.New(), nil, Options{})

	require.NoError(t, err)
	assert.Equal(t, 2, rep.Generated)
	assert.Equal(t, 1, rep.Failed)
	for _, r := range rep.Rows {
		if r.GuestID == guests.failFor {
			assert.Equal(t, StatusFailed, r.Status)
			assert.NotEmpty(t, r.Error)
		}
	}
}

func TestRun_ConcurrentRunIsRejected(t *testing.T) {
	locker := newMemLocker()
	svc := newTestService(newMemGuests(1), locker, nil, nil)
	weddingID := uuid.New()
	release, ok, err := locker.Acquire(context.Background(), lockKey(weddingID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	st, err := svc.Status(context.Background(), weddingID)
	require.NoError(t, err)
	assert.True(t, st.Running)

	_, err = svc.Run(context.Background(), weddingID, nil, Options{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	release()
	_, err = svc.Run(context.Background(), weddingID, nil, Options{})
	assert.NoError(t, err)

	st, err = svc.Status(context.Background(), weddingID)
	require.NoError(t, err)
	assert.False(t, st.Running, "lock released after run")
}

func TestRun_OptionBounds(t *testing.T) {
	svc := newTestService(newMemGuests(0), newMemLocker(), nil, nil)
	for _, o := range []Options{{BatchSize: 49}, {BatchSize: 5001}, {MaxRetries: 11}, {MaxRetries: -1}} {
		_, err := svc.Run(context.Background(), uuid.New(), nil, o)
		assert.ErrorIs(t, err, ErrValidation, "%+v", o)
	}
}

func TestReport_CSV(t *testing.T) {
	rep := &Report{Rows: []Row{
		{GuestID: uuid.New(), Email: "a@example.com", InviteCode: "ABCD2345", Status: StatusGenerated},
		{GuestID: uuid.New(), Retries: 20, Status: StatusFailed, Error: "could not, really"},
	}}

	data, err := rep.CSV()
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "ABCD2345", records[1][2])
	assert.Equal(t, "20", records[2][3])
	assert.Equal(t, "could not, really", records[2][5])
}
