package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermore-events/backend/internal/models"
)

type memStore struct {
	mu   sync.Mutex
	rows []models.AuditLog
	err  error
}

func (m *memStore) Insert(ctx context.Context, l *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	l.ID = uuid.New()
	m.rows = append(m.rows, *l)
	return nil
}

func (m *memStore) List(ctx context.Context, weddingID uuid.UUID, action string, limit, offset int) ([]models.AuditLog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows, len(m.rows), nil
}

func TestWriter_Log(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, nil)
	weddingID := uuid.New()
	actor := uuid.New()

	out := w.Log(context.Background(), Entry{
		WeddingID: weddingID,
		Action:    ActionConfigUpdated,
		Details:   map[string]interface{}{"keys": []string{"max_party_size"}},
		Actor:     &actor,
		IP:        "10.0.0.1",
	})
	require.True(t, out.OK)
	require.Len(t, store.rows, 1)

	row := store.rows[0]
	assert.Equal(t, ActionConfigUpdated, row.Action)
	require.NotNil(t, row.WeddingID)
	assert.Equal(t, weddingID, *row.WeddingID)
	assert.Equal(t, &actor, row.Actor)

	var details map[string][]string
	require.NoError(t, json.Unmarshal(row.Details, &details))
	assert.Equal(t, []string{"max_party_size"}, details["keys"])
}

func TestWriter_LogSwallowsStoreFailure(t *testing.T) {
	w := NewWriter(&memStore{err: errors.New("db down")}, nil)
	out := w.Log(context.Background(), Entry{Action: ActionRSVPSubmitted})
	assert.False(t, out.OK)
	assert.Error(t, out.Err)
}

func TestWriter_LogSurvivesCancelledRequest(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := w.Log(ctx, Entry{Action: ActionRSVPSubmitted})
	assert.True(t, out.OK)
	assert.Len(t, store.rows, 1)
}
