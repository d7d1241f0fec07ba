package backfill

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/pkg/queue"
)

type memJobs struct{ payloads []queue.BackfillPayload }

func (m *memJobs) EnqueueBackfill(ctx context.Context, payload queue.BackfillPayload) (string, error) {
	m.payloads = append(m.payloads, payload)
	return "job-1", nil
}

func postBackfill(h *Handler, weddingID uuid.UUID, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextWeddingID, weddingID) })
	r.POST("/backfill", h.Run)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/backfill", strings.NewReader(body)))
	return rec
}

func TestHandlerRun_AsyncRejectedWhileLockHeld(t *testing.T) {
	locker := newMemLocker()
	jobs := &memJobs{}
	h := NewHandler(newTestService(newMemGuests(2), locker, nil, nil), jobs, nil)
	weddingID := uuid.New()

	release, ok, err := locker.Acquire(context.Background(), lockKey(weddingID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	rec := postBackfill(h, weddingID, `{"async":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already running")
	assert.Empty(t, jobs.payloads)

	release()
	rec = postBackfill(h, weddingID, `{"async":true,"dry_run":true}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, jobs.payloads, 1)
	assert.Equal(t, weddingID, jobs.payloads[0].WeddingID)
	assert.True(t, jobs.payloads[0].DryRun)
}

func TestHandlerRun_SyncConflictWhileLockHeld(t *testing.T) {
	locker := newMemLocker()
	h := NewHandler(newTestService(newMemGuests(1), locker, nil, nil), nil, nil)
	weddingID := uuid.New()
	_, ok, err := locker.Acquire(context.Background(), lockKey(weddingID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	rec := postBackfill(h, weddingID, `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
