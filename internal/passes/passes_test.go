package passes

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermore-events/backend/internal/models"
)

type memStore struct {
	objects map[string][]byte
	failPut error
}

func (m *memStore) PutBytes(ctx context.Context, key, contentType string, data []byte) error {
	if m.failPut != nil {
		return m.failPut
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) PresignedURL(ctx context.Context, key string) (string, error) {
	return "https://bucket.test/" + key + "?sig=1", nil
}

func detail(statuses ...models.InvitationStatus) *models.InvitationDetail {
	code := "ABCD2345"
	d := &models.InvitationDetail{
		Wedding: models.Wedding{ID: uuid.New(), Name: "Grace & Alan", Slug: "grace-alan"},
		Guest:   models.Guest{FirstName: "Ada", LastName: "Lovelace", InviteCode: &code},
	}
	for i, s := range statuses {
		d.Events = append(d.Events, models.InvitationEventView{
			InvitationEvent: models.InvitationEvent{ID: uuid.New(), Status: s, Headcount: 2, EventToken: "evt-" + string(rune('a'+i))},
			EventName:       []string{"Ceremony", "Reception", "Brunch"}[i],
		})
	}
	return d
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestGenerate_OnlyAcceptedEvents(t *testing.T) {
	g := NewGenerator(nil, "https://evermore.test/", nil)
	d := detail(models.StatusAccepted, models.StatusDeclined, models.StatusAccepted)

	out, err := g.Generate(context.Background(), d)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Ceremony", out[0].EventName)
	assert.Equal(t, "Brunch", out[1].EventName)
	assert.True(t, bytes.HasPrefix(out[0].PNG, pngMagic))
	assert.Equal(t, "https://evermore.test/w/grace-alan/check-in/evt-a", out[0].CheckInURL)
	assert.Contains(t, string(out[0].HTML), "Ada Lovelace")
	assert.Contains(t, string(out[0].HTML), "data:image/png;base64,")
	assert.Empty(t, out[0].URL)
	assert.Equal(t, "pass-ceremony.png", out[0].Filename())
}

func TestGenerate_UploadsWhenStoreConfigured(t *testing.T) {
	store := &memStore{}
	g := NewGenerator(store, "https://evermore.test", nil)
	d := detail(models.StatusAccepted)

	out, err := g.Generate(context.Background(), d)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, store.objects, 2)
	assert.True(t, strings.HasPrefix(out[0].URL, "https://bucket.test/passes/"+d.Wedding.ID.String()+"/"))
	assert.True(t, strings.Contains(out[0].URL, ".html"))
}

func TestGenerate_UploadFailureKeepsPass(t *testing.T) {
	g := NewGenerator(&memStore{failPut: errors.New("s3 down")}, "https://evermore.test", nil)

	out, err := g.Generate(context.Background(), detail(models.StatusAccepted))

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].URL)
	assert.NotEmpty(t, out[0].PNG)
}
