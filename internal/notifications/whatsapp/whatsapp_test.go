package whatsapp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/notifications"
)

type fakeClient struct {
	registered map[string]bool
	lookupErr  error
	sendErr    error
	sent       []string
}

func (f *fakeClient) IsOnWhatsApp(ctx context.Context, phones []string) ([]types.IsOnWhatsAppResponse, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var out []types.IsOnWhatsAppResponse
	for _, p := range phones {
		out = append(out, types.IsOnWhatsAppResponse{
			Query: p,
			JID:   types.NewJID(p[1:], types.DefaultUserServer),
			IsIn:  f.registered[p],
		})
	}
	return out, nil
}

func (f *fakeClient) SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error) {
	if f.sendErr != nil {
		return whatsmeow.SendResponse{}, f.sendErr
	}
	f.sent = append(f.sent, message.GetConversation())
	return whatsmeow.SendResponse{ID: "MSG1"}, nil
}

func newTestSender(t *testing.T, fc *fakeClient) *Sender {
	t.Helper()
	tpl, err := NewTemplates(nil)
	require.NoError(t, err)
	return newSender(fc, tpl, zap.NewNop())
}

func TestSend_RendersTemplate(t *testing.T) {
	fc := &fakeClient{registered: map[string]bool{"+15551234567": true}}
	s := newTestSender(t, fc)

	res := s.Send(context.Background(), notifications.WhatsAppMessage{
		To:         "+15551234567",
		TemplateID: notifications.TemplateInvitation,
		Variables:  map[string]string{"guest_name": "Ada", "wedding_name": "Grace & Alan", "link": "https://x/y"},
	})
	require.True(t, res.Success, "%v", res.Err)
	assert.Equal(t, "MSG1", res.MessageID)
	require.Len(t, fc.sent, 1)
	assert.Contains(t, fc.sent[0], "Dear Ada")
	assert.Contains(t, fc.sent[0], "https://x/y")
}

func TestSend_FreeformBody(t *testing.T) {
	fc := &fakeClient{registered: map[string]bool{"+15551234567": true}}
	s := newTestSender(t, fc)
	res := s.Send(context.Background(), notifications.WhatsAppMessage{To: "+15551234567", Body: "see you there"})
	require.True(t, res.Success)
	assert.Equal(t, []string{"see you there"}, fc.sent)
}

func TestSend_Failures(t *testing.T) {
	fc := &fakeClient{registered: map[string]bool{}}
	s := newTestSender(t, fc)

	res := s.Send(context.Background(), notifications.WhatsAppMessage{To: "+15551234567", Body: "x"})
	assert.False(t, res.Success, "unregistered")

	res = s.Send(context.Background(), notifications.WhatsAppMessage{To: "0555", Body: "x"})
	assert.False(t, res.Success, "invalid number")

	res = s.Send(context.Background(), notifications.WhatsAppMessage{To: "+15551234567", TemplateID: "nope"})
	assert.False(t, res.Success, "unknown template")

	fc.registered["+15551234567"] = true
	fc.sendErr = errors.New("boom")
	res = s.Send(context.Background(), notifications.WhatsAppMessage{To: "+15551234567", Body: "x"})
	assert.False(t, res.Success)
	assert.Empty(t, fc.sent)
}

func TestIsRegistered(t *testing.T) {
	fc := &fakeClient{registered: map[string]bool{"+15551234567": true}}
	s := newTestSender(t, fc)

	ok, err := s.IsRegistered(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsRegistered(context.Background(), "+15557654321")
	require.NoError(t, err)
	assert.False(t, ok)

	fc.lookupErr = errors.New("offline")
	_, err = s.IsRegistered(context.Background(), "+15551234567")
	assert.Error(t, err)
}

func TestTemplates_Extra(t *testing.T) {
	tpl, err := NewTemplates(map[string]string{"save_the_date": "Save the date, {{.first_name}}!"})
	require.NoError(t, err)
	out, err := tpl.Render("save_the_date", map[string]string{"first_name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Save the date, Ada!", out)
}
