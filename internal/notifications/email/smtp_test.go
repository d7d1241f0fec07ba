package email

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/evermore-events/backend/internal/notifications"
)

// capture records what would have gone over the wire.
type capture struct {
	raw      string
	deadline time.Time
	err      error
	block    bool
}

func (c *capture) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	c.deadline, _ = ctx.Deadline()
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	var buf bytes.Buffer
	for _, m := range messages {
		if _, err := m.WriteTo(&buf); err != nil {
			return err
		}
	}
	c.raw = buf.String()
	return c.err
}

func newTestSender(t *testing.T, c *capture) *Sender {
	t.Helper()
	s, err := NewSender(Config{Host: "smtp.example.com", Port: 587, FromAddress: "hello@evermore.test", FromName: "Evermore"}, nil)
	require.NoError(t, err)
	s.client = c
	s.encoding = mail.NoEncoding
	return s
}

func TestSend_RendersInvitationTemplate(t *testing.T) {
	c := &capture{}
	s := newTestSender(t, c)
	res := s.Send(context.Background(), notifications.EmailMessage{
		To:         "ada@example.com",
		Subject:    "You're invited",
		TemplateID: notifications.TemplateInvitation,
		Variables: map[string]string{
			"guest_name":   "Ada Lovelace",
			"wedding_name": "Grace & Alan",
			"events":       "Ceremony",
			"link":         "https://evermore.test/w/grace-alan/invitations/tok",
			"invite_code":  "ABCD1234",
		},
	})
	require.True(t, res.Success, "%v", res.Err)
	assert.Contains(t, res.MessageID, "@evermore.test>")
	assert.Contains(t, c.raw, "ada@example.com")
	assert.Contains(t, c.raw, "Dear Ada Lovelace")
	assert.Contains(t, c.raw, "ABCD1234")
	assert.Contains(t, c.raw, "text/html")
	assert.False(t, c.deadline.IsZero())
}

func TestSend_EscapesVariables(t *testing.T) {
	c := &capture{}
	s := newTestSender(t, c)
	res := s.Send(context.Background(), notifications.EmailMessage{
		To:         "ada@example.com",
		TemplateID: notifications.TemplateInvitation,
		Variables:  map[string]string{"guest_name": "<script>x</script>"},
	})
	require.True(t, res.Success)
	assert.NotContains(t, c.raw, "<script>")
}

func TestSend_WithAttachmentIsMultipart(t *testing.T) {
	c := &capture{}
	s := newTestSender(t, c)
	res := s.Send(context.Background(), notifications.EmailMessage{
		To:          "ada@example.com",
		TemplateID:  notifications.TemplateConfirmation,
		Variables:   map[string]string{"response": "accepted"},
		Attachments: []notifications.Attachment{{Filename: "pass.png", ContentType: "image/png", Data: []byte{0x89, 0x50}}},
	})
	require.True(t, res.Success)
	assert.Contains(t, c.raw, "multipart/mixed")
	assert.Contains(t, c.raw, "pass.png")
	assert.Contains(t, c.raw, "image/png")
}

func TestSend_Failures(t *testing.T) {
	s := newTestSender(t, &capture{err: errors.New("421 try later")})
	res := s.Send(context.Background(), notifications.EmailMessage{To: "ada@example.com", TemplateID: notifications.TemplateInvitation})
	assert.False(t, res.Success)
	assert.Contains(t, res.Err.Error(), "421")

	res = s.Send(context.Background(), notifications.EmailMessage{To: "not-an-address", TemplateID: notifications.TemplateInvitation})
	assert.False(t, res.Success)

	res = s.Send(context.Background(), notifications.EmailMessage{To: "ada@example.com", TemplateID: "missing"})
	assert.False(t, res.Success)
}

func TestSend_HungServerIsBoundedByTimeout(t *testing.T) {
	c := &capture{block: true}
	s := newTestSender(t, c)
	s.cfg.Timeout = 20 * time.Millisecond

	start := time.Now()
	res := s.Send(context.Background(), notifications.EmailMessage{To: "ada@example.com", TemplateID: notifications.TemplateInvitation})

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
