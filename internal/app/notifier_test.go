package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/config"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/internal/notifications"
)

type oneInvitation struct{ d *models.InvitationDetail }

func (o oneInvitation) GetDetail(ctx context.Context, weddingID, id uuid.UUID) (*models.InvitationDetail, error) {
	return o.d, nil
}

func (o oneInvitation) ListInvitationIDs(ctx context.Context, weddingID uuid.UUID) ([]uuid.UUID, error) {
	return []uuid.UUID{o.d.Invitation.ID}, nil
}

type phoneChannels struct{}

func (phoneChannels) GetConfig(ctx context.Context, weddingID uuid.UUID) (models.WeddingConfig, error) {
	return models.WeddingConfig{SMSNotificationsEnabled: true, WhatsAppNotificationsEnabled: true}, nil
}

type countingSMS struct{ sent []string }

func (c *countingSMS) Send(ctx context.Context, to, body string) notifications.SendResult {
	c.sent = append(c.sent, to)
	return notifications.SendResult{Success: true, MessageID: "SM1"}
}

func defaultEnv(t *testing.T) *config.Config {
	t.Helper()
	for _, key := range []string{"WHATSAPP_ENABLED", "WHATSAPP_ASSUME_REGISTERED", "SMTP_HOST", "SMS_ACCOUNT_SID"} {
		t.Setenv(key, "")
	}
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewNotifier_WithoutWhatsAppDeviceFallsBackToSMS(t *testing.T) {
	cfg := defaultEnv(t)
	require.True(t, cfg.WhatsApp.AssumeRegistered)

	n := NewNotifier(context.Background(), cfg, nil, NotifierDeps{}, zap.NewNop())
	require.Nil(t, n.WhatsApp)

	registered, err := n.Service.Checker.IsRegistered(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.False(t, registered)

	wedding := models.Wedding{ID: uuid.New(), Name: "Grace & Alan", Slug: "grace-alan"}
	inv := models.Invitation{ID: uuid.New(), WeddingID: wedding.ID, GuestID: uuid.New(), Token: "tok"}
	detail := &models.InvitationDetail{
		Invitation: inv,
		Guest:      models.Guest{ID: inv.GuestID, WeddingID: wedding.ID, FirstName: "Ada", Phone: "+15551234567"},
		Wedding:    wedding,
		Events: []models.InvitationEventView{
			{InvitationEvent: models.InvitationEvent{ID: uuid.New(), EventID: uuid.New(), InvitationID: inv.ID, Status: models.StatusPending, Headcount: 1}, EventName: "Ceremony"},
		},
	}
	sms := &countingSMS{}
	svc := n.Service
	svc.Loader = oneInvitation{d: detail}
	svc.Configs = phoneChannels{}
	svc.SMS = sms
	svc.Gate = nil
	svc.Logs = nil
	svc.Auditor = nil

	res, err := svc.SendInvitationNotification(context.Background(), notifications.Request{WeddingID: wedding.ID, InvitationID: inv.ID})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, models.ChannelSMS, res.Results[0].Channel)
	assert.Equal(t, notifications.StatusSuccess, res.Results[0].Status)
	assert.Equal(t, []string{"+15551234567"}, sms.sent)
}

func TestRegistrationChecker_NoDeviceIsNeverRegistered(t *testing.T) {
	cfg := defaultEnv(t)
	cfg.WhatsApp.AssumeRegistered = true
	assert.Equal(t, notifications.ConfiguredChecker{Configured: false}, registrationChecker(cfg, nil, nil, zap.NewNop()))

	cfg.WhatsApp.AssumeRegistered = false
	assert.Equal(t, notifications.ConfiguredChecker{Configured: false}, registrationChecker(cfg, nil, nil, zap.NewNop()))
}
