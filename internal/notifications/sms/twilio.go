// Package sms sends text messages through Twilio.
package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/notifications"
	"github.com/evermore-events/backend/internal/phone"
)

// Config holds API credentials.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string
}

// messageAPI is the part of the Twilio REST client the sender uses.
type messageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Sender implements notifications.SMSSender.
type Sender struct {
	from   string
	api    messageAPI
	logger *zap.Logger
}

// NewSender creates a sender backed by the Twilio REST API.
func NewSender(cfg Config, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Sender{from: cfg.From, api: rest.Api, logger: logger}
}

type created struct {
	msg *openapi.ApiV2010Message
	err error
}

// Send creates one message. to must be E.164. The Twilio client has no context support, so
// the call is abandoned (not cancelled) when ctx ends first.
func (s *Sender) Send(ctx context.Context, to, body string) notifications.SendResult {
	if !phone.ValidateE164(to) {
		return notifications.Failed(phone.ErrInvalid)
	}
	if err := ctx.Err(); err != nil {
		return notifications.Failed(err)
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	done := make(chan created, 1)
	go func() {
		msg, err := s.api.CreateMessage(params)
		done <- created{msg: msg, err: err}
	}()

	var out created
	select {
	case <-ctx.Done():
		return notifications.Failed(fmt.Errorf("sms request: %w", ctx.Err()))
	case out = <-done:
	}

	if out.err != nil {
		var apiErr *twilioclient.TwilioRestError
		if errors.As(out.err, &apiErr) {
			s.logger.Warn("sms api rejected message", zap.Int("status", apiErr.Status), zap.Int("code", apiErr.Code), zap.String("reason", apiErr.Message))
			return notifications.Failed(fmt.Errorf("sms api %d: %s", apiErr.Status, apiErr.Message))
		}
		return notifications.Failed(fmt.Errorf("sms request: %w", out.err))
	}
	if out.msg == nil || out.msg.Sid == nil {
		return notifications.Failed(errors.New("sms api returned no message sid"))
	}
	return notifications.SendResult{Success: true, MessageID: *out.msg.Sid}
}
