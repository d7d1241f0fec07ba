package sms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type fakeAPI struct {
	params []*openapi.CreateMessageParams
	sid    string
	err    error
	wait   chan struct{}
}

func (f *fakeAPI) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	if f.wait != nil {
		<-f.wait
	}
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := f.sid
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func newTestSender(api *fakeAPI) *Sender {
	return &Sender{from: "+15550000000", api: api, logger: zap.NewNop()}
}

func TestSend_CreatesMessage(t *testing.T) {
	api := &fakeAPI{sid: "SM123"}
	res := newTestSender(api).Send(context.Background(), "+15551234567", "hello")

	require.True(t, res.Success, "%v", res.Err)
	assert.Equal(t, "SM123", res.MessageID)
	require.Len(t, api.params, 1)
	assert.Equal(t, "+15551234567", *api.params[0].To)
	assert.Equal(t, "+15550000000", *api.params[0].From)
	assert.Equal(t, "hello", *api.params[0].Body)
}

func TestSend_APIError(t *testing.T) {
	api := &fakeAPI{err: &twilioclient.TwilioRestError{Code: 21211, Status: 400, Message: "Invalid 'To' Phone Number"}}
	res := newTestSender(api).Send(context.Background(), "+15551234567", "hello")

	assert.False(t, res.Success)
	assert.Contains(t, res.Err.Error(), "Invalid 'To'")
	assert.Contains(t, res.Err.Error(), "400")
}

func TestSend_TransportError(t *testing.T) {
	res := newTestSender(&fakeAPI{err: errors.New("connection reset")}).Send(context.Background(), "+15551234567", "hello")
	assert.False(t, res.Success)
	assert.Contains(t, res.Err.Error(), "connection reset")
}

func TestSend_RejectsNonE164(t *testing.T) {
	api := &fakeAPI{}
	res := newTestSender(api).Send(context.Background(), "555-1234", "hello")
	assert.False(t, res.Success)
	assert.Empty(t, api.params)
}

func TestSend_ReturnsWhenContextEnds(t *testing.T) {
	api := &fakeAPI{sid: "SM1", wait: make(chan struct{})}
	defer close(api.wait)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := newTestSender(api).Send(ctx, "+15551234567", "hello")

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestNewSender_UsesTwilioClient(t *testing.T) {
	s := NewSender(Config{AccountSID: "AC1", AuthToken: "secret", From: "+15550000000"}, nil)
	require.NotNil(t, s.api)
	assert.Equal(t, "+15550000000", s.from)
}
