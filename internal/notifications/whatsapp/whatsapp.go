// Package whatsapp sends messages from a linked WhatsApp device via whatsmeow.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/notifications"
	"github.com/evermore-events/backend/internal/phone"
)

// ErrNotLinked is returned while no device session exists yet.
var ErrNotLinked = errors.New("whatsapp device is not linked")

// client is the subset of *whatsmeow.Client the sender uses.
type client interface {
	IsOnWhatsApp(ctx context.Context, phones []string) ([]types.IsOnWhatsAppResponse, error)
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
}

// Config for the sender.
type Config struct {
	StoreDir string
}

// Sender implements notifications.WhatsAppSender and notifications.RegistrationChecker.
type Sender struct {
	wm        *whatsmeow.Client
	client    client
	templates *Templates
	logger    *zap.Logger

	mu     sync.RWMutex
	qrPNG  []byte
	linked bool
}

// NewSender opens (or creates) the sqlite device store under cfg.StoreDir.
func NewSender(ctx context.Context, cfg Config, templates *Templates, logger *zap.Logger) (*Sender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.StoreDir, 0o700); err != nil {
		return nil, fmt.Errorf("whatsapp store dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(cfg.StoreDir, "whatsmeow.db"))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("whatsapp store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsapp device: %w", err)
	}
	wm := whatsmeow.NewClient(device, nil)
	s := newSender(wm, templates, logger)
	s.wm = wm
	s.linked = device.ID != nil
	wm.AddEventHandler(s.handleEvent)
	return s, nil
}

func newSender(c client, templates *Templates, logger *zap.Logger) *Sender {
	return &Sender{client: c, templates: templates, logger: logger}
}

// Connect connects the device. An unlinked device exposes pairing codes as PNG QR images
// through PairingQR until it is scanned or ctx ends.
func (s *Sender) Connect(ctx context.Context) error {
	if s.wm.Store.ID != nil {
		if err := s.wm.Connect(); err != nil {
			return fmt.Errorf("whatsapp connect: %w", err)
		}
		return nil
	}
	qrChan, err := s.wm.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("whatsapp qr channel: %w", err)
	}
	if err := s.wm.Connect(); err != nil {
		return fmt.Errorf("whatsapp connect: %w", err)
	}
	go func() {
		for evt := range qrChan {
			if evt.Event != "code" {
				s.logger.Info("whatsapp pairing event", zap.String("event", evt.Event))
				continue
			}
			png, err := qrcode.Encode(evt.Code, qrcode.Medium, 256)
			if err != nil {
				s.logger.Warn("encode pairing qr", zap.Error(err))
				continue
			}
			s.mu.Lock()
			s.qrPNG = png
			s.mu.Unlock()
			s.logger.Info("whatsapp pairing code ready; scan it from Linked Devices")
		}
	}()
	return nil
}

// Disconnect closes the websocket.
func (s *Sender) Disconnect() {
	if s.wm != nil {
		s.wm.Disconnect()
	}
}

// PairingQR returns the latest pairing QR as PNG, if the device still needs linking.
func (s *Sender) PairingQR() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.linked || len(s.qrPNG) == 0 {
		return nil, false
	}
	return s.qrPNG, true
}

func (s *Sender) handleEvent(evt interface{}) {
	switch evt.(type) {
	case *events.PairSuccess, *events.Connected:
		s.mu.Lock()
		s.linked = true
		s.qrPNG = nil
		s.mu.Unlock()
		s.logger.Info("whatsapp connected")
	case *events.LoggedOut:
		s.mu.Lock()
		s.linked = false
		s.mu.Unlock()
		s.logger.Warn("whatsapp device logged out")
	case *events.Disconnected:
		s.logger.Info("whatsapp disconnected")
	}
}

// IsRegistered asks WhatsApp whether e164 has an account.
func (s *Sender) IsRegistered(ctx context.Context, e164 string) (bool, error) {
	resp, err := s.client.IsOnWhatsApp(ctx, []string{e164})
	if err != nil {
		return false, fmt.Errorf("whatsapp lookup: %w", err)
	}
	return len(resp) > 0 && resp[0].IsIn, nil
}

// Send renders msg and delivers it. Unregistered numbers fail without a send attempt.
func (s *Sender) Send(ctx context.Context, msg notifications.WhatsAppMessage) notifications.SendResult {
	if !phone.ValidateE164(msg.To) {
		return notifications.Failed(phone.ErrInvalid)
	}
	body := msg.Body
	if body == "" {
		var err error
		if body, err = s.templates.Render(msg.TemplateID, msg.Variables); err != nil {
			return notifications.Failed(err)
		}
	}
	resp, err := s.client.IsOnWhatsApp(ctx, []string{msg.To})
	if err != nil {
		return notifications.Failed(fmt.Errorf("whatsapp lookup: %w", err))
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return notifications.Failed(fmt.Errorf("%s is not on whatsapp", msg.To))
	}
	sent, err := s.client.SendMessage(ctx, resp[0].JID, &waE2E.Message{Conversation: &body})
	if err != nil {
		if errors.Is(err, whatsmeow.ErrNotLoggedIn) {
			err = ErrNotLinked
		}
		return notifications.Failed(fmt.Errorf("whatsapp send: %w", err))
	}
	return notifications.SendResult{Success: true, MessageID: string(sent.ID)}
}
