// Package email delivers templated HTML email over SMTP.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/notifications"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultSendTimeout bounds one dial-and-send when the caller's context has no earlier deadline.
const DefaultSendTimeout = 20 * time.Second

// Config holds SMTP settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	// Timeout <= 0 uses DefaultSendTimeout.
	Timeout time.Duration
}

// dialer is the part of *mail.Client the sender uses.
type dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Sender implements notifications.EmailSender.
type Sender struct {
	cfg       Config
	templates *template.Template
	client    dialer
	encoding  mail.Encoding
	logger    *zap.Logger
}

// NewSender parses the embedded templates and prepares the SMTP client. Credentials switch
// on PLAIN auth; TLS is used whenever the server offers STARTTLS.
func NewSender(cfg Config, logger *zap.Logger) (*Sender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSendTimeout
	}
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Sender{cfg: cfg, templates: t, client: client, encoding: mail.EncodingQP, logger: logger}, nil
}

// Render executes the template named by msg.TemplateID.
func (s *Sender) Render(msg notifications.EmailMessage) (string, error) {
	if s.templates.Lookup(msg.TemplateID) == nil {
		return "", fmt.Errorf("unknown email template %q", msg.TemplateID)
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, msg.TemplateID, msg.Variables); err != nil {
		return "", fmt.Errorf("render %s: %w", msg.TemplateID, err)
	}
	return buf.String(), nil
}

// Send renders and delivers msg. The SMTP exchange is abandoned when ctx ends or after the
// configured timeout, whichever comes first.
func (s *Sender) Send(ctx context.Context, msg notifications.EmailMessage) notifications.SendResult {
	if err := ctx.Err(); err != nil {
		return notifications.Failed(err)
	}
	html, err := s.Render(msg)
	if err != nil {
		return notifications.Failed(err)
	}
	id := uuid.NewString() + "@" + s.domain()
	m, err := s.build(msg, html, id)
	if err != nil {
		return notifications.Failed(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.Warn("smtp send failed", zap.Error(err), zap.String("template", msg.TemplateID))
		return notifications.Failed(fmt.Errorf("smtp: %w", err))
	}
	return notifications.SendResult{Success: true, MessageID: "<" + id + ">"}
}

func (s *Sender) domain() string {
	if i := strings.LastIndex(s.cfg.FromAddress, "@"); i >= 0 {
		return s.cfg.FromAddress[i+1:]
	}
	return "localhost"
}

// build assembles the message. Attachments make it multipart/mixed.
func (s *Sender) build(msg notifications.EmailMessage, html, id string) (*mail.Msg, error) {
	m := mail.NewMsg(mail.WithEncoding(s.encoding))
	if err := m.FromFormat(s.cfg.FromName, s.cfg.FromAddress); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageIDWithValue(id)
	m.SetBodyString(mail.TypeTextHTML, html)

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Data), mail.WithFileContentType(mail.ContentType(ct))); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Filename, err)
		}
	}
	return m, nil
}
