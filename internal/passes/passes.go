// Package passes renders per-event digital passes (a QR code plus a printable HTML card) for
// accepted guests and stores them in S3 when a bucket is configured.
package passes

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/pkg/storage"
)

// QRSize is the edge length of the generated PNG in pixels.
const QRSize = 320

//go:embed pass.html
var passHTML string

var passTemplate = template.Must(template.New("pass").Parse(passHTML))

// ObjectStore is the subset of storage.S3 used for passes.
type ObjectStore interface {
	PutBytes(ctx context.Context, key, contentType string, data []byte) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

// Pass is one rendered pass.
type Pass struct {
	InvitationEventID uuid.UUID `json:"invitation_event_id"`
	EventName         string    `json:"event_name"`
	CheckInURL        string    `json:"check_in_url"`
	URL               string    `json:"url,omitempty"` // presigned HTML pass, when stored
	PNG               []byte    `json:"-"`
	HTML              []byte    `json:"-"`
}

// Filename is the attachment name of the QR image.
func (p Pass) Filename() string {
	name := strings.ToLower(strings.Join(strings.Fields(p.EventName), "-"))
	if name == "" {
		name = "event"
	}
	return "pass-" + name + ".png"
}

// Generator renders passes. A nil store renders without uploading.
type Generator struct {
	store     ObjectStore
	publicURL string
	logger    *zap.Logger
}

// NewGenerator creates a pass generator. store may be nil.
func NewGenerator(store ObjectStore, publicURL string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{store: store, publicURL: strings.TrimRight(publicURL, "/"), logger: logger}
}

// CheckInURL is what the QR code encodes: the per-event token, scoped by wedding slug.
func (g *Generator) CheckInURL(slug, eventToken string) string {
	return g.publicURL + "/w/" + slug + "/check-in/" + eventToken
}

type passView struct {
	WeddingName string
	GuestName   string
	EventName   string
	Venue       string
	StartsAt    string
	Headcount   int
	InviteCode  string
	QRDataURI   template.URL
}

// Generate renders a pass for every accepted event on d. Upload failures keep the pass
// without a URL; a render failure is returned.
func (g *Generator) Generate(ctx context.Context, d *models.InvitationDetail) ([]Pass, error) {
	var out []Pass
	for _, ev := range d.Events {
		if ev.Status != models.StatusAccepted {
			continue
		}
		p, err := g.render(d, ev)
		if err != nil {
			return out, fmt.Errorf("render pass for %s: %w", ev.EventName, err)
		}
		if g.store != nil {
			url, err := g.upload(ctx, d.Wedding.ID, p)
			if err != nil {
				g.logger.Warn("pass upload failed", zap.Error(err), zap.String("invitation_event_id", ev.ID.String()))
			} else {
				p.URL = url
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (g *Generator) render(d *models.InvitationDetail, ev models.InvitationEventView) (Pass, error) {
	checkIn := g.CheckInURL(d.Wedding.Slug, ev.EventToken)
	png, err := qrcode.Encode(checkIn, qrcode.Medium, QRSize)
	if err != nil {
		return Pass{}, err
	}
	view := passView{
		WeddingName: d.Wedding.Name,
		GuestName:   d.Guest.FullName(),
		EventName:   ev.EventName,
		Venue:       ev.EventVenue,
		Headcount:   ev.Headcount,
		QRDataURI:   template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)),
	}
	if ev.StartsAt != nil {
		view.StartsAt = ev.StartsAt.Format("Mon Jan 2, 2006 3:04 PM")
	}
	if d.Guest.InviteCode != nil {
		view.InviteCode = *d.Guest.InviteCode
	}
	var html bytes.Buffer
	if err := passTemplate.Execute(&html, view); err != nil {
		return Pass{}, err
	}
	return Pass{
		InvitationEventID: ev.ID,
		EventName:         ev.EventName,
		CheckInURL:        checkIn,
		PNG:               png,
		HTML:              html.Bytes(),
	}, nil
}

func (g *Generator) upload(ctx context.Context, weddingID uuid.UUID, p Pass) (string, error) {
	base := p.InvitationEventID.String()
	if err := g.store.PutBytes(ctx, storage.PassKey(weddingID.String(), base, ".png"), "image/png", p.PNG); err != nil {
		return "", err
	}
	key := storage.PassKey(weddingID.String(), base, ".html")
	if err := g.store.PutBytes(ctx, key, "text/html; charset=utf-8", p.HTML); err != nil {
		return "", err
	}
	return g.store.PresignedURL(ctx, key)
}
