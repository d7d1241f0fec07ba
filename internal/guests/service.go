// Package guests manages the guest list: CRUD, a cached listing and bulk import of rows the
// client has already parsed.
package guests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/cache"
	"github.com/evermore-events/backend/internal/invitations"
	"github.com/evermore-events/backend/internal/models"
	"github.com/evermore-events/backend/internal/phone"
)

// MaxImportRows caps one import request.
const MaxImportRows = 2000

var (
	ErrNotFound   = errors.New("guest not found")
	ErrValidation = errors.New("invalid guest")
)

// Store is the guest persistence. Every method is scoped by wedding id.
type Store interface {
	Create(ctx context.Context, g *models.Guest) error
	Get(ctx context.Context, weddingID, id uuid.UUID) (*models.Guest, error)
	List(ctx context.Context, weddingID uuid.UUID, p ListParams) (models.Page[models.Guest], error)
	Update(ctx context.Context, g *models.Guest) error
	Delete(ctx context.Context, weddingID, id uuid.UUID) error
	InvitationIDForGuest(ctx context.Context, weddingID, guestID uuid.UUID) (uuid.UUID, bool, error)
}

// Invitations is the slice of the invitation lifecycle guests depend on.
type Invitations interface {
	CreateForGuests(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, guestIDs []uuid.UUID, defs []models.EventDef) (*invitations.CreateResult, error)
	Delete(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, ids []uuid.UUID) (int64, error)
}

// Auditor is the audit sink.
type Auditor interface {
	Log(ctx context.Context, e audit.Entry) besteffort.Outcome
}

// ListParams filters the guest list.
type ListParams struct {
	Page     int
	PageSize int
	Search   string
}

// Input is a guest as submitted by an admin or an import row.
type Input struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"max=100"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Phone       string `json:"phone" validate:"max=32"`
	IsVIP       bool   `json:"is_vip"`
	TotalGuests *int   `json:"total_guests" validate:"omitempty,min=1,max=100"`
}

// ImportRow is one parsed row. PartySize, when set, overrides the events' requested headcount.
type ImportRow struct {
	Input
	PartySize *int `json:"party_size"`
}

// ImportRequest creates guests and, when Events is non-empty, invites each one to them.
type ImportRequest struct {
	Rows   []ImportRow       `json:"rows"`
	Events []models.EventDef `json:"events"`
}

// RowError reports a rejected import row by its zero-based index.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult summarises an import.
type ImportResult struct {
	Created int        `json:"created"`
	Invited int        `json:"invited"`
	Errors  []RowError `json:"errors"`
}

// Service implements guest management.
type Service struct {
	store       Store
	invitations Invitations
	cache       *cache.Cache
	auditor     Auditor
	validate    *validator.Validate
	countryCode string
	listTTL     time.Duration
	logger      *zap.Logger
}

// NewService creates a guest service. c may be nil.
func NewService(store Store, inv Invitations, c *cache.Cache, auditor Auditor, defaultCountryCode string, listTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		invitations: inv,
		cache:       c,
		auditor:     auditor,
		validate:    validator.New(),
		countryCode: defaultCountryCode,
		listTTL:     listTTL,
		logger:      logger,
	}
}

// normalize validates in and returns the guest it describes.
func (s *Service) normalize(in Input) (*models.Guest, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	g := &models.Guest{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		IsVIP:       in.IsVIP,
		TotalGuests: in.TotalGuests,
	}
	if in.Phone != "" {
		p, err := phone.Normalize(in.Phone, s.countryCode)
		if err != nil {
			return nil, fmt.Errorf("%w: phone %q is not a valid number", ErrValidation, in.Phone)
		}
		g.Phone = p
	}
	return g, nil
}

// Create adds a guest.
func (s *Service) Create(ctx context.Context, weddingID uuid.UUID, in Input) (*models.Guest, error) {
	g, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	g.WeddingID = weddingID
	if err := s.store.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create guest: %w", err)
	}
	s.cache.BumpNamespaceVersion(ctx)
	return g, nil
}

// Get returns one guest.
func (s *Service) Get(ctx context.Context, weddingID, id uuid.UUID) (*models.Guest, error) {
	return s.store.Get(ctx, weddingID, id)
}

// List returns a page of guests through the list cache.
func (s *Service) List(ctx context.Context, weddingID uuid.UUID, p ListParams) (models.Page[models.Guest], error) {
	key := cache.Key("guests:"+weddingID.String(), map[string]string{
		"page":      fmt.Sprint(p.Page),
		"page_size": fmt.Sprint(p.PageSize),
		"search":    p.Search,
	})
	return cache.JSON(ctx, s.cache, key, s.listTTL, func(ctx context.Context) (models.Page[models.Guest], error) {
		return s.store.List(ctx, weddingID, p)
	})
}

// Update replaces the editable fields of a guest. The invite code is kept.
func (s *Service) Update(ctx context.Context, weddingID, id uuid.UUID, in Input) (*models.Guest, error) {
	existing, err := s.store.Get(ctx, weddingID, id)
	if err != nil {
		return nil, err
	}
	g, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	g.ID, g.WeddingID, g.InviteCode, g.HouseholdID = existing.ID, weddingID, existing.InviteCode, existing.HouseholdID
	if err := s.store.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("update guest: %w", err)
	}
	s.cache.BumpNamespaceVersion(ctx)
	return g, nil
}

// Delete removes the guest after deleting their invitation (history, events, invitation).
func (s *Service) Delete(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, id uuid.UUID) error {
	if _, err := s.store.Get(ctx, weddingID, id); err != nil {
		return err
	}
	invID, ok, err := s.store.InvitationIDForGuest(ctx, weddingID, id)
	if err != nil {
		return fmt.Errorf("find invitation: %w", err)
	}
	if ok {
		if _, err := s.invitations.Delete(ctx, weddingID, actor, []uuid.UUID{invID}); err != nil {
			return fmt.Errorf("delete invitation: %w", err)
		}
	}
	if err := s.store.Delete(ctx, weddingID, id); err != nil {
		return err
	}
	s.cache.BumpNamespaceVersion(ctx)
	if s.auditor != nil {
		s.auditor.Log(ctx, audit.Entry{
			WeddingID: weddingID,
			Action:    audit.ActionGuestDeleted,
			Actor:     actor,
			Details:   map[string]interface{}{"guest_id": id, "had_invitation": ok},
		})
	}
	return nil
}

// Import creates guests row by row. A bad row is reported and skipped; the rest continue.
// Each created guest is invited to req.Events with its headcount clamped to its own cap.
func (s *Service) Import(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, req ImportRequest) (*ImportResult, error) {
	if len(req.Rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrValidation)
	}
	if len(req.Rows) > MaxImportRows {
		return nil, fmt.Errorf("%w: at most %d rows per import", ErrValidation, MaxImportRows)
	}
	res := &ImportResult{Errors: []RowError{}}
	for i, row := range req.Rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if row.PartySize != nil && *row.PartySize < 1 {
			res.Errors = append(res.Errors, RowError{Row: i, Error: "party_size must be at least 1"})
			continue
		}
		g, err := s.normalize(row.Input)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: i, Error: err.Error()})
			continue
		}
		g.WeddingID = weddingID
		if err := s.store.Create(ctx, g); err != nil {
			s.logger.Warn("import row failed", zap.Int("row", i), zap.Error(err))
			res.Errors = append(res.Errors, RowError{Row: i, Error: "could not save guest"})
			continue
		}
		res.Created++
		if len(req.Events) == 0 {
			continue
		}
		if _, err := s.invitations.CreateForGuests(ctx, weddingID, actor, []uuid.UUID{g.ID}, rowDefs(req.Events, row.PartySize)); err != nil {
			res.Errors = append(res.Errors, RowError{Row: i, Error: "guest created but not invited: " + err.Error()})
			continue
		}
		res.Invited++
	}
	s.cache.BumpNamespaceVersion(ctx)
	if s.auditor != nil {
		s.auditor.Log(ctx, audit.Entry{
			WeddingID: weddingID,
			Action:    audit.ActionGuestsImported,
			Actor:     actor,
			Details: map[string]interface{}{
				"rows":    len(req.Rows),
				"created": res.Created,
				"invited": res.Invited,
				"errors":  len(res.Errors),
			},
		})
	}
	return res, nil
}

func rowDefs(defs []models.EventDef, partySize *int) []models.EventDef {
	out := make([]models.EventDef, len(defs))
	copy(out, defs)
	if partySize != nil {
		for i := range out {
			out[i].Headcount = *partySize
		}
	}
	return out
}
