// Package weddingconfig resolves and updates per-wedding feature flags.
// Reads are never cached: a change must be visible to the next request.
package weddingconfig

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/audit"
	"github.com/evermore-events/backend/internal/besteffort"
	"github.com/evermore-events/backend/internal/models"
)

// ErrValidation wraps every rejected update.
var ErrValidation = errors.New("invalid configuration")

// Store reads and writes raw wedding_config rows.
type Store interface {
	ListRows(ctx context.Context, weddingID uuid.UUID) ([]models.ConfigRow, error)
	// Apply upserts set and deletes del in one transaction.
	Apply(ctx context.Context, weddingID uuid.UUID, set map[string]string, del []string) error
	DeleteAll(ctx context.Context, weddingID uuid.UUID) error
}

// Auditor is the audit sink.
type Auditor interface {
	Log(ctx context.Context, e audit.Entry) besteffort.Outcome
}

// Service resolves and mutates wedding configuration.
type Service struct {
	store   Store
	auditor Auditor
	logger  *zap.Logger
}

// NewService creates a configuration service.
func NewService(store Store, auditor Auditor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, auditor: auditor, logger: logger}
}

// GetConfig returns the resolved configuration. A zero wedding id yields defaults.
func (s *Service) GetConfig(ctx context.Context, weddingID uuid.UUID) (models.WeddingConfig, error) {
	if weddingID == uuid.Nil {
		return Defaults(), nil
	}
	rows, err := s.store.ListRows(ctx, weddingID)
	if err != nil {
		return models.WeddingConfig{}, fmt.Errorf("load wedding config: %w", err)
	}
	return Parse(rows), nil
}

// UpdateConfig applies only the keys present in partial and returns the re-read config.
// Values may be JSON booleans, numbers or strings. An empty string clears optional keys.
func (s *Service) UpdateConfig(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID, partial map[string]interface{}) (models.WeddingConfig, error) {
	set, del, err := normalise(partial)
	if err != nil {
		return models.WeddingConfig{}, err
	}
	if len(set) == 0 && len(del) == 0 {
		return s.GetConfig(ctx, weddingID)
	}
	if err := s.store.Apply(ctx, weddingID, set, del); err != nil {
		return models.WeddingConfig{}, fmt.Errorf("save wedding config: %w", err)
	}

	changed := make([]string, 0, len(set)+len(del))
	for k := range set {
		changed = append(changed, k)
	}
	changed = append(changed, del...)
	sort.Strings(changed)
	s.auditor.Log(ctx, audit.Entry{
		WeddingID: weddingID,
		Action:    audit.ActionConfigUpdated,
		Details:   map[string]interface{}{"keys": changed},
		Actor:     actor,
	})
	return s.GetConfig(ctx, weddingID)
}

// ResetConfig deletes every stored key, returning the defaults.
func (s *Service) ResetConfig(ctx context.Context, weddingID uuid.UUID, actor *uuid.UUID) (models.WeddingConfig, error) {
	if err := s.store.DeleteAll(ctx, weddingID); err != nil {
		return models.WeddingConfig{}, fmt.Errorf("reset wedding config: %w", err)
	}
	s.auditor.Log(ctx, audit.Entry{
		WeddingID: weddingID,
		Action:    audit.ActionConfigReset,
		Actor:     actor,
	})
	return s.GetConfig(ctx, weddingID)
}

// normalise validates partial and splits it into rows to upsert and keys to delete.
func normalise(partial map[string]interface{}) (map[string]string, []string, error) {
	set := make(map[string]string, len(partial))
	var del []string
	var problems []string

	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		k, ok := known[key]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: unknown key", key))
			continue
		}
		str, isEmpty, err := stringify(partial[key])
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		if isEmpty {
			if clearable[key] {
				del = append(del, key)
				continue
			}
			problems = append(problems, fmt.Sprintf("%s: cannot be empty", key))
			continue
		}
		if err := validateValue(k, str); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		set[key] = str
	}
	if len(problems) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return set, del, nil
}

func stringify(v interface{}) (string, bool, error) {
	switch t := v.(type) {
	case nil:
		return "", true, nil
	case string:
		t = strings.TrimSpace(t)
		return t, t == "", nil
	case bool:
		return strconv.FormatBool(t), false, nil
	case float64:
		if t != math.Trunc(t) {
			return "", false, errors.New("must be a whole number")
		}
		return strconv.FormatInt(int64(t), 10), false, nil
	case int:
		return strconv.Itoa(t), false, nil
	}
	return "", false, fmt.Errorf("unsupported value type %T", v)
}

func validateValue(k kind, v string) error {
	switch k {
	case kindBool, kindBoolDefaultTrue:
		if v != "true" && v != "false" {
			return errors.New("must be true or false")
		}
	case kindPositiveInt:
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return errors.New("must be a positive integer")
		}
	case kindDate:
		if _, err := time.Parse(CutoffDateLayout, v); err != nil {
			return errors.New("must be a date in YYYY-MM-DD form")
		}
	case kindTimezone:
		if _, err := time.LoadLocation(v); err != nil {
			return errors.New("must be an IANA timezone")
		}
	}
	return nil
}
