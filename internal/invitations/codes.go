package invitations

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// InviteCodeLength is the number of characters in a guest invite code.
	InviteCodeLength = 8
	// DefaultCodeRetries caps collision retries before giving up.
	DefaultCodeRetries = 20

	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	// ErrInviteCodeExhausted means no unique code was found within the retry cap.
	ErrInviteCodeExhausted = errors.New("could not generate a unique invite code")
	// ErrCodeCollision is returned by a CodeStore when the code is already taken.
	ErrCodeCollision = errors.New("invite code already in use")
)

// CodeStore checks and assigns guest invite codes. AssignInviteCode must map a unique
// violation to ErrCodeCollision and return the existing code when the guest already has one.
type CodeStore interface {
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	AssignInviteCode(ctx context.Context, weddingID, guestID uuid.UUID, code string) (string, error)
}

// CodeGenerator draws random codes and retries on collision up to a cap.
type CodeGenerator struct {
	store      CodeStore
	maxRetries int
	random     func() (string, error)
}

// NewCodeGenerator creates a generator. maxRetries <= 0 uses DefaultCodeRetries.
func NewCodeGenerator(store CodeStore, maxRetries int) *CodeGenerator {
	if maxRetries <= 0 {
		maxRetries = DefaultCodeRetries
	}
	return &CodeGenerator{store: store, maxRetries: maxRetries, random: RandomInviteCode}
}

// WithMaxRetries returns a copy of g using a different retry cap.
func (g *CodeGenerator) WithMaxRetries(n int) *CodeGenerator {
	c := *g
	if n > 0 {
		c.maxRetries = n
	}
	return &c
}

// MaxRetries is the collision retry cap.
func (g *CodeGenerator) MaxRetries() int { return g.maxRetries }

// RandomInviteCode returns 8 characters drawn uniformly from [A-Z0-9].
func RandomInviteCode() (string, error) {
	n36 := big.NewInt(int64(len(inviteCodeAlphabet)))
	b := make([]byte, InviteCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, n36)
		if err != nil {
			return "", err
		}
		b[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// Ensure assigns a code to the guest unless it already has one. It returns the code and
// the number of collisions retried. The pre-check is racy; the store's unique constraint
// is the real collision detector.
func (g *CodeGenerator) Ensure(ctx context.Context, weddingID, guestID uuid.UUID) (string, int, error) {
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		code, err := g.candidate(ctx)
		if errors.Is(err, ErrCodeCollision) {
			continue
		}
		if err != nil {
			return "", attempt, err
		}
		assigned, err := g.store.AssignInviteCode(ctx, weddingID, guestID, code)
		if errors.Is(err, ErrCodeCollision) {
			continue
		}
		if err != nil {
			return "", attempt, fmt.Errorf("assign invite code: %w", err)
		}
		return assigned, attempt, nil
	}
	return "", g.maxRetries, ErrInviteCodeExhausted
}

// Propose finds a currently unused code without writing it.
func (g *CodeGenerator) Propose(ctx context.Context) (string, int, error) {
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		code, err := g.candidate(ctx)
		if errors.Is(err, ErrCodeCollision) {
			continue
		}
		if err != nil {
			return "", attempt, err
		}
		return code, attempt, nil
	}
	return "", g.maxRetries, ErrInviteCodeExhausted
}

func (g *CodeGenerator) candidate(ctx context.Context) (string, error) {
	code, err := g.random()
	if err != nil {
		return "", fmt.Errorf("random invite code: %w", err)
	}
	taken, err := g.store.InviteCodeExists(ctx, code)
	if err != nil {
		return "", fmt.Errorf("check invite code: %w", err)
	}
	if taken {
		return "", ErrCodeCollision
	}
	return code, nil
}
