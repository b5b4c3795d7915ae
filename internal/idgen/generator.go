// Package idgen issues collision-checked public identifiers.
package idgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
)

// DefaultMaxAttempts bounds the collision retry loop.
const DefaultMaxAttempts = 10

// Checker reports whether a qrId was ever issued, active or not.
type Checker interface {
	ExistsByQrID(ctx context.Context, qrID string) (bool, error)
}

// Generator produces [PREFIX-]XXXXXXXX identifiers.
type Generator struct {
	checker     Checker
	maxAttempts int
	token       func() string
}

// Option customizes a Generator.
type Option func(*Generator)

// WithMaxAttempts overrides the attempt ceiling. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithTokenSource replaces the random token source.
func WithTokenSource(fn func() string) Option {
	return func(g *Generator) {
		if fn != nil {
			g.token = fn
		}
	}
}

// New creates a Generator backed by checker.
func New(checker Checker, opts ...Option) *Generator {
	g := &Generator{
		checker:     checker,
		maxAttempts: DefaultMaxAttempts,
		token:       randomToken,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxAttempts returns the configured ceiling.
func (g *Generator) MaxAttempts() int { return g.maxAttempts }

// Generate returns an identifier that no stored mapping has ever used.
// It fails with domain.ErrGenerationExhausted after MaxAttempts collisions.
func (g *Generator) Generate(ctx context.Context, prefix string) (string, error) {
	p, err := domain.NormalizePrefix(prefix)
	if err != nil {
		return "", fmt.Errorf("prefix %q: %w", prefix, err)
	}

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		candidate := g.token()
		if p != "" {
			candidate = p + "-" + candidate
		}

		exists, err := g.checker.ExistsByQrID(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check qr id existence: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w after %d attempts", domain.ErrGenerationExhausted, g.maxAttempts)
}

// randomToken is the first 8 hex digits of a v4 UUID, uppercased.
func randomToken() string {
	return strings.ToUpper(uuid.NewString()[:domain.TokenLength])
}
