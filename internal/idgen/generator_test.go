package idgen

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
)

// stubChecker answers existence from a fixed set, or always collides.
type stubChecker struct {
	mu        sync.Mutex
	always    bool
	taken     map[string]bool
	calls     int
	err       error
	candidate []string
}

func (s *stubChecker) ExistsByQrID(_ context.Context, qrID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.candidate = append(s.candidate, qrID)
	if s.err != nil {
		return false, s.err
	}
	return s.always || s.taken[qrID], nil
}

func TestGenerateWithPrefix(t *testing.T) {
	g := New(&stubChecker{})
	pattern := regexp.MustCompile(`^PROMO-[A-Z0-9]{8}$`)

	for i := 0; i < 200; i++ {
		id, err := g.Generate(context.Background(), "PROMO")
		require.NoError(t, err)
		require.Regexp(t, pattern, id)
		assert.True(t, domain.ValidQrID(id))
	}
}

func TestGenerateWithoutPrefix(t *testing.T) {
	g := New(&stubChecker{})

	id, err := g.Generate(context.Background(), "")
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{8}$`, id)
}

func TestGenerateNormalizesPrefix(t *testing.T) {
	g := New(&stubChecker{})

	id, err := g.Generate(context.Background(), " promo ")
	require.NoError(t, err)
	assert.Regexp(t, `^PROMO-[A-Z0-9]{8}$`, id)
}

func TestGenerateRejectsBadPrefix(t *testing.T) {
	checker := &stubChecker{}
	g := New(checker)

	_, err := g.Generate(context.Background(), "P1")
	assert.ErrorIs(t, err, domain.ErrInvalidPrefix)
	assert.Zero(t, checker.calls, "store must not be consulted for a bad prefix")
}

func TestGenerateExhaustedAfterExactlyMaxAttempts(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{"default ceiling", 0, DefaultMaxAttempts},
		{"custom ceiling", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &stubChecker{always: true}
			g := New(checker, WithMaxAttempts(tt.max))

			_, err := g.Generate(context.Background(), "PROMO")
			assert.ErrorIs(t, err, domain.ErrGenerationExhausted)
			assert.Equal(t, tt.want, checker.calls)
		})
	}
}

func TestGenerateRetriesPastCollisions(t *testing.T) {
	tokens := []string{"AAAA0001", "AAAA0002", "AAAA0003"}
	i := 0
	checker := &stubChecker{taken: map[string]bool{"AAAA0001": true, "AAAA0002": true}}
	g := New(checker, WithTokenSource(func() string {
		tok := tokens[i]
		i++
		return tok
	}))

	id, err := g.Generate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "AAAA0003", id)
	assert.Equal(t, 3, checker.calls)
}

func TestGenerateSkipsDeactivatedIDs(t *testing.T) {
	// ExistsByQrID includes inactive rows, so a retired id is never reissued.
	checker := &stubChecker{taken: map[string]bool{"DEAD0000": true}}
	tokens := []string{"DEAD0000", "LIVE0000"}
	i := 0
	g := New(checker, WithTokenSource(func() string {
		tok := tokens[i]
		i++
		return tok
	}))

	id, err := g.Generate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "LIVE0000", id)
}

func TestGenerateSurfacesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	g := New(&stubChecker{err: boom})

	_, err := g.Generate(context.Background(), "")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrGenerationExhausted)
}
