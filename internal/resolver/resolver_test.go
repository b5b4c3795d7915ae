package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/qrlink/internal/cache"
	"github.com/MrSnakeDoc/qrlink/internal/domain"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
	"github.com/MrSnakeDoc/qrlink/internal/store/memory"
)

// countingStore records how often the store is hit.
type countingStore struct {
	*memory.Store
	finds atomic.Int32
	err   error
}

func (c *countingStore) FindActiveByQrID(ctx context.Context, qrID string) (*domain.Mapping, error) {
	c.finds.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Store.FindActiveByQrID(ctx, qrID)
}

// brokenCache fails every call.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}
func (brokenCache) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}
func (brokenCache) Evict(context.Context, string) error       { return errors.New("cache down") }
func (brokenCache) EvictPrefix(context.Context, string) error { return errors.New("cache down") }
func (brokenCache) Ping(context.Context) error                { return errors.New("cache down") }

func setup(t *testing.T) (*Resolver, *countingStore, *cache.Memory) {
	t.Helper()
	st := &countingStore{Store: memory.New()}
	c := cache.NewMemory(0)
	return New(st, st, c, time.Hour, logger.NewNop()), st, c
}

func insert(t *testing.T, st *countingStore, m *domain.Mapping) {
	t.Helper()
	require.NoError(t, st.Insert(context.Background(), m))
}

func TestResolveMissThenHit(t *testing.T) {
	r, st, _ := setup(t)
	ctx := context.Background()
	insert(t, st, &domain.Mapping{QrID: "ABCD1234", TargetURL: "https://example.com/a", IsActive: true})

	res, err := r.Resolve(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", res.TargetURL)
	assert.EqualValues(t, 1, st.finds.Load())

	res, err = r.Resolve(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", res.TargetURL)
	assert.EqualValues(t, 1, st.finds.Load(), "cache hit must not touch the store")
}

func TestResolveNotFoundIsUniform(t *testing.T) {
	r, st, c := setup(t)
	ctx := context.Background()
	insert(t, st, &domain.Mapping{QrID: "DEAD0000", TargetURL: "https://example.com", IsActive: false})

	_, errInactive := r.Resolve(ctx, "DEAD0000")
	_, errUnknown := r.Resolve(ctx, "NONE0000")

	assert.ErrorIs(t, errInactive, domain.ErrNotFound)
	assert.ErrorIs(t, errUnknown, domain.ErrNotFound)
	assert.Equal(t, errUnknown.Error(), errInactive.Error())
	assert.Zero(t, c.Len(), "negative results are not cached")
}

func TestResolveMalformedSkipsStore(t *testing.T) {
	r, st, _ := setup(t)

	_, err := r.Resolve(context.Background(), "not-a-qr-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, st.finds.Load())
}

func TestInvalidateForcesReload(t *testing.T) {
	r, st, _ := setup(t)
	ctx := context.Background()
	m := &domain.Mapping{QrID: "ABCD1234", TargetURL: "https://example.com/a", IsActive: true}
	insert(t, st, m)

	_, err := r.Resolve(ctx, "ABCD1234")
	require.NoError(t, err)

	newURL := "https://example.com/b"
	_, err = st.UpdateFields(ctx, m.ID, domain.MappingPatch{TargetURL: &newURL}, time.Now())
	require.NoError(t, err)

	res, _ := r.Resolve(ctx, "ABCD1234")
	assert.Equal(t, "https://example.com/a", res.TargetURL, "stale until invalidated")

	require.NoError(t, r.Invalidate(ctx, "ABCD1234"))
	res, err = r.Resolve(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, newURL, res.TargetURL)
}

func TestResolveFallsBackWhenCacheFails(t *testing.T) {
	st := &countingStore{Store: memory.New()}
	r := New(st, st, brokenCache{}, time.Hour, logger.NewNop())
	insert(t, st, &domain.Mapping{QrID: "ABCD1234", TargetURL: "https://example.com/a", IsActive: true})

	res, err := r.Resolve(context.Background(), "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", res.TargetURL)

	err = r.Invalidate(context.Background(), "ABCD1234")
	assert.ErrorIs(t, err, domain.ErrCacheInvalidation)
}

func TestResolveStoreErrorIsNotNotFound(t *testing.T) {
	st := &countingStore{Store: memory.New(), err: errors.New("db down")}
	r := New(st, st, cache.NewMemory(0), time.Hour, logger.NewNop())

	_, err := r.Resolve(context.Background(), "ABCD1234")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveIncludesApplicationName(t *testing.T) {
	r, st, _ := setup(t)
	ctx := context.Background()
	app := &domain.Application{Name: "marketing", IsActive: true}
	require.NoError(t, st.InsertApplication(ctx, app))
	insert(t, st, &domain.Mapping{QrID: "ABCD1234", TargetURL: "https://example.com", IsActive: true, ApplicationID: &app.ID})

	res, err := r.Resolve(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, "marketing", res.ApplicationName)
}

func TestWarm(t *testing.T) {
	r, st, c := setup(t)
	ctx := context.Background()
	insert(t, st, &domain.Mapping{QrID: "ABCD1234", TargetURL: "https://example.com", IsActive: true})

	require.NoError(t, r.Warm(ctx, "ABCD1234"))
	require.NoError(t, r.Warm(ctx, "GONE0000"))

	_, ok, _ := c.Get(ctx, cache.ResolutionKey("ABCD1234"))
	assert.True(t, ok)
}

// pausingStore reads the row on the first lookup, then blocks until released.
type pausingStore struct {
	*memory.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingStore() *pausingStore {
	return &pausingStore{Store: memory.New(), read: make(chan struct{}), release: make(chan struct{})}
}

func (p *pausingStore) FindActiveByQrID(ctx context.Context, qrID string) (*domain.Mapping, error) {
	m, err := p.Store.FindActiveByQrID(ctx, qrID)
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.read)
		<-p.release
	}
	return m, err
}

func TestInvalidateWaitsForInFlightFill(t *testing.T) {
	newURL := "https://example.com/b"
	inactive := false

	tests := []struct {
		name  string
		patch domain.MappingPatch
		check func(t *testing.T, res *Resolution, err error)
	}{
		{
			name:  "target update",
			patch: domain.MappingPatch{TargetURL: &newURL},
			check: func(t *testing.T, res *Resolution, err error) {
				require.NoError(t, err)
				assert.Equal(t, newURL, res.TargetURL)
			},
		},
		{
			name:  "deactivation",
			patch: domain.MappingPatch{IsActive: &inactive},
			check: func(t *testing.T, _ *Resolution, err error) {
				assert.ErrorIs(t, err, domain.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := newPausingStore()
			r := New(st, st, cache.NewMemory(0), time.Hour, logger.NewNop())
			m := &domain.Mapping{QrID: "ABCD1234", TargetURL: "https://example.com/a", IsActive: true}
			require.NoError(t, st.Insert(ctx, m))

			filled := make(chan error, 1)
			go func() {
				_, err := r.Resolve(ctx, "ABCD1234")
				filled <- err
			}()
			<-st.read

			// The reader holds the old row. Commit the mutation and invalidate.
			_, err := st.UpdateFields(ctx, m.ID, tt.patch, time.Now())
			require.NoError(t, err)

			invalidated := make(chan error, 1)
			go func() { invalidated <- r.Invalidate(ctx, "ABCD1234") }()

			select {
			case <-invalidated:
				t.Fatal("Invalidate returned while a fill of the same id was in flight")
			case <-time.After(50 * time.Millisecond):
			}

			close(st.release)
			require.NoError(t, <-invalidated)
			require.NoError(t, <-filled)

			res, err := r.Resolve(ctx, "ABCD1234")
			tt.check(t, res, err)
		})
	}
}

func TestResolveConcurrentWithUpdates(t *testing.T) {
	r, st, _ := setup(t)
	ctx := context.Background()
	m := &domain.Mapping{QrID: "ABCD1234", TargetURL: "https://example.com/0", IsActive: true}
	insert(t, st, m)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := r.Resolve(ctx, "ABCD1234"); err != nil {
					t.Errorf("resolve: %v", err)
					return
				}
			}
		}()
	}

	for i := 1; i <= 100; i++ {
		want := fmt.Sprintf("https://example.com/%d", i)
		_, err := st.UpdateFields(ctx, m.ID, domain.MappingPatch{TargetURL: &want}, time.Now())
		require.NoError(t, err)
		require.NoError(t, r.Invalidate(ctx, "ABCD1234"))

		res, err := r.Resolve(ctx, "ABCD1234")
		require.NoError(t, err)
		if res.TargetURL != want {
			close(stop)
			wg.Wait()
			t.Fatalf("after update %d resolved %s, want %s", i, res.TargetURL, want)
		}
	}
	close(stop)
	wg.Wait()
}
