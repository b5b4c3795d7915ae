// Package audit records redirect attempts off the request path. Losing an
// event under overload or store failure is acceptable; delaying a redirect is not.
package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
)

// DropPolicy decides which event is lost when the queue is full.
type DropPolicy string

const (
	DropNew    DropPolicy = "drop-new"
	DropOldest DropPolicy = "drop-oldest"
)

// ParseDropPolicy defaults to DropNew for unknown values.
func ParseDropPolicy(s string) DropPolicy {
	if DropPolicy(s) == DropOldest {
		return DropOldest
	}
	return DropNew
}

// Appender is the only store operation the logger needs.
type Appender interface {
	AppendEvent(ctx context.Context, e *domain.RedirectEvent) error
}

// Options configures the queue and its workers.
type Options struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
	DropPolicy   DropPolicy
}

// Counters is a snapshot of the logger's activity.
type Counters struct {
	Enqueued int64 `json:"enqueued"`
	Written  int64 `json:"written"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
	Pending  int   `json:"pending"`
}

// Logger queues RedirectEvents and persists them from background workers.
type Logger struct {
	store  Appender
	logger logger.Logger
	opts   Options
	now    func() time.Time

	queue  chan *domain.RedirectEvent
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.RWMutex // guards started/stopped against concurrent Record
	started bool
	stopped bool

	enqueued atomic.Int64
	written  atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// New creates a stopped Logger. Call Start to begin persisting.
func New(store Appender, log logger.Logger, opts Options) *Logger {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 2 * time.Second
	}
	if opts.DropPolicy == "" {
		opts.DropPolicy = DropNew
	}
	return &Logger{
		store:  store,
		logger: log,
		opts:   opts,
		now:    time.Now,
		queue:  make(chan *domain.RedirectEvent, opts.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// Record enqueues one event and returns immediately. success is derived from targetURL.
// Text fields are made storable first, see sanitize.
func (l *Logger) Record(qrID, ipAddress, userAgent string, targetURL *string) {
	e := &domain.RedirectEvent{
		QrID:         sanitize(qrID, maxQrIDLen),
		IPAddress:    sanitize(ipAddress, maxIPLen),
		UserAgent:    sanitize(userAgent, maxUserAgentLen),
		Success:      targetURL != nil,
		RedirectTime: l.now(),
	}
	if targetURL != nil {
		t := *targetURL
		e.TargetURL = &t
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		l.drop(e, "logger stopped")
		return
	}

	select {
	case l.queue <- e:
		l.enqueued.Add(1)
		return
	default:
	}

	if l.opts.DropPolicy == DropOldest {
		select {
		case old := <-l.queue:
			l.drop(old, "queue full, dropped oldest")
		default:
		}
		select {
		case l.queue <- e:
			l.enqueued.Add(1)
			return
		default:
		}
	}
	l.drop(e, "queue full")
}

// Column limits of the redirect log, in characters.
const (
	maxQrIDLen      = 100
	maxIPLen        = 45
	maxUserAgentLen = 1024
)

// sanitize replaces invalid UTF-8 with U+FFFD, strips NUL bytes (both are
// rejected by postgres text columns) and cuts s to at most n runes.
func sanitize(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = strings.ReplaceAll(s, "\x00", "")
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func (l *Logger) drop(e *domain.RedirectEvent, reason string) {
	l.dropped.Add(1)
	l.logger.Debug("audit event dropped",
		logger.String("qr_id", e.QrID),
		logger.String("reason", reason))
}

// Start launches the workers. It is a no-op when already started.
func (l *Logger) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.stopped {
		return
	}
	l.started = true

	for i := 0; i < l.opts.Workers; i++ {
		l.wg.Add(1)
		go l.run(ctx)
	}
	l.logger.Info("🚀 audit logger started",
		logger.Int("workers", l.opts.Workers),
		logger.Int("queue_size", l.opts.QueueSize),
		logger.String("drop_policy", string(l.opts.DropPolicy)))
}

// Stop rejects new events, drains the queue and waits for the workers.
func (l *Logger) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	started := l.started
	close(l.stopCh)
	l.mu.Unlock()

	if started {
		l.wg.Wait()
	}
	// Without workers, whatever is still queued is lost.
	for {
		select {
		case e := <-l.queue:
			if started {
				l.write(context.Background(), e)
			} else {
				l.drop(e, "logger never started")
			}
		default:
			l.logger.Info("✅ audit logger stopped cleanly",
				logger.Int64("written", l.written.Load()),
				logger.Int64("failed", l.failed.Load()),
				logger.Int64("dropped", l.dropped.Load()))
			return
		}
	}
}

func (l *Logger) run(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case e := <-l.queue:
			l.write(ctx, e)
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// write persists one event. Errors and panics are logged and swallowed.
func (l *Logger) write(parent context.Context, e *domain.RedirectEvent) {
	// Detached from request cancellation; bounded by WriteTimeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), l.opts.WriteTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			l.failed.Add(1)
			l.logger.Error("audit write panicked",
				logger.String("qr_id", e.QrID),
				logger.Error(fmt.Errorf("%w: %v", domain.ErrLoggingFailure, r)))
		}
	}()

	if err := l.store.AppendEvent(ctx, e); err != nil {
		l.failed.Add(1)
		l.logger.Warn("failed to persist redirect event",
			logger.String("qr_id", e.QrID),
			logger.Bool("success", e.Success),
			logger.Error(fmt.Errorf("%w: %w", domain.ErrLoggingFailure, err)))
		return
	}
	l.written.Add(1)
}

// Counters returns the current activity snapshot.
func (l *Logger) Counters() Counters {
	return Counters{
		Enqueued: l.enqueued.Load(),
		Written:  l.written.Load(),
		Failed:   l.failed.Load(),
		Dropped:  l.dropped.Load(),
		Pending:  len(l.queue),
	}
}
