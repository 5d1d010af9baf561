// Package loader fetches and decodes forecast hours off the simulation
// thread and installs completed snapshots into the field store. Failures are
// retried with bounded backoff and then reported as permanently unavailable;
// nothing in here ever surfaces as an error to the simulation loop.
package loader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/adambom/sfbaysim/field"
	"github.com/adambom/sfbaysim/store"
)

// Source fetches and decodes one forecast hour. Implementations may block;
// they are only ever called from loader workers.
type Source interface {
	FetchHour(ctx context.Context, source store.Source, hour int) (field.Field, error)
}

// Notifier receives loader events worth telling a human about. Best effort.
type Notifier interface {
	Eventf(format string, args ...interface{})
}

type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Throttle    time.Duration // minimum spacing between fetches
	Workers     int
	QueueSize   int
}

type taskKey struct {
	source store.Source
	hour   int
}

type task struct {
	key       taskKey
	cancelled atomic.Bool
}

type Loader struct {
	cfg      Config
	fetcher  Source
	store    *store.Store
	limiter  *rate.Limiter
	notifier Notifier

	mu       sync.Mutex
	inflight map[taskKey]*task

	queue  chan *task
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

func New(cfg Config, fetcher Source, st *store.Store, notifier Notifier) *Loader {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}

	limit := rate.Inf
	if cfg.Throttle > 0 {
		limit = rate.Every(cfg.Throttle)
	}

	return &Loader{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    st,
		limiter:  rate.NewLimiter(limit, 1),
		notifier: notifier,
		inflight: make(map[taskKey]*task),
		queue:    make(chan *task, cfg.QueueSize),
	}
}

// Start launches the worker goroutines.
func (l *Loader) Start(ctx context.Context) {
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.group, l.ctx = errgroup.WithContext(l.ctx)
	for i := 0; i < l.cfg.Workers; i++ {
		l.group.Go(l.run)
	}
}

// Close stops the workers and waits for them to drain.
func (l *Loader) Close() {
	if l.cancel != nil {
		l.cancel()
	}
	if l.group != nil {
		_ = l.group.Wait()
	}
}

// Request enqueues a fetch+decode task unless the hour is already resident,
// permanently failed, or in flight. Never blocks: a full queue drops the
// request and the next window advance re-issues it.
func (l *Loader) Request(source store.Source, hour int) {
	if l.store.Resident(source, hour) || l.store.Failed(source, hour) {
		return
	}

	key := taskKey{source: source, hour: hour}

	l.mu.Lock()
	if _, busy := l.inflight[key]; busy {
		l.mu.Unlock()
		return
	}
	t := &task{key: key}
	l.inflight[key] = t
	l.mu.Unlock()

	select {
	case l.queue <- t:
		log.Debugf("Queued load of %s hour %d", source, hour)
	default:
		l.mu.Lock()
		delete(l.inflight, key)
		l.mu.Unlock()
		log.Warnf("Load queue full, dropping request for %s hour %d", source, hour)
	}
}

// Cancel marks an in-flight task cancelled. The task checks the flag before
// installing, so a cancelled hour that still completes discards its result.
func (l *Loader) Cancel(source store.Source, hour int) {
	key := taskKey{source: source, hour: hour}

	l.mu.Lock()
	t, busy := l.inflight[key]
	l.mu.Unlock()

	if busy {
		t.cancelled.Store(true)
		log.Debugf("Cancelled load of %s hour %d", source, hour)
	}
}

func (l *Loader) run() error {
	for {
		select {
		case <-l.ctx.Done():
			return l.ctx.Err()
		case t := <-l.queue:
			l.process(t)
		}
	}
}

func (l *Loader) process(t *task) {
	defer func() {
		l.mu.Lock()
		delete(l.inflight, t.key)
		l.mu.Unlock()
	}()

	if t.cancelled.Load() {
		return
	}

	if err := l.limiter.Wait(l.ctx); err != nil {
		return
	}

	f, err := l.fetch(t)
	if err != nil {
		l.store.MarkUnavailable(t.key.source, t.key.hour)
		if l.notifier != nil {
			l.notifier.Eventf("forecast hour %d of %s unavailable: %v", t.key.hour, t.key.source, err)
		}
		return
	}
	if f == nil {
		// Cancelled mid-flight.
		return
	}

	if t.cancelled.Load() {
		log.Infof("Discarding cancelled %s hour %d", t.key.source, t.key.hour)
		return
	}

	l.store.Install(t.key.source, t.key.hour, f)
}

// fetch runs the retry loop. Returns (nil, nil) when the task was cancelled
// between attempts or the loader is shutting down.
func (l *Loader) fetch(t *task) (field.Field, error) {
	var lastErr error

	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		if t.cancelled.Load() {
			return nil, nil
		}

		f, err := l.fetcher.FetchHour(l.ctx, t.key.source, t.key.hour)
		if err == nil {
			return f, nil
		}
		lastErr = err
		log.WithError(err).Warnf("Fetch of %s hour %d failed (attempt %d/%d)", t.key.source, t.key.hour, attempt, l.cfg.MaxAttempts)

		if attempt < l.cfg.MaxAttempts {
			delay := l.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-l.ctx.Done():
				// Shutdown, not a data failure: the hour must stay
				// requestable for the next session.
				return nil, nil
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("exhausted %d attempts: %w", l.cfg.MaxAttempts, lastErr)
}
