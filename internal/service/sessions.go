package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/repository"
)

// session is one live cart. mu serializes every operation on the store,
// including the slot write that follows it.
type session struct {
	mu       sync.Mutex
	store    *cart.Store
	lastUsed time.Time
	evicted  bool
}

// registry keeps at most one Store per session ID in memory.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	slots    repository.SlotProvider
	logger   *slog.Logger
	storeOps []cart.Option
	now      func() time.Time
}

func newRegistry(slots repository.SlotProvider, l *slog.Logger, opts ...cart.Option) *registry {
	return &registry{
		sessions: make(map[string]*session),
		slots:    slots,
		logger:   l,
		storeOps: opts,
		now:      time.Now,
	}
}

// with runs fn while holding the session's lock, loading the store from its
// slot on first use.
func (r *registry) with(ctx context.Context, id string, fn func(*cart.Store) error) error {
	for {
		r.mu.Lock()
		s, ok := r.sessions[id]
		if !ok {
			s = &session{}
			r.sessions[id] = s
		}
		r.mu.Unlock()

		s.mu.Lock()
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return err
		}
		if s.evicted {
			s.mu.Unlock()
			continue
		}
		if s.store == nil {
			opts := append([]cart.Option{
				cart.WithLogger(r.logger.With(slog.String("session_id", id), slog.String("slot_backend", r.slots.Name()))),
			}, r.storeOps...)
			// A cancelled request must not leave an empty cart cached over a
			// readable slot; the slot timeout still bounds the load.
			s.store = cart.NewStore(context.WithoutCancel(ctx), r.slots.Open(id), opts...)
		}
		s.lastUsed = r.now()
		err := fn(s.store)
		s.mu.Unlock()
		return err
	}
}

// evictIdle drops sessions unused for longer than idle. Sessions busy with a
// request are skipped. Their slots are untouched, so the next request for
// an evicted session reloads it.
func (r *registry) evictIdle(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if s.lastUsed.Before(cutoff) {
			s.evicted = true
			delete(r.sessions, id)
			evicted++
		}
		s.mu.Unlock()
	}
	return evicted
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// janitor evicts idle sessions every interval until ctx is done.
func (r *registry) janitor(ctx context.Context, idle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.evictIdle(idle); n > 0 {
				r.logger.Debug("evicted idle cart sessions",
					slog.Int("evicted", n),
					slog.Int("live", r.len()),
				)
			}
			liveSessions.Set(float64(r.len()))
		}
	}
}
