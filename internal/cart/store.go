package cart

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/repository"
)

// WriteErrorHandler is told about every failed slot write. The in-memory
// cart stays authoritative whatever the handler does.
type WriteErrorHandler func(ctx context.Context, l *slog.Logger, err error)

// IgnoreWriteError logs the failure, counts it in
// cart_slot_write_failures_total and otherwise ignores it.
func IgnoreWriteError(ctx context.Context, l *slog.Logger, err error) {
	slotWriteFailures.Inc()
	l.WarnContext(ctx, "cart slot write failed; keeping in-memory cart",
		slog.String("error", err.Error()),
	)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for slot diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithWriteErrorHandler replaces IgnoreWriteError.
func WithWriteErrorHandler(h WriteErrorHandler) Option {
	return func(s *Store) { s.onWriteError = h }
}

// WithSlotTimeout bounds each slot read and write. Zero means no bound
// beyond the caller's context.
func WithSlotTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// Store owns the cart of one session and mirrors every change into its
// slot. A Store is not safe for concurrent use; its owner serializes calls.
type Store struct {
	state        Cart
	slot         repository.Slot
	logger       *slog.Logger
	onWriteError WriteErrorHandler
	timeout      time.Duration
}

// NewStore builds a store and loads it from slot. It never fails: an absent,
// unreadable or corrupt slot yields an empty or partial cart.
func NewStore(ctx context.Context, slot repository.Slot, opts ...Option) *Store {
	s := &Store{
		slot:         slot,
		logger:       slog.Default(),
		onWriteError: IgnoreWriteError,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reload(ctx)
	return s
}

// Reload replaces the in-memory cart with whatever the slot currently
// holds, under the same rules as NewStore. Nothing is written back.
func (s *Store) Reload(ctx context.Context) {
	s.state = Reduce(s.state, LoadFromStorage{Items: s.load(ctx)})
}

// Add puts one more unit of c in the cart.
func (s *Store) Add(ctx context.Context, c Candidate) {
	s.dispatch(ctx, AddItem{Candidate: c})
}

// Remove deletes the line for id. Unknown ids are ignored.
func (s *Store) Remove(ctx context.Context, id int64) {
	s.dispatch(ctx, RemoveItem{ID: id})
}

// SetQuantity sets the line's quantity; zero or less removes it.
func (s *Store) SetQuantity(ctx context.Context, id int64, qty int) {
	s.dispatch(ctx, SetQuantity{ID: id, Quantity: qty})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.dispatch(ctx, Clear{})
}

// Items returns a copy of the current lines.
func (s *Store) Items() []LineItem {
	return s.state.clone().Items
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() Cart {
	return s.state.clone()
}

// ItemCount returns the number of units in the cart.
func (s *Store) ItemCount() int {
	return s.state.ItemCount()
}

// TotalPrice returns the exact cart total.
func (s *Store) TotalPrice() decimal.Decimal {
	return s.state.TotalPrice()
}

func (s *Store) dispatch(ctx context.Context, a Action) {
	s.state = Reduce(s.state, a)
	s.persist(ctx)
}

func (s *Store) persist(ctx context.Context) {
	data, err := Encode(s.state.Items)
	if err == nil {
		ctx, cancel := s.slotContext(ctx)
		err = s.slot.Store(ctx, data)
		cancel()
	}
	if err != nil {
		s.onWriteError(ctx, s.logger, err)
	}
}

func (s *Store) load(ctx context.Context) []LineItem {
	ctx, cancel := s.slotContext(ctx)
	defer cancel()

	data, err := s.slot.Load(ctx)
	if errors.Is(err, repository.ErrSlotEmpty) {
		slotLoads.WithLabelValues(LoadEmpty).Inc()
		return nil
	}
	if err != nil {
		slotLoads.WithLabelValues(LoadError).Inc()
		s.logger.WarnContext(ctx, "cart slot unreadable; starting empty",
			slog.String("error", err.Error()),
		)
		return nil
	}

	items, drops, err := Decode(data)
	if err != nil {
		slotLoads.WithLabelValues(LoadCorrupt).Inc()
		s.logger.WarnContext(ctx, "cart slot corrupt; starting empty",
			slog.String("error", err.Error()),
			slog.Int("bytes", len(data)),
		)
		return nil
	}

	for _, d := range drops {
		slotEntriesDropped.WithLabelValues(d.Reason).Inc()
		s.logger.WarnContext(ctx, "dropped cart slot entry",
			slog.Int("index", d.Index),
			slog.String("reason", d.Reason),
			slog.String("detail", d.Detail),
		)
	}
	if len(drops) > 0 {
		slotLoads.WithLabelValues(LoadPartial).Inc()
	} else {
		slotLoads.WithLabelValues(LoadOK).Inc()
	}
	return items
}

func (s *Store) slotContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
