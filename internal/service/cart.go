package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/client/order"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// EventPublisher announces cart changes. Failures are logged and never fail
// the cart operation.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, sessionID string, c cart.Cart) error
	PublishCartCleared(ctx context.Context, sessionID, reason string) error
	PublishCartCheckedOut(ctx context.Context, sessionID string, orderID int64, c cart.Cart) error
}

// OrderSubmitter turns a cart into an order.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req order.Request) (int64, error)
}

// AddItemInput is a product offered for adding to the cart.
type AddItemInput struct {
	ID        int64
	Name      string
	UnitPrice decimal.Decimal
	Image     string
}

// CheckoutInput carries what the order service needs beyond the cart lines.
type CheckoutInput struct {
	ShippingAddress order.Address
	AuthToken       string
}

// View is the read model handed to display collaborators.
type View struct {
	Items      []cart.LineItem
	ItemCount  int
	TotalPrice decimal.Decimal
}

func viewOf(s *cart.Store) View {
	return View{
		Items:      s.Items(),
		ItemCount:  s.ItemCount(),
		TotalPrice: s.TotalPrice(),
	}
}

// Config tunes a CartService.
type Config struct {
	// SessionIdle is how long an untouched session stays in memory.
	SessionIdle time.Duration
	// SlotTimeout bounds each slot read and write.
	SlotTimeout time.Duration
}

// CartService owns one cart Store per session and serializes work on each.
type CartService struct {
	sessions *registry
	events   EventPublisher
	orders   OrderSubmitter
	logger   *slog.Logger
	idle     time.Duration
}

// NewCartService builds the service. Stores are created lazily, one per
// session, from slots handed out by slots.
func NewCartService(slots repository.SlotProvider, events EventPublisher, orders OrderSubmitter, logger *slog.Logger, cfg Config) *CartService {
	return &CartService{
		sessions: newRegistry(slots, logger, cart.WithSlotTimeout(cfg.SlotTimeout)),
		events:   events,
		orders:   orders,
		logger:   logger,
		idle:     cfg.SessionIdle,
	}
}

// Run evicts idle sessions until ctx is cancelled.
func (s *CartService) Run(ctx context.Context) {
	if s.idle <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	s.sessions.janitor(ctx, s.idle, interval)
}

// View returns the session's cart.
func (s *CartService) View(ctx context.Context, sessionID string) (View, error) {
	if err := validateSession(sessionID); err != nil {
		return View{}, err
	}

	var v View
	err := s.sessions.with(ctx, sessionID, func(st *cart.Store) error {
		v = viewOf(st)
		return nil
	})
	return v, err
}

// AddItem adds one unit of the product to the cart.
func (s *CartService) AddItem(ctx context.Context, sessionID string, in AddItemInput) (View, error) {
	if err := validateSession(sessionID); err != nil {
		return View{}, err
	}
	if in.ID <= 0 {
		return View{}, apperrors.InvalidInput("id must be a positive integer")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return View{}, apperrors.InvalidInput("name is required")
	}
	if err := cart.CheckUnitPrice(in.UnitPrice); err != nil {
		return View{}, apperrors.InvalidInput(err.Error())
	}

	return s.mutate(ctx, sessionID, func(st *cart.Store) {
		st.Add(ctx, cart.Candidate{ID: in.ID, Name: name, UnitPrice: in.UnitPrice, Image: in.Image})
	})
}

// RemoveItem drops the product's line. Unknown products are ignored.
func (s *CartService) RemoveItem(ctx context.Context, sessionID string, productID int64) (View, error) {
	if err := validateSession(sessionID); err != nil {
		return View{}, err
	}
	return s.mutate(ctx, sessionID, func(st *cart.Store) {
		st.Remove(ctx, productID)
	})
}

// SetQuantity sets the product's quantity; zero or less removes the line.
func (s *CartService) SetQuantity(ctx context.Context, sessionID string, productID int64, qty int) (View, error) {
	if err := validateSession(sessionID); err != nil {
		return View{}, err
	}
	return s.mutate(ctx, sessionID, func(st *cart.Store) {
		st.SetQuantity(ctx, productID, qty)
	})
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, sessionID string) (View, error) {
	if err := validateSession(sessionID); err != nil {
		return View{}, err
	}

	var v View
	err := s.sessions.with(ctx, sessionID, func(st *cart.Store) error {
		st.Clear(ctx)
		v = viewOf(st)
		return nil
	})
	if err != nil {
		return View{}, err
	}

	if perr := s.events.PublishCartCleared(ctx, sessionID, event.ClearedByUser); perr != nil {
		s.logPublishFailure(ctx, perr)
	}
	return v, nil
}

// Checkout submits the cart as an order. On success the cart is cleared and
// the order id returned; on any failure the cart is left as it was.
func (s *CartService) Checkout(ctx context.Context, sessionID string, in CheckoutInput) (int64, error) {
	if err := validateSession(sessionID); err != nil {
		return 0, err
	}

	var (
		orderID int64
		ordered cart.Cart
	)
	err := s.sessions.with(ctx, sessionID, func(st *cart.Store) error {
		snap := st.Snapshot()
		if snap.IsEmpty() {
			return apperrors.InvalidInput("cart is empty")
		}

		req := order.Request{
			Items:           make([]order.Item, len(snap.Items)),
			ShippingAddress: in.ShippingAddress,
			AuthToken:       in.AuthToken,
		}
		for i, it := range snap.Items {
			req.Items[i] = order.Item{ProductID: it.ID, Quantity: it.Quantity}
		}

		id, err := s.orders.SubmitOrder(ctx, req)
		if err != nil {
			return fmt.Errorf("submit order: %w", err)
		}

		st.Clear(ctx)
		orderID, ordered = id, snap
		return nil
	})
	if err != nil {
		checkouts.WithLabelValues("failed").Inc()
		return 0, err
	}
	checkouts.WithLabelValues("ok").Inc()

	s.logger.InfoContext(ctx, "cart checked out",
		slog.Int64("order_id", orderID),
		slog.Int("item_count", ordered.ItemCount()),
		slog.String("total_price", ordered.TotalPrice().StringFixed(2)),
	)

	if perr := s.events.PublishCartCheckedOut(ctx, sessionID, orderID, ordered); perr != nil {
		s.logPublishFailure(ctx, perr)
	}
	if perr := s.events.PublishCartCleared(ctx, sessionID, event.ClearedByCheckout); perr != nil {
		s.logPublishFailure(ctx, perr)
	}
	return orderID, nil
}

func (s *CartService) mutate(ctx context.Context, sessionID string, fn func(*cart.Store)) (View, error) {
	var (
		v    View
		snap cart.Cart
	)
	err := s.sessions.with(ctx, sessionID, func(st *cart.Store) error {
		fn(st)
		v = viewOf(st)
		snap = st.Snapshot()
		return nil
	})
	if err != nil {
		return View{}, err
	}

	if perr := s.events.PublishCartUpdated(ctx, sessionID, snap); perr != nil {
		s.logPublishFailure(ctx, perr)
	}
	return v, nil
}

func (s *CartService) logPublishFailure(ctx context.Context, err error) {
	s.logger.WarnContext(ctx, "cart event not published", slog.String("error", err.Error()))
}

func validateSession(id string) error {
	if id == "" {
		return apperrors.InvalidInput("session id is required")
	}
	return nil
}
