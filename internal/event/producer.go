package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/cart"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Cart topics.
var (
	TopicCartUpdated    = pkgkafka.Topic("storefront", "cart", "updated")
	TopicCartCleared    = pkgkafka.Topic("storefront", "cart", "cleared")
	TopicCartCheckedOut = pkgkafka.Topic("storefront", "cart", "checked_out")
)

const (
	aggregateCart = "cart"
	source        = "cart-service"
)

// Reasons carried by cart.cleared.
const (
	ClearedByUser     = "user"
	ClearedByCheckout = "checkout"
)

// ItemData is one cart line inside an event payload. Prices are decimal
// strings.
type ItemData struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// CartUpdatedData is the cart.updated payload.
type CartUpdatedData struct {
	SessionID  string     `json:"session_id"`
	Items      []ItemData `json:"items"`
	ItemCount  int        `json:"item_count"`
	TotalPrice string     `json:"total_price"`
}

// CartClearedData is the cart.cleared payload.
type CartClearedData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// CartCheckedOutData is the cart.checked_out payload.
type CartCheckedOutData struct {
	SessionID  string     `json:"session_id"`
	OrderID    int64      `json:"order_id"`
	Items      []ItemData `json:"items"`
	ItemCount  int        `json:"item_count"`
	TotalPrice string     `json:"total_price"`
}

// Producer publishes cart events. Sessions are the aggregate, so every event
// for one cart is keyed to the same partition.
type Producer struct {
	pub    pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer wraps pub.
func NewProducer(pub pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{pub: pub, logger: logger}
}

// PublishCartUpdated announces the cart's new contents.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID string, c cart.Cart) error {
	return p.publish(ctx, TopicCartUpdated, sessionID, CartUpdatedData{
		SessionID:  sessionID,
		Items:      itemData(c.Items),
		ItemCount:  c.ItemCount(),
		TotalPrice: c.TotalPrice().StringFixed(2),
	})
}

// PublishCartCleared announces that the cart was emptied.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID, reason string) error {
	return p.publish(ctx, TopicCartCleared, sessionID, CartClearedData{
		SessionID: sessionID,
		Reason:    reason,
	})
}

// PublishCartCheckedOut announces that c was turned into orderID.
func (p *Producer) PublishCartCheckedOut(ctx context.Context, sessionID string, orderID int64, c cart.Cart) error {
	return p.publish(ctx, TopicCartCheckedOut, sessionID, CartCheckedOutData{
		SessionID:  sessionID,
		OrderID:    orderID,
		Items:      itemData(c.Items),
		ItemCount:  c.ItemCount(),
		TotalPrice: c.TotalPrice().StringFixed(2),
	})
}

func (p *Producer) publish(ctx context.Context, topic, sessionID string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, sessionID, aggregateCart, source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.pub.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published cart event",
		slog.String("topic", topic),
		slog.String("event_id", evt.EventID),
	)
	return nil
}

func itemData(items []cart.LineItem) []ItemData {
	out := make([]ItemData, len(items))
	for i, it := range items {
		out[i] = ItemData{
			ProductID: it.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Quantity:  it.Quantity,
		}
	}
	return out
}
