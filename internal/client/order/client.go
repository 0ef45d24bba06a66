// Package order submits checked-out carts to the order service.
package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "order-service"

// Item is one order line.
type Item struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Address is where the order ships to.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// Request is an order submission. AuthToken, when set, is forwarded as the
// Authorization header.
type Request struct {
	Items           []Item  `json:"items"`
	ShippingAddress Address `json:"shipping_address"`
	AuthToken       string  `json:"-"`
}

type createdOrder struct {
	ID int64 `json:"id"`
}

// Client talks to POST {baseURL}/orders through a circuit breaker.
type Client struct {
	http    *httpclient.BreakerClient
	baseURL string
	logger  *slog.Logger
}

// NewClient returns an order client rooted at baseURL.
func NewClient(baseURL string, hc *httpclient.BreakerClient, logger *slog.Logger) *Client {
	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// SubmitOrder creates an order and returns its id. Failures are AppErrors:
// 4xx answers keep their meaning, while 5xx, transport errors and an open
// breaker become ServiceUnavailable.
func (c *Client) SubmitOrder(ctx context.Context, req Request) (int64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.AuthToken != "" {
		httpReq.Header.Set("Authorization", req.AuthToken)
	}

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return 0, c.transportError(ctx, err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return 0, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var out createdOrder
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return 0, apperrors.Internal(fmt.Errorf("decode order response: %w", err))
	}
	if out.ID <= 0 {
		return 0, apperrors.Internal(fmt.Errorf("order service returned id %d", out.ID))
	}

	c.logger.InfoContext(ctx, "order submitted",
		slog.Int64("order_id", out.ID),
		slog.Int("lines", len(req.Items)),
	)
	return out.ID, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return httpclient.MapStatus(se.StatusCode, se.Body, serviceName)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	c.logger.WarnContext(ctx, "order service call failed",
		slog.String("breaker", c.http.Name()),
		slog.String("error", err.Error()),
	)
	if errors.Is(err, httpclient.ErrCircuitOpen) {
		return apperrors.ServiceUnavailable("order service is temporarily unavailable", err)
	}
	return apperrors.ServiceUnavailable("order service unreachable", err)
}
