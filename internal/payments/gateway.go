// Package payments talks to the payment gateway: it creates orders and verifies
// checkout callbacks before any registration is written.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrGatewayUnavailable covers transport failures, timeouts and 5xx answers.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected is a definitive 4xx answer from the gateway.
	ErrGatewayRejected = errors.New("payment gateway rejected request")
)

const DefaultGatewayURL = "https://api.razorpay.com"

type GatewayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Gateway is a small Razorpay REST client using HTTP basic auth.
type Gateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type GatewayPayment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Email    string `json:"email"`
	Contact  string `json:"contact"`
	Captured bool   `json:"captured"`

	Raw json.RawMessage `json:"-"`
}

// StatusError is a non-2xx gateway answer. Server errors and credential failures
// unwrap to ErrGatewayUnavailable, other 4xx answers to ErrGatewayRejected.
type StatusError struct {
	StatusCode  int
	Description string
}

func (e *StatusError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("gateway status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway status %d: %s", e.StatusCode, e.Description)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode >= 500, e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden,
		e.StatusCode == http.StatusTooManyRequests:
		return ErrGatewayUnavailable
	default:
		return ErrGatewayRejected
	}
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func NewGateway(cfg GatewayConfig) *Gateway {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultGatewayURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		baseURL:   base,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		client:    &http.Client{Timeout: timeout},
	}
}

// KeyID is the public key handed to the checkout widget.
func (g *Gateway) KeyID() string {
	return g.keyID
}

func (g *Gateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	body := map[string]interface{}{
		"amount":          amount,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}

	var order GatewayOrder
	if _, err := g.do(ctx, http.MethodPost, "/v1/orders", body, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: order response without id", ErrGatewayUnavailable)
	}
	return &order, nil
}

func (g *Gateway) FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	var payment GatewayPayment
	raw, err := g.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &payment)
	if err != nil {
		return nil, err
	}
	payment.Raw = raw
	return &payment, nil
}

// Ping checks that the gateway answers and accepts the configured credentials.
func (g *Gateway) Ping(ctx context.Context) error {
	_, err := g.do(ctx, http.MethodGet, "/v1/orders?count=1", nil, nil)
	return err
}

func (g *Gateway) do(ctx context.Context, method, path string, payload interface{}, out interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode gateway request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.SetBasicAuth(g.keyID, g.keySecret)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var gerr gatewayError
		_ = json.Unmarshal(body, &gerr)
		return nil, &StatusError{StatusCode: resp.StatusCode, Description: gerr.Error.Description}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
		}
	}
	return body, nil
}
