package payments

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/helpers"
)

type mockFetcher struct {
	FetchPaymentFunc func(ctx context.Context, paymentID string) (*GatewayPayment, error)
	calls            int
}

func (m *mockFetcher) FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	m.calls++
	return m.FetchPaymentFunc(ctx, paymentID)
}

func captured(orderID string, amount int64) func(context.Context, string) (*GatewayPayment, error) {
	return func(_ context.Context, id string) (*GatewayPayment, error) {
		return &GatewayPayment{ID: id, OrderID: orderID, Amount: amount, Currency: "INR", Status: "captured"}, nil
	}
}

func TestValidSignature(t *testing.T) {
	const secret = "key_secret"
	sig := helpers.SignHex(secret, "order_1|pay_1")

	tests := []struct {
		name                   string
		orderID, paymentID, sg string
		want                   bool
	}{
		{"matching", "order_1", "pay_1", sig, true},
		{"swapped ids", "pay_1", "order_1", sig, false},
		{"other payment", "order_1", "pay_2", sig, false},
		{"empty order", "", "pay_1", helpers.SignHex(secret, "|pay_1"), false},
		{"empty payment", "order_1", "", helpers.SignHex(secret, "order_1|"), false},
		{"empty signature", "order_1", "pay_1", "", false},
		{"all empty", "", "", "", false},
		{"garbage", "order_1", "pay_1", "not-a-signature", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidSignature(secret, tt.orderID, tt.paymentID, tt.sg); got != tt.want {
				t.Errorf("ValidSignature = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidSignature_EmptySecret(t *testing.T) {
	sig := helpers.SignHex("", "order_1|pay_1")
	if ValidSignature("", "order_1", "pay_1", sig) {
		t.Error("signature under an empty secret accepted")
	}

	fetcher := &mockFetcher{FetchPaymentFunc: captured("order_1", 1000)}
	_, err := NewVerifier("", fetcher).Verify(context.Background(), "order_1", "pay_1", sig)
	if !errors.Is(err, apperr.ErrPaymentRejected) {
		t.Errorf("err = %v, want ErrPaymentRejected", err)
	}
	if fetcher.calls != 0 {
		t.Error("gateway contacted without a secret")
	}
}

func TestVerify(t *testing.T) {
	const secret = "key_secret"
	good := helpers.SignHex(secret, "order_1|pay_1")

	tests := []struct {
		name      string
		signature string
		fetch     func(context.Context, string) (*GatewayPayment, error)
		wantErr   error
		wantCalls int
	}{
		{
			name:      "captured",
			signature: good,
			fetch:     captured("order_1", 49900),
			wantCalls: 1,
		},
		{
			name:      "bad signature skips gateway",
			signature: helpers.SignHex("wrong", "order_1|pay_1"),
			fetch:     captured("order_1", 49900),
			wantErr:   apperr.ErrPaymentRejected,
			wantCalls: 0,
		},
		{
			name:      "authorized only",
			signature: good,
			fetch: func(_ context.Context, id string) (*GatewayPayment, error) {
				return &GatewayPayment{ID: id, OrderID: "order_1", Amount: 49900, Status: "authorized"}, nil
			},
			wantErr:   apperr.ErrPaymentRejected,
			wantCalls: 1,
		},
		{
			name:      "captured for another order",
			signature: good,
			fetch:     captured("order_other", 49900),
			wantErr:   apperr.ErrPaymentRejected,
			wantCalls: 1,
		},
		{
			name:      "gateway down fails closed",
			signature: good,
			fetch: func(context.Context, string) (*GatewayPayment, error) {
				return nil, fmt.Errorf("%w: connection refused", ErrGatewayUnavailable)
			},
			wantErr:   apperr.ErrVerificationUnavailable,
			wantCalls: 1,
		},
		{
			name:      "gateway does not know payment",
			signature: good,
			fetch: func(context.Context, string) (*GatewayPayment, error) {
				return nil, &StatusError{StatusCode: 400}
			},
			wantErr:   apperr.ErrPaymentRejected,
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &mockFetcher{FetchPaymentFunc: tt.fetch}
			v := NewVerifier(secret, fetcher)

			capture, err := v.Verify(context.Background(), "order_1", "pay_1", tt.signature)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if capture != nil {
					t.Error("capture returned alongside error")
				}
			} else if err != nil {
				t.Fatalf("Verify: %v", err)
			} else if capture.AmountMinor != 49900 || capture.PaymentID != "pay_1" {
				t.Errorf("capture = %+v", capture)
			}
			if fetcher.calls != tt.wantCalls {
				t.Errorf("gateway calls = %d, want %d", fetcher.calls, tt.wantCalls)
			}
		})
	}
}
