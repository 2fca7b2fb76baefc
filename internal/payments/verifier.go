package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/helpers"
)

const statusCaptured = "captured"

// Capture is the gateway's view of a verified, captured payment.
type Capture struct {
	PaymentID   string
	OrderID     string
	AmountMinor int64
	Currency    string
	Status      string
	Email       string
	Raw         []byte
}

type PaymentFetcher interface {
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
}

// ValidSignature checks the checkout callback signature: hex HMAC-SHA256 of
// "<orderID>|<paymentID>" under the gateway key secret. Without a secret nothing is valid.
func ValidSignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" {
		return false
	}
	return helpers.VerifyHex(secret, orderID+"|"+paymentID, strings.TrimSpace(signature))
}

type Verifier struct {
	secret  string
	fetcher PaymentFetcher
}

func NewVerifier(secret string, fetcher PaymentFetcher) *Verifier {
	return &Verifier{secret: secret, fetcher: fetcher}
}

// CheckSignature is the offline half of Verify.
func (v *Verifier) CheckSignature(orderID, paymentID, signature string) error {
	if !ValidSignature(v.secret, orderID, paymentID, signature) {
		return fmt.Errorf("%w: signature mismatch", apperr.ErrPaymentRejected)
	}
	return nil
}

// Verify authenticates the callback and confirms with the gateway that the payment was
// captured against orderID. A signature mismatch never reaches the gateway; any failure
// to reach a verdict is reported as ErrVerificationUnavailable.
func (v *Verifier) Verify(ctx context.Context, orderID, paymentID, signature string) (*Capture, error) {
	if err := v.CheckSignature(orderID, paymentID, signature); err != nil {
		return nil, err
	}

	payment, err := v.fetcher.FetchPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrGatewayRejected) {
			return nil, fmt.Errorf("%w: %v", apperr.ErrPaymentRejected, err)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrVerificationUnavailable, err)
	}

	if payment.Status != statusCaptured {
		return nil, fmt.Errorf("%w: payment status %q", apperr.ErrPaymentRejected, payment.Status)
	}
	if payment.OrderID != orderID {
		return nil, fmt.Errorf("%w: payment belongs to another order", apperr.ErrPaymentRejected)
	}
	if payment.Amount <= 0 {
		return nil, fmt.Errorf("%w: captured amount %d", apperr.ErrPaymentRejected, payment.Amount)
	}

	return &Capture{
		PaymentID:   paymentID,
		OrderID:     orderID,
		AmountMinor: payment.Amount,
		Currency:    payment.Currency,
		Status:      payment.Status,
		Email:       payment.Email,
		Raw:         payment.Raw,
	}, nil
}
