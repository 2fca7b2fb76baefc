package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusPaid = "paid"
	StatusFree = "free"
)

// Registration is one issued ticket. Rows are never deleted; after insert only the
// fulfillment and check-in columns change.
type Registration struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RegistrationCode string `gorm:"size:32;not null;uniqueIndex" json:"registrationCode"`
	IdempotencyKey   string `gorm:"size:320;not null;uniqueIndex" json:"-"`
	EventSlug        string `gorm:"size:128;not null;index" json:"eventSlug"`

	StudentName  string  `gorm:"not null" json:"studentName"`
	StudentEmail string  `gorm:"not null;index" json:"studentEmail"`
	StudentPhone *string `json:"studentPhone,omitempty"`
	College      *string `json:"college,omitempty"`
	Year         *string `json:"year,omitempty"`

	AmountMinor      int64          `gorm:"not null" json:"amountMinorUnits"`
	Currency         string         `gorm:"size:8;not null;default:''" json:"currency,omitempty"`
	Status           string         `gorm:"size:16;not null" json:"status"`
	GatewayOrderID   *string        `gorm:"size:64" json:"gatewayOrderId,omitempty"`
	GatewayPaymentID *string        `gorm:"size:64;uniqueIndex" json:"gatewayPaymentId,omitempty"`
	GatewaySignature *string        `gorm:"size:128" json:"-"`
	GatewayPayload   datatypes.JSON `json:"-"`

	QRURL                *string    `json:"qrUrl,omitempty"`
	QRPath               *string    `json:"-"`
	QRGenerated          bool       `gorm:"not null" json:"qrGenerated"`
	QRGeneratedAt        *time.Time `json:"qrGeneratedAt,omitempty"`
	Emailed              bool       `gorm:"not null" json:"emailed"`
	EmailedAt            *time.Time `json:"emailedAt,omitempty"`
	EmailClaimedAt       *time.Time `json:"-"`
	FulfillmentAttempts  int        `gorm:"not null" json:"fulfillmentAttempts"`
	LastFulfillmentError string     `gorm:"not null;default:''" json:"lastFulfillmentError,omitempty"`

	CheckedIn   bool       `gorm:"not null;index" json:"checkedIn"`
	CheckedInAt *time.Time `json:"checkedInAt,omitempty"`
	CheckedInBy *string    `gorm:"size:320" json:"checkedInBy,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PaymentReference is the gateway proof attached to a paid registration.
type PaymentReference struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"-"`
}

// PaymentReference returns nil for free registrations.
func (r *Registration) PaymentReference() *PaymentReference {
	if r.GatewayPaymentID == nil {
		return nil
	}
	ref := &PaymentReference{GatewayPaymentID: *r.GatewayPaymentID}
	if r.GatewayOrderID != nil {
		ref.GatewayOrderID = *r.GatewayOrderID
	}
	if r.GatewaySignature != nil {
		ref.Signature = *r.GatewaySignature
	}
	return ref
}

func (r *Registration) BeforeCreate(tx *gorm.DB) (err error) {
	r.StudentEmail = NormalizeEmail(r.StudentEmail)
	r.StudentName = strings.TrimSpace(r.StudentName)
	return
}

// PaidKey and FreeKey build the idempotency keys that keep one row per payment
// and one free row per attendee and event.
func PaidKey(paymentID string) string {
	return "pay:" + paymentID
}

func FreeKey(eventSlug, email string) string {
	return "free:" + eventSlug + ":" + NormalizeEmail(email)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
