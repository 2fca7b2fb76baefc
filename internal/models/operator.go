package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Operator is a back-office account that can sign in for a bearer token.
// Whether it may use admin or ops routes is decided by the configured allow-lists.
type Operator struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	Email        string    `gorm:"unique;not null"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (operator *Operator) BeforeCreate(tx *gorm.DB) (err error) {
	if operator.ID == uuid.Nil {
		operator.ID = uuid.New()
	}
	operator.Email = NormalizeEmail(operator.Email)
	return
}
