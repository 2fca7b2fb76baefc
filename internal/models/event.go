package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Event is the per-event configuration consulted by ordering and public listings.
type Event struct {
	Slug       string    `gorm:"primaryKey;size:128" json:"slug"`
	Name       string    `gorm:"not null;default:''" json:"name"`
	PriceMinor int64     `gorm:"not null" json:"priceMinorUnits"`
	Active     bool      `gorm:"not null;index" json:"active"`
	Title      string    `gorm:"not null;default:''" json:"title"`
	Excerpt    string    `gorm:"not null;default:''" json:"excerpt"`
	Date       string    `gorm:"not null;default:''" json:"date"`
	Location   string    `gorm:"not null;default:''" json:"location"`
	ImageURL   string    `gorm:"not null;default:''" json:"imageUrl"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsFree reports whether registrations for the event skip payment.
func (e *Event) IsFree() bool {
	return e.PriceMinor == 0
}

func (e *Event) BeforeCreate(tx *gorm.DB) (err error) {
	e.Slug = strings.TrimSpace(e.Slug)
	return
}
