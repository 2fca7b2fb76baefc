// Package events stores per-event configuration: display data, price and the active flag.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Patch carries the fields an upsert sets. Nil fields are left untouched on update
// and take their defaults on create.
type Patch struct {
	Name       *string
	PriceMinor *int64
	Active     *bool
	Title      *string
	Excerpt    *string
	Date       *string
	Location   *string
	ImageURL   *string
}

type ListOptions struct {
	ActiveOnly bool
	Limit      int
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, slug string) (*models.Event, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: missing slug", apperr.ErrValidation)
	}

	var ev models.Event
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: event %s", apperr.ErrNotFound, slug)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &ev, nil
}

func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.Event, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := s.db.WithContext(ctx).Model(&models.Event{})
	if opts.ActiveOnly {
		q = q.Where("active = ?", true)
	}

	var list []models.Event
	err := q.Order("date asc").Order("created_at asc").Limit(limit).Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return list, nil
}

// Upsert creates the event or updates only the patched columns in one statement.
func (s *Store) Upsert(ctx context.Context, slug string, patch Patch) (*models.Event, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: missing slug", apperr.ErrValidation)
	}
	if patch.PriceMinor != nil && *patch.PriceMinor < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", apperr.ErrValidation)
	}

	ev := models.Event{Slug: slug, Active: true}
	columns := []string{"updated_at"}

	if patch.Name != nil {
		ev.Name = *patch.Name
		columns = append(columns, "name")
	}
	if patch.PriceMinor != nil {
		ev.PriceMinor = *patch.PriceMinor
		columns = append(columns, "price_minor")
	}
	if patch.Active != nil {
		ev.Active = *patch.Active
		columns = append(columns, "active")
	}
	if patch.Title != nil {
		ev.Title = *patch.Title
		columns = append(columns, "title")
	}
	if patch.Excerpt != nil {
		ev.Excerpt = *patch.Excerpt
		columns = append(columns, "excerpt")
	}
	if patch.Date != nil {
		ev.Date = *patch.Date
		columns = append(columns, "date")
	}
	if patch.Location != nil {
		ev.Location = *patch.Location
		columns = append(columns, "location")
	}
	if patch.ImageURL != nil {
		ev.ImageURL = *patch.ImageURL
		columns = append(columns, "image_url")
	}
	ev.UpdatedAt = time.Now()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&ev).Error
	if err != nil {
		return nil, fmt.Errorf("upsert event: %w", err)
	}

	return s.Get(ctx, slug)
}

// SetImage points an existing event at a freshly uploaded cover image.
func (s *Store) SetImage(ctx context.Context, slug, url string) (*models.Event, error) {
	if _, err := s.Get(ctx, slug); err != nil {
		return nil, err
	}
	return s.Upsert(ctx, slug, Patch{ImageURL: &url})
}
