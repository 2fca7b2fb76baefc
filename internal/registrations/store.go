// Package registrations persists issued tickets and owns the two race-sensitive writes:
// idempotent insert and the at-most-once check-in flip.
package registrations

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/models"
	"gorm.io/gorm"
)

const (
	maxCodeAttempts    = 5
	defaultSearchLimit = 200
	maxSearchLimit     = 1000
)

var ErrCodeSpaceExhausted = errors.New("could not allocate a unique registration code")

type Store struct {
	db      *gorm.DB
	newCode CodeGenerator
}

func NewStore(db *gorm.DB, gen CodeGenerator) *Store {
	if gen == nil {
		gen = NewCodeGenerator("")
	}
	return &Store{db: db, newCode: gen}
}

// InsertOrFetch stores reg under a fresh registration code. If a row with the same
// idempotency key already exists it is returned with created=false and nothing is written.
func (s *Store) InsertOrFetch(ctx context.Context, reg *models.Registration) (*models.Registration, bool, error) {
	if reg.IdempotencyKey == "" {
		return nil, false, fmt.Errorf("%w: missing idempotency key", apperr.ErrValidation)
	}

	existing, err := s.byKey(ctx, reg.IdempotencyKey)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, false, err
		}

		row := *reg
		row.ID = 0
		row.RegistrationCode = code

		err = s.db.WithContext(ctx).Create(&row).Error
		if err == nil {
			return &row, true, nil
		}
		if !isDuplicate(err) {
			return nil, false, fmt.Errorf("insert registration: %w", err)
		}

		// Lost a race on the idempotency key, or drew a code already in use.
		existing, ferr := s.byKey(ctx, reg.IdempotencyKey)
		if ferr == nil {
			return existing, false, nil
		}
		if !errors.Is(ferr, apperr.ErrNotFound) {
			return nil, false, ferr
		}
	}

	return nil, false, ErrCodeSpaceExhausted
}

func (s *Store) byKey(ctx context.Context, key string) (*models.Registration, error) {
	return s.first(ctx, "idempotency_key = ?", key)
}

func (s *Store) Get(ctx context.Context, id uint64) (*models.Registration, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Store) GetByCode(ctx context.Context, code string) (*models.Registration, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: missing registration code", apperr.ErrValidation)
	}
	return s.first(ctx, "registration_code = ?", code)
}

func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*models.Registration, error) {
	return s.first(ctx, "gateway_payment_id = ?", paymentID)
}

func (s *Store) first(ctx context.Context, query string, args ...any) (*models.Registration, error) {
	var reg models.Registration
	if err := s.db.WithContext(ctx).Where(query, args...).First(&reg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: registration", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}

// CheckIn flips checked_in from false to true in a single conditional update.
// It reports false when the row was already checked in (or does not match eventSlug).
func (s *Store) CheckIn(ctx context.Context, id uint64, operator, eventSlug string) (bool, error) {
	now := time.Now().UTC()

	q := s.db.WithContext(ctx).Model(&models.Registration{}).
		Where("id = ? AND checked_in = ?", id, false)
	if eventSlug != "" {
		q = q.Where("event_slug = ?", eventSlug)
	}

	res := q.Updates(map[string]any{
		"checked_in":    true,
		"checked_in_at": now,
		"checked_in_by": operator,
	})
	if res.Error != nil {
		return false, fmt.Errorf("check in registration %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) MarkQRIssued(ctx context.Context, id uint64, path, url string) error {
	now := time.Now().UTC()
	return s.update(ctx, id, map[string]any{
		"qr_path":         path,
		"qr_url":          url,
		"qr_generated":    true,
		"qr_generated_at": now,
	})
}

func (s *Store) RefreshQRURL(ctx context.Context, id uint64, url string) error {
	return s.update(ctx, id, map[string]any{"qr_url": url})
}

func (s *Store) MarkEmailed(ctx context.Context, id uint64) error {
	now := time.Now().UTC()
	return s.update(ctx, id, map[string]any{
		"emailed":                true,
		"emailed_at":             now,
		"last_fulfillment_error": "",
	})
}

// ClaimEmail reserves the ticket email for one sender. It reports false when the row
// is already emailed or another sender holds a claim younger than lease.
func (s *Store) ClaimEmail(ctx context.Context, id uint64, lease time.Duration) (bool, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Registration{}).
		Where("id = ? AND emailed = ?", id, false).
		Where("(email_claimed_at IS NULL OR email_claimed_at < ?)", now.Add(-lease)).
		Update("email_claimed_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("claim email for registration %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseEmailClaim lets the next sender retry right away after a failed send.
func (s *Store) ReleaseEmailClaim(ctx context.Context, id uint64) error {
	return s.update(ctx, id, map[string]any{"email_claimed_at": nil})
}

func (s *Store) RecordFulfillmentFailure(ctx context.Context, id uint64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return s.update(ctx, id, map[string]any{
		"fulfillment_attempts":   gorm.Expr("fulfillment_attempts + ?", 1),
		"last_fulfillment_error": msg,
	})
}

func (s *Store) update(ctx context.Context, id uint64, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.Registration{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update registration %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: registration %d", apperr.ErrNotFound, id)
	}
	return nil
}

type PendingQuery struct {
	OlderThan    time.Time
	MaxAttempts  int
	IncludeEmail bool
	Limit        int
}

// PendingFulfillment lists rows whose QR (and optionally email) never landed.
func (s *Store) PendingFulfillment(ctx context.Context, q PendingQuery) ([]models.Registration, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	tx := s.db.WithContext(ctx).Model(&models.Registration{}).
		Where("created_at < ?", q.OlderThan)
	if q.MaxAttempts > 0 {
		tx = tx.Where("fulfillment_attempts < ?", q.MaxAttempts)
	}
	if q.IncludeEmail {
		tx = tx.Where("qr_generated = ? OR emailed = ?", false, false)
	} else {
		tx = tx.Where("qr_generated = ?", false)
	}

	var rows []models.Registration
	if err := tx.Order("id asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("pending fulfillment: %w", err)
	}
	return rows, nil
}

type SearchQuery struct {
	Query     string
	EventSlug string
	Limit     int
	Offset    int
}

// Search matches code, name, email, phone and event slug case-insensitively,
// plus the id when the query is numeric. Newest first.
func (s *Store) Search(ctx context.Context, sq SearchQuery) ([]models.Registration, error) {
	limit := sq.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := sq.Offset
	if offset < 0 {
		offset = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Registration{})
	if slug := strings.TrimSpace(sq.EventSlug); slug != "" {
		tx = tx.Where("event_slug = ?", slug)
	}

	if term := strings.TrimSpace(sq.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		cond := s.db.Where("LOWER(registration_code) LIKE ?", like).
			Or("LOWER(student_name) LIKE ?", like).
			Or("LOWER(student_email) LIKE ?", like).
			Or("LOWER(COALESCE(student_phone, '')) LIKE ?", like).
			Or("LOWER(event_slug) LIKE ?", like)
		if id, err := strconv.ParseUint(term, 10, 64); err == nil {
			cond = cond.Or("id = ?", id)
		}
		tx = tx.Where(cond)
	}

	var rows []models.Registration
	err := tx.Order("created_at desc").Order("id desc").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search registrations: %w", err)
	}
	return rows, nil
}

type EventStats struct {
	EventSlug     string     `json:"eventSlug"`
	Count         int64      `json:"count"`
	AmountSum     int64      `json:"amountSum"`
	LastCreatedAt *time.Time `json:"lastCreatedAt"`
}

// StatsByEvent aggregates registrations per event slug, most recently active first.
func (s *Store) StatsByEvent(ctx context.Context) ([]EventStats, error) {
	var rows []struct {
		EventSlug     string
		Count         int64
		AmountSum     int64
		LastCreatedAt string
	}
	err := s.db.WithContext(ctx).Model(&models.Registration{}).
		Select("event_slug, COUNT(*) AS count, COALESCE(SUM(amount_minor), 0) AS amount_sum, MAX(created_at) AS last_created_at").
		Group("event_slug").
		Order("last_created_at desc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("stats by event: %w", err)
	}

	out := make([]EventStats, 0, len(rows))
	for _, r := range rows {
		stats := EventStats{EventSlug: r.EventSlug, Count: r.Count, AmountSum: r.AmountSum}
		if ts, ok := parseTimestamp(r.LastCreatedAt); ok {
			stats.LastCreatedAt = &ts
		}
		out = append(out, stats)
	}
	return out, nil
}

// Ping checks the database connection for diagnostics.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// timestampLayouts covers MAX(created_at) as returned by postgres (a time value the
// sql package formats as RFC 3339) and by sqlite (the stored text).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
