package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type Operators struct {
	db *gorm.DB
}

func NewOperators(db *gorm.DB) *Operators {
	return &Operators{db: db}
}

func (o *Operators) Create(ctx context.Context, email, password string) (*models.Operator, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", apperr.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password shorter than %d characters", apperr.ErrValidation, minPasswordLength)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	operator := models.Operator{Email: email, PasswordHash: string(hashed)}
	if err := o.db.WithContext(ctx).Create(&operator).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: operator %s already exists", apperr.ErrValidation, email)
		}
		return nil, fmt.Errorf("create operator: %w", err)
	}
	return &operator, nil
}

// Authenticate checks credentials; unknown emails and wrong passwords look the same.
func (o *Operators) Authenticate(ctx context.Context, email, password string) (*models.Operator, error) {
	var operator models.Operator
	err := o.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&operator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
		}
		return nil, fmt.Errorf("find operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}
	return &operator, nil
}
