// Package apperr holds the error kinds shared across the ticketing packages.
// Packages wrap these with fmt.Errorf("%w: ...") and callers classify with errors.Is.
package apperr

import "errors"

var (
	ErrValidation              = errors.New("validation error")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrNotFound                = errors.New("not found")
	ErrPaymentRejected         = errors.New("payment rejected")
	ErrVerificationUnavailable = errors.New("verification unavailable")
	ErrOrderCreation           = errors.New("order creation failed")
	ErrStorage                 = errors.New("storage failure")
	ErrEmail                   = errors.New("email failure")
)

// Retryable reports whether the caller may retry the failed operation as is.
func Retryable(err error) bool {
	return errors.Is(err, ErrVerificationUnavailable) ||
		errors.Is(err, ErrOrderCreation) ||
		errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrEmail)
}
