package qr

import (
	"fmt"
	"strings"
)

// ObjectPath is where a registration's QR image lives in the bucket.
func ObjectPath(year int, code string) string {
	return fmt.Sprintf("registrations/%d/%s.png", year, Sanitize(code))
}

// Sanitize maps anything outside [A-Za-z0-9-_.] to '-'.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		}
		return '-'
	}, s)
}
