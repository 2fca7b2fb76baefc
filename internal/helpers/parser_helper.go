package helpers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/farellandr/ticketgate/internal/apperr"
)

func StringToInt(s string) (int, error) {
	return strconv.Atoi(s)
}

// ParseID reads a positive registration id from a path or query value.
func ParseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid id %q", apperr.ErrValidation, s)
	}
	return id, nil
}

// QueryInt reads an optional integer query value, falling back to def.
func QueryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := StringToInt(s)
	if err != nil {
		return def
	}
	return n
}
