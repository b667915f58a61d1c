// Package item defines the price book entry model and the narrow lookup
// interface the register core consumes.
package item

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a code has no price book entry.
var ErrNotFound = errors.New("item not found")

// Default accepted code length bounds. Codes shorter than MinCodeLen are
// indistinguishable from stray keystrokes; longer than MaxCodeLen exceeds
// any real UPC/EAN symbology.
const (
	MinCodeLen = 2
	MaxCodeLen = 64
)

// Item is one price book row: an immutable code, description, and unit price.
type Item struct {
	Code        string
	Description string
	UnitPrice   decimal.Decimal
}

// PriceBook provides read-only lookup of items by code.
type PriceBook interface {
	Lookup(ctx context.Context, code string) (*Item, error)
}

// InvalidCodeLengthError indicates a code outside the accepted length bounds.
// It is rejected before any price book lookup.
type InvalidCodeLengthError struct {
	Code   string
	Length int
}

func (e *InvalidCodeLengthError) Error() string {
	return fmt.Sprintf("code length %d outside accepted bounds [%d, %d]", e.Length, MinCodeLen, MaxCodeLen)
}

// ValidateCode trims the given code and checks its length against the
// accepted bounds. It returns the trimmed code.
func ValidateCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if len(code) < MinCodeLen || len(code) > MaxCodeLen {
		return "", &InvalidCodeLengthError{Code: code, Length: len(code)}
	}
	return code, nil
}
