// Package cart implements the live transaction ledger: the authoritative
// owner of line items, quantities, and totals for the sale in progress.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for ledger operation preconditions.
var (
	// ErrNoActiveTransaction is returned when an operation requires a
	// completable transaction: the cart is empty, or its grand total is
	// zero and there is nothing to finalize.
	ErrNoActiveTransaction = errors.New("no active transaction")
	// ErrOrderNotFound is returned when a held order id does not exist.
	ErrOrderNotFound = errors.New("held order not found")
	// ErrLineAbsent is returned when setting a quantity on a code that has
	// no line in the cart. Quantity changes apply only to existing lines.
	ErrLineAbsent = errors.New("line not present in cart")
)

// PersistenceError indicates a durable write failed. The transaction is left
// intact so the operation can be retried.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "persistence failed: " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Line is a single code+quantity entry. A cart holds at most one line per
// code; quantity is always >= 1 for a present line.
type Line struct {
	Code     string
	Quantity int
}

// PricedLine is a line joined with its price book entry, as presented on the
// display and sent to the discount service.
type PricedLine struct {
	Code         string
	Description  string
	UnitPrice    decimal.Decimal
	Quantity     int
	LineSubtotal decimal.Decimal
}

// Totals holds the derived amounts recomputed on every mutation.
type Totals struct {
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	GrandTotal decimal.Decimal
}

// Snapshot is a read-only view of the live transaction.
type Snapshot struct {
	Lines  []PricedLine
	Totals Totals
}

// Empty reports whether the snapshot has no lines.
func (s Snapshot) Empty() bool { return len(s.Lines) == 0 }

// DiscountLine is one applied reduction, positive amounts reduce the subtotal.
type DiscountLine struct {
	Description string
	Amount      decimal.Decimal
}

// AppliedDiscount is the discount the operator accepted for the current sale.
type AppliedDiscount struct {
	Lines []DiscountLine
	Total decimal.Decimal
}

// Sale is a finalized transaction handed to the SaleRecorder.
type Sale struct {
	ID            string
	Lines         []PricedLine
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	CreatedAt     time.Time
}

// SaleSummary is one row of the sales history listing.
type SaleSummary struct {
	ID        string
	CreatedAt time.Time
	Total     decimal.Decimal
}

// HeldOrderSummary describes one suspended order in the store.
type HeldOrderSummary struct {
	ID        string
	CreatedAt time.Time
	Total     decimal.Decimal
}

// HeldOrderStore durably stores suspended carts. Retrieve is single-shot:
// a successfully retrieved order is removed from the store.
type HeldOrderStore interface {
	Hold(ctx context.Context, lines []Line, total decimal.Decimal) (string, error)
	Retrieve(ctx context.Context, id string) ([]Line, error)
	List(ctx context.Context) ([]HeldOrderSummary, error)
}

// SaleRecorder durably stores finalized sales and serves historical
// popularity counts derived from them.
type SaleRecorder interface {
	Record(ctx context.Context, sale *Sale) error
	Counts(ctx context.Context) (map[string]int64, error)
	List(ctx context.Context) ([]SaleSummary, error)
}

// ComputeTotals derives subtotal, tax, and grand total from priced lines.
// Rounding order is significant and must not change: round the subtotal,
// compute tax on the rounded subtotal, round the tax, sum, round the total.
// All rounding is 2 decimal places, half-up.
func ComputeTotals(lines []PricedLine, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineSubtotal)
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(taxRate).Round(2)
	return Totals{
		Subtotal:   subtotal,
		Tax:        tax,
		GrandTotal: subtotal.Add(tax).Round(2),
	}
}

// FinalTotals applies a discount total to a subtotal and re-derives tax and
// grand total with the same rounding order as ComputeTotals. The discounted
// subtotal is floored at zero so a discount can never drive the sale negative.
func FinalTotals(subtotal, discountTotal, taxRate decimal.Decimal) Totals {
	discounted := subtotal.Sub(discountTotal)
	if discounted.IsNegative() {
		discounted = decimal.Zero
	}
	discounted = discounted.Round(2)
	tax := discounted.Mul(taxRate).Round(2)
	return Totals{
		Subtotal:   discounted,
		Tax:        tax,
		GrandTotal: discounted.Add(tax).Round(2),
	}
}
