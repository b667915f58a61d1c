// Package discount negotiates with the external discount service and applies
// the operator's selection to the sale.
package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrUnavailable covers every negotiation failure: unreachable service,
// non-2xx status, timeout, malformed body. The caller proceeds with zero
// discount; a sale is never blocked on the discount service.
var ErrUnavailable = errors.New("discount service unavailable")

// LineItem is one cart line sent to the service. Only lines with positive
// quantity are sent.
type LineItem struct {
	UPC         string
	Description string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// OfferLine is one discount in the service's response. Amount may be zero
// for a candidate rule that did not qualify.
type OfferLine struct {
	Description string
	Amount      decimal.Decimal
}

// Offer is the structured result of one negotiation.
type Offer struct {
	Lines              []OfferLine
	TotalDiscount      decimal.Decimal
	DiscountedSubtotal decimal.Decimal
}

// Trivial reports whether the offer carries nothing worth showing the
// operator: zero total and no non-zero line.
func (o *Offer) Trivial() bool {
	if !o.TotalDiscount.IsZero() {
		return false
	}
	for _, l := range o.Lines {
		if !l.Amount.IsZero() {
			return false
		}
	}
	return true
}

// NonZeroLines filters out zero-amount lines, which must never be presented
// as choices.
func (o *Offer) NonZeroLines() []OfferLine {
	out := make([]OfferLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		if !l.Amount.IsZero() {
			out = append(out, l)
		}
	}
	return out
}

// ApplyAll accepts the whole offer: the service's own discountedSubtotal
// becomes the new subtotal, floored at zero.
func ApplyAll(offer *Offer) (newSubtotal, totalDiscount decimal.Decimal) {
	sub := offer.DiscountedSubtotal
	if sub.IsNegative() {
		sub = decimal.Zero
	}
	return sub, offer.TotalDiscount
}

// ApplySubset recomputes the subtotal client-side from the selected lines:
// original subtotal minus the sum of selected amounts, floored at zero. The
// service computes an all-or-nothing total, so a partial application is a
// client-side approximation that the server does not re-validate.
func ApplySubset(subtotal decimal.Decimal, selected []OfferLine) (newSubtotal, totalDiscount decimal.Decimal) {
	total := decimal.Zero
	for _, l := range selected {
		total = total.Add(l.Amount)
	}
	sub := subtotal.Sub(total)
	if sub.IsNegative() {
		sub = decimal.Zero
	}
	return sub, total
}
