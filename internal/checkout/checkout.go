// Package checkout orchestrates the payment flow: snapshot, discount
// negotiation, operator selection, finalize, tender and change.
package checkout

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/mock-register/internal/domain/cart"
	"github.com/xenking/mock-register/internal/domain/discount"
	"github.com/xenking/mock-register/internal/domain/popularity"
)

var (
	// ErrInvalidAmount is returned for a custom tender amount that does
	// not parse as a positive money value. The operator is re-prompted.
	ErrInvalidAmount = errors.New("invalid tender amount")
	// ErrInsufficientTender is returned when the tendered cash does not
	// cover the amount due.
	ErrInsufficientTender = errors.New("tendered amount below total due")
)

// Method is how the customer pays.
type Method string

const (
	MethodCredit         Method = "credit"
	MethodCashExact      Method = "cash_exact"
	MethodCashNextDollar Method = "cash_next_dollar"
	MethodCashCustom     Method = "cash_custom"
)

// Negotiator is the discount service client consumed by the checkout flow.
type Negotiator interface {
	Negotiate(ctx context.Context, lines []discount.LineItem) (*discount.Offer, error)
}

// PayRequest describes one payment attempt.
type PayRequest struct {
	Method Method
	// Amount is the tendered cash for MethodCashCustom, ignored otherwise.
	Amount decimal.Decimal
	// Discount is the operator's accepted discount, zero-valued for none.
	Discount cart.AppliedDiscount
}

// Receipt is the outcome of a successful payment.
type Receipt struct {
	SaleID   string
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Tendered decimal.Decimal
	Change   decimal.Decimal
}

// Service drives the checkout flow against the ledger.
type Service struct {
	ledger     *cart.Ledger
	negotiator Negotiator
	ranker     *popularity.Ranker
	taxRate    decimal.Decimal
}

// NewService creates a checkout Service. ranker may be nil when shortcut
// refresh is not wanted.
func NewService(ledger *cart.Ledger, negotiator Negotiator, ranker *popularity.Ranker, taxRate decimal.Decimal) *Service {
	return &Service{
		ledger:     ledger,
		negotiator: negotiator,
		ranker:     ranker,
		taxRate:    taxRate,
	}
}

// Offer runs one negotiation round for the current cart. The network call
// runs off the caller's critical path; cancelling ctx abandons the
// negotiation and any response arriving afterwards is discarded, never
// applied. An empty cart fails with cart.ErrNoActiveTransaction.
func (s *Service) Offer(ctx context.Context) (*discount.Offer, error) {
	snap := s.ledger.Snapshot(ctx)
	if snap.Empty() {
		return nil, cart.ErrNoActiveTransaction
	}

	lines := make([]discount.LineItem, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		lines = append(lines, discount.LineItem{
			UPC:         l.Code,
			Description: l.Description,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
		})
	}

	type result struct {
		offer *discount.Offer
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		offer, err := s.negotiator.Negotiate(ctx, lines)
		ch <- result{offer: offer, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "negotiation abandoned")
	case r := <-ch:
		return r.offer, r.err
	}
}

// Pay finalizes the sale with the requested tender. On success the cart is
// cleared, the sale recorded, and the shortcut table refreshed. A cart with
// nothing due, empty or zero-total, fails with cart.ErrNoActiveTransaction
// before any tender is taken.
func (s *Service) Pay(ctx context.Context, req PayRequest) (*Receipt, error) {
	snap := s.ledger.Snapshot(ctx)
	due := cart.FinalTotals(snap.Totals.Subtotal, req.Discount.Total, s.taxRate)
	if !due.GrandTotal.IsPositive() {
		return nil, cart.ErrNoActiveTransaction
	}

	tendered, err := tenderFor(req, due.GrandTotal)
	if err != nil {
		return nil, err
	}

	sale, err := s.ledger.Finalize(ctx, req.Discount)
	if err != nil {
		return nil, err
	}

	if s.ranker != nil {
		if err := s.ranker.Refresh(ctx); err != nil {
			zctx.From(ctx).Warn("Shortcut refresh failed after sale", zap.Error(err))
		}
	}

	return &Receipt{
		SaleID:   sale.ID,
		Subtotal: sale.Subtotal,
		Discount: sale.DiscountTotal,
		Tax:      sale.Tax,
		Total:    sale.Total,
		Tendered: tendered,
		Change:   tendered.Sub(sale.Total),
	}, nil
}

// tenderFor resolves the tendered amount for the given method. Credit and
// exact cash tender the amount due; next-dollar rounds the due amount up to
// a whole dollar; custom cash uses the operator-entered amount and must
// cover the total.
func tenderFor(req PayRequest, due decimal.Decimal) (decimal.Decimal, error) {
	switch req.Method {
	case MethodCredit, MethodCashExact:
		return due, nil
	case MethodCashNextDollar:
		return due.Ceil(), nil
	case MethodCashCustom:
		if req.Amount.LessThan(due) {
			return decimal.Decimal{}, errors.Wrapf(ErrInsufficientTender,
				"tendered %s, due %s", req.Amount, due)
		}
		return req.Amount, nil
	default:
		return decimal.Decimal{}, errors.Errorf("unsupported payment method: %q", req.Method)
	}
}

// ParseTenderAmount parses an operator-entered cash amount. Anything that is
// not a positive money value fails with ErrInvalidAmount so the operator can
// be re-prompted; no state changes.
func ParseTenderAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrInvalidAmount, "%q", s)
	}
	if v.IsNegative() {
		return decimal.Decimal{}, errors.Wrapf(ErrInvalidAmount, "%q", s)
	}
	return v.Round(2), nil
}
