package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/mock-register/internal/domain/cart"
	"github.com/xenking/mock-register/internal/domain/discount"
	"github.com/xenking/mock-register/internal/domain/item"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubPriceBook struct {
	items map[string]item.Item
}

func (s *stubPriceBook) Lookup(_ context.Context, code string) (*item.Item, error) {
	it, ok := s.items[code]
	if !ok {
		return nil, item.ErrNotFound
	}
	return &it, nil
}

type memHeldStore struct{}

func (memHeldStore) Hold(context.Context, []cart.Line, decimal.Decimal) (string, error) {
	return "", nil
}

func (memHeldStore) Retrieve(context.Context, string) ([]cart.Line, error) {
	return nil, cart.ErrOrderNotFound
}

func (memHeldStore) List(context.Context) ([]cart.HeldOrderSummary, error) { return nil, nil }

type memRecorder struct {
	sales []*cart.Sale
}

func (r *memRecorder) Record(_ context.Context, sale *cart.Sale) error {
	r.sales = append(r.sales, sale)
	return nil
}

func (r *memRecorder) Counts(context.Context) (map[string]int64, error) { return nil, nil }

func (r *memRecorder) List(context.Context) ([]cart.SaleSummary, error) { return nil, nil }

type stubNegotiator struct {
	offer *discount.Offer
	err   error
	delay time.Duration
	calls int
}

func (n *stubNegotiator) Negotiate(ctx context.Context, _ []discount.LineItem) (*discount.Offer, error) {
	n.calls++
	if n.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(n.delay):
		}
	}
	return n.offer, n.err
}

// fixture: item A at 1.50, item B at 1.00, 7% tax.
func newFixture(t *testing.T, neg Negotiator) (*Service, *cart.Ledger, *memRecorder) {
	t.Helper()
	pb := &stubPriceBook{items: map[string]item.Item{
		"1000": {Code: "1000", Description: "Item A", UnitPrice: dec("1.50")},
		"2000": {Code: "2000", Description: "Item B", UnitPrice: dec("1.00")},
	}}
	rec := &memRecorder{}
	taxRate := dec("0.07")
	ledger := cart.NewLedger(pb, memHeldStore{}, rec, taxRate,
		cart.WithIDGenerator(func() string { return "sale-1" }))
	svc := NewService(ledger, neg, nil, taxRate)
	return svc, ledger, rec
}

func fill(t *testing.T, ledger *cart.Ledger) {
	t.Helper()
	ctx := context.Background()
	// 2x A (1.50) + 3x B (1.00) = 6.00 subtotal, 0.42 tax, 6.42 total.
	_, err := ledger.AddItem(ctx, "1000")
	require.NoError(t, err)
	_, err = ledger.SetQuantity(ctx, "1000", 2)
	require.NoError(t, err)
	_, err = ledger.AddItem(ctx, "2000")
	require.NoError(t, err)
	_, err = ledger.SetQuantity(ctx, "2000", 3)
	require.NoError(t, err)
}

func TestOffer(t *testing.T) {
	neg := &stubNegotiator{offer: &discount.Offer{
		Lines:              []discount.OfferLine{{Description: "Promo", Amount: dec("0.60")}},
		TotalDiscount:      dec("0.60"),
		DiscountedSubtotal: dec("5.40"),
	}}
	svc, ledger, _ := newFixture(t, neg)
	fill(t, ledger)

	offer, err := svc.Offer(context.Background())
	require.NoError(t, err)
	assert.False(t, offer.Trivial())
	assert.True(t, offer.TotalDiscount.Equal(dec("0.60")))
}

func TestOfferEmptyCart(t *testing.T) {
	neg := &stubNegotiator{}
	svc, _, _ := newFixture(t, neg)

	_, err := svc.Offer(context.Background())
	require.ErrorIs(t, err, cart.ErrNoActiveTransaction)
	assert.Zero(t, neg.calls, "no negotiation for an empty cart")
}

func TestOfferAbandoned(t *testing.T) {
	neg := &stubNegotiator{delay: time.Second, offer: &discount.Offer{TotalDiscount: dec("9.99")}}
	svc, ledger, _ := newFixture(t, neg)
	fill(t, ledger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := svc.Offer(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The late response was discarded; the cart is untouched and payable
	// at the undiscounted total.
	receipt, err := svc.Pay(context.Background(), PayRequest{Method: MethodCredit})
	require.NoError(t, err)
	assert.True(t, receipt.Total.Equal(dec("6.42")))
}

func TestPayCredit(t *testing.T) {
	svc, ledger, rec := newFixture(t, &stubNegotiator{})
	fill(t, ledger)

	receipt, err := svc.Pay(context.Background(), PayRequest{Method: MethodCredit})
	require.NoError(t, err)
	assert.Equal(t, "sale-1", receipt.SaleID)
	assert.True(t, receipt.Subtotal.Equal(dec("6.00")))
	assert.True(t, receipt.Tax.Equal(dec("0.42")))
	assert.True(t, receipt.Total.Equal(dec("6.42")))
	assert.True(t, receipt.Tendered.Equal(dec("6.42")))
	assert.True(t, receipt.Change.IsZero())
	require.Len(t, rec.sales, 1)
	assert.True(t, ledger.Snapshot(context.Background()).Empty())
}

func TestPayCashNextDollar(t *testing.T) {
	svc, ledger, _ := newFixture(t, &stubNegotiator{})
	fill(t, ledger)

	receipt, err := svc.Pay(context.Background(), PayRequest{Method: MethodCashNextDollar})
	require.NoError(t, err)
	assert.True(t, receipt.Tendered.Equal(dec("7")), "tendered %s", receipt.Tendered)
	assert.True(t, receipt.Change.Equal(dec("0.58")), "change %s", receipt.Change)
}

func TestPayCashCustom(t *testing.T) {
	svc, ledger, _ := newFixture(t, &stubNegotiator{})
	fill(t, ledger)

	receipt, err := svc.Pay(context.Background(), PayRequest{
		Method: MethodCashCustom,
		Amount: dec("10.00"),
	})
	require.NoError(t, err)
	assert.True(t, receipt.Change.Equal(dec("3.58")), "change %s", receipt.Change)
}

func TestPayCashCustomInsufficient(t *testing.T) {
	svc, ledger, rec := newFixture(t, &stubNegotiator{})
	fill(t, ledger)

	_, err := svc.Pay(context.Background(), PayRequest{
		Method: MethodCashCustom,
		Amount: dec("5.00"),
	})
	require.ErrorIs(t, err, ErrInsufficientTender)
	assert.Empty(t, rec.sales)
	assert.False(t, ledger.Snapshot(context.Background()).Empty(), "cart intact for retry")
}

func TestPayWithDiscount(t *testing.T) {
	svc, ledger, rec := newFixture(t, &stubNegotiator{})
	fill(t, ledger)

	// 6.00 - 1.00 = 5.00; tax 0.35; total 5.35.
	receipt, err := svc.Pay(context.Background(), PayRequest{
		Method: MethodCredit,
		Discount: cart.AppliedDiscount{
			Lines: []cart.DiscountLine{{Description: "Promo", Amount: dec("1.00")}},
			Total: dec("1.00"),
		},
	})
	require.NoError(t, err)
	assert.True(t, receipt.Discount.Equal(dec("1.00")))
	assert.True(t, receipt.Tax.Equal(dec("0.35")))
	assert.True(t, receipt.Total.Equal(dec("5.35")))
	require.Len(t, rec.sales, 1)
	assert.True(t, rec.sales[0].DiscountTotal.Equal(dec("1.00")))
}

func TestPayNothingDue(t *testing.T) {
	svc, ledger, rec := newFixture(t, &stubNegotiator{})
	fill(t, ledger)

	// A discount wiping the whole subtotal leaves nothing due; the sale is
	// not completable and the cart stays intact.
	_, err := svc.Pay(context.Background(), PayRequest{
		Method:   MethodCredit,
		Discount: cart.AppliedDiscount{Total: dec("10.00")},
	})
	require.ErrorIs(t, err, cart.ErrNoActiveTransaction)
	assert.Empty(t, rec.sales)
	assert.False(t, ledger.Snapshot(context.Background()).Empty(), "cart intact")
}

func TestPayEmptyCart(t *testing.T) {
	svc, _, rec := newFixture(t, &stubNegotiator{})

	_, err := svc.Pay(context.Background(), PayRequest{Method: MethodCredit})
	require.ErrorIs(t, err, cart.ErrNoActiveTransaction)
	assert.Empty(t, rec.sales)
}

func TestPayUnknownMethod(t *testing.T) {
	svc, ledger, _ := newFixture(t, &stubNegotiator{})
	fill(t, ledger)

	_, err := svc.Pay(context.Background(), PayRequest{Method: "barter"})
	require.Error(t, err)
}

func TestParseTenderAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "10.00", want: "10.00"},
		{in: " $20 ", want: "20"},
		{in: "7.005", want: "7.01"},
		{in: "", wantErr: true},
		{in: "ten dollars", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "1,50", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTenderAmount(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "got %s", got)
		})
	}
}
