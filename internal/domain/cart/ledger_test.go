package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/mock-register/internal/domain/cart"
	"github.com/xenking/mock-register/internal/domain/item"
)

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

type memHeldStore struct {
	orders  map[string][]cart.Line
	nextID  int
	holdErr error
}

func newMemHeldStore() *memHeldStore {
	return &memHeldStore{orders: make(map[string][]cart.Line)}
}

func (s *memHeldStore) Hold(_ context.Context, lines []cart.Line, _ decimal.Decimal) (string, error) {
	if s.holdErr != nil {
		return "", s.holdErr
	}
	s.nextID++
	id := string(rune('a' + s.nextID - 1))
	s.orders[id] = append([]cart.Line(nil), lines...)
	return id, nil
}

func (s *memHeldStore) Retrieve(_ context.Context, id string) ([]cart.Line, error) {
	lines, ok := s.orders[id]
	if !ok {
		return nil, cart.ErrOrderNotFound
	}
	delete(s.orders, id)
	return lines, nil
}

func (s *memHeldStore) List(context.Context) ([]cart.HeldOrderSummary, error) {
	return nil, nil
}

type memRecorder struct {
	sales     []*cart.Sale
	recordErr error
}

func (r *memRecorder) Record(_ context.Context, sale *cart.Sale) error {
	if r.recordErr != nil {
		return r.recordErr
	}
	r.sales = append(r.sales, sale)
	return nil
}

func (r *memRecorder) Counts(context.Context) (map[string]int64, error) { return nil, nil }

func (r *memRecorder) List(context.Context) ([]cart.SaleSummary, error) { return nil, nil }

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testItems = map[string]item.Item{
	"1111": {Code: "1111", Description: "Milk 2% 1gal", UnitPrice: price("3.49")},
	"2222": {Code: "2222", Description: "Bread White", UnitPrice: price("2.29")},
	"3333": {Code: "3333", Description: "Eggs Dozen", UnitPrice: price("1.99")},
}

func newTestLedger(t *testing.T) (*cart.Ledger, *memHeldStore, *memRecorder) {
	t.Helper()
	held := newMemHeldStore()
	rec := &memRecorder{}
	l := cart.NewLedger(
		&stubPriceBook{items: testItems},
		held, rec,
		price("0.07"),
		cart.WithClock(func() time.Time { return time.Unix(1700000000, 0).UTC() }),
		cart.WithIDGenerator(func() string { return "sale-1" }),
	)
	return l, held, rec
}

func TestLedgerAddItem(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	snap, err := l.AddItem(ctx, "1111")
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 1, snap.Lines[0].Quantity)

	// Same code merges into the existing line.
	snap, err = l.AddItem(ctx, "1111")
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.True(t, snap.Lines[0].LineSubtotal.Equal(price("6.98")))

	// Lines keep insertion order.
	snap, err = l.AddItem(ctx, "2222")
	require.NoError(t, err)
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, "1111", snap.Lines[0].Code)
	assert.Equal(t, "2222", snap.Lines[1].Code)
}

func TestLedgerAddItemUnknownCode(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	_, err := l.AddItem(ctx, "1111")
	require.NoError(t, err)

	snap, err := l.AddItem(ctx, "9999")
	require.ErrorIs(t, err, item.ErrNotFound)
	// Transaction untouched.
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 1, snap.Lines[0].Quantity)
}

func TestLedgerAddItemCodeLength(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	_, err := l.AddItem(ctx, "1")
	var lenErr *item.InvalidCodeLengthError
	require.ErrorAs(t, err, &lenErr)
	assert.Equal(t, 1, lenErr.Length)
}

func TestLedgerSetQuantity(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	_, err := l.AddItem(ctx, "1111")
	require.NoError(t, err)

	snap, err := l.SetQuantity(ctx, "1111", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Lines[0].Quantity)

	// Zero removes the line entirely.
	snap, err = l.SetQuantity(ctx, "1111", 0)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)

	// Zero on an already-absent line is an idempotent no-op.
	_, err = l.SetQuantity(ctx, "1111", 0)
	require.NoError(t, err)

	// Positive quantity changes never create lines.
	_, err = l.SetQuantity(ctx, "2222", 3)
	require.ErrorIs(t, err, cart.ErrLineAbsent)
}

func TestLedgerRemoveAll(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	_, err := l.AddItem(ctx, "1111")
	require.NoError(t, err)
	_, err = l.AddItem(ctx, "1111")
	require.NoError(t, err)
	_, err = l.AddItem(ctx, "2222")
	require.NoError(t, err)

	snap, err := l.RemoveAll(ctx, "1111")
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "2222", snap.Lines[0].Code)

	_, err = l.RemoveAll(ctx, "1111")
	require.ErrorIs(t, err, cart.ErrLineAbsent)
}

func TestLedgerCancel(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)

	require.ErrorIs(t, l.Cancel(ctx), cart.ErrNoActiveTransaction)

	_, err := l.AddItem(ctx, "1111")
	require.NoError(t, err)
	require.NoError(t, l.Cancel(ctx))
	assert.True(t, l.Snapshot(ctx).Empty())
	assert.Empty(t, rec.sales)
}

func TestLedgerHoldRetrieve(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	_, err := l.Hold(ctx)
	require.ErrorIs(t, err, cart.ErrNoActiveTransaction)

	_, err = l.AddItem(ctx, "1111")
	require.NoError(t, err)
	_, err = l.SetQuantity(ctx, "1111", 2)
	require.NoError(t, err)
	_, err = l.AddItem(ctx, "3333")
	require.NoError(t, err)

	id, err := l.Hold(ctx)
	require.NoError(t, err)
	assert.True(t, l.Snapshot(ctx).Empty())

	snap, err := l.Retrieve(ctx, id)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.Equal(t, "3333", snap.Lines[1].Code)

	// Retrieval is single-shot.
	_, err = l.Retrieve(ctx, id)
	require.ErrorIs(t, err, cart.ErrOrderNotFound)
}

func TestLedgerHoldPersistFailure(t *testing.T) {
	ctx := context.Background()
	l, held, _ := newTestLedger(t)
	held.holdErr = errors.New("connection refused")

	_, err := l.AddItem(ctx, "1111")
	require.NoError(t, err)

	_, err = l.Hold(ctx)
	var perr *cart.PersistenceError
	require.ErrorAs(t, err, &perr)
	// Cart intact, the hold can be retried.
	require.Len(t, l.Snapshot(ctx).Lines, 1)
}

func TestLedgerFinalize(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)

	// 2 x 3.49 = 6.98; tax 7% of 6.98 = 0.4886, rounds to 0.49; total 7.47.
	_, err := l.AddItem(ctx, "1111")
	require.NoError(t, err)
	_, err = l.AddItem(ctx, "1111")
	require.NoError(t, err)

	sale, err := l.Finalize(ctx, cart.AppliedDiscount{})
	require.NoError(t, err)
	assert.Equal(t, "sale-1", sale.ID)
	assert.True(t, sale.Subtotal.Equal(price("6.98")), "subtotal %s", sale.Subtotal)
	assert.True(t, sale.Tax.Equal(price("0.49")), "tax %s", sale.Tax)
	assert.True(t, sale.Total.Equal(price("7.47")), "total %s", sale.Total)

	require.Len(t, rec.sales, 1)
	assert.True(t, l.Snapshot(ctx).Empty())
}

func TestLedgerFinalizeEmpty(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)

	_, err := l.Finalize(ctx, cart.AppliedDiscount{})
	require.ErrorIs(t, err, cart.ErrNoActiveTransaction)
	assert.Empty(t, rec.sales)
}

func TestLedgerFinalizeWithDiscount(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	// 3.49 + 2.29 = 5.78; discount 1.00 leaves 4.78; tax 0.33; total 5.11.
	_, err := l.AddItem(ctx, "1111")
	require.NoError(t, err)
	_, err = l.AddItem(ctx, "2222")
	require.NoError(t, err)

	sale, err := l.Finalize(ctx, cart.AppliedDiscount{
		Lines: []cart.DiscountLine{{Description: "Loyalty", Amount: price("1.00")}},
		Total: price("1.00"),
	})
	require.NoError(t, err)
	assert.True(t, sale.DiscountTotal.Equal(price("1.00")))
	assert.True(t, sale.Tax.Equal(price("0.33")), "tax %s", sale.Tax)
	assert.True(t, sale.Total.Equal(price("5.11")), "total %s", sale.Total)
}

func TestLedgerFinalizeOverDiscountRejected(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)

	_, err := l.AddItem(ctx, "3333")
	require.NoError(t, err)

	// A discount exceeding the subtotal floors the total at zero, leaving
	// nothing due; there is nothing to complete and the cart stays intact.
	_, err = l.Finalize(ctx, cart.AppliedDiscount{Total: price("50.00")})
	require.ErrorIs(t, err, cart.ErrNoActiveTransaction)
	assert.Empty(t, rec.sales)
	require.Len(t, l.Snapshot(ctx).Lines, 1)
}

func TestLedgerFinalizeZeroPricedCartRejected(t *testing.T) {
	ctx := context.Background()
	held := newMemHeldStore()
	rec := &memRecorder{}
	l := cart.NewLedger(
		&stubPriceBook{items: map[string]item.Item{
			"0000": {Code: "0000", Description: "Free Sample", UnitPrice: price("0.00")},
		}},
		held, rec, price("0.07"),
	)

	_, err := l.AddItem(ctx, "0000")
	require.NoError(t, err)

	// Zero-priced lines yield a zero grand total; the sale cannot be
	// completed and nothing is recorded.
	_, err = l.Finalize(ctx, cart.AppliedDiscount{})
	require.ErrorIs(t, err, cart.ErrNoActiveTransaction)
	assert.Empty(t, rec.sales)
	require.Len(t, l.Snapshot(ctx).Lines, 1)
}

func TestLedgerFinalizePersistFailure(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	rec.recordErr = errors.New("deadline exceeded")

	_, err := l.AddItem(ctx, "1111")
	require.NoError(t, err)

	_, err = l.Finalize(ctx, cart.AppliedDiscount{})
	var perr *cart.PersistenceError
	require.ErrorAs(t, err, &perr)

	// Every line and total intact so the finalize can be retried.
	snap := l.Snapshot(ctx)
	require.Len(t, snap.Lines, 1)
	assert.True(t, snap.Totals.Subtotal.Equal(price("3.49")))

	rec.recordErr = nil
	_, err = l.Finalize(ctx, cart.AppliedDiscount{})
	require.NoError(t, err)
	require.Len(t, rec.sales, 1)
}

func TestComputeTotalsRoundingOrder(t *testing.T) {
	tests := []struct {
		name     string
		lines    []cart.PricedLine
		subtotal string
		tax      string
		total    string
	}{
		{
			name: "six dollars even",
			lines: []cart.PricedLine{
				{LineSubtotal: price("6.00")},
			},
			subtotal: "6.00",
			tax:      "0.42",
			total:    "6.42",
		},
		{
			name: "half up on tax",
			lines: []cart.PricedLine{
				{LineSubtotal: price("6.98")},
			},
			subtotal: "6.98",
			tax:      "0.49", // 0.4886 rounds up
			total:    "7.47",
		},
		{
			name: "subtotal rounded before tax",
			lines: []cart.PricedLine{
				{LineSubtotal: price("1.115")},
				{LineSubtotal: price("1.115")},
			},
			// 2.23 raw; rounded 2.23; tax on 2.23 not on 2.230.
			subtotal: "2.23",
			tax:      "0.16",
			total:    "2.39",
		},
		{
			name:     "empty cart",
			lines:    nil,
			subtotal: "0",
			tax:      "0",
			total:    "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cart.ComputeTotals(tt.lines, price("0.07"))
			assert.True(t, got.Subtotal.Equal(price(tt.subtotal)), "subtotal %s", got.Subtotal)
			assert.True(t, got.Tax.Equal(price(tt.tax)), "tax %s", got.Tax)
			assert.True(t, got.GrandTotal.Equal(price(tt.total)), "total %s", got.GrandTotal)
		})
	}
}

func TestFinalTotalsDiscountFlooredAtZero(t *testing.T) {
	got := cart.FinalTotals(price("1.99"), price("50.00"), price("0.07"))
	assert.True(t, got.Subtotal.IsZero())
	assert.True(t, got.Tax.IsZero())
	assert.True(t, got.GrandTotal.IsZero())
}
