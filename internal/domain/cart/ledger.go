package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/mock-register/internal/domain/item"
)

// Ledger owns the live transaction. All mutations are serialized by the
// ledger's own lock; concurrent callers always observe a consistent snapshot.
type Ledger struct {
	pricebook item.PriceBook
	held      HeldOrderStore
	sales     SaleRecorder
	taxRate   decimal.Decimal
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	lines map[string]int
	order []string // insertion order of codes
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides sale/held-order id generation, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// NewLedger creates an empty ledger.
func NewLedger(pb item.PriceBook, held HeldOrderStore, sales SaleRecorder, taxRate decimal.Decimal, opts ...Option) *Ledger {
	l := &Ledger{
		pricebook: pb,
		held:      held,
		sales:     sales,
		taxRate:   taxRate,
		now:       time.Now,
		newID:     uuid.NewString,
		lines:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddItem adds one unit of the given code, merging into an existing line.
// An unknown code leaves the transaction untouched and returns
// item.ErrNotFound so the caller can alert without disturbing the sale.
func (l *Ledger) AddItem(ctx context.Context, code string) (Snapshot, error) {
	code, err := item.ValidateCode(code)
	if err != nil {
		return l.Snapshot(ctx), err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.pricebook.Lookup(ctx, code); err != nil {
		return l.snapshotLocked(ctx), errors.Wrapf(err, "add item %q", code)
	}
	if _, ok := l.lines[code]; !ok {
		l.order = append(l.order, code)
	}
	l.lines[code]++
	return l.snapshotLocked(ctx), nil
}

// SetQuantity replaces the quantity of an existing line. A quantity of zero
// or less removes the line, idempotently. Setting a positive quantity on an
// absent code fails with ErrLineAbsent: quantity changes never create lines.
func (l *Ledger) SetQuantity(ctx context.Context, code string, quantity int) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if quantity <= 0 {
		l.removeLocked(code)
		return l.snapshotLocked(ctx), nil
	}
	if _, ok := l.lines[code]; !ok {
		return l.snapshotLocked(ctx), errors.Wrapf(ErrLineAbsent, "set quantity %q", code)
	}
	l.lines[code] = quantity
	return l.snapshotLocked(ctx), nil
}

// RemoveAll voids the entire line for the given code regardless of quantity.
// Removing an absent code fails with ErrLineAbsent.
func (l *Ledger) RemoveAll(ctx context.Context, code string) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.lines[code]; !ok {
		return l.snapshotLocked(ctx), errors.Wrapf(ErrLineAbsent, "remove %q", code)
	}
	l.removeLocked(code)
	return l.snapshotLocked(ctx), nil
}

// Cancel discards the transaction without any side effects.
func (l *Ledger) Cancel(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.lines) == 0 {
		return ErrNoActiveTransaction
	}
	l.clearLocked()
	return nil
}

// Hold suspends the current transaction into the held-order store and clears
// the cart. The cart is cleared only after the store confirms the write.
func (l *Ledger) Hold(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.lines) == 0 {
		return "", ErrNoActiveTransaction
	}
	snap := l.snapshotLocked(ctx)
	lines := make([]Line, 0, len(l.order))
	for _, code := range l.order {
		lines = append(lines, Line{Code: code, Quantity: l.lines[code]})
	}
	id, err := l.held.Hold(ctx, lines, snap.Totals.Subtotal)
	if err != nil {
		return "", &PersistenceError{Err: errors.Wrap(err, "hold order")}
	}
	l.clearLocked()
	return id, nil
}

// Retrieve loads a held order into the cart, replacing the current contents,
// and removes it from the store. A second retrieve of the same id fails with
// ErrOrderNotFound.
func (l *Ledger) Retrieve(ctx context.Context, id string) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.held.Retrieve(ctx, id)
	if err != nil {
		return l.snapshotLocked(ctx), errors.Wrapf(err, "retrieve order %s", id)
	}
	l.clearLocked()
	for _, ln := range lines {
		if _, ok := l.lines[ln.Code]; !ok {
			l.order = append(l.order, ln.Code)
		}
		l.lines[ln.Code] += ln.Quantity
	}
	return l.snapshotLocked(ctx), nil
}

// Finalize records the transaction as a sale with the given discount applied
// and clears the cart. The applied discount total is floored at zero before
// tax is computed. A cart whose grand total is not positive, whether empty or
// holding only zero-priced lines, cannot be completed and fails with
// ErrNoActiveTransaction. If the recorder fails the cart is left intact so
// the finalize can be retried; the error wraps PersistenceError.
func (l *Ledger) Finalize(ctx context.Context, discount AppliedDiscount) (*Sale, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.snapshotLocked(ctx)
	totals := FinalTotals(snap.Totals.Subtotal, discount.Total, l.taxRate)
	if !totals.GrandTotal.IsPositive() {
		return nil, ErrNoActiveTransaction
	}

	sale := &Sale{
		ID:            l.newID(),
		Lines:         snap.Lines,
		Subtotal:      snap.Totals.Subtotal,
		DiscountTotal: discount.Total,
		Tax:           totals.Tax,
		Total:         totals.GrandTotal,
		CreatedAt:     l.now(),
	}
	if err := l.sales.Record(ctx, sale); err != nil {
		return nil, &PersistenceError{Err: errors.Wrap(err, "record sale")}
	}
	l.clearLocked()
	return sale, nil
}

// Snapshot returns a consistent read-only view of the transaction. Lines are
// priced against the current price book; a code that has lost its price book
// entry since it was added is shown with a zero price rather than failing the
// whole snapshot.
func (l *Ledger) Snapshot(ctx context.Context) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked(ctx)
}

func (l *Ledger) snapshotLocked(ctx context.Context) Snapshot {
	lines := make([]PricedLine, 0, len(l.order))
	for _, code := range l.order {
		qty := l.lines[code]
		pl := PricedLine{Code: code, Quantity: qty}
		if it, err := l.pricebook.Lookup(ctx, code); err == nil {
			pl.Description = it.Description
			pl.UnitPrice = it.UnitPrice
		}
		pl.LineSubtotal = pl.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
		lines = append(lines, pl)
	}
	return Snapshot{
		Lines:  lines,
		Totals: ComputeTotals(lines, l.taxRate),
	}
}

func (l *Ledger) removeLocked(code string) {
	delete(l.lines, code)
	for i, c := range l.order {
		if c == code {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Ledger) clearLocked() {
	l.lines = make(map[string]int)
	l.order = l.order[:0]
}
