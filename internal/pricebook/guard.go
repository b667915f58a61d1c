package pricebook

import (
	"context"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"

	"github.com/xenking/mock-register/internal/domain/item"
)

const guardFalsePositiveRate = 0.01

// Guard fronts a price book with a bloom filter of known codes. Stray scan
// bursts and typos resolve to "definitely unknown" without touching the
// backing store; a filter hit falls through to the real lookup.
type Guard struct {
	next   item.PriceBook
	filter *bloom.BloomFilter
}

var _ item.PriceBook = (*Guard)(nil)

// NewGuard builds a Guard over next from the full set of known codes.
func NewGuard(next item.PriceBook, codes []string) *Guard {
	n := uint(len(codes))
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(n, guardFalsePositiveRate)
	for _, code := range codes {
		filter.AddString(code)
	}
	return &Guard{next: next, filter: filter}
}

// Lookup implements item.PriceBook.
func (g *Guard) Lookup(ctx context.Context, code string) (*item.Item, error) {
	if !g.filter.TestString(code) {
		return nil, errors.Wrapf(item.ErrNotFound, "code %q", code)
	}
	return g.next.Lookup(ctx, code)
}
