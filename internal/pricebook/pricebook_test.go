package pricebook

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/mock-register/internal/domain/item"
)

func TestParseTSV(t *testing.T) {
	input := strings.Join([]string{
		"1111\tMilk 2% 1gal\t3.49",
		"",
		"  ",
		"2222\tBread White\t2.29",
		"3333\tBad Price\tfree",
		"4444\tToo Few Fields",
		"5555\t Trimmed \t 1.99 ",
		"6666\tNegative\t-1.00",
	}, "\n")

	items, err := ParseTSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, items, 3, "blank, malformed, and negative lines skipped")

	assert.Equal(t, "1111", items[0].Code)
	assert.True(t, items[0].UnitPrice.Equal(decimal.RequireFromString("3.49")))
	assert.Equal(t, "Trimmed", items[2].Description)
	assert.True(t, items[2].UnitPrice.Equal(decimal.RequireFromString("1.99")))
}

func TestParseTSVEmpty(t *testing.T) {
	items, err := ParseTSV(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestBookLookup(t *testing.T) {
	b := NewBook([]item.Item{
		{Code: "1111", Description: "Milk", UnitPrice: decimal.RequireFromString("3.49")},
	})

	it, err := b.Lookup(context.Background(), "1111")
	require.NoError(t, err)
	assert.Equal(t, "Milk", it.Description)

	_, err = b.Lookup(context.Background(), "9999")
	require.ErrorIs(t, err, item.ErrNotFound)
}

func TestBookDuplicateCodeReplaces(t *testing.T) {
	b := NewBook([]item.Item{
		{Code: "1111", Description: "Old", UnitPrice: decimal.New(1, 0)},
		{Code: "1111", Description: "New", UnitPrice: decimal.New(2, 0)},
	})
	require.Equal(t, 1, b.Len())

	it, err := b.Lookup(context.Background(), "1111")
	require.NoError(t, err)
	assert.Equal(t, "New", it.Description)
}

// countingBook records how many lookups reach the backing store.
type countingBook struct {
	inner   *Book
	lookups int
}

func (c *countingBook) Lookup(ctx context.Context, code string) (*item.Item, error) {
	c.lookups++
	return c.inner.Lookup(ctx, code)
}

func TestGuardShortCircuitsUnknownCodes(t *testing.T) {
	backing := &countingBook{inner: NewBook([]item.Item{
		{Code: "1111", Description: "Milk", UnitPrice: decimal.New(349, -2)},
	})}
	g := NewGuard(backing, []string{"1111"})

	it, err := g.Lookup(context.Background(), "1111")
	require.NoError(t, err)
	assert.Equal(t, "Milk", it.Description)
	assert.Equal(t, 1, backing.lookups)

	_, err = g.Lookup(context.Background(), "definitely-not-a-code")
	require.ErrorIs(t, err, item.ErrNotFound)
	assert.Equal(t, 1, backing.lookups, "unknown code never reaches the store")
}

func TestGuardEmptyCodeSet(t *testing.T) {
	g := NewGuard(NewBook(nil), nil)
	_, err := g.Lookup(context.Background(), "1111")
	require.ErrorIs(t, err, item.ErrNotFound)
}
