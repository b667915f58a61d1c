// Package pricebook loads and serves price book entries.
package pricebook

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/mock-register/internal/domain/item"
)

// ParseTSV reads tab-separated lines of the form "code\tdescription\tprice".
// Blank lines are skipped. A line with a malformed price or too few fields
// is skipped with a warning; the load itself never fails on bad rows.
func ParseTSV(ctx context.Context, r io.Reader) ([]item.Item, error) {
	lg := zctx.From(ctx)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var items []item.Item
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			lg.Warn("Skipping malformed price book line",
				zap.Int("line", lineNo), zap.Int("fields", len(fields)))
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(fields[2]))
		if err != nil || price.IsNegative() {
			lg.Warn("Skipping price book line with malformed price",
				zap.Int("line", lineNo), zap.String("price", fields[2]))
			continue
		}
		items = append(items, item.Item{
			Code:        strings.TrimSpace(fields[0]),
			Description: strings.TrimSpace(fields[1]),
			UnitPrice:   price,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read price book")
	}
	return items, nil
}

// Book is an in-memory price book, used by tests and as a fallback when no
// database is configured.
type Book struct {
	mu    sync.RWMutex
	items map[string]item.Item
}

var _ item.PriceBook = (*Book)(nil)

// NewBook creates a Book preloaded with the given items. Later items with a
// duplicate code replace earlier ones.
func NewBook(items []item.Item) *Book {
	b := &Book{items: make(map[string]item.Item, len(items))}
	for _, it := range items {
		b.items[it.Code] = it
	}
	return b
}

// Lookup implements item.PriceBook.
func (b *Book) Lookup(_ context.Context, code string) (*item.Item, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	it, ok := b.items[code]
	if !ok {
		return nil, errors.Wrapf(item.ErrNotFound, "code %q", code)
	}
	return &it, nil
}

// Len returns the number of entries.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}
