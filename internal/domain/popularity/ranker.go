// Package popularity ranks item codes by sales volume for quick-key
// shortcut assignment.
package popularity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/mock-register/internal/domain/item"
)

// SlotCount is the number of quick-key slots on the register, F1 through F12.
const SlotCount = 12

// CountsSource provides historical per-code sale counts, rebuilt wholesale
// on every refresh. Counts reflect completed sales only, never the live cart.
type CountsSource interface {
	Counts(ctx context.Context) (map[string]int64, error)
}

// Slot is one quick-key assignment.
type Slot struct {
	Label       string // F1..F12
	Code        string
	Description string
	Count       int64
}

// Ranker computes and caches the shortcut slot table.
type Ranker struct {
	counts    CountsSource
	pricebook item.PriceBook
	slots     int

	mu      sync.RWMutex
	current []Slot
}

// NewRanker creates a Ranker with the given number of slots. A non-positive
// slot count falls back to SlotCount.
func NewRanker(counts CountsSource, pricebook item.PriceBook, slots int) *Ranker {
	if slots <= 0 {
		slots = SlotCount
	}
	return &Ranker{
		counts:    counts,
		pricebook: pricebook,
		slots:     slots,
	}
}

// Refresh rebuilds the slot table from the counts source. Called at startup
// and after every finalized sale. On error the previous table is kept.
func (r *Ranker) Refresh(ctx context.Context) error {
	counts, err := r.counts.Counts(ctx)
	if err != nil {
		return errors.Wrap(err, "load popularity counts")
	}

	entries := make([]rankEntry, 0, len(counts))
	for code, count := range counts {
		e := rankEntry{code: code, count: count}
		if it, lookupErr := r.pricebook.Lookup(ctx, code); lookupErr == nil {
			e.description = it.Description
		}
		entries = append(entries, e)
	}
	ranked := rank(entries)

	if len(ranked) > r.slots {
		ranked = ranked[:r.slots]
	}
	slots := make([]Slot, len(ranked))
	for i, e := range ranked {
		slots[i] = Slot{
			Label:       fmt.Sprintf("F%d", i+1),
			Code:        e.code,
			Description: e.description,
			Count:       e.count,
		}
	}

	r.mu.Lock()
	r.current = slots
	r.mu.Unlock()
	return nil
}

// Current returns the cached slot table from the last successful Refresh.
func (r *Ranker) Current() []Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Slot, len(r.current))
	copy(out, r.current)
	return out
}

type rankEntry struct {
	code        string
	description string
	count       int64
}

// rank orders entries by count descending, then description case-insensitive
// ascending, then code ascending. The three-level tie-break keeps equally
// popular items from shuffling shortcut slots between refreshes.
func rank(entries []rankEntry) []rankEntry {
	out := append([]rankEntry(nil), entries...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.count != b.count {
			return a.count > b.count
		}
		ad, bd := strings.ToLower(a.description), strings.ToLower(b.description)
		if ad != bd {
			return ad < bd
		}
		return a.code < b.code
	})
	return out
}
