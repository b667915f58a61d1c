package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/mock-register/internal/domain/item"
)

const (
	lookupItemSQL = `SELECT code, description, price FROM price_book WHERE code = $1`

	listCodesSQL = `SELECT code FROM price_book`

	upsertItemSQL = `INSERT INTO price_book (code, description, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET description = EXCLUDED.description, price = EXCLUDED.price`
)

var _ item.PriceBook = (*PriceBookRepository)(nil)

// PriceBookRepository implements item.PriceBook backed by PostgreSQL.
type PriceBookRepository struct {
	pool *pgxpool.Pool
}

// NewPriceBookRepository returns a PriceBookRepository that uses the given pool.
func NewPriceBookRepository(pool *pgxpool.Pool) *PriceBookRepository {
	return &PriceBookRepository{pool: pool}
}

// Lookup returns the price book entry for the given code.
func (r *PriceBookRepository) Lookup(ctx context.Context, code string) (*item.Item, error) {
	rows, err := r.pool.Query(ctx, lookupItemSQL, code)
	if err != nil {
		return nil, fmt.Errorf("looking up item %q: %w", code, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(item.ErrNotFound, "code %q", code)
		}
		return nil, fmt.Errorf("looking up item %q: %w", code, err)
	}
	return &it, nil
}

// Codes returns every known code, used to seed the bloom guard at startup.
func (r *PriceBookRepository) Codes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing price book codes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var code string
		err := row.Scan(&code)
		return code, err
	})
}

// Upsert inserts or replaces one price book entry.
func (r *PriceBookRepository) Upsert(ctx context.Context, it item.Item) error {
	if _, err := r.pool.Exec(ctx, upsertItemSQL, it.Code, it.Description, it.UnitPrice); err != nil {
		return fmt.Errorf("upserting item %q: %w", it.Code, err)
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (item.Item, error) {
	var it item.Item
	err := row.Scan(&it.Code, &it.Description, &it.UnitPrice)
	return it, err
}
