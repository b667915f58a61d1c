package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/mock-register/internal/domain/cart"
)

const (
	insertSaleSQL = `INSERT INTO sales (id, created_at, subtotal, discount_total, tax, total)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertSaleItemSQL = `INSERT INTO sale_items (sale_id, code, quantity, unit_price, line_subtotal)
		VALUES ($1, $2, $3, $4, $5)`

	saleCountsSQL = `SELECT code, SUM(quantity)::BIGINT FROM sale_items GROUP BY code`

	listSalesSQL = `SELECT id, created_at, total FROM sales ORDER BY created_at DESC`
)

var _ cart.SaleRecorder = (*SalesRepository)(nil)

// SalesRepository implements cart.SaleRecorder backed by PostgreSQL.
type SalesRepository struct {
	pool *pgxpool.Pool
}

// NewSalesRepository returns a SalesRepository that uses the given pool.
func NewSalesRepository(pool *pgxpool.Pool) *SalesRepository {
	return &SalesRepository{pool: pool}
}

// Record persists a finalized sale and its line items atomically.
func (r *SalesRepository) Record(ctx context.Context, sale *cart.Sale) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning sale transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertSaleSQL,
		sale.ID, sale.CreatedAt, sale.Subtotal, sale.DiscountTotal, sale.Tax, sale.Total)
	if err != nil {
		return fmt.Errorf("inserting sale %q: %w", sale.ID, err)
	}
	for _, l := range sale.Lines {
		_, err = tx.Exec(ctx, insertSaleItemSQL,
			sale.ID, l.Code, l.Quantity, l.UnitPrice, l.LineSubtotal)
		if err != nil {
			return fmt.Errorf("inserting sale line %q: %w", l.Code, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing sale: %w", err)
	}
	return nil
}

// Counts returns the total quantity sold per code across all recorded sales.
func (r *SalesRepository) Counts(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, saleCountsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying sale counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			code  string
			count int64
		)
		if err := rows.Scan(&code, &count); err != nil {
			return nil, fmt.Errorf("scanning sale count: %w", err)
		}
		counts[code] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sale counts: %w", err)
	}
	return counts, nil
}

// List returns summaries of all recorded sales, newest first.
func (r *SalesRepository) List(ctx context.Context) ([]cart.SaleSummary, error) {
	rows, err := r.pool.Query(ctx, listSalesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.SaleSummary, error) {
		var s cart.SaleSummary
		err := row.Scan(&s.ID, &s.CreatedAt, &s.Total)
		return s, err
	})
}
