package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/mock-register/internal/domain/cart"
)

const (
	insertHeldOrderSQL = `INSERT INTO held_orders (id, total) VALUES ($1, $2)`

	insertHeldOrderItemSQL = `INSERT INTO held_order_items (held_order_id, code, quantity)
		VALUES ($1, $2, $3)`

	selectHeldOrderItemsSQL = `SELECT code, quantity FROM held_order_items
		WHERE held_order_id = $1 ORDER BY id`

	deleteHeldOrderSQL = `DELETE FROM held_orders WHERE id = $1`

	listHeldOrdersSQL = `SELECT id, created_at, total FROM held_orders ORDER BY created_at`
)

var _ cart.HeldOrderStore = (*HeldOrderRepository)(nil)

// HeldOrderRepository implements cart.HeldOrderStore backed by PostgreSQL.
type HeldOrderRepository struct {
	pool *pgxpool.Pool
}

// NewHeldOrderRepository returns a HeldOrderRepository that uses the given pool.
func NewHeldOrderRepository(pool *pgxpool.Pool) *HeldOrderRepository {
	return &HeldOrderRepository{pool: pool}
}

// Hold persists a suspended cart and returns its opaque id.
func (r *HeldOrderRepository) Hold(ctx context.Context, lines []cart.Line, total decimal.Decimal) (string, error) {
	id := uuid.NewString()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("beginning hold transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertHeldOrderSQL, id, total); err != nil {
		return "", fmt.Errorf("inserting held order: %w", err)
	}
	for _, l := range lines {
		if _, err := tx.Exec(ctx, insertHeldOrderItemSQL, id, l.Code, l.Quantity); err != nil {
			return "", fmt.Errorf("inserting held order line %q: %w", l.Code, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("committing hold: %w", err)
	}
	return id, nil
}

// Retrieve returns the held order's lines and deletes the order in the same
// transaction, so a second retrieve of the same id fails with
// cart.ErrOrderNotFound.
func (r *HeldOrderRepository) Retrieve(ctx context.Context, id string) ([]cart.Line, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning retrieve transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, selectHeldOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("selecting held order %q: %w", id, err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.Code, &l.Quantity)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning held order %q: %w", id, err)
	}

	tag, err := tx.Exec(ctx, deleteHeldOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("deleting held order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, errors.Wrapf(cart.ErrOrderNotFound, "id %s", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing retrieve: %w", err)
	}
	return lines, nil
}

// List returns summaries of all held orders, oldest first.
func (r *HeldOrderRepository) List(ctx context.Context) ([]cart.HeldOrderSummary, error) {
	rows, err := r.pool.Query(ctx, listHeldOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing held orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.HeldOrderSummary, error) {
		var s cart.HeldOrderSummary
		err := row.Scan(&s.ID, &s.CreatedAt, &s.Total)
		return s, err
	})
}
