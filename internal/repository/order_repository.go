package repository

import (
    "context"
    "database/sql"

    "github.com/okabe/storefront-booking/internal/model"
)

// OrderRepo provides persistence for payment orders. Orders are
// created unpaid and flipped to paid exactly once by the payment
// processor; the FOR UPDATE variants let that processor hold the row
// lock while it decides whether the confirmation was already applied.
type OrderRepo struct {
    db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *OrderRepo) DB() *sql.DB { return r.db }

const orderColumns = `id, store_id, customer_id, reservation_id, kind, amount_cents,
    currency, payment_method_id, is_paid, paid_at, created_at, updated_at`

func scanOrder(s scanner) (*model.Order, error) {
    var (
        o          model.Order
        customerID sql.NullInt64
        resID      sql.NullInt64
        paidAt     sql.NullTime
    )
    err := s.Scan(&o.ID, &o.StoreID, &customerID, &resID, &o.Kind, &o.AmountCents,
        &o.Currency, &o.PaymentMethodID, &o.IsPaid, &paidAt, &o.CreatedAt, &o.UpdatedAt)
    if err != nil {
        return nil, err
    }
    if customerID.Valid {
        v := uint64(customerID.Int64)
        o.CustomerID = &v
    }
    if resID.Valid {
        v := uint64(resID.Int64)
        o.ReservationID = &v
    }
    if paidAt.Valid {
        t := paidAt.Time.UTC()
        o.PaidAt = &t
    }
    return &o, nil
}

// CreateTx inserts an order within an existing transaction and
// populates the generated ID and timestamps.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
    const q = `INSERT INTO orders
        (store_id, customer_id, reservation_id, kind, amount_cents, currency, payment_method_id)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q,
        o.StoreID, o.CustomerID, o.ReservationID, o.Kind, o.AmountCents, o.Currency, o.PaymentMethodID)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    o.ID = uint64(id)
    const sel = `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
    row, err := scanOrder(tx.QueryRowContext(ctx, sel, o.ID))
    if err != nil {
        return err
    }
    *o = *row
    return nil
}

// GetByID returns an order by id, or ErrNotFound.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
    const q = `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
    o, err := scanOrder(r.db.QueryRowContext(ctx, q, id))
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return o, err
}

// GetForUpdateTx loads an order with a row lock. The payment
// processor uses this to serialize concurrent confirmations of the
// same order.
func (r *OrderRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Order, error) {
    const q = `SELECT ` + orderColumns + ` FROM orders WHERE id = ? FOR UPDATE`
    o, err := scanOrder(tx.QueryRowContext(ctx, q, id))
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return o, err
}

// GetByReservationTx loads the order linked to a reservation within
// the transaction, or ErrNotFound when the reservation has no order.
// The row is locked so a concurrent confirmation cannot settle the
// order between this read and the caller's decision on it.
func (r *OrderRepo) GetByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.Order, error) {
    const q = `SELECT ` + orderColumns + ` FROM orders WHERE reservation_id = ? LIMIT 1 FOR UPDATE`
    o, err := scanOrder(tx.QueryRowContext(ctx, q, reservationID))
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return o, err
}

// MarkPaidTx sets is_paid and paid_at. The statement is idempotent at
// the SQL level; callers decide beforehand whether downstream side
// effects (ledger postings) still need to run.
func (r *OrderRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    const q = `UPDATE orders SET is_paid = 1, paid_at = UTC_TIMESTAMP() WHERE id = ? AND is_paid = 0`
    _, err := tx.ExecContext(ctx, q, id)
    return err
}

// DeleteTx removes an order row. Only unpaid orders may be deleted;
// the lifecycle service enforces that before calling.
func (r *OrderRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    const q = `DELETE FROM orders WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, id)
    return err
}
