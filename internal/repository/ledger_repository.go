package repository

import (
    "context"
    "database/sql"

    "github.com/okabe/storefront-booking/internal/model"
)

// LedgerRepo provides persistence for the per-store balance chain.
// The chain is append-only: there is deliberately no update or delete
// statement in this file. LastForUpdateTx locks the tail row so that
// "read last balance, then insert" is serialized per store; chains of
// different stores never contend.
type LedgerRepo struct {
    db *sql.DB
}

// NewLedgerRepo returns a LedgerRepo bound to the database.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *LedgerRepo) DB() *sql.DB { return r.db }

const ledgerColumns = `id, store_id, order_id, amount_cents, fee_cents, platform_fee_cents,
    currency, entry_type, balance_cents, description, note, available_at, created_at`

func scanLedgerEntry(s scanner) (*model.LedgerEntry, error) {
    var (
        e       model.LedgerEntry
        orderID sql.NullInt64
        note    sql.NullString
    )
    err := s.Scan(&e.ID, &e.StoreID, &orderID, &e.AmountCents, &e.FeeCents, &e.PlatformFeeCents,
        &e.Currency, &e.EntryType, &e.BalanceCents, &e.Description, &note, &e.AvailableAt, &e.CreatedAt)
    if err != nil {
        return nil, err
    }
    if orderID.Valid {
        v := uint64(orderID.Int64)
        e.OrderID = &v
    }
    if note.Valid {
        v := note.String
        e.Note = &v
    }
    return &e, nil
}

// LastForUpdateTx returns the most recent entry of a store's chain
// with a row lock, or (nil, nil) when the chain is empty. Holding the
// lock until commit prevents two concurrent appends from reading the
// same stale balance.
func (r *LedgerRepo) LastForUpdateTx(ctx context.Context, tx *sql.Tx, storeID uint64) (*model.LedgerEntry, error) {
    const q = `SELECT ` + ledgerColumns + ` FROM store_ledger
               WHERE store_id = ?
               ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE`
    e, err := scanLedgerEntry(tx.QueryRowContext(ctx, q, storeID))
    if err == sql.ErrNoRows {
        return nil, nil
    }
    return e, err
}

// InsertTx appends one entry. The balance must already be computed by
// the chain writer; this method never recomputes it.
func (r *LedgerRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.LedgerEntry) error {
    const q = `INSERT INTO store_ledger
        (store_id, order_id, amount_cents, fee_cents, platform_fee_cents, currency,
         entry_type, balance_cents, description, note, available_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q,
        e.StoreID, e.OrderID, e.AmountCents, e.FeeCents, e.PlatformFeeCents, e.Currency,
        e.EntryType, e.BalanceCents, e.Description, e.Note, e.AvailableAt.UTC())
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    e.ID = uint64(id)
    const sel = `SELECT ` + ledgerColumns + ` FROM store_ledger WHERE id = ?`
    row, err := scanLedgerEntry(tx.QueryRowContext(ctx, sel, e.ID))
    if err != nil {
        return err
    }
    *e = *row
    return nil
}

// ExistsForOrderTx reports whether the chain already holds an entry
// for the given order and entry type. This is the idempotency check
// run before posting an "order paid" movement.
func (r *LedgerRepo) ExistsForOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64, entryType int) (bool, error) {
    const q = `SELECT 1 FROM store_ledger WHERE order_id = ? AND entry_type = ? LIMIT 1`
    var one int
    err := tx.QueryRowContext(ctx, q, orderID, entryType).Scan(&one)
    if err == sql.ErrNoRows {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

// ListByStore returns a store's chain, newest first, capped at limit
// rows (0 means no cap).
func (r *LedgerRepo) ListByStore(ctx context.Context, storeID uint64, limit int) ([]model.LedgerEntry, error) {
    q := `SELECT ` + ledgerColumns + ` FROM store_ledger
          WHERE store_id = ? ORDER BY created_at DESC, id DESC`
    args := []interface{}{storeID}
    if limit > 0 {
        q += ` LIMIT ?`
        args = append(args, limit)
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.LedgerEntry, 0)
    for rows.Next() {
        e, err := scanLedgerEntry(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *e)
    }
    return out, rows.Err()
}

// Balance returns the current balance of a store's chain: the balance
// carried by the newest entry, or zero for an empty chain.
func (r *LedgerRepo) Balance(ctx context.Context, storeID uint64) (int64, error) {
    const q = `SELECT balance_cents FROM store_ledger
               WHERE store_id = ?
               ORDER BY created_at DESC, id DESC LIMIT 1`
    var balance int64
    err := r.db.QueryRowContext(ctx, q, storeID).Scan(&balance)
    if err == sql.ErrNoRows {
        return 0, nil
    }
    if err != nil {
        return 0, err
    }
    return balance, nil
}
