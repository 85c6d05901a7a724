package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/okabe/storefront-booking/internal/model"
)

// CreditRepo provides persistence for the customer credit ledger.
// Like the store ledger it is append-only. The unique key on
// (reference_id, entry_type) backs the top-up idempotency guarantee:
// a duplicate TOPUP insert fails at the storage level even when two
// confirmations race past the read check.
type CreditRepo struct {
    db *sql.DB
}

// NewCreditRepo returns a CreditRepo bound to the database.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

// HasEntryTx reports whether an entry with the given reference and
// type already exists. Used as the fast-path idempotency check before
// attempting the insert.
func (r *CreditRepo) HasEntryTx(ctx context.Context, tx *sql.Tx, referenceID uint64, entryType string) (bool, error) {
    const q = `SELECT 1 FROM credit_ledger WHERE reference_id = ? AND entry_type = ? LIMIT 1`
    var one int
    err := tx.QueryRowContext(ctx, q, referenceID, entryType).Scan(&one)
    if err == sql.ErrNoRows {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

// InsertTx appends one credit movement. A duplicate-key failure on
// (reference_id, entry_type) is translated to ErrConflict so the
// caller can treat a lost race as "already processed".
func (r *CreditRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.CreditEntry) error {
    const q = `INSERT INTO credit_ledger (customer_id, entry_type, amount_cents, reference_id)
               VALUES (?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, e.CustomerID, e.EntryType, e.AmountCents, e.ReferenceID)
    if err != nil {
        // MySQL duplicate entry on the (reference_id, entry_type) key.
        if strings.Contains(err.Error(), "1062") {
            return ErrConflict
        }
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    e.ID = uint64(id)
    return nil
}

// BalanceForCustomer sums the customer's credit movements.
func (r *CreditRepo) BalanceForCustomer(ctx context.Context, customerID uint64) (int64, error) {
    const q = `SELECT COALESCE(SUM(amount_cents), 0) FROM credit_ledger WHERE customer_id = ?`
    var balance int64
    err := r.db.QueryRowContext(ctx, q, customerID).Scan(&balance)
    return balance, err
}

// ListByCustomer returns a customer's credit movements, newest first.
func (r *CreditRepo) ListByCustomer(ctx context.Context, customerID uint64, limit int) ([]model.CreditEntry, error) {
    q := `SELECT id, customer_id, entry_type, amount_cents, reference_id, created_at
          FROM credit_ledger WHERE customer_id = ? ORDER BY created_at DESC, id DESC`
    args := []interface{}{customerID}
    if limit > 0 {
        q += ` LIMIT ?`
        args = append(args, limit)
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.CreditEntry, 0)
    for rows.Next() {
        var (
            e   model.CreditEntry
            ref sql.NullInt64
        )
        if err := rows.Scan(&e.ID, &e.CustomerID, &e.EntryType, &e.AmountCents, &ref, &e.CreatedAt); err != nil {
            return nil, err
        }
        if ref.Valid {
            v := uint64(ref.Int64)
            e.ReferenceID = &v
        }
        out = append(out, e)
    }
    return out, rows.Err()
}
