package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okabe/storefront-booking/internal/model"
	"github.com/okabe/storefront-booking/internal/repository"
)

// ledgerStore is the persistence surface the chain appends through.
// *repository.LedgerRepo is the production implementation; tests plug
// in an in-memory fake.
type ledgerStore interface {
	DB() *sql.DB
	ExistsForOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64, entryType int) (bool, error)
	LastForUpdateTx(ctx context.Context, tx *sql.Tx, storeID uint64) (*model.LedgerEntry, error)
	InsertTx(ctx context.Context, tx *sql.Tx, e *model.LedgerEntry) error
}

// Chain appends entries to a store's balance chain. Appends for the
// same store are serialized by locking the tail row FOR UPDATE, so
// two concurrent appends never read the same previous balance.
type Chain struct {
	entries ledgerStore
}

// NewChain wires the chain over its repository.
func NewChain(entries ledgerStore) *Chain {
	if entries == nil {
		panic("nil ledger repo passed to ledger.NewChain")
	}
	return &Chain{entries: entries}
}

// AppendTx appends an entry inside the caller's transaction. The
// entry's BalanceCents and CreatedAt are computed here; everything
// else must be filled in by the caller. When the entry references an
// order, a prior entry for the same (order, type) pair short-circuits
// the append and the existing entry is returned with appended=false.
func (c *Chain) AppendTx(ctx context.Context, tx *sql.Tx, e *model.LedgerEntry) (appended bool, err error) {
	if e.OrderID != nil {
		exists, err := c.entries.ExistsForOrderTx(ctx, tx, *e.OrderID, e.EntryType)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}
	tail, err := c.entries.LastForUpdateTx(ctx, tx, e.StoreID)
	if err != nil {
		return false, err
	}
	var prev int64
	if tail != nil {
		prev = tail.BalanceCents
		if e.Currency != "" && tail.Currency != e.Currency {
			return false, fmt.Errorf("%w: store %d chain is %s, entry is %s",
				repository.ErrChainCorrupted, e.StoreID, tail.Currency, e.Currency)
		}
	}
	e.BalanceCents = NextBalance(prev, e.AmountCents, e.FeeCents, e.PlatformFeeCents)
	if err := c.entries.InsertTx(ctx, tx, e); err != nil {
		return false, err
	}
	return true, nil
}

// Append opens its own transaction around AppendTx. Used for payouts
// and adjustments that have no surrounding unit of work.
func (c *Chain) Append(ctx context.Context, e *model.LedgerEntry) (bool, error) {
	tx, err := c.entries.DB().BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	appended, err := c.AppendTx(ctx, tx, e)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return appended, nil
}

// Verify walks a slice of entries in chain order and reports the first
// index whose balance does not follow from its predecessor, or -1.
// Exposed for audit tooling; a non-negative result is an
// ErrChainCorrupted situation and must never be repaired in place.
func Verify(entries []model.LedgerEntry) int {
	var prev int64
	for i, e := range entries {
		want := NextBalance(prev, e.AmountCents, e.FeeCents, e.PlatformFeeCents)
		if e.BalanceCents != want {
			return i
		}
		prev = e.BalanceCents
	}
	return -1
}
