package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/okabe/storefront-booking/internal/model"
	"github.com/okabe/storefront-booking/internal/repository"
)

// In-memory store fakes. They implement only the behavior the engines
// rely on: append-only slices, the (reference, type) unique key of the
// credit ledger, and the ErrNotFound convention.

type fakeLedgerStore struct {
	db      *sql.DB
	entries []model.LedgerEntry
	nextID  uint64
}

func (f *fakeLedgerStore) DB() *sql.DB { return f.db }

func (f *fakeLedgerStore) ExistsForOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64, entryType int) (bool, error) {
	for _, e := range f.entries {
		if e.OrderID != nil && *e.OrderID == orderID && e.EntryType == entryType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerStore) LastForUpdateTx(ctx context.Context, tx *sql.Tx, storeID uint64) (*model.LedgerEntry, error) {
	var last *model.LedgerEntry
	for i := range f.entries {
		if f.entries[i].StoreID == storeID {
			last = &f.entries[i]
		}
	}
	return last, nil
}

func (f *fakeLedgerStore) InsertTx(ctx context.Context, tx *sql.Tx, e *model.LedgerEntry) error {
	f.nextID++
	e.ID = f.nextID
	f.entries = append(f.entries, *e)
	return nil
}

// byStore returns the chain of one store in insertion order.
func (f *fakeLedgerStore) byStore(storeID uint64) []model.LedgerEntry {
	var out []model.LedgerEntry
	for _, e := range f.entries {
		if e.StoreID == storeID {
			out = append(out, e)
		}
	}
	return out
}

type fakeCreditStore struct {
	entries    []model.CreditEntry
	nextID     uint64
	insertErrs []error // popped per InsertTx call, nil entries insert normally
}

func (f *fakeCreditStore) HasEntryTx(ctx context.Context, tx *sql.Tx, referenceID uint64, entryType string) (bool, error) {
	for _, e := range f.entries {
		if e.ReferenceID != nil && *e.ReferenceID == referenceID && e.EntryType == entryType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCreditStore) InsertTx(ctx context.Context, tx *sql.Tx, e *model.CreditEntry) error {
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	if e.ReferenceID != nil {
		// unique key on (reference_id, entry_type)
		if dup, _ := f.HasEntryTx(ctx, tx, *e.ReferenceID, e.EntryType); dup {
			return repository.ErrConflict
		}
	}
	f.nextID++
	e.ID = f.nextID
	f.entries = append(f.entries, *e)
	return nil
}

type fakeOrderStore struct {
	db     *sql.DB
	orders map[uint64]*model.Order
	nextID uint64
}

func (f *fakeOrderStore) DB() *sql.DB { return f.db }

func (f *fakeOrderStore) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	f.nextID++
	o.ID = f.nextID
	if f.orders == nil {
		f.orders = make(map[uint64]*model.Order)
	}
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrderStore) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) GetByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.Order, error) {
	for _, o := range f.orders {
		if o.ReservationID != nil && *o.ReservationID == reservationID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrderStore) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if o, ok := f.orders[id]; ok && !o.IsPaid {
		o.IsPaid = true
		now := time.Now().UTC()
		o.PaidAt = &now
	}
	return nil
}

type fakeReservationStore struct {
	reservations map[uint64]*model.Reservation
}

func (f *fakeReservationStore) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	r, ok := f.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReservationStore) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if r, ok := f.reservations[id]; ok {
		r.AlreadyPaid = true
	}
	return nil
}

func (f *fakeReservationStore) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, checkedInAt *time.Time) error {
	if r, ok := f.reservations[id]; ok {
		r.Status = status
		if checkedInAt != nil {
			r.CheckedInAt = checkedInAt
		}
	}
	return nil
}

func (f *fakeReservationStore) LinkOrderTx(ctx context.Context, tx *sql.Tx, id, orderID uint64) error {
	if r, ok := f.reservations[id]; ok {
		r.OrderID = &orderID
	}
	return nil
}

type fakeRefStore struct {
	store  *model.Store
	method *model.PaymentMethod
}

func (f *fakeRefStore) GetStore(ctx context.Context, id uint64) (*model.Store, error) {
	if f.store == nil || f.store.ID != id {
		return nil, repository.ErrNotFound
	}
	cp := *f.store
	return &cp, nil
}

func (f *fakeRefStore) GetPaymentMethod(ctx context.Context, storeID, methodID uint64) (*model.PaymentMethod, error) {
	if f.method == nil || f.method.ID != methodID || f.method.StoreID != storeID {
		return nil, repository.ErrNotFound
	}
	cp := *f.method
	return &cp, nil
}
