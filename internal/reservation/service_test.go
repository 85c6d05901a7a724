package reservation

import (
    "context"
    "database/sql"
    "errors"
    "testing"
    "time"

    sqlmock "github.com/DATA-DOG/go-sqlmock"

    "github.com/okabe/storefront-booking/internal/availability"
    "github.com/okabe/storefront-booking/internal/model"
    "github.com/okabe/storefront-booking/internal/repository"
)

// In-memory fakes for the persistence surfaces. The mock database
// only supplies transaction scaffolding; every statement goes through
// the fakes.

type fakeResStore struct {
    m            map[uint64]*model.Reservation
    nextID       uint64
    statusWrites int
}

func (f *fakeResStore) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
    return f.get(id)
}

func (f *fakeResStore) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
    return f.get(id)
}

func (f *fakeResStore) get(id uint64) (*model.Reservation, error) {
    r, ok := f.m[id]
    if !ok {
        return nil, repository.ErrNotFound
    }
    cp := *r
    return &cp, nil
}

func (f *fakeResStore) FindByCodeForUpdateTx(ctx context.Context, tx *sql.Tx, storeID uint64, code string) (*model.Reservation, error) {
    var best *model.Reservation
    for _, r := range f.m {
        if r.StoreID != storeID || r.CheckinCode == nil || *r.CheckinCode != code {
            continue
        }
        if best == nil || r.ID < best.ID {
            best = r
        }
    }
    if best == nil {
        return nil, repository.ErrNotFound
    }
    cp := *best
    return &cp, nil
}

func (f *fakeResStore) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
    f.nextID++
    res.ID = f.nextID
    res.CreatedAt = time.Now().UTC()
    cp := *res
    f.m[res.ID] = &cp
    return nil
}

func (f *fakeResStore) UpdateBookingTx(ctx context.Context, tx *sql.Tx, id uint64, rsvpTimeMs int64, adults, children int, facilityID *uint64, message string) error {
    if r, ok := f.m[id]; ok {
        r.RsvpTimeMs = rsvpTimeMs
        r.Adults = adults
        r.Children = children
        r.FacilityID = facilityID
        r.Message = message
    }
    return nil
}

func (f *fakeResStore) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, checkedInAt *time.Time) error {
    f.statusWrites++
    if r, ok := f.m[id]; ok {
        r.Status = status
        if checkedInAt != nil {
            r.CheckedInAt = checkedInAt
        }
    }
    return nil
}

func (f *fakeResStore) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    delete(f.m, id)
    return nil
}

func (f *fakeResStore) TxCandidates(tx *sql.Tx) availability.CandidateSource {
    return emptyCandidates{}
}

type emptyCandidates struct{}

func (emptyCandidates) OverlapCandidates(ctx context.Context, storeID uint64, facilityID *uint64, endMs int64) ([]availability.Candidate, error) {
    return nil, nil
}

type fakeOrders struct {
    m map[uint64]*model.Order
}

func (f *fakeOrders) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Order, error) {
    o, ok := f.m[id]
    if !ok {
        return nil, repository.ErrNotFound
    }
    cp := *o
    return &cp, nil
}

func (f *fakeOrders) GetByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.Order, error) {
    for _, o := range f.m {
        if o.ReservationID != nil && *o.ReservationID == reservationID {
            cp := *o
            return &cp, nil
        }
    }
    return nil, repository.ErrNotFound
}

func (f *fakeOrders) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    delete(f.m, id)
    return nil
}

type fakeRefData struct {
    store *model.Store
}

func (f *fakeRefData) GetStore(ctx context.Context, id uint64) (*model.Store, error) {
    if f.store == nil || f.store.ID != id {
        return nil, repository.ErrNotFound
    }
    cp := *f.store
    return &cp, nil
}

func (f *fakeRefData) GetFacility(ctx context.Context, storeID, facilityID uint64) (*model.Facility, error) {
    return nil, repository.ErrNotFound
}

func (f *fakeRefData) GetCustomer(ctx context.Context, id uint64) (*model.Customer, error) {
    return nil, repository.ErrNotFound
}

func (f *fakeRefData) StaffSchedules(ctx context.Context, staffID uint64) ([]model.StaffSchedule, error) {
    return nil, nil
}

func newLifecycleFixture(t *testing.T) (*Service, *fakeResStore, *fakeOrders, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    t.Cleanup(func() { db.Close() })
    reservations := &fakeResStore{m: map[uint64]*model.Reservation{}}
    orders := &fakeOrders{m: map[uint64]*model.Order{}}
    stores := &fakeRefData{store: &model.Store{ID: 1, Currency: "USD", Timezone: "UTC"}}
    svc := NewService(db, reservations, orders, stores, nil)
    return svc, reservations, orders, mock
}

func TestCheckInIdempotent(t *testing.T) {
    svc, reservations, _, mock := newLifecycleFixture(t)
    reservations.m[5] = &model.Reservation{ID: 5, StoreID: 1, Status: model.StatusReady}
    mock.ExpectBegin()
    mock.ExpectCommit()
    mock.ExpectBegin()
    mock.ExpectRollback()
    ctx := context.Background()

    first, err := svc.CheckIn(ctx, 1, 5, "")
    if err != nil {
        t.Fatalf("CheckIn: %v", err)
    }
    if first.Already {
        t.Error("first check-in reported Already")
    }
    if got := reservations.m[5]; got.Status != model.StatusCheckedIn || got.CheckedInAt == nil {
        t.Errorf("after check-in: status %s, checked_in_at %v", got.Status, got.CheckedInAt)
    }

    second, err := svc.CheckIn(ctx, 1, 5, "")
    if err != nil {
        t.Fatalf("repeat CheckIn: %v", err)
    }
    if !second.Already {
        t.Error("repeat check-in not reported as Already")
    }
    if reservations.statusWrites != 1 {
        t.Errorf("status written %d times, want exactly 1", reservations.statusWrites)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Error(err)
    }
}

func TestCheckInByCodeScopedToStore(t *testing.T) {
    svc, reservations, _, mock := newLifecycleFixture(t)
    code := "A1B2C3"
    reservations.m[5] = &model.Reservation{ID: 5, StoreID: 1, Status: model.StatusReady, CheckinCode: &code}
    mock.ExpectBegin()
    mock.ExpectRollback()
    mock.ExpectBegin()
    mock.ExpectCommit()
    ctx := context.Background()

    if _, err := svc.CheckIn(ctx, 2, 0, code); !errors.Is(err, repository.ErrNotFound) {
        t.Fatalf("foreign-store code lookup err = %v, want ErrNotFound", err)
    }
    res, err := svc.CheckIn(ctx, 1, 0, " a1b2c3 ") // codes are case- and space-insensitive
    if err != nil {
        t.Fatalf("CheckIn by code: %v", err)
    }
    if res.Reservation.ID != 5 {
        t.Errorf("checked in reservation %d, want 5", res.Reservation.ID)
    }
}

func TestCheckInRefusesPending(t *testing.T) {
    svc, reservations, _, mock := newLifecycleFixture(t)
    reservations.m[5] = &model.Reservation{ID: 5, StoreID: 1, Status: model.StatusPending}
    mock.ExpectBegin()
    mock.ExpectRollback()

    _, err := svc.CheckIn(context.Background(), 1, 5, "")
    var se *StateError
    if !errors.As(err, &se) {
        t.Fatalf("err = %v, want StateError", err)
    }
    if reservations.statusWrites != 0 {
        t.Error("refused check-in still wrote a status")
    }
}

func TestDeleteRemovesReservationAndOrder(t *testing.T) {
    svc, reservations, orders, mock := newLifecycleFixture(t)
    oid := uint64(9)
    rid := uint64(5)
    reservations.m[5] = &model.Reservation{ID: 5, StoreID: 1, Status: model.StatusPending, OrderID: &oid}
    orders.m[9] = &model.Order{ID: 9, StoreID: 1, ReservationID: &rid, Kind: model.OrderKindReservation}
    mock.ExpectBegin()
    mock.ExpectCommit()

    actor := Actor{Role: "STAFF", StoreID: &reservations.m[5].StoreID}
    if err := svc.Delete(context.Background(), 5, actor); err != nil {
        t.Fatalf("Delete: %v", err)
    }
    if _, ok := reservations.m[5]; ok {
        t.Error("reservation row survived the delete")
    }
    if _, ok := orders.m[9]; ok {
        t.Error("linked order row survived the delete")
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Error(err)
    }
}

func TestDeleteFindsUnlinkedOrder(t *testing.T) {
    // The back link may be missing; the order row referencing the
    // reservation is still part of the cascade.
    svc, reservations, orders, mock := newLifecycleFixture(t)
    rid := uint64(5)
    storeID := uint64(1)
    reservations.m[5] = &model.Reservation{ID: 5, StoreID: 1, Status: model.StatusPending}
    orders.m[9] = &model.Order{ID: 9, StoreID: 1, ReservationID: &rid, Kind: model.OrderKindReservation}
    mock.ExpectBegin()
    mock.ExpectCommit()

    if err := svc.Delete(context.Background(), 5, Actor{Role: "STAFF", StoreID: &storeID}); err != nil {
        t.Fatalf("Delete: %v", err)
    }
    if len(orders.m) != 0 {
        t.Error("unlinked order row survived the delete")
    }
}

func TestDeleteRefusesPaidReservation(t *testing.T) {
    svc, reservations, orders, mock := newLifecycleFixture(t)
    oid := uint64(9)
    rid := uint64(5)
    storeID := uint64(1)
    reservations.m[5] = &model.Reservation{ID: 5, StoreID: 1, Status: model.StatusPending, OrderID: &oid}
    orders.m[9] = &model.Order{ID: 9, StoreID: 1, ReservationID: &rid, IsPaid: true}
    mock.ExpectBegin()
    mock.ExpectRollback()

    err := svc.Delete(context.Background(), 5, Actor{Role: "STAFF", StoreID: &storeID})
    var se *StateError
    if !errors.As(err, &se) {
        t.Fatalf("err = %v, want StateError", err)
    }
    if _, ok := reservations.m[5]; !ok {
        t.Error("reservation deleted despite paid order")
    }
    if _, ok := orders.m[9]; !ok {
        t.Error("paid order deleted")
    }
}

func TestMarkNoShowNotRepeatable(t *testing.T) {
    svc, reservations, _, mock := newLifecycleFixture(t)
    reservations.m[5] = &model.Reservation{ID: 5, StoreID: 1, Status: model.StatusReady}
    mock.ExpectBegin()
    mock.ExpectCommit()
    mock.ExpectBegin()
    mock.ExpectRollback()
    ctx := context.Background()

    res, err := svc.MarkNoShow(ctx, 1, 5)
    if err != nil {
        t.Fatalf("MarkNoShow: %v", err)
    }
    if res.Status != model.StatusNoShow {
        t.Errorf("status = %s, want NO_SHOW", res.Status)
    }
    if _, err := svc.MarkNoShow(ctx, 1, 5); err == nil {
        t.Error("repeated no-show accepted; the decision must not be replayable")
    }
}

func TestCreateIssuesClaimTokenForGuests(t *testing.T) {
    svc, _, _, mock := newLifecycleFixture(t)
    mock.ExpectBegin()
    mock.ExpectCommit()
    mock.ExpectBegin()
    mock.ExpectCommit()
    ctx := context.Background()

    guest, err := svc.Create(ctx, CreateParams{StoreID: 1, Adults: 2, RsvpTimeMs: 1_780_000_000_000})
    if err != nil {
        t.Fatalf("Create: %v", err)
    }
    if guest.ClaimToken == nil || len(*guest.ClaimToken) != 32 {
        t.Error("guest booking missing its 16-byte claim token")
    }
    if guest.CheckinCode == nil || len(*guest.CheckinCode) != 6 {
        t.Error("booking missing its 6-character check-in code")
    }

    cid := uint64(3)
    known, err := svc.Create(ctx, CreateParams{StoreID: 1, CustomerID: &cid, Adults: 1, RsvpTimeMs: 1_780_000_000_000})
    if err != nil {
        t.Fatalf("Create: %v", err)
    }
    if known.ClaimToken != nil {
        t.Error("customer booking carries a claim token")
    }
}
