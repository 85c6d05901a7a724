package reservation

import (
    "context"
    "crypto/rand"
    "database/sql"
    "encoding/hex"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/okabe/storefront-booking/internal/availability"
    "github.com/okabe/storefront-booking/internal/model"
    "github.com/okabe/storefront-booking/internal/queue"
    "github.com/okabe/storefront-booking/internal/repository"
)

// ValidationError reports malformed or out-of-range input, rejected
// before any side effect.
type ValidationError struct {
    Field  string
    Reason string
}

func (e *ValidationError) Error() string {
    return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EventPublisher is the notification dispatcher boundary. Publishing
// is fire-and-forget: the service logs failures and moves on.
type EventPublisher interface {
    PublishReservationEvent(ctx context.Context, ev queue.ReservationEvent) error
}

// Actor identifies who is invoking a mutating operation. Staff act on
// behalf of their store; customers own their reservations via the
// customer record; anonymous bookers assert ownership with the claim
// token issued when they booked.
type Actor struct {
    Role       string  // STAFF or CUSTOMER, empty for guests
    StoreID    *uint64 // staff's store
    CustomerID *uint64 // customer's record
    ClaimToken string  // guest ownership assertion
}

// reservationStore, orderStore and refDataStore are the persistence
// surfaces the lifecycle runs on. The repository types are the
// production implementations; tests plug in in-memory fakes.
type reservationStore interface {
    GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
    GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error)
    FindByCodeForUpdateTx(ctx context.Context, tx *sql.Tx, storeID uint64, code string) (*model.Reservation, error)
    CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error
    UpdateBookingTx(ctx context.Context, tx *sql.Tx, id uint64, rsvpTimeMs int64, adults, children int, facilityID *uint64, message string) error
    UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, checkedInAt *time.Time) error
    DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error
    TxCandidates(tx *sql.Tx) availability.CandidateSource
}

type orderStore interface {
    GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Order, error)
    GetByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.Order, error)
    DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error
}

type refDataStore interface {
    availability.StaffScheduleSource
    GetStore(ctx context.Context, id uint64) (*model.Store, error)
    GetFacility(ctx context.Context, storeID, facilityID uint64) (*model.Facility, error)
    GetCustomer(ctx context.Context, id uint64) (*model.Customer, error)
}

// Service executes lifecycle operations. Every multi-statement
// invariant (conflict check + insert, delete reservation + order,
// status change + timestamps) runs inside one transaction on db.
type Service struct {
    db           *sql.DB
    reservations reservationStore
    orders       orderStore
    stores       refDataStore
    events       EventPublisher
    now          func() time.Time
}

// NewService wires the lifecycle service. events may be nil in tests;
// transitions then simply emit nothing.
func NewService(db *sql.DB, reservations reservationStore, orders orderStore, stores refDataStore, events EventPublisher) *Service {
    if db == nil || reservations == nil || orders == nil || stores == nil {
        panic("nil dependency passed to reservation.NewService")
    }
    return &Service{
        db:           db,
        reservations: reservations,
        orders:       orders,
        stores:       stores,
        events:       events,
        now:          func() time.Time { return time.Now().UTC() },
    }
}

// settingsOf maps a store row onto the resolver's settings. A store
// that configures neither a default duration nor single-service mode
// has no booking configuration at all; validation is then skipped.
func settingsOf(store *model.Store) *availability.Settings {
    if store.DefaultDurationMin <= 0 && !store.SingleServiceMode {
        return nil
    }
    return &availability.Settings{
        SingleServiceMode:  store.SingleServiceMode,
        DefaultDurationMin: store.DefaultDurationMin,
    }
}

// storeLocation resolves the store timezone, falling back to UTC when
// the configured name is invalid. Like schedules, timezone data is
// admin-entered and must not hard-fail a booking.
func storeLocation(store *model.Store) *time.Location {
    loc, err := time.LoadLocation(store.Timezone)
    if err != nil {
        log.Printf("reservation: store %d has invalid timezone %q, using UTC", store.ID, store.Timezone)
        return time.UTC
    }
    return loc
}

// randomHex returns n random bytes hex-encoded.
func randomHex(n int) (string, error) {
    b := make([]byte, n)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    return hex.EncodeToString(b), nil
}

// CreateParams carries the inputs of both booking flows. InitialStatus
// is only honoured for the staff flow; the customer flow always starts
// at PENDING.
type CreateParams struct {
    StoreID           uint64
    CustomerID        *uint64
    FacilityID        *uint64
    StaffID           *uint64
    Adults            int
    Children          int
    RsvpTimeMs        int64
    DurationMin       int // explicit override, 0 = resolve from config
    Message           string
    FacilityCostCents *int64
    StaffCostCents    *int64
    PricingRuleID     *uint64
    InitialStatus     string // staff flow only; empty means PENDING
}

func (p *CreateParams) validate() error {
    if p.Adults < 1 {
        return &ValidationError{Field: "adults", Reason: "must be at least 1"}
    }
    if p.Children < 0 {
        return &ValidationError{Field: "children", Reason: "must not be negative"}
    }
    if p.RsvpTimeMs <= 0 {
        return &ValidationError{Field: "rsvp_time", Reason: "missing or not a valid instant"}
    }
    if p.FacilityCostCents != nil && *p.FacilityCostCents < 0 {
        return &ValidationError{Field: "facility_cost", Reason: "must not be negative"}
    }
    if p.StaffCostCents != nil && *p.StaffCostCents < 0 {
        return &ValidationError{Field: "staff_cost", Reason: "must not be negative"}
    }
    if p.InitialStatus != "" && !ValidInitialStatus(p.InitialStatus) {
        return &ValidationError{Field: "status", Reason: "not a valid initial status"}
    }
    return nil
}

// Create books a reservation. The conflict check and the insert run
// in one transaction; the candidate rows checked against are locked
// until commit so the decision cannot be invalidated by a concurrent
// booking on the same resource.
func (s *Service) Create(ctx context.Context, p CreateParams) (*model.Reservation, error) {
    if err := p.validate(); err != nil {
        return nil, err
    }
    store, err := s.stores.GetStore(ctx, p.StoreID)
    if err != nil {
        return nil, err
    }
    var facilityDur *int
    if p.FacilityID != nil {
        facility, err := s.stores.GetFacility(ctx, store.ID, *p.FacilityID)
        if err != nil {
            return nil, err
        }
        if !facility.Active {
            return nil, &ValidationError{Field: "facility", Reason: "facility is not bookable"}
        }
        facilityDur = facility.DurationMin
    }

    status := p.InitialStatus
    if status == "" {
        status = model.StatusPending
    }

    code, err := randomHex(3)
    if err != nil {
        return nil, err
    }
    code = strings.ToUpper(code)
    res := &model.Reservation{
        StoreID:           store.ID,
        CustomerID:        p.CustomerID,
        FacilityID:        p.FacilityID,
        StaffID:           p.StaffID,
        Adults:            p.Adults,
        Children:          p.Children,
        RsvpTimeMs:        p.RsvpTimeMs,
        Message:           p.Message,
        FacilityCostCents: p.FacilityCostCents,
        StaffCostCents:    p.StaffCostCents,
        PricingRuleID:     p.PricingRuleID,
        Status:            status,
        CheckinCode:       &code,
    }
    if p.CustomerID == nil {
        token, err := randomHex(16)
        if err != nil {
            return nil, err
        }
        res.ClaimToken = &token
    }

    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    resolver := availability.NewResolver(s.reservations.TxCandidates(tx), s.stores)
    err = resolver.Check(ctx, settingsOf(store), availability.Request{
        StoreID:     store.ID,
        FacilityID:  p.FacilityID,
        StaffID:     p.StaffID,
        StartMs:     p.RsvpTimeMs,
        DurationMin: p.DurationMin,
        FacilityDur: facilityDur,
        Timezone:    storeLocation(store),
    })
    if err != nil {
        return nil, err
    }
    if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true

    s.emit(ctx, res, queue.EventStatusChanged, "", res.Status)
    return res, nil
}

// UpdateParams carries the editable fields of a Pending reservation.
type UpdateParams struct {
    ID          uint64
    Actor       Actor
    RsvpTimeMs  int64
    Adults      int
    Children    int
    FacilityID  *uint64
    DurationMin int
    Message     string
}

// Update rewrites a reservation's booking fields. Only PENDING
// reservations are editable, and the new window is re-validated
// against conflicts before committing.
func (s *Service) Update(ctx context.Context, p UpdateParams) (*model.Reservation, error) {
    if p.Adults < 1 {
        return nil, &ValidationError{Field: "adults", Reason: "must be at least 1"}
    }
    if p.Children < 0 {
        return nil, &ValidationError{Field: "children", Reason: "must not be negative"}
    }
    if p.RsvpTimeMs <= 0 {
        return nil, &ValidationError{Field: "rsvp_time", Reason: "missing or not a valid instant"}
    }

    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    res, err := s.reservations.GetForUpdateTx(ctx, tx, p.ID)
    if err != nil {
        return nil, err
    }
    if err := authorize(res, p.Actor); err != nil {
        return nil, err
    }
    if !CanEdit(res.Status) {
        return nil, &StateError{Op: "edit", From: res.Status}
    }
    store, err := s.stores.GetStore(ctx, res.StoreID)
    if err != nil {
        return nil, err
    }
    var facilityDur *int
    if p.FacilityID != nil {
        facility, err := s.stores.GetFacility(ctx, store.ID, *p.FacilityID)
        if err != nil {
            return nil, err
        }
        if !facility.Active {
            return nil, &ValidationError{Field: "facility", Reason: "facility is not bookable"}
        }
        facilityDur = facility.DurationMin
    }

    resolver := availability.NewResolver(s.reservations.TxCandidates(tx), s.stores)
    err = resolver.Check(ctx, settingsOf(store), availability.Request{
        StoreID:     store.ID,
        FacilityID:  p.FacilityID,
        StaffID:     res.StaffID,
        StartMs:     p.RsvpTimeMs,
        DurationMin: p.DurationMin,
        ExcludeID:   res.ID,
        FacilityDur: facilityDur,
        Timezone:    storeLocation(store),
    })
    if err != nil {
        return nil, err
    }
    if err := s.reservations.UpdateBookingTx(ctx, tx, res.ID, p.RsvpTimeMs, p.Adults, p.Children, p.FacilityID, p.Message); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true

    res.RsvpTimeMs = p.RsvpTimeMs
    res.Adults = p.Adults
    res.Children = p.Children
    res.FacilityID = p.FacilityID
    res.Message = p.Message
    return res, nil
}

// Delete removes an unpaid reservation together with its unpaid
// linked order, atomically. A paid reservation is never deleted; the
// caller gets a StateError and must cancel instead.
func (s *Service) Delete(ctx context.Context, id uint64, actor Actor) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    res, err := s.reservations.GetForUpdateTx(ctx, tx, id)
    if err != nil {
        return err
    }
    if err := authorize(res, actor); err != nil {
        return err
    }
    orderPaid := false
    var order *model.Order
    if res.OrderID != nil {
        order, err = s.orders.GetForUpdateTx(ctx, tx, *res.OrderID)
    } else {
        order, err = s.orders.GetByReservationTx(ctx, tx, res.ID)
    }
    if err != nil && err != repository.ErrNotFound {
        return err
    }
    if order != nil {
        orderPaid = order.IsPaid
    }
    if !CanDelete(res.Status, orderPaid) {
        return &StateError{Op: "delete", From: res.Status}
    }
    if order != nil {
        if err := s.orders.DeleteTx(ctx, tx, order.ID); err != nil {
            return err
        }
    }
    if err := s.reservations.DeleteTx(ctx, tx, res.ID); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true

    s.emit(ctx, res, queue.EventDeleted, res.Status, "")
    return nil
}

// CheckInResult reports the outcome of a check-in. Already is true
// when the reservation had been checked in before (or has completed);
// the retry succeeds without changing state.
type CheckInResult struct {
    Reservation *model.Reservation
    Already     bool
}

// CheckIn transitions a reservation to CHECKED_IN, keyed either by
// reservation id or by the short check-in code (staff flow; first
// match wins, scoped to the store). The operation is idempotent:
// repeating it returns success with Already set instead of erroring.
func (s *Service) CheckIn(ctx context.Context, storeID, reservationID uint64, code string) (*CheckInResult, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    var res *model.Reservation
    if reservationID != 0 {
        res, err = s.reservations.GetForUpdateTx(ctx, tx, reservationID)
    } else if code != "" {
        res, err = s.reservations.FindByCodeForUpdateTx(ctx, tx, storeID, strings.ToUpper(strings.TrimSpace(code)))
    } else {
        return nil, &ValidationError{Field: "reservation", Reason: "id or check-in code required"}
    }
    if err != nil {
        return nil, err
    }
    if res.StoreID != storeID {
        return nil, repository.ErrNotFound
    }

    ok, already := CheckInFrom(res.Status)
    if already {
        return &CheckInResult{Reservation: res, Already: true}, nil
    }
    if !ok {
        return nil, &StateError{Op: "check-in", From: res.Status}
    }
    before := res.Status
    at := s.now()
    if err := s.reservations.UpdateStatusTx(ctx, tx, res.ID, model.StatusCheckedIn, &at); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true

    res.Status = model.StatusCheckedIn
    res.CheckedInAt = &at
    s.emit(ctx, res, queue.EventStatusChanged, before, model.StatusCheckedIn)
    return &CheckInResult{Reservation: res}, nil
}

// MarkNoShow records an operator's no-show decision. Only READY
// reservations qualify; repeating the call is an error, unlike
// check-in, because it is a decision rather than a client retry.
func (s *Service) MarkNoShow(ctx context.Context, storeID, reservationID uint64) (*model.Reservation, error) {
    return s.transition(ctx, storeID, reservationID, "no-show", model.StatusNoShow, queue.EventNoShow, CanNoShow)
}

// Cancel retires a reservation from any non-terminal status. This is
// the only way to retire a paid reservation.
func (s *Service) Cancel(ctx context.Context, reservationID uint64, actor Actor) (*model.Reservation, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    res, err := s.reservations.GetForUpdateTx(ctx, tx, reservationID)
    if err != nil {
        return nil, err
    }
    if err := authorize(res, actor); err != nil {
        return nil, err
    }
    if !CanCancel(res.Status) {
        return nil, &StateError{Op: "cancel", From: res.Status}
    }
    before := res.Status
    if err := s.reservations.UpdateStatusTx(ctx, tx, res.ID, model.StatusCancelled, nil); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true

    res.Status = model.StatusCancelled
    s.emit(ctx, res, queue.EventStatusChanged, before, model.StatusCancelled)
    return res, nil
}

// Complete marks service finished for a checked-in reservation.
func (s *Service) Complete(ctx context.Context, storeID, reservationID uint64) (*model.Reservation, error) {
    return s.transition(ctx, storeID, reservationID, "complete", model.StatusCompleted, queue.EventStatusChanged, CanComplete)
}

// transition runs a staff-driven guarded status change in one
// transaction and emits the corresponding event after commit.
func (s *Service) transition(ctx context.Context, storeID, reservationID uint64, op, to, eventType string, guard func(string) bool) (*model.Reservation, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    res, err := s.reservations.GetForUpdateTx(ctx, tx, reservationID)
    if err != nil {
        return nil, err
    }
    if res.StoreID != storeID {
        return nil, repository.ErrNotFound
    }
    if !guard(res.Status) {
        return nil, &StateError{Op: op, From: res.Status}
    }
    before := res.Status
    if err := s.reservations.UpdateStatusTx(ctx, tx, res.ID, to, nil); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true

    res.Status = to
    s.emit(ctx, res, eventType, before, to)
    return res, nil
}

// Get returns a reservation the actor is allowed to see.
func (s *Service) Get(ctx context.Context, id uint64, actor Actor) (*model.Reservation, error) {
    res, err := s.reservations.GetByID(ctx, id)
    if err != nil {
        return nil, err
    }
    if err := authorize(res, actor); err != nil {
        return nil, err
    }
    return res, nil
}

// authorize checks whether the actor owns or operates the
// reservation. Guest ownership rests on the claim token issued at
// booking time.
func authorize(res *model.Reservation, actor Actor) error {
    if actor.Role == "STAFF" && actor.StoreID != nil && *actor.StoreID == res.StoreID {
        return nil
    }
    if actor.CustomerID != nil && res.CustomerID != nil && *actor.CustomerID == *res.CustomerID {
        return nil
    }
    if actor.ClaimToken != "" && res.ClaimToken != nil && actor.ClaimToken == *res.ClaimToken {
        return nil
    }
    return repository.ErrForbidden
}

// emit publishes a reservation event, best effort. Display fields are
// denormalized from reference data; lookup failures leave them empty
// rather than suppressing the event.
func (s *Service) emit(ctx context.Context, res *model.Reservation, eventType, before, after string) {
    if s.events == nil {
        return
    }
    ev := queue.ReservationEvent{
        EventType:     eventType,
        ReservationID: res.ID,
        StoreID:       res.StoreID,
        BeforeStatus:  before,
        AfterStatus:   after,
        RsvpTime:      res.RsvpTime().Format(time.RFC3339),
        OccurredAt:    s.now().Format(time.RFC3339),
    }
    if store, err := s.stores.GetStore(ctx, res.StoreID); err == nil {
        ev.StoreName = store.Name
    }
    if res.FacilityID != nil {
        if f, err := s.stores.GetFacility(ctx, res.StoreID, *res.FacilityID); err == nil {
            ev.FacilityName = f.Name
        }
    }
    if res.CustomerID != nil {
        if c, err := s.stores.GetCustomer(ctx, *res.CustomerID); err == nil {
            ev.CustomerName = c.DisplayName
        }
    }
    if err := s.events.PublishReservationEvent(ctx, ev); err != nil {
        log.Printf("reservation: event publish failed (ignored): %v", err)
    }
}
