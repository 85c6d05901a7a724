package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/okabe/storefront-booking/internal/availability"
    "github.com/okabe/storefront-booking/internal/model"
)

// ReservationRepo provides persistence for reservations. Status
// changes always go through the *Tx methods so that the lifecycle
// service can hold a row lock for the whole transition and bundle the
// accompanying writes (order deletion, ledger posting) into the same
// transaction. All timestamps are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, store_id, customer_id, facility_id, staff_id, adults, children,
    rsvp_time_ms, arrival_time_ms, message, facility_cost_cents, staff_cost_cents,
    pricing_rule_id, status, already_paid, confirmed_by_store, confirmed_by_customer,
    order_id, checkin_code, checked_in_at, claim_token, created_at, updated_at`

// scanner abstracts *sql.Row and *sql.Rows for scanReservation.
type scanner interface {
    Scan(dest ...interface{}) error
}

// scanReservation reads one reservation row in reservationColumns
// order, converting nullable columns into pointer fields.
func scanReservation(s scanner) (*model.Reservation, error) {
    var (
        res          model.Reservation
        customerID   sql.NullInt64
        facilityID   sql.NullInt64
        staffID      sql.NullInt64
        arrivalMs    sql.NullInt64
        facilityCost sql.NullInt64
        staffCost    sql.NullInt64
        ruleID       sql.NullInt64
        orderID      sql.NullInt64
        checkinCode  sql.NullString
        checkedInAt  sql.NullTime
        claimToken   sql.NullString
    )
    err := s.Scan(
        &res.ID, &res.StoreID, &customerID, &facilityID, &staffID, &res.Adults, &res.Children,
        &res.RsvpTimeMs, &arrivalMs, &res.Message, &facilityCost, &staffCost,
        &ruleID, &res.Status, &res.AlreadyPaid, &res.ConfirmedByStore, &res.ConfirmedByCustomer,
        &orderID, &checkinCode, &checkedInAt, &claimToken, &res.CreatedAt, &res.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if customerID.Valid {
        v := uint64(customerID.Int64)
        res.CustomerID = &v
    }
    if facilityID.Valid {
        v := uint64(facilityID.Int64)
        res.FacilityID = &v
    }
    if staffID.Valid {
        v := uint64(staffID.Int64)
        res.StaffID = &v
    }
    if arrivalMs.Valid {
        v := arrivalMs.Int64
        res.ArrivalTimeMs = &v
    }
    if facilityCost.Valid {
        v := facilityCost.Int64
        res.FacilityCostCents = &v
    }
    if staffCost.Valid {
        v := staffCost.Int64
        res.StaffCostCents = &v
    }
    if ruleID.Valid {
        v := uint64(ruleID.Int64)
        res.PricingRuleID = &v
    }
    if orderID.Valid {
        v := uint64(orderID.Int64)
        res.OrderID = &v
    }
    if checkinCode.Valid {
        v := checkinCode.String
        res.CheckinCode = &v
    }
    if checkedInAt.Valid {
        t := checkedInAt.Time.UTC()
        res.CheckedInAt = &t
    }
    if claimToken.Valid {
        v := claimToken.String
        res.ClaimToken = &v
    }
    return &res, nil
}

// CreateTx inserts a new reservation within an existing transaction
// and populates the generated ID and timestamps on the passed record.
// The caller commits or rolls back.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
    const q = `INSERT INTO reservations
        (store_id, customer_id, facility_id, staff_id, adults, children, rsvp_time_ms,
         message, facility_cost_cents, staff_cost_cents, pricing_rule_id, status,
         checkin_code, claim_token)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q,
        res.StoreID, res.CustomerID, res.FacilityID, res.StaffID, res.Adults, res.Children,
        res.RsvpTimeMs, res.Message, res.FacilityCostCents, res.StaffCostCents,
        res.PricingRuleID, res.Status, res.CheckinCode, res.ClaimToken,
    )
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)
    // Read the row back to pick up database-assigned timestamps.
    const sel = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
    row, err := scanReservation(tx.QueryRowContext(ctx, sel, res.ID))
    if err != nil {
        return err
    }
    *res = *row
    return nil
}

// GetByID returns a reservation by id, or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
    res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return res, err
}

// GetForUpdateTx loads a reservation with a row lock so that a status
// transition holds the row for the rest of the transaction. Returns
// ErrNotFound when no such reservation exists.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
    res, err := scanReservation(tx.QueryRowContext(ctx, q, id))
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return res, err
}

// FindByCodeForUpdateTx resolves a staff check-in code to a locked
// reservation row, scoped to the store. The oldest match wins when a
// code was ever reused.
func (r *ReservationRepo) FindByCodeForUpdateTx(ctx context.Context, tx *sql.Tx, storeID uint64, code string) (*model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations
               WHERE store_id = ? AND checkin_code = ?
               ORDER BY created_at ASC LIMIT 1 FOR UPDATE`
    res, err := scanReservation(tx.QueryRowContext(ctx, q, storeID, code))
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return res, err
}

// UpdateBookingTx rewrites the editable fields of a Pending
// reservation: requested time, party size, facility and message. The
// lifecycle service is responsible for re-validating conflicts first.
func (r *ReservationRepo) UpdateBookingTx(ctx context.Context, tx *sql.Tx, id uint64, rsvpTimeMs int64, adults, children int, facilityID *uint64, message string) error {
    const q = `UPDATE reservations
               SET rsvp_time_ms = ?, adults = ?, children = ?, facility_id = ?, message = ?
               WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, rsvpTimeMs, adults, children, facilityID, message, id)
    return err
}

// UpdateStatusTx writes a new status. When checkedInAt is non-nil the
// checked_in_at column is set as well (check-in transition).
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, checkedInAt *time.Time) error {
    if checkedInAt != nil {
        const q = `UPDATE reservations SET status = ?, checked_in_at = ? WHERE id = ?`
        _, err := tx.ExecContext(ctx, q, status, checkedInAt.UTC(), id)
        return err
    }
    const q = `UPDATE reservations SET status = ? WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, status, id)
    return err
}

// MarkPaidTx flips already_paid after the gateway confirmed the
// linked order.
func (r *ReservationRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    const q = `UPDATE reservations SET already_paid = 1 WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, id)
    return err
}

// LinkOrderTx records the payment order opened for a reservation.
func (r *ReservationRepo) LinkOrderTx(ctx context.Context, tx *sql.Tx, id, orderID uint64) error {
    const q = `UPDATE reservations SET order_id = ? WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, orderID, id)
    return err
}

// DeleteTx removes a reservation row. Only the lifecycle service may
// call this, and only for unpaid reservations; paid ones are cancelled
// instead.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    const q = `DELETE FROM reservations WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, id)
    return err
}

// OverlapCandidates implements availability.CandidateSource. It loads
// non-cancelled reservations starting before endMs, joined with their
// facility's configured duration, either store-wide (facilityID nil,
// single-service mode) or for one facility.
func (r *ReservationRepo) OverlapCandidates(ctx context.Context, storeID uint64, facilityID *uint64, endMs int64) ([]availability.Candidate, error) {
    q := `SELECT r.id, r.facility_id, r.rsvp_time_ms, f.duration_min
          FROM reservations r
          LEFT JOIN facilities f ON f.id = r.facility_id
          WHERE r.store_id = ? AND r.status <> 'CANCELLED' AND r.rsvp_time_ms < ?`
    args := []interface{}{storeID, endMs}
    if facilityID != nil {
        q += ` AND r.facility_id = ?`
        args = append(args, *facilityID)
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []availability.Candidate
    for rows.Next() {
        var (
            c      availability.Candidate
            facID  sql.NullInt64
            durMin sql.NullInt64
        )
        if err := rows.Scan(&c.ID, &facID, &c.StartMs, &durMin); err != nil {
            return nil, err
        }
        if facID.Valid {
            v := uint64(facID.Int64)
            c.FacilityID = &v
        }
        if durMin.Valid {
            v := int(durMin.Int64)
            c.FacilityDurationMin = &v
        }
        out = append(out, c)
    }
    return out, rows.Err()
}

// TxCandidates returns an availability.CandidateSource bound to the
// given transaction. Its query appends FOR UPDATE so the booking
// transaction locks the candidate rows it checked against, keeping
// the conflict decision valid until commit. Two bookings racing for a
// resource with no existing reservations still both pass; a strict
// guarantee would need a resource-level lock or unique constraint.
func (r *ReservationRepo) TxCandidates(tx *sql.Tx) availability.CandidateSource {
    return &txCandidateSource{tx: tx}
}

type txCandidateSource struct {
    tx *sql.Tx
}

func (s *txCandidateSource) OverlapCandidates(ctx context.Context, storeID uint64, facilityID *uint64, endMs int64) ([]availability.Candidate, error) {
    q := `SELECT r.id, r.facility_id, r.rsvp_time_ms, f.duration_min
          FROM reservations r
          LEFT JOIN facilities f ON f.id = r.facility_id
          WHERE r.store_id = ? AND r.status <> 'CANCELLED' AND r.rsvp_time_ms < ?`
    args := []interface{}{storeID, endMs}
    if facilityID != nil {
        q += ` AND r.facility_id = ?`
        args = append(args, *facilityID)
    }
    q += ` FOR UPDATE`
    rows, err := s.tx.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []availability.Candidate
    for rows.Next() {
        var (
            c      availability.Candidate
            facID  sql.NullInt64
            durMin sql.NullInt64
        )
        if err := rows.Scan(&c.ID, &facID, &c.StartMs, &durMin); err != nil {
            return nil, err
        }
        if facID.Valid {
            v := uint64(facID.Int64)
            c.FacilityID = &v
        }
        if durMin.Valid {
            v := int(durMin.Int64)
            c.FacilityDurationMin = &v
        }
        out = append(out, c)
    }
    return out, rows.Err()
}

// ListByCustomer returns a customer's reservations, newest first.
func (r *ReservationRepo) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations
               WHERE customer_id = ? ORDER BY created_at DESC`
    return r.list(ctx, q, customerID)
}

// ListByStore returns a store's reservations, newest first, capped at
// limit rows (0 means no cap).
func (r *ReservationRepo) ListByStore(ctx context.Context, storeID uint64, limit int) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations
          WHERE store_id = ? ORDER BY created_at DESC`
    args := []interface{}{storeID}
    if limit > 0 {
        q += ` LIMIT ?`
        args = append(args, limit)
    }
    return r.list(ctx, q, args...)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Reservation, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Reservation, 0)
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *res)
    }
    return out, rows.Err()
}
