package repository

import (
    "context"
    "database/sql"

    "github.com/okabe/storefront-booking/internal/model"
)

// StoreRepo provides read access to the reference data consumed by
// the booking and ledger engines: stores and their settings,
// facilities, payment methods and staff schedules. All of this data
// is admin-maintained and read-only from the engine's point of view.
type StoreRepo struct {
    db *sql.DB
}

// NewStoreRepo returns a StoreRepo bound to the database.
func NewStoreRepo(db *sql.DB) *StoreRepo { return &StoreRepo{db: db} }

// GetStore returns a store by id, or ErrNotFound.
func (r *StoreRepo) GetStore(ctx context.Context, id uint64) (*model.Store, error) {
    const q = `SELECT id, name, is_pro, single_service_mode, default_duration_min,
                      currency, timezone, hours_json, created_at, updated_at
               FROM stores WHERE id = ?`
    var (
        s     model.Store
        hours sql.NullString
    )
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &s.ID, &s.Name, &s.IsPro, &s.SingleServiceMode, &s.DefaultDurationMin,
        &s.Currency, &s.Timezone, &hours, &s.CreatedAt, &s.UpdatedAt,
    )
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if hours.Valid {
        v := hours.String
        s.HoursJSON = &v
    }
    return &s, nil
}

// GetFacility returns a facility by id, scoped to a store, or
// ErrNotFound when it does not exist or belongs to another store.
func (r *StoreRepo) GetFacility(ctx context.Context, storeID, facilityID uint64) (*model.Facility, error) {
    const q = `SELECT id, store_id, name, duration_min, active
               FROM facilities WHERE id = ? AND store_id = ?`
    var (
        f   model.Facility
        dur sql.NullInt64
    )
    err := r.db.QueryRowContext(ctx, q, facilityID, storeID).Scan(&f.ID, &f.StoreID, &f.Name, &dur, &f.Active)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if dur.Valid {
        v := int(dur.Int64)
        f.DurationMin = &v
    }
    return &f, nil
}

// GetPaymentMethod returns a payment method by id, scoped to a store.
func (r *StoreRepo) GetPaymentMethod(ctx context.Context, storeID, methodID uint64) (*model.PaymentMethod, error) {
    const q = `SELECT id, store_id, name, fee_rate, fee_additional_cents, clear_days
               FROM payment_methods WHERE id = ? AND store_id = ?`
    var m model.PaymentMethod
    err := r.db.QueryRowContext(ctx, q, methodID, storeID).Scan(
        &m.ID, &m.StoreID, &m.Name, &m.FeeRate, &m.FeeAdditionalCents, &m.ClearDays)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &m, nil
}

// StaffSchedules implements availability.StaffScheduleSource. It
// returns every schedule attached to a staff member; the schedule
// package filters by effective window and priority.
func (r *StoreRepo) StaffSchedules(ctx context.Context, staffID uint64) ([]model.StaffSchedule, error) {
    const q = `SELECT id, staff_id, facility_id, hours_json, effective_from, effective_to, priority
               FROM staff_schedules WHERE staff_id = ?`
    rows, err := r.db.QueryContext(ctx, q, staffID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.StaffSchedule
    for rows.Next() {
        var (
            s     model.StaffSchedule
            facID sql.NullInt64
            from  sql.NullTime
            to    sql.NullTime
        )
        if err := rows.Scan(&s.ID, &s.StaffID, &facID, &s.HoursJSON, &from, &to, &s.Priority); err != nil {
            return nil, err
        }
        if facID.Valid {
            v := uint64(facID.Int64)
            s.FacilityID = &v
        }
        if from.Valid {
            t := from.Time.UTC()
            s.EffectiveFrom = &t
        }
        if to.Valid {
            t := to.Time.UTC()
            s.EffectiveTo = &t
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// GetCustomer returns a customer by id, or ErrNotFound.
func (r *StoreRepo) GetCustomer(ctx context.Context, id uint64) (*model.Customer, error) {
    const q = `SELECT id, user_id, display_name, phone, created_at FROM customers WHERE id = ?`
    var (
        c      model.Customer
        userID sql.NullInt64
    )
    err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &userID, &c.DisplayName, &c.Phone, &c.CreatedAt)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if userID.Valid {
        v := uint64(userID.Int64)
        c.UserID = &v
    }
    return &c, nil
}

// CustomerByUser resolves the customer row backed by a user account,
// or ErrNotFound for accounts that never booked.
func (r *StoreRepo) CustomerByUser(ctx context.Context, userID uint64) (*model.Customer, error) {
    const q = `SELECT id, user_id, display_name, phone, created_at FROM customers WHERE user_id = ? LIMIT 1`
    var (
        c   model.Customer
        uid sql.NullInt64
    )
    err := r.db.QueryRowContext(ctx, q, userID).Scan(&c.ID, &uid, &c.DisplayName, &c.Phone, &c.CreatedAt)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if uid.Valid {
        v := uint64(uid.Int64)
        c.UserID = &v
    }
    return &c, nil
}
