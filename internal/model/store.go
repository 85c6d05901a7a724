package model

import "time"

// Store represents one storefront tenant. The booking engine and the
// ledger chain are both scoped to a store; entries and reservations of
// different stores never interact.
//
// Fields:
//  ID                – primary key identifier.
//  Name              – display name of the store.
//  IsPro             – pro-level stores are exempt from the platform fee.
//  SingleServiceMode – when true the whole store is one bookable resource.
//  DefaultDurationMin– fallback booking duration in minutes.
//  Currency          – ISO currency code used for orders and ledger entries.
//  Timezone          – IANA timezone name used to evaluate business hours.
//  HoursJSON         – weekly opening schedule (weekday -> "closed" or ranges).
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Store struct {
    ID                 uint64    // stores.id
    Name               string    // stores.name
    IsPro              bool      // stores.is_pro
    SingleServiceMode  bool      // stores.single_service_mode
    DefaultDurationMin int       // stores.default_duration_min
    Currency           string    // stores.currency
    Timezone           string    // stores.timezone
    HoursJSON          *string   // stores.hours_json (nullable)
    CreatedAt          time.Time // stores.created_at
    UpdatedAt          time.Time // stores.updated_at
}

// Facility is an independently bookable resource inside a store, such
// as a table, a room or a chair. Outside single-service mode only
// bookings on the same facility can conflict.
//
// Fields:
//  ID          – primary key identifier.
//  StoreID     – store the facility belongs to.
//  Name        – display name.
//  DurationMin – configured booking duration (nullable; falls back to
//                the store default, then to 60 minutes).
//  Active      – inactive facilities cannot be booked.
type Facility struct {
    ID          uint64  // facilities.id
    StoreID     uint64  // facilities.store_id
    Name        string  // facilities.name
    DurationMin *int    // facilities.duration_min (nullable)
    Active      bool    // facilities.active
}

// ServiceStaff is a bookable staff member of a store.
//
// Fields:
//  ID          – primary key identifier.
//  StoreID     – store the staff member belongs to.
//  DisplayName – name shown to customers.
//  Active      – inactive staff cannot be requested.
type ServiceStaff struct {
    ID          uint64 // service_staff.id
    StoreID     uint64 // service_staff.store_id
    DisplayName string // service_staff.display_name
    Active      bool   // service_staff.active
}

// StaffSchedule is one availability schedule attached to a staff
// member. A schedule may be facility-specific (FacilityID set) or a
// facility-independent default. Schedules are filtered by their
// effective-date window against the booking date and resolved by
// priority, higher winning.
//
// Fields:
//  ID            – primary key identifier.
//  StaffID       – staff member the schedule belongs to.
//  FacilityID    – facility the schedule applies to (nullable = default).
//  HoursJSON     – weekly schedule in the same shape as store hours.
//  EffectiveFrom – first day the schedule applies (nullable).
//  EffectiveTo   – last day the schedule applies (nullable).
//  Priority      – tie breaker between overlapping schedules.
type StaffSchedule struct {
    ID            uint64     // staff_schedules.id
    StaffID       uint64     // staff_schedules.staff_id
    FacilityID    *uint64    // staff_schedules.facility_id (nullable)
    HoursJSON     string     // staff_schedules.hours_json
    EffectiveFrom *time.Time // staff_schedules.effective_from (nullable)
    EffectiveTo   *time.Time // staff_schedules.effective_to (nullable)
    Priority      int        // staff_schedules.priority
}

// PaymentMethod holds the fee parameters of one payment channel
// configured for a store. FeeRate is a fraction (0.03 = 3%),
// FeeAdditionalCents a fixed per-transaction surcharge, and ClearDays
// the number of days before received funds become payable out.
type PaymentMethod struct {
    ID                 uint64  // payment_methods.id
    StoreID            uint64  // payment_methods.store_id
    Name               string  // payment_methods.name
    FeeRate            float64 // payment_methods.fee_rate
    FeeAdditionalCents int64   // payment_methods.fee_additional_cents
    ClearDays          int     // payment_methods.clear_days
}

// Customer is a person who books. Customers may be backed by a user
// account or anonymous; anonymous bookers prove ownership of a
// reservation with the claim token issued at booking time.
type Customer struct {
    ID          uint64    // customers.id
    UserID      *uint64   // customers.user_id (nullable)
    DisplayName string    // customers.display_name
    Phone       string    // customers.phone
    CreatedAt   time.Time // customers.created_at
}
