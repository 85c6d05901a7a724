package model

import "time"

// Reservation statuses. A reservation only ever moves forward through
// the transition table in internal/reservation; these constants are the
// canonical spelling of the `reservations.status` enum.
const (
    StatusPending        = "PENDING"          // awaiting payment or confirmation, still editable
    StatusReadyToConfirm = "READY_TO_CONFIRM" // waiting on a staff or customer action
    StatusReady          = "READY"            // confirmed, awaiting service
    StatusCheckedIn      = "CHECKED_IN"       // customer physically arrived
    StatusCompleted      = "COMPLETED"        // service finished (terminal)
    StatusCancelled      = "CANCELLED"        // terminal
    StatusNoShow         = "NO_SHOW"          // terminal, operator decision
)

// Reservation records one booking request against a store. A booking
// claims either a specific facility or, in single-service mode, the
// store as a whole for a window starting at RsvpTimeMs. Reservations
// are linked to at most one order; once that order is paid the row is
// never physically deleted, only cancelled.
//
// Fields:
//  ID                  – primary key identifier.
//  StoreID             – store being booked.
//  CustomerID          – customer who booked (nullable for guests).
//  FacilityID          – facility claimed (nullable in single-service mode).
//  StaffID             – requested service staff member (nullable).
//  Adults              – adult party size, at least 1.
//  Children            – child party size, zero or more.
//  RsvpTimeMs          – requested start instant, UTC epoch milliseconds.
//  ArrivalTimeMs       – actual arrival instant (nullable).
//  Message             – free-text message from the booker.
//  FacilityCostCents   – quoted facility cost (nullable, non-negative).
//  StaffCostCents      – quoted staff cost (nullable, non-negative).
//  PricingRuleID       – pricing rule applied at booking time (nullable).
//  Status              – one of the Status* constants above.
//  AlreadyPaid         – true once the linked order has been paid.
//  ConfirmedByStore    – store-side confirmation flag.
//  ConfirmedByCustomer – customer-side confirmation flag.
//  OrderID             – linked payment order (nullable).
//  CheckinCode         – short staff-facing check-in code (nullable).
//  CheckedInAt         – when the customer checked in (nullable).
//  ClaimToken          – ownership token handed to anonymous bookers (nullable).
//  CreatedAt           – creation timestamp.
//  UpdatedAt           – last update timestamp.
type Reservation struct {
    ID                  uint64     // reservations.id
    StoreID             uint64     // reservations.store_id
    CustomerID          *uint64    // reservations.customer_id (nullable)
    FacilityID          *uint64    // reservations.facility_id (nullable)
    StaffID             *uint64    // reservations.staff_id (nullable)
    Adults              int        // reservations.adults
    Children            int        // reservations.children
    RsvpTimeMs          int64      // reservations.rsvp_time_ms
    ArrivalTimeMs       *int64     // reservations.arrival_time_ms (nullable)
    Message             string     // reservations.message
    FacilityCostCents   *int64     // reservations.facility_cost_cents (nullable)
    StaffCostCents      *int64     // reservations.staff_cost_cents (nullable)
    PricingRuleID       *uint64    // reservations.pricing_rule_id (nullable)
    Status              string     // reservations.status
    AlreadyPaid         bool       // reservations.already_paid
    ConfirmedByStore    bool       // reservations.confirmed_by_store
    ConfirmedByCustomer bool       // reservations.confirmed_by_customer
    OrderID             *uint64    // reservations.order_id (nullable)
    CheckinCode         *string    // reservations.checkin_code (nullable)
    CheckedInAt         *time.Time // reservations.checked_in_at (nullable)
    ClaimToken          *string    // reservations.claim_token (nullable)
    CreatedAt           time.Time  // reservations.created_at
    UpdatedAt           time.Time  // reservations.updated_at
}

// RsvpTime returns the requested start instant as a UTC time.Time.
func (r *Reservation) RsvpTime() time.Time {
    return time.UnixMilli(r.RsvpTimeMs).UTC()
}

// Terminal reports whether the reservation has reached a terminal
// status. Terminal reservations accept no further transitions.
func (r *Reservation) Terminal() bool {
    switch r.Status {
    case StatusCompleted, StatusCancelled, StatusNoShow:
        return true
    }
    return false
}
