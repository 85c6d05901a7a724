// Package availability decides whether a requested booking window can
// be granted. It combines the interval-overlap check against existing
// active reservations with the staff business-hours check. The
// resolver never mutates state; callers re-run the check inside their
// booking transaction before inserting.
package availability

import (
    "context"
    "fmt"
    "time"

    "github.com/okabe/storefront-booking/internal/model"
    "github.com/okabe/storefront-booking/internal/schedule"
)

// Conflict rules reported by ConflictError. The message tells the
// caller which rule fired.
const (
    RuleSingleService = "single-service-mode"
    RuleFacility      = "facility"
    RuleStaffHours    = "staff-hours"
)

// DefaultDurationMin is the hard fallback booking duration when
// neither the facility nor the store configures one.
const DefaultDurationMin = 60

// ConflictError reports that a requested window collides with an
// existing reservation or falls outside staff working hours.
type ConflictError struct {
    Rule          string // which rule fired (Rule* constants)
    ReservationID uint64 // colliding reservation, zero for staff-hours
}

func (e *ConflictError) Error() string {
    if e.Rule == RuleStaffHours {
        return "booking falls outside staff working hours"
    }
    return fmt.Sprintf("booking overlaps reservation %d (%s)", e.ReservationID, e.Rule)
}

// Settings is the store-level booking configuration consulted by the
// resolver. A nil *Settings means the store has no configuration at
// all, in which case validation is skipped entirely.
type Settings struct {
    SingleServiceMode  bool
    DefaultDurationMin int
}

// Candidate is an existing active reservation that may collide with
// the requested window. FacilityDurationMin carries the candidate's
// facility-configured duration when one exists.
type Candidate struct {
    ID                  uint64
    FacilityID          *uint64
    StartMs             int64
    FacilityDurationMin *int
}

// CandidateSource loads reservations that could overlap a window
// starting before `endMs`. Implementations must exclude cancelled
// reservations. When facilityID is non-nil only that facility's
// reservations are returned; a nil facilityID loads the whole store
// (single-service mode).
type CandidateSource interface {
    OverlapCandidates(ctx context.Context, storeID uint64, facilityID *uint64, endMs int64) ([]Candidate, error)
}

// StaffScheduleSource loads the availability schedules of a staff
// member for the staff business-hours check.
type StaffScheduleSource interface {
    StaffSchedules(ctx context.Context, staffID uint64) ([]model.StaffSchedule, error)
}

// Request describes the window being validated.
type Request struct {
    StoreID     uint64
    FacilityID  *uint64
    StaffID     *uint64
    StartMs     int64          // requested start, UTC epoch milliseconds
    DurationMin int            // explicit override; 0 means resolve from config
    ExcludeID   uint64         // reservation being edited, 0 for new bookings
    FacilityDur *int           // requested facility's configured duration
    Timezone    *time.Location // store timezone for the staff-hours check
}

// Resolver performs conflict detection. Staff may be nil when the
// deployment has no staff scheduling.
type Resolver struct {
    Candidates CandidateSource
    Staff      StaffScheduleSource
}

// NewResolver returns a Resolver over the given sources.
func NewResolver(c CandidateSource, s StaffScheduleSource) *Resolver {
    return &Resolver{Candidates: c, Staff: s}
}

// resolveDuration applies the fallback chain: explicit override, the
// facility's configured duration, the store default, then the hard
// default of 60 minutes.
func resolveDuration(explicit int, facility *int, settings *Settings) int {
    if explicit > 0 {
        return explicit
    }
    if facility != nil && *facility > 0 {
        return *facility
    }
    if settings != nil && settings.DefaultDurationMin > 0 {
        return settings.DefaultDurationMin
    }
    return DefaultDurationMin
}

// Check validates the requested window. It returns nil when the
// booking may proceed, a *ConflictError when a rule fires, or a plain
// error for storage failures. When settings is nil validation is
// skipped: a store without booking configuration accepts everything.
//
// The overlap test is half-open: a candidate conflicts when
// start < candidateEnd && end > candidateStart, so windows that merely
// touch at a boundary coexist.
func (r *Resolver) Check(ctx context.Context, settings *Settings, req Request) error {
    if settings == nil {
        return nil
    }
    durMin := resolveDuration(req.DurationMin, req.FacilityDur, settings)
    endMs := req.StartMs + int64(durMin)*60_000

    // In single-service mode the whole store is one resource, so the
    // facility filter is dropped and any overlapping booking conflicts.
    facilityFilter := req.FacilityID
    rule := RuleFacility
    if settings.SingleServiceMode {
        facilityFilter = nil
        rule = RuleSingleService
    }

    candidates, err := r.Candidates.OverlapCandidates(ctx, req.StoreID, facilityFilter, endMs)
    if err != nil {
        return err
    }
    for _, c := range candidates {
        if c.ID == req.ExcludeID && req.ExcludeID != 0 {
            continue
        }
        candDur := resolveDuration(0, c.FacilityDurationMin, settings)
        candEnd := c.StartMs + int64(candDur)*60_000
        if req.StartMs < candEnd && endMs > c.StartMs {
            return &ConflictError{Rule: rule, ReservationID: c.ID}
        }
    }

    if req.StaffID != nil && r.Staff != nil {
        if err := r.checkStaffHours(ctx, req, endMs); err != nil {
            return err
        }
    }
    return nil
}

// checkStaffHours verifies that the whole requested window lies inside
// the staff member's effective working hours. A staff member with no
// applicable schedule is unrestricted.
func (r *Resolver) checkStaffHours(ctx context.Context, req Request, endMs int64) error {
    schedules, err := r.Staff.StaffSchedules(ctx, *req.StaffID)
    if err != nil {
        return err
    }
    loc := req.Timezone
    if loc == nil {
        loc = time.UTC
    }
    start := time.UnixMilli(req.StartMs).UTC()
    hours := schedule.EffectiveStaffHours(schedules, req.FacilityID, start.In(loc))
    if hours == nil {
        return nil
    }
    // The window is half-open: the end may touch closing time, but
    // every instant before it must be open, so a booking cannot bridge
    // the gap between two shifts.
    end := time.UnixMilli(endMs).UTC()
    if !hours.IsOpenDuring(start, end, loc) {
        return &ConflictError{Rule: RuleStaffHours}
    }
    return nil
}
