package schedule

import (
    "time"

    "github.com/okabe/storefront-booking/internal/model"
)

// EffectiveStaffHours resolves the working-hours schedule that applies
// to a staff member for a booking on a given facility and date.
// Candidates are filtered by their effective-date window first, then
// picked with the priority order:
//
//  1. a facility-specific schedule for the requested facility
//  2. the staff member's facility-independent default schedule
//  3. unrestricted (nil WeekSchedule) when neither exists
//
// Within each tier, a higher Priority value wins. The facilityID may
// be nil (single-service mode), in which case only default schedules
// are considered.
func EffectiveStaffHours(schedules []model.StaffSchedule, facilityID *uint64, date time.Time) WeekSchedule {
    var facilityBest, defaultBest *model.StaffSchedule
    for i := range schedules {
        s := &schedules[i]
        if !effectiveOn(s, date) {
            continue
        }
        if s.FacilityID != nil {
            if facilityID == nil || *s.FacilityID != *facilityID {
                continue
            }
            if facilityBest == nil || s.Priority > facilityBest.Priority {
                facilityBest = s
            }
            continue
        }
        if defaultBest == nil || s.Priority > defaultBest.Priority {
            defaultBest = s
        }
    }
    switch {
    case facilityBest != nil:
        return ParseWeekSchedule(facilityBest.HoursJSON)
    case defaultBest != nil:
        return ParseWeekSchedule(defaultBest.HoursJSON)
    }
    return nil
}

// effectiveOn reports whether the schedule's effective window covers
// the given date. The bounds are civil dates (stored as DATE columns,
// midnight timestamps), so the booking instant is truncated to its
// civil date before comparing: a booking at 10:00 on the last
// effective day is still inside the window. Open-ended bounds are
// treated as unbounded.
func effectiveOn(s *model.StaffSchedule, date time.Time) bool {
    day := civilDate(date)
    if s.EffectiveFrom != nil && day.Before(civilDate(*s.EffectiveFrom)) {
        return false
    }
    if s.EffectiveTo != nil && day.After(civilDate(*s.EffectiveTo)) {
        return false
    }
    return true
}

// civilDate strips the clock, keeping the calendar date as seen in the
// instant's own location.
func civilDate(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
