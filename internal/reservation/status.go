// Package reservation implements the booking lifecycle: the status
// state machine, its guarded transitions and the service that executes
// them transactionally. Statuses only ever advance through the table
// in this file; there is no generic "set status" operation anywhere.
package reservation

import (
    "fmt"

    "github.com/okabe/storefront-booking/internal/model"
)

// StateError reports an attempted transition that is not permitted
// from the reservation's current status, such as editing a confirmed
// booking or deleting a paid one.
type StateError struct {
    Op   string // operation attempted (edit, delete, check-in, no-show, cancel, complete)
    From string // status the reservation was in
}

func (e *StateError) Error() string {
    return fmt.Sprintf("cannot %s reservation in status %s", e.Op, e.From)
}

// transitions is the full set of permitted status moves. Anything not
// listed here is invalid and fails with a StateError.
var transitions = map[string]map[string]bool{
    model.StatusPending: {
        model.StatusReadyToConfirm: true,
        model.StatusReady:          true,
        model.StatusCancelled:      true,
    },
    model.StatusReadyToConfirm: {
        model.StatusReady:     true,
        model.StatusCheckedIn: true,
        model.StatusCancelled: true,
    },
    model.StatusReady: {
        model.StatusCheckedIn: true,
        model.StatusNoShow:    true,
        model.StatusCancelled: true,
    },
    model.StatusCheckedIn: {
        model.StatusCompleted: true,
        model.StatusCancelled: true,
    },
    // COMPLETED, CANCELLED and NO_SHOW are terminal.
}

// CanTransition reports whether moving from one status to another is
// permitted by the lifecycle table.
func CanTransition(from, to string) bool {
    return transitions[from][to]
}

// CanEdit reports whether a reservation's booking fields (time, party,
// facility) may still be rewritten. Only PENDING reservations are
// editable.
func CanEdit(status string) bool {
    return status == model.StatusPending
}

// CheckInFrom classifies a check-in attempt. ok means the transition
// to CHECKED_IN may proceed; already means the reservation was
// checked in before (or has since completed) and the attempt is a
// client retry that should succeed without changing state. Both false
// means the status does not admit check-in at all.
func CheckInFrom(status string) (ok, already bool) {
    switch status {
    case model.StatusReady, model.StatusReadyToConfirm:
        return true, false
    case model.StatusCheckedIn, model.StatusCompleted:
        return false, true
    }
    return false, false
}

// CanNoShow reports whether a reservation may be marked NO_SHOW.
// Unlike check-in this is not idempotent: it records an operator
// decision, so repeating it on an already-NO_SHOW booking is an error.
func CanNoShow(status string) bool {
    return status == model.StatusReady
}

// CanCancel reports whether a reservation may be cancelled. Any
// non-terminal status qualifies; cancellation is the only way to
// retire a paid reservation.
func CanCancel(status string) bool {
    switch status {
    case model.StatusCompleted, model.StatusCancelled, model.StatusNoShow:
        return false
    }
    return true
}

// CanDelete reports whether a reservation may be physically deleted.
// Deletion is reserved for unpaid PENDING/READY_TO_CONFIRM bookings;
// everything else must be cancelled instead.
func CanDelete(status string, orderPaid bool) bool {
    if orderPaid {
        return false
    }
    return status == model.StatusPending || status == model.StatusReadyToConfirm
}

// CanComplete reports whether service can be marked finished.
func CanComplete(status string) bool {
    return status == model.StatusCheckedIn
}

// ValidInitialStatus restricts the staff creation flow to statuses
// that make sense as a starting point.
func ValidInitialStatus(status string) bool {
    switch status {
    case model.StatusPending, model.StatusReadyToConfirm, model.StatusReady:
        return true
    }
    return false
}
