// Package queue defines message payloads exchanged over the message
// broker and the background consumer that drains them.
package queue

// Reservation event types understood by the notification dispatcher.
const (
    EventStatusChanged = "status_changed"
    EventDeleted       = "deleted"
    EventNoShow        = "no_show"
)

// ReservationEvent is published after every status-changing lifecycle
// transition. It carries denormalized display fields so downstream
// consumers can notify, log or feed analytics without querying the
// primary database. Publication is fire-and-forget: the transition's
// success never depends on this message being delivered.
type ReservationEvent struct {
    EventType     string `json:"event_type"` // status_changed | deleted | no_show
    ReservationID uint64 `json:"reservation_id"`
    StoreID       uint64 `json:"store_id"`
    BeforeStatus  string `json:"before_status"` // empty on creation
    AfterStatus   string `json:"after_status"`  // empty on deletion
    StoreName     string `json:"store_name"`
    FacilityName  string `json:"facility_name,omitempty"`
    CustomerName  string `json:"customer_name,omitempty"`
    RsvpTime      string `json:"rsvp_time"` // RFC3339, UTC
    OccurredAt    string `json:"occurred_at"`
}
