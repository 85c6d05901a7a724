package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/okabe/storefront-booking/internal/availability"
	"github.com/okabe/storefront-booking/internal/ledger"
	"github.com/okabe/storefront-booking/internal/model"
	"github.com/okabe/storefront-booking/internal/repository"
	"github.com/okabe/storefront-booking/internal/reservation"
)

const dbTimeout = 5 * time.Second

// claimsUint reads a numeric JWT claim stashed in the context by
// JWTAuth. MapClaims decode numbers as float64.
func claimsUint(c echo.Context, key string) (uint64, bool) {
	switch v := c.Get(key).(type) {
	case float64:
		return uint64(v), true
	case uint64:
		return v, true
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// currentStoreID returns the staff actor's store from the token.
func currentStoreID(c echo.Context) (uint64, bool) {
	return claimsUint(c, "store_id")
}

// paramID parses a numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// writeErr maps domain errors onto the HTTP taxonomy: validation 400,
// forbidden 403, not found 404, conflicts and bad state 409, chain
// corruption and everything unexpected 500.
func writeErr(c echo.Context, err error) error {
	var ve *reservation.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error()})
	}
	var ce *availability.ConflictError
	if errors.As(err, &ce) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":                   "time slot not available",
			"rule":                    ce.Rule,
			"conflicting_reservation": ce.ReservationID,
		})
	}
	var se *reservation.StateError
	if errors.As(err, &se) {
		return c.JSON(http.StatusConflict, echo.Map{"error": se.Error()})
	}
	switch {
	case errors.Is(err, ledger.ErrAmountNotPositive):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, repository.ErrChainCorrupted):
		c.Logger().Errorf("ledger chain corrupted: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	default:
		c.Logger().Errorf("request failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// reservationView is the wire shape of a reservation.
type reservationView struct {
	ID          uint64  `json:"id"`
	StoreID     uint64  `json:"store_id"`
	CustomerID  *uint64 `json:"customer_id,omitempty"`
	FacilityID  *uint64 `json:"facility_id,omitempty"`
	StaffID     *uint64 `json:"staff_id,omitempty"`
	Adults      int     `json:"adults"`
	Children    int     `json:"children"`
	RsvpTime    string  `json:"rsvp_time"`
	RsvpTimeMs  int64   `json:"rsvp_time_ms"`
	Message     string  `json:"message,omitempty"`
	Status      string  `json:"status"`
	AlreadyPaid bool    `json:"already_paid"`
	CheckinCode *string `json:"checkin_code,omitempty"`
	CheckedInAt *string `json:"checked_in_at,omitempty"`
	ClaimToken  *string `json:"claim_token,omitempty"`
}

func viewOf(r *model.Reservation, includeClaim bool) reservationView {
	v := reservationView{
		ID:          r.ID,
		StoreID:     r.StoreID,
		CustomerID:  r.CustomerID,
		FacilityID:  r.FacilityID,
		StaffID:     r.StaffID,
		Adults:      r.Adults,
		Children:    r.Children,
		RsvpTime:    r.RsvpTime().Format(time.RFC3339),
		RsvpTimeMs:  r.RsvpTimeMs,
		Message:     r.Message,
		Status:      r.Status,
		AlreadyPaid: r.AlreadyPaid,
		CheckinCode: r.CheckinCode,
	}
	if r.CheckedInAt != nil {
		s := r.CheckedInAt.UTC().Format(time.RFC3339)
		v.CheckedInAt = &s
	}
	if includeClaim {
		v.ClaimToken = r.ClaimToken
	}
	return v
}

func viewsOf(rs []model.Reservation) []reservationView {
	out := make([]reservationView, 0, len(rs))
	for i := range rs {
		out = append(out, viewOf(&rs[i], false))
	}
	return out
}
