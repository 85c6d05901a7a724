package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/okabe/storefront-booking/internal/repository"
	"github.com/okabe/storefront-booking/internal/reservation"
	"github.com/okabe/storefront-booking/internal/schedule"
)

// BookingHandler serves the customer-facing reservation endpoints and
// the public availability probe. Guests may book without an account;
// they get a claim token back and use it for later changes.
type BookingHandler struct {
	Service      *reservation.Service
	Reservations *repository.ReservationRepo
	Stores       *repository.StoreRepo
}

func NewBookingHandler(svc *reservation.Service, reservations *repository.ReservationRepo, stores *repository.StoreRepo) *BookingHandler {
	return &BookingHandler{Service: svc, Reservations: reservations, Stores: stores}
}

type createBookingReq struct {
	FacilityID  *uint64 `json:"facility_id"`
	StaffID     *uint64 `json:"staff_id"`
	Adults      int     `json:"adults"`
	Children    int     `json:"children"`
	RsvpTimeMs  int64   `json:"rsvp_time_ms"`
	DurationMin int     `json:"duration_min"`
	Message     string  `json:"message"`
}

type updateBookingReq struct {
	FacilityID  *uint64 `json:"facility_id"`
	Adults      int     `json:"adults"`
	Children    int     `json:"children"`
	RsvpTimeMs  int64   `json:"rsvp_time_ms"`
	DurationMin int     `json:"duration_min"`
	Message     string  `json:"message"`
	ClaimToken  string  `json:"claim_token"`
}

// actorFrom builds the acting identity: an authenticated customer's
// record when a token is present, otherwise a guest identified only
// by the claim token it supplies.
func (h *BookingHandler) actorFrom(ctx context.Context, c echo.Context, claimToken string) (reservation.Actor, error) {
	actor := reservation.Actor{ClaimToken: claimToken}
	if role, ok := c.Get("role").(string); ok {
		actor.Role = role
	}
	if sid, ok := currentStoreID(c); ok {
		actor.StoreID = &sid
	}
	if uid, ok := claimsUint(c, "user_id"); ok {
		if cust, err := h.Stores.CustomerByUser(ctx, uid); err == nil {
			actor.CustomerID = &cust.ID
		} else if err != repository.ErrNotFound {
			return actor, err
		}
	}
	return actor, nil
}

// Create books a reservation at a store. Authenticated customers are
// linked to their customer record; guests receive a claim token in
// the response, shown exactly once.
func (h *BookingHandler) Create(c echo.Context) error {
	storeID, err := paramID(c, "store_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	actor, err := h.actorFrom(ctx, c, "")
	if err != nil {
		return writeErr(c, err)
	}
	res, err := h.Service.Create(ctx, reservation.CreateParams{
		StoreID:     storeID,
		CustomerID:  actor.CustomerID,
		FacilityID:  req.FacilityID,
		StaffID:     req.StaffID,
		Adults:      req.Adults,
		Children:    req.Children,
		RsvpTimeMs:  req.RsvpTimeMs,
		DurationMin: req.DurationMin,
		Message:     req.Message,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, viewOf(res, actor.CustomerID == nil))
}

// Get returns one reservation the caller may see. Guests pass their
// claim token as the claim_token query parameter.
func (h *BookingHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	actor, err := h.actorFrom(ctx, c, c.QueryParam("claim_token"))
	if err != nil {
		return writeErr(c, err)
	}
	res, err := h.Service.Get(ctx, id, actor)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res, false))
}

// ListMine returns the authenticated customer's reservations.
func (h *BookingHandler) ListMine(c echo.Context) error {
	uid, ok := claimsUint(c, "user_id")
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cust, err := h.Stores.CustomerByUser(ctx, uid)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusOK, echo.Map{"reservations": []reservationView{}})
		}
		return writeErr(c, err)
	}
	list, err := h.Reservations.ListByCustomer(ctx, cust.ID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": viewsOf(list)})
}

// Update edits a pending reservation's booking fields.
func (h *BookingHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	actor, err := h.actorFrom(ctx, c, req.ClaimToken)
	if err != nil {
		return writeErr(c, err)
	}
	res, err := h.Service.Update(ctx, reservation.UpdateParams{
		ID:          id,
		Actor:       actor,
		RsvpTimeMs:  req.RsvpTimeMs,
		Adults:      req.Adults,
		Children:    req.Children,
		FacilityID:  req.FacilityID,
		DurationMin: req.DurationMin,
		Message:     req.Message,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res, false))
}

// Delete removes an unpaid reservation and its unpaid order.
func (h *BookingHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	actor, err := h.actorFrom(ctx, c, c.QueryParam("claim_token"))
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Service.Delete(ctx, id, actor); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Cancel retires a reservation; this is the customer path for paid
// bookings that can no longer be deleted.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateBookingReq
	_ = c.Bind(&req)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	actor, err := h.actorFrom(ctx, c, req.ClaimToken)
	if err != nil {
		return writeErr(c, err)
	}
	res, err := h.Service.Cancel(ctx, id, actor)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res, false))
}

// Availability is the public probe: is the store open at the given
// instant, and if not, when does it open next. Malformed or missing
// schedule configuration reads as always open.
func (h *BookingHandler) Availability(c echo.Context) error {
	storeID, err := paramID(c, "store_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	store, err := h.Stores.GetStore(ctx, storeID)
	if err != nil {
		return writeErr(c, err)
	}
	loc, err := time.LoadLocation(store.Timezone)
	if err != nil {
		loc = time.UTC
	}

	at := time.Now().UTC()
	if q := c.QueryParam("at_ms"); q != "" {
		var ms int64
		if ms, err = parseInt64(q); err != nil || ms <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid at_ms"})
		}
		at = time.UnixMilli(ms).UTC()
	}

	var ws schedule.WeekSchedule
	if store.HoursJSON != nil {
		ws = schedule.ParseWeekSchedule(*store.HoursJSON)
	}
	open := ws.IsOpenAt(at, loc)
	resp := echo.Map{
		"store_id": store.ID,
		"at":       at.Format(time.RFC3339),
		"open":     open,
	}
	if !open {
		if next, ok := ws.NextOpening(at, loc); ok {
			resp["next_opening"] = next.UTC().Format(time.RFC3339)
		}
	}
	return c.JSON(http.StatusOK, resp)
}
