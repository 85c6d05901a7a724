package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/okabe/storefront-booking/internal/repository"
	"github.com/okabe/storefront-booking/internal/reservation"
)

// StaffHandler serves the store operator endpoints. Every route is
// behind RequireRole("STAFF") and scoped to the store in the token.
type StaffHandler struct {
	Service      *reservation.Service
	Reservations *repository.ReservationRepo
}

func NewStaffHandler(svc *reservation.Service, reservations *repository.ReservationRepo) *StaffHandler {
	return &StaffHandler{Service: svc, Reservations: reservations}
}

func staffStore(c echo.Context) (uint64, error) {
	sid, ok := currentStoreID(c)
	if !ok || sid == 0 {
		return 0, echo.NewHTTPError(http.StatusForbidden, "no store in token")
	}
	return sid, nil
}

type staffCreateReq struct {
	CustomerID  *uint64 `json:"customer_id"`
	FacilityID  *uint64 `json:"facility_id"`
	StaffID     *uint64 `json:"staff_id"`
	Adults      int     `json:"adults"`
	Children    int     `json:"children"`
	RsvpTimeMs  int64   `json:"rsvp_time_ms"`
	DurationMin int     `json:"duration_min"`
	Message     string  `json:"message"`
	Status      string  `json:"status"` // optional initial status
}

// Create books on behalf of the store, optionally starting the
// reservation further along than PENDING (walk-ins arrive READY).
func (h *StaffHandler) Create(c echo.Context) error {
	storeID, err := staffStore(c)
	if err != nil {
		return err
	}
	var req staffCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	res, err := h.Service.Create(ctx, reservation.CreateParams{
		StoreID:       storeID,
		CustomerID:    req.CustomerID,
		FacilityID:    req.FacilityID,
		StaffID:       req.StaffID,
		Adults:        req.Adults,
		Children:      req.Children,
		RsvpTimeMs:    req.RsvpTimeMs,
		DurationMin:   req.DurationMin,
		Message:       req.Message,
		InitialStatus: req.Status,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, viewOf(res, false))
}

// List returns the store's reservations, newest first.
func (h *StaffHandler) List(c echo.Context) error {
	storeID, err := staffStore(c)
	if err != nil {
		return err
	}
	limit := 100
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	list, err := h.Reservations.ListByStore(ctx, storeID, limit)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": viewsOf(list)})
}

type checkInReq struct {
	ReservationID uint64 `json:"reservation_id"`
	Code          string `json:"code"`
}

// CheckIn marks arrival, keyed by reservation id or by the short
// check-in code the guest presents. Repeats succeed with
// already_checked_in set.
func (h *StaffHandler) CheckIn(c echo.Context) error {
	storeID, err := staffStore(c)
	if err != nil {
		return err
	}
	var req checkInReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	result, err := h.Service.CheckIn(ctx, storeID, req.ReservationID, req.Code)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation":        viewOf(result.Reservation, false),
		"already_checked_in": result.Already,
	})
}

// NoShow records that the guest never arrived. Unlike check-in this
// is not idempotent; a second call reports the state conflict.
func (h *StaffHandler) NoShow(c echo.Context) error {
	storeID, err := staffStore(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	res, err := h.Service.MarkNoShow(ctx, storeID, id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res, false))
}

// Cancel retires any non-terminal reservation of the store.
func (h *StaffHandler) Cancel(c echo.Context) error {
	storeID, err := staffStore(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	res, err := h.Service.Cancel(ctx, id, reservation.Actor{Role: "STAFF", StoreID: &storeID})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res, false))
}

// Complete closes out a checked-in reservation after service.
func (h *StaffHandler) Complete(c echo.Context) error {
	storeID, err := staffStore(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	res, err := h.Service.Complete(ctx, storeID, id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(res, false))
}
