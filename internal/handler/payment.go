package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/okabe/storefront-booking/internal/ledger"
	"github.com/okabe/storefront-booking/internal/model"
	"github.com/okabe/storefront-booking/internal/repository"
)

// PaymentHandler creates payment orders and receives the gateway's
// paid confirmations. The gateway itself is not modeled; only the
// callback is.
type PaymentHandler struct {
	Orders        *repository.OrderRepo
	Stores        *repository.StoreRepo
	Processor     *ledger.Processor
	WebhookSecret string
}

func NewPaymentHandler(orders *repository.OrderRepo, stores *repository.StoreRepo, processor *ledger.Processor, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{
		Orders:        orders,
		Stores:        stores,
		Processor:     processor,
		WebhookSecret: webhookSecret,
	}
}

type createOrderReq struct {
	ReservationID   *uint64 `json:"reservation_id"` // reservation orders
	StoreID         uint64  `json:"store_id"`       // recharge orders
	AmountCents     int64   `json:"amount_cents"`
	PaymentMethodID uint64  `json:"payment_method_id"`
}

// CreateOrder opens an unpaid order for a reservation, priced from
// the reservation's cost fields plus any explicit amount. A second
// order for the same reservation is refused with 409.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ReservationID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation_id required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	order, err := h.Processor.OpenReservationOrder(ctx, ledger.OpenOrderParams{
		ReservationID:   *req.ReservationID,
		AmountCents:     req.AmountCents,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"order_id":     order.ID,
		"amount_cents": order.AmountCents,
		"currency":     order.Currency,
	})
}

// CreateRecharge opens an unpaid credit top-up order for the
// authenticated customer.
func (h *PaymentHandler) CreateRecharge(c echo.Context) error {
	uid, ok := claimsUint(c, "user_id")
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.AmountCents <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents must be positive"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cust, err := h.Stores.CustomerByUser(ctx, uid)
	if err != nil {
		return writeErr(c, err)
	}
	store, err := h.Stores.GetStore(ctx, req.StoreID)
	if err != nil {
		return writeErr(c, err)
	}
	method, err := h.Stores.GetPaymentMethod(ctx, store.ID, req.PaymentMethodID)
	if err != nil {
		return writeErr(c, err)
	}

	order := &model.Order{
		StoreID:         store.ID,
		CustomerID:      &cust.ID,
		Kind:            model.OrderKindRecharge,
		AmountCents:     req.AmountCents,
		Currency:        store.Currency,
		PaymentMethodID: method.ID,
	}
	tx, err := h.Orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return writeErr(c, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Orders.CreateTx(ctx, tx, order); err != nil {
		return writeErr(c, err)
	}
	if err := tx.Commit(); err != nil {
		return writeErr(c, err)
	}
	committed = true

	return c.JSON(http.StatusCreated, echo.Map{
		"order_id":     order.ID,
		"amount_cents": order.AmountCents,
		"currency":     order.Currency,
	})
}

type confirmReq struct {
	OrderID   uint64 `json:"order_id"`
	Signature string `json:"signature"`
}

// Confirm is the gateway webhook. Deliveries are at-least-once; the
// processor makes repeats harmless. The HMAC signature over the
// order id keeps random callers from settling orders.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil || req.OrderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id required"})
	}
	if h.WebhookSecret != "" && !h.verifySignature(req.OrderID, req.Signature) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "bad signature"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	result, err := h.Processor.ConfirmOrderPaid(ctx, req.OrderID)
	if err != nil {
		return writeErr(c, err)
	}
	resp := echo.Map{
		"order_id":          result.Order.ID,
		"already_processed": result.Already,
	}
	if result.TopUp != nil {
		resp["credited_cents"] = result.TopUp.TotalCreditCents
		resp["bonus_cents"] = result.TopUp.BonusCents
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) verifySignature(orderID uint64, sig string) bool {
	mac := hmac.New(sha256.New, []byte(h.WebhookSecret))
	_, _ = mac.Write([]byte(strconv.FormatUint(orderID, 10)))
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(sig))
}
