package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/okabe/storefront-booking/internal/model"
	"github.com/okabe/storefront-booking/internal/repository"
)

// LedgerHandler serves the store balance chain to staff and the
// credit balance to customers.
type LedgerHandler struct {
	Ledger  *repository.LedgerRepo
	Credits *repository.CreditRepo
	Stores  *repository.StoreRepo
}

func NewLedgerHandler(ledger *repository.LedgerRepo, credits *repository.CreditRepo, stores *repository.StoreRepo) *LedgerHandler {
	return &LedgerHandler{Ledger: ledger, Credits: credits, Stores: stores}
}

type ledgerEntryView struct {
	ID               uint64  `json:"id"`
	OrderID          *uint64 `json:"order_id,omitempty"`
	AmountCents      int64   `json:"amount_cents"`
	FeeCents         int64   `json:"fee_cents"`
	PlatformFeeCents int64   `json:"platform_fee_cents"`
	Currency         string  `json:"currency"`
	EntryType        int     `json:"entry_type"`
	BalanceCents     int64   `json:"balance_cents"`
	Description      string  `json:"description"`
	Note             *string `json:"note,omitempty"`
	AvailableAt      string  `json:"available_at"`
	CreatedAt        string  `json:"created_at"`
}

func ledgerView(e *model.LedgerEntry) ledgerEntryView {
	return ledgerEntryView{
		ID:               e.ID,
		OrderID:          e.OrderID,
		AmountCents:      e.AmountCents,
		FeeCents:         e.FeeCents,
		PlatformFeeCents: e.PlatformFeeCents,
		Currency:         e.Currency,
		EntryType:        e.EntryType,
		BalanceCents:     e.BalanceCents,
		Description:      e.Description,
		Note:             e.Note,
		AvailableAt:      e.AvailableAt.UTC().Format(time.RFC3339),
		CreatedAt:        e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Entries lists the store's chain, newest first.
func (h *LedgerHandler) Entries(c echo.Context) error {
	storeID, err := staffStore(c)
	if err != nil {
		return err
	}
	limit := 50
	if q := c.QueryParam("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	entries, err := h.Ledger.ListByStore(ctx, storeID, limit)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]ledgerEntryView, 0, len(entries))
	for i := range entries {
		out = append(out, ledgerView(&entries[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": out})
}

// Balance returns the store's current running balance: the tail
// entry's balance, zero for an empty chain.
func (h *LedgerHandler) Balance(c echo.Context) error {
	storeID, err := staffStore(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	balance, err := h.Ledger.Balance(ctx, storeID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"store_id": storeID, "balance_cents": balance})
}

// CreditBalance returns the authenticated customer's credit balance
// and recent movements.
func (h *LedgerHandler) CreditBalance(c echo.Context) error {
	uid, ok := claimsUint(c, "user_id")
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cust, err := h.Stores.CustomerByUser(ctx, uid)
	if err != nil {
		return writeErr(c, err)
	}
	balance, err := h.Credits.BalanceForCustomer(ctx, cust.ID)
	if err != nil {
		return writeErr(c, err)
	}
	entries, err := h.Credits.ListByCustomer(ctx, cust.ID, 50)
	if err != nil {
		return writeErr(c, err)
	}
	type creditView struct {
		ID          uint64  `json:"id"`
		EntryType   string  `json:"entry_type"`
		AmountCents int64   `json:"amount_cents"`
		ReferenceID *uint64 `json:"reference_id,omitempty"`
		CreatedAt   string  `json:"created_at"`
	}
	out := make([]creditView, 0, len(entries))
	for _, e := range entries {
		out = append(out, creditView{
			ID:          e.ID,
			EntryType:   e.EntryType,
			AmountCents: e.AmountCents,
			ReferenceID: e.ReferenceID,
			CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"balance_cents": balance, "entries": out})
}
