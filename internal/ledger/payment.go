package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/okabe/storefront-booking/internal/model"
	"github.com/okabe/storefront-booking/internal/queue"
	"github.com/okabe/storefront-booking/internal/repository"
)

// ErrAmountNotPositive rejects opening an order whose resolved amount
// is zero or negative.
var ErrAmountNotPositive = errors.New("order amount must be positive")

// EventPublisher mirrors the notification boundary of the lifecycle
// service; payment confirmation emits the PENDING to READY change.
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, ev queue.ReservationEvent) error
}

// orderStore, reservationStore and refDataStore are the persistence
// surfaces the payment processors run on. The repository types are the
// production implementations; tests plug in in-memory fakes.
type orderStore interface {
	DB() *sql.DB
	CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Order, error)
	GetByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.Order, error)
	MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64) error
}

type reservationStore interface {
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error)
	MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64) error
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, checkedInAt *time.Time) error
	LinkOrderTx(ctx context.Context, tx *sql.Tx, id, orderID uint64) error
}

type refDataStore interface {
	GetStore(ctx context.Context, id uint64) (*model.Store, error)
	GetPaymentMethod(ctx context.Context, storeID, methodID uint64) (*model.PaymentMethod, error)
}

// ConfirmResult reports a processed payment confirmation. Already is
// true when the order had been settled by an earlier delivery of the
// same confirmation; nothing was posted again.
type ConfirmResult struct {
	Order   *model.Order
	Already bool
	TopUp   *TopUpResult // recharge orders only
}

// Processor reacts to gateway "order paid" confirmations. Each order
// settles exactly once no matter how often the gateway retries;
// repeats succeed without posting anything.
type Processor struct {
	orders       orderStore
	reservations reservationStore
	stores       refDataStore
	chain        *Chain
	topups       *TopUpProcessor
	events       EventPublisher
	now          func() time.Time
}

// NewProcessor wires the payment confirmation processor. events may
// be nil; confirmations then emit nothing.
func NewProcessor(orders orderStore, reservations reservationStore, stores refDataStore, chain *Chain, topups *TopUpProcessor, events EventPublisher) *Processor {
	if orders == nil || reservations == nil || stores == nil || chain == nil || topups == nil {
		panic("nil dependency passed to ledger.NewProcessor")
	}
	return &Processor{
		orders:       orders,
		reservations: reservations,
		stores:       stores,
		chain:        chain,
		topups:       topups,
		events:       events,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// OpenOrderParams describes a payment order to open for a
// reservation. A zero AmountCents prices the order from the
// reservation's cost fields.
type OpenOrderParams struct {
	ReservationID   uint64
	AmountCents     int64
	PaymentMethodID uint64
}

// OpenReservationOrder creates the unpaid payment order for a
// reservation and links it back. A reservation carries at most one
// order: the reservation row is locked first, and both an already
// linked order and an unlinked order row referencing the reservation
// make the call fail with ErrConflict.
func (p *Processor) OpenReservationOrder(ctx context.Context, prm OpenOrderParams) (*model.Order, error) {
	tx, err := p.orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := p.reservations.GetForUpdateTx(ctx, tx, prm.ReservationID)
	if err != nil {
		return nil, err
	}
	if res.OrderID != nil {
		return nil, fmt.Errorf("%w: reservation %d already has order %d",
			repository.ErrConflict, res.ID, *res.OrderID)
	}
	if _, err := p.orders.GetByReservationTx(ctx, tx, res.ID); err == nil {
		return nil, fmt.Errorf("%w: reservation %d already has a payment order",
			repository.ErrConflict, res.ID)
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	amount := prm.AmountCents
	if amount == 0 {
		if res.FacilityCostCents != nil {
			amount += *res.FacilityCostCents
		}
		if res.StaffCostCents != nil {
			amount += *res.StaffCostCents
		}
	}
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}
	store, err := p.stores.GetStore(ctx, res.StoreID)
	if err != nil {
		return nil, err
	}
	method, err := p.stores.GetPaymentMethod(ctx, res.StoreID, prm.PaymentMethodID)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		StoreID:         res.StoreID,
		CustomerID:      res.CustomerID,
		ReservationID:   &res.ID,
		Kind:            model.OrderKindReservation,
		AmountCents:     amount,
		Currency:        store.Currency,
		PaymentMethodID: method.ID,
	}
	if err := p.orders.CreateTx(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := p.reservations.LinkOrderTx(ctx, tx, res.ID, order.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return order, nil
}

// ConfirmOrderPaid settles an order the gateway reports as paid. The
// whole settlement is one transaction: the order row is locked FOR
// UPDATE first, so concurrent deliveries of the same confirmation
// serialize on it and the second one sees the settled state.
func (p *Processor) ConfirmOrderPaid(ctx context.Context, orderID uint64) (*ConfirmResult, error) {
	tx, err := p.orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	order, err := p.orders.GetForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	paidAt := p.now()
	if order.PaidAt != nil {
		paidAt = *order.PaidAt
	}

	res := &ConfirmResult{Order: order}
	var changed *model.Reservation // reservation whose status moved, for the event

	switch order.Kind {
	case model.OrderKindRecharge:
		topup, err := p.topups.ProcessTx(ctx, tx, order, paidAt)
		if err != nil {
			return nil, err
		}
		res.TopUp = topup
		res.Already = topup.Already

	case model.OrderKindReservation:
		if order.ReservationID == nil {
			return nil, fmt.Errorf("reservation order %d has no reservation", order.ID)
		}
		exists, err := p.chain.entries.ExistsForOrderTx(ctx, tx, order.ID, model.LedgerTypePlatformHeld)
		if err != nil {
			return nil, err
		}
		if exists {
			res.Already = true
			break
		}
		store, err := p.stores.GetStore(ctx, order.StoreID)
		if err != nil {
			return nil, err
		}
		method, err := p.stores.GetPaymentMethod(ctx, order.StoreID, order.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		fees := OrderFees(order.AmountCents, method, store.IsPro)

		if err := p.orders.MarkPaidTx(ctx, tx, order.ID); err != nil {
			return nil, err
		}
		reservation, err := p.reservations.GetForUpdateTx(ctx, tx, *order.ReservationID)
		if err != nil {
			return nil, err
		}
		if err := p.reservations.MarkPaidTx(ctx, tx, reservation.ID); err != nil {
			return nil, err
		}
		if reservation.Status == model.StatusPending {
			if err := p.reservations.UpdateStatusTx(ctx, tx, reservation.ID, model.StatusReady, nil); err != nil {
				return nil, err
			}
			changed = reservation
		}

		note := fmt.Sprintf("fee tax %d", fees.FeeTaxCents)
		_, err = p.chain.AppendTx(ctx, tx, &model.LedgerEntry{
			StoreID:          order.StoreID,
			OrderID:          &order.ID,
			AmountCents:      order.AmountCents,
			FeeCents:         fees.FeeCents,
			PlatformFeeCents: fees.PlatformFeeCents,
			Currency:         order.Currency,
			EntryType:        model.LedgerTypePlatformHeld,
			Description:      fmt.Sprintf("reservation payment, order #%d", order.ID),
			Note:             &note,
			AvailableAt:      AvailableAt(paidAt, method),
		})
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("order %d has unknown kind %q", order.ID, order.Kind)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	if changed != nil && p.events != nil {
		ev := queue.ReservationEvent{
			EventType:     queue.EventStatusChanged,
			ReservationID: changed.ID,
			StoreID:       changed.StoreID,
			BeforeStatus:  model.StatusPending,
			AfterStatus:   model.StatusReady,
			RsvpTime:      changed.RsvpTime().Format(time.RFC3339),
			OccurredAt:    p.now().Format(time.RFC3339),
		}
		if err := p.events.PublishReservationEvent(ctx, ev); err != nil {
			log.Printf("ledger: event publish failed (ignored): %v", err)
		}
	}
	return res, nil
}
