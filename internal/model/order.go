package model

import "time"

// Order kinds. A reservation order pays for a booking; a recharge
// order tops up a customer's store-independent credit balance.
const (
    OrderKindReservation = "reservation"
    OrderKindRecharge    = "recharge"
)

// Order is a payment order settled by the external gateway. The
// engine never charges anything itself; it only reacts to the
// gateway's "order paid" confirmation by flipping IsPaid and posting
// the corresponding ledger entry exactly once.
//
// Fields:
//  ID              – primary key identifier.
//  StoreID         – store the payment belongs to.
//  CustomerID      – paying customer (nullable for guest checkouts).
//  ReservationID   – reservation the order pays for (nullable for recharges).
//  Kind            – OrderKindReservation or OrderKindRecharge.
//  AmountCents     – gross amount in minor units.
//  Currency        – ISO currency code.
//  PaymentMethodID – payment channel used, source of the fee parameters.
//  IsPaid          – set exactly once when the gateway confirms payment.
//  PaidAt          – when the confirmation arrived (nullable).
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Order struct {
    ID              uint64     // orders.id
    StoreID         uint64     // orders.store_id
    CustomerID      *uint64    // orders.customer_id (nullable)
    ReservationID   *uint64    // orders.reservation_id (nullable)
    Kind            string     // orders.kind
    AmountCents     int64      // orders.amount_cents
    Currency        string     // orders.currency
    PaymentMethodID uint64     // orders.payment_method_id
    IsPaid          bool       // orders.is_paid
    PaidAt          *time.Time // orders.paid_at (nullable)
    CreatedAt       time.Time  // orders.created_at
    UpdatedAt       time.Time  // orders.updated_at
}
