package model

import "time"

// Credit ledger entry types. TOPUP rows double as the idempotency
// record for recharge processing: the unique key on
// (reference_id, entry_type) makes a second TOPUP for the same order
// impossible at the storage level.
const (
    CreditTypeTopup      = "TOPUP"
    CreditTypeBonus      = "BONUS"
    CreditTypeHold       = "HOLD"
    CreditTypeSpend      = "SPEND"
    CreditTypeRefund     = "REFUND"
    CreditTypeAdjustment = "ADJUSTMENT"
)

// CreditEntry is one movement of a customer's store-independent
// credit balance. ReferenceID ties the movement back to the order
// that triggered it.
//
// Fields:
//  ID          – primary key identifier.
//  CustomerID  – customer whose balance moved.
//  EntryType   – one of the CreditType* constants.
//  AmountCents – signed movement in minor units.
//  ReferenceID – triggering order id (nullable for adjustments).
//  CreatedAt   – creation timestamp.
type CreditEntry struct {
    ID          uint64    // credit_ledger.id
    CustomerID  uint64    // credit_ledger.customer_id
    EntryType   string    // credit_ledger.entry_type
    AmountCents int64     // credit_ledger.amount_cents
    ReferenceID *uint64   // credit_ledger.reference_id (nullable)
    CreatedAt   time.Time // credit_ledger.created_at
}
