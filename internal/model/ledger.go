package model

import "time"

// Ledger entry types. The integer tag distinguishes how the money
// moved rather than what it paid for; the linked order carries that.
const (
    LedgerTypePlatformHeld   = 1 // funds held by the platform until payout
    LedgerTypeStoreProvider  = 2 // settled through the store's own provider
    LedgerTypeCreditRecharge = 3 // unearned revenue from a credit top-up
    LedgerTypePayout         = 4 // outflow to the store's bank account
    LedgerTypeAdjustment     = 5 // manual correction by platform staff
)

// LedgerEntry is one immutable financial movement for a store. Entries
// for a store, ordered by creation, form an append-only chain where
// each balance equals the previous balance plus this entry's amount,
// fee and platform fee (fees carry negative sign). No entry is ever
// mutated or deleted.
//
// Fields:
//  ID               – primary key identifier.
//  StoreID          – store whose chain the entry belongs to.
//  OrderID          – triggering order (nullable for payouts/adjustments).
//  AmountCents      – signed movement; positive for inflows.
//  FeeCents         – payment-method fee, stored negative.
//  PlatformFeeCents – platform commission, stored negative (0 for pro stores).
//  Currency         – ISO currency code.
//  EntryType        – one of the LedgerType* constants.
//  BalanceCents     – running balance after applying this entry.
//  Description      – human-readable summary.
//  Note             – free-text annotation (nullable).
//  AvailableAt      – when the funds become payable out.
//  CreatedAt        – creation timestamp; orders the chain.
type LedgerEntry struct {
    ID               uint64    // store_ledger.id
    StoreID          uint64    // store_ledger.store_id
    OrderID          *uint64   // store_ledger.order_id (nullable)
    AmountCents      int64     // store_ledger.amount_cents
    FeeCents         int64     // store_ledger.fee_cents
    PlatformFeeCents int64     // store_ledger.platform_fee_cents
    Currency         string    // store_ledger.currency
    EntryType        int       // store_ledger.entry_type
    BalanceCents     int64     // store_ledger.balance_cents
    Description      string    // store_ledger.description
    Note             *string   // store_ledger.note (nullable)
    AvailableAt      time.Time // store_ledger.available_at
    CreatedAt        time.Time // store_ledger.created_at
}
