package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okabe/storefront-booking/internal/model"
	"github.com/okabe/storefront-booking/internal/repository"
)

// BonusResult is what a paid recharge grants: the paid amount, any
// promotional bonus, and their sum.
type BonusResult struct {
	AmountCents      int64
	BonusCents       int64
	TotalCreditCents int64
}

// BonusRule decides the bonus granted for a recharge amount.
type BonusRule interface {
	Evaluate(amountCents int64) BonusResult
}

// BonusTier grants Bonus for recharges of at least Threshold.
type BonusTier struct {
	ThresholdCents int64
	BonusCents     int64
}

// TierBonusRule picks the highest tier the amount reaches. Tiers must
// be sorted ascending by threshold.
type TierBonusRule struct {
	Tiers []BonusTier
}

// DefaultBonusRule mirrors the launch promotion: 5% bonus from 50.00,
// 10% equivalent from 100.00 up.
func DefaultBonusRule() *TierBonusRule {
	return &TierBonusRule{Tiers: []BonusTier{
		{ThresholdCents: 5_000, BonusCents: 250},
		{ThresholdCents: 10_000, BonusCents: 1_000},
	}}
}

func (r *TierBonusRule) Evaluate(amountCents int64) BonusResult {
	res := BonusResult{AmountCents: amountCents, TotalCreditCents: amountCents}
	for _, t := range r.Tiers {
		if amountCents >= t.ThresholdCents {
			res.BonusCents = t.BonusCents
		}
	}
	res.TotalCreditCents = amountCents + res.BonusCents
	return res
}

// TopUpResult reports a processed recharge. Already is true when the
// order had been processed before; the credit figures then describe
// the original grant, re-derived from the rule.
type TopUpResult struct {
	BonusResult
	Already bool
}

// creditStore is the customer-credit persistence surface.
// *repository.CreditRepo is the production implementation.
type creditStore interface {
	HasEntryTx(ctx context.Context, tx *sql.Tx, referenceID uint64, entryType string) (bool, error)
	InsertTx(ctx context.Context, tx *sql.Tx, e *model.CreditEntry) error
}

// TopUpProcessor turns a paid recharge order into customer credit and
// a store ledger entry, exactly once per order.
type TopUpProcessor struct {
	credits creditStore
	orders  orderStore
	chain   *Chain
	bonus   BonusRule
}

// NewTopUpProcessor wires the processor. bonus may be nil, meaning no
// promotion runs and recharges grant their face value only.
func NewTopUpProcessor(credits creditStore, orders orderStore, chain *Chain, bonus BonusRule) *TopUpProcessor {
	if credits == nil || orders == nil || chain == nil {
		panic("nil dependency passed to ledger.NewTopUpProcessor")
	}
	return &TopUpProcessor{credits: credits, orders: orders, chain: chain, bonus: bonus}
}

// evaluate applies the bonus rule, or the identity grant without one.
func (p *TopUpProcessor) evaluate(amountCents int64) BonusResult {
	if p.bonus == nil {
		return BonusResult{AmountCents: amountCents, TotalCreditCents: amountCents}
	}
	return p.bonus.Evaluate(amountCents)
}

// ProcessTx settles a paid recharge inside the caller's transaction:
// mark the order paid, grant TOPUP (and BONUS) credit, and post the
// gross amount to the store chain as unearned revenue. A prior TOPUP
// for the same order makes the call a no-op beyond the order flag;
// the unique key on (reference_id, entry_type) backstops the check
// against concurrent confirmations.
func (p *TopUpProcessor) ProcessTx(ctx context.Context, tx *sql.Tx, order *model.Order, paidAt time.Time) (*TopUpResult, error) {
	if order.Kind != model.OrderKindRecharge {
		return nil, fmt.Errorf("order %d is not a recharge order", order.ID)
	}
	if order.CustomerID == nil {
		return nil, fmt.Errorf("recharge order %d has no customer", order.ID)
	}
	grant := p.evaluate(order.AmountCents)

	done, err := p.credits.HasEntryTx(ctx, tx, order.ID, model.CreditTypeTopup)
	if err != nil {
		return nil, err
	}
	if done {
		if err := p.orders.MarkPaidTx(ctx, tx, order.ID); err != nil {
			return nil, err
		}
		return &TopUpResult{BonusResult: grant, Already: true}, nil
	}

	if err := p.orders.MarkPaidTx(ctx, tx, order.ID); err != nil {
		return nil, err
	}
	orderID := order.ID
	err = p.credits.InsertTx(ctx, tx, &model.CreditEntry{
		CustomerID:  *order.CustomerID,
		EntryType:   model.CreditTypeTopup,
		AmountCents: grant.AmountCents,
		ReferenceID: &orderID,
	})
	if err == repository.ErrConflict {
		// Lost the race to another confirmation of the same order.
		return &TopUpResult{BonusResult: grant, Already: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if grant.BonusCents > 0 {
		err = p.credits.InsertTx(ctx, tx, &model.CreditEntry{
			CustomerID:  *order.CustomerID,
			EntryType:   model.CreditTypeBonus,
			AmountCents: grant.BonusCents,
			ReferenceID: &orderID,
		})
		if err != nil {
			return nil, err
		}
	}

	// The store receives the paid amount gross; bonus credit is a
	// platform promotion and never touches the store chain.
	_, err = p.chain.AppendTx(ctx, tx, &model.LedgerEntry{
		StoreID:     order.StoreID,
		OrderID:     &orderID,
		AmountCents: order.AmountCents,
		Currency:    order.Currency,
		EntryType:   model.LedgerTypeCreditRecharge,
		Description: fmt.Sprintf("credit recharge, order #%d", order.ID),
		AvailableAt: paidAt,
	})
	if err != nil {
		return nil, err
	}
	return &TopUpResult{BonusResult: grant}, nil
}
