package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/okabe/storefront-booking/internal/model"
	"github.com/okabe/storefront-booking/internal/repository"
)

func TestTierBonusRule(t *testing.T) {
	rule := &TierBonusRule{Tiers: []BonusTier{
		{ThresholdCents: 5_000, BonusCents: 250},
		{ThresholdCents: 10_000, BonusCents: 1_000},
	}}

	tests := []struct {
		amount int64
		bonus  int64
	}{
		{1_000, 0},
		{4_999, 0},
		{5_000, 250},
		{9_999, 250},
		{10_000, 1_000},
		{50_000, 1_000},
	}
	for _, tc := range tests {
		got := rule.Evaluate(tc.amount)
		if got.BonusCents != tc.bonus {
			t.Errorf("Evaluate(%d).Bonus = %d, want %d", tc.amount, got.BonusCents, tc.bonus)
		}
		if got.TotalCreditCents != tc.amount+tc.bonus {
			t.Errorf("Evaluate(%d).Total = %d, want %d", tc.amount, got.TotalCreditCents, tc.amount+tc.bonus)
		}
		if got.AmountCents != tc.amount {
			t.Errorf("Evaluate(%d).Amount = %d", tc.amount, got.AmountCents)
		}
	}
}

func TestTopUpProcessorWithoutBonusRule(t *testing.T) {
	p := &TopUpProcessor{}
	got := p.evaluate(7_500)
	if got.BonusCents != 0 || got.TotalCreditCents != 7_500 {
		t.Errorf("no rule must grant face value only, got %+v", got)
	}
}

func rechargeOrder(id, customerID uint64, amount int64) *model.Order {
	cid := customerID
	return &model.Order{
		ID: id, StoreID: 1, CustomerID: &cid, Kind: model.OrderKindRecharge,
		AmountCents: amount, Currency: "USD", PaymentMethodID: 1,
	}
}

func TestProcessTxSettlesOnce(t *testing.T) {
	credits := &fakeCreditStore{}
	orders := &fakeOrderStore{orders: map[uint64]*model.Order{}}
	entries := &fakeLedgerStore{}
	p := NewTopUpProcessor(credits, orders, NewChain(entries), DefaultBonusRule())

	order := rechargeOrder(7, 3, 10_000)
	orders.orders[order.ID] = order
	ctx := context.Background()
	paidAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := p.ProcessTx(ctx, nil, order, paidAt)
	if err != nil {
		t.Fatalf("ProcessTx: %v", err)
	}
	if first.Already {
		t.Error("first settlement reported Already")
	}
	if first.TotalCreditCents != 11_000 {
		t.Errorf("total credit = %d, want 11000 (10000 + tier bonus)", first.TotalCreditCents)
	}

	second, err := p.ProcessTx(ctx, nil, order, paidAt)
	if err != nil {
		t.Fatalf("repeat ProcessTx: %v", err)
	}
	if !second.Already {
		t.Error("repeat settlement not reported as Already")
	}
	if second.TotalCreditCents != first.TotalCreditCents {
		t.Errorf("repeat re-derived grant %d, want %d", second.TotalCreditCents, first.TotalCreditCents)
	}

	var topups, bonuses int
	for _, e := range credits.entries {
		switch e.EntryType {
		case model.CreditTypeTopup:
			topups++
		case model.CreditTypeBonus:
			bonuses++
		}
	}
	if topups != 1 || bonuses != 1 {
		t.Errorf("credit ledger has %d TOPUP and %d BONUS entries, want 1 and 1", topups, bonuses)
	}
	if n := len(entries.byStore(1)); n != 1 {
		t.Errorf("store chain has %d entries, want exactly 1", n)
	}
	if !orders.orders[order.ID].IsPaid {
		t.Error("order not marked paid")
	}
}

func TestProcessTxLostInsertRaceIsSettled(t *testing.T) {
	// A concurrent confirmation slipped between the read check and the
	// insert; the unique-key conflict must surface as Already, not as
	// an error, and the chain must stay untouched.
	credits := &fakeCreditStore{insertErrs: []error{repository.ErrConflict}}
	orders := &fakeOrderStore{orders: map[uint64]*model.Order{}}
	entries := &fakeLedgerStore{}
	p := NewTopUpProcessor(credits, orders, NewChain(entries), nil)

	order := rechargeOrder(9, 4, 2_500)
	orders.orders[order.ID] = order

	res, err := p.ProcessTx(context.Background(), nil, order, time.Now().UTC())
	if err != nil {
		t.Fatalf("ProcessTx: %v", err)
	}
	if !res.Already {
		t.Error("insert conflict not reported as Already")
	}
	if len(entries.byStore(1)) != 0 {
		t.Error("store chain received an entry despite the lost race")
	}
}

func TestProcessTxRejectsBadOrders(t *testing.T) {
	p := NewTopUpProcessor(&fakeCreditStore{}, &fakeOrderStore{}, NewChain(&fakeLedgerStore{}), nil)
	ctx := context.Background()
	now := time.Now().UTC()

	cid := uint64(1)
	wrongKind := &model.Order{ID: 1, Kind: model.OrderKindReservation, CustomerID: &cid}
	if _, err := p.ProcessTx(ctx, nil, wrongKind, now); err == nil {
		t.Error("reservation order accepted by the recharge processor")
	}
	noCustomer := &model.Order{ID: 2, Kind: model.OrderKindRecharge}
	if _, err := p.ProcessTx(ctx, nil, noCustomer, now); err == nil {
		t.Error("customerless recharge order accepted")
	}
}
