package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okabe/storefront-booking/internal/model"
	"github.com/okabe/storefront-booking/internal/repository"
)

func TestAppendTxChainsBalances(t *testing.T) {
	store := &fakeLedgerStore{}
	chain := NewChain(store)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []*model.LedgerEntry{
		{StoreID: 1, AmountCents: 10_000, FeeCents: -300, PlatformFeeCents: -100, Currency: "USD", EntryType: model.LedgerTypePlatformHeld, AvailableAt: at},
		{StoreID: 1, AmountCents: 5_000, Currency: "USD", EntryType: model.LedgerTypeCreditRecharge, AvailableAt: at},
		{StoreID: 1, AmountCents: -14_600, Currency: "USD", EntryType: model.LedgerTypePayout, AvailableAt: at},
	}
	for _, e := range entries {
		appended, err := chain.AppendTx(ctx, nil, e)
		if err != nil {
			t.Fatalf("AppendTx: %v", err)
		}
		if !appended {
			t.Fatalf("AppendTx did not append %+v", e)
		}
	}

	got := store.byStore(1)
	wantBalances := []int64{9_600, 14_600, 0}
	if len(got) != len(wantBalances) {
		t.Fatalf("chain has %d entries, want %d", len(got), len(wantBalances))
	}
	for i, want := range wantBalances {
		if got[i].BalanceCents != want {
			t.Errorf("entry %d balance = %d, want %d", i, got[i].BalanceCents, want)
		}
	}
	if idx := Verify(got); idx != -1 {
		t.Errorf("Verify flagged entry %d of a freshly built chain", idx)
	}
}

func TestAppendTxSeparatesStoreChains(t *testing.T) {
	store := &fakeLedgerStore{}
	chain := NewChain(store)
	ctx := context.Background()

	if _, err := chain.AppendTx(ctx, nil, &model.LedgerEntry{StoreID: 1, AmountCents: 1_000, Currency: "USD"}); err != nil {
		t.Fatalf("AppendTx store 1: %v", err)
	}
	if _, err := chain.AppendTx(ctx, nil, &model.LedgerEntry{StoreID: 2, AmountCents: 500, Currency: "USD"}); err != nil {
		t.Fatalf("AppendTx store 2: %v", err)
	}
	if got := store.byStore(2)[0].BalanceCents; got != 500 {
		t.Errorf("store 2 balance = %d, want 500; chains must not share a tail", got)
	}
}

func TestAppendTxIdempotentPerOrder(t *testing.T) {
	store := &fakeLedgerStore{}
	chain := NewChain(store)
	ctx := context.Background()
	orderID := uint64(42)

	e := &model.LedgerEntry{
		StoreID: 1, OrderID: &orderID, AmountCents: 10_000,
		Currency: "USD", EntryType: model.LedgerTypePlatformHeld,
	}
	if appended, err := chain.AppendTx(ctx, nil, e); err != nil || !appended {
		t.Fatalf("first append = (%v, %v), want (true, nil)", appended, err)
	}
	repeat := &model.LedgerEntry{
		StoreID: 1, OrderID: &orderID, AmountCents: 10_000,
		Currency: "USD", EntryType: model.LedgerTypePlatformHeld,
	}
	appended, err := chain.AppendTx(ctx, nil, repeat)
	if err != nil {
		t.Fatalf("repeat append: %v", err)
	}
	if appended {
		t.Error("repeat append for the same (order, type) was applied")
	}
	if n := len(store.byStore(1)); n != 1 {
		t.Errorf("chain has %d entries after repeat, want 1", n)
	}

	// A different entry type for the same order is a distinct posting.
	other := &model.LedgerEntry{
		StoreID: 1, OrderID: &orderID, AmountCents: 2_000,
		Currency: "USD", EntryType: model.LedgerTypeAdjustment,
	}
	if appended, err := chain.AppendTx(ctx, nil, other); err != nil || !appended {
		t.Fatalf("other-type append = (%v, %v), want (true, nil)", appended, err)
	}
}

func TestAppendTxRejectsCurrencyMismatch(t *testing.T) {
	store := &fakeLedgerStore{}
	chain := NewChain(store)
	ctx := context.Background()

	if _, err := chain.AppendTx(ctx, nil, &model.LedgerEntry{StoreID: 1, AmountCents: 1_000, Currency: "USD"}); err != nil {
		t.Fatalf("AppendTx: %v", err)
	}
	_, err := chain.AppendTx(ctx, nil, &model.LedgerEntry{StoreID: 1, AmountCents: 1_000, Currency: "EUR"})
	if !errors.Is(err, repository.ErrChainCorrupted) {
		t.Fatalf("mixed-currency append err = %v, want ErrChainCorrupted", err)
	}
	if n := len(store.byStore(1)); n != 1 {
		t.Errorf("chain has %d entries after rejected append, want 1", n)
	}
}
