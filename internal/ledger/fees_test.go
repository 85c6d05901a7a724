package ledger

import (
	"testing"
	"time"

	"github.com/okabe/storefront-booking/internal/model"
)

func TestOrderFees(t *testing.T) {
	method := &model.PaymentMethod{FeeRate: 0.03, FeeAdditionalCents: 0, ClearDays: 3}

	// 100.00 paid through a 3% method by a regular store.
	f := OrderFees(10_000, method, false)
	if f.FeeCents != -300 {
		t.Errorf("fee = %d, want -300", f.FeeCents)
	}
	if f.FeeTaxCents != -15 {
		t.Errorf("fee tax = %d, want -15", f.FeeTaxCents)
	}
	if f.PlatformFeeCents != -100 {
		t.Errorf("platform fee = %d, want -100", f.PlatformFeeCents)
	}
	if net := f.Net(10_000); net != 9_600 {
		t.Errorf("net = %d, want 9600", net)
	}
}

func TestOrderFeesProStoreSkipsPlatformFee(t *testing.T) {
	method := &model.PaymentMethod{FeeRate: 0.03}
	f := OrderFees(10_000, method, true)
	if f.PlatformFeeCents != 0 {
		t.Errorf("pro store platform fee = %d, want 0", f.PlatformFeeCents)
	}
	if f.FeeCents != -300 {
		t.Errorf("fee = %d, want -300", f.FeeCents)
	}
}

func TestOrderFeesAdditionalAndRounding(t *testing.T) {
	method := &model.PaymentMethod{FeeRate: 0.029, FeeAdditionalCents: 30}
	// 9.99 * 0.029 = 28.971 cents, plus 30 → 58.971, rounds to 59.
	f := OrderFees(999, method, true)
	if f.FeeCents != -59 {
		t.Errorf("fee = %d, want -59", f.FeeCents)
	}
}

func TestAvailableAt(t *testing.T) {
	paid := time.Date(2026, 8, 24, 15, 30, 0, 0, time.UTC)
	method := &model.PaymentMethod{ClearDays: 3}
	want := time.Date(2026, 8, 27, 15, 30, 0, 0, time.UTC)
	if got := AvailableAt(paid, method); !got.Equal(want) {
		t.Errorf("AvailableAt = %v, want %v", got, want)
	}
	instant := &model.PaymentMethod{ClearDays: 0}
	if got := AvailableAt(paid, instant); !got.Equal(paid) {
		t.Errorf("zero clear days must settle immediately, got %v", got)
	}
}

func TestNextBalance(t *testing.T) {
	if got := NextBalance(0, 10_000, -300, -100); got != 9_600 {
		t.Errorf("NextBalance = %d, want 9600", got)
	}
	if got := NextBalance(9_600, 5_000, -150, -50); got != 14_400 {
		t.Errorf("NextBalance = %d, want 14400", got)
	}
	// Payouts are negative-amount entries with no fees.
	if got := NextBalance(14_400, -14_400, 0, 0); got != 0 {
		t.Errorf("NextBalance after payout = %d, want 0", got)
	}
}

func TestVerifyChain(t *testing.T) {
	entries := []model.LedgerEntry{
		{AmountCents: 10_000, FeeCents: -300, PlatformFeeCents: -100, BalanceCents: 9_600},
		{AmountCents: 5_000, FeeCents: -150, PlatformFeeCents: -50, BalanceCents: 14_400},
		{AmountCents: -14_400, BalanceCents: 0},
	}
	if i := Verify(entries); i != -1 {
		t.Errorf("valid chain reported corrupt at %d", i)
	}

	entries[1].BalanceCents = 14_401
	if i := Verify(entries); i != 1 {
		t.Errorf("corruption index = %d, want 1", i)
	}
}
