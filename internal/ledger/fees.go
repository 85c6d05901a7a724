package ledger

import (
	"math"
	"time"

	"github.com/okabe/storefront-booking/internal/model"
)

// feeTaxRate is the consumption tax applied on top of the processing
// fee. It is informational only and never enters chain arithmetic.
const feeTaxRate = 0.05

// platformFeeRate is the cut taken from non-pro stores on every paid
// order. Pro stores pay none.
const platformFeeRate = 0.01

// Fees holds the computed charges for one paid order. FeeCents and
// PlatformFeeCents are negative or zero so they can be summed into a
// running balance directly; FeeTaxCents follows the fee's sign.
type Fees struct {
	FeeCents         int64
	FeeTaxCents      int64
	PlatformFeeCents int64
}

// Net returns the amount left to the store after all charges.
func (f Fees) Net(amountCents int64) int64 {
	return amountCents + f.FeeCents + f.PlatformFeeCents
}

// OrderFees computes the charges for a paid order of amountCents under
// the given payment method. Fractions round half away from zero.
func OrderFees(amountCents int64, method *model.PaymentMethod, isPro bool) Fees {
	fee := -roundCents(float64(amountCents)*method.FeeRate + float64(method.FeeAdditionalCents))
	f := Fees{
		FeeCents:    fee,
		FeeTaxCents: roundCents(float64(fee) * feeTaxRate),
	}
	if !isPro {
		f.PlatformFeeCents = -roundCents(float64(amountCents) * platformFeeRate)
	}
	return f
}

// AvailableAt returns when the funds settle: the clearance period of
// the payment method counted from the payment instant.
func AvailableAt(paidAt time.Time, method *model.PaymentMethod) time.Time {
	return paidAt.AddDate(0, 0, method.ClearDays)
}

// NextBalance advances the running balance by one entry's movements.
func NextBalance(prev, amountCents, feeCents, platformFeeCents int64) int64 {
	return prev + amountCents + feeCents + platformFeeCents
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}
