// Package billing computes the date a purchase actually leaves the account.
// Credit cards settle on a statement cycle; everything else pays on the spot.
package billing

import (
	"time"

	"cashflow/internal/core"
)

// CycleOverride replaces a card's billing days for purchases made in a single
// month, typically when the issuer shifts a statement around holidays.
type CycleOverride struct {
	Month      core.Month
	CutOffDay  int
	PaymentDay int
}

// PaymentDate returns the day the purchase is charged. For non-credit
// accounts that is the purchase date itself. For credit cards a purchase on
// or before the cut-off day lands on the payment day of the following month,
// a later purchase on the payment day of the month after that; the payment
// day is clamped to the target month's length. graceMonths shifts the result
// forward by whole months.
func PaymentDate(purchase time.Time, account core.Account, override *CycleOverride, graceMonths int) time.Time {
	if !account.IsCredit() {
		return purchase
	}

	month := core.MonthOf(purchase)
	cutOff, paymentDay := account.CutOffDay, account.PaymentDay
	if override != nil && override.Month == month {
		cutOff, paymentDay = override.CutOffDay, override.PaymentDay
	}

	target := month.Add(1)
	if purchase.Day() > cutOff {
		target = month.Add(2)
	}
	if graceMonths > 0 {
		target = target.Add(graceMonths)
	}
	return target.Date(paymentDay)
}
