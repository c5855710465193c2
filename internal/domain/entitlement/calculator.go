// Package entitlement holds the pure date and conversion arithmetic behind
// subscription windows and gift card recharges. Days are always fixed 24h
// spans: a MONTH is 30 days and a YEAR is 360 days.
package entitlement

import (
	"time"

	"github.com/shopspring/decimal"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
)

const (
	Day = 24 * time.Hour

	// ReferencePeriodDays is the period a provider offer price pays for.
	ReferencePeriodDays = 30

	// MaxDays bounds any single window or recharge: 100 fixed years.
	MaxDays = 100 * 360
)

var unitDays = map[model.DurationUnit]int{
	model.DurationDay:   1,
	model.DurationWeek:  7,
	model.DurationMonth: 30,
	model.DurationYear:  360,
}

// WindowDays returns the fixed day count of duration units.
func WindowDays(duration int, unit model.DurationUnit) (int, error) {
	n, ok := unitDays[unit]
	if !ok || duration < 0 || duration > MaxDays/n {
		return 0, domain.ErrInvalidArgument
	}
	return n * duration, nil
}

// AddDays advances t by whole 24h days. Calendar arithmetic in UTC keeps
// every day 24h long and cannot overflow the way a Duration product does.
func AddDays(t time.Time, days int) time.Time {
	return t.UTC().AddDate(0, 0, days).In(t.Location())
}

// EndDate computes the end of a window starting at start.
func EndDate(start time.Time, duration int, unit model.DurationUnit) (time.Time, error) {
	days, err := WindowDays(duration, unit)
	if err != nil {
		return time.Time{}, err
	}
	return AddDays(start, days), nil
}

// RemainingDays is the number of whole days left before end, never negative.
func RemainingDays(now, end time.Time) int {
	if !end.After(now) {
		return 0
	}
	return int(end.Sub(now) / Day)
}

var referencePeriod = decimal.NewFromInt(ReferencePeriodDays)

// DaysFromAmount converts amount into days against a 30-day reference price.
// A zero result is legal here; callers decide whether to reject it. Results
// above MaxDays fail with ErrAmountTooLarge.
func DaysFromAmount(amount, referencePrice decimal.Decimal) (int, error) {
	if !referencePrice.IsPositive() {
		return 0, domain.ErrInvalidConversion
	}
	if !amount.IsPositive() {
		return 0, nil
	}
	// integer quotient of amount*30 / price; both operands are positive so it is the floor
	q, _ := amount.Mul(referencePeriod).QuoRem(referencePrice, 0)
	if q.GreaterThan(decimal.NewFromInt(MaxDays)) {
		return 0, domain.ErrAmountTooLarge
	}
	return int(q.IntPart()), nil
}
