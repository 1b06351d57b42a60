// Package fee computes the platform and processor fees charged on paid event
// seats and the refund owed when an attendee leaves.
//
// All amounts are integer minor units. Rates are applied with half-away-from-
// zero rounding, so 2.9% of 1000 is 29 and 5% of 50 is 3.
package fee

import (
	"math"
	"time"
)

const (
	PlatformFeeRate     = 0.05
	ProcessorFeeRate    = 0.029
	ProcessorFixedFee   = 30
	DefaultRefundCutoff = 24 * time.Hour
)

// Schedule is a fee policy. The zero value is not usable; start from
// DefaultSchedule.
type Schedule struct {
	PlatformRate   float64
	ProcessorRate  float64
	ProcessorFixed int64
	RefundCutoff   time.Duration
}

func DefaultSchedule() Schedule {
	return Schedule{
		PlatformRate:   PlatformFeeRate,
		ProcessorRate:  ProcessorFeeRate,
		ProcessorFixed: ProcessorFixedFee,
		RefundCutoff:   DefaultRefundCutoff,
	}
}

// PlatformFee is the application fee the platform keeps from a ticket price.
func (s Schedule) PlatformFee(price int64) int64 {
	return round(float64(price) * s.PlatformRate)
}

// ProcessorFee estimates the card processor's cut of amount.
func (s Schedule) ProcessorFee(amount int64) int64 {
	return round(float64(amount)*s.ProcessorRate) + s.ProcessorFixed
}

// RefundAmount is what an attendee gets back: the original charge minus both
// fees. It can be zero or negative for cheap tickets; callers decide what a
// non-positive refund means.
func (s Schedule) RefundAmount(original int64) int64 {
	return original - s.PlatformFee(original) - s.ProcessorFee(original)
}

// RefundOpen reports whether an event starting at startsAt still accepts
// refunds at now. The window closes strictly before the cutoff: exactly
// cutoff ahead is still open.
func (s Schedule) RefundOpen(startsAt, now time.Time) bool {
	return startsAt.Sub(now) >= s.RefundCutoff
}

func PlatformFee(price int64) int64 {
	return DefaultSchedule().PlatformFee(price)
}

func ProcessorFee(amount int64) int64 {
	return DefaultSchedule().ProcessorFee(amount)
}

func RefundAmount(original int64) int64 {
	return DefaultSchedule().RefundAmount(original)
}

func round(v float64) int64 {
	return int64(math.Round(v))
}
