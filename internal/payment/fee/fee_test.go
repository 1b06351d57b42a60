package fee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeesForStandardTicket(t *testing.T) {
	assert.Equal(t, int64(50), PlatformFee(1000))
	assert.Equal(t, int64(59), ProcessorFee(1000))
	assert.Equal(t, int64(891), RefundAmount(1000))
}

func TestFeesRoundHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, int64(3), PlatformFee(50))
	assert.Equal(t, int64(31), ProcessorFee(50))
	assert.Equal(t, int64(16), RefundAmount(50))
}

func TestRefundCanGoNegativeForCheapTickets(t *testing.T) {
	assert.Equal(t, int64(1), PlatformFee(10))
	assert.Equal(t, int64(30), ProcessorFee(10))
	assert.Equal(t, int64(-21), RefundAmount(10))
}

func TestRefundNeverExceedsOriginal(t *testing.T) {
	for _, price := range []int64{0, 1, 99, 100, 999, 2500, 10_000, 123_457} {
		assert.LessOrEqual(t, RefundAmount(price), price, "price %d", price)
		assert.Equal(t, price, RefundAmount(price)+PlatformFee(price)+ProcessorFee(price))
	}
}

func TestCustomSchedule(t *testing.T) {
	s := DefaultSchedule()
	s.PlatformRate = 0.10
	s.ProcessorFixed = 0
	assert.Equal(t, int64(100), s.PlatformFee(1000))
	assert.Equal(t, int64(29), s.ProcessorFee(1000))
	assert.Equal(t, int64(871), s.RefundAmount(1000))
}

func TestRefundOpenBoundary(t *testing.T) {
	s := DefaultSchedule()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, s.RefundOpen(now.Add(24*time.Hour+time.Minute), now))
	assert.True(t, s.RefundOpen(now.Add(24*time.Hour), now))
	assert.False(t, s.RefundOpen(now.Add(23*time.Hour+59*time.Minute), now))
	assert.False(t, s.RefundOpen(now.Add(-time.Hour), now))
}
