// ABOUTME: Tests for the pure date and aggregation helpers
// ABOUTME: Covers expiry arithmetic, cashflow window edges and outflow magnitudes

package store

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCashflowWindow(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		horizon  float64
		wantFrom string
		wantTo   string
	}{
		{"thirty days", time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC), 30, "2025-10-01", "2025-10-31"},
		{"crosses month", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), 1, "2025-02-28", "2025-03-01"},
		{"crosses year", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), 10, "2025-12-26", "2026-01-05"},
		{"fraction truncates toward zero", time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC), 2.5, "2025-10-11", "2025-10-14"},
		{"negative horizon looks ahead", time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC), -5, "2025-11-05", "2025-10-31"},
		{"local time uses the UTC date", time.Date(2025, 10, 31, 22, 0, 0, 0, time.FixedZone("CLT", -3*3600)), 0, "2025-11-01", "2025-11-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := cashflowWindow(tt.now, tt.horizon)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}

func TestCashflowWindow_OutOfRange(t *testing.T) {
	now := time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC)
	for _, h := range []float64{math.NaN(), math.Inf(-1), 2e8} {
		_, _, err := cashflowWindow(now, h)
		assert.ErrorIs(t, err, ErrDateOutOfRange, "horizon %v", h)
	}
}

func TestExpiryDate(t *testing.T) {
	now := time.Date(2025, 10, 31, 23, 30, 0, 0, time.UTC)

	got, err := expiryDate(now, 30)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-30", got)

	got, err = expiryDate(now, 0.25)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-01", got)

	_, err = expiryDate(now, math.NaN())
	assert.ErrorIs(t, err, ErrDateOutOfRange)
}

func TestSummarize(t *testing.T) {
	inflows, outflows := summarize([]Transaction{
		{Amount: 100}, {Amount: -40}, {Amount: 0}, {Amount: -60},
	})
	assert.Equal(t, int64(100), inflows)
	assert.Equal(t, int64(100), outflows)

	inflows, outflows = summarize(nil)
	assert.Zero(t, inflows)
	assert.Zero(t, outflows)
}

func TestNewCashflow_NoNegativeZero(t *testing.T) {
	cf := newCashflow(math.Copysign(0, -1), "CLP", nil)
	assert.False(t, math.Signbit(cf.HorizonDays))
}
