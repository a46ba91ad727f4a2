// ABOUTME: Pure derivation functions shared by every store backend
// ABOUTME: Consent expiry dates, cashflow windows, range filtering and aggregation

package store

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// maxEpochMillis is the largest instant a calendar date may represent, ±100,000,000 days.
const maxEpochMillis = 8.64e15

// maxWindowDays bounds look-back windows to the same calendar range.
const maxWindowDays = 1e8

// expiryDate returns the UTC date durationDays after now. Fractional days
// are honored at millisecond precision.
func expiryDate(now time.Time, durationDays float64) (string, error) {
	ms := float64(now.UnixMilli()) + durationDays*864e5
	if math.IsNaN(ms) || math.Abs(ms) > maxEpochMillis {
		return "", fmt.Errorf("%w: %v days from %s", ErrDateOutOfRange, durationDays, now.UTC().Format(dateLayout))
	}
	return time.UnixMilli(int64(ms)).UTC().Format(dateLayout), nil
}

// cashflowWindow returns the inclusive [from, to] date strings for a look-back
// of horizonDays ending on now's UTC date. The day offset is truncated toward
// zero, so a horizon of 2.5 from the 14th starts on the 11th.
func cashflowWindow(now time.Time, horizonDays float64) (from, to string, err error) {
	if math.IsNaN(horizonDays) || math.Abs(horizonDays) > maxWindowDays {
		return "", "", fmt.Errorf("%w: horizon of %v days", ErrDateOutOfRange, horizonDays)
	}
	today := now.UTC()
	day := math.Trunc(float64(today.Day()) - horizonDays)
	start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(day)-1)
	return start.Format(dateLayout), today.Format(dateLayout), nil
}

// inRange compares fixed-width ISO dates lexicographically.
func inRange(date, from, to string) bool {
	return date >= from && date <= to
}

// numberMatches assigns tx-<n> ids in result order, 1-based.
func numberMatches(txs []Transaction) []Transaction {
	for i := range txs {
		txs[i].ID = "tx-" + strconv.Itoa(i+1)
	}
	return txs
}

// summarize adds up inflows and outflow magnitudes.
func summarize(txs []Transaction) (inflows, outflows int64) {
	for _, tx := range txs {
		switch {
		case tx.Amount > 0:
			inflows += tx.Amount
		case tx.Amount < 0:
			outflows -= tx.Amount
		}
	}
	return inflows, outflows
}

// defaultCurrency applies when a customer has no accounts.
const defaultCurrency = "CLP"

func newCashflow(horizonDays float64, currency string, txs []Transaction) *Cashflow {
	inflows, outflows := summarize(txs)
	if horizonDays == 0 {
		horizonDays = 0 // drop the sign of -0
	}
	return &Cashflow{
		HorizonDays: horizonDays,
		Inflows:     inflows,
		Outflows:    outflows,
		Net:         inflows - outflows,
		Currency:    currency,
	}
}
