// ABOUTME: Store interface and data types for the mock open-finance domain
// ABOUTME: Defines consents, accounts, transactions, cashflow and the Store interface

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDateOutOfRange is returned when day arithmetic produces an unrepresentable date
// (non-finite day counts or dates beyond the calendar range).
var ErrDateOutOfRange = errors.New("date out of range")

// ErrUnknownDriver is returned by Open for an unsupported backend name
var ErrUnknownDriver = errors.New("unknown store driver")

// ConsentKey identifies a consent record.
type ConsentKey struct {
	CustomerID string
	Resource   string
	Scope      string
}

// String renders the key the way it appears in logs.
func (k ConsentKey) String() string {
	return k.CustomerID + ":" + k.Resource + ":" + k.Scope
}

// ConsentRecord is created or overwritten by a grant and never deleted.
type ConsentRecord struct {
	Key       ConsentKey
	Active    bool
	ExpiresAt string // YYYY-MM-DD
	GrantedAt time.Time
}

// Account belongs to exactly one customer and is immutable seed data.
type Account struct {
	ID       string `json:"id"`
	Alias    string `json:"alias"`
	Currency string `json:"currency"`
}

// Transaction is immutable seed data. ID is assigned per query from the
// position in the result (tx-1, tx-2, ...) and is not persisted.
type Transaction struct {
	ID          string `json:"id"`
	AccountID   string `json:"-"`
	Date        string `json:"date"` // YYYY-MM-DD
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// Cashflow summarizes a customer's primary account over a look-back window.
type Cashflow struct {
	HorizonDays float64 `json:"horizonDays"`
	Inflows     int64   `json:"inflows"`
	Outflows    int64   `json:"outflows"`
	Net         int64   `json:"net"`
	Currency    string  `json:"currency"`
}

// Store is the mock domain: the only owner and mutator of consent, account
// and transaction data. Implementations must be safe for concurrent use.
type Store interface {
	// GetConsent returns ErrNotFound when no grant was ever made for key.
	GetConsent(ctx context.Context, key ConsentKey) (*ConsentRecord, error)

	// GrantConsent upserts an active record expiring durationDays from now.
	GrantConsent(ctx context.Context, key ConsentKey, durationDays float64) (*ConsentRecord, error)

	// ListAccounts returns the customer's accounts in seed order, empty for unknown customers.
	ListAccounts(ctx context.Context, customerID string) ([]Account, error)

	// SearchTransactions filters all transactions by account and the inclusive
	// date range [from, to], assigning tx-<n> ids in result order.
	SearchTransactions(ctx context.Context, accountID, from, to string) ([]Transaction, error)

	// ComputeCashflow aggregates the customer's first account over
	// [today-horizonDays, today] in UTC.
	ComputeCashflow(ctx context.Context, customerID string, horizonDays float64) (*Cashflow, error)

	Close() error
}

// Options configures a store backend.
type Options struct {
	// Now is the clock used for grants and cashflow windows. Defaults to time.Now.
	Now func() time.Time
	// Seed is the initial dataset. Defaults to DefaultSeed().
	Seed *Dataset
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Seed == nil {
		o.Seed = DefaultSeed()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Logger = o.Logger.With("component", "store")
	return o
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Open creates a store for the named driver.
func Open(ctx context.Context, driver string, opts Options) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemoryStore(opts), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
