// ABOUTME: In-memory Store implementation backed by maps and the seed dataset
// ABOUTME: A single RWMutex guards the consent map; seed data is read-only

package store

import (
	"context"
	"sync"
)

// MemoryStore is the default Store. Seed data is never mutated after
// construction, so only the consent map needs locking.
type MemoryStore struct {
	opts Options
	data *Dataset

	mu       sync.RWMutex
	consents map[ConsentKey]ConsentRecord
}

// NewMemoryStore creates a MemoryStore populated from opts.Seed.
func NewMemoryStore(opts Options) *MemoryStore {
	opts = opts.withDefaults()
	return &MemoryStore{
		opts:     opts,
		data:     opts.Seed,
		consents: make(map[ConsentKey]ConsentRecord),
	}
}

// GetConsent retrieves the consent record for key.
func (m *MemoryStore) GetConsent(ctx context.Context, key ConsentKey) (*ConsentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.consents[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// GrantConsent creates or overwrites the consent record for key.
func (m *MemoryStore) GrantConsent(ctx context.Context, key ConsentKey, durationDays float64) (*ConsentRecord, error) {
	now := m.opts.Now()
	expiresAt, err := expiryDate(now, durationDays)
	if err != nil {
		return nil, err
	}

	rec := ConsentRecord{Key: key, Active: true, ExpiresAt: expiresAt, GrantedAt: now}

	m.mu.Lock()
	m.consents[key] = rec
	m.mu.Unlock()

	m.opts.Logger.Debug("consent granted", "key", key.String(), "expires_at", expiresAt)
	return &rec, nil
}

// ListAccounts returns a copy of the customer's accounts.
func (m *MemoryStore) ListAccounts(ctx context.Context, customerID string) ([]Account, error) {
	c := m.data.customer(customerID)
	if c == nil {
		return []Account{}, nil
	}
	return append([]Account{}, c.Accounts...), nil
}

// SearchTransactions scans every customer's transactions in seed order.
func (m *MemoryStore) SearchTransactions(ctx context.Context, accountID, from, to string) ([]Transaction, error) {
	matches := []Transaction{}
	for _, c := range m.data.Customers {
		for _, tx := range c.Transactions {
			if tx.AccountID == accountID && inRange(tx.Date, from, to) {
				matches = append(matches, tx)
			}
		}
	}
	return numberMatches(matches), nil
}

// ComputeCashflow aggregates the customer's first account.
func (m *MemoryStore) ComputeCashflow(ctx context.Context, customerID string, horizonDays float64) (*Cashflow, error) {
	from, to, err := cashflowWindow(m.opts.Now(), horizonDays)
	if err != nil {
		return nil, err
	}

	c := m.data.customer(customerID)
	if c == nil || len(c.Accounts) == 0 {
		return newCashflow(horizonDays, defaultCurrency, nil), nil
	}

	primary := c.Accounts[0]
	var txs []Transaction
	for _, tx := range c.Transactions {
		if tx.AccountID == primary.ID && inRange(tx.Date, from, to) {
			txs = append(txs, tx)
		}
	}
	return newCashflow(horizonDays, primary.Currency, txs), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
