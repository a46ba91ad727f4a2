// Package store provides the mock open-finance domain behind the MCP tools.
//
// # Architecture
//
// Store is the single owner of domain state. Tool handlers receive a Store at
// construction time and use only its five operations:
//
//   - GetConsent / GrantConsent: consent records keyed by (customer, resource, scope)
//   - ListAccounts: immutable per-customer accounts
//   - SearchTransactions: account + inclusive ISO date range filter
//   - ComputeCashflow: inflow/outflow totals for a customer's first account
//
// Two backends are available, selected by driver name through Open:
//
//   - MemoryStore ("memory"): maps guarded by a sync.RWMutex
//   - SQLiteStore ("sqlite"): a private :memory: modernc.org/sqlite database
//
// Neither backend persists anything beyond the process lifetime.
//
// # Seed Data
//
// DefaultSeed provides customer cust-001 with accounts acc-001 and acc-002 and
// four transactions on acc-001 in October 2025. Seed data is never mutated.
//
// # Dates
//
// All dates are YYYY-MM-DD strings in UTC and compare lexicographically.
// Day arithmetic that leaves the representable calendar returns
// ErrDateOutOfRange. The clock is injectable through Options.Now.
package store
