// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Always in-memory with a single connection; seeded at open, gone at Close

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using an in-memory SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	opts   Options
	logger *slog.Logger
}

// NewSQLiteStore opens a private :memory: database, creates the schema and
// inserts opts.Seed. The pool is pinned to one connection because every
// :memory: connection is its own database.
func NewSQLiteStore(ctx context.Context, opts Options) (*SQLiteStore, error) {
	opts = opts.withDefaults()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		opts:   opts,
		logger: opts.Logger,
	}

	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.seed(ctx, opts.Seed); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding database: %w", err)
	}

	s.logger.Info("SQLite store initialized", "path", ":memory:")
	return s, nil
}

// createSchema creates the database tables
func (s *SQLiteStore) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS consents (
			customer_id TEXT NOT NULL,
			resource TEXT NOT NULL,
			scope TEXT NOT NULL,
			active INTEGER NOT NULL,
			expires_at TEXT NOT NULL,
			granted_at_ms INTEGER NOT NULL,
			PRIMARY KEY (customer_id, resource, scope)
		);

		CREATE TABLE IF NOT EXISTS accounts (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id TEXT NOT NULL,
			id TEXT NOT NULL,
			alias TEXT NOT NULL,
			currency TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_accounts_customer ON accounts(customer_id, seq);

		CREATE TABLE IF NOT EXISTS transactions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id TEXT NOT NULL,
			account_id TEXT NOT NULL,
			date TEXT NOT NULL,
			amount INTEGER NOT NULL,
			description TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, date);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) seed(ctx context.Context, data *Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range data.Customers {
		for _, a := range c.Accounts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO accounts (customer_id, id, alias, currency) VALUES (?, ?, ?, ?)`,
				c.ID, a.ID, a.Alias, a.Currency,
			); err != nil {
				return fmt.Errorf("inserting account %s: %w", a.ID, err)
			}
		}
		for _, t := range c.Transactions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO transactions (customer_id, account_id, date, amount, description) VALUES (?, ?, ?, ?, ?)`,
				c.ID, t.AccountID, t.Date, t.Amount, t.Description,
			); err != nil {
				return fmt.Errorf("inserting transaction for %s: %w", t.AccountID, err)
			}
		}
	}

	return tx.Commit()
}

// GetConsent retrieves the consent record for key.
func (s *SQLiteStore) GetConsent(ctx context.Context, key ConsentKey) (*ConsentRecord, error) {
	query := `
		SELECT active, expires_at, granted_at_ms
		FROM consents
		WHERE customer_id = ? AND resource = ? AND scope = ?
	`

	var (
		active    bool
		expiresAt string
		grantedMs int64
	)
	err := s.db.QueryRowContext(ctx, query, key.CustomerID, key.Resource, key.Scope).Scan(&active, &expiresAt, &grantedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying consent: %w", err)
	}

	return &ConsentRecord{
		Key:       key,
		Active:    active,
		ExpiresAt: expiresAt,
		GrantedAt: time.UnixMilli(grantedMs),
	}, nil
}

// GrantConsent upserts the consent record for key.
func (s *SQLiteStore) GrantConsent(ctx context.Context, key ConsentKey, durationDays float64) (*ConsentRecord, error) {
	now := s.opts.Now()
	expiresAt, err := expiryDate(now, durationDays)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO consents (customer_id, resource, scope, active, expires_at, granted_at_ms)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (customer_id, resource, scope)
		DO UPDATE SET active = 1, expires_at = excluded.expires_at, granted_at_ms = excluded.granted_at_ms
	`
	if _, err := s.db.ExecContext(ctx, query, key.CustomerID, key.Resource, key.Scope, expiresAt, now.UnixMilli()); err != nil {
		return nil, fmt.Errorf("upserting consent: %w", err)
	}

	s.logger.Debug("consent granted", "key", key.String(), "expires_at", expiresAt)
	return &ConsentRecord{Key: key, Active: true, ExpiresAt: expiresAt, GrantedAt: time.UnixMilli(now.UnixMilli())}, nil
}

// ListAccounts returns the customer's accounts in seed order.
func (s *SQLiteStore) ListAccounts(ctx context.Context, customerID string) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, alias, currency FROM accounts WHERE customer_id = ? ORDER BY seq`, customerID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Alias, &a.Currency); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SearchTransactions filters by account and inclusive date range in seed order.
func (s *SQLiteStore) SearchTransactions(ctx context.Context, accountID, from, to string) ([]Transaction, error) {
	txs, err := s.queryTransactions(ctx,
		`SELECT account_id, date, amount, description FROM transactions
		 WHERE account_id = ? AND date >= ? AND date <= ? ORDER BY seq`,
		accountID, from, to)
	if err != nil {
		return nil, err
	}
	return numberMatches(txs), nil
}

// ComputeCashflow aggregates the customer's first account.
func (s *SQLiteStore) ComputeCashflow(ctx context.Context, customerID string, horizonDays float64) (*Cashflow, error) {
	from, to, err := cashflowWindow(s.opts.Now(), horizonDays)
	if err != nil {
		return nil, err
	}

	var primaryID, currency string
	err = s.db.QueryRowContext(ctx,
		`SELECT id, currency FROM accounts WHERE customer_id = ? ORDER BY seq LIMIT 1`, customerID,
	).Scan(&primaryID, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return newCashflow(horizonDays, defaultCurrency, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying primary account: %w", err)
	}

	txs, err := s.queryTransactions(ctx,
		`SELECT account_id, date, amount, description FROM transactions
		 WHERE customer_id = ? AND account_id = ? AND date >= ? AND date <= ? ORDER BY seq`,
		customerID, primaryID, from, to)
	if err != nil {
		return nil, err
	}
	return newCashflow(horizonDays, currency, txs), nil
}

func (s *SQLiteStore) queryTransactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	txs := []Transaction{}
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.AccountID, &t.Date, &t.Amount, &t.Description); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// Close closes the database connection, discarding all data.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}
