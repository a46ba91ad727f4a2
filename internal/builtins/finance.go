// ABOUTME: Open-finance pack: consent, accounts, transactions, cashflow and event stubs.
// ABOUTME: Handlers read arguments permissively and delegate all state to the store.

package builtins

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/2389/cmf-gateway/internal/packs"
	"github.com/2389/cmf-gateway/internal/store"
)

// FinancePackID identifies the open-finance pack.
const FinancePackID = "builtin:cmf"

// defaultDays applies when durationDays or horizonDays is absent.
const defaultDays = 30

// FinancePack creates the cmf.* tools backed by s.
func FinancePack(s store.Store) *packs.BuiltinPack {
	f := &financeHandlers{store: s}
	return &packs.BuiltinPack{
		ID: FinancePackID,
		Tools: []*packs.BuiltinTool{
			// Consent
			{
				Definition: packs.ToolDefinition{
					Name:        "cmf.consent.status",
					Description: "Check if consent is active for a customer/resource/scope.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"customerId":{"type":"string"},"resource":{"type":"string"},"scope":{"type":"string"}},"required":["customerId","resource","scope"]}`),
				},
				Handler: f.ConsentStatus,
			},
			{
				Definition: packs.ToolDefinition{
					Name:        "cmf.consent.grant",
					Description: "Grant a consent for N days.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"customerId":{"type":"string"},"resource":{"type":"string"},"scope":{"type":"string"},"durationDays":{"type":"number"}},"required":["customerId","resource","scope","durationDays"]}`),
				},
				Handler: f.ConsentGrant,
			},
			// Accounts and transactions
			{
				Definition: packs.ToolDefinition{
					Name:        "cmf.accounts.list",
					Description: "List accounts for a given customer.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"customerId":{"type":"string"}},"required":["customerId"]}`),
				},
				Handler: f.AccountsList,
			},
			{
				Definition: packs.ToolDefinition{
					Name:        "cmf.tx.search",
					Description: "Search transactions for an account in [from, to] (YYYY-MM-DD).",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"accountId":{"type":"string"},"from":{"type":"string"},"to":{"type":"string"}},"required":["accountId","from","to"]}`),
				},
				Handler: f.TxSearch,
			},
			{
				Definition: packs.ToolDefinition{
					Name:        "cmf.cashflow.compute",
					Description: "Compute simple cashflow over a horizon (days).",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"customerId":{"type":"string"},"horizonDays":{"type":"number"}},"required":["customerId","horizonDays"]}`),
				},
				Handler: f.CashflowCompute,
			},
			// Events
			{
				Definition: packs.ToolDefinition{
					Name:        "cmf.events.subscribe",
					Description: "Subscribe a callback URL to a topic.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"callbackUrl":{"type":"string"}},"required":["topic","callbackUrl"]}`),
				},
				Handler: f.EventsSubscribe,
			},
			{
				Definition: packs.ToolDefinition{
					Name:        "cmf.events.emit",
					Description: "Emit a mock event to a topic (no-op).",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"},"payload":{"type":"object"}},"required":["topic","payload"]}`),
				},
				Handler: f.EventsEmit,
			},
		},
	}
}

type financeHandlers struct {
	store store.Store
}

func consentKey(a args) store.ConsentKey {
	return store.ConsentKey{
		CustomerID: a.text("customerId"),
		Resource:   a.text("resource"),
		Scope:      a.text("scope"),
	}
}

// Consent handlers

type consentStatusResult struct {
	Status    string `json:"status"`
	ExpiresAt string `json:"expiresAt"`
}

func (f *financeHandlers) ConsentStatus(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	a := parseArgs(input)

	rec, err := f.store.GetConsent(ctx, consentKey(a))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if rec == nil || !rec.Active {
		return marshal(consentStatusResult{Status: "inactive", ExpiresAt: ""})
	}
	return marshal(consentStatusResult{Status: "active", ExpiresAt: rec.ExpiresAt})
}

type consentGrantResult struct {
	Granted   bool   `json:"granted"`
	ExpiresAt string `json:"expiresAt"`
}

func (f *financeHandlers) ConsentGrant(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	a := parseArgs(input)

	rec, err := f.store.GrantConsent(ctx, consentKey(a), a.days("durationDays", defaultDays))
	if err != nil {
		return nil, err
	}
	return marshal(consentGrantResult{Granted: true, ExpiresAt: rec.ExpiresAt})
}

// Account and transaction handlers

type accountsResult struct {
	Accounts []store.Account `json:"accounts"`
}

func (f *financeHandlers) AccountsList(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	a := parseArgs(input)

	accounts, err := f.store.ListAccounts(ctx, a.text("customerId"))
	if err != nil {
		return nil, err
	}
	return marshal(accountsResult{Accounts: accounts})
}

type transactionsResult struct {
	Transactions []store.Transaction `json:"transactions"`
}

func (f *financeHandlers) TxSearch(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	a := parseArgs(input)

	accountID, okAccount := a.str("accountId")
	from, okFrom := a.str("from")
	to, okTo := a.str("to")
	if !okAccount || !okFrom || !okTo {
		// Non-string operands never match an account or compare within a range.
		return marshal(transactionsResult{Transactions: []store.Transaction{}})
	}

	txs, err := f.store.SearchTransactions(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}
	return marshal(transactionsResult{Transactions: txs})
}

func (f *financeHandlers) CashflowCompute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	a := parseArgs(input)

	cf, err := f.store.ComputeCashflow(ctx, a.text("customerId"), a.days("horizonDays", defaultDays))
	if err != nil {
		return nil, err
	}
	return marshal(cf)
}

// Event stubs

type subscribeResult struct {
	Subscribed  bool            `json:"subscribed"`
	Topic       json.RawMessage `json:"topic,omitempty"`
	CallbackURL json.RawMessage `json:"callbackUrl,omitempty"`
}

func (f *financeHandlers) EventsSubscribe(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	a := parseArgs(input)
	return marshal(subscribeResult{
		Subscribed:  true,
		Topic:       a.raw("topic"),
		CallbackURL: a.raw("callbackUrl"),
	})
}

type emitResult struct {
	Published bool            `json:"published"`
	Topic     json.RawMessage `json:"topic,omitempty"`
	Size      int             `json:"size"`
}

func (f *financeHandlers) EventsEmit(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	a := parseArgs(input)
	return marshal(emitResult{
		Published: true,
		Topic:     a.raw("topic"),
		Size:      size(a.raw("payload")),
	})
}
