// Package builtins provides the tool packs served by the gateway.
//
// # Tool Packs
//
// Open-finance pack (builtin:cmf), backed by a store.Store:
//
//   - cmf.consent.status: active/inactive consent for customer/resource/scope
//   - cmf.consent.grant: upsert a consent expiring in durationDays (default 30)
//   - cmf.accounts.list: accounts for a customer
//   - cmf.tx.search: transactions for an account within [from, to]
//   - cmf.cashflow.compute: inflows/outflows of the first account over horizonDays
//   - cmf.events.subscribe: stub, echoes topic and callbackUrl
//   - cmf.events.emit: stub, echoes topic and reports payload size
//
// Astro pack (builtin:astro), stateless:
//
//   - astro.getSign: zodiac sign for a date
//   - astro.dailyFortune: one-line fortune for a sign
//
// # Arguments
//
// Handlers never reject a call for malformed arguments. Each field is read on
// its own with a fallback: absent strings are empty, absent day counts take
// their default, non-string search bounds match nothing. The only argument
// failure is a day count that cannot be turned into a date, which surfaces as
// store.ErrDateOutOfRange.
//
// # Results
//
// Handlers return compact JSON without HTML escaping; the MCP layer wraps it
// as text content.
package builtins
