package gateway

import "github.com/shopspring/decimal"

// Header names carrying the access signals on inbound proxy requests
const (
	HeaderDevBypass    = "X-Dev-Bypass"
	HeaderTokenBalance = "X-Token-Balance"
)

// bypassSentinel is the literal value that short-circuits the balance check
const bypassSentinel = "1"

// AccessGate decides whether an inbound proxy request carries a sufficient
// token-balance signal. It is a pure predicate: failures are a false
// result, never an error.
type AccessGate struct {
	// AllowBypass enables the dev bypass header. Off in production builds.
	AllowBypass bool
}

// Authorize returns true when the bypass header carries the sentinel value
// (and bypass is enabled), or when the balance parses as a number strictly
// greater than zero. An absent or unparseable balance is denied.
func (g AccessGate) Authorize(bypass, balance string) bool {
	if g.AllowBypass && bypass == bypassSentinel {
		return true
	}
	if balance == "" {
		return false
	}
	value, err := decimal.NewFromString(balance)
	if err != nil {
		return false
	}
	return value.IsPositive()
}
