package services

import (
	"time"

	"github.com/shopspring/decimal"
)

// NetWorthEntry is one provider quote: the per-share net asset value of a
// fund on a date (YYYY-MM-DD).
type NetWorthEntry struct {
	Date     string          `json:"date"`
	NetWorth decimal.Decimal `json:"netWorth"`
}

// QuoteService talks to the external NAV quote provider. The provider is
// unreliable by design: every caller must treat "no data" as a valid,
// expected outcome, never as zero.
type QuoteService interface {
	// FetchCurrentNetWorth parses the provider's "latest" response only; it
	// does not participate in historical resolution.
	FetchCurrentNetWorth(code string) (*NetWorthEntry, error)
	// FetchNetWorthHistory returns up to windowSize entries, newest first.
	FetchNetWorthHistory(code string, windowSize int) ([]NetWorthEntry, error)
}

// MatchType distinguishes how a date-targeted NAV lookup was satisfied.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchNearest MatchType = "nearest"
)

// NetWorthResult is a resolved NAV for a target date. A nil result means
// NAV unavailable.
type NetWorthResult struct {
	Date     string          `json:"date"`
	NetWorth decimal.Decimal `json:"netWorth"`
	Match    MatchType       `json:"matchType"`
}

// NavResolver resolves a fund's NAV for a target date, falling back to the
// nearest earlier trading day within a bounded window.
type NavResolver interface {
	GetNetWorth(code string, date time.Time) (*NetWorthResult, error)
}
