package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tugsousa/fundfolio/src/utils"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := utils.ParseDay(s)
	require.NoError(t, err)
	return d
}

func newNavForTest(quote QuoteService, now time.Time) *navServiceImpl {
	return &navServiceImpl{
		quote:      quote,
		historyMin: 30,
		historyMax: 600,
		maxLagDays: 7,
		now:        func() time.Time { return now },
	}
}

func TestGetNetWorthExactMatch(t *testing.T) {
	quote := &fakeQuote{history: []NetWorthEntry{
		{Date: "2024-01-10", NetWorth: dec("1.30")},
		{Date: "2024-01-09", NetWorth: dec("1.20")},
		{Date: "2024-01-08", NetWorth: dec("1.10")},
	}}
	nav := newNavForTest(quote, day(t, "2024-01-10"))

	res, err := nav.GetNetWorth("000001", day(t, "2024-01-09"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "2024-01-09", res.Date)
	assert.Equal(t, MatchExact, res.Match)
	assertDecEqual(t, "1.20", res.NetWorth, 2)
}

func TestGetNetWorthNearestWithinLag(t *testing.T) {
	// Monday the 8th has no row yet; Friday the 5th stands in for it.
	quote := &fakeQuote{history: []NetWorthEntry{
		{Date: "2024-01-03", NetWorth: dec("1.05")},
		{Date: "2024-01-05", NetWorth: dec("1.10")},
	}}
	nav := newNavForTest(quote, day(t, "2024-01-08"))

	res, err := nav.GetNetWorth("000001", day(t, "2024-01-08"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "2024-01-05", res.Date)
	assert.Equal(t, MatchNearest, res.Match)
	assertDecEqual(t, "1.10", res.NetWorth, 2)
}

func TestGetNetWorthNearestTooStale(t *testing.T) {
	quote := &fakeQuote{history: []NetWorthEntry{
		{Date: "2023-12-25", NetWorth: dec("1.00")},
	}}
	nav := newNavForTest(quote, day(t, "2024-01-08"))

	res, err := nav.GetNetWorth("000001", day(t, "2024-01-08"))
	require.NoError(t, err)
	assert.Nil(t, res, "an entry over 7 days old must not substitute for the target")
}

func TestGetNetWorthIgnoresLaterEntries(t *testing.T) {
	quote := &fakeQuote{history: []NetWorthEntry{
		{Date: "2024-01-09", NetWorth: dec("1.20")},
	}}
	nav := newNavForTest(quote, day(t, "2024-01-09"))

	res, err := nav.GetNetWorth("000001", day(t, "2024-01-08"))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestGetNetWorthProviderErrorResolvesNil(t *testing.T) {
	quote := &fakeQuote{historyErr: errors.New("provider down")}
	nav := newNavForTest(quote, day(t, "2024-01-10"))

	res, err := nav.GetNetWorth("000001", day(t, "2024-01-09"))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestGetNetWorthEmptyHistoryResolvesNil(t *testing.T) {
	quote := &fakeQuote{}
	nav := newNavForTest(quote, day(t, "2024-01-10"))

	res, err := nav.GetNetWorth("000001", day(t, "2024-01-09"))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestGetNetWorthEmptyCodeSkipsProvider(t *testing.T) {
	quote := &fakeQuote{historyErr: errors.New("must not be called")}
	nav := newNavForTest(quote, day(t, "2024-01-10"))

	res, err := nav.GetNetWorth("", day(t, "2024-01-09"))
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, quote.windows)
}

func TestGetNetWorthWindowSizing(t *testing.T) {
	now := day(t, "2024-06-30")
	quote := &fakeQuote{}
	nav := newNavForTest(quote, now)

	// Today: the minimum window applies.
	_, err := nav.GetNetWorth("000001", now)
	require.NoError(t, err)
	// Far past: the window clamps to the provider maximum.
	_, err = nav.GetNetWorth("000001", now.AddDate(-2, 0, 0))
	require.NoError(t, err)

	require.Len(t, quote.windows, 2)
	assert.Equal(t, 30, quote.windows[0])
	assert.Equal(t, 600, quote.windows[1])
}

func TestNearestInHistory(t *testing.T) {
	history := []NetWorthEntry{
		{Date: "2024-01-05", NetWorth: dec("1.10")},
		{Date: "2024-01-08", NetWorth: dec("1.20")},
		{Date: "2024-01-10", NetWorth: dec("1.30")},
	}

	exact := nearestInHistory(history, "2024-01-08")
	require.NotNil(t, exact)
	assert.Equal(t, "2024-01-08", exact.Date)

	earlier := nearestInHistory(history, "2024-01-07")
	require.NotNil(t, earlier)
	assert.Equal(t, "2024-01-05", earlier.Date)

	assert.Nil(t, nearestInHistory(history, "2024-01-04"))
	assert.Nil(t, nearestInHistory(nil, "2024-01-08"))
}
