package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/tugsousa/fundfolio/src/logger"
	"golang.org/x/net/publicsuffix"
)

const quoteUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// The realtime endpoint answers with a jsonp wrapper:
// jsonpgz({"fundcode":"000001","dwjz":"1.2340","jzrq":"2024-01-10",...});
var jsonpRe = regexp.MustCompile(`jsonpgz\((.*)\);?\s*$`)

type realtimePayload struct {
	FundCode string `json:"fundcode"`
	UnitNav  string `json:"dwjz"`
	NavDate  string `json:"jzrq"`
}

type historyResponse struct {
	Data struct {
		List []struct {
			Date    string `json:"FSRQ"`
			UnitNav string `json:"DWJZ"`
		} `json:"LSJZList"`
	} `json:"Data"`
	ErrCode int `json:"ErrCode"`
}

// quoteServiceImpl implements QuoteService against the public fund API.
type quoteServiceImpl struct {
	httpClient      http.Client
	realtimeBaseURL string
	historyBaseURL  string

	// historyCache keeps recent history payloads so a backfill run and the
	// settlement sweep don't hammer the provider for the same code.
	historyCache *cache.Cache
}

// NewQuoteService creates the provider client. The history endpoint rejects
// bare requests, so the client carries a cookie jar and a Referer header.
func NewQuoteService(realtimeBaseURL, historyBaseURL string, timeout time.Duration) QuoteService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	return &quoteServiceImpl{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		realtimeBaseURL: realtimeBaseURL,
		historyBaseURL:  historyBaseURL,
		historyCache:    cache.New(15*time.Minute, 30*time.Minute),
	}
}

func (s *quoteServiceImpl) FetchCurrentNetWorth(code string) (*NetWorthEntry, error) {
	if code == "" {
		return nil, fmt.Errorf("quote: fund code is empty")
	}
	reqURL := fmt.Sprintf("%s/%s.js?rt=%d", s.realtimeBaseURL, url.PathEscape(code), time.Now().UnixMilli())
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", quoteUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote: realtime request for %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote: realtime endpoint returned status %d for %s", resp.StatusCode, code)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("quote: reading realtime response for %s: %w", code, err)
	}

	matches := jsonpRe.FindSubmatch(body)
	if len(matches) < 2 {
		return nil, fmt.Errorf("quote: unexpected realtime payload for %s", code)
	}

	var payload realtimePayload
	if err := json.Unmarshal(matches[1], &payload); err != nil {
		return nil, fmt.Errorf("quote: decoding realtime payload for %s: %w", code, err)
	}
	if payload.UnitNav == "" || payload.NavDate == "" {
		return nil, fmt.Errorf("quote: realtime payload for %s has no NAV", code)
	}
	nav, err := decimal.NewFromString(payload.UnitNav)
	if err != nil {
		return nil, fmt.Errorf("quote: realtime NAV %q for %s is not a number: %w", payload.UnitNav, code, err)
	}
	if !nav.IsPositive() {
		return nil, fmt.Errorf("quote: realtime NAV %q for %s is not positive", payload.UnitNav, code)
	}
	return &NetWorthEntry{Date: payload.NavDate, NetWorth: nav}, nil
}

func (s *quoteServiceImpl) FetchNetWorthHistory(code string, windowSize int) ([]NetWorthEntry, error) {
	if code == "" {
		return nil, fmt.Errorf("quote: fund code is empty")
	}
	if windowSize <= 0 {
		windowSize = 30
	}

	cacheKey := code + "#" + strconv.Itoa(windowSize)
	if cached, found := s.historyCache.Get(cacheKey); found {
		return cached.([]NetWorthEntry), nil
	}

	reqURL := fmt.Sprintf("%s?fundCode=%s&pageIndex=1&pageSize=%d", s.historyBaseURL, url.QueryEscape(code), windowSize)
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", quoteUserAgent)
	req.Header.Set("Referer", "https://fundf10.eastmoney.com/")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote: history request for %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote: history endpoint returned status %d for %s", resp.StatusCode, code)
	}

	var parsed historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("quote: decoding history response for %s: %w", code, err)
	}
	if parsed.ErrCode != 0 {
		return nil, fmt.Errorf("quote: history endpoint returned error code %d for %s", parsed.ErrCode, code)
	}

	entries := make([]NetWorthEntry, 0, len(parsed.Data.List))
	for _, row := range parsed.Data.List {
		if row.UnitNav == "" {
			continue // dividend/suspension rows carry no unit NAV
		}
		nav, err := decimal.NewFromString(row.UnitNav)
		if err != nil || !nav.IsPositive() {
			logger.L.Warn("Skipping malformed history NAV", "code", code, "date", row.Date, "value", row.UnitNav)
			continue
		}
		entries = append(entries, NetWorthEntry{Date: row.Date, NetWorth: nav})
	}

	s.historyCache.Set(cacheKey, entries, cache.DefaultExpiration)
	return entries, nil
}
