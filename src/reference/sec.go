// src/reference/sec.go
package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/kaizhangyahoo/st-my-investment/src/logger"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// secCompanyEntry is one value of the SEC company_tickers.json object.
// The feed is keyed by row index ("0", "1", ...), so only the values matter.
type secCompanyEntry struct {
	CIK    json.Number `json:"cik_str"`
	Ticker string      `json:"ticker"`
	Title  string      `json:"title"`
}

// SECAdapter fetches the SEC's bulk company→ticker table. Titles are
// normalized (periods and commas stripped) so exact-match lookups are not
// defeated by formatting differences alone.
type SECAdapter struct {
	httpClient *http.Client
	url        string
	limiter    *rate.Limiter
}

// NewSECAdapter creates the bulk reference adapter. The SEC throttles
// aggressive clients, so requests go through a limiter and carry a
// browser-like User-Agent.
func NewSECAdapter(url string, timeout time.Duration) *SECAdapter {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &SECAdapter{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		url:     url,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Fetch retrieves the full SEC table. Any network or parse failure returns
// an empty table together with the error; callers treat that as "fewer names
// resolvable here", never as fatal.
func (a *SECAdapter) Fetch(ctx context.Context) (Table, error) {
	empty := Table{Entries: map[string]string{}, Source: "sec"}

	if err := a.limiter.Wait(ctx); err != nil {
		return empty, fmt.Errorf("waiting for SEC request slot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return empty, fmt.Errorf("building SEC request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		logger.L.Warn("SEC ticker fetch failed", "url", a.url, "error", err)
		return empty, fmt.Errorf("fetching SEC tickers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.L.Warn("SEC ticker fetch returned non-OK status", "url", a.url, "status", resp.StatusCode)
		return empty, fmt.Errorf("SEC tickers endpoint returned status %d", resp.StatusCode)
	}

	var payload map[string]secCompanyEntry
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logger.L.Warn("SEC ticker response undecodable", "url", a.url, "error", err)
		return empty, fmt.Errorf("decoding SEC tickers: %w", err)
	}

	entries := make(map[string]string, len(payload))
	for _, company := range payload {
		title := normalizeTitle(company.Title)
		if title == "" || company.Ticker == "" {
			continue
		}
		entries[title] = company.Ticker
	}

	logger.L.Info("SEC ticker table fetched", "entries", len(entries))
	return Table{Entries: entries, Source: "sec"}, nil
}

// normalizeTitle strips the punctuation that keeps SEC titles from comparing
// equal to broker display names ("Apple Inc." vs "Apple Inc").
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, ".", "")
	title = strings.ReplaceAll(title, ",", "")
	return strings.TrimSpace(title)
}
