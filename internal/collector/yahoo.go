package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	yahooChartURL   = "https://query1.finance.yahoo.com"
	yahooSummaryURL = "https://query2.finance.yahoo.com"
	yahooCookieURL  = "https://fc.yahoo.com"
	yahooCrumbURL   = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	yahooModules    = "price,summaryProfile,summaryDetail,defaultKeyStatistics,financialData"
)

// YahooProvider implements Provider on the public Yahoo Finance chart and
// quoteSummary endpoints.
type YahooProvider struct {
	Client      *http.Client
	ChartURL    string
	SummaryURL  string
	CookieURL   string
	CrumbURL    string
	Concurrency int

	mu    sync.Mutex
	crumb string
}

// NewYahooProvider creates a provider with optional proxy support.
func NewYahooProvider(proxyURL string, timeout time.Duration) *YahooProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// quoteSummary only answers with a session cookie and matching crumb.
	jar, _ := cookiejar.New(nil)
	return &YahooProvider{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			Jar:       jar,
		},
		ChartURL:    yahooChartURL,
		SummaryURL:  yahooSummaryURL,
		CookieURL:   yahooCookieURL,
		CrumbURL:    yahooCrumbURL,
		Concurrency: 4,
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

// yahooChart is the response structure from the chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []interface{} `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// toFloat maps JSON nulls and non-numbers to NaN.
func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return math.NaN()
	}
}

func at(values []interface{}, i int) float64 {
	if i >= len(values) {
		return math.NaN()
	}
	return toFloat(values[i])
}

type chartRows struct {
	times  []time.Time
	fields map[string][]float64
}

// FetchBatch downloads each symbol's chart concurrently and assembles one
// frame. Symbols whose download fails are left out; the batch fails only
// when every symbol does.
func (p *YahooProvider) FetchBatch(ctx context.Context, symbols []string, period, interval string) (*Frame, error) {
	var (
		mu      sync.Mutex
		rows    = make(map[string]*chartRows, len(symbols))
		lastErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Concurrency, 1))
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			r, err := p.fetchChart(gctx, sym, period, interval)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = fmt.Errorf("%s: %w", sym, err)
				return nil
			}
			rows[sym] = r
			return nil
		})
	}
	_ = g.Wait()
	if len(rows) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("yahoo: no data returned")
		}
		return nil, lastErr
	}
	return buildFrame(symbols, rows), nil
}

func buildFrame(symbols []string, rows map[string]*chartRows) *Frame {
	seen := make(map[int64]time.Time)
	for _, r := range rows {
		for _, t := range r.times {
			seen[t.Unix()] = t
		}
	}
	index := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		index = append(index, t)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })
	pos := make(map[int64]int, len(index))
	for i, t := range index {
		pos[t.Unix()] = i
	}

	frame := NewFrame(index)
	for _, sym := range symbols {
		r, ok := rows[sym]
		if !ok {
			continue
		}
		for _, field := range canonicalColumns {
			src, ok := r.fields[field]
			if !ok {
				continue
			}
			col := make([]float64, len(index))
			for i := range col {
				col[i] = nan
			}
			for i, t := range r.times {
				col[pos[t.Unix()]] = src[i]
			}
			label := []string{sym, field}
			if len(symbols) == 1 {
				label = []string{field}
			}
			frame.AddColumn(label, col)
		}
	}
	return frame
}

func (p *YahooProvider) fetchChart(ctx context.Context, symbol, period, interval string) (*chartRows, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		p.ChartURL, url.PathEscape(symbol), url.QueryEscape(interval), url.QueryEscape(period))

	body, err := p.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	daily := isDailyOrLonger(interval)
	r := &chartRows{fields: map[string][]float64{
		ColOpen: nil, ColHigh: nil, ColLow: nil, ColClose: nil, ColVolume: nil,
	}}
	var adj []interface{}
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
		r.fields[ColAdjClose] = nil
	}

	for i, ts := range result.Timestamp {
		t := time.Unix(ts, 0).UTC()
		if daily {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		r.times = append(r.times, t)
		r.fields[ColOpen] = append(r.fields[ColOpen], at(quote.Open, i))
		r.fields[ColHigh] = append(r.fields[ColHigh], at(quote.High, i))
		r.fields[ColLow] = append(r.fields[ColLow], at(quote.Low, i))
		r.fields[ColClose] = append(r.fields[ColClose], at(quote.Close, i))
		r.fields[ColVolume] = append(r.fields[ColVolume], at(quote.Volume, i))
		if adj != nil {
			r.fields[ColAdjClose] = append(r.fields[ColAdjClose], at(adj, i))
		}
	}
	return r, nil
}

func isDailyOrLonger(interval string) bool {
	return strings.HasSuffix(interval, "d") || strings.HasSuffix(interval, "wk") || strings.HasSuffix(interval, "mo")
}

// yahooSummary is the quoteSummary envelope. Module fields are either
// {"raw": ..., "fmt": ...} objects or plain scalars.
type yahooSummary struct {
	QuoteSummary struct {
		Result []map[string]map[string]json.RawMessage `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// FetchInfo returns a flat field map (marketCap, trailingPE, sector, ...).
// A rejected crumb is renewed once before giving up.
func (p *YahooProvider) FetchInfo(ctx context.Context, symbol string) (map[string]any, error) {
	body, err := p.fetchSummary(ctx, symbol)
	var se *statusError
	if errors.As(err, &se) && se.unauthorized() {
		p.resetCrumb()
		body, err = p.fetchSummary(ctx, symbol)
	}
	if err != nil {
		return nil, err
	}
	var summary yahooSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("yahoo decode summary: %w", err)
	}
	if summary.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", summary.QuoteSummary.Error.Description)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no summary for %s", symbol)
	}

	info := make(map[string]any)
	for _, module := range strings.Split(yahooModules, ",") {
		fields, ok := summary.QuoteSummary.Result[0][module]
		if !ok {
			continue
		}
		for key, raw := range fields {
			if _, exists := info[key]; exists {
				continue
			}
			if v, ok := summaryScalar(raw); ok {
				info[key] = v
			}
		}
	}
	if _, ok := info["priceToSales"]; !ok {
		if v, ok := info["priceToSalesTrailing12Months"]; ok {
			info["priceToSales"] = v
		}
	}
	if _, ok := info["currentPrice"]; !ok {
		if v, ok := info["regularMarketPrice"]; ok {
			info["currentPrice"] = v
		}
	}
	return info, nil
}

func (p *YahooProvider) fetchSummary(ctx context.Context, symbol string) ([]byte, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s", p.SummaryURL, url.PathEscape(symbol), yahooModules)
	crumb, err := p.sessionCrumb(ctx)
	if err != nil {
		return nil, err
	}
	if crumb != "" {
		u += "&crumb=" + url.QueryEscape(crumb)
	}
	return p.get(ctx, u)
}

// sessionCrumb returns the cached crumb, running the cookie and crumb
// handshake on first use. No CrumbURL means no handshake.
func (p *YahooProvider) sessionCrumb(ctx context.Context) (string, error) {
	if p.CrumbURL == "" {
		return "", nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.crumb != "" {
		return p.crumb, nil
	}

	if p.CookieURL != "" {
		// fc.yahoo.com answers 404 but still sets the session cookie.
		if _, err := p.get(ctx, p.CookieURL); err != nil {
			var se *statusError
			if !errors.As(err, &se) {
				return "", fmt.Errorf("yahoo cookie: %w", err)
			}
		}
	}
	body, err := p.get(ctx, p.CrumbURL)
	if err != nil {
		return "", fmt.Errorf("yahoo crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.ContainsAny(crumb, "<{") {
		return "", fmt.Errorf("yahoo crumb: unexpected body %q", truncateBody(crumb))
	}
	p.crumb = crumb
	return crumb, nil
}

func (p *YahooProvider) resetCrumb() {
	p.mu.Lock()
	p.crumb = ""
	p.mu.Unlock()
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("yahoo: status %d, body: %s", e.code, e.body)
}

func (e *statusError) unauthorized() bool {
	return e.code == http.StatusUnauthorized || e.code == http.StatusForbidden
}

func truncateBody(s string) string {
	if len(s) > 64 {
		return s[:64]
	}
	return s
}

func summaryScalar(raw json.RawMessage) (any, bool) {
	var wrapped struct {
		Raw *float64 `json:"raw"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Raw != nil {
		return *wrapped.Raw, true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case string, float64:
		return v, true
	}
	return nil, false
}

func (p *YahooProvider) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: truncateBody(string(body))}
	}
	return body, nil
}
