package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"StockScreener/internal/model"
)

// RESTProvider implements Provider against a self-hosted bar service
// exposing /api/v1/bars/{daily,weekly} and /api/v1/fundamentals.
type RESTProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTProvider creates a provider with optional proxy support.
func NewRESTProvider(baseURL, apiKey, proxyURL string, timeout time.Duration) *RESTProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RESTProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (p *RESTProvider) Name() string { return "rest" }

// restBar is the JSON shape returned by the bar endpoints.
type restBar struct {
	Timestamp int64    `json:"timestamp"`
	Open      *float64 `json:"open"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Close     *float64 `json:"close"`
	Volume    *float64 `json:"volume"`
	AdjClose  *float64 `json:"adj_close"`
}

// FetchBatch requests each symbol in turn and returns a (symbol, field)
// frame, or a flat one for a single symbol. A symbol that fails is left
// out of the frame.
func (p *RESTProvider) FetchBatch(ctx context.Context, symbols []string, period, interval string) (*Frame, error) {
	limit := periodDays(period)
	rows := make(map[string]*chartRows, len(symbols))
	var lastErr error
	for _, sym := range symbols {
		bars, err := p.fetchSeries(ctx, sym, limit, interval)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", sym, err)
			continue
		}
		rows[sym] = barsToRows(bars)
	}
	if len(rows) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("rest: no data returned")
		}
		return nil, lastErr
	}
	return buildFrame(symbols, rows), nil
}

func (p *RESTProvider) fetchSeries(ctx context.Context, symbol string, days int, interval string) ([]model.Bar, error) {
	if interval != "1wk" {
		return p.fetchBars(ctx, fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&limit=%d", p.BaseURL, url.QueryEscape(symbol), days))
	}
	weeks := days/7 + 1
	bars, err := p.fetchBars(ctx, fmt.Sprintf("%s/api/v1/bars/weekly?symbol=%s&limit=%d", p.BaseURL, url.QueryEscape(symbol), weeks))
	if err != nil {
		daily, dailyErr := p.fetchBars(ctx, fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&limit=%d", p.BaseURL, url.QueryEscape(symbol), days))
		if dailyErr != nil {
			return nil, fmt.Errorf("weekly fetch failed: %w; daily fallback also failed: %w", err, dailyErr)
		}
		return aggregateDailyToWeekly(daily), nil
	}
	return bars, nil
}

// FetchInfo returns the service's fundamentals document for symbol.
func (p *RESTProvider) FetchInfo(ctx context.Context, symbol string) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/api/v1/fundamentals?symbol=%s", p.BaseURL, url.QueryEscape(symbol))
	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch fundamentals: %w", err)
	}
	var info map[string]any
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode fundamentals: %w", err)
	}
	return info, nil
}

func (p *RESTProvider) fetchBars(ctx context.Context, endpoint string) ([]model.Bar, error) {
	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	var raw []restBar
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	bars := make([]model.Bar, 0, len(raw))
	for _, rb := range raw {
		if rb.Open == nil || rb.High == nil || rb.Low == nil || rb.Close == nil {
			continue
		}
		b := model.Bar{
			Date:     time.Unix(rb.Timestamp, 0).UTC(),
			Open:     *rb.Open,
			High:     *rb.High,
			Low:      *rb.Low,
			Close:    *rb.Close,
			AdjClose: rb.AdjClose,
		}
		if rb.Volume != nil {
			b.Volume = *rb.Volume
		}
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func (p *RESTProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func barsToRows(bars []model.Bar) *chartRows {
	r := &chartRows{fields: make(map[string][]float64)}
	hasAdj := false
	for _, b := range bars {
		if b.AdjClose != nil {
			hasAdj = true
			break
		}
	}
	for _, b := range bars {
		r.times = append(r.times, b.Date)
		r.fields[ColOpen] = append(r.fields[ColOpen], b.Open)
		r.fields[ColHigh] = append(r.fields[ColHigh], b.High)
		r.fields[ColLow] = append(r.fields[ColLow], b.Low)
		r.fields[ColClose] = append(r.fields[ColClose], b.Close)
		r.fields[ColVolume] = append(r.fields[ColVolume], b.Volume)
		if hasAdj {
			adj := nan
			if b.AdjClose != nil {
				adj = *b.AdjClose
			}
			r.fields[ColAdjClose] = append(r.fields[ColAdjClose], adj)
		}
	}
	return r
}

// aggregateDailyToWeekly converts daily bars into ISO-week bars.
func aggregateDailyToWeekly(daily []model.Bar) []model.Bar {
	if len(daily) == 0 {
		return nil
	}
	var weekly []model.Bar
	week := daily[0]
	week.AdjClose = nil
	wy, ww := week.Date.ISOWeek()

	for _, d := range daily[1:] {
		y, w := d.Date.ISOWeek()
		if y != wy || w != ww {
			weekly = append(weekly, week)
			week = d
			week.AdjClose = nil
			wy, ww = y, w
			continue
		}
		if d.High > week.High {
			week.High = d.High
		}
		if d.Low < week.Low {
			week.Low = d.Low
		}
		week.Close = d.Close
		week.Volume += d.Volume
	}
	return append(weekly, week)
}

// periodDays converts a provider period ("5d", "1mo", "1y", "ytd", "max")
// into an approximate number of calendar days.
func periodDays(period string) int {
	period = strings.ToLower(strings.TrimSpace(period))
	switch period {
	case "", "1y":
		return 365
	case "ytd":
		now := time.Now()
		return now.YearDay()
	case "max":
		return 365 * 30
	}
	unit := strings.TrimLeft(period, "0123456789")
	n, err := strconv.Atoi(strings.TrimSuffix(period, unit))
	if err != nil || n <= 0 {
		return 365
	}
	switch unit {
	case "d":
		return n
	case "wk":
		return n * 7
	case "mo":
		return n * 31
	case "y":
		return n * 365
	}
	return 365
}
