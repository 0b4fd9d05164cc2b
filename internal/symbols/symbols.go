package symbols

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"StockScreener/internal/logger"
	"StockScreener/internal/model"

	"golang.org/x/sync/singleflight"
)

var ErrUnknownIndex = errors.New("unknown index")

const SP500URL = "https://datahub.io/core/s-and-p-500-companies/r/constituents.csv"

var dow30 = []string{
	"AAPL", "AMGN", "AMZN", "AXP", "BA", "CAT", "CRM", "CSCO", "CVX", "DIS",
	"GS", "HD", "HON", "IBM", "JNJ", "JPM", "KO", "MCD", "MMM", "MRK",
	"MSFT", "NKE", "NVDA", "PG", "SHW", "TRV", "UNH", "V", "VZ", "WMT",
}

// Source describes where an index's constituents come from. The first
// non-empty of Symbols, File and URL is used.
type Source struct {
	Symbols []string `yaml:"symbols"`
	File    string   `yaml:"file"`
	URL     string   `yaml:"url"`
}

// Registry resolves index names to canonical symbol lists. Lists read from
// files or URLs are loaded once and kept.
type Registry struct {
	sources map[string]Source
	client  *http.Client

	mu     sync.Mutex
	loaded map[string][]string
	group  singleflight.Group

	log *logger.Entry
}

// NewRegistry merges configured sources over the built-in dow30 and sp500
// entries.
func NewRegistry(sources map[string]Source, client *http.Client, log *logger.Log) *Registry {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	all := map[string]Source{
		"dow30": {Symbols: dow30},
		"sp500": {URL: SP500URL},
	}
	for name, src := range sources {
		all[strings.ToLower(name)] = src
	}
	return &Registry{
		sources: all,
		client:  client,
		loaded:  make(map[string][]string),
		log:     log.WithComponent("symbols"),
	}
}

// Indexes returns the known index names, sorted.
func (r *Registry) Indexes() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Symbols returns the constituents of the named index.
func (r *Registry) Symbols(ctx context.Context, name string) ([]string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	src, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownIndex)
	}
	if len(src.Symbols) > 0 {
		return canonical(src.Symbols), nil
	}

	r.mu.Lock()
	list, ok := r.loaded[name]
	r.mu.Unlock()
	if ok {
		return list, nil
	}

	// Concurrent lookups of one index share a single load; other indexes
	// are not blocked by it.
	v, err, _ := r.group.Do(name, func() (any, error) {
		return r.load(ctx, name, src)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (r *Registry) load(ctx context.Context, name string, src Source) ([]string, error) {
	r.mu.Lock()
	list, ok := r.loaded[name]
	r.mu.Unlock()
	if ok {
		return list, nil
	}

	var err error
	switch {
	case src.File != "":
		list, err = r.readFile(src.File)
	case src.URL != "":
		list, err = r.download(ctx, src.URL)
	default:
		return nil, fmt.Errorf("index %q has no source", name)
	}
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", name, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("load index %s: no symbols", name)
	}

	r.mu.Lock()
	r.loaded[name] = list
	r.mu.Unlock()
	r.log.WithFields(logger.Fields{"index": name, "symbols": len(list)}).Info("index loaded")
	return list, nil
}

func (r *Registry) readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readList(f)
}

func (r *Registry) download(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return readList(resp.Body)
}

// readList accepts a CSV whose header has a Symbol (or Ticker) column, or
// a plain list with one symbol per line.
func readList(rd io.Reader) ([]string, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse symbol list: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "symbol", "ticker":
			col = i
		}
	}
	start := 1
	if col < 0 {
		col, start = 0, 0
	}

	var out []string
	for _, row := range rows[start:] {
		if col < len(row) {
			out = append(out, row[col])
		}
	}
	return canonical(out), nil
}

// ParseSymbolList splits an ad-hoc list such as "AAPL, msft brk.b".
func ParseSymbolList(s string) []string {
	return canonical(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == ';'
	}))
}

// canonical normalizes and de-duplicates symbols, keeping first-seen order.
func canonical(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = model.CanonicalSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
