package screener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"StockScreener/internal/calculator"
	"StockScreener/internal/criteria"
	"StockScreener/internal/logger"
	"StockScreener/internal/model"
	"StockScreener/internal/resolver"
	"StockScreener/internal/store"
)

var (
	ErrNoCriteria     = errors.New("no criteria supplied")
	ErrUnknownKind    = errors.New("unknown screen kind")
	ErrSymbolNotFound = errors.New("no data for symbol")
)

// DataSource resolves market data. *resolver.Resolver implements it.
type DataSource interface {
	Resolve(ctx context.Context, symbols []string, p resolver.Policy) map[string]*model.StockData
	LivePrice(ctx context.Context, symbol string) (float64, bool)
}

// IndexSource maps index names to symbols. *symbols.Registry implements it.
type IndexSource interface {
	Symbols(ctx context.Context, name string) ([]string, error)
}

type Options struct {
	// ResultTTL enables the screening result cache when positive.
	ResultTTL time.Duration
	// DefaultIndex is used when a request names neither an index nor symbols.
	DefaultIndex string
}

// Screener runs fundamental, technical and combined screens over resolved
// market data.
type Screener struct {
	data      DataSource
	indexes   IndexSource
	results   store.WarmStore
	resultTTL time.Duration
	index     string
	now       func() time.Time
	log       *logger.Entry
}

func New(data DataSource, indexes IndexSource, results store.WarmStore, opts Options, log *logger.Log) *Screener {
	if results == nil {
		results = store.NewNoopStore()
	}
	if opts.DefaultIndex == "" {
		opts.DefaultIndex = "sp500"
	}
	return &Screener{
		data:      data,
		indexes:   indexes,
		results:   results,
		resultTTL: opts.ResultTTL,
		index:     opts.DefaultIndex,
		now:       time.Now,
		log:       log.WithComponent("screener"),
	}
}

// ScreenFundamental returns the symbols whose snapshot satisfies set.
func (s *Screener) ScreenFundamental(ctx context.Context, symbols []string, set criteria.Set, limit int, p resolver.Policy) []model.ScreeningResult {
	data := s.data.Resolve(ctx, symbols, p)
	return rank(s.fundamentalPass(ctx, data, set), limit)
}

// ScreenTechnical returns the symbols whose latest indicator values satisfy
// set.
func (s *Screener) ScreenTechnical(ctx context.Context, symbols []string, set criteria.Set, limit int, p resolver.Policy) []model.ScreeningResult {
	data := s.data.Resolve(ctx, symbols, p)
	return rank(s.technicalPass(ctx, data, set), limit)
}

// ScreenCombined runs the technical pass only over symbols that passed the
// fundamental pass.
func (s *Screener) ScreenCombined(ctx context.Context, symbols []string, fundamental, technical criteria.Set, limit int, p resolver.Policy) []model.ScreeningResult {
	data := s.data.Resolve(ctx, symbols, p)
	passed := s.fundamentalPass(ctx, data, fundamental)

	gated := make(map[string]*model.StockData, len(passed))
	for _, r := range passed {
		gated[r.Symbol] = data[r.Symbol]
	}
	s.log.WithFields(logger.Fields{
		"resolved": len(data), "fundamental_matches": len(passed),
	}).Debug("combined screen gated")
	return rank(s.technicalPass(ctx, gated, technical), limit)
}

func (s *Screener) fundamentalPass(ctx context.Context, data map[string]*model.StockData, set criteria.Set) []model.ScreeningResult {
	var out []model.ScreeningResult
	for _, sym := range sortedKeys(data) {
		snap := s.liveSnapshot(ctx, sym, data[sym].Snapshot)
		if criteria.MatchFundamental(snap, set) {
			out = append(out, model.NewScreeningResult(sym, snap))
		}
	}
	return out
}

func (s *Screener) technicalPass(ctx context.Context, data map[string]*model.StockData, set criteria.Set) []model.ScreeningResult {
	var out []model.ScreeningResult
	for _, sym := range sortedKeys(data) {
		d := data[sym]
		values, ok := criteria.MatchTechnical(d.Series, set)
		if !ok {
			continue
		}
		r := model.NewScreeningResult(sym, s.liveSnapshot(ctx, sym, d.Snapshot))
		if r.Price == 0 {
			if last, ok := d.Series.Last(); ok {
				r.Price = last.Close
			}
		}
		r.Indicators = values
		out = append(out, r)
	}
	return out
}

// liveSnapshot overlays the cached intraday price on a copy of snap.
func (s *Screener) liveSnapshot(ctx context.Context, sym string, snap model.Snapshot) model.Snapshot {
	price, ok := s.data.LivePrice(ctx, sym)
	if !ok {
		return snap
	}
	live := snap.Clone()
	live["currentPrice"] = model.Number(price)
	return live
}

// Indicators returns every defined indicator value for one symbol.
func (s *Screener) Indicators(ctx context.Context, symbol string, p resolver.Policy) (model.IndicatorValues, error) {
	symbol = model.CanonicalSymbol(symbol)
	data, ok := s.data.Resolve(ctx, []string{symbol}, p)[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)
	}
	return calculator.Latest(data.Series), nil
}

// rank orders by descending market cap, then symbol, and applies limit.
func rank(results []model.ScreeningResult, limit int) []model.ScreeningResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].MarketCap != results[j].MarketCap {
			return results[i].MarketCap > results[j].MarketCap
		}
		return results[i].Symbol < results[j].Symbol
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []model.ScreeningResult{}
	}
	return results
}

func sortedKeys(data map[string]*model.StockData) []string {
	keys := make([]string, 0, len(data))
	for k, d := range data {
		if d != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func ListIndicatorNames() []string { return calculator.Names() }

func ListFundamentalFields() []string { return criteria.FundamentalFields() }

func Operators() []string { return criteria.Operators() }
