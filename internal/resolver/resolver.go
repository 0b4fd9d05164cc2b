package resolver

import (
	"context"
	"time"

	"StockScreener/internal/cache"
	"StockScreener/internal/logger"
	"StockScreener/internal/model"
	"StockScreener/internal/store"
)

const (
	DefaultPeriod         = "1y"
	DefaultInterval       = "1d"
	DefaultRefreshWorkers = 4
	DefaultRefreshQueue   = 256

	PricePeriod   = "1d"
	PriceInterval = "1m"
)

// RemoteFetcher is the cold tier. Symbols it cannot serve are absent from
// the returned map. collector.BatchFetcher implements it.
type RemoteFetcher interface {
	Fetch(ctx context.Context, symbols []string, period, interval string) map[string]*model.StockData
}

// Policy controls freshness for one resolution.
type Policy struct {
	ForceRefresh bool
	MaxAge       time.Duration
	Period       string
	Interval     string
}

func (p Policy) withDefaults() Policy {
	if p.MaxAge <= 0 {
		p.MaxAge = store.DefaultMaxAge
	}
	if p.Period == "" {
		p.Period = DefaultPeriod
	}
	if p.Interval == "" {
		p.Interval = DefaultInterval
	}
	return p
}

// Source names the tier that served a symbol.
type Source string

const (
	SourceHot  Source = "hot"
	SourceWarm Source = "warm"
	SourceCold Source = "cold"
)

type Options struct {
	TTL            time.Duration
	RefreshWorkers int
	RefreshQueue   int
}

// Resolver resolves symbols through the hot cache, the warm store and the
// remote provider, in that order.
type Resolver struct {
	hot       cache.HotCache
	warm      store.WarmStore
	remote    RemoteFetcher
	refresher *Refresher
	ttl       time.Duration
	log       *logger.Entry
}

func New(hot cache.HotCache, warm store.WarmStore, remote RemoteFetcher, opts Options, log *logger.Log) *Resolver {
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	r := &Resolver{
		hot:    hot,
		warm:   warm,
		remote: remote,
		ttl:    opts.TTL,
		log:    log.WithComponent("resolver"),
	}
	r.refresher = newRefresher(opts.RefreshWorkers, opts.RefreshQueue, r.refreshOne, r.log.WithComponent("refresher"))
	return r
}

// Start runs the background refresh workers until Stop or ctx is done.
func (r *Resolver) Start(ctx context.Context) { r.refresher.Start(ctx) }

func (r *Resolver) Stop() { r.refresher.Stop() }

func (r *Resolver) Refresher() *Refresher { return r.refresher }

// Resolve returns the best data available for each symbol. Symbols no tier
// can serve are left out. A warm hit is returned as is and a background
// refresh is queued for it; symbols missing from both local tiers are
// fetched before Resolve returns.
func (r *Resolver) Resolve(ctx context.Context, symbols []string, p Policy) map[string]*model.StockData {
	p = p.withDefaults()
	start := time.Now()
	out := make(map[string]*model.StockData, len(symbols))
	counts := map[Source]int{}

	var cold []string
	for _, sym := range symbols {
		sym = model.CanonicalSymbol(sym)
		if _, dup := out[sym]; dup || sym == "" {
			continue
		}
		if p.ForceRefresh {
			cold = append(cold, sym)
			continue
		}
		if data := r.lookupHot(ctx, sym); data != nil {
			out[sym] = data
			counts[SourceHot]++
			continue
		}
		if data := r.lookupWarm(ctx, sym, p.MaxAge); data != nil {
			out[sym] = data
			counts[SourceWarm]++
			r.refresher.Submit(sym, p)
			continue
		}
		cold = append(cold, sym)
	}

	if len(cold) > 0 {
		for sym, data := range r.fetchCold(ctx, cold, p) {
			out[sym] = data
			counts[SourceCold]++
		}
	}

	r.log.Duration("resolve", time.Since(start), logger.Fields{
		"requested": len(symbols),
		"resolved":  len(out),
		"hot":       counts[SourceHot],
		"warm":      counts[SourceWarm],
		"cold":      counts[SourceCold],
		"force":     p.ForceRefresh,
	})
	return out
}

func (r *Resolver) lookupHot(ctx context.Context, sym string) *model.StockData {
	data, ok, err := r.hot.Get(ctx, sym)
	if err != nil {
		r.log.WithError(err).WithFields(logger.Fields{"symbol": sym}).Warn("hot cache read failed")
		return nil
	}
	if !ok || data.Series.Len() == 0 {
		return nil
	}
	return data
}

func (r *Resolver) lookupWarm(ctx context.Context, sym string, maxAge time.Duration) *model.StockData {
	data, err := r.warm.Load(ctx, sym, maxAge)
	if err != nil {
		r.log.WithError(err).WithFields(logger.Fields{"symbol": sym}).Warn("warm store read failed")
		return nil
	}
	if data == nil || data.Series.Len() == 0 {
		return nil
	}
	return data
}

// fetchCold pulls symbols from the remote tier and writes each one through
// to both local tiers before it is returned.
func (r *Resolver) fetchCold(ctx context.Context, symbols []string, p Policy) map[string]*model.StockData {
	fetched := r.remote.Fetch(ctx, symbols, p.Period, p.Interval)
	for _, data := range fetched {
		r.writeThrough(ctx, data)
	}
	if missing := len(symbols) - len(fetched); missing > 0 {
		r.log.WithFields(logger.Fields{"requested": len(symbols), "missing": missing}).Warn("cold fetch incomplete")
	}
	return fetched
}

// Refresh cold-fetches symbols regardless of cache state.
func (r *Resolver) Refresh(ctx context.Context, symbols []string, p Policy) map[string]*model.StockData {
	p.ForceRefresh = true
	return r.Resolve(ctx, symbols, p)
}

func (r *Resolver) writeThrough(ctx context.Context, data *model.StockData) {
	if err := r.warm.Save(ctx, data); err != nil {
		r.log.WithError(err).WithFields(logger.Fields{"symbol": data.Symbol}).Error("warm store write failed")
	}
	if err := r.hot.Set(ctx, data.Symbol, data, r.ttl); err != nil {
		r.log.WithError(err).WithFields(logger.Fields{"symbol": data.Symbol}).Warn("hot cache write failed")
	}
}

func (r *Resolver) refreshOne(ctx context.Context, sym string, p Policy) {
	fetched := r.fetchCold(ctx, []string{sym}, p)
	if _, ok := fetched[sym]; ok {
		r.log.WithFields(logger.Fields{"symbol": sym}).Debug("background refresh done")
	}
}

// LivePrice returns the cached intraday price for symbol, if any.
func (r *Resolver) LivePrice(ctx context.Context, sym string) (float64, bool) {
	price, ok, err := r.hot.GetPrice(ctx, sym)
	if err != nil {
		r.log.WithError(err).WithFields(logger.Fields{"symbol": sym}).Debug("price cache read failed")
		return 0, false
	}
	return price, ok
}

// UpdatePrices fetches today's minute bars and caches each symbol's latest
// close under its price key. It returns the number of prices written.
func (r *Resolver) UpdatePrices(ctx context.Context, symbols []string, ttl time.Duration) int {
	fetched := r.remote.Fetch(ctx, symbols, PricePeriod, PriceInterval)
	n := 0
	for sym, data := range fetched {
		last, ok := data.Series.Last()
		if !ok {
			continue
		}
		if err := r.hot.SetPrice(ctx, sym, last.Close, ttl); err != nil {
			r.log.WithError(err).WithFields(logger.Fields{"symbol": sym}).Warn("price cache write failed")
			continue
		}
		n++
	}
	r.log.WithFields(logger.Fields{"requested": len(symbols), "updated": n}).Info("live prices updated")
	return n
}
