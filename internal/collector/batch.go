package collector

import (
	"context"
	"time"

	"StockScreener/internal/logger"
	"StockScreener/internal/model"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize       = 20
	DefaultBatchPause      = time.Second
	DefaultMetadataWorkers = 4
)

// BatchFetcher is the cold tier: it pulls symbols from a Provider in
// fixed-size batches, normalizes every symbol and attaches best-effort
// fundamentals.
type BatchFetcher struct {
	provider        Provider
	batchSize       int
	limiter         *rate.Limiter
	metadataWorkers int
	now             func() time.Time
	log             *logger.Entry
}

// BatchOptions tunes a BatchFetcher. A zero BatchSize or MetadataWorkers
// takes the default; a zero BatchPause disables pacing.
type BatchOptions struct {
	BatchSize       int
	BatchPause      time.Duration
	MetadataWorkers int
}

func NewBatchFetcher(p Provider, opts BatchOptions, log *logger.Log) *BatchFetcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchPause < 0 {
		opts.BatchPause = 0
	}
	if opts.MetadataWorkers <= 0 {
		opts.MetadataWorkers = DefaultMetadataWorkers
	}
	limit := rate.Inf
	if opts.BatchPause > 0 {
		limit = rate.Every(opts.BatchPause)
	}
	return &BatchFetcher{
		provider:        p,
		batchSize:       opts.BatchSize,
		limiter:         rate.NewLimiter(limit, 1),
		metadataWorkers: opts.MetadataWorkers,
		now:             time.Now,
		log:             log.WithComponent("collector").WithFields(logger.Fields{"provider": p.Name()}),
	}
}

// Fetch returns data for every symbol that produced a usable series.
// Failures are logged and leave the symbol out; nothing is returned as an
// error.
func (f *BatchFetcher) Fetch(ctx context.Context, symbols []string, period, interval string) map[string]*model.StockData {
	out := make(map[string]*model.StockData, len(symbols))
	batches := partition(symbols, f.batchSize)
	for i, batch := range batches {
		if err := f.limiter.Wait(ctx); err != nil {
			f.log.WithError(err).Warn("batch wait cancelled")
			break
		}
		for sym, data := range f.fetchBatch(ctx, batch, period, interval) {
			out[sym] = data
		}
		f.log.WithFields(logger.Fields{
			"batch": i + 1, "batches": len(batches), "symbols": len(batch),
		}).Debug("batch processed")
	}
	return out
}

func (f *BatchFetcher) fetchBatch(ctx context.Context, batch []string, period, interval string) map[string]*model.StockData {
	frame, err := f.provider.FetchBatch(ctx, batch, period, interval)
	if err != nil {
		f.log.WithError(err).WithFields(logger.Fields{"symbols": batch}).Warn("batch fetch failed")
		return nil
	}

	series := make(map[string]*model.PriceSeries, len(batch))
	for _, sym := range batch {
		s, err := f.extract(frame, sym, len(batch) == 1)
		if err != nil {
			f.log.WithError(err).WithFields(logger.Fields{"symbol": sym}).Warn("skipping symbol")
			continue
		}
		series[sym] = s
	}

	snapshots := f.fetchInfo(ctx, series)
	out := make(map[string]*model.StockData, len(series))
	for sym, s := range series {
		out[sym] = &model.StockData{
			Symbol:      sym,
			Snapshot:    snapshots[sym],
			Series:      s,
			LastUpdated: f.now(),
		}
	}
	return out
}

func (f *BatchFetcher) extract(frame *Frame, symbol string, single bool) (*model.PriceSeries, error) {
	sub := frame
	if !single {
		sub = frame.Select(symbol)
	}
	normalized, err := NormalizeFrame(sub, symbol, f.log)
	if err != nil {
		return nil, err
	}
	return FrameToSeries(normalized, symbol)
}

// fetchInfo gathers fundamentals concurrently. A failed lookup leaves a
// snapshot holding only the symbol.
func (f *BatchFetcher) fetchInfo(ctx context.Context, series map[string]*model.PriceSeries) map[string]model.Snapshot {
	results := make(map[string]model.Snapshot, len(series))
	type item struct {
		symbol string
		snap   model.Snapshot
	}
	ch := make(chan item, len(series))

	var g errgroup.Group
	g.SetLimit(f.metadataWorkers)
	for sym := range series {
		sym := sym
		g.Go(func() error {
			snap := model.Snapshot{"symbol": model.String(sym)}
			raw, err := f.provider.FetchInfo(ctx, sym)
			if err != nil {
				f.log.WithError(err).WithFields(logger.Fields{"symbol": sym}).Debug("metadata unavailable")
			} else {
				snap = model.SnapshotFromRaw(raw)
				snap["symbol"] = model.String(sym)
			}
			ch <- item{sym, snap}
			return nil
		})
	}
	_ = g.Wait()
	close(ch)
	missing := 0
	for it := range ch {
		results[it.symbol] = it.snap
		if len(it.snap) == 1 {
			missing++
		}
	}
	if missing > 0 && missing == len(results) {
		f.log.WithFields(logger.Fields{"symbols": missing}).Warn("metadata unavailable for every symbol in batch")
	}
	return results
}

func partition(symbols []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(symbols); start += size {
		end := start + size
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[start:end])
	}
	return out
}
