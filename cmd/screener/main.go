package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StockScreener/internal/api"
	"StockScreener/internal/cache"
	"StockScreener/internal/collector"
	"StockScreener/internal/config"
	"StockScreener/internal/logger"
	"StockScreener/internal/report"
	"StockScreener/internal/resolver"
	"StockScreener/internal/scheduler"
	"StockScreener/internal/screener"
	"StockScreener/internal/store"
	"StockScreener/internal/symbols"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const defaultCriteria = "market_cap>1000000000,pe_ratio<30"

type options struct {
	mode        string
	index       string
	symbols     string
	fundamental string
	technical   string
	limit       int
	output      string
	outputFile  string
	reload      bool
	period      string
	interval    string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.mode, "mode", "cli", "run mode: cli or server")
	flag.StringVar(&o.index, "index", "sp500", "index to screen (sp500, nasdaq100, dow30 or a configured name)")
	flag.StringVar(&o.symbols, "symbols", "", "comma-separated symbols, overrides -index")
	flag.StringVar(&o.fundamental, "fundamental", "", `fundamental criteria, e.g. "market_cap>1000000000,pe_ratio<20"`)
	flag.StringVar(&o.technical, "technical", "", `technical criteria, e.g. "rsi<30,macd_hist>0"`)
	flag.IntVar(&o.limit, "limit", 20, "maximum number of results (0 for all)")
	flag.StringVar(&o.output, "output", report.FormatConsole, "output format: console, json or csv")
	flag.StringVar(&o.outputFile, "output-file", "", "write json/csv output to this file")
	flag.BoolVar(&o.reload, "reload", false, "bypass caches and fetch fresh data")
	flag.StringVar(&o.period, "period", "1mo", "history period (1mo, 3mo, 6mo, 1y, ...)")
	flag.StringVar(&o.interval, "interval", "1d", "bar interval (1d, 1wk, ...)")
	flag.Parse()
	return o
}

func main() {
	_ = godotenv.Load()
	opts := parseFlags()

	log := logger.New()
	entry := log.WithComponent("main")

	cfgPath := config.DefaultPath
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		entry.WithError(err).Fatal("load config")
	}
	if err := cfg.Validate(); err != nil {
		entry.WithError(err).Fatal("config validation")
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		entry.WithError(err).Fatal("configure logging")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hot := openHotCache(ctx, cfg, entry)
	defer hot.Close()

	warm := openWarmStore(cfg, log, entry)
	defer warm.Close()

	provider := newProvider(cfg)
	entry.WithFields(logger.Fields{"provider": provider.Name()}).Info("data source selected")
	fetcher := collector.NewBatchFetcher(provider, collector.BatchOptions{
		BatchSize:       cfg.DataSource.BatchSize,
		BatchPause:      cfg.DataSource.BatchPause,
		MetadataWorkers: cfg.DataSource.MetadataWorkers,
	}, log)

	res := resolver.New(hot, warm, fetcher, resolver.Options{
		TTL:            cfg.Cache.TTL,
		RefreshWorkers: cfg.Screening.RefreshWorkers,
		RefreshQueue:   cfg.Screening.RefreshQueue,
	}, log)
	res.Start(ctx)
	defer res.Stop()

	registry := symbols.NewRegistry(cfg.Indexes, httpClient(cfg), log)
	sc := screener.New(res, registry, warm, screener.Options{
		ResultTTL:    cfg.Screening.ResultTTL,
		DefaultIndex: cfg.Screening.DefaultIndex,
	}, log)

	switch opts.mode {
	case "cli":
		if err := runCLI(ctx, sc, cfg, opts, log); err != nil {
			entry.WithError(err).Error("screen failed")
			os.Exit(1)
		}
	case "server":
		runServer(ctx, cancel, cfg, sc, res, registry, warm, log)
	default:
		entry.Fatalf("unknown mode %q", opts.mode)
	}
}

func openHotCache(ctx context.Context, cfg *config.Config, entry *logger.Entry) cache.HotCache {
	if cfg.Cache.RedisURL == "" {
		entry.Info("no redis_url configured, using in-process hot cache")
		return cache.NewMemoryCache()
	}
	rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
	if err != nil {
		entry.WithError(err).Warn("redis unavailable, using in-process hot cache")
		return cache.NewMemoryCache()
	}
	return rc
}

func openWarmStore(cfg *config.Config, log *logger.Log, entry *logger.Entry) store.WarmStore {
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		entry.WithError(err).Warn("open warm store failed, using noop")
		return store.NewNoopStore()
	}
	return st
}

func newProvider(cfg *config.Config) collector.Provider {
	switch cfg.DataSource.Provider {
	case "rest":
		return collector.NewRESTProvider(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, cfg.DataSource.Timeout)
	case "mock":
		return &collector.MockProvider{Bars: 260}
	default:
		return collector.NewYahooProvider(cfg.Proxy, cfg.DataSource.Timeout)
	}
}

func httpClient(cfg *config.Config) *http.Client {
	transport := &http.Transport{}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: cfg.DataSource.Timeout, Transport: transport}
}

func runCLI(ctx context.Context, sc *screener.Screener, cfg *config.Config, opts options, log *logger.Log) error {
	entry := log.WithComponent("cli")

	req := screener.Request{
		Index:       opts.index,
		Symbols:     symbols.ParseSymbolList(opts.symbols),
		Fundamental: opts.fundamental,
		Technical:   opts.technical,
		Limit:       opts.limit,
		Policy: resolver.Policy{
			ForceRefresh: opts.reload,
			MaxAge:       cfg.Screening.MaxAge,
			Period:       opts.period,
			Interval:     opts.interval,
		},
	}
	switch {
	case opts.fundamental != "" && opts.technical != "":
		req.Kind = screener.KindCombined
	case opts.technical != "":
		req.Kind = screener.KindTechnical
	default:
		req.Kind = screener.KindFundamental
		if opts.fundamental == "" {
			entry.WithFields(logger.Fields{"criteria": defaultCriteria}).Warn("no criteria specified, using defaults")
			req.Fundamental = defaultCriteria
		}
	}

	resp, err := sc.Screen(ctx, req)
	if err != nil {
		return err
	}
	entry.WithFields(logger.Fields{
		"matches": resp.Count, "cached": resp.Cached, "request_id": resp.RequestID,
	}).Info("screen finished")

	if err := report.Write(opts.output, opts.outputFile, resp.Results, resp.Criteria); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if opts.outputFile != "" {
		entry.WithFields(logger.Fields{"file": opts.outputFile}).Info("results written")
	}
	return nil
}

func runServer(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, sc *screener.Screener,
	res *resolver.Resolver, registry *symbols.Registry, warm store.WarmStore, log *logger.Log) {
	entry := log.WithComponent("server")

	policy := resolver.Policy{
		MaxAge:   cfg.Screening.MaxAge,
		Period:   cfg.Screening.DefaultPeriod,
		Interval: cfg.Screening.DefaultInterval,
	}

	sched := scheduler.NewScheduler(ctx, res, registry, warm, scheduler.Options{
		PriceTTL:       cfg.Cache.PriceTTL,
		PreloadIndexes: cfg.Schedule.PreloadIndexes,
		Policy:         policy,
	}, log)
	if err := sched.RegisterAll(cfg.Schedule.PriceCron, cfg.Schedule.PreloadCron, cfg.Schedule.PurgeCron); err != nil {
		entry.WithError(err).Fatal("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		entry.Info("RUN_ON_START enabled, preloading indexes now")
		go sched.RunPreloadNow()
	}

	gin.SetMode(gin.ReleaseMode)
	h := api.NewHandler(sc, registry, warm, api.Defaults{
		Limit:    cfg.Screening.DefaultLimit,
		Period:   cfg.Screening.DefaultPeriod,
		Interval: cfg.Screening.DefaultInterval,
		MaxAge:   cfg.Screening.MaxAge,
	}, log)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		entry.WithFields(logger.Fields{"addr": cfg.Server.Addr}).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			entry.WithError(err).Error("http server stopped")
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		entry.Info("shutdown signal received, stopping...")
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		entry.WithError(err).Warn("http shutdown")
	}
	cancel()
	entry.Info("stock screener stopped")
}
