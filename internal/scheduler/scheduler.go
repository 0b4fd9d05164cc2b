package scheduler

import (
	"context"
	"fmt"
	"time"

	"StockScreener/internal/logger"
	"StockScreener/internal/model"
	"StockScreener/internal/resolver"
	"StockScreener/internal/store"

	"github.com/robfig/cron/v3"
)

// DataRefresher is the part of the resolver the scheduled jobs drive.
type DataRefresher interface {
	Refresh(ctx context.Context, symbols []string, p resolver.Policy) map[string]*model.StockData
	UpdatePrices(ctx context.Context, symbols []string, ttl time.Duration) int
}

type IndexSource interface {
	Symbols(ctx context.Context, name string) ([]string, error)
}

type Options struct {
	PriceTTL       time.Duration
	PreloadIndexes []string
	Policy         resolver.Policy
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron    *cron.Cron
	Data    DataRefresher
	Indexes IndexSource
	Store   store.WarmStore
	Ctx     context.Context

	opts Options
	log  *logger.Entry
}

// NewScheduler creates a new Scheduler. Cron specs include a seconds field.
func NewScheduler(ctx context.Context, data DataRefresher, indexes IndexSource, st store.WarmStore, opts Options, log *logger.Log) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Data:    data,
		Indexes: indexes,
		Store:   st,
		Ctx:     ctx,
		opts:    opts,
		log:     log.WithComponent("scheduler"),
	}
}

// RegisterAll registers the live price, index preload and result purge tasks.
func (s *Scheduler) RegisterAll(priceCron, preloadCron, purgeCron string) error {
	if _, err := s.Cron.AddFunc(priceCron, s.priceTask); err != nil {
		return fmt.Errorf("register price task: %w", err)
	}
	if _, err := s.Cron.AddFunc(preloadCron, s.preloadTask); err != nil {
		return fmt.Errorf("register preload task: %w", err)
	}
	if _, err := s.Cron.AddFunc(purgeCron, s.purgeTask); err != nil {
		return fmt.Errorf("register purge task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.WithFields(logger.Fields{"jobs": len(s.Cron.Entries())}).Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunPreloadNow executes the preload task immediately (RUN_ON_START).
func (s *Scheduler) RunPreloadNow() {
	s.preloadTask()
}

// priceTask caches the latest intraday price of every stored symbol.
func (s *Scheduler) priceTask() {
	syms, err := s.Store.Symbols(s.Ctx)
	if err != nil {
		s.log.WithError(err).Error("price task: list symbols")
		return
	}
	if len(syms) == 0 {
		s.log.Debug("price task: no symbols stored yet")
		return
	}
	s.Data.UpdatePrices(s.Ctx, syms, s.opts.PriceTTL)
}

// preloadTask force-refreshes every configured preload index so both local
// tiers are warm before the first screen.
func (s *Scheduler) preloadTask() {
	for _, index := range s.opts.PreloadIndexes {
		start := time.Now()
		syms, err := s.Indexes.Symbols(s.Ctx, index)
		if err != nil {
			s.log.WithError(err).WithFields(logger.Fields{"index": index}).Error("preload task: resolve index")
			continue
		}
		got := s.Data.Refresh(s.Ctx, syms, s.opts.Policy)
		s.log.Duration("preload", time.Since(start), logger.Fields{
			"index": index, "symbols": len(syms), "loaded": len(got),
		})
	}
}

func (s *Scheduler) purgeTask() {
	n, err := s.Store.PurgeExpiredScreens(s.Ctx)
	if err != nil {
		s.log.WithError(err).Error("purge task")
		return
	}
	if n > 0 {
		s.log.WithFields(logger.Fields{"deleted": n}).Info("expired screening results purged")
	}
}
