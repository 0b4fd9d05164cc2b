package resolver

import (
	"context"
	"sync"

	"StockScreener/internal/logger"
)

type refreshJob struct {
	symbol string
	policy Policy
}

// Refresher runs background refreshes on a fixed pool of workers. At most
// one refresh per symbol is queued or running at any time.
type Refresher struct {
	jobs    chan refreshJob
	workers int
	handle  func(ctx context.Context, symbol string, p Policy)

	mu       sync.Mutex
	inflight map[string]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logger.Entry
}

func newRefresher(workers, queue int, handle func(context.Context, string, Policy), log *logger.Entry) *Refresher {
	if workers <= 0 {
		workers = DefaultRefreshWorkers
	}
	if queue <= 0 {
		queue = DefaultRefreshQueue
	}
	return &Refresher{
		jobs:     make(chan refreshJob, queue),
		workers:  workers,
		handle:   handle,
		inflight: make(map[string]struct{}),
		log:      log,
	}
}

// Start launches the workers. Jobs submitted before Start wait in the queue.
func (r *Refresher) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.run(ctx)
	}
	r.log.WithFields(logger.Fields{"workers": r.workers}).Info("refresher started")
}

// Stop cancels the workers and waits for them to exit. Queued jobs are
// abandoned.
func (r *Refresher) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.log.Info("refresher stopped")
}

// Submit queues a refresh for symbol. It returns false when the symbol is
// already in flight or the queue is full.
func (r *Refresher) Submit(symbol string, p Policy) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[symbol]; busy {
		return false
	}
	select {
	case r.jobs <- refreshJob{symbol: symbol, policy: p}:
		r.inflight[symbol] = struct{}{}
		return true
	default:
		r.log.WithFields(logger.Fields{"symbol": symbol}).Warn("refresh queue full, dropping")
		return false
	}
}

// Pending reports how many symbols are queued or being refreshed.
func (r *Refresher) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

func (r *Refresher) run(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.jobs:
			r.handle(ctx, job.symbol, job.policy)
			r.mu.Lock()
			delete(r.inflight, job.symbol)
			r.mu.Unlock()
		}
	}
}
