package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iconidentify/ovagrab/internal/domain"
)

// StatusFetcher reads the export queue state from the service.
type StatusFetcher interface {
	Status(ctx context.Context) (*domain.QueueSnapshot, error)
}

// Ticker is the part of *time.Ticker the poller uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// PollerConfig holds poller configuration.
type PollerConfig struct {
	Interval time.Duration
	// Timeout bounds a single status fetch. Zero means no extra bound.
	Timeout time.Duration
	// OnUpdate receives every snapshot that was applied.
	OnUpdate func(domain.QueueSnapshot)
	// OnError receives every failed fetch of the active run.
	//
	// Hooks run without any poller lock held and may call back into the
	// poller. A result that was overtaken by a newer one before its hook
	// ran is not reported.
	OnError func(error)
}

// PollerStats counts what the poller did since it was created.
type PollerStats struct {
	Ticks       int
	Failures    int
	Discarded   int
	Skipped     int
	LastError   error
	LastSuccess time.Time
}

// run is one Start..Stop cycle. Results are applied only while their run is
// still the poller's current run.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	busy   atomic.Bool
}

// Poller periodically fetches the export queue state and keeps the last good
// snapshot. Fetch failures never stop polling and never clear the snapshot.
type Poller struct {
	fetcher   StatusFetcher
	interval  time.Duration
	timeout   time.Duration
	onUpdate  func(domain.QueueSnapshot)
	onError   func(error)
	logger    *slog.Logger
	newTicker func(time.Duration) Ticker

	// notifyMu guards delivered, the sequence number of the last result
	// handed to a hook.
	notifyMu  sync.Mutex
	delivered uint64

	mu          sync.Mutex
	seq         uint64
	current     *run
	snapshot    domain.QueueSnapshot
	hasSnapshot bool
	stats       PollerStats

	wg sync.WaitGroup
}

// NewPoller creates a new queue status poller. It does not start polling.
func NewPoller(cfg PollerConfig, fetcher StatusFetcher, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}

	return &Poller{
		fetcher:   fetcher,
		interval:  cfg.Interval,
		timeout:   cfg.Timeout,
		onUpdate:  cfg.OnUpdate,
		onError:   cfg.OnError,
		logger:    logger,
		newTicker: newTimeTicker,
	}
}

// Start begins polling. A running poller is stopped first, so there is
// always exactly one active ticker afterwards.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{ctx: ctx, cancel: cancel}
	p.current = r

	t := p.newTicker(p.interval)
	p.wg.Add(1)
	go p.loop(r, t)

	p.logger.Info("status polling started", "interval", p.interval)
}

// Stop ends polling. It does not wait for an in-flight fetch; whatever that
// fetch returns is discarded. Stopping an idle poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.current == nil {
		return
	}
	p.current.cancel()
	p.current = nil
	p.logger.Info("status polling stopped")
}

// Wait blocks until every tick loop has exited.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// Running reports whether the poller is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Snapshot returns a copy of the last good snapshot and whether one exists.
func (p *Poller) Snapshot() (domain.QueueSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot.Clone(), p.hasSnapshot
}

// Stats returns a copy of the poller counters.
func (p *Poller) Stats() PollerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Reset forgets the last snapshot, for use after the session ends.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = domain.QueueSnapshot{}
	p.hasSnapshot = false
}

// PollNow fetches immediately within the active run. It fails with
// domain.ErrPollerStopped when idle and domain.ErrPollInFlight when a tick
// is already fetching.
func (p *Poller) PollNow(ctx context.Context) (domain.QueueSnapshot, error) {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()

	if r == nil {
		return domain.QueueSnapshot{}, domain.ErrPollerStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	snap, err := p.tick(ctx, r)
	if err != nil {
		return domain.QueueSnapshot{}, err
	}
	return snap, nil
}

func (p *Poller) loop(r *run, t Ticker) {
	defer p.wg.Done()
	defer t.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-t.C():
			p.tick(r.ctx, r)
		}
	}
}

// tick performs one fetch-and-apply cycle for run r. At most one tick per
// run is in flight; a second caller is turned away rather than queued.
func (p *Poller) tick(ctx context.Context, r *run) (domain.QueueSnapshot, error) {
	if !r.busy.CompareAndSwap(false, true) {
		p.mu.Lock()
		p.stats.Skipped++
		p.mu.Unlock()
		p.logger.Debug("status poll skipped, previous fetch still in flight")
		return domain.QueueSnapshot{}, domain.ErrPollInFlight
	}
	defer r.busy.Store(false)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	snap, err := p.fetcher.Status(ctx)
	return p.apply(r, snap, err)
}

func (p *Poller) apply(r *run, snap *domain.QueueSnapshot, fetchErr error) (domain.QueueSnapshot, error) {
	p.mu.Lock()
	if p.current != r {
		p.stats.Discarded++
		p.mu.Unlock()
		p.logger.Debug("discarding status result of stopped poller", "error", fetchErr)
		return domain.QueueSnapshot{}, domain.ErrPollerStopped
	}

	p.seq++
	seq := p.seq
	p.stats.Ticks++
	if fetchErr != nil {
		p.stats.Failures++
		p.stats.LastError = fetchErr
		p.mu.Unlock()

		p.logger.Warn("status poll failed, keeping last snapshot", "error", fetchErr)
		if p.onError != nil {
			p.notify(seq, func() { p.onError(fetchErr) })
		}
		return domain.QueueSnapshot{}, domain.NewOpError(domain.ErrFetch, "status", "", fetchErr)
	}

	if snap == nil {
		snap = &domain.QueueSnapshot{FetchedAt: time.Now()}
	}
	p.snapshot = snap.Clone()
	p.hasSnapshot = true
	p.stats.LastSuccess = time.Now()
	p.stats.LastError = nil
	out := p.snapshot.Clone()
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.notify(seq, func() { p.onUpdate(out.Clone()) })
	}
	return out, nil
}

// notify runs hook unless a newer result has already been handed out.
func (p *Poller) notify(seq uint64, hook func()) {
	p.notifyMu.Lock()
	if seq <= p.delivered {
		p.notifyMu.Unlock()
		p.logger.Debug("skipping hook for superseded status result", "seq", seq)
		return
	}
	p.delivered = seq
	p.notifyMu.Unlock()

	hook()
}
