// Package poller drives the periodic fetch, record, detect and notify cycle
// over every tracked product.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/detector"
	"github.com/stock-monitor/server/internal/stock/model"
)

type Fetcher interface {
	Fetch(ctx context.Context, key model.StockKey) (int, error)
}

type Notifier interface {
	Notify(ctx context.Context, event model.RestockEvent) (int64, error)
}

// CycleStatus summarizes one completed cycle.
type CycleStatus struct {
	Number     int64     `json:"number"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Restocks   int       `json:"restocks"`
}

// Poller polls the products of a catalog on a fixed interval. The only state
// carried between cycles is what the history store already holds.
type Poller struct {
	cfg      model.PollerConfig
	products []model.TrackedProduct
	fetcher  Fetcher
	history  model.HistoryRepository
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger

	cycles atomic.Int64
	mu     sync.RWMutex
	last   *CycleStatus
}

type Option func(*Poller)

func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

func New(cfg model.PollerConfig, catalog *model.Catalog, fetcher Fetcher, history model.HistoryRepository, notifier Notifier, logger zerolog.Logger, opts ...Option) (*Poller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Poller{
		cfg:      cfg,
		products: catalog.All(),
		fetcher:  fetcher,
		history:  history,
		notifier: notifier,
		now:      time.Now,
		log:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run polls until ctx is cancelled. A cycle that is running when ctx ends
// lets its started products finish; products not yet started are skipped.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.log.Info().
		Int("products", len(p.products)).
		Dur("interval", p.cfg.Interval).
		Int("max_concurrency", p.cfg.MaxConcurrency).
		Msg("poller started")

	if p.cfg.RunOnStart {
		p.RunCycle(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("poller stopped")
			return nil
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// RunCycle polls every product once, at most MaxConcurrency at a time.
func (p *Poller) RunCycle(ctx context.Context) CycleStatus {
	status := CycleStatus{Number: p.cycles.Add(1), StartedAt: p.now()}
	var succeeded, failed, skipped, restocks atomic.Int64

	// Started products run to completion; each network call is still bounded
	// by the inventory client timeout.
	work := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrency)
	for _, product := range p.products {
		if ctx.Err() != nil {
			skipped.Add(1)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Add(1)
				return nil
			}
			restocked, err := p.poll(work, product)
			if err != nil {
				failed.Add(1)
				return nil
			}
			succeeded.Add(1)
			if restocked {
				restocks.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	status.FinishedAt = p.now()
	status.Succeeded = int(succeeded.Load())
	status.Failed = int(failed.Load())
	status.Skipped = int(skipped.Load())
	status.Restocks = int(restocks.Load())

	p.mu.Lock()
	p.last = &status
	p.mu.Unlock()

	p.log.Info().
		Int64("cycle", status.Number).
		Int("succeeded", status.Succeeded).
		Int("failed", status.Failed).
		Int("skipped", status.Skipped).
		Int("restocks", status.Restocks).
		Dur("took", status.FinishedAt.Sub(status.StartedAt)).
		Msg("poll cycle finished")
	return status
}

// poll runs fetch, append, detect and notify for one product, in order.
func (p *Poller) poll(ctx context.Context, product model.TrackedProduct) (bool, error) {
	key := product.Key()
	logger := p.log.With().Str("product", product.ID).Str("store", key.StoreID).Logger()

	quantity, err := p.fetcher.Fetch(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("kind", errx.KindOf(err).String()).Msg("stock unknown this cycle")
		return false, err
	}

	previous, err := p.history.Latest(ctx, key)
	if err != nil {
		logger.Error().Err(err).Str("kind", errx.KindOf(err).String()).Msg("failed to read last observation")
		return false, err
	}

	obs, err := p.history.Append(ctx, model.Observation{
		ProductID:  key.ProductID,
		StoreID:    key.StoreID,
		Quantity:   quantity,
		ObservedAt: p.now().UTC(),
	})
	if err != nil {
		logger.Error().Err(err).Str("kind", errx.KindOf(err).String()).Msg("failed to record observation")
		return false, err
	}
	logger.Debug().Int("quantity", quantity).Int64("seq", obs.Seq).Msg("observation recorded")

	event := detector.Detect(previous, obs)
	if event == nil {
		return false, nil
	}
	logger.Info().Int("old", event.OldQuantity).Int("new", event.NewQuantity).Msg("restock detected")

	if _, err := p.notifier.Notify(ctx, *event); err != nil {
		return false, err
	}
	return true, nil
}

// LastCycle returns the most recent finished cycle, or nil before the first.
func (p *Poller) LastCycle() *CycleStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil
	}
	s := *p.last
	return &s
}

func (p *Poller) Products() int {
	return len(p.products)
}
