// Package engine wires the monitor together and exposes the start/stop
// lifecycle plus the read paths used by the operator surfaces.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/model"
	"github.com/stock-monitor/server/internal/stock/notifier"
	"github.com/stock-monitor/server/internal/stock/poller"
	"github.com/stock-monitor/server/internal/stock/presenter"
	"github.com/stock-monitor/server/internal/stock/statistics"
	logx "github.com/stock-monitor/server/pkg/logger"
)

var ErrAlreadyRunning = errors.New("engine already running")

type Config struct {
	Poller     model.PollerConfig
	Statistics model.StatisticsConfig
}

type Deps struct {
	Catalog       *model.Catalog
	Fetcher       poller.Fetcher
	History       model.HistoryRepository
	Notifications model.NotificationRepository
	Deliverer     presenter.Deliverer
	Renderer      *presenter.TextRenderer
	Location      *time.Location
}

// AcknowledgeHook runs after a notification is acknowledged for the first time.
type AcknowledgeHook func(ctx context.Context, n model.RestockNotification)

type Option func(*Engine)

func WithAcknowledgeHook(h AcknowledgeHook) Option {
	return func(e *Engine) { e.ackHooks = append(e.ackHooks, h) }
}

// WithClock replaces the time source of the engine and its components.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	catalog       *model.Catalog
	fetcher       poller.Fetcher
	notifications model.NotificationRepository
	deliverer     presenter.Deliverer
	notifier      *notifier.Notifier
	poller        *poller.Poller
	stats         *statistics.Aggregator
	ackHooks      []AcknowledgeHook
	now           func() time.Time
	log           zerolog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
}

// New wires the engine from its parts. logger is the root logger; every part
// tags its own component field.
func New(cfg Config, deps Deps, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if deps.Catalog == nil || deps.Fetcher == nil || deps.History == nil || deps.Notifications == nil || deps.Deliverer == nil {
		return nil, errors.New("engine: catalog, fetcher, stores and deliverer are required")
	}
	if deps.Renderer == nil {
		deps.Renderer = presenter.NewTextRenderer(deps.Location)
	}

	e := &Engine{
		catalog:       deps.Catalog,
		fetcher:       deps.Fetcher,
		notifications: deps.Notifications,
		deliverer:     deps.Deliverer,
		now:           time.Now,
		log:           logx.Component(logger, "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.notifier = notifier.New(deps.Notifications, deps.Deliverer, deps.Renderer, deps.Catalog,
		logx.Component(logger, "notifier"), notifier.WithClock(e.now))

	p, err := poller.New(cfg.Poller, deps.Catalog, deps.Fetcher, deps.History, e.notifier,
		logx.Component(logger, "poller"), poller.WithClock(e.now))
	if err != nil {
		return nil, err
	}
	e.poller = p

	e.stats = statistics.New(deps.History, cfg.Statistics, deps.Location,
		logx.Component(logger, "statistics"), statistics.WithClock(e.now))
	return e, nil
}

// Start launches the poller in the background.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel, e.done, e.startedAt = cancel, done, e.now()

	go func() {
		defer close(done)
		if err := e.poller.Run(runCtx); err != nil {
			e.log.Error().Err(err).Msg("poller exited")
		}
	}()
	e.log.Info().Int("products", e.catalog.Len()).Msg("engine started")
	return nil
}

// Stop cancels the poller and waits for the running cycle to drain, or for
// ctx to expire.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		e.log.Info().Msg("engine stopped")
		return nil
	case <-ctx.Done():
		e.log.Warn().Err(ctx.Err()).Msg("engine stop timed out with a cycle in flight")
		return ctx.Err()
	}
}

// PollNow runs one cycle synchronously.
func (e *Engine) PollNow(ctx context.Context) poller.CycleStatus {
	return e.poller.RunCycle(ctx)
}

func (e *Engine) Products() []model.TrackedProduct {
	return e.catalog.All()
}

func (e *Engine) Product(id string) (model.TrackedProduct, error) {
	p, ok := e.catalog.Get(id)
	if !ok {
		return model.TrackedProduct{}, errx.NotFound("product %q is not tracked", id)
	}
	return p, nil
}

// CurrentStock asks the inventory API directly. The reading is not recorded.
func (e *Engine) CurrentStock(ctx context.Context, id string) (model.StockSnapshot, error) {
	p, err := e.Product(id)
	if err != nil {
		return model.StockSnapshot{}, err
	}
	qty, err := e.fetcher.Fetch(ctx, p.Key())
	if err != nil {
		e.log.Warn().Err(err).Str("product", p.ID).Msg("live stock lookup failed")
		return model.StockSnapshot{}, err
	}
	return model.StockSnapshot{Product: p, Quantity: qty, CheckedAt: e.now().UTC()}, nil
}

func (e *Engine) Statistics(ctx context.Context, id string, window model.Window) ([]model.DayStat, error) {
	p, err := e.Product(id)
	if err != nil {
		return nil, err
	}
	return e.stats.Aggregate(ctx, p.Key(), window)
}

// Notifications lists the notifications of a product, newest first.
func (e *Engine) Notifications(ctx context.Context, id string, limit int) ([]model.RestockNotification, error) {
	p, err := e.Product(id)
	if err != nil {
		return nil, err
	}
	return e.notifications.ListByKey(ctx, p.Key(), limit)
}

// Acknowledge marks a notification as seen. Repeated calls return the
// stored record without side effects. On the first acknowledgement the
// delivered message is edited and the hooks run.
func (e *Engine) Acknowledge(ctx context.Context, notificationID int64) (model.RestockNotification, error) {
	n, changed, err := e.notifications.Acknowledge(ctx, notificationID)
	if err != nil {
		if errx.KindOf(err) != errx.KindNotFound {
			e.log.Error().Err(err).Int64("notification_id", notificationID).Msg("failed to acknowledge notification")
		}
		return model.RestockNotification{}, err
	}
	if !changed {
		return n, nil
	}

	if n.Delivered() {
		if err := e.deliverer.EditMessage(ctx, n.DeliveryRef, e.notifier.Render(n)); err != nil {
			e.log.Warn().Err(err).Int64("notification_id", n.ID).Str("message_ref", n.DeliveryRef).
				Msg("failed to edit acknowledged message")
		}
	}
	for _, h := range e.ackHooks {
		h(ctx, n)
	}
	return n, nil
}

type Health struct {
	Running   bool                `json:"running"`
	StartedAt *time.Time          `json:"started_at,omitempty"`
	Products  int                 `json:"products"`
	LastCycle *poller.CycleStatus `json:"last_cycle,omitempty"`
}

func (e *Engine) Health() Health {
	e.mu.Lock()
	h := Health{Running: e.cancel != nil, Products: e.catalog.Len()}
	if h.Running {
		started := e.startedAt
		h.StartedAt = &started
	}
	e.mu.Unlock()

	h.LastCycle = e.poller.LastCycle()
	return h
}
