package notifier

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/model"
	"github.com/stock-monitor/server/internal/stock/presenter"
)

type Renderer interface {
	RenderNotification(n model.RestockNotification, product model.TrackedProduct) string
}

// Notifier persists restock events and hands them to the presentation layer.
// The row is written before delivery, so a failed delivery never loses the
// event; it only leaves the delivery ref empty. Delivery is not retried.
type Notifier struct {
	store     model.NotificationRepository
	deliverer presenter.Deliverer
	renderer  Renderer
	catalog   *model.Catalog
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*Notifier)

func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

func New(store model.NotificationRepository, deliverer presenter.Deliverer, renderer Renderer, catalog *model.Catalog, logger zerolog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		store:     store,
		deliverer: deliverer,
		renderer:  renderer,
		catalog:   catalog,
		now:       time.Now,
		log:       logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify records event and delivers it. The returned error is non-nil only
// when the record itself could not be written.
func (n *Notifier) Notify(ctx context.Context, event model.RestockEvent) (int64, error) {
	if event.Increase() <= 0 {
		return 0, errx.InvalidArgument("not a restock: %d -> %d", event.OldQuantity, event.NewQuantity)
	}

	rec, err := n.store.Create(ctx, model.NewNotification(event, n.now().UTC()))
	if err != nil {
		n.log.Error().Err(err).
			Str("product", event.Key.ProductID).
			Str("store", event.Key.StoreID).
			Str("kind", errx.KindOf(err).String()).
			Msg("failed to persist restock notification")
		return 0, err
	}

	logger := n.log.With().
		Int64("notification_id", rec.ID).
		Str("product", rec.ProductID).
		Str("store", rec.StoreID).
		Logger()

	ref, err := n.deliverer.DeliverNotification(ctx, rec, n.Render(rec))
	if err != nil {
		logger.Warn().Err(err).Str("kind", errx.KindOf(err).String()).Msg("restock notification not delivered")
		return rec.ID, nil
	}
	if ref == "" {
		logger.Warn().Msg("deliverer returned an empty message ref")
		return rec.ID, nil
	}

	if err := n.store.SetDeliveryRef(ctx, rec.ID, ref); err != nil {
		logger.Error().Err(err).Str("message_ref", ref).Msg("failed to store delivery ref")
		return rec.ID, nil
	}

	logger.Info().Int("increase", rec.Increase).Str("message_ref", ref).Msg("restock notification delivered")
	return rec.ID, nil
}

// Render returns the message text for rec.
func (n *Notifier) Render(rec model.RestockNotification) string {
	var product model.TrackedProduct
	if n.catalog != nil {
		product, _ = n.catalog.ByKey(rec.Key())
	}
	return n.renderer.RenderNotification(rec, product)
}
