package presenter

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stock-monitor/server/internal/stock/model"
)

// LogDeliverer writes messages to the log. Each delivery gets a random ref.
type LogDeliverer struct {
	log zerolog.Logger
}

func NewLogDeliverer(logger zerolog.Logger) *LogDeliverer {
	return &LogDeliverer{log: logger}
}

func (d *LogDeliverer) DeliverNotification(ctx context.Context, n model.RestockNotification, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := uuid.NewString()
	d.log.Info().
		Str("message_ref", ref).
		Int64("notification_id", n.ID).
		Str("product", n.ProductID).
		Str("store", n.StoreID).
		Int("increase", n.Increase).
		Msg(content)
	return ref, nil
}

func (d *LogDeliverer) EditMessage(ctx context.Context, ref string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.log.Info().Str("message_ref", ref).Bool("edited", true).Msg(content)
	return nil
}

var _ Deliverer = (*LogDeliverer)(nil)
