// Package presenter holds the presentation collaborators of the engine: a
// Deliverer that pushes restock messages to the operator and a TextRenderer
// that turns engine data into operator-facing text.
package presenter

import (
	"context"

	"github.com/stock-monitor/server/internal/stock/model"
)

// Deliverer sends messages to the operator. The returned ref is opaque to
// the engine; it is only handed back to EditMessage.
type Deliverer interface {
	DeliverNotification(ctx context.Context, n model.RestockNotification, content string) (ref string, err error)
	EditMessage(ctx context.Context, ref string, content string) error
}
