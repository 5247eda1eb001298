package model

import (
	"context"
	"time"
)

type HistoryRepository interface {
	// Append stores one observation and returns it with its store-assigned Seq.
	Append(ctx context.Context, obs Observation) (Observation, error)

	// Latest returns the most recent observation for key, or nil when none exists.
	Latest(ctx context.Context, key StockKey) (*Observation, error)

	// QueryRange returns per-day peaks of all observations on or after since.
	QueryRange(ctx context.Context, key StockKey, since time.Time) ([]DayPeak, error)

	// Count returns the number of observations stored for key.
	Count(ctx context.Context, key StockKey) (int, error)
}

type NotificationRepository interface {
	// Create persists n unacknowledged and returns it with its id.
	Create(ctx context.Context, n RestockNotification) (RestockNotification, error)

	// Get loads a notification by id.
	Get(ctx context.Context, id int64) (RestockNotification, error)

	// SetDeliveryRef records the presentation layer's handle for a delivered notification.
	SetDeliveryRef(ctx context.Context, id int64, ref string) error

	// Acknowledge marks the notification as seen. The flag only goes from
	// false to true, and changed is true for the single call that flipped it.
	Acknowledge(ctx context.Context, id int64) (n RestockNotification, changed bool, err error)

	// ListByKey returns up to limit notifications for key, newest first.
	ListByKey(ctx context.Context, key StockKey, limit int) ([]RestockNotification, error)

	// ListUndelivered returns up to limit notifications without a delivery ref, oldest first.
	ListUndelivered(ctx context.Context, limit int) ([]RestockNotification, error)
}
