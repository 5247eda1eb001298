package model

import "time"

// RestockEvent is a strict increase between two consecutive observations.
type RestockEvent struct {
	Key         StockKey
	OldQuantity int
	NewQuantity int
	ObservedAt  time.Time
}

func (e RestockEvent) Increase() int {
	return e.NewQuantity - e.OldQuantity
}

// RestockNotification is the persisted record of a restock event.
// DeliveryRef is an opaque handle of the presentation layer, empty when
// delivery failed. Acknowledged never reverts to false.
type RestockNotification struct {
	ID           int64     `json:"id"`
	ProductID    string    `json:"product_id"`
	StoreID      string    `json:"store_id"`
	OldQuantity  int       `json:"old_quantity"`
	NewQuantity  int       `json:"new_quantity"`
	Increase     int       `json:"increase"`
	Acknowledged bool      `json:"acknowledged"`
	DeliveryRef  string    `json:"delivery_ref,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (n RestockNotification) Key() StockKey {
	return StockKey{ProductID: n.ProductID, StoreID: n.StoreID}
}

// Delivered reports whether the presentation layer accepted the message.
func (n RestockNotification) Delivered() bool {
	return n.DeliveryRef != ""
}

// NewNotification builds an unacknowledged record for e.
func NewNotification(e RestockEvent, createdAt time.Time) RestockNotification {
	return RestockNotification{
		ProductID:   e.Key.ProductID,
		StoreID:     e.Key.StoreID,
		OldQuantity: e.OldQuantity,
		NewQuantity: e.NewQuantity,
		Increase:    e.Increase(),
		CreatedAt:   createdAt,
	}
}
