// Package detector decides whether two consecutive readings form a restock.
package detector

import (
	"github.com/stock-monitor/server/internal/stock/model"
)

// IsRestock is the strict-increase rule shared by the per-observation
// detector and the per-day statistics view.
func IsRestock(previous, current int) bool {
	return current > previous
}

// Detect compares the new reading against the immediately preceding one.
// A nil previous means the key has no baseline yet and never fires.
func Detect(previous *model.Observation, current model.Observation) *model.RestockEvent {
	if previous == nil {
		return nil
	}
	if !IsRestock(previous.Quantity, current.Quantity) {
		return nil
	}
	return &model.RestockEvent{
		Key:         current.Key(),
		OldQuantity: previous.Quantity,
		NewQuantity: current.Quantity,
		ObservedAt:  current.ObservedAt,
	}
}
