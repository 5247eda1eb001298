package model

import (
	"sort"
	"time"
)

// Observation is one timestamped quantity reading. Seq is assigned by the
// store and orders rows with equal ObservedAt.
type Observation struct {
	Seq        int64     `json:"seq"`
	ProductID  string    `json:"product_id"`
	StoreID    string    `json:"store_id"`
	Quantity   int       `json:"quantity"`
	ObservedAt time.Time `json:"observed_at"`
}

func (o Observation) Key() StockKey {
	return StockKey{ProductID: o.ProductID, StoreID: o.StoreID}
}

// DayPeak is the highest quantity seen on one calendar day.
type DayPeak struct {
	Day  time.Time
	Peak int
}

// PeakByDay groups observations by calendar day in loc and keeps the maximum
// quantity per day. Days come back in ascending order; days without
// observations are absent.
func PeakByDay(observations []Observation, loc *time.Location) []DayPeak {
	if loc == nil {
		loc = time.UTC
	}
	peaks := make(map[time.Time]int)
	for _, o := range observations {
		t := o.ObservedAt.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		if cur, ok := peaks[day]; !ok || o.Quantity > cur {
			peaks[day] = o.Quantity
		}
	}

	out := make([]DayPeak, 0, len(peaks))
	for day, peak := range peaks {
		out = append(out, DayPeak{Day: day, Peak: peak})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}
