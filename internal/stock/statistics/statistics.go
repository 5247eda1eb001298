// Package statistics renders the per-day history view of a tracked product.
package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stock-monitor/server/internal/stock/detector"
	"github.com/stock-monitor/server/internal/stock/model"
)

// Aggregator reads day peaks from the history store over a trailing window.
type Aggregator struct {
	history    model.HistoryRepository
	loc        *time.Location
	dateFormat string
	now        func() time.Time
	log        zerolog.Logger
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func New(history model.HistoryRepository, cfg model.StatisticsConfig, loc *time.Location, logger zerolog.Logger, opts ...Option) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	format := cfg.DateFormat
	if format == "" {
		format = time.DateOnly
	}
	a := &Aggregator{history: history, loc: loc, dateFormat: format, now: time.Now, log: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate returns one row per day present in window, oldest first. A day is
// marked as a restock when its peak exceeds the peak of the previous day in
// the result, which is not necessarily the previous calendar day.
func (a *Aggregator) Aggregate(ctx context.Context, key model.StockKey, window model.Window) ([]model.DayStat, error) {
	since := a.now().Add(-window.Duration())
	peaks, err := a.history.QueryRange(ctx, key, since)
	if err != nil {
		a.log.Error().Err(err).Str("key", key.String()).Str("window", string(window)).Msg("failed to query history")
		return nil, fmt.Errorf("aggregate %s over %s: %w", key, window, err)
	}
	return Annotate(peaks, a.loc, a.dateFormat), nil
}

// Annotate labels day peaks with dates and restock flags.
func Annotate(peaks []model.DayPeak, loc *time.Location, dateFormat string) []model.DayStat {
	out := make([]model.DayStat, 0, len(peaks))
	for i, p := range peaks {
		out = append(out, model.DayStat{
			Date:    p.Day.In(loc).Format(dateFormat),
			Peak:    p.Peak,
			Restock: i > 0 && detector.IsRestock(peaks[i-1].Peak, p.Peak),
		})
	}
	return out
}
