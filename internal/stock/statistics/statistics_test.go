package statistics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/model"
	"github.com/stock-monitor/server/internal/stock/repo"
)

var (
	key = model.StockKey{ProductID: "265193", StoreID: "3223"}
	now = time.Date(2024, 3, 31, 18, 0, 0, 0, time.UTC)
	day = 24 * time.Hour
)

func seed(t *testing.T, h model.HistoryRepository, rows map[time.Duration][]int) {
	t.Helper()
	for ago, quantities := range rows {
		for i, q := range quantities {
			obs := model.Observation{ProductID: key.ProductID, StoreID: key.StoreID, Quantity: q, ObservedAt: now.Add(-ago).Add(time.Duration(i) * time.Minute)}
			if _, err := h.Append(context.Background(), obs); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
	}
}

func newAggregator(h model.HistoryRepository) *Aggregator {
	return New(h, model.StatisticsConfig{DateFormat: "02.01"}, time.UTC, zerolog.Nop(),
		WithClock(func() time.Time { return now }))
}

func TestAggregateWeek(t *testing.T) {
	h := repo.NewMemoryHistory(time.UTC)
	seed(t, h, map[time.Duration][]int{
		20 * day: {99},      // outside the week
		6 * day:  {4, 7, 2}, // peak 7
		4 * day:  {3},       // gap day 5 is absent
		2 * day:  {9},
		1 * day:  {9},
	})

	got, err := newAggregator(h).Aggregate(context.Background(), key, model.WindowWeek)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	want := []model.DayStat{
		{Date: "25.03", Peak: 7},
		{Date: "27.03", Peak: 3},
		{Date: "29.03", Peak: 9, Restock: true},
		{Date: "30.03", Peak: 9},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAggregateMonthIncludesOlderDays(t *testing.T) {
	h := repo.NewMemoryHistory(time.UTC)
	seed(t, h, map[time.Duration][]int{20 * day: {1}, 2 * day: {5}})

	got, err := newAggregator(h).Aggregate(context.Background(), key, model.WindowMonth)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(got) != 2 || !got[1].Restock || got[0].Restock {
		t.Errorf("got %+v", got)
	}
}

func TestAggregateSingleDayIsNeverRestock(t *testing.T) {
	h := repo.NewMemoryHistory(time.UTC)
	seed(t, h, map[time.Duration][]int{time.Hour: {5, 5, 3, 8, 8, 2}})

	got, err := newAggregator(h).Aggregate(context.Background(), key, model.WindowWeek)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(got) != 1 || got[0].Peak != 8 || got[0].Restock {
		t.Errorf("got %+v, want one day with peak 8 and no restock", got)
	}
}

func TestAggregateEmpty(t *testing.T) {
	got, err := newAggregator(repo.NewMemoryHistory(time.UTC)).Aggregate(context.Background(), key, model.WindowWeek)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %+v, want empty", got)
	}
}

type brokenHistory struct {
	model.HistoryRepository
}

func (brokenHistory) QueryRange(context.Context, model.StockKey, time.Time) ([]model.DayPeak, error) {
	return nil, errx.WrapSQL(errors.New("disk I/O error"))
}

func TestAggregatePropagatesStoreErrors(t *testing.T) {
	_, err := newAggregator(brokenHistory{}).Aggregate(context.Background(), key, model.WindowWeek)
	if errx.KindOf(err) != errx.KindPersistence {
		t.Errorf("got %v, want persistence error", err)
	}
}
