package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/model"
)

// MemoryHistory keeps observations in process memory. It backs the
// "memory" store driver and the tests.
type MemoryHistory struct {
	mu   sync.RWMutex
	seq  int64
	rows map[model.StockKey][]model.Observation
	loc  *time.Location
}

func NewMemoryHistory(loc *time.Location) *MemoryHistory {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryHistory{rows: make(map[model.StockKey][]model.Observation), loc: loc}
}

func (r *MemoryHistory) Append(ctx context.Context, obs model.Observation) (model.Observation, error) {
	if err := validateObservation(obs); err != nil {
		return model.Observation{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	obs.Seq = r.seq
	r.rows[obs.Key()] = append(r.rows[obs.Key()], obs)
	return obs, nil
}

func (r *MemoryHistory) Latest(ctx context.Context, key model.StockKey) (*model.Observation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.rows[key]
	if len(rows) == 0 {
		return nil, nil
	}
	latest := rows[0]
	for _, o := range rows[1:] {
		if newer(o, latest) {
			latest = o
		}
	}
	return &latest, nil
}

func (r *MemoryHistory) QueryRange(ctx context.Context, key model.StockKey, since time.Time) ([]model.DayPeak, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var inRange []model.Observation
	for _, o := range r.rows[key] {
		if !o.ObservedAt.Before(since) {
			inRange = append(inRange, o)
		}
	}
	return model.PeakByDay(inRange, r.loc), nil
}

func (r *MemoryHistory) Count(ctx context.Context, key model.StockKey) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows[key]), nil
}

// newer orders by ObservedAt, then by Seq for equal timestamps.
func newer(a, b model.Observation) bool {
	if a.ObservedAt.Equal(b.ObservedAt) {
		return a.Seq > b.Seq
	}
	return a.ObservedAt.After(b.ObservedAt)
}

var _ model.HistoryRepository = (*MemoryHistory)(nil)

// MemoryNotifications keeps notifications in process memory.
type MemoryNotifications struct {
	mu   sync.RWMutex
	seq  int64
	rows map[int64]model.RestockNotification
}

func NewMemoryNotifications() *MemoryNotifications {
	return &MemoryNotifications{rows: make(map[int64]model.RestockNotification)}
}

func (r *MemoryNotifications) Create(ctx context.Context, n model.RestockNotification) (model.RestockNotification, error) {
	if err := validateNotification(n); err != nil {
		return model.RestockNotification{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	n.ID = r.seq
	n.Acknowledged = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.rows[n.ID] = n
	return n, nil
}

func (r *MemoryNotifications) Get(ctx context.Context, id int64) (model.RestockNotification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.rows[id]
	if !ok {
		return model.RestockNotification{}, errx.NotFound("notification %d", id)
	}
	return n, nil
}

func (r *MemoryNotifications) SetDeliveryRef(ctx context.Context, id int64, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.rows[id]
	if !ok {
		return errx.NotFound("notification %d", id)
	}
	n.DeliveryRef = ref
	r.rows[id] = n
	return nil
}

func (r *MemoryNotifications) Acknowledge(ctx context.Context, id int64) (model.RestockNotification, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.rows[id]
	if !ok {
		return model.RestockNotification{}, false, errx.NotFound("notification %d", id)
	}
	if n.Acknowledged {
		return n, false, nil
	}
	n.Acknowledged = true
	r.rows[id] = n
	return n, true, nil
}

func (r *MemoryNotifications) ListByKey(ctx context.Context, key model.StockKey, limit int) ([]model.RestockNotification, error) {
	return r.list(func(n model.RestockNotification) bool { return n.Key() == key }, limit, true), nil
}

func (r *MemoryNotifications) ListUndelivered(ctx context.Context, limit int) ([]model.RestockNotification, error) {
	return r.list(func(n model.RestockNotification) bool { return !n.Delivered() }, limit, false), nil
}

func (r *MemoryNotifications) list(match func(model.RestockNotification) bool, limit int, newestFirst bool) []model.RestockNotification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.RestockNotification, 0)
	for _, n := range r.rows {
		if match(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	if limit = listLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}

var _ model.NotificationRepository = (*MemoryNotifications)(nil)
