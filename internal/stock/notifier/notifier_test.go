package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/model"
	"github.com/stock-monitor/server/internal/stock/presenter"
	"github.com/stock-monitor/server/internal/stock/repo"
)

var (
	key   = model.StockKey{ProductID: "265193", StoreID: "3223"}
	clock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fakeDeliverer struct {
	ref      string
	err      error
	contents []string
}

func (d *fakeDeliverer) DeliverNotification(_ context.Context, _ model.RestockNotification, content string) (string, error) {
	d.contents = append(d.contents, content)
	return d.ref, d.err
}

func (d *fakeDeliverer) EditMessage(context.Context, string, string) error { return nil }

type failingStore struct {
	model.NotificationRepository
}

func (failingStore) Create(context.Context, model.RestockNotification) (model.RestockNotification, error) {
	return model.RestockNotification{}, errx.WrapRedis(errors.New("connection refused"))
}

func newNotifier(t *testing.T, store model.NotificationRepository, d presenter.Deliverer) *Notifier {
	t.Helper()
	catalog, err := model.NewCatalog([]model.TrackedProduct{{ID: "hw", ProductID: key.ProductID, StoreID: key.StoreID, Name: "Hot Wheels", Store: "Lenta"}})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return New(store, d, presenter.NewTextRenderer(time.UTC), catalog, zerolog.Nop(),
		WithClock(func() time.Time { return clock }))
}

func event(old, cur int) model.RestockEvent {
	return model.RestockEvent{Key: key, OldQuantity: old, NewQuantity: cur, ObservedAt: clock}
}

func TestNotifyDelivered(t *testing.T) {
	store := repo.NewMemoryNotifications()
	d := &fakeDeliverer{ref: "msg-1"}
	n := newNotifier(t, store, d)

	id, err := n.Notify(context.Background(), event(10, 12))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	got, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Increase != 2 || got.Acknowledged || got.DeliveryRef != "msg-1" || !got.CreatedAt.Equal(clock) {
		t.Errorf("unexpected notification %+v", got)
	}
	if len(d.contents) != 1 || d.contents[0] == "" {
		t.Errorf("got contents %q", d.contents)
	}
}

func TestNotifyDeliveryFailureKeepsRow(t *testing.T) {
	store := repo.NewMemoryNotifications()
	n := newNotifier(t, store, &fakeDeliverer{err: errx.Delivery(errors.New("chat down"))})

	id, err := n.Notify(context.Background(), event(3, 8))
	if err != nil {
		t.Fatalf("Notify should not fail on delivery errors: %v", err)
	}
	got, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Delivered() {
		t.Errorf("got ref %q, want empty", got.DeliveryRef)
	}

	undelivered, _ := store.ListUndelivered(context.Background(), 0)
	if len(undelivered) != 1 {
		t.Errorf("got %d undelivered, want 1", len(undelivered))
	}
}

func TestNotifyPersistenceFailure(t *testing.T) {
	d := &fakeDeliverer{ref: "msg-1"}
	n := newNotifier(t, failingStore{}, d)

	_, err := n.Notify(context.Background(), event(3, 8))
	if errx.KindOf(err) != errx.KindPersistence {
		t.Fatalf("got %v, want persistence error", err)
	}
	if len(d.contents) != 0 {
		t.Error("nothing should be delivered without a stored record")
	}
}

func TestNotifyRejectsNonIncrease(t *testing.T) {
	n := newNotifier(t, repo.NewMemoryNotifications(), &fakeDeliverer{ref: "x"})
	if _, err := n.Notify(context.Background(), event(8, 8)); errx.KindOf(err) != errx.KindInvalidArgument {
		t.Errorf("got %v, want invalid argument", err)
	}
}
