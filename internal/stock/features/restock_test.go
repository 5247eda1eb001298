package features

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/engine"
	"github.com/stock-monitor/server/internal/stock/model"
	"github.com/stock-monitor/server/internal/stock/presenter"
	"github.com/stock-monitor/server/internal/stock/repo"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type reply struct {
	qty int
	err error
}

// scriptedInventory replays queued replies per key. A drained queue answers
// with a transient failure.
type scriptedInventory struct {
	mu      sync.Mutex
	replies map[model.StockKey][]reply
}

func (s *scriptedInventory) push(key model.StockKey, r ...reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[key] = append(s.replies[key], r...)
}

func (s *scriptedInventory) Fetch(_ context.Context, key model.StockKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.replies[key]
	if len(queue) == 0 {
		return 0, errx.Transient(errors.New("inventory unavailable"))
	}
	s.replies[key] = queue[1:]
	return queue[0].qty, queue[0].err
}

// clock ticks one minute per reading and can jump to a given day.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func (c *clock) setDay(day int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = base.Add(time.Duration(day-1) * 24 * time.Hour)
}

type restockTestContext struct {
	catalog       *model.Catalog
	inventory     *scriptedInventory
	history       *repo.MemoryHistory
	notifications *repo.MemoryNotifications
	clock         *clock
	engine        *engine.Engine
	err           error
}

func (c *restockTestContext) reset() {
	c.inventory = &scriptedInventory{replies: make(map[model.StockKey][]reply)}
	c.history = repo.NewMemoryHistory(time.UTC)
	c.notifications = repo.NewMemoryNotifications()
	c.clock = &clock{now: base}
	c.catalog = nil
	c.engine = nil
	c.err = nil
}

func (c *restockTestContext) key(id string) (model.StockKey, error) {
	p, ok := c.catalog.Get(id)
	if !ok {
		return model.StockKey{}, fmt.Errorf("product %q is not tracked", id)
	}
	return p.Key(), nil
}

func (c *restockTestContext) poll() {
	c.engine.PollNow(context.Background())
}

func parseInts(list string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(list, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad integer %q in %q", part, list)
		}
		out = append(out, n)
	}
	return out, nil
}

func (c *restockTestContext) theTrackedProducts(a, b string) error {
	catalog, err := model.NewCatalog([]model.TrackedProduct{
		{ID: a, ProductID: "100" + a, StoreID: "3223"},
		{ID: b, ProductID: "200" + b, StoreID: "3223"},
	})
	if err != nil {
		return err
	}
	c.catalog = catalog
	c.engine, err = engine.New(engine.Config{
		Poller:     model.PollerConfig{Interval: time.Hour, MaxConcurrency: 2},
		Statistics: model.StatisticsConfig{DateFormat: time.DateOnly},
	}, engine.Deps{
		Catalog:       catalog,
		Fetcher:       c.inventory,
		History:       c.history,
		Notifications: c.notifications,
		Deliverer:     presenter.NewLogDeliverer(zerolog.Nop()),
	}, zerolog.Nop(), engine.WithClock(c.clock.Now))
	return err
}

func (c *restockTestContext) theInventoryReportsOverConsecutivePolls(list, id string) error {
	key, err := c.key(id)
	if err != nil {
		return err
	}
	quantities, err := parseInts(list)
	if err != nil {
		return err
	}
	for _, q := range quantities {
		c.inventory.push(key, reply{qty: q})
		c.poll()
	}
	return nil
}

func (c *restockTestContext) theInventoryReportsOnDay(qty, day int, id string) error {
	key, err := c.key(id)
	if err != nil {
		return err
	}
	c.clock.setDay(day)
	c.inventory.push(key, reply{qty: qty})
	c.poll()
	return nil
}

func (c *restockTestContext) wasLastObservedAt(id string, qty int) error {
	key, err := c.key(id)
	if err != nil {
		return err
	}
	_, err = c.history.Append(context.Background(), model.Observation{
		ProductID: key.ProductID, StoreID: key.StoreID, Quantity: qty, ObservedAt: base,
	})
	return err
}

func (c *restockTestContext) theInventoryTimesOutThenReports(times int, id string, qty int) error {
	key, err := c.key(id)
	if err != nil {
		return err
	}
	for i := 0; i < times; i++ {
		c.inventory.push(key, reply{err: errx.Transient(context.DeadlineExceeded)})
	}
	c.inventory.push(key, reply{qty: qty})
	for i := 0; i <= times; i++ {
		c.poll()
	}
	return nil
}

func (c *restockTestContext) theInventoryFailsForAndReportsFor(failing string, qty int, healthy string) error {
	bad, err := c.key(failing)
	if err != nil {
		return err
	}
	good, err := c.key(healthy)
	if err != nil {
		return err
	}
	c.inventory.push(bad, reply{err: errx.Transient(errors.New("502 bad gateway"))})
	c.inventory.push(good, reply{qty: qty})
	return nil
}

func (c *restockTestContext) onePollCycleRuns() error {
	c.poll()
	return nil
}

func (c *restockTestContext) notificationsFor(id string) ([]model.RestockNotification, error) {
	key, err := c.key(id)
	if err != nil {
		return nil, err
	}
	return c.notifications.ListByKey(context.Background(), key, 0)
}

func (c *restockTestContext) exactlyNotificationsAreRecorded(want int, id string) error {
	list, err := c.notificationsFor(id)
	if err != nil {
		return err
	}
	if len(list) != want {
		return fmt.Errorf("expected %d notifications, got %d", want, len(list))
	}
	return nil
}

func (c *restockTestContext) latest(id string) (model.RestockNotification, error) {
	list, err := c.notificationsFor(id)
	if err != nil {
		return model.RestockNotification{}, err
	}
	if len(list) == 0 {
		return model.RestockNotification{}, errors.New("no notification recorded")
	}
	return list[0], nil
}

func (c *restockTestContext) theLatestNotificationGoesFromTo(id string, old, cur int) error {
	n, err := c.latest(id)
	if err != nil {
		return err
	}
	if n.OldQuantity != old || n.NewQuantity != cur {
		return fmt.Errorf("expected %d -> %d, got %d -> %d", old, cur, n.OldQuantity, n.NewQuantity)
	}
	return nil
}

func (c *restockTestContext) theLatestNotificationHasIncrease(id string, want int) error {
	n, err := c.latest(id)
	if err != nil {
		return err
	}
	if n.Increase != want {
		return fmt.Errorf("expected increase %d, got %d", want, n.Increase)
	}
	return nil
}

func (c *restockTestContext) hasObservations(id string, want int) error {
	key, err := c.key(id)
	if err != nil {
		return err
	}
	got, err := c.history.Count(context.Background(), key)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected %d observations, got %d", want, got)
	}
	return nil
}

func (c *restockTestContext) theWeekStatisticsShow(id, peaks, restocks string) error {
	days, err := c.engine.Statistics(context.Background(), id, model.WindowWeek)
	if err != nil {
		return err
	}
	wantPeaks, err := parseInts(peaks)
	if err != nil {
		return err
	}
	var wantRestocks []bool
	for _, s := range strings.Split(restocks, ",") {
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		wantRestocks = append(wantRestocks, b)
	}

	if len(days) != len(wantPeaks) {
		return fmt.Errorf("expected %d days, got %+v", len(wantPeaks), days)
	}
	for i, d := range days {
		if d.Peak != wantPeaks[i] || d.Restock != wantRestocks[i] {
			return fmt.Errorf("day %d: expected peak %d restock %v, got %+v", i, wantPeaks[i], wantRestocks[i], d)
		}
	}
	return nil
}

func (c *restockTestContext) theOperatorAcknowledgesTimes(id string, times int) error {
	n, err := c.latest(id)
	if err != nil {
		return err
	}
	for i := 0; i < times; i++ {
		if _, err := c.engine.Acknowledge(context.Background(), n.ID); err != nil {
			return fmt.Errorf("acknowledge #%d: %w", i+1, err)
		}
	}
	return nil
}

func (c *restockTestContext) theLatestNotificationIsAcknowledged(id string) error {
	n, err := c.latest(id)
	if err != nil {
		return err
	}
	if !n.Acknowledged {
		return errors.New("expected notification to be acknowledged")
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &restockTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the tracked products "([^"]*)" and "([^"]*)"$`, tc.theTrackedProducts)
	ctx.Step(`^"([^"]*)" was last observed at (\d+)$`, tc.wasLastObservedAt)
	ctx.Step(`^the inventory fails for "([^"]*)" and reports (\d+) for "([^"]*)"$`, tc.theInventoryFailsForAndReportsFor)

	// When steps
	ctx.Step(`^the inventory reports "([^"]*)" for "([^"]*)" over consecutive polls$`, tc.theInventoryReportsOverConsecutivePolls)
	ctx.Step(`^the inventory reports (\d+) on day (\d+) for "([^"]*)"$`, tc.theInventoryReportsOnDay)
	ctx.Step(`^the inventory times out (\d+) times for "([^"]*)" and then reports (\d+)$`, tc.theInventoryTimesOutThenReports)
	ctx.Step(`^one poll cycle runs$`, tc.onePollCycleRuns)
	ctx.Step(`^the operator acknowledges the latest notification for "([^"]*)" (\d+) times$`, tc.theOperatorAcknowledgesTimes)

	// Then steps
	ctx.Step(`^exactly (\d+) notifications? (?:is|are) recorded for "([^"]*)"$`, tc.exactlyNotificationsAreRecorded)
	ctx.Step(`^the latest notification for "([^"]*)" goes from (\d+) to (\d+)$`, tc.theLatestNotificationGoesFromTo)
	ctx.Step(`^the latest notification for "([^"]*)" has increase (\d+)$`, tc.theLatestNotificationHasIncrease)
	ctx.Step(`^"([^"]*)" has (\d+) observations$`, tc.hasObservations)
	ctx.Step(`^the week statistics for "([^"]*)" show peaks "([^"]*)" and restock days "([^"]*)"$`, tc.theWeekStatisticsShow)
	ctx.Step(`^the latest notification for "([^"]*)" is acknowledged$`, tc.theLatestNotificationIsAcknowledged)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"restock.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
