package repo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/model"
)

// RedisNotifications stores each notification as a hash and indexes it per
// stock key and in an undelivered set, all scored by id.
type RedisNotifications struct {
	rdb    redis.Cmdable
	prefix string
	log    zerolog.Logger
}

func NewRedisNotifications(rdb redis.Cmdable, prefix string, logger zerolog.Logger) *RedisNotifications {
	if prefix == "" {
		prefix = "stock"
	}
	return &RedisNotifications{rdb: rdb, prefix: prefix, log: logger}
}

type notificationRecord struct {
	ID           int64  `redis:"id"`
	ProductID    string `redis:"product_id"`
	StoreID      string `redis:"store_id"`
	OldQuantity  int    `redis:"old_quantity"`
	NewQuantity  int    `redis:"new_quantity"`
	Increase     int    `redis:"increase"`
	Acknowledged bool   `redis:"acknowledged"`
	DeliveryRef  string `redis:"delivery_ref"`
	CreatedAt    int64  `redis:"created_at"`
}

func (rec notificationRecord) toModel() model.RestockNotification {
	return model.RestockNotification{
		ID:           rec.ID,
		ProductID:    rec.ProductID,
		StoreID:      rec.StoreID,
		OldQuantity:  rec.OldQuantity,
		NewQuantity:  rec.NewQuantity,
		Increase:     rec.Increase,
		Acknowledged: rec.Acknowledged,
		DeliveryRef:  rec.DeliveryRef,
		CreatedAt:    time.UnixMilli(rec.CreatedAt).UTC(),
	}
}

func (r *RedisNotifications) seqKey() string {
	return r.prefix + ":notifications:seq"
}

func (r *RedisNotifications) notificationKey(id int64) string {
	return fmt.Sprintf("%s:notification:%d", r.prefix, id)
}

func (r *RedisNotifications) byStockKey(key model.StockKey) string {
	return fmt.Sprintf("%s:%s:notifications", r.prefix, key)
}

func (r *RedisNotifications) undeliveredKey() string {
	return r.prefix + ":notifications:undelivered"
}

func (r *RedisNotifications) Create(ctx context.Context, n model.RestockNotification) (model.RestockNotification, error) {
	if err := validateNotification(n); err != nil {
		return model.RestockNotification{}, err
	}

	id, err := r.rdb.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		r.log.Error().Err(err).Str("key", r.seqKey()).Msg("failed to allocate notification id")
		return model.RestockNotification{}, errx.WrapRedis(err)
	}
	n.ID = id
	n.Acknowledged = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	hkey := r.notificationKey(id)
	member := redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hkey, map[string]any{
			"id":           n.ID,
			"product_id":   n.ProductID,
			"store_id":     n.StoreID,
			"old_quantity": n.OldQuantity,
			"new_quantity": n.NewQuantity,
			"increase":     n.Increase,
			"acknowledged": false,
			"delivery_ref": n.DeliveryRef,
			"created_at":   n.CreatedAt.UnixMilli(),
		})
		pipe.ZAdd(ctx, r.byStockKey(n.Key()), member)
		if !n.Delivered() {
			pipe.ZAdd(ctx, r.undeliveredKey(), member)
		}
		return nil
	})
	if err != nil {
		r.log.Error().Err(err).Str("key", hkey).Msg("failed to persist notification to redis")
		return model.RestockNotification{}, errx.WrapRedis(err)
	}
	return r.Get(ctx, id)
}

func (r *RedisNotifications) Get(ctx context.Context, id int64) (model.RestockNotification, error) {
	hkey := r.notificationKey(id)
	cmd := r.rdb.HGetAll(ctx, hkey)
	fields, err := cmd.Result()
	if err != nil {
		r.log.Error().Err(err).Str("key", hkey).Msg("failed to load notification from redis")
		return model.RestockNotification{}, errx.WrapRedis(err)
	}
	if len(fields) == 0 {
		return model.RestockNotification{}, errx.NotFound("notification %d", id)
	}

	var rec notificationRecord
	if err := cmd.Scan(&rec); err != nil {
		return model.RestockNotification{}, fmt.Errorf("scan notification %d: %w", id, err)
	}
	return rec.toModel(), nil
}

func (r *RedisNotifications) exists(ctx context.Context, id int64) error {
	n, err := r.rdb.Exists(ctx, r.notificationKey(id)).Result()
	if err != nil {
		return errx.WrapRedis(err)
	}
	if n == 0 {
		return errx.NotFound("notification %d", id)
	}
	return nil
}

func (r *RedisNotifications) SetDeliveryRef(ctx context.Context, id int64, ref string) error {
	if err := r.exists(ctx, id); err != nil {
		return err
	}
	hkey := r.notificationKey(id)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hkey, "delivery_ref", ref)
		if ref != "" {
			pipe.ZRem(ctx, r.undeliveredKey(), strconv.FormatInt(id, 10))
		}
		return nil
	})
	if err != nil {
		r.log.Error().Err(err).Str("key", hkey).Msg("failed to store delivery ref")
		return errx.WrapRedis(err)
	}
	return nil
}

// acknowledgeScript flips the flag server side: -1 for a missing hash, 0 when
// already set, 1 for the call that set it.
const acknowledgeScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('HGET', KEYS[1], 'acknowledged') == '1' then
	return 0
end
redis.call('HSET', KEYS[1], 'acknowledged', '1')
return 1
`

func (r *RedisNotifications) Acknowledge(ctx context.Context, id int64) (model.RestockNotification, bool, error) {
	hkey := r.notificationKey(id)
	res, err := r.rdb.Eval(ctx, acknowledgeScript, []string{hkey}).Int64()
	if err != nil {
		r.log.Error().Err(err).Str("key", hkey).Msg("failed to acknowledge notification")
		return model.RestockNotification{}, false, errx.WrapRedis(err)
	}
	if res < 0 {
		return model.RestockNotification{}, false, errx.NotFound("notification %d", id)
	}
	n, err := r.Get(ctx, id)
	if err != nil {
		return model.RestockNotification{}, false, err
	}
	return n, res == 1, nil
}

func (r *RedisNotifications) ListByKey(ctx context.Context, key model.StockKey, limit int) ([]model.RestockNotification, error) {
	ids, err := r.rdb.ZRevRange(ctx, r.byStockKey(key), 0, int64(listLimit(limit)-1)).Result()
	if err != nil && err != redis.Nil {
		return nil, errx.WrapRedis(err)
	}
	return r.loadAll(ctx, ids)
}

func (r *RedisNotifications) ListUndelivered(ctx context.Context, limit int) ([]model.RestockNotification, error) {
	ids, err := r.rdb.ZRange(ctx, r.undeliveredKey(), 0, int64(listLimit(limit)-1)).Result()
	if err != nil && err != redis.Nil {
		return nil, errx.WrapRedis(err)
	}
	return r.loadAll(ctx, ids)
}

func (r *RedisNotifications) loadAll(ctx context.Context, ids []string) ([]model.RestockNotification, error) {
	out := make([]model.RestockNotification, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			r.log.Warn().Str("member", raw).Msg("skipping malformed notification index entry")
			continue
		}
		n, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

var _ model.NotificationRepository = (*RedisNotifications)(nil)
