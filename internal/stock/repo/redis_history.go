package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/model"
)

// RedisHistory stores observations in one sorted set per stock key. The score
// is the observation time in milliseconds and the member is the zero padded
// sequence followed by the JSON row, so equal scores keep insertion order.
type RedisHistory struct {
	rdb    redis.Cmdable
	prefix string
	loc    *time.Location
	log    zerolog.Logger
}

func NewRedisHistory(rdb redis.Cmdable, prefix string, loc *time.Location, logger zerolog.Logger) *RedisHistory {
	if prefix == "" {
		prefix = "stock"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RedisHistory{rdb: rdb, prefix: prefix, loc: loc, log: logger}
}

func (r *RedisHistory) historyKey(key model.StockKey) string {
	return fmt.Sprintf("%s:%s:observations", r.prefix, key)
}

func (r *RedisHistory) seqKey() string {
	return r.prefix + ":observations:seq"
}

func (r *RedisHistory) Append(ctx context.Context, obs model.Observation) (model.Observation, error) {
	if err := validateObservation(obs); err != nil {
		return model.Observation{}, err
	}

	seq, err := r.rdb.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		r.log.Error().Err(err).Str("key", r.seqKey()).Msg("failed to allocate observation sequence")
		return model.Observation{}, errx.WrapRedis(err)
	}
	obs.Seq = seq

	b, err := json.Marshal(obs)
	if err != nil {
		return model.Observation{}, fmt.Errorf("marshal observation: %w", err)
	}

	key := r.historyKey(obs.Key())
	member := fmt.Sprintf("%020d|%s", seq, b)
	if err := r.rdb.ZAdd(ctx, key, redis.Z{Score: float64(obs.ObservedAt.UnixMilli()), Member: member}).Err(); err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("failed to append observation to redis")
		return model.Observation{}, errx.WrapRedis(err)
	}
	return obs, nil
}

func (r *RedisHistory) Latest(ctx context.Context, key model.StockKey) (*model.Observation, error) {
	rkey := r.historyKey(key)
	rows, err := r.rdb.ZRevRange(ctx, rkey, 0, 0).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		r.log.Error().Err(err).Str("key", rkey).Msg("failed to load latest observation from redis")
		return nil, errx.WrapRedis(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	obs, err := decodeObservationMember(rows[0])
	if err != nil {
		return nil, fmt.Errorf("latest observation %s: %w", rkey, err)
	}
	return &obs, nil
}

func (r *RedisHistory) QueryRange(ctx context.Context, key model.StockKey, since time.Time) ([]model.DayPeak, error) {
	rkey := r.historyKey(key)
	rows, err := r.rdb.ZRangeByScore(ctx, rkey, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		r.log.Error().Err(err).Str("key", rkey).Msg("failed to query observations from redis")
		return nil, errx.WrapRedis(err)
	}

	observations := make([]model.Observation, 0, len(rows))
	for i, row := range rows {
		obs, err := decodeObservationMember(row)
		if err != nil {
			r.log.Error().Err(err).Str("key", rkey).Int("index", i).Msg("failed to decode observation")
			return nil, fmt.Errorf("decode observation at index %d: %w", i, err)
		}
		if obs.ObservedAt.Before(since) {
			continue
		}
		observations = append(observations, obs)
	}
	return model.PeakByDay(observations, r.loc), nil
}

func (r *RedisHistory) Count(ctx context.Context, key model.StockKey) (int, error) {
	n, err := r.rdb.ZCard(ctx, r.historyKey(key)).Result()
	if err != nil && err != redis.Nil {
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

func decodeObservationMember(member string) (model.Observation, error) {
	_, payload, ok := strings.Cut(member, "|")
	if !ok {
		return model.Observation{}, fmt.Errorf("member without sequence prefix")
	}
	var obs model.Observation
	if err := json.Unmarshal([]byte(payload), &obs); err != nil {
		return model.Observation{}, fmt.Errorf("unmarshal observation: %w", err)
	}
	return obs, nil
}

var _ model.HistoryRepository = (*RedisHistory)(nil)
