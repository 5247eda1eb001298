package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to AppError with appropriate kinds.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(KindNotFound, err, http.StatusNotFound, RedisNotFoundMessage)
	}

	return New(KindPersistence, err, http.StatusBadGateway, RedisErrorMessage)
}
