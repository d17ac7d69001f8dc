// Package ratelimit wraps the redis-backed limiter used on write-heavy
// endpoints such as reservation creation.
package ratelimit

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewMiddleware builds an HTTP middleware from a formatted rate such as
// "30-M" (thirty requests per minute per client IP).
func NewMiddleware(rdb *redis.Client, rate, prefix string) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	return mhttp.NewMiddleware(limiter.New(store, parsed)).Handler, nil
}
