// Package ratelimit throttles clients of the SLA calculation endpoints with a
// token bucket shared through Redis, so every API replica sees the same
// budget.
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter is a per-key token bucket. A nil Limiter allows everything.
type Limiter struct {
	rdb      *redis.Client
	capacity int
	refill   time.Duration // time to earn one token
	prefix   string

	// OnReject, when set, is called for each rejected request.
	OnReject func(c *gin.Context)
}

// New returns a Limiter allowing perMinute requests per key per minute.
// It returns nil when rdb is nil or perMinute is not positive.
func New(rdb *redis.Client, perMinute int, prefix string) *Limiter {
	if rdb == nil || perMinute <= 0 {
		return nil
	}
	if !strings.HasPrefix(prefix, "rl:") {
		prefix = "rl:" + prefix
	}
	return &Limiter{rdb: rdb, capacity: perMinute, refill: time.Minute / time.Duration(perMinute), prefix: prefix}
}

// Allow consumes a token for key if one is available.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	res, err := bucket.Run(ctx, l.rdb, []string{l.prefix + key}, l.capacity, l.refill.Milliseconds(), time.Now().UnixMilli()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Middleware limits requests by the key keyFunc derives from each request.
// Redis failures let the request through.
func (l *Limiter) Middleware(keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), keyFunc(c))
		if err != nil || ok {
			c.Next()
			return
		}
		if l.OnReject != nil {
			l.OnReject(c)
		}
		c.Header("Retry-After", "60")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": gin.H{"code": "rate_limited", "message": "too many requests"}})
	}
}

// ClientIP keys requests by client address.
func ClientIP(c *gin.Context) string { return c.ClientIP() }

// bucket keeps tokens and the last refill instant in a hash per key.
var bucket = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local data = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = capacity
  ts = now
else
  local add = math.floor((now - ts) / interval)
  if add > 0 then
    tokens = math.min(tokens + add, capacity)
    ts = ts + add * interval
  end
end
local allowed = 0
if tokens > 0 then
  tokens = tokens - 1
  allowed = 1
end
redis.call('HSET', key, 'tokens', tokens, 'ts', ts)
redis.call('PEXPIRE', key, interval * capacity)
return allowed
`)
