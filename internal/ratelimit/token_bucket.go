// Package ratelimit throttles resize calls per client across every process
// sharing one Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "pixelshift:ratelimit"

// bucketScript spends one token from the bucket at KEYS[1]. Redis TIME is the
// clock so short-lived hosts with skewed clocks share one timeline.
//
// ARGV: burst, window_ms, ttl_ms. Returns {allowed, remaining, retry_after_ms}.
const bucketScript = `
local burst = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local ttl_ms = tonumber(ARGV[3])
local rate = burst / window_ms

local t = redis.call("TIME")
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local state = redis.call("HMGET", KEYS[1], "level", "seen")
local level = tonumber(state[1]) or burst
local seen = tonumber(state[2]) or now

if now > seen then
  level = math.min(burst, level + (now - seen) * rate)
end

local ok = 0
local wait = 0
if level >= 1 then
  level = level - 1
  ok = 1
else
  wait = math.ceil((1 - level) / rate)
end

redis.call("HSET", KEYS[1], "level", tostring(level), "seen", now)
redis.call("PEXPIRE", KEYS[1], ttl_ms)
return {ok, math.floor(level), wait}
`

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limits sizes a bucket: Burst requests refill linearly over Window.
type Limits struct {
	Burst     int
	Window    time.Duration
	KeyPrefix string
}

func (l Limits) validate() error {
	var errs []error
	if l.Burst <= 0 {
		errs = append(errs, errors.New("burst must be positive"))
	}
	if l.Window < time.Millisecond {
		errs = append(errs, errors.New("window must be at least 1ms"))
	}
	return errors.Join(errs...)
}

type Bucket struct {
	client redis.Scripter
	limits Limits
	script *redis.Script
}

func NewBucket(client redis.Scripter, limits Limits) (*Bucket, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if err := limits.validate(); err != nil {
		return nil, fmt.Errorf("invalid limits: %w", err)
	}
	if strings.TrimSpace(limits.KeyPrefix) == "" {
		limits.KeyPrefix = defaultKeyPrefix
	}

	return &Bucket{
		client: client,
		limits: limits,
		script: redis.NewScript(bucketScript),
	}, nil
}

// Allow spends one token for subject. An empty subject shares the
// "anonymous" bucket.
func (b *Bucket) Allow(ctx context.Context, subject string) (Decision, error) {
	raw, err := b.script.Run(ctx, b.client, []string{b.key(subject)},
		b.limits.Burst,
		b.limits.Window.Milliseconds(),
		b.ttl().Milliseconds(),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("run bucket script: %w", err)
	}
	return parseDecision(raw)
}

func (b *Bucket) key(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}
	return b.limits.KeyPrefix + ":" + subject
}

// A full refill takes one window, after which the hash is indistinguishable
// from a missing key.
func (b *Bucket) ttl() time.Duration {
	return b.limits.Window + time.Second
}

func parseDecision(raw any) (Decision, error) {
	fields, ok := raw.([]any)
	if !ok || len(fields) != 3 {
		return Decision{}, fmt.Errorf("unexpected bucket reply %#v", raw)
	}

	var n [3]int64
	for i, f := range fields {
		v, err := asInt64(f)
		if err != nil {
			return Decision{}, fmt.Errorf("bucket reply field %d: %w", i, err)
		}
		n[i] = v
	}

	return Decision{
		Allowed:    n[0] == 1,
		Remaining:  n[1],
		RetryAfter: time.Duration(n[2]) * time.Millisecond,
	}, nil
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
