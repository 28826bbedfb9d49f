package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	requestsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fireblocks_rate_limit_remaining",
		Help: "Requests remaining in the current rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fireblocks_rate_limit_blocks_total",
		Help: "Total number of requests blocked because the quota was exhausted",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fireblocks_rate_limit_throttles_total",
		Help: "Total number of requests throttled because the quota was low",
	})
)

// Header names read by UpdateFromHeaders.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// DefaultThrottleDelay is the pause applied to each request while the quota
// is in the warning range.
const DefaultThrottleDelay = time.Second

// Tracker monitors the request quota and gates requests.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	throttleDelay time.Duration
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithThrottleDelay overrides DefaultThrottleDelay.
func WithThrottleDelay(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.throttleDelay = d }
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		redis:         redisClient,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetState retrieves the current rate limit state from Redis.
// Returns a default healthy state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	vals, err := t.redis.MGet(ctx, RedisKeyRemaining, RedisKeyResetTimestamp, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	if vals[0] == nil {
		t.logger.Debug().Msg("No rate limit state in Redis, returning default healthy state")
		now := time.Now()
		return &RateLimitState{
			Remaining:  defaultRemaining,
			ResetAt:    now,
			LastUpdate: now,
			IsHealthy:  true,
		}, nil
	}

	remaining, err := strconv.Atoi(fmt.Sprint(vals[0]))
	if err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	state := &RateLimitState{Remaining: remaining}

	if vals[1] != nil {
		resetMillis, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse reset timestamp: %w", err)
		}
		state.ResetAt = time.UnixMilli(resetMillis)
	}
	if vals[2] != nil {
		lastUpdate, err := time.Parse(time.RFC3339Nano, fmt.Sprint(vals[2]))
		if err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
		state.LastUpdate = lastUpdate
	}
	state.UpdateHealth()

	return state, nil
}

// ParseHeaders extracts the quota reported by a response. ok is false when
// the response carries no quota information.
func ParseHeaders(headers http.Header, now time.Time) (state *RateLimitState, ok bool, err error) {
	remainStr := headers.Get(HeaderRemaining)
	retryStr := headers.Get(HeaderRetryAfter)
	if remainStr == "" && retryStr == "" {
		return nil, false, nil
	}

	state = &RateLimitState{Remaining: defaultRemaining, ResetAt: now, LastUpdate: now}

	if remainStr != "" {
		state.Remaining, err = strconv.Atoi(remainStr)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
		}
		if resetStr := headers.Get(HeaderReset); resetStr != "" {
			resetSeconds, err := strconv.ParseFloat(resetStr, 64)
			if err != nil {
				return nil, false, fmt.Errorf("parse %s header: %w", HeaderReset, err)
			}
			state.ResetAt = now.Add(time.Duration(resetSeconds * float64(time.Second)))
		}
	}

	if retryStr != "" {
		d, err := ParseRetryAfter(retryStr, now)
		if err != nil {
			return nil, false, err
		}
		// Retry-After means the quota is gone until then
		state.Remaining = 0
		if reset := now.Add(d); reset.After(state.ResetAt) {
			state.ResetAt = reset
		}
	}

	state.UpdateHealth()
	return state, true, nil
}

// ParseRetryAfter parses a Retry-After value given in seconds or as an HTTP date.
func ParseRetryAfter(v string, now time.Time) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, nil
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s header: %w", HeaderRetryAfter, err)
	}
	if d := at.Sub(now); d > 0 {
		return d, nil
	}
	return 0, nil
}

// UpdateFromHeaders parses the quota headers of a response and stores the
// result in Redis. Responses without quota headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, ok, err := ParseHeaders(headers, time.Now())
	if err != nil || !ok {
		return err
	}

	window := state.TimeUntilReset() + time.Minute
	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, window)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.UnixMilli(), window)
	pipe.Set(ctx, RedisKeyLastUpdate, state.LastUpdate.Format(time.RFC3339Nano), window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	requestsRemaining.Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit exhausted - requests will be blocked until reset")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed based on current
// rate limit state. It returns false while the quota is exhausted and sleeps
// for the throttle delay while it is low. The sleep ends early when ctx is done.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit exhausted - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() && t.throttleDelay > 0 {
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Msg("Rate limit low - throttling request")

		rateLimitThrottlesTotal.Inc()
		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}
