// Package ratelimit tracks the API request quota and gates requests on it.
// It reads the X-RateLimit-Remaining and X-RateLimit-Reset headers, plus
// Retry-After on 429 responses, and shares the resulting state through Redis
// so that every process using the same API key backs off together.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining      = "fireblocks:rate_limit:remaining"
	RedisKeyResetTimestamp = "fireblocks:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "fireblocks:rate_limit:last_update"
)

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks requests when fewer requests than this remain
	// in the current window.
	ThresholdCritical = 1

	// ThresholdWarning throttles requests when fewer requests than this remain.
	ThresholdWarning = 10

	// ThresholdHealthy marks the state healthy at or above this many
	// remaining requests.
	ThresholdHealthy = 50
)

// defaultRemaining is assumed before any response has reported a quota.
const defaultRemaining = 100

// RateLimitState is the request quota shared across client instances.
type RateLimitState struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the current window ends.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// windowOpen reports whether the recorded window is still running. A window
// that has already reset no longer restricts anything.
func (s *RateLimitState) windowOpen() bool {
	return time.Now().Before(s.ResetAt)
}

// NeedsCriticalBlock returns true if requests should be blocked until reset.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.windowOpen() && s.Remaining < ThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.windowOpen() && s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
