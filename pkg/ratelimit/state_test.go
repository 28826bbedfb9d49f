package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestRateLimitState_Decisions(t *testing.T) {
	future := time.Now().Add(time.Minute)
	past := time.Now().Add(-time.Second)

	tests := []struct {
		name         string
		remaining    int
		resetAt      time.Time
		wantBlock    bool
		wantThrottle bool
		wantHealthy  bool
	}{
		{name: "healthy", remaining: 100, resetAt: future, wantHealthy: true},
		{name: "at healthy threshold", remaining: ThresholdHealthy, resetAt: future, wantHealthy: true},
		{name: "between warning and healthy", remaining: 20, resetAt: future},
		{name: "warning", remaining: ThresholdWarning - 1, resetAt: future, wantThrottle: true},
		{name: "last request", remaining: ThresholdCritical, resetAt: future, wantThrottle: true},
		{name: "exhausted", remaining: 0, resetAt: future, wantBlock: true},
		{name: "exhausted but window reset", remaining: 0, resetAt: past},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &RateLimitState{Remaining: tt.remaining, ResetAt: tt.resetAt, LastUpdate: time.Now()}
			s.UpdateHealth()

			if got := s.NeedsCriticalBlock(); got != tt.wantBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", got, tt.wantBlock)
			}
			if got := s.NeedsThrottling(); got != tt.wantThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.wantThrottle)
			}
			if s.IsHealthy != tt.wantHealthy {
				t.Errorf("IsHealthy = %v, want %v", s.IsHealthy, tt.wantHealthy)
			}
		})
	}
}

func TestRateLimitState_TimeUntilReset(t *testing.T) {
	s := &RateLimitState{ResetAt: time.Now().Add(-time.Hour)}
	if got := s.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0", got)
	}

	s.ResetAt = time.Now().Add(30 * time.Second)
	if got := s.TimeUntilReset(); got <= 25*time.Second || got > 30*time.Second {
		t.Errorf("TimeUntilReset() = %v, want about 30s", got)
	}
}

func TestRateLimitState_IsStale(t *testing.T) {
	s := &RateLimitState{LastUpdate: time.Now().Add(-10 * time.Minute)}
	if !s.IsStale(5 * time.Minute) {
		t.Error("IsStale() = false for a 10 minute old state")
	}
	s.LastUpdate = time.Now()
	if s.IsStale(5 * time.Minute) {
		t.Error("IsStale() = true for a fresh state")
	}
}

func TestParseHeaders(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		headers       map[string]string
		wantOK        bool
		wantErr       bool
		wantRemaining int
		wantReset     time.Duration
	}{
		{
			name:    "no quota headers",
			headers: map[string]string{"Content-Type": "application/json"},
		},
		{
			name:          "remaining and reset",
			headers:       map[string]string{HeaderRemaining: "42", HeaderReset: "1.5"},
			wantOK:        true,
			wantRemaining: 42,
			wantReset:     1500 * time.Millisecond,
		},
		{
			name:          "retry after seconds",
			headers:       map[string]string{HeaderRetryAfter: "7"},
			wantOK:        true,
			wantRemaining: 0,
			wantReset:     7 * time.Second,
		},
		{
			name:          "retry after date",
			headers:       map[string]string{HeaderRemaining: "3", HeaderRetryAfter: now.Add(time.Minute).Format(http.TimeFormat)},
			wantOK:        true,
			wantRemaining: 0,
			wantReset:     time.Minute,
		},
		{
			name:    "bad remaining",
			headers: map[string]string{HeaderRemaining: "lots"},
			wantErr: true,
		},
		{
			name:    "bad reset",
			headers: map[string]string{HeaderRemaining: "1", HeaderReset: "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}

			state, ok, err := ParseHeaders(h, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("ParseHeaders() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if state.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemaining)
			}
			if got := state.ResetAt.Sub(now); got != tt.wantReset {
				t.Errorf("ResetAt - now = %v, want %v", got, tt.wantReset)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "-3", want: 0},
		{in: "120", want: 2 * time.Minute},
		{in: now.Add(-time.Minute).Format(http.TimeFormat), want: 0},
		{in: "whenever", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRetryAfter(tt.in, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRetryAfter() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}
