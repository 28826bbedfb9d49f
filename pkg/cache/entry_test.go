package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_Expiry(t *testing.T) {
	tests := []struct {
		name        string
		expires     time.Time
		wantExpired bool
		wantTTL     bool
	}{
		{name: "future", expires: time.Now().Add(time.Hour), wantTTL: true},
		{name: "past", expires: time.Now().Add(-time.Minute), wantExpired: true},
		{name: "zero", expires: time.Time{}, wantExpired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &CacheEntry{Expires: tt.expires}
			if got := e.IsExpired(); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}
			if got := e.TTL() > 0; got != tt.wantTTL {
				t.Errorf("TTL() = %v, want positive = %v", e.TTL(), tt.wantTTL)
			}
		})
	}
}

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "path only",
			key:  CacheKey{Endpoint: "/v1/vault/accounts/12"},
			want: "fireblocks:v1/vault/accounts/12",
		},
		{
			name: "sorted query with account",
			key: CacheKey{
				Endpoint:    "/v1/transactions",
				QueryParams: map[string][]string{"sourceId": {"4"}, "after": {"0"}, "status": {"A", "B"}},
				Account:     "6f1c",
			},
			want: "fireblocks:v1/transactions:after=0:sourceId=4:status=A,B:acct=6f1c",
		},
		{
			name: "empty",
			key:  CacheKey{},
			want: "fireblocks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_AccountsDoNotCollide(t *testing.T) {
	a := CacheKey{Endpoint: "/v1/vault/accounts/1", Account: "aaaa"}
	b := CacheKey{Endpoint: "/v1/vault/accounts/1", Account: "bbbb"}
	if a.String() == b.String() {
		t.Errorf("keys for different accounts collide: %s", a)
	}
}
