package cache

import (
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies a stored response.
type CacheKey struct {
	// Endpoint is the request path (e.g., "/v1/vault/accounts/12")
	Endpoint string

	// QueryParams are the request query parameters
	QueryParams url.Values

	// Account separates workspaces that share one Redis. The client uses a
	// fingerprint of its API key.
	Account string
}

// String generates a deterministic cache key string.
// Format: fireblocks:endpoint:query1=val1:acct=6f1c
//
// Example:
//
//	fireblocks:v1/vault/accounts/12:acct=6f1c
func (k CacheKey) String() string {
	parts := []string{"fireblocks"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, key+"="+strings.Join(k.QueryParams[key], ","))
		}
	}

	if k.Account != "" {
		parts = append(parts, "acct="+k.Account)
	}

	return strings.Join(parts, ":")
}
