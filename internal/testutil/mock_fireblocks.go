// Package testutil provides an in-memory Fireblocks API for tests.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/fireblocks-client/pkg/types"
	"github.com/golang-jwt/jwt/v5"
)

// MockResponse is a canned response for one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockFireblocks serves the vault and transaction listing endpoints from
// in-memory data. When a public key is set, every request must carry a valid
// bearer token for APIKey.
type MockFireblocks struct {
	server *httptest.Server

	mu           sync.RWMutex
	vaults       []types.VaultAccount
	transactions []types.Transaction
	handlers     map[string]http.HandlerFunc
	failures     []MockResponse
	publicKey    *rsa.PublicKey
	apiKey       string

	requestCount int
	queries      map[string][]string
	lastHeader   http.Header
}

// NewMockFireblocks starts a mock server.
func NewMockFireblocks() *MockFireblocks {
	m := &MockFireblocks{
		handlers: make(map[string]http.HandlerFunc),
		queries:  make(map[string][]string),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the mock server URL.
func (m *MockFireblocks) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockFireblocks) Close() {
	m.server.Close()
}

// RequireAuth makes the server reject requests that are not signed by key
// for apiKey.
func (m *MockFireblocks) RequireAuth(apiKey string, key *rsa.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKey = apiKey
	m.publicKey = key
}

// SetVaults replaces the vault accounts served by the paged endpoint.
func (m *MockFireblocks) SetVaults(vaults ...types.VaultAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vaults = vaults
}

// SetTransactions replaces the transactions served by /v1/transactions.
func (m *MockFireblocks) SetTransactions(txs ...types.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append([]types.Transaction(nil), txs...)
	sort.SliceStable(m.transactions, func(i, j int) bool {
		return m.transactions[i].CreatedAt.Before(m.transactions[j].CreatedAt.Time)
	})
}

// SetHandler serves path with handler instead of the built-in handler.
func (m *MockFireblocks) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse serves resp for path instead of the built-in handler.
func (m *MockFireblocks) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeCanned(w, resp)
	})
}

// FailNext makes the next len(resps) requests, on any path, answer with
// resps in order.
func (m *MockFireblocks) FailNext(resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, resps...)
}

// RequestCount returns the number of requests received.
func (m *MockFireblocks) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// Queries returns the raw query strings received for path, in order.
func (m *MockFireblocks) Queries(path string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.queries[path]...)
}

// LastHeader returns the headers of the most recent request.
func (m *MockFireblocks) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader.Clone()
}

func (m *MockFireblocks) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.queries[r.URL.Path] = append(m.queries[r.URL.Path], r.URL.RawQuery)
	m.lastHeader = r.Header.Clone()
	var failure *MockResponse
	if len(m.failures) > 0 {
		failure = &m.failures[0]
		m.failures = m.failures[1:]
	}
	handler := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if err := m.authenticate(r); err != nil {
		writeError(w, http.StatusUnauthorized, -7, err.Error())
		return
	}

	w.Header().Set("X-RateLimit-Remaining", "100")
	w.Header().Set("X-RateLimit-Reset", "60")

	switch {
	case failure != nil:
		writeCanned(w, *failure)
	case handler != nil:
		handler(w, r)
	case r.URL.Path == "/v1/vault/accounts_paged":
		m.serveVaults(w, r)
	case strings.HasPrefix(r.URL.Path, "/v1/vault/accounts/"):
		m.serveVault(w, strings.TrimPrefix(r.URL.Path, "/v1/vault/accounts/"))
	case r.URL.Path == "/v1/transactions":
		m.serveTransactions(w, r)
	default:
		writeError(w, http.StatusNotFound, 404, "not found")
	}
}

func (m *MockFireblocks) authenticate(r *http.Request) error {
	m.mu.RLock()
	key, apiKey := m.publicKey, m.apiKey
	m.mu.RUnlock()
	if key == nil {
		return nil
	}

	if r.Header.Get("X-API-Key") != apiKey {
		return fmt.Errorf("unknown api key")
	}
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return fmt.Errorf("missing bearer token")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if sub, _ := claims.GetSubject(); sub != apiKey {
		return fmt.Errorf("token subject mismatch")
	}
	if uri, _ := claims["uri"].(string); uri != r.URL.RequestURI() {
		return fmt.Errorf("token uri %q does not match %q", uri, r.URL.RequestURI())
	}
	if nonce, _ := claims["nonce"].(string); nonce == "" {
		return fmt.Errorf("token nonce missing")
	}
	return nil
}

func (m *MockFireblocks) serveVaults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 200
	}
	start := 0
	if after := q.Get("after"); after != "" {
		start, err = decodeToken(after)
		if err != nil {
			writeError(w, http.StatusBadRequest, 1400, "invalid paging token")
			return
		}
	}

	m.mu.RLock()
	var matched []types.VaultAccount
	for _, v := range m.vaults {
		if p := q.Get("namePrefix"); p != "" && !strings.HasPrefix(v.Name, p) {
			continue
		}
		matched = append(matched, v)
	}
	m.mu.RUnlock()

	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+limit, len(matched))

	page := types.VaultAccounts{Accounts: matched[start:end]}
	if page.Accounts == nil {
		page.Accounts = []types.VaultAccount{}
	}
	if start > 0 {
		page.Paging.Before = encodeToken(start)
	}
	if end < len(matched) {
		page.Paging.After = encodeToken(end)
	}
	writeJSON(w, page)
}

func (m *MockFireblocks) serveVault(w http.ResponseWriter, id string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.vaults {
		if v.ID == id {
			writeJSON(w, v)
			return
		}
	}
	writeError(w, http.StatusNotFound, 11001, "vault account not found")
}

// serveTransactions filters by sourceId or destId and returns the oldest
// limit transactions created at or after the "after" instant.
func (m *MockFireblocks) serveTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 200
	}
	var after int64
	if v := q.Get("after"); v != "" {
		if after, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, 1400, "invalid after")
			return
		}
	}

	m.mu.RLock()
	page := []types.Transaction{}
	for _, tx := range m.transactions {
		if len(page) == limit {
			break
		}
		if tx.CreatedAt.Millis() < after {
			continue
		}
		if id := q.Get("sourceId"); id != "" && (tx.Source.ID != id || tx.Source.Type != types.PeerVaultAccount) {
			continue
		}
		if id := q.Get("destId"); id != "" && (tx.Destination.ID != id || tx.Destination.Type != types.PeerVaultAccount) {
			continue
		}
		page = append(page, tx)
	}
	m.mu.RUnlock()

	writeJSON(w, page)
}

func encodeToken(i int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(i)))
}

func decodeToken(s string) (int, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(b))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"message": msg, "code": code})
}

func writeCanned(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// GenerateKey returns a fresh RSA key and its PKCS#8 PEM encoding.
func GenerateKey() (*rsa.PrivateKey, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, err
	}
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// Vault returns a vault account with id and name.
func Vault(id, name string) types.VaultAccount {
	return types.VaultAccount{ID: id, Name: name}
}

// Transfer returns a completed vault-to-vault transfer created at ms.
func Transfer(id, from, to string, ms int64) types.Transaction {
	return types.Transaction{
		ID:          id,
		AssetID:     "BTC",
		Status:      types.StatusCompleted,
		Source:      types.TransferPeer{Type: types.PeerVaultAccount, ID: from},
		Destination: types.TransferPeer{Type: types.PeerVaultAccount, ID: to},
		CreatedAt:   types.EpochFromMillis(ms),
		LastUpdated: types.EpochFromMillis(ms),
	}
}
