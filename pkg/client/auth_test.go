package client

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/fireblocks-client/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
	testPEM []byte
	keyErr  error
)

// signingKey returns an RSA key shared by the package's tests.
func signingKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	keyOnce.Do(func() {
		testKey, testPEM, keyErr = testutil.GenerateKey()
	})
	if keyErr != nil {
		t.Fatalf("generate key: %v", keyErr)
	}
	return testKey, testPEM
}

func TestSigner_Sign(t *testing.T) {
	key, _ := signingKey(t)
	now := time.Unix(1700000000, 0)
	s := NewSigner("api-key-1", key)
	s.now = func() time.Time { return now }

	body := []byte(`{"amount":"1"}`)
	raw, err := s.Sign("/v1/transactions?limit=10", body)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	var claims requestClaims
	_, err = jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	sum := sha256.Sum256(body)
	if claims.URI != "/v1/transactions?limit=10" {
		t.Errorf("uri = %q", claims.URI)
	}
	if claims.Subject != "api-key-1" {
		t.Errorf("sub = %q", claims.Subject)
	}
	if claims.BodyHash != hex.EncodeToString(sum[:]) {
		t.Errorf("bodyHash = %q", claims.BodyHash)
	}
	if claims.Nonce == "" {
		t.Error("nonce is empty")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != tokenTTL {
		t.Errorf("token lifetime = %v, want %v", got, tokenTTL)
	}

	// Nonces never repeat
	other, err := s.Sign("/v1/transactions?limit=10", body)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if other == raw {
		t.Error("two tokens for the same request are identical")
	}
}

func TestSigner_EmptyBodyHash(t *testing.T) {
	key, _ := signingKey(t)
	raw, err := NewSigner("k", key).Sign("/v1/vault/accounts_paged", nil)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	var claims requestClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		t.Fatalf("parse token: %v", err)
	}
	// sha256 of the empty string
	if claims.BodyHash != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("bodyHash = %q", claims.BodyHash)
	}
}

func TestParsePrivateKey(t *testing.T) {
	key, pemBytes := signingKey(t)

	parsed, err := ParsePrivateKey(pemBytes)
	if err != nil {
		t.Fatalf("ParsePrivateKey() error = %v", err)
	}
	if !parsed.Equal(key) {
		t.Error("parsed key differs from the original")
	}

	if _, err := ParsePrivateKey([]byte("not a key")); err == nil {
		t.Error("ParsePrivateKey() accepted garbage")
	}
}
