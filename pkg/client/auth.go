package client

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenTTL is how long a request token stays valid. The API rejects tokens
// whose lifetime exceeds 60 seconds.
const tokenTTL = 55 * time.Second

// requestClaims are the claims of a per-request token.
type requestClaims struct {
	URI      string `json:"uri"`
	Nonce    string `json:"nonce"`
	BodyHash string `json:"bodyHash"`
	jwt.RegisteredClaims
}

// Signer produces the per-request bearer token: an RS256 JWT bound to the
// request URI and body.
type Signer struct {
	apiKey string
	key    *rsa.PrivateKey
	now    func() time.Time
}

// NewSigner creates a signer for apiKey.
func NewSigner(apiKey string, key *rsa.PrivateKey) *Signer {
	return &Signer{apiKey: apiKey, key: key, now: time.Now}
}

// ParsePrivateKey parses a PEM encoded RSA private key (PKCS#1 or PKCS#8).
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Sign returns the token for a request to uri (path and query) with body.
func (s *Signer) Sign(uri string, body []byte) (string, error) {
	now := s.now()
	sum := sha256.Sum256(body)

	claims := requestClaims{
		URI:      uri,
		Nonce:    uuid.NewString(),
		BodyHash: hex.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.apiKey,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign request token: %w", err)
	}
	return token, nil
}
