// Package push sends browser Web Push notifications authenticated with a
// VAPID key pair. No web-push client
// library is carried as a dependency; the VAPID JWT is built directly on
// crypto/ecdsa. Payload encryption (RFC 8291 aes128gcm) is not
// implemented: subscribers receive a signed, unencrypted notification
// body, which the service worker treats as a wake-up ping.
package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// Subscription is a browser's Web Push endpoint, as returned by the
// PushManager.subscribe() API.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Sender delivers Web Push notifications signed with a VAPID key pair.
type Sender struct {
	privateKey *ecdsa.PrivateKey
	publicKey  string // base64url, sent to browsers at subscribe time
	subject    string
	client     *http.Client
}

// New constructs a Sender from a base64url-encoded VAPID key pair
// (config.PushConfig). publicKeyB64 is carried through unused by Send itself
// but exposed so callers can serve it to browser subscribe() calls.
func New(privateKeyB64, publicKeyB64, subject string) (*Sender, error) {
	raw, err := base64.RawURLEncoding.DecodeString(privateKeyB64)
	if err != nil {
		return nil, fmt.Errorf("push: decode VAPID private key: %w", err)
	}
	priv, err := parseECPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("push: parse VAPID private key: %w", err)
	}
	return &Sender{
		privateKey: priv,
		publicKey:  publicKeyB64,
		subject:    subject,
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func parseECPrivateKey(raw []byte) (*ecdsa.PrivateKey, error) {
	if key, err := x509.ParseECPrivateKey(raw); err == nil {
		return key, nil
	}
	// Raw 32-byte scalar, the common VAPID key-pair export format: rebuild
	// the public point by scalar-multiplying the P-256 base point.
	if len(raw) != 32 {
		return nil, fmt.Errorf("unexpected key length %d (want a SEC 1 (EC DER)-encoded or raw 32-byte key)", len(raw))
	}
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	x, y := curve.ScalarBaseMult(raw)
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}, nil
}

// Send POSTs an empty-payload push message (payload encryption not
// implemented; see package doc) to sub's endpoint with a VAPID Authorization
// header, honoring ctx's deadline.
func (s *Sender) Send(ctx context.Context, sub Subscription, title, message string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("push: build request: %w", err)
	}
	token, err := s.vapidJWT(sub.Endpoint)
	if err != nil {
		return fmt.Errorf("push: sign VAPID token: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("vapid t=%s, k=%s", token, s.publicKey))
	req.Header.Set("TTL", "60")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// vapidJWT builds and signs the ES256 JWT VAPID requires in its Authorization
// header (RFC 8292), scoped to endpoint's origin.
func (s *Sender) vapidJWT(endpoint string) (string, error) {
	origin := originOf(endpoint)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT","alg":"ES256"}`))
	claims, err := json.Marshal(map[string]interface{}{
		"aud": origin,
		"exp": time.Now().Add(12 * time.Hour).Unix(),
		"sub": s.subject,
	})
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(claims)
	signingInput := header + "." + payload

	hash := sha256.Sum256([]byte(signingInput))
	r, ss, err := ecdsa.Sign(rand.Reader, s.privateKey, hash[:])
	if err != nil {
		return "", err
	}
	sig := append(padTo32(r.Bytes()), padTo32(ss.Bytes())...)
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

func padTo32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func originOf(endpoint string) string {
	i := strings.Index(endpoint[len("https://"):], "/")
	if i < 0 {
		return endpoint
	}
	return endpoint[:len("https://")+i]
}
