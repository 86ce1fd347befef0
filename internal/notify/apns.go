package notify

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	apnsHostProduction = "https://api.push.apple.com"
	apnsHostSandbox    = "https://api.sandbox.push.apple.com"

	// Apple accepts provider tokens up to an hour old; refreshing at fifty
	// minutes keeps a margin under that limit.
	providerTokenTTL = 50 * time.Minute

	pushTimeout = 10 * time.Second
)

// silentPayload wakes the wallet app without showing anything; the app then
// calls back for changed serials.
var silentPayload = []byte(`{"aps":{}}`)

// APNSConfig holds the provider-token credentials.
type APNSConfig struct {
	KeyID      string
	TeamID     string
	PrivateKey []byte // PEM, PKCS#8 EC
	Production bool
}

// APNSClient delivers silent pushes over the provider API. The underlying
// http.Client negotiates HTTP/2 via ALPN, which the provider requires.
type APNSClient struct {
	cfg  APNSConfig
	key  *ecdsa.PrivateKey
	host string
	http *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewAPNSClient parses the signing key and prepares a client. Returns an
// error when the key material is unusable, so misconfiguration surfaces at
// startup instead of on the first push.
func NewAPNSClient(cfg APNSConfig) (*APNSClient, error) {
	key, err := parseECPrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("apns: parse private key: %w", err)
	}
	host := apnsHostSandbox
	if cfg.Production {
		host = apnsHostProduction
	}
	return &APNSClient{
		cfg:  cfg,
		key:  key,
		host: host,
		http: &http.Client{Timeout: pushTimeout},
	}, nil
}

func parseECPrivateKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		ec, ok := k.(*ecdsa.PrivateKey)
		if !ok {
			return nil, errors.New("not an EC key")
		}
		return ec, nil
	}
	return x509.ParseECPrivateKey(block.Bytes)
}

// providerToken returns a cached ES256 provider token, minting a fresh one
// when the cached token is within a minute of its refresh deadline.
func (c *APNSClient) providerToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Until(c.tokenExp) > time.Minute {
		return c.token, nil
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": c.cfg.TeamID,
		"iat": now.Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = c.cfg.KeyID
	signed, err := tok.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("apns: sign provider token: %w", err)
	}
	c.token = signed
	c.tokenExp = now.Add(providerTokenTTL)
	return signed, nil
}

// Push sends one silent notification to a device token under the pass type
// topic.
func (c *APNSClient) Push(ctx context.Context, deviceToken, topic string) error {
	providerToken, err := c.providerToken()
	if err != nil {
		return err
	}

	url := c.host + "/3/device/" + deviceToken
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(silentPayload))
	if err != nil {
		return fmt.Errorf("apns: build request: %w", err)
	}
	req.Header.Set("authorization", "bearer "+providerToken)
	req.Header.Set("apns-topic", topic)
	req.Header.Set("apns-expiration", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	req.Header.Set("content-type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apns: push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("apns: push rejected: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}
