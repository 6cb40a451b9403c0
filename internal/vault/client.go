// Package vault fetches the shared envelope key from HashiCorp Vault.
// The service authenticates with AppRole, reads the hex-encoded AES key
// from the KV v2 mount and caches it in process.  The Vault token is
// renewed proactively shortly before its lease runs out; if renewal
// fails the client logs in again with the AppRole credentials.
package vault

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
)

// renewMargin is how close to lease expiry the token is renewed.
const renewMargin = 30 * time.Second

// Config carries the connection and AppRole parameters, loaded from the
// environment by internal/config.
type Config struct {
	Address   string // e.g. https://localhost:8200
	RoleID    string
	SecretID  string
	KeyPath   string // KV v2 read path, e.g. secret-v2/data/aes-key
	KeyField  string // field inside the secret data, e.g. "value"
	TLSSkip   bool   // allow self-signed certs in dev
	KeyMaxAge time.Duration
}

// Client implements crypto.KeyProvider on top of a Vault KV v2 mount.
type Client struct {
	api *vaultapi.Client
	cfg Config

	mu          sync.Mutex
	tokenAt     time.Time
	leaseTTL    time.Duration
	cachedKey   []byte
	cachedKeyAt time.Time
}

func New(cfg Config) (*Client, error) {
	vc := vaultapi.DefaultConfig()
	vc.Address = cfg.Address
	if cfg.TLSSkip {
		if err := vc.ConfigureTLS(&vaultapi.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("vault tls config: %w", err)
		}
	}
	api, err := vaultapi.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	if cfg.KeyMaxAge <= 0 {
		cfg.KeyMaxAge = 5 * time.Minute
	}
	return &Client{api: api, cfg: cfg}, nil
}

// Key returns the current envelope key, serving the cached copy while
// it is fresh.  The caller owns neither the slice nor its lifetime.
func (c *Client) Key(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachedKey != nil && time.Since(c.cachedKeyAt) < c.cfg.KeyMaxAge {
		return c.cachedKey, nil
	}

	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	secret, err := c.api.Logical().ReadWithContext(ctx, c.cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("vault read %s: %w", c.cfg.KeyPath, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("vault read %s: empty secret", c.cfg.KeyPath)
	}

	// KV v2 nests the payload under "data".
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		data = secret.Data
	}
	hexKey, ok := data[c.cfg.KeyField].(string)
	if !ok || hexKey == "" {
		return nil, fmt.Errorf("vault secret %s: field %q missing", c.cfg.KeyPath, c.cfg.KeyField)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("vault secret %s: field %q is not hex: %w", c.cfg.KeyPath, c.cfg.KeyField, err)
	}

	c.cachedKey = key
	c.cachedKeyAt = time.Now()
	return key, nil
}

// ensureToken logs in on first use and renews the token once its lease
// is within renewMargin of expiring.  Renewal failure falls back to a
// fresh AppRole login.  Callers hold c.mu.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.api.Token() == "" {
		return c.login(ctx)
	}

	elapsed := time.Since(c.tokenAt)
	if c.leaseTTL <= 0 || elapsed < c.leaseTTL-renewMargin {
		return nil
	}

	renewed, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
	if err == nil && renewed != nil && renewed.Auth != nil {
		c.tokenAt = time.Now()
		c.leaseTTL = time.Duration(renewed.Auth.LeaseDuration) * time.Second
		return nil
	}

	log.Printf("vault: token renew failed, re-authenticating with approle: %v", err)
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	secret, err := c.api.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]any{
		"role_id":   c.cfg.RoleID,
		"secret_id": c.cfg.SecretID,
	})
	if err != nil {
		return fmt.Errorf("vault approle login: %w", err)
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return fmt.Errorf("vault approle login: no client token in response")
	}
	c.api.SetToken(secret.Auth.ClientToken)
	c.tokenAt = time.Now()
	c.leaseTTL = time.Duration(secret.Auth.LeaseDuration) * time.Second
	log.Printf("vault: logged in with approle (lease %s)", c.leaseTTL)
	return nil
}
