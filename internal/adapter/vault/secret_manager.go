package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/pkg/config"
)

// Keys read from the service secret.
const (
	KeyJWTSecret   = "jwt_secret"
	KeyDatabaseURL = "database_url"
	KeyRedisURL    = "redis_url"
)

type SecretManager struct {
	client *api.Client
	path   string
	log    *zap.Logger
}

// NewSecretManager builds a client for a KV v2 secret, e.g.
// "secret/data/voz-visible".
func NewSecretManager(address, token, path string, log *zap.Logger) (*SecretManager, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(token)

	return &SecretManager{client: client, path: path, log: log}, nil
}

// Read returns the string values stored at the secret path.
func (sm *SecretManager) Read(ctx context.Context) (map[string]string, error) {
	secret, err := sm.client.Logical().ReadWithContext(ctx, sm.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", sm.path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret %s not found", sm.path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("secret %s is not a kv v2 secret", sm.path)
	}

	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

// Apply overlays secrets onto cfg. Keys absent from the secret keep the
// configured value.
func (sm *SecretManager) Apply(ctx context.Context, cfg *config.Config) error {
	values, err := sm.Read(ctx)
	if err != nil {
		return err
	}

	applied := 0
	set := func(key string, dst *string) {
		if v := values[key]; v != "" {
			*dst = v
			applied++
		}
	}
	set(KeyJWTSecret, &cfg.JWT.Secret)
	set(KeyDatabaseURL, &cfg.Database.URL)
	set(KeyRedisURL, &cfg.Redis.URL)

	sm.log.Info("Secrets loaded from vault", zap.String("path", sm.path), zap.Int("applied", applied))
	return nil
}
