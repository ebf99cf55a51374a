package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"
)

// VaultConfig holds HashiCorp Vault connection configuration, read
// entirely from the environment per spec.md §6 — it never appears in
// the YAML config file.
type VaultConfig struct {
	Enabled    bool
	Address    string
	Token      string
	MountPath  string
	SecretPath string
	Namespace  string
}

// GetVaultConfigFromEnv builds a VaultConfig from VAULT_* environment
// variables. Vault integration is opt-in: with VAULT_ENABLED unset,
// applySecrets falls back to plain environment variable overrides.
func GetVaultConfigFromEnv() VaultConfig {
	if os.Getenv("VAULT_ENABLED") != "true" {
		return VaultConfig{Enabled: false}
	}
	return VaultConfig{
		Enabled:    true,
		Address:    envOrDefault("VAULT_ADDR", "http://localhost:8200"),
		Token:      os.Getenv("VAULT_TOKEN"),
		MountPath:  envOrDefault("VAULT_MOUNT_PATH", "secret"),
		SecretPath: envOrDefault("VAULT_SECRET_PATH", "mev-searcher/production"),
		Namespace:  os.Getenv("VAULT_NAMESPACE"),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// VaultClient wraps the HashiCorp Vault API client for the narrow set
// of secrets this engine reads from it: the bundle signer key, the
// DEX API keys, and the Redis and Postgres connection strings.
type VaultClient struct {
	client *vault.Client
	cfg    VaultConfig
}

// NewVaultClient authenticates to Vault using token auth — the only
// auth method this engine supports; Kubernetes/AppRole auth are not
// wired because nothing in this deployment runs in-cluster.
func NewVaultClient(cfg VaultConfig) (*VaultClient, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("vault is not enabled")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("VAULT_TOKEN not set")
	}

	vc := vault.DefaultConfig()
	vc.Address = cfg.Address
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	client.SetToken(cfg.Token)

	log.Info().Str("address", cfg.Address).Str("secret_path", cfg.SecretPath).Msg("vault client initialized")

	return &VaultClient{client: client, cfg: cfg}, nil
}

// GetSecretString reads a single string field from a KV v2 secret at
// <SecretPath>/<path>.
func (vc *VaultClient) GetSecretString(ctx context.Context, path, key string) (string, error) {
	fullPath := fmt.Sprintf("%s/data/%s/%s", vc.cfg.MountPath, vc.cfg.SecretPath, path)
	secret, err := vc.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return "", fmt.Errorf("read vault secret %s: %w", fullPath, err)
	}
	if secret == nil {
		return "", fmt.Errorf("no secret at %s", fullPath)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		data = secret.Data
	}
	value, ok := data[key].(string)
	if !ok {
		return "", fmt.Errorf("key %q not found at %s", key, fullPath)
	}
	return value, nil
}

// applySecrets resolves every field of cfg that spec.md §6 marks as
// secret or deployment-specific. Vault, when enabled, takes priority;
// plain environment variables are always applied afterward so an
// operator can override a single field without standing up Vault.
func applySecrets(cfg *Config) {
	vaultCfg := GetVaultConfigFromEnv()
	if vaultCfg.Enabled {
		if err := loadSecretsFromVault(context.Background(), cfg, vaultCfg); err != nil {
			log.Warn().Err(err).Msg("vault secret load failed, falling back to environment variables")
		}
	}
	applyEnvOverrides(cfg)
}

func loadSecretsFromVault(ctx context.Context, cfg *Config, vaultCfg VaultConfig) error {
	vc, err := NewVaultClient(vaultCfg)
	if err != nil {
		return err
	}

	if key, err := vc.GetSecretString(ctx, "flashbots", "signer_key"); err == nil {
		cfg.Flashbots.SignerKey = key
		log.Info().Msg("loaded flashbots signer key from vault")
	}

	for name := range cfg.DEX {
		key, err := vc.GetSecretString(ctx, fmt.Sprintf("dex/%s", name), "api_key")
		if err != nil {
			continue
		}
		entry := cfg.DEX[name]
		entry.APIKey = key
		cfg.DEX[name] = entry
		log.Info().Str("dex", name).Msg("loaded dex api key from vault")
	}

	if url, err := vc.GetSecretString(ctx, "database", "redis_url"); err == nil {
		cfg.Database.RedisURL = url
	}
	if url, err := vc.GetSecretString(ctx, "database", "postgres_url"); err == nil {
		cfg.Database.PostgresURL = url
	}

	return nil
}

// applyEnvOverrides applies the plain environment variable overrides
// spec.md §6 documents for secret or deployment-specific values.
// viper.AutomaticEnv already covers the mapstructure-tagged fields
// via their dotted paths (e.g. NETWORK.RPC_URL); these are the
// human-friendly aliases operators actually set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Network.RPCURL = v
	}
	if v := os.Getenv("WS_URL"); v != "" {
		cfg.Network.WSURL = v
	}
	if v := os.Getenv("SIGNER_KEY"); v != "" {
		cfg.Flashbots.SignerKey = v
	}
	if v := os.Getenv("RELAY_URL"); v != "" {
		cfg.Flashbots.RelayURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Database.RedisURL = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Database.PostgresURL = v
	}
	if v := os.Getenv("RUN_MODE"); v != "" {
		cfg.RunMode = v
	}

	for name, entry := range cfg.DEX {
		envKey := fmt.Sprintf("DEX_%s_API_KEY", strings.ToUpper(name))
		if v := os.Getenv(envKey); v != "" {
			entry.APIKey = v
			cfg.DEX[name] = entry
		}
	}
}

// ValidateProductionSecrets flags placeholder or missing secrets
// before a `real` run mode is allowed to start — used by
// --validate-config.
func ValidateProductionSecrets(cfg *Config) []string {
	var problems []string

	if cfg.RunMode != "real" {
		return problems
	}

	if cfg.Flashbots.SignerKey == "" || isPlaceholder(cfg.Flashbots.SignerKey) {
		problems = append(problems, "flashbots.signer_key is empty or a placeholder value")
	}
	if cfg.Network.RPCURL == "" {
		problems = append(problems, "network.rpc_url is empty")
	}
	if cfg.Network.WSURL == "" {
		problems = append(problems, "network.ws_url is empty")
	}
	for name, entry := range cfg.DEX {
		if entry.APIKey != "" && isPlaceholder(entry.APIKey) {
			problems = append(problems, fmt.Sprintf("dex.%s.api_key looks like a placeholder value", name))
		}
	}

	return problems
}

var secretPlaceholders = []string{
	"changeme", "change_me", "your_api_key", "your_secret", "test",
	"password", "example", "sample", "demo",
}

func isPlaceholder(secret string) bool {
	lower := strings.ToLower(secret)
	for _, p := range secretPlaceholders {
		if lower == p || strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
