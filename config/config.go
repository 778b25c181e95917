// Package config binds the minimal configuration surface of spec.md §6.4
// (backend URLs, store encryption key, arbiter public key, timeouts, and
// pool/sync tuning knobs) using viper, layering environment variables over
// an optional config file.
package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/athanor-escrow/escrowd/cryptoutil"
	"github.com/athanor-escrow/escrowd/monitor"
)

// Config is the fully-validated, ready-to-use configuration of an escrowd
// process (spec.md §6.4).
type Config struct {
	BackendURLs []string

	EncryptionKey []byte
	ArbiterPubKey ed25519.PublicKey

	Timeouts monitor.Timeouts

	SyncCacheTTL       time.Duration
	BackendConcurrency int
	ListenAddr         string

	DataDir  string
	InMemory bool
}

// defaults mirrors spec.md §6.4's named defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("sync_cache_ttl", "60s")
	v.SetDefault("backend_concurrency", 5)
	v.SetDefault("listen_addr", "127.0.0.1:8546")
	v.SetDefault("data_dir", "./escrowd-data")
	v.SetDefault("in_memory", false)

	v.SetDefault("timeout_multisig_setup", "1h")
	v.SetDefault("timeout_funding", "24h")
	v.SetDefault("timeout_transaction_confirm", "6h")
	v.SetDefault("timeout_dispute_resolution", "168h")
}

// Load reads configuration from the environment (and, if present, a config
// file at configPath), strictly validating the encryption key and arbiter
// public key per spec.md §6.4/§8. configPath may be empty to skip the file
// layer entirely.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ESCROWD")
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", configPath, err)
		}
	}

	backendURLs := splitCommaList(v.GetString("backend_urls"))
	if len(backendURLs) == 0 || len(backendURLs)%3 != 0 {
		return nil, fmt.Errorf("config: BACKEND_URLS must be a non-empty list whose length is a multiple of 3, got %d", len(backendURLs))
	}

	key, err := resolveEncryptionKey(v)
	if err != nil {
		return nil, err
	}

	arbiterHex := v.GetString("arbiter_pubkey")
	if arbiterHex == "" {
		return nil, fmt.Errorf("config: ARBITER_PUBKEY is required")
	}
	arbiterPub, err := cryptoutil.ParseArbiterPubKey(arbiterHex)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &Config{
		BackendURLs:        backendURLs,
		EncryptionKey:      key,
		ArbiterPubKey:      arbiterPub,
		Timeouts: monitor.Timeouts{
			MultisigSetup:      v.GetDuration("timeout_multisig_setup"),
			Funding:            v.GetDuration("timeout_funding"),
			TransactionConfirm: v.GetDuration("timeout_transaction_confirm"),
			DisputeResolution:  v.GetDuration("timeout_dispute_resolution"),
		},
		SyncCacheTTL:       v.GetDuration("sync_cache_ttl"),
		BackendConcurrency: v.GetInt("backend_concurrency"),
		ListenAddr:         v.GetString("listen_addr"),
		DataDir:            v.GetString("data_dir"),
		InMemory:           v.GetBool("in_memory"),
	}, nil
}

// resolveEncryptionKey implements spec.md §6.4/§9: either a direct
// DB_ENCRYPTION_KEY (64 hex chars, 32 bytes) or 3-of-5 Shamir shares
// reconstructed at startup.
func resolveEncryptionKey(v *viper.Viper) ([]byte, error) {
	if direct := v.GetString("db_encryption_key"); direct != "" {
		key, err := decodeHexKey(direct)
		if err != nil {
			return nil, fmt.Errorf("config: DB_ENCRYPTION_KEY: %w", err)
		}
		return key, nil
	}

	shareHexes := splitCommaList(v.GetString("db_encryption_key_shares"))
	if len(shareHexes) < 3 {
		return nil, fmt.Errorf("config: need DB_ENCRYPTION_KEY or at least 3 DB_ENCRYPTION_KEY_SHARES, got %d shares", len(shareHexes))
	}

	shares := make([]cryptoutil.Share, len(shareHexes))
	for i, h := range shareHexes {
		s, err := cryptoutil.ParseShare(h)
		if err != nil {
			return nil, fmt.Errorf("config: DB_ENCRYPTION_KEY_SHARES[%d]: %w", i, err)
		}
		shares[i] = s
	}

	key, err := cryptoutil.CombineShares(shares)
	if err != nil {
		return nil, fmt.Errorf("config: failed to reconstruct encryption key from shares: %w", err)
	}
	return key, nil
}

func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func decodeHexKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("not valid hex: %w", err)
	}
	if len(key) != cryptoutil.KeySize {
		return nil, fmt.Errorf("must decode to %d bytes, got %d", cryptoutil.KeySize, len(key))
	}
	return key, nil
}
