package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/athanor-escrow/escrowd/cryptoutil"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	t.Setenv("ESCROWD_"+key, value)
}

func validArbiterPubKeyHex(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return hex.EncodeToString(pub)
}

func TestLoad_RejectsMissingBackendURLs(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_RejectsNonMultipleOfThreeBackends(t *testing.T) {
	setEnv(t, "BACKEND_URLS", "http://127.0.0.1:1,http://127.0.0.1:2")
	setEnv(t, "DB_ENCRYPTION_KEY", hex.EncodeToString(make([]byte, 32)))
	setEnv(t, "ARBITER_PUBKEY", validArbiterPubKeyHex(t))

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_RejectsMissingArbiterPubKey(t *testing.T) {
	setEnv(t, "BACKEND_URLS", "http://127.0.0.1:1,http://127.0.0.1:2,http://127.0.0.1:3")
	setEnv(t, "DB_ENCRYPTION_KEY", hex.EncodeToString(make([]byte, 32)))

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_SucceedsWithDirectEncryptionKey(t *testing.T) {
	setEnv(t, "BACKEND_URLS", "http://127.0.0.1:1,http://127.0.0.1:2,http://127.0.0.1:3")
	setEnv(t, "DB_ENCRYPTION_KEY", hex.EncodeToString(make([]byte, 32)))
	setEnv(t, "ARBITER_PUBKEY", validArbiterPubKeyHex(t))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.BackendURLs, 3)
	require.Equal(t, 5, cfg.BackendConcurrency)
}

func TestLoad_SucceedsWithShamirShares(t *testing.T) {
	secret := make([]byte, 32)
	shares, err := cryptoutil.SplitSecret(secret, 3, 5)
	require.NoError(t, err)

	setEnv(t, "BACKEND_URLS", "http://127.0.0.1:1,http://127.0.0.1:2,http://127.0.0.1:3")
	setEnv(t, "DB_ENCRYPTION_KEY_SHARES", shares[0].String()+","+shares[1].String()+","+shares[2].String())
	setEnv(t, "ARBITER_PUBKEY", validArbiterPubKeyHex(t))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, secret, cfg.EncryptionKey)
}
