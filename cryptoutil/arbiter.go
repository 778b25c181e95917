package cryptoutil

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// ParseArbiterPubKey strictly validates and decodes the ARBITER_PUBKEY
// configuration value of spec.md §4.6/§6.4/§8: a 64-hex-char (32-byte)
// Ed25519 public key. Startup must refuse to proceed if this fails.
func ParseArbiterPubKey(hexKey string) (ed25519.PublicKey, error) {
	if len(hexKey) != hex.EncodedLen(ed25519.PublicKeySize) {
		return nil, fmt.Errorf(
			"ARBITER_PUBKEY must be %d hex chars, got %d",
			hex.EncodedLen(ed25519.PublicKeySize), len(hexKey),
		)
	}

	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("ARBITER_PUBKEY is not valid hex: %w", err)
	}

	return ed25519.PublicKey(raw), nil
}

// VerifyArbiterSignature verifies an arbiter decision signature (spec.md
// §4.6 import path, step 2) over the canonical decision payload.
func VerifyArbiterSignature(pubKey ed25519.PublicKey, message, signature []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pubKey, message, signature)
}

// SignWithServerKey signs a dispute bundle with the server-held Ed25519 key
// (spec.md §4.6 export path, step 4), so the offline signing tool can verify
// the bundle's authenticity before acting on it.
func SignWithServerKey(priv ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(priv, message)
}
