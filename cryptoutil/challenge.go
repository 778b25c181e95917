// Package cryptoutil holds the small cryptographic primitives the
// orchestrator needs that sit outside the Monero wallet-RPC boundary: the
// optional proof-of-possession challenge (spec.md §4.1.6), AES-GCM blob
// encryption (§4.4), arbiter signature verification (§4.6), and Shamir
// reconstruction of the DB encryption key (§5, §9).
package cryptoutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// challengeDomain is the domain-separation prefix from spec.md §4.1.6.
const challengeDomain = "MONERO_MARKETPLACE_MULTISIG_CHALLENGE"

// ChallengeTTL is the 5-minute validity window of spec.md §4.1.6.
const ChallengeTTL = 5 * time.Minute

// Challenge is the nonce + escrow-id + timestamp structure of spec.md §3's
// MultisigChallenge.
type Challenge struct {
	Nonce     [16]byte
	EscrowID  string
	CreatedAt time.Time
}

// NewChallenge generates a random challenge for the given escrow.
func NewChallenge(escrowID string, now time.Time) (*Challenge, error) {
	c := &Challenge{EscrowID: escrowID, CreatedAt: now}
	if _, err := rand.Read(c.Nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate challenge nonce: %w", err)
	}
	return c, nil
}

// Expired reports whether the challenge is outside its TTL as of `now`.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.CreatedAt.Add(ChallengeTTL))
}

// Digest computes BLAKE2b(domain || nonce || escrow_id || created_at), the
// message a participant must sign to prove possession of the key embedded
// in their multisig_info, per spec.md §4.1.6.
func (c *Challenge) Digest() ([32]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to init blake2b: %w", err)
	}

	h.Write([]byte(challengeDomain))
	h.Write(c.Nonce[:])
	h.Write([]byte(c.EscrowID))

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(c.CreatedAt.Unix()))
	h.Write(tsBuf[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// VerifyChallengeSignature verifies that signature is a valid Ed25519
// signature over the challenge digest under pubKey.
func VerifyChallengeSignature(c *Challenge, pubKey ed25519.PublicKey, signature []byte) (bool, error) {
	digest, err := c.Digest()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pubKey, digest[:], signature), nil
}
