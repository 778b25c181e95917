// Package escrow defines the escrow data model: identifiers, statuses, the
// multisig setup phase, and the legal state transition graph of spec.md §3.
package escrow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ID is an opaque escrow identifier: 16 random bytes rendered as hex.
type ID [16]byte

// NewID returns a freshly generated, random escrow ID.
func NewID() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ID{}, fmt.Errorf("failed to generate escrow id: %w", err)
	}
	return id, nil
}

// String renders the ID as lowercase hex.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IDFromString parses a hex-encoded escrow ID.
func IDFromString(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid escrow id %q: %w", s, err)
	}
	if len(b) != len(ID{}) {
		return ID{}, fmt.Errorf("invalid escrow id %q: want %d bytes, got %d", s, len(ID{}), len(b))
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as hex in JSON.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := IDFromString(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
