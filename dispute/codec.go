package dispute

import (
	"encoding/hex"
	"fmt"

	"github.com/athanor-escrow/escrowd/escrow"
)

func hexDecode(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("dispute: not valid hex: %w", err)
	}
	return raw, nil
}

// signedDecisionMessage builds the canonical byte string the arbiter's
// offline tool signs over for a Decision (spec.md §4.6 import path step 2).
// It intentionally excludes ArbiterSigHex itself.
func signedDecisionMessage(id escrow.ID, d Decision) []byte {
	return []byte(fmt.Sprintf(
		"%s|%s|%s|%d|%s",
		id, d.Resolution, d.Reason, d.DecidedAt.Unix(), d.SignedTxHex,
	))
}
