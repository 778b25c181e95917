// Package dispute implements the Air-gapped Arbiter Bridge of spec.md §4.6:
// it builds a signed, QR-encodable dispute bundle for an offline arbiter,
// and applies a signed decision back without ever holding the arbiter's
// signing key.
package dispute

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/athanor-escrow/escrowd/cryptoutil"
	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/store"
)

var log = logging.Logger("dispute")

// Bundle is the exported dispute payload of spec.md §4.6 export path step 3.
type Bundle struct {
	EscrowID        string    `json:"escrow_id"`
	BuyerID         string    `json:"buyer_id"`
	VendorID        string    `json:"vendor_id"`
	AmountAtomic    uint64    `json:"amount_atomic"`
	MultisigAddress string    `json:"multisig_address"`
	PartialTxHex    string    `json:"partial_tx_hex"`
	EvidenceRefs    []string  `json:"evidence_refs"`
	CreatedAt       time.Time `json:"created_at"`
}

// SignedBundle wraps a Bundle with the server's Ed25519 signature over its
// canonical JSON encoding, so the offline tool can verify authenticity.
type SignedBundle struct {
	Bundle    Bundle `json:"bundle"`
	Signature string `json:"signature_hex"`
}

// Decision is the offline arbiter's signed verdict, spec.md §4.6 import path
// step 1.
type Decision struct {
	Resolution    escrow.Resolution `json:"resolution"`
	Reason        string            `json:"reason"`
	DecidedAt     time.Time         `json:"decided_at"`
	SignedTxHex   string            `json:"signed_tx_hex"`
	ArbiterSigHex string            `json:"arbiter_signature"`
}

// pendingPlaceholderFmt is used when the partially-signed transaction for
// the disputed outcome hasn't yet been produced (spec.md §4.6 export path
// step 3).
const pendingPlaceholderFmt = "DISPUTE_PENDING_%s"

// EvidenceLister resolves the opaque evidence references attached to a
// disputed escrow; it is an external collaborator (spec.md §4.6 step 2).
type EvidenceLister interface {
	ListEvidenceRefs(escrowID escrow.ID) ([]string, error)
}

// Broadcaster would relay a fully-signed transaction to the network. Left
// unimplemented per spec.md §9's open question on auto-broadcast: a
// deployment can supply one later without changing Bridge's public surface.
type Broadcaster interface {
	Broadcast(signedTxHex string) (txHash string, err error)
}

// Bridge implements spec.md §4.6's export/import operations.
type Bridge struct {
	store      store.Store
	serverKey  ed25519.PrivateKey
	arbiterKey ed25519.PublicKey
	evidence   EvidenceLister

	// Broadcaster is intentionally nilable; apply_dispute_decision never
	// calls it (spec.md §9 open question 1).
	Broadcaster Broadcaster
}

// New constructs a Bridge. arbiterPubKey should come from
// cryptoutil.ParseArbiterPubKey at startup.
func New(st store.Store, serverKey ed25519.PrivateKey, arbiterPubKey ed25519.PublicKey, evidence EvidenceLister) *Bridge {
	return &Bridge{store: st, serverKey: serverKey, arbiterKey: arbiterPubKey, evidence: evidence}
}

// ExportDispute implements export_dispute (spec.md §4.6 export path).
func (b *Bridge) ExportDispute(ctx context.Context, id escrow.ID) (*SignedBundle, time.Time, error) {
	now := time.Now()
	e, err := b.store.Load(ctx, id)
	if err != nil {
		return nil, now, err
	}
	if e.Status != escrow.StatusDisputed {
		return nil, now, escrowerr.New(escrowerr.KindIllegalTransition, "escrow %s is %s, not Disputed", id, e.Status)
	}

	var refs []string
	if b.evidence != nil {
		refs, err = b.evidence.ListEvidenceRefs(id)
		if err != nil {
			return nil, now, fmt.Errorf("dispute: failed to list evidence refs for %s: %w", id, err)
		}
	}

	partialTx := e.TransactionHash
	if partialTx == "" {
		partialTx = fmt.Sprintf(pendingPlaceholderFmt, id)
	}

	bundle := Bundle{
		EscrowID:        id.String(),
		BuyerID:         e.BuyerID,
		VendorID:        e.VendorID,
		AmountAtomic:    e.AmountAtomic,
		MultisigAddress: e.MultisigAddress,
		PartialTxHex:    partialTx,
		EvidenceRefs:    refs,
		CreatedAt:       now,
	}

	canonical, err := json.Marshal(bundle)
	if err != nil {
		return nil, now, fmt.Errorf("dispute: failed to encode bundle for %s: %w", id, err)
	}
	sig := cryptoutil.SignWithServerKey(b.serverKey, canonical)

	log.Infof("escrow %s: exported dispute bundle", id)
	return &SignedBundle{Bundle: bundle, Signature: fmt.Sprintf("%x", sig)}, now, nil
}

// EncodeQR renders a SignedBundle as a PNG QR code for out-of-band transport
// to the offline arbiter tool (spec.md §4.6 "optional QR-encodable base
// representation").
func EncodeQR(sb *SignedBundle) ([]byte, error) {
	raw, err := json.Marshal(sb)
	if err != nil {
		return nil, fmt.Errorf("dispute: failed to encode signed bundle: %w", err)
	}
	png, err := qrcode.Encode(string(raw), qrcode.Medium, 512)
	if err != nil {
		return nil, fmt.Errorf("dispute: failed to render QR code: %w", err)
	}
	return png, nil
}

// ApplyDecision implements apply_dispute_decision (spec.md §4.6 import
// path). It never broadcasts the returned transaction (§9 open question 1).
// It returns the escrow's resulting status (spec.md §6.2 "result: ok, new
// status"), including on an idempotent replay of an already-applied
// decision.
func (b *Bridge) ApplyDecision(ctx context.Context, id escrow.ID, d Decision) (escrow.Status, error) {
	now := time.Now()

	sig, err := hexDecode(d.ArbiterSigHex)
	if err != nil {
		return "", escrowerr.Wrap(escrowerr.KindValidation, err, "arbiter_signature is not valid hex")
	}

	message := signedDecisionMessage(id, d)
	if !cryptoutil.VerifyArbiterSignature(b.arbiterKey, message, sig) {
		return "", escrowerr.New(escrowerr.KindSignatureInvalid, "arbiter signature does not verify for escrow %s", id)
	}

	var toStatus escrow.Status
	switch d.Resolution {
	case escrow.ResolutionBuyer:
		toStatus = escrow.StatusRefunded
	case escrow.ResolutionVendor:
		toStatus = escrow.StatusCompleted
	default:
		return "", escrowerr.New(escrowerr.KindValidation, "unrecognized resolution %q", d.Resolution)
	}

	decision := &escrow.ArbiterDecision{
		Resolution:  d.Resolution,
		Reason:      d.Reason,
		DecidedAt:   d.DecidedAt,
		SignedTxHex: d.SignedTxHex,
	}
	if err := b.store.SetArbiterDecision(ctx, id, decision, now); err != nil {
		return "", err
	}

	e, err := b.store.Load(ctx, id)
	if err != nil {
		return "", err
	}
	// Resolving -> {Refunded, Completed} is the terminal edge a long-running
	// dispute takes; Disputed escrows reach here via the monitor's escalation
	// to Resolving, or directly if no escalation has happened yet.
	from := e.Status
	if from == escrow.StatusDisputed {
		if err := b.store.UpdateStatus(ctx, id, escrow.StatusDisputed, escrow.StatusResolving, now); err != nil && !escrowerr.Is(err, escrowerr.KindIllegalTransition) {
			return "", err
		}
		from = escrow.StatusResolving
	}
	if from == toStatus {
		return toStatus, nil // idempotent replay of an already-applied decision
	}
	if err := b.store.UpdateStatus(ctx, id, from, toStatus, now); err != nil {
		return "", err
	}

	log.Infof("escrow %s: dispute decision applied, resolution=%s", id, d.Resolution)
	return toStatus, nil
}
