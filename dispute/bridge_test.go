package dispute

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/store"
)

type fixedEvidence struct{ refs []string }

func (f fixedEvidence) ListEvidenceRefs(escrow.ID) ([]string, error) { return f.refs, nil }

func newTestBridge(t *testing.T) (*Bridge, store.Store, ed25519.PrivateKey, *escrow.Escrow) {
	t.Helper()

	db, err := store.OpenBadgerDB("", true)
	require.NoError(t, err)
	st, err := store.New(db, make([]byte, 32))
	require.NoError(t, err)

	arbiterPub, arbiterPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, serverPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	id, err := escrow.NewID()
	require.NoError(t, err)
	e, err := escrow.New(id, "order-1", "buyer-1", "vendor-1", "arbiter-1", 500_000_000_000, time.Now(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, st.Insert(context.Background(), e))

	b := New(st, serverPriv, arbiterPub, fixedEvidence{refs: []string{"hash1", "hash2"}})

	return b, st, arbiterPriv, e
}

func moveToDisputed(t *testing.T, st store.Store, e *escrow.Escrow) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, st.UpdateStatus(ctx, e.ID, escrow.StatusCreated, escrow.StatusAwaitingFunding, now))
	require.NoError(t, st.UpdateStatus(ctx, e.ID, escrow.StatusAwaitingFunding, escrow.StatusFunded, now))
	require.NoError(t, st.UpdateStatus(ctx, e.ID, escrow.StatusFunded, escrow.StatusDisputed, now))
}

func TestExportDispute_RequiresDisputedStatus(t *testing.T) {
	b, _, _, e := newTestBridge(t)

	_, _, err := b.ExportDispute(context.Background(), e.ID)
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindIllegalTransition))
}

func TestExportDispute_PendingPlaceholderWhenNoTx(t *testing.T) {
	b, st, _, e := newTestBridge(t)
	moveToDisputed(t, st, e)

	sb, _, err := b.ExportDispute(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"hash1", "hash2"}, sb.Bundle.EvidenceRefs)
	require.Contains(t, sb.Bundle.PartialTxHex, "DISPUTE_PENDING_")
	require.NotEmpty(t, sb.Signature)
}

func TestEncodeQR_Roundtrips(t *testing.T) {
	b, st, _, e := newTestBridge(t)
	moveToDisputed(t, st, e)

	sb, _, err := b.ExportDispute(context.Background(), e.ID)
	require.NoError(t, err)

	png, err := EncodeQR(sb)
	require.NoError(t, err)
	require.NotEmpty(t, png)
}

func TestApplyDecision_VendorResolutionCompletesEscrow(t *testing.T) {
	b, st, arbiterPriv, e := newTestBridge(t)
	moveToDisputed(t, st, e)

	decidedAt := time.Now()
	d := Decision{
		Resolution:  escrow.ResolutionVendor,
		Reason:      "goods delivered per evidence",
		DecidedAt:   decidedAt,
		SignedTxHex: "fully-signed-hex",
	}
	msg := signedDecisionMessage(e.ID, d)
	sig := ed25519.Sign(arbiterPriv, msg)
	d.ArbiterSigHex = hex.EncodeToString(sig)

	newStatus, err := b.ApplyDecision(context.Background(), e.ID, d)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusCompleted, newStatus)

	loaded, err := st.Load(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusCompleted, loaded.Status)
	require.NotNil(t, loaded.ArbiterDecision)
	require.Equal(t, escrow.ResolutionVendor, loaded.ArbiterDecision.Resolution)
}

func TestApplyDecision_RejectsBadSignature(t *testing.T) {
	b, st, _, e := newTestBridge(t)
	moveToDisputed(t, st, e)

	d := Decision{
		Resolution:    escrow.ResolutionBuyer,
		Reason:        "no response from vendor",
		DecidedAt:     time.Now(),
		SignedTxHex:   "fully-signed-hex",
		ArbiterSigHex: hex.EncodeToString(make([]byte, 64)),
	}

	_, err := b.ApplyDecision(context.Background(), e.ID, d)
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindSignatureInvalid))
}

func TestApplyDecision_IsIdempotent(t *testing.T) {
	b, st, arbiterPriv, e := newTestBridge(t)
	moveToDisputed(t, st, e)

	d := Decision{
		Resolution:  escrow.ResolutionBuyer,
		Reason:      "vendor never shipped",
		DecidedAt:   time.Now(),
		SignedTxHex: "fully-signed-hex",
	}
	msg := signedDecisionMessage(e.ID, d)
	d.ArbiterSigHex = hex.EncodeToString(ed25519.Sign(arbiterPriv, msg))

	first, err := b.ApplyDecision(context.Background(), e.ID, d)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusRefunded, first)

	second, err := b.ApplyDecision(context.Background(), e.ID, d)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusRefunded, second)

	loaded, err := st.Load(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusRefunded, loaded.Status)
}
