package multisig

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/pool"
	"github.com/athanor-escrow/escrowd/store"
	"github.com/athanor-escrow/escrowd/walletrpc"
	"github.com/athanor-escrow/escrowd/walletrpc/walletrpctest"
)

func testKey() []byte { return make([]byte, 32) }

func newHarness(t *testing.T) (*Coordinator, store.Store, *escrow.Escrow) {
	t.Helper()

	db, err := store.OpenBadgerDB("", true)
	require.NoError(t, err)
	st, err := store.New(db, testKey())
	require.NoError(t, err)

	urls := []string{"buyer-a", "vendor-a", "arbiter-a"}
	p, err := pool.NewManager(urls, func(url string) (walletrpc.WalletClient, error) {
		return walletrpctest.New(url), nil
	})
	require.NoError(t, err)

	id, err := escrow.NewID()
	require.NoError(t, err)
	e, err := escrow.New(id, "order-1", "buyer-1", "vendor-1", "arbiter-1", 1_000_000_000_000, time.Now(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, st.Insert(context.Background(), e))

	return New(st, p), st, e
}

func TestSetupMultisig_FullRun(t *testing.T) {
	ctx := context.Background()
	c, st, e := newHarness(t)

	address, err := c.SetupMultisig(ctx, e.ID)
	require.NoError(t, err)
	require.NotEmpty(t, address)

	loaded, err := st.Load(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.PhaseFinalized, loaded.MultisigPhase)
	require.Equal(t, escrow.StatusAwaitingFunding, loaded.Status)
	require.Equal(t, address, loaded.MultisigAddress)
}

func TestSetupMultisig_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _, e := newHarness(t)

	first, err := c.SetupMultisig(ctx, e.ID)
	require.NoError(t, err)

	second, err := c.SetupMultisig(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSetupMultisig_ResumesFromPartialProgress(t *testing.T) {
	ctx := context.Background()
	c, st, e := newHarness(t)

	require.NoError(t, c.runPrepare(ctx, e.ID))

	loaded, err := st.Load(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.PhasePrepared, loaded.MultisigPhase)

	address, err := c.SetupMultisig(ctx, e.ID)
	require.NoError(t, err)
	require.NotEmpty(t, address)
}

func TestCheckAgreement_RejectsMismatch(t *testing.T) {
	id, _ := escrow.NewID()
	states := map[escrow.Role]*roleState{
		escrow.RoleBuyer:   {Round1Address: "addrA"},
		escrow.RoleVendor:  {Round1Address: "addrA"},
		escrow.RoleArbiter: {Round1Address: "addrB"},
	}

	err := checkAgreement(id, states, func(rs *roleState) string { return rs.Round1Address })
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindIntegrityError))
}

func TestArbiterSign_RequiresPriorSetup(t *testing.T) {
	ctx := context.Background()
	c, _, e := newHarness(t)

	_, err := c.ArbiterSign(ctx, e.ID, "deadbeef")
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindIllegalTransition))
}

func TestArbiterSign_AfterSetup(t *testing.T) {
	ctx := context.Background()
	c, _, e := newHarness(t)

	_, err := c.SetupMultisig(ctx, e.ID)
	require.NoError(t, err)

	signed, err := c.ArbiterSign(ctx, e.ID, "deadbeef")
	require.NoError(t, err)
	require.Equal(t, "deadbeef_signed", signed)
}
