package lazysync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/multisig"
	"github.com/athanor-escrow/escrowd/pool"
	"github.com/athanor-escrow/escrowd/store"
	"github.com/athanor-escrow/escrowd/walletrpc"
	"github.com/athanor-escrow/escrowd/walletrpc/walletrpctest"
)

func newHarness(t *testing.T) (*Engine, store.Store, *pool.Manager, *escrow.Escrow) {
	t.Helper()

	db, err := store.OpenBadgerDB("", true)
	require.NoError(t, err)
	st, err := store.New(db, make([]byte, 32))
	require.NoError(t, err)

	urls := []string{"buyer-a", "vendor-a", "arbiter-a"}
	p, err := pool.NewManager(urls, func(url string) (walletrpc.WalletClient, error) {
		return walletrpctest.New(url), nil
	})
	require.NoError(t, err)

	id, err := escrow.NewID()
	require.NoError(t, err)
	e, err := escrow.New(id, "order-1", "buyer-1", "vendor-1", "arbiter-1", 2_000_000_000_000, time.Now(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, st.Insert(context.Background(), e))

	return New(st, p), st, p, e
}

func finalize(t *testing.T, st store.Store, p *pool.Manager, e *escrow.Escrow) {
	t.Helper()
	c := multisig.New(st, p)
	_, err := c.SetupMultisig(context.Background(), e.ID)
	require.NoError(t, err)
}

func TestSyncAndGetBalance_RequiresFinalizedMultisig(t *testing.T) {
	eng, _, _, e := newHarness(t)

	_, err := eng.SyncAndGetBalance(context.Background(), e.ID)
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindIllegalTransition))
}

func TestSyncAndGetBalance_AfterFinalize(t *testing.T) {
	eng, st, p, e := newHarness(t)
	finalize(t, st, p, e)

	bal, err := eng.SyncAndGetBalance(context.Background(), e.ID)
	require.NoError(t, err)
	require.NotNil(t, bal)
}

func TestSyncAndGetBalance_CachesWithinTTL(t *testing.T) {
	eng, st, p, e := newHarness(t)
	finalize(t, st, p, e)

	first, err := eng.SyncAndGetBalance(context.Background(), e.ID)
	require.NoError(t, err)

	second, err := eng.SyncAndGetBalance(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, first.SyncedAt, second.SyncedAt, "second call within TTL should hit the cache")
}

func TestSyncAndGetBalance_SerializesPerEscrow(t *testing.T) {
	eng, st, p, e := newHarness(t)
	finalize(t, st, p, e)

	done := make(chan struct{})
	go func() {
		_, _ = eng.SyncAndGetBalance(context.Background(), e.ID)
		close(done)
	}()

	_, err := eng.SyncAndGetBalance(context.Background(), e.ID)
	require.NoError(t, err)
	<-done
}
