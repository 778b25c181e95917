package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/walletrpc"
	"github.com/athanor-escrow/escrowd/walletrpc/walletrpctest"
)

func newTestManager(t *testing.T, urls []string) (*Manager, map[string]*walletrpctest.Fake) {
	t.Helper()
	fakes := make(map[string]*walletrpctest.Fake)

	m, err := NewManager(urls, func(url string) (walletrpc.WalletClient, error) {
		f := walletrpctest.New(url)
		fakes[url] = f
		return f, nil
	})
	require.NoError(t, err)
	return m, fakes
}

func TestRoleIndexing(t *testing.T) {
	urls := []string{"p0", "p1", "p2", "p3", "p4", "p5"}
	m, _ := newTestManager(t, urls)

	require.Equal(t, 2, m.MaxConcurrentSetups())

	ctx := context.Background()
	id, _ := escrow.NewID()

	lease, err := m.Acquire(ctx, id, escrow.RoleBuyer)
	require.NoError(t, err)
	require.Contains(t, []string{"p0", "p3"}, lease.BackendID)
	m.Release(lease)
}

func TestAcquireRelease_SameBackendNotDoubleLeased(t *testing.T) {
	m, _ := newTestManager(t, []string{"only-buyer-backend"})
	ctx := context.Background()
	idA, _ := escrow.NewID()
	idB, _ := escrow.NewID()

	leaseA, err := m.Acquire(ctx, idA, escrow.RoleBuyer)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, idB, escrow.RoleBuyer)
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindAllBusy))

	m.Release(leaseA)

	leaseB, err := m.Acquire(ctx, idB, escrow.RoleBuyer)
	require.NoError(t, err)
	m.Release(leaseB)
}

func TestAcquire_FailsOverPastUnhealthyBackend(t *testing.T) {
	urls := []string{"vendor-0", "vendor-1"} // indices 0 and 1 serve Buyer and Vendor, not both Vendor
	// use explicit 3N layout so both entries serve the Vendor role
	urls = []string{"buyer-a", "vendor-a", "arbiter-a", "buyer-b", "vendor-b", "arbiter-b"}
	m, fakes := newTestManager(t, urls)
	fakes["vendor-a"].Unhealthy = true

	ctx := context.Background()
	id, _ := escrow.NewID()

	lease, err := m.Acquire(ctx, id, escrow.RoleVendor)
	require.NoError(t, err)
	require.Equal(t, "vendor-b", lease.BackendID)
	m.Release(lease)
}

func TestAcquire_NoHealthyBackend(t *testing.T) {
	urls := []string{"buyer-a", "vendor-a", "arbiter-a"}
	m, fakes := newTestManager(t, urls)
	fakes["vendor-a"].Unhealthy = true

	ctx := context.Background()
	id, _ := escrow.NewID()

	_, err := m.Acquire(ctx, id, escrow.RoleVendor)
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindNoHealthyBackend))
}

func TestReloadConfiguration_AppendsWithoutDisturbingExisting(t *testing.T) {
	m, _ := newTestManager(t, []string{"buyer-a", "vendor-a", "arbiter-a"})
	ctx := context.Background()
	id, _ := escrow.NewID()

	lease, err := m.Acquire(ctx, id, escrow.RoleBuyer)
	require.NoError(t, err)

	added, err := m.ReloadConfiguration([]string{"buyer-a", "vendor-a", "arbiter-a", "buyer-b", "vendor-b", "arbiter-b"})
	require.NoError(t, err)
	require.Equal(t, 3, added)
	require.Equal(t, 6, m.BackendCount())

	// original lease is untouched
	require.Equal(t, "buyer-a", lease.BackendID)
	m.Release(lease)
}

func TestWithFailover_RetriesTransportErrorAcrossBackends(t *testing.T) {
	urls := []string{"buyer-a", "vendor-a", "arbiter-a", "buyer-b", "vendor-b", "arbiter-b"}
	m, _ := newTestManager(t, urls)

	ctx := context.Background()
	id, _ := escrow.NewID()

	seen := map[string]bool{}
	err := m.WithFailover(ctx, id, escrow.RoleBuyer, func(lease *Lease) error {
		seen[lease.BackendID] = true
		if lease.BackendID == "buyer-a" {
			return escrowerr.New(escrowerr.KindBackendUnreachable, "simulated failure")
		}
		return nil
	})
	require.NoError(t, err)
	require.True(t, seen["buyer-a"])
	require.True(t, seen["buyer-b"])
}

func TestWithFailover_DoesNotRetryProtocolError(t *testing.T) {
	m, _ := newTestManager(t, []string{"buyer-a", "vendor-a", "arbiter-a", "buyer-b", "vendor-b", "arbiter-b"})
	ctx := context.Background()
	id, _ := escrow.NewID()

	calls := 0
	err := m.WithFailover(ctx, id, escrow.RoleBuyer, func(lease *Lease) error {
		calls++
		return escrowerr.New(escrowerr.KindProtocolError, "bad round prefix")
	})
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindProtocolError))
	require.Equal(t, 1, calls)
}
