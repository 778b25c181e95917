package pool

import (
	"context"
	"testing"

	gomock "github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/walletrpc"
	"github.com/athanor-escrow/escrowd/walletrpc/walletrpctest"
)

// TestAcquire_SkipsBackendFailingHealthCheck exercises the Manager against
// generated-style mocks rather than walletrpctest.Fake: whichever buyer
// candidate the round-robin counter lands on first, the unhealthy one must
// never end up leased (spec.md §4.2).
func TestAcquire_SkipsBackendFailingHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)

	healthy := walletrpctest.NewMockWalletClient(ctrl)
	healthy.EXPECT().URL().Return("buyer-healthy").AnyTimes()
	healthy.EXPECT().GetVersion(gomock.Any()).Return(uint64(1), nil).AnyTimes()

	unhealthy := walletrpctest.NewMockWalletClient(ctrl)
	unhealthy.EXPECT().URL().Return("buyer-unhealthy").AnyTimes()
	unhealthy.EXPECT().GetVersion(gomock.Any()).
		Return(uint64(0), escrowerr.New(escrowerr.KindBackendUnreachable, "mock backend down")).
		AnyTimes()

	clients := map[string]walletrpc.WalletClient{
		"buyer-unhealthy": unhealthy,
		"buyer-healthy":   healthy,
		"vendor":          walletrpctest.New("vendor"),
		"arbiter":         walletrpctest.New("arbiter"),
	}

	m, err := NewManager(
		[]string{"buyer-unhealthy", "vendor", "arbiter", "buyer-healthy", "vendor", "arbiter"},
		func(url string) (walletrpc.WalletClient, error) { return clients[url], nil },
	)
	require.NoError(t, err)

	ctx := context.Background()
	id, _ := escrow.NewID()

	lease, err := m.Acquire(ctx, id, escrow.RoleBuyer)
	require.NoError(t, err)
	require.Equal(t, "buyer-healthy", lease.BackendID)
	m.Release(lease)
}
