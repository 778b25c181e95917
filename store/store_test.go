package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
)

func testKey() []byte {
	return make([]byte, 32)
}

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := New(newFakeDB(), testKey())
	require.NoError(t, err)
	return s
}

func newTestEscrow(t *testing.T) *escrow.Escrow {
	t.Helper()
	id, err := escrow.NewID()
	require.NoError(t, err)
	e, err := escrow.New(id, "order-1", "buyer-1", "vendor-1", "arbiter-1", 3_000_000_000_000, time.Now(), time.Hour)
	require.NoError(t, err)
	return e
}

func TestInsertAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEscrow(t)

	require.NoError(t, s.Insert(ctx, e))

	loaded, err := s.Load(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, e.OrderID, loaded.OrderID)
	require.Equal(t, escrow.StatusCreated, loaded.Status)
}

func TestUpdateStatus_LegalTransition(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEscrow(t)
	require.NoError(t, s.Insert(ctx, e))

	now := time.Now()
	require.NoError(t, s.UpdateStatus(ctx, e.ID, escrow.StatusCreated, escrow.StatusAwaitingFunding, now))

	loaded, err := s.Load(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusAwaitingFunding, loaded.Status)
	require.Equal(t, now.Unix(), loaded.LastActivityAt.Unix())
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEscrow(t)
	require.NoError(t, s.Insert(ctx, e))

	err := s.UpdateStatus(ctx, e.ID, escrow.StatusCreated, escrow.StatusCompleted, time.Now())
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindIllegalTransition))

	loaded, err := s.Load(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusCreated, loaded.Status, "status must not change on rejected transition")
}

func TestUpdateStatus_StaleFromRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEscrow(t)
	require.NoError(t, s.Insert(ctx, e))

	require.NoError(t, s.UpdateStatus(ctx, e.ID, escrow.StatusCreated, escrow.StatusAwaitingFunding, time.Now()))

	// Attempting the same transition again (stale `from`) must be rejected.
	err := s.UpdateStatus(ctx, e.ID, escrow.StatusCreated, escrow.StatusAwaitingFunding, time.Now())
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindIllegalTransition))
}

func TestSetMultisigAddress_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEscrow(t)
	require.NoError(t, s.Insert(ctx, e))

	require.NoError(t, s.SetMultisigAddress(ctx, e.ID, "5ExampleAddress", time.Now()))

	err := s.SetMultisigAddress(ctx, e.ID, "5SomeOtherAddress", time.Now())
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindIllegalTransition))

	loaded, err := s.Load(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "5ExampleAddress", loaded.MultisigAddress)
}

func TestWalletBlob_RoundTripAndErase(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEscrow(t)
	require.NoError(t, s.Insert(ctx, e))

	plaintext := []byte("prepare_info-and-wallet-filename")
	require.NoError(t, s.StoreWalletBlob(ctx, e.ID, escrow.RoleBuyer, plaintext))

	loaded, err := s.LoadWalletBlob(ctx, e.ID, escrow.RoleBuyer)
	require.NoError(t, err)
	require.Equal(t, plaintext, loaded)

	require.NoError(t, s.EraseWalletBlob(ctx, e.ID, escrow.RoleBuyer))

	_, err = s.LoadWalletBlob(ctx, e.ID, escrow.RoleBuyer)
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.KindNotFound))
}

func TestListExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e := newTestEscrow(t)
	e.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, s.Insert(ctx, e))

	fresh := newTestEscrow(t)
	fresh.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, s.Insert(ctx, fresh))

	expired, err := s.ListExpired(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, e.ID, expired[0].ID)
}

func TestListExpiringWithin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	soon := newTestEscrow(t)
	soon.ExpiresAt = time.Now().Add(30 * time.Minute)
	require.NoError(t, s.Insert(ctx, soon))

	later := newTestEscrow(t)
	later.ExpiresAt = time.Now().Add(48 * time.Hour)
	require.NoError(t, s.Insert(ctx, later))

	warning, err := s.ListExpiringWithin(ctx, time.Now(), time.Hour)
	require.NoError(t, err)
	require.Len(t, warning, 1)
	require.Equal(t, soon.ID, warning[0].ID)
}
