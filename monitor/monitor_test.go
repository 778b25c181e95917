package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/store"
)

type recordingNotifier struct {
	mu       sync.Mutex
	warnings []escrow.ID
	expired  []escrow.ID
	escalated []escrow.ID
}

func (r *recordingNotifier) NotifyExpiryWarning(id escrow.ID, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, id)
}

func (r *recordingNotifier) NotifyExpired(id escrow.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, id)
}

func (r *recordingNotifier) NotifyEscalated(id escrow.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.escalated = append(r.escalated, id)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := store.OpenBadgerDB("", true)
	require.NoError(t, err)
	st, err := store.New(db, make([]byte, 32))
	require.NoError(t, err)
	return st
}

func newTestEscrow(t *testing.T, expiresAt time.Time) *escrow.Escrow {
	t.Helper()
	id, err := escrow.NewID()
	require.NoError(t, err)
	e, err := escrow.New(id, "order-1", "buyer-1", "vendor-1", "arbiter-1", 1_000_000, time.Now(), time.Hour)
	require.NoError(t, err)
	e.ExpiresAt = expiresAt
	return e
}

func TestSweepOnce_ExpiresOverdueCreatedEscrow(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	n := &recordingNotifier{}
	m := New(st, n, DefaultTimeouts())

	e := newTestEscrow(t, time.Now().Add(-time.Minute))
	require.NoError(t, st.Insert(ctx, e))

	m.sweepOnce(ctx)

	loaded, err := st.Load(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusExpired, loaded.Status)
	require.Contains(t, n.expired, e.ID)
}

func TestSweepOnce_WarnsWithoutStateChange(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	n := &recordingNotifier{}
	m := New(st, n, DefaultTimeouts())

	e := newTestEscrow(t, time.Now().Add(30*time.Minute))
	require.NoError(t, st.Insert(ctx, e))

	m.sweepOnce(ctx)

	loaded, err := st.Load(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusCreated, loaded.Status)
	require.Contains(t, n.warnings, e.ID)
	require.Empty(t, n.expired)
}

func TestSweepOnce_EscalatesLongRunningDispute(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	n := &recordingNotifier{}
	m := New(st, n, DefaultTimeouts())

	e := newTestEscrow(t, time.Now().Add(-time.Minute))
	require.NoError(t, st.Insert(ctx, e))

	now := time.Now()
	require.NoError(t, st.UpdateStatus(ctx, e.ID, escrow.StatusCreated, escrow.StatusAwaitingFunding, now))
	require.NoError(t, st.UpdateStatus(ctx, e.ID, escrow.StatusAwaitingFunding, escrow.StatusFunded, now))
	require.NoError(t, st.UpdateStatus(ctx, e.ID, escrow.StatusFunded, escrow.StatusDisputed, now))

	m.sweepOnce(ctx)

	loaded, err := st.Load(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, escrow.StatusResolving, loaded.Status)
	require.Contains(t, n.escalated, e.ID)
}

func TestSweepOnce_IgnoresTerminalEscrows(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	n := &recordingNotifier{}
	m := New(st, n, DefaultTimeouts())

	e := newTestEscrow(t, time.Now().Add(-time.Hour))
	require.NoError(t, st.Insert(ctx, e))
	now := time.Now()
	require.NoError(t, st.UpdateStatus(ctx, e.ID, escrow.StatusCreated, escrow.StatusCancelled, now))

	m.sweepOnce(ctx)

	require.Empty(t, n.expired)
	require.Empty(t, n.escalated)
}

func TestStartStop_RunsWithoutPanicking(t *testing.T) {
	st := newTestStore(t)
	m := New(st, nil, DefaultTimeouts())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	m.Stop()
}
