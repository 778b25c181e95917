// Package lazysync implements the Lazy Sync Engine of spec.md §4.5: it
// brings a finalized multisig wallet's view of the chain up to date via the
// export/import cross-import cycle, and reports the resulting balance.
package lazysync

import (
	"context"
	"sync"
	"time"

	logging "github.com/ipfs/go-log"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/multisig"
	"github.com/athanor-escrow/escrowd/pool"
	"github.com/athanor-escrow/escrowd/store"
)

var log = logging.Logger("lazysync")

// CacheTTL is the result-cache window of spec.md §4.5 "a lightweight result
// cache with a 1-minute TTL is permitted to damp hot polling".
const CacheTTL = 1 * time.Minute

// Balance mirrors spec.md §4.5's sync_and_get_balance result.
type Balance struct {
	BalanceAtomic         uint64
	UnlockedBalanceAtomic uint64
	SyncedAt              time.Time
}

type cacheEntry struct {
	balance   Balance
	expiresAt time.Time
}

// Engine implements sync_and_get_balance, serialized per escrow and damped
// by a short-lived result cache.
type Engine struct {
	store store.Store
	pool  *pool.Manager

	mu          sync.Mutex
	escrowLocks map[escrow.ID]*sync.Mutex
	cache       map[escrow.ID]cacheEntry
}

// New constructs an Engine over the given store and pool.
func New(st store.Store, p *pool.Manager) *Engine {
	return &Engine{
		store:       st,
		pool:        p,
		escrowLocks: make(map[escrow.ID]*sync.Mutex),
		cache:       make(map[escrow.ID]cacheEntry),
	}
}

func (e *Engine) lockFor(id escrow.ID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.escrowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		e.escrowLocks[id] = l
	}
	return l
}

// SyncAndGetBalance implements spec.md §4.5's sync_and_get_balance: it
// re-opens the three wallets, runs the export/import cross-import cycle,
// reads the post-sync balance from one wallet, and closes everything.
//
// The operation is serialized per escrow (one in-flight sync at a time) and
// damped by a 1-minute result cache.
func (e *Engine) SyncAndGetBalance(ctx context.Context, id escrow.ID) (*Balance, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if cached, ok := e.cachedBalance(id); ok {
		return cached, nil
	}

	rec, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.MultisigPhase != escrow.PhaseFinalized || rec.MultisigAddress == "" {
		return nil, escrowerr.New(escrowerr.KindIllegalTransition, "escrow %s has no finalized multisig wallet to sync", id)
	}

	creds, err := e.walletCredentials(ctx, id)
	if err != nil {
		return nil, err
	}

	leases := make(map[escrow.Role]*pool.Lease, 3)
	defer func() {
		for _, lease := range leases {
			e.pool.Release(lease)
		}
	}()

	for _, role := range escrow.Roles {
		lease, err := e.pool.Acquire(ctx, id, role)
		if err != nil {
			return nil, e.abortPartialOpen(ctx, leases, err)
		}
		leases[role] = lease

		cred := creds[role]
		if err := lease.Client.OpenWallet(ctx, cred.filename, cred.password); err != nil {
			return nil, e.abortPartialOpen(ctx, leases, escrowerr.Wrap(escrowerr.KindRPCError, err, "failed to reopen %s wallet for escrow %s", role, id))
		}
	}

	exports := make(map[escrow.Role]string, 3)
	for _, role := range escrow.Roles {
		info, err := leases[role].Client.ExportMultisigInfo(ctx)
		if err != nil {
			return nil, e.abortOpenWallets(ctx, leases, escrowerr.Wrap(escrowerr.KindRPCError, err, "export_multisig_info failed for role %s", role))
		}
		exports[role] = info
	}

	for _, role := range escrow.Roles {
		others := otherRoles(role)
		otherInfos := [2]string{exports[others[0]], exports[others[1]]}
		if _, err := leases[role].Client.ImportMultisigInfo(ctx, otherInfos); err != nil {
			return nil, e.abortOpenWallets(ctx, leases, escrowerr.Wrap(escrowerr.KindRPCError, err, "import_multisig_info failed for role %s", role))
		}
	}

	bal, err := leases[escrow.RoleBuyer].Client.GetBalance(ctx)
	if err != nil {
		return nil, e.abortOpenWallets(ctx, leases, escrowerr.Wrap(escrowerr.KindRPCError, err, "get_balance failed"))
	}

	now := time.Now()
	for _, role := range escrow.Roles {
		if closeErr := leases[role].Client.CloseWallet(ctx); closeErr != nil {
			log.Warnf("escrow %s: failed to close %s wallet after sync: %s", id, role, closeErr)
		}
	}

	result := &Balance{BalanceAtomic: bal.Balance, UnlockedBalanceAtomic: bal.UnlockedBalance, SyncedAt: now}
	e.storeCache(id, result)
	log.Infof("escrow %s: synced, balance=%d unlocked=%d", id, result.BalanceAtomic, result.UnlockedBalanceAtomic)
	return result, nil
}

// abortPartialOpen best-effort closes whatever wallets were opened before a
// failure occurred mid-open (spec.md §4.5 "attempts best-effort close of any
// wallets opened").
func (e *Engine) abortPartialOpen(ctx context.Context, leases map[escrow.Role]*pool.Lease, cause error) error {
	for role, lease := range leases {
		if closeErr := lease.Client.CloseWallet(ctx); closeErr != nil {
			log.Warnf("abort: failed to close %s wallet: %s", role, closeErr)
		}
	}
	return cause
}

func (e *Engine) abortOpenWallets(ctx context.Context, leases map[escrow.Role]*pool.Lease, cause error) error {
	return e.abortPartialOpen(ctx, leases, cause)
}

func (e *Engine) cachedBalance(id escrow.ID) (*Balance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.cache[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	bal := entry.balance
	return &bal, true
}

func (e *Engine) storeCache(id escrow.ID, bal *Balance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache[id] = cacheEntry{balance: *bal, expiresAt: time.Now().Add(CacheTTL)}
}

type walletCredential struct {
	filename string
	password string
}

// walletCredentials reconstructs each role's wallet filename and password
// from the multisig coordinator's persisted role state.
func (e *Engine) walletCredentials(ctx context.Context, id escrow.ID) (map[escrow.Role]walletCredential, error) {
	out := make(map[escrow.Role]walletCredential, 3)
	for _, role := range escrow.Roles {
		filename, password, err := multisig.LoadWalletCredentials(ctx, e.store, id, role)
		if err != nil {
			return nil, escrowerr.Wrap(escrowerr.KindNotFound, err, "no wallet state for escrow %s role %s", id, role)
		}
		out[role] = walletCredential{filename: filename, password: password}
	}
	return out, nil
}

func otherRoles(role escrow.Role) [2]escrow.Role {
	var out [2]escrow.Role
	n := 0
	for _, r := range escrow.Roles {
		if r != role {
			out[n] = r
			n++
		}
	}
	return out
}
