// Package pool implements the RPC Pool Manager of spec.md §4.2: it maps the
// three multisig roles onto a bounded, health-checked set of wallet-RPC
// backends, enforcing that no backend ever hosts more than one open wallet
// at a time.
package pool

import (
	"sync"

	logging "github.com/ipfs/go-log"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/walletrpc"
)

var log = logging.Logger("pool")

// Health is a backend's last-observed health state.
type Health string

// Health states.
const (
	HealthHealthy     Health = "Healthy"
	HealthDegraded    Health = "Degraded"
	HealthUnreachable Health = "Unreachable"
)

// backendEntry is the pool's process-wide bookkeeping for one backend
// (spec.md §3 RpcBackend), exclusively owned by the Manager.
type backendEntry struct {
	id        string
	role      escrow.Role
	client    walletrpc.WalletClient
	mu        sync.Mutex // serializes lease/release against this single backend
	leased    bool
	leasedTo  escrow.ID
	health    Health
}

// NewBackendClientFunc constructs a walletrpc.WalletClient for a backend
// URL. In production this is walletrpc.New; tests substitute a fake.
type NewBackendClientFunc func(url string) (walletrpc.WalletClient, error)

// roleForIndex implements spec.md §4.2's "Role indexing": backend at
// position i serves Buyer iff i%3==0, Vendor iff i%3==1, Arbiter iff i%3==2.
func roleForIndex(i int) escrow.Role {
	return escrow.Roles[i%3]
}

func backendID(url string) string {
	return url
}
