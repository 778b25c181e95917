package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/walletrpc"
)

// Lease is a scoped borrow of a backend, released on operation exit
// (spec.md Glossary).
type Lease struct {
	BackendID string
	Client    walletrpc.WalletClient

	pool  *Manager
	entry *backendEntry
}

// Manager owns the backend pool: role assignment, health, and the
// session-to-backend binding (spec.md §4.2). It never retries within a
// single RPC call; retries only happen across backends at lease time
// (spec.md §7/§9).
type Manager struct {
	newClient NewBackendClientFunc

	mu       sync.RWMutex
	backends []*backendEntry
	byRole   map[escrow.Role][]*backendEntry

	roleCounters map[escrow.Role]*uint64
}

// NewManager constructs a Manager from an ordered list of backend URLs,
// assigning roles per spec.md §4.2's role-indexing rule. len(urls) need not
// be validated to be a multiple of 3 here; config.Load enforces that at
// startup (spec.md §6.4).
func NewManager(urls []string, newClient NewBackendClientFunc) (*Manager, error) {
	m := &Manager{
		newClient:    newClient,
		byRole:       make(map[escrow.Role][]*backendEntry),
		roleCounters: make(map[escrow.Role]*uint64),
	}
	for _, r := range escrow.Roles {
		ctr := uint64(0)
		m.roleCounters[r] = &ctr
	}

	added, err := m.addBackends(urls)
	if err != nil {
		return nil, err
	}
	log.Infof("pool manager started with %d backends", added)
	return m, nil
}

// addBackends appends new backend entries for each URL, assigning roles
// continuing from the current length of m.backends, and returns how many
// were added. Callers hold no lock; addBackends takes the write lock itself.
func (m *Manager) addBackends(urls []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := len(m.backends)
	for i, u := range urls {
		client, err := m.newClient(u)
		if err != nil {
			return 0, escrowerr.Wrap(escrowerr.KindValidation, err, "failed to construct client for backend %q", u)
		}

		role := roleForIndex(start + i)
		entry := &backendEntry{
			id:     backendID(u),
			role:   role,
			client: client,
			health: HealthHealthy,
		}
		m.backends = append(m.backends, entry)
		m.byRole[role] = append(m.byRole[role], entry)
	}

	return len(urls), nil
}

// ReloadConfiguration hot-reloads the backend list: it appends any new
// backend URLs without perturbing in-flight leases (spec.md §4.2
// reload_configuration). Existing backend URLs are left untouched.
func (m *Manager) ReloadConfiguration(newURLs []string) (int, error) {
	m.mu.RLock()
	existing := make(map[string]bool, len(m.backends))
	for _, b := range m.backends {
		existing[b.id] = true
	}
	m.mu.RUnlock()

	var toAdd []string
	for _, u := range newURLs {
		if !existing[backendID(u)] {
			toAdd = append(toAdd, u)
		}
	}

	if len(toAdd) == 0 {
		return 0, nil
	}

	added, err := m.addBackends(toAdd)
	if err != nil {
		return 0, err
	}
	log.Infof("pool manager reloaded configuration: added %d backends", added)
	return added, nil
}

// Acquire health-checks and leases the next candidate backend serving role,
// in round-robin order, failing over past unhealthy or already-leased
// backends (spec.md §4.2 acquire).
func (m *Manager) Acquire(ctx context.Context, id escrow.ID, role escrow.Role) (*Lease, error) {
	m.mu.RLock()
	candidates := append([]*backendEntry(nil), m.byRole[role]...)
	m.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, escrowerr.New(escrowerr.KindNoHealthyBackend, "no backends configured for role %s", role)
	}

	counter := m.roleCounters[role]
	start := atomic.AddUint64(counter, 1) - 1

	var lastErr error
	allBusy := true
	for i := 0; i < len(candidates); i++ {
		idx := int((start + uint64(i)) % uint64(len(candidates)))
		entry := candidates[idx]

		if !entry.mu.TryLock() {
			continue // already leased; try the next candidate of this role
		}
		allBusy = false

		version, err := entry.client.GetVersion(ctx)
		if err != nil {
			entry.health = HealthUnreachable
			entry.mu.Unlock()
			lastErr = err
			log.Warnf("backend %s unhealthy (role %s), failing over: %s", entry.id, role, err)
			continue
		}
		_ = version
		entry.health = HealthHealthy
		entry.leased = true
		entry.leasedTo = id

		return &Lease{
			BackendID: entry.id,
			Client:    entry.client,
			pool:      m,
			entry:     entry,
		}, nil
	}

	if allBusy {
		return nil, escrowerr.New(escrowerr.KindAllBusy, "all %d backends for role %s are currently leased", len(candidates), role)
	}
	if lastErr != nil {
		return nil, escrowerr.Wrap(escrowerr.KindNoHealthyBackend, lastErr, "no healthy backend available for role %s", role)
	}
	return nil, escrowerr.New(escrowerr.KindNoHealthyBackend, "no healthy backend available for role %s", role)
}

// Release returns a leased backend to the pool.
func (m *Manager) Release(lease *Lease) {
	if lease == nil || lease.entry == nil {
		return
	}
	lease.entry.leased = false
	lease.entry.leasedTo = escrow.ID{}
	lease.entry.mu.Unlock()
}

// BackendCount returns the number of configured backends, for metrics/tests.
func (m *Manager) BackendCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.backends)
}

// MaxConcurrentSetups returns floor(|backends| / 3), spec.md §5's bound on
// how many escrow setups can run in parallel.
func (m *Manager) MaxConcurrentSetups() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.backends) / 3
}

func (e *backendEntry) String() string {
	return fmt.Sprintf("backend{id=%s role=%s health=%s}", e.id, e.role, e.health)
}
