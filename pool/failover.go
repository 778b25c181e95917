package pool

import (
	"context"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
)

// MaxFailoverAttempts bounds how many backends of the same role WithFailover
// will try before giving up.
const MaxFailoverAttempts = 3

// WithFailover leases a backend for (id, role), runs fn against it, and
// releases it. If fn fails with a transport-level error (Unreachable or
// Timeout), the lease is released and a different backend of the same role
// is tried, up to MaxFailoverAttempts times — implementing spec.md §7's
// "retried at most by failover to another backend of the same role at lease
// time; never within a single RPC call" as reusable control flow instead of
// ad hoc retry loops at every call site.
//
// fn must not be retried internally; ProtocolError/IntegrityError and any
// other non-transport error are returned immediately without failover,
// since those indicate the call reached the wallet and failed on its own
// terms rather than failing to reach it.
func (m *Manager) WithFailover(ctx context.Context, id escrow.ID, role escrow.Role, fn func(*Lease) error) error {
	var lastErr error

	for attempt := 0; attempt < MaxFailoverAttempts; attempt++ {
		lease, err := m.Acquire(ctx, id, role)
		if err != nil {
			return err
		}

		err = fn(lease)
		m.Release(lease)

		if err == nil {
			return nil
		}

		if !isTransportError(err) {
			return err
		}

		lastErr = err
		log.Warnf("escrow %s: %s call failed on backend %s, failing over (attempt %d/%d): %s",
			id, role, lease.BackendID, attempt+1, MaxFailoverAttempts, err)
	}

	return escrowerr.Wrap(escrowerr.KindNoHealthyBackend, lastErr, "exhausted failover attempts for role %s", role)
}

func isTransportError(err error) bool {
	return escrowerr.Is(err, escrowerr.KindBackendUnreachable) || escrowerr.Is(err, escrowerr.KindBackendTimeout)
}
