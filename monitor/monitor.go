// Package monitor implements the Timeout Monitor of spec.md §4.7: a
// background sweeper that expires or escalates escrows whose expires_at has
// passed or is about to pass.
package monitor

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/store"
)

var log = logging.Logger("monitor")

// PollInterval is the monitor's sweep cadence (spec.md §4.7 "60-second
// polling cadence").
const PollInterval = 60 * time.Second

// WarningWindow is how far ahead of expiry a warning event fires (spec.md
// §4.7 "expires_at - now <= 1h").
const WarningWindow = 1 * time.Hour

// Timeouts holds the per-status timeout defaults of spec.md §4.7, all
// configurable by the caller.
type Timeouts struct {
	MultisigSetup      time.Duration
	Funding            time.Duration
	TransactionConfirm time.Duration
	DisputeResolution  time.Duration
}

// DefaultTimeouts returns the defaults named in spec.md §4.7.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		MultisigSetup:      1 * time.Hour,
		Funding:            24 * time.Hour,
		TransactionConfirm: 6 * time.Hour,
		DisputeResolution:  7 * 24 * time.Hour,
	}
}

// ForStatus returns the configured timeout for entering the given status,
// or zero if the status has none (Resolving and the terminal statuses).
func (t Timeouts) ForStatus(s escrow.Status) time.Duration {
	switch s {
	case escrow.StatusCreated:
		return t.MultisigSetup
	case escrow.StatusAwaitingFunding:
		return t.Funding
	case escrow.StatusFunded, escrow.StatusShipped:
		return t.TransactionConfirm
	case escrow.StatusDisputed:
		return t.DisputeResolution
	default:
		return 0
	}
}

// Notifier is the external collaborator that receives warning/expiry events
// (spec.md §4.7 "expire them and notify").
type Notifier interface {
	NotifyExpiryWarning(id escrow.ID, expiresAt time.Time)
	NotifyExpired(id escrow.ID)
	NotifyEscalated(id escrow.ID)
}

// Monitor runs the periodic sweep described in spec.md §4.7.
type Monitor struct {
	store    store.Store
	notifier Notifier
	timeouts Timeouts

	stop chan struct{}
	done chan struct{}
}

// New constructs a Monitor. notifier may be nil, in which case events are
// only logged.
func New(st store.Store, notifier Notifier, timeouts Timeouts) *Monitor {
	return &Monitor{
		store:    st,
		notifier: notifier,
		timeouts: timeouts,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop. Call Stop to terminate it.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

// Stop terminates the sweep loop and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

// sweepOnce runs a single pass of the sweep: warnings first, then expiries,
// matching spec.md §4.7's two actions.
func (m *Monitor) sweepOnce(ctx context.Context) {
	now := time.Now()

	warning, err := m.store.ListExpiringWithin(ctx, now, WarningWindow)
	if err != nil {
		log.Warnf("monitor: failed to list expiring escrows: %s", err)
	} else {
		for _, e := range warning {
			m.notify(func(n Notifier) { n.NotifyExpiryWarning(e.ID, e.ExpiresAt) })
		}
	}

	expired, err := m.store.ListExpired(ctx, now)
	if err != nil {
		log.Warnf("monitor: failed to list expired escrows: %s", err)
		return
	}

	for _, e := range expired {
		m.expireOne(ctx, e, now)
	}
}

// expireOne applies spec.md §4.7's expiry action to a single escrow:
// transition to Expired from the eligible statuses, or escalate a
// long-running dispute from Disputed to Resolving.
func (m *Monitor) expireOne(ctx context.Context, e *escrow.Escrow, now time.Time) {
	if e.Status == escrow.StatusDisputed {
		if err := m.store.UpdateStatus(ctx, e.ID, escrow.StatusDisputed, escrow.StatusResolving, now); err != nil {
			if !escrowerr.Is(err, escrowerr.KindIllegalTransition) {
				log.Warnf("monitor: failed to escalate escrow %s: %s", e.ID, err)
			}
			return
		}
		m.notify(func(n Notifier) { n.NotifyEscalated(e.ID) })
		return
	}

	switch e.Status {
	case escrow.StatusCreated, escrow.StatusAwaitingFunding, escrow.StatusFunded, escrow.StatusShipped:
		if err := m.store.UpdateStatus(ctx, e.ID, e.Status, escrow.StatusExpired, now); err != nil {
			if !escrowerr.Is(err, escrowerr.KindIllegalTransition) {
				log.Warnf("monitor: failed to expire escrow %s: %s", e.ID, err)
			}
			return
		}
		m.notify(func(n Notifier) { n.NotifyExpired(e.ID) })
	}
}

func (m *Monitor) notify(fn func(Notifier)) {
	if m.notifier == nil {
		return
	}
	fn(m.notifier)
}
