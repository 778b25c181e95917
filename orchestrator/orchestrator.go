// Package orchestrator wires the Escrow Store, RPC Pool Manager, Multisig
// Coordinator, Lazy Sync Engine, and Air-gapped Arbiter Bridge behind the
// downstream operations of spec.md §6.2. It is the only package that an RPC
// transport layer needs to import.
package orchestrator

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	logging "github.com/ipfs/go-log"

	"github.com/athanor-escrow/escrowd/cryptoutil"
	"github.com/athanor-escrow/escrowd/dispute"
	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/lazysync"
	"github.com/athanor-escrow/escrowd/monitor"
	"github.com/athanor-escrow/escrowd/multisig"
	"github.com/athanor-escrow/escrowd/store"
)

var log = logging.Logger("orchestrator")

// Orchestrator implements the transport-agnostic core of spec.md §6.2,
// authorizing every call against the escrow's three principals before
// touching the store.
type Orchestrator struct {
	store       store.Store
	coordinator *multisig.Coordinator
	sync        *lazysync.Engine
	bridge      *dispute.Bridge

	setupTimeout time.Duration

	mu         sync.Mutex
	challenges map[escrow.ID]map[escrow.Role]*cryptoutil.Challenge
}

// New constructs an Orchestrator over its already-wired collaborators.
// setupTimeout is the multisig-setup window used to compute a fresh
// escrow's expires_at (spec.md §4.7, timeout_multisig_setup).
func New(st store.Store, coordinator *multisig.Coordinator, syncEngine *lazysync.Engine, bridge *dispute.Bridge, setupTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		store:        st,
		coordinator:  coordinator,
		sync:         syncEngine,
		bridge:       bridge,
		setupTimeout: setupTimeout,
		challenges:   make(map[escrow.ID]map[escrow.Role]*cryptoutil.Challenge),
	}
}

// CreateEscrowResult is the result of create_escrow.
type CreateEscrowResult struct {
	EscrowID        escrow.ID
	MultisigAddress string
}

// CreateEscrow implements create_escrow (spec.md §6.2): it persists a new
// escrow and runs multisig setup synchronously.
func (o *Orchestrator) CreateEscrow(ctx context.Context, orderID, buyerID, vendorID, arbiterID string, amountAtomic uint64) (*CreateEscrowResult, error) {
	if err := escrow.ValidateAmount(amountAtomic); err != nil {
		return nil, escrowerr.Wrap(escrowerr.KindValidation, err, "invalid amount_atomic")
	}

	id, err := escrow.NewID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	e, err := escrow.New(id, orderID, buyerID, vendorID, arbiterID, amountAtomic, now, o.setupTimeout)
	if err != nil {
		return nil, escrowerr.Wrap(escrowerr.KindValidation, err, "invalid escrow parameters")
	}
	if err := o.store.Insert(ctx, e); err != nil {
		return nil, err
	}
	log.Infof("escrow %s: created for order %s", id, orderID)

	addr, err := o.coordinator.SetupMultisig(ctx, id)
	if err != nil {
		return &CreateEscrowResult{EscrowID: id}, err
	}
	return &CreateEscrowResult{EscrowID: id, MultisigAddress: addr}, nil
}

// authorize enforces spec.md §6.2's rule: requesterID must be one of the
// escrow's three principals.
func (o *Orchestrator) authorize(ctx context.Context, id escrow.ID, requesterID string) (*escrow.Escrow, error) {
	e, err := o.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.IsParty(requesterID) {
		return nil, escrowerr.New(escrowerr.KindUnauthorized, "requester is not a party to escrow %s", id)
	}
	return e, nil
}

// roleOf maps a principal's user ID to its multisig role.
func roleOf(e *escrow.Escrow, requesterID string) escrow.Role {
	switch requesterID {
	case e.BuyerID:
		return escrow.RoleBuyer
	case e.VendorID:
		return escrow.RoleVendor
	default:
		return escrow.RoleArbiter
	}
}

// ChallengeResult is the result of submit_multisig_challenge.
type ChallengeResult struct {
	Nonce     string
	Message   string
	ExpiresAt time.Time
}

// IssueMultisigChallenge implements the optional submit_multisig_challenge
// hardening path (spec.md §4.1.6, §6.2).
func (o *Orchestrator) IssueMultisigChallenge(ctx context.Context, id escrow.ID, requesterID string) (*ChallengeResult, error) {
	e, err := o.authorize(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c, err := multisig.IssueChallenge(id, now)
	if err != nil {
		return nil, err
	}

	role := roleOf(e, requesterID)
	o.mu.Lock()
	if o.challenges[id] == nil {
		o.challenges[id] = make(map[escrow.Role]*cryptoutil.Challenge)
	}
	o.challenges[id][role] = c
	o.mu.Unlock()

	return &ChallengeResult{
		Nonce:     hex.EncodeToString(c.Nonce[:]),
		Message:   "sign this challenge with the key embedded in your multisig_info",
		ExpiresAt: c.CreatedAt.Add(cryptoutil.ChallengeTTL),
	}, nil
}

// SubmitMultisigInfo implements the optional submit_multisig_info hardening
// path (spec.md §6.2): it verifies proof-of-possession of the submitted
// multisig_info against a previously issued challenge. It does not feed the
// multisig_info into the setup flow itself, which owns the wallet backends
// directly per spec.md §9's removal of the process-global wallet manager;
// this is a standalone hardening check a deployment can require before
// trusting an externally-supplied multisig_info.
func (o *Orchestrator) SubmitMultisigInfo(ctx context.Context, id escrow.ID, requesterID, multisigInfo string, signature []byte) error {
	e, err := o.authorize(ctx, id, requesterID)
	if err != nil {
		return err
	}
	role := roleOf(e, requesterID)

	o.mu.Lock()
	c := o.challenges[id][role]
	o.mu.Unlock()
	if c == nil {
		return escrowerr.New(escrowerr.KindChallengeExpired, "no outstanding challenge for escrow %s role %s", id, role)
	}

	if err := multisig.VerifyProofOfPossession(c, multisigInfo, signature, time.Now()); err != nil {
		return err
	}

	o.mu.Lock()
	delete(o.challenges[id], role)
	o.mu.Unlock()
	return nil
}

// FundNotified implements fund_notified (spec.md §6.2).
func (o *Orchestrator) FundNotified(ctx context.Context, id escrow.ID, requesterID string) error {
	return o.transition(ctx, id, requesterID, escrow.StatusAwaitingFunding, escrow.StatusFunded)
}

// Ship implements ship (spec.md §6.2).
func (o *Orchestrator) Ship(ctx context.Context, id escrow.ID, requesterID string) error {
	return o.transition(ctx, id, requesterID, escrow.StatusFunded, escrow.StatusShipped)
}

// ConfirmReceipt implements confirm_receipt (spec.md §6.2).
func (o *Orchestrator) ConfirmReceipt(ctx context.Context, id escrow.ID, requesterID string) error {
	return o.transition(ctx, id, requesterID, escrow.StatusShipped, escrow.StatusCompleted)
}

// OpenDispute implements open_dispute (spec.md §6.2). Reachable from either
// Funded or Shipped per the legal-transition graph of §3.
func (o *Orchestrator) OpenDispute(ctx context.Context, id escrow.ID, requesterID string) error {
	e, err := o.authorize(ctx, id, requesterID)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := o.store.UpdateStatus(ctx, id, e.Status, escrow.StatusDisputed, now); err != nil {
		return err
	}
	log.Infof("escrow %s: dispute opened by %s", id, requesterID)
	return nil
}

// Cancel implements cancel (spec.md §6.2). Only reachable from Created or
// AwaitingFunding per the status graph.
func (o *Orchestrator) Cancel(ctx context.Context, id escrow.ID, requesterID string) error {
	e, err := o.authorize(ctx, id, requesterID)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := o.store.UpdateStatus(ctx, id, e.Status, escrow.StatusCancelled, now); err != nil {
		return err
	}
	log.Infof("escrow %s: cancelled by %s", id, requesterID)
	return nil
}

func (o *Orchestrator) transition(ctx context.Context, id escrow.ID, requesterID string, from, to escrow.Status) error {
	if _, err := o.authorize(ctx, id, requesterID); err != nil {
		return err
	}
	now := time.Now()
	if err := o.store.UpdateStatus(ctx, id, from, to, now); err != nil {
		return err
	}
	log.Infof("escrow %s: %s -> %s by %s", id, from, to, requesterID)
	return nil
}

// SyncAndGetBalance implements sync_and_get_balance (spec.md §6.2).
func (o *Orchestrator) SyncAndGetBalance(ctx context.Context, id escrow.ID, requesterID string) (*lazysync.Balance, error) {
	if _, err := o.authorize(ctx, id, requesterID); err != nil {
		return nil, err
	}
	return o.sync.SyncAndGetBalance(ctx, id)
}

// ExportDispute implements export_dispute (spec.md §6.2); only the arbiter
// may export, since the bundle is meant for the offline arbiter tool.
func (o *Orchestrator) ExportDispute(ctx context.Context, id escrow.ID, arbiterID string) (*dispute.SignedBundle, error) {
	e, err := o.authorize(ctx, id, arbiterID)
	if err != nil {
		return nil, err
	}
	if e.ArbiterID != arbiterID {
		return nil, escrowerr.New(escrowerr.KindUnauthorized, "only the arbiter may export a dispute bundle for escrow %s", id)
	}
	sb, _, err := o.bridge.ExportDispute(ctx, id)
	return sb, err
}

// ApplyDisputeDecision implements apply_dispute_decision (spec.md §6.2),
// returning the escrow's resulting status. No authorization check beyond
// the bridge's own arbiter-signature verification: the decision is
// self-authenticating.
func (o *Orchestrator) ApplyDisputeDecision(ctx context.Context, id escrow.ID, d dispute.Decision) (escrow.Status, error) {
	return o.bridge.ApplyDecision(ctx, id, d)
}

// monitorNotifier is a monitor.Notifier that only logs each event; it holds
// no reference to the Orchestrator.
type monitorNotifier struct{}

func (monitorNotifier) NotifyExpiryWarning(id escrow.ID, expiresAt time.Time) {
	log.Warnf("escrow %s: expires at %s", id, expiresAt)
}

func (monitorNotifier) NotifyExpired(id escrow.ID) {
	log.Infof("escrow %s: expired", id)
}

func (monitorNotifier) NotifyEscalated(id escrow.ID) {
	log.Warnf("escrow %s: dispute escalated past resolution timeout", id)
}

// Notifier returns a monitor.Notifier implementation suitable for wiring a
// monitor.Monitor alongside this Orchestrator.
func Notifier() monitor.Notifier {
	return monitorNotifier{}
}
