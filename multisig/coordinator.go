// Package multisig implements the Multisig Coordinator of spec.md §4.1: it
// drives the three wallets of an escrow through the two-round Monero
// multisig protocol, persisting each phase before the next so a crash can
// resume from the last completed step.
package multisig

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/pool"
	"github.com/athanor-escrow/escrowd/store"
)

var log = logging.Logger("multisig")

// enableMultisigAttr is the persisted wallet attribute that gates the
// experimental multisig RPCs (spec.md §4.1 "Pre-requisite").
const enableMultisigAttr = "enable-multisig-experimental"

// roleState is the durable per-role record the coordinator keeps in the
// store's wallet blob slot, carrying the protocol strings produced so far
// (spec.md §4.1.4 idempotent persistence).
type roleState struct {
	WalletFile     string `json:"wallet_file"`
	WalletPassword string `json:"wallet_password"`
	PrepareInfo    string `json:"prepare_info,omitempty"`
	Round1Info     string `json:"round1_info,omitempty"`
	Round1Address  string `json:"round1_address,omitempty"`
	Round2Info     string `json:"round2_info,omitempty"`
	Round2Address  string `json:"round2_address,omitempty"`
}

// Coordinator implements spec.md §4.1's operations.
type Coordinator struct {
	store store.Store
	pool  *pool.Manager

	// RequireProofOfPossession gates the optional challenge of §4.1.6.
	RequireProofOfPossession bool
}

// New constructs a Coordinator over the given store and pool.
func New(st store.Store, p *pool.Manager) *Coordinator {
	return &Coordinator{store: st, pool: p}
}

func walletFilename(id escrow.ID, role escrow.Role) string {
	return fmt.Sprintf("escrow-%s-%s", id, role)
}

func randomPassword() (string, error) {
	raw, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("multisig: failed to generate wallet password: %w", err)
	}
	return raw.String(), nil
}

// LoadWalletCredentials returns the wallet filename and password recorded
// for a role during multisig setup, so other components (the lazy sync
// engine) can reopen the same wallet file without duplicating the
// coordinator's persistence format.
func LoadWalletCredentials(ctx context.Context, st store.Store, id escrow.ID, role escrow.Role) (filename, password string, err error) {
	blob, err := st.LoadWalletBlob(ctx, id, role)
	if err != nil {
		return "", "", err
	}
	var rs roleState
	if err := json.Unmarshal(blob, &rs); err != nil {
		return "", "", fmt.Errorf("multisig: corrupt role state for %s/%s: %w", id, role, err)
	}
	if rs.WalletFile == "" {
		return "", "", escrowerr.New(escrowerr.KindNotFound, "no wallet file recorded for escrow %s role %s", id, role)
	}
	return rs.WalletFile, rs.WalletPassword, nil
}

func (c *Coordinator) loadRoleState(ctx context.Context, id escrow.ID, role escrow.Role) (*roleState, error) {
	blob, err := c.store.LoadWalletBlob(ctx, id, role)
	if escrowerr.Is(err, escrowerr.KindNotFound) {
		return &roleState{}, nil
	}
	if err != nil {
		return nil, err
	}
	var rs roleState
	if err := json.Unmarshal(blob, &rs); err != nil {
		return nil, fmt.Errorf("multisig: corrupt role state for %s/%s: %w", id, role, err)
	}
	return &rs, nil
}

func (c *Coordinator) saveRoleState(ctx context.Context, id escrow.ID, role escrow.Role, rs *roleState) error {
	blob, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("multisig: failed to encode role state for %s/%s: %w", id, role, err)
	}
	return c.store.StoreWalletBlob(ctx, id, role, blob)
}

// otherRoles returns the two roles other than role, in the fixed order of
// escrow.Roles, matching the order other_info slices are built in.
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

// SetupMultisig implements setup_multisig (spec.md §4.1.1): walks the escrow
// through Prepare, Round1, Round2, and Finalize, resuming from whatever
// phase is already persisted.
func (c *Coordinator) SetupMultisig(ctx context.Context, id escrow.ID) (string, error) {
	e, err := c.store.Load(ctx, id)
	if err != nil {
		return "", err
	}

	if e.MultisigPhase == escrow.PhaseFinalized {
		if e.MultisigAddress == "" {
			return "", escrowerr.New(escrowerr.KindIntegrityError, "escrow %s finalized without an address", id)
		}
		return e.MultisigAddress, nil
	}

	switch e.MultisigPhase {
	case escrow.PhaseNotStarted:
		if err := c.runPrepare(ctx, id); err != nil {
			return "", err
		}
		fallthrough
	case escrow.PhasePrepared:
		if err := c.runRound1(ctx, id); err != nil {
			return "", err
		}
		fallthrough
	case escrow.PhaseRound1Made:
		if err := c.runRound2(ctx, id); err != nil {
			return "", err
		}
		fallthrough
	case escrow.PhaseRound2Exchanged:
		return c.runFinalize(ctx, id)
	default:
		return "", escrowerr.New(escrowerr.KindIntegrityError, "escrow %s has unrecognized multisig phase %s", id, e.MultisigPhase)
	}
}

// runPrepare ensures a wallet exists for each role, enables the experimental
// multisig attribute (which only takes effect after a close/open cycle), and
// collects each wallet's prepare_info (spec.md §4.1 steps "Pre-requisite",
// "1. Prepare").
func (c *Coordinator) runPrepare(ctx context.Context, id escrow.ID) error {
	now := time.Now()
	for _, role := range escrow.Roles {
		rs, err := c.loadRoleState(ctx, id, role)
		if err != nil {
			return err
		}
		if rs.PrepareInfo != "" {
			continue // already prepared; resuming
		}

		if rs.WalletFile == "" {
			rs.WalletFile = walletFilename(id, role)
			pw, err := randomPassword()
			if err != nil {
				return err
			}
			rs.WalletPassword = pw
		}

		role := role
		err = c.pool.WithFailover(ctx, id, role, func(lease *pool.Lease) error {
			cl := lease.Client
			if err := cl.CreateWallet(ctx, rs.WalletFile, rs.WalletPassword); err != nil {
				return err
			}
			if err := cl.SetAttribute(ctx, enableMultisigAttr, "1"); err != nil {
				return err
			}
			// the attribute only takes effect across a close/open cycle
			if err := cl.CloseWallet(ctx); err != nil {
				return err
			}
			if err := cl.OpenWallet(ctx, rs.WalletFile, rs.WalletPassword); err != nil {
				return err
			}
			info, err := cl.PrepareMultisig(ctx)
			if err != nil {
				return err
			}
			rs.PrepareInfo = info
			return cl.CloseWallet(ctx)
		})
		if err != nil {
			return escrowerr.Wrap(escrowerr.KindRPCError, err, "escrow %s: prepare failed for role %s", id, role)
		}

		if err := c.saveRoleState(ctx, id, role, rs); err != nil {
			return err
		}
	}

	return c.store.UpdatePhase(ctx, id, escrow.PhaseNotStarted, escrow.PhasePrepared, now)
}

// runRound1 calls make_multisig on each wallet with the other two roles'
// prepare_info, then verifies all three returned addresses agree (spec.md
// §4.1 step 2, §4.1.2 Agreement check).
func (c *Coordinator) runRound1(ctx context.Context, id escrow.ID) error {
	now := time.Now()
	states := make(map[escrow.Role]*roleState, 3)
	for _, role := range escrow.Roles {
		rs, err := c.loadRoleState(ctx, id, role)
		if err != nil {
			return err
		}
		states[role] = rs
	}

	for _, role := range escrow.Roles {
		rs := states[role]
		if rs.Round1Info != "" {
			continue
		}

		others := otherRoles(role)
		var otherInfos [2]string
		for i, r := range others {
			if states[r].PrepareInfo == "" {
				return escrowerr.New(escrowerr.KindIntegrityError, "escrow %s: role %s missing prepare_info", id, r)
			}
			otherInfos[i] = states[r].PrepareInfo
		}

		role := role
		err := c.pool.WithFailover(ctx, id, role, func(lease *pool.Lease) error {
			cl := lease.Client
			if err := cl.OpenWallet(ctx, rs.WalletFile, rs.WalletPassword); err != nil {
				return err
			}
			result, err := cl.MakeMultisig(ctx, otherInfos, rs.WalletPassword)
			if err != nil {
				return err
			}
			rs.Round1Info = result.MultisigInfo
			rs.Round1Address = result.Address
			return cl.CloseWallet(ctx)
		})
		if err != nil {
			return escrowerr.Wrap(escrowerr.KindRPCError, err, "escrow %s: make_multisig failed for role %s", id, role)
		}

		if err := c.saveRoleState(ctx, id, role, rs); err != nil {
			return err
		}
	}

	if err := checkAgreement(id, states, func(rs *roleState) string { return rs.Round1Address }); err != nil {
		_ = c.store.UpdateStatus(ctx, id, escrow.StatusCreated, escrow.StatusCancelled, now)
		return err
	}

	return c.store.UpdatePhase(ctx, id, escrow.PhasePrepared, escrow.PhaseRound1Made, now)
}

// runRound2 calls exchange_multisig_keys on each wallet with the other two
// roles' round-1 info, re-checks address agreement against both round-1 and
// round-2 results, and finalizes the wallets (spec.md §4.1 step 3).
func (c *Coordinator) runRound2(ctx context.Context, id escrow.ID) error {
	now := time.Now()
	states := make(map[escrow.Role]*roleState, 3)
	for _, role := range escrow.Roles {
		rs, err := c.loadRoleState(ctx, id, role)
		if err != nil {
			return err
		}
		states[role] = rs
	}

	for _, role := range escrow.Roles {
		rs := states[role]
		if rs.Round2Info != "" {
			continue
		}

		others := otherRoles(role)
		var otherInfos [2]string
		for i, r := range others {
			if states[r].Round1Info == "" {
				return escrowerr.New(escrowerr.KindIntegrityError, "escrow %s: role %s missing round1_info", id, r)
			}
			otherInfos[i] = states[r].Round1Info
		}

		role := role
		err := c.pool.WithFailover(ctx, id, role, func(lease *pool.Lease) error {
			cl := lease.Client
			if err := cl.OpenWallet(ctx, rs.WalletFile, rs.WalletPassword); err != nil {
				return err
			}
			result, err := cl.ExchangeMultisigKeys(ctx, otherInfos, rs.WalletPassword)
			if err != nil {
				return err
			}
			rs.Round2Info = result.MultisigInfo
			rs.Round2Address = result.Address
			return cl.CloseWallet(ctx)
		})
		if err != nil {
			return escrowerr.Wrap(escrowerr.KindRPCError, err, "escrow %s: exchange_multisig_keys failed for role %s", id, role)
		}

		if err := c.saveRoleState(ctx, id, role, rs); err != nil {
			return err
		}
	}

	if err := checkAgreement(id, states, func(rs *roleState) string { return rs.Round2Address }); err != nil {
		_ = c.store.UpdateStatus(ctx, id, escrow.StatusCreated, escrow.StatusCancelled, now)
		return err
	}
	for role, rs := range states {
		if rs.Round2Address != rs.Round1Address {
			_ = c.store.UpdateStatus(ctx, id, escrow.StatusCreated, escrow.StatusCancelled, now)
			return escrowerr.New(escrowerr.KindIntegrityError,
				"escrow %s: round-2 address for role %s disagrees with round-1 address", id, role)
		}
	}

	return c.store.UpdatePhase(ctx, id, escrow.PhaseRound1Made, escrow.PhaseRound2Exchanged, now)
}

// runFinalize records the jointly-agreed address exactly once and moves the
// escrow out of Created into AwaitingFunding (spec.md §3 invariant).
func (c *Coordinator) runFinalize(ctx context.Context, id escrow.ID) (string, error) {
	now := time.Now()

	buyerState, err := c.loadRoleState(ctx, id, escrow.RoleBuyer)
	if err != nil {
		return "", err
	}
	address := buyerState.Round2Address
	if address == "" {
		return "", escrowerr.New(escrowerr.KindIntegrityError, "escrow %s: no agreed address at finalize", id)
	}

	if err := c.store.SetMultisigAddress(ctx, id, address, now); err != nil {
		// already set by a previous, interrupted run; treat as success if it
		// matches (idempotent replay)
		e, loadErr := c.store.Load(ctx, id)
		if loadErr == nil && e.MultisigAddress == address {
			return address, c.finalizePhaseAndStatus(ctx, id, now)
		}
		return "", err
	}

	if err := c.finalizePhaseAndStatus(ctx, id, now); err != nil {
		return "", err
	}

	log.Infof("escrow %s: multisig setup finalized, address=%s", id, address)
	return address, nil
}

func (c *Coordinator) finalizePhaseAndStatus(ctx context.Context, id escrow.ID, now time.Time) error {
	if err := c.store.UpdatePhase(ctx, id, escrow.PhaseRound2Exchanged, escrow.PhaseFinalized, now); err != nil {
		if !escrowerr.Is(err, escrowerr.KindIllegalTransition) {
			return err
		}
	}
	if err := c.store.UpdateStatus(ctx, id, escrow.StatusCreated, escrow.StatusAwaitingFunding, now); err != nil {
		if !escrowerr.Is(err, escrowerr.KindIllegalTransition) {
			return err
		}
	}
	return nil
}

// checkAgreement compares the three extracted values byte-for-byte, failing
// as IntegrityError on any mismatch (spec.md §4.1.2).
func checkAgreement(id escrow.ID, states map[escrow.Role]*roleState, extract func(*roleState) string) error {
	var want string
	for i, role := range escrow.Roles {
		got := extract(states[role])
		if got == "" {
			return escrowerr.New(escrowerr.KindIntegrityError, "escrow %s: role %s has no address to compare", id, role)
		}
		if i == 0 {
			want = got
			continue
		}
		if got != want {
			return escrowerr.New(escrowerr.KindIntegrityError, "escrow %s: address disagreement between wallets", id)
		}
	}
	return nil
}

// ArbiterSign implements the online arbiter_sign path of spec.md §4.1.1,
// used only when the deployment accepts the arbiter holding live signing
// custody (see spec.md §9).
func (c *Coordinator) ArbiterSign(ctx context.Context, id escrow.ID, partiallySignedTxHex string) (string, error) {
	rs, err := c.loadRoleState(ctx, id, escrow.RoleArbiter)
	if err != nil {
		return "", err
	}
	if rs.WalletFile == "" {
		return "", escrowerr.New(escrowerr.KindIllegalTransition, "escrow %s: arbiter wallet was never set up", id)
	}

	var signed string
	err = c.pool.WithFailover(ctx, id, escrow.RoleArbiter, func(lease *pool.Lease) error {
		cl := lease.Client
		if err := cl.OpenWallet(ctx, rs.WalletFile, rs.WalletPassword); err != nil {
			return err
		}
		result, err := cl.SignMultisig(ctx, partiallySignedTxHex)
		if err != nil {
			return err
		}
		signed = result.TxDataHex
		return cl.CloseWallet(ctx)
	})
	if err != nil {
		return "", escrowerr.Wrap(escrowerr.KindRPCError, err, "escrow %s: arbiter sign_multisig failed", id)
	}
	return signed, nil
}
