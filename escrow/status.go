package escrow

// Status is the lifecycle state of an escrow, per spec.md §3.
type Status string

// Status values of the escrow lifecycle graph.
const (
	StatusCreated         Status = "Created"
	StatusAwaitingFunding Status = "AwaitingFunding"
	StatusFunded          Status = "Funded"
	StatusShipped         Status = "Shipped"
	StatusCompleted       Status = "Completed"
	StatusRefunded        Status = "Refunded"
	StatusDisputed        Status = "Disputed"
	StatusResolving       Status = "Resolving"
	StatusExpired         Status = "Expired"
	StatusCancelled       Status = "Cancelled"
)

// terminal statuses never transition further.
var terminal = map[Status]bool{
	StatusCompleted: true,
	StatusRefunded:  true,
	StatusExpired:   true,
	StatusCancelled: true,
}

// IsTerminal reports whether s is a terminal status.
func (s Status) IsTerminal() bool {
	return terminal[s]
}

// legalTransitions enumerates every (from, to) pair permitted by spec.md §3's
// status graph. Any pair absent from this set is an IllegalTransition.
var legalTransitions = map[Status]map[Status]bool{
	StatusCreated: {
		StatusAwaitingFunding: true,
		StatusCancelled:       true,
		StatusExpired:         true,
	},
	StatusAwaitingFunding: {
		StatusFunded:    true,
		StatusCancelled: true,
		StatusExpired:   true,
	},
	StatusFunded: {
		StatusShipped:  true,
		StatusDisputed: true,
		StatusExpired:  true,
	},
	StatusShipped: {
		StatusCompleted: true,
		StatusDisputed:  true,
		StatusExpired:   true,
	},
	StatusDisputed: {
		StatusResolving: true,
		StatusExpired:   true,
	},
	StatusResolving: {
		StatusCompleted: true,
		StatusRefunded:  true,
		StatusExpired:   true,
	},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to Status) bool {
	targets, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// MultisigPhase is the progress of the two-round multisig setup protocol
// of spec.md §4.1.
type MultisigPhase string

// Phases of the multisig setup state machine, in order.
const (
	PhaseNotStarted     MultisigPhase = "NotStarted"
	PhasePrepared       MultisigPhase = "Prepared"
	PhaseRound1Made     MultisigPhase = "Round1Made"
	PhaseRound2Exchange MultisigPhase = "Round2Exchanged"
	PhaseFinalized      MultisigPhase = "Finalized"
)

// phaseOrder gives each phase's position for monotonicity checks.
var phaseOrder = map[MultisigPhase]int{
	PhaseNotStarted:     0,
	PhasePrepared:       1,
	PhaseRound1Made:     2,
	PhaseRound2Exchange: 3,
	PhaseFinalized:      4,
}

// CanAdvancePhase reports whether moving from `from` to `to` is a legal
// single-step phase advance; staying in the same phase, skipping a phase or
// moving backwards is not.
func CanAdvancePhase(from, to MultisigPhase) bool {
	fromOrd, ok := phaseOrder[from]
	if !ok {
		return false
	}
	toOrd, ok := phaseOrder[to]
	if !ok {
		return false
	}
	return toOrd == fromOrd+1
}

// Role identifies which of the three multisig participants a wallet session
// or blob belongs to.
type Role string

// The three multisig roles.
const (
	RoleBuyer   Role = "Buyer"
	RoleVendor  Role = "Vendor"
	RoleArbiter Role = "Arbiter"
)

// Roles lists the three roles in the pool's fixed role-index order
// (spec.md §4.2 "Role indexing").
var Roles = [3]Role{RoleBuyer, RoleVendor, RoleArbiter}

// Resolution is the outcome an arbiter decision produces (spec.md §4.6).
type Resolution string

// Possible dispute resolutions.
const (
	ResolutionBuyer  Resolution = "Buyer"
	ResolutionVendor Resolution = "Vendor"
)
