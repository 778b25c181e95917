package escrow

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel validation errors, checked with errors.Is by callers.
var (
	ErrZeroAmount      = errors.New("amount_atomic must be strictly positive")
	ErrAmountOverflow  = errors.New("amount_atomic exceeds the signed 64-bit range")
	ErrAddressAlreadySet = errors.New("multisig_address is already set")
)

// MaxAtomicAmount is 2^63-1, the boundary named in spec.md §8 ("amount_atomic
// == 0 or > 2^63-1: rejected").
const MaxAtomicAmount = uint64(1<<63 - 1)

// ValidateAmount enforces spec.md §3's "amount_atomic > 0 and fits in 64 bits"
// invariant, using the 2^63-1 boundary from §8's boundary-behavior table.
func ValidateAmount(amountAtomic uint64) error {
	if amountAtomic == 0 {
		return ErrZeroAmount
	}
	if amountAtomic > MaxAtomicAmount {
		return ErrAmountOverflow
	}
	return nil
}

// ArbiterDecision is the structured result of a completed dispute,
// recorded on the escrow per spec.md §3.
type ArbiterDecision struct {
	Resolution  Resolution `json:"resolution"`
	Reason      string     `json:"reason"`
	DecidedAt   time.Time  `json:"decided_at"`
	SignedTxHex string     `json:"signed_tx_hex"`
}

// Escrow is the durable record described in spec.md §3.
type Escrow struct {
	ID        ID     `json:"id"`
	OrderID   string `json:"order_id"`
	BuyerID   string `json:"buyer_id"`
	VendorID  string `json:"vendor_id"`
	ArbiterID string `json:"arbiter_id"`

	AmountAtomic uint64 `json:"amount_atomic"`

	Status        Status        `json:"status"`
	MultisigPhase MultisigPhase `json:"multisig_phase"`

	// MultisigAddress is set exactly once, on the Finalized -> AwaitingFunding
	// transition (spec.md §3 invariant).
	MultisigAddress string `json:"multisig_address,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`

	TransactionHash string `json:"transaction_hash,omitempty"`

	ArbiterDecision *ArbiterDecision `json:"arbiter_decision,omitempty"`
}

// Principal returns the opaque user ID bound to role r.
func (e *Escrow) Principal(role Role) string {
	switch role {
	case RoleBuyer:
		return e.BuyerID
	case RoleVendor:
		return e.VendorID
	case RoleArbiter:
		return e.ArbiterID
	default:
		return ""
	}
}

// IsParty reports whether requesterID is one of the escrow's three
// principals, per spec.md §6.2's authorization rule.
func (e *Escrow) IsParty(requesterID string) bool {
	return requesterID != "" &&
		(requesterID == e.BuyerID || requesterID == e.VendorID || requesterID == e.ArbiterID)
}

// SetMultisigAddress assigns the jointly-agreed address, enforcing the
// once-only invariant of spec.md §3/§8.
func (e *Escrow) SetMultisigAddress(addr string) error {
	if e.MultisigAddress != "" {
		return ErrAddressAlreadySet
	}
	e.MultisigAddress = addr
	return nil
}

// New constructs a fresh Created escrow, validating the amount invariant.
func New(id ID, orderID, buyerID, vendorID, arbiterID string, amountAtomic uint64, now time.Time, setupTimeout time.Duration) (*Escrow, error) {
	if err := ValidateAmount(amountAtomic); err != nil {
		return nil, err
	}
	if orderID == "" || buyerID == "" || vendorID == "" || arbiterID == "" {
		return nil, fmt.Errorf("order_id, buyer_id, vendor_id, and arbiter_id are required")
	}

	return &Escrow{
		ID:             id,
		OrderID:        orderID,
		BuyerID:        buyerID,
		VendorID:       vendorID,
		ArbiterID:      arbiterID,
		AmountAtomic:   amountAtomic,
		Status:         StatusCreated,
		MultisigPhase:  PhaseNotStarted,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(setupTimeout),
	}, nil
}
