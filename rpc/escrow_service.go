package rpc

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/athanor-escrow/escrowd/dispute"
	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/orchestrator"
)

// EscrowService exposes spec.md §6.2's downstream operations as a
// gorilla/rpc v2 JSON-RPC service ("escrow.<Method>" over HTTP POST),
// mirroring the teacher's per-subsystem service split (DaemonService,
// NetService, SwapService in rpc/server.go).
type EscrowService struct {
	orc *orchestrator.Orchestrator
}

// NewEscrowService constructs the escrow JSON-RPC service over orc.
func NewEscrowService(orc *orchestrator.Orchestrator) *EscrowService {
	return &EscrowService{orc: orc}
}

// CreateEscrowRequest is escrow.CreateEscrow's request.
type CreateEscrowRequest struct {
	OrderID      string `json:"order_id"`
	BuyerID      string `json:"buyer_id"`
	VendorID     string `json:"vendor_id"`
	ArbiterID    string `json:"arbiter_id"`
	AmountAtomic uint64 `json:"amount_atomic"`
}

// CreateEscrowResponse is escrow.CreateEscrow's response.
type CreateEscrowResponse struct {
	EscrowID        string `json:"escrow_id"`
	MultisigAddress string `json:"multisig_address,omitempty"`
}

// CreateEscrow implements create_escrow (spec.md §6.2).
func (s *EscrowService) CreateEscrow(r *http.Request, req *CreateEscrowRequest, resp *CreateEscrowResponse) error {
	res, err := s.orc.CreateEscrow(r.Context(), req.OrderID, req.BuyerID, req.VendorID, req.ArbiterID, req.AmountAtomic)
	if err != nil {
		return err
	}
	resp.EscrowID = res.EscrowID.String()
	resp.MultisigAddress = res.MultisigAddress
	return nil
}

// MultisigChallengeRequest is escrow.SubmitMultisigChallenge's request.
type MultisigChallengeRequest struct {
	EscrowID string `json:"escrow_id"`
	UserID   string `json:"user_id"`
}

// MultisigChallengeResponse is escrow.SubmitMultisigChallenge's response.
type MultisigChallengeResponse struct {
	Nonce     string `json:"nonce"`
	Message   string `json:"message"`
	ExpiresAt int64  `json:"expires_at"`
}

// SubmitMultisigChallenge implements submit_multisig_challenge (spec.md
// §6.2, §4.1.6).
func (s *EscrowService) SubmitMultisigChallenge(r *http.Request, req *MultisigChallengeRequest, resp *MultisigChallengeResponse) error {
	id, err := escrow.IDFromString(req.EscrowID)
	if err != nil {
		return err
	}
	res, err := s.orc.IssueMultisigChallenge(r.Context(), id, req.UserID)
	if err != nil {
		return err
	}
	resp.Nonce = res.Nonce
	resp.Message = res.Message
	resp.ExpiresAt = res.ExpiresAt.Unix()
	return nil
}

// MultisigInfoRequest is escrow.SubmitMultisigInfo's request.
type MultisigInfoRequest struct {
	EscrowID     string `json:"escrow_id"`
	UserID       string `json:"user_id"`
	MultisigInfo string `json:"multisig_info"`
	SignatureB64 string `json:"signature"`
}

// OKResponse is the shared "ok" response for write operations that carry no
// further data (spec.md §6.2).
type OKResponse struct {
	OK bool `json:"ok"`
}

// SubmitMultisigInfo implements submit_multisig_info (spec.md §6.2, §4.1.6).
func (s *EscrowService) SubmitMultisigInfo(r *http.Request, req *MultisigInfoRequest, resp *OKResponse) error {
	id, err := escrow.IDFromString(req.EscrowID)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(req.SignatureB64)
	if err != nil {
		return err
	}
	if err := s.orc.SubmitMultisigInfo(r.Context(), id, req.UserID, req.MultisigInfo, sig); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

// EscrowActionRequest is the shared request shape of fund_notified, ship,
// confirm_receipt, open_dispute, and cancel (spec.md §6.2).
type EscrowActionRequest struct {
	EscrowID    string `json:"escrow_id"`
	RequesterID string `json:"requester_id"`
}

func (s *EscrowService) parseAction(req *EscrowActionRequest) (escrow.ID, error) {
	return escrow.IDFromString(req.EscrowID)
}

// FundNotified implements fund_notified (spec.md §6.2).
func (s *EscrowService) FundNotified(r *http.Request, req *EscrowActionRequest, resp *OKResponse) error {
	id, err := s.parseAction(req)
	if err != nil {
		return err
	}
	if err := s.orc.FundNotified(r.Context(), id, req.RequesterID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

// Ship implements ship (spec.md §6.2).
func (s *EscrowService) Ship(r *http.Request, req *EscrowActionRequest, resp *OKResponse) error {
	id, err := s.parseAction(req)
	if err != nil {
		return err
	}
	if err := s.orc.Ship(r.Context(), id, req.RequesterID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

// ConfirmReceipt implements confirm_receipt (spec.md §6.2).
func (s *EscrowService) ConfirmReceipt(r *http.Request, req *EscrowActionRequest, resp *OKResponse) error {
	id, err := s.parseAction(req)
	if err != nil {
		return err
	}
	if err := s.orc.ConfirmReceipt(r.Context(), id, req.RequesterID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

// OpenDispute implements open_dispute (spec.md §6.2).
func (s *EscrowService) OpenDispute(r *http.Request, req *EscrowActionRequest, resp *OKResponse) error {
	id, err := s.parseAction(req)
	if err != nil {
		return err
	}
	if err := s.orc.OpenDispute(r.Context(), id, req.RequesterID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

// Cancel implements cancel (spec.md §6.2).
func (s *EscrowService) Cancel(r *http.Request, req *EscrowActionRequest, resp *OKResponse) error {
	id, err := s.parseAction(req)
	if err != nil {
		return err
	}
	if err := s.orc.Cancel(r.Context(), id, req.RequesterID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

// SyncAndGetBalanceRequest is escrow.SyncAndGetBalance's request.
type SyncAndGetBalanceRequest struct {
	EscrowID    string `json:"escrow_id"`
	RequesterID string `json:"requester_id"`
}

// SyncAndGetBalanceResponse is escrow.SyncAndGetBalance's response.
type SyncAndGetBalanceResponse struct {
	BalanceAtomic         uint64 `json:"balance_atomic"`
	UnlockedBalanceAtomic uint64 `json:"unlocked_balance_atomic"`
}

// SyncAndGetBalance implements sync_and_get_balance (spec.md §6.2, §4.5).
func (s *EscrowService) SyncAndGetBalance(r *http.Request, req *SyncAndGetBalanceRequest, resp *SyncAndGetBalanceResponse) error {
	id, err := escrow.IDFromString(req.EscrowID)
	if err != nil {
		return err
	}
	bal, err := s.orc.SyncAndGetBalance(r.Context(), id, req.RequesterID)
	if err != nil {
		return err
	}
	resp.BalanceAtomic = bal.BalanceAtomic
	resp.UnlockedBalanceAtomic = bal.UnlockedBalanceAtomic
	return nil
}

// ExportDisputeRequest is escrow.ExportDispute's request.
type ExportDisputeRequest struct {
	EscrowID  string `json:"escrow_id"`
	ArbiterID string `json:"arbiter_id"`
	AsQR      bool   `json:"as_qr"`
}

// ExportDisputeResponse is escrow.ExportDispute's response: the signed
// bundle as JSON, and optionally its QR-code PNG rendering, base64-encoded
// for wire transport (spec.md §4.6).
type ExportDisputeResponse struct {
	Bundle      dispute.SignedBundle `json:"bundle"`
	QRPNGBase64 string               `json:"qr_png_base64,omitempty"`
}

// ExportDispute implements export_dispute (spec.md §6.2, §4.6).
func (s *EscrowService) ExportDispute(r *http.Request, req *ExportDisputeRequest, resp *ExportDisputeResponse) error {
	id, err := escrow.IDFromString(req.EscrowID)
	if err != nil {
		return err
	}
	sb, err := s.orc.ExportDispute(r.Context(), id, req.ArbiterID)
	if err != nil {
		return err
	}
	resp.Bundle = *sb

	if req.AsQR {
		png, err := dispute.EncodeQR(sb)
		if err != nil {
			return err
		}
		resp.QRPNGBase64 = base64.StdEncoding.EncodeToString(png)
	}
	return nil
}

// ApplyDisputeDecisionRequest is escrow.ApplyDisputeDecision's request.
type ApplyDisputeDecisionRequest struct {
	EscrowID      string            `json:"escrow_id"`
	Resolution    escrow.Resolution `json:"resolution"`
	Reason        string            `json:"reason"`
	DecidedAtUnix int64             `json:"decided_at"`
	SignedTxHex   string            `json:"signed_tx_hex"`
	ArbiterSigHex string            `json:"arbiter_signature"`
}

// ApplyDisputeDecisionResponse is escrow.ApplyDisputeDecision's response.
type ApplyDisputeDecisionResponse struct {
	OK        bool          `json:"ok"`
	NewStatus escrow.Status `json:"new_status,omitempty"`
}

// ApplyDisputeDecision implements apply_dispute_decision (spec.md §6.2,
// §4.6).
func (s *EscrowService) ApplyDisputeDecision(r *http.Request, req *ApplyDisputeDecisionRequest, resp *ApplyDisputeDecisionResponse) error {
	id, err := escrow.IDFromString(req.EscrowID)
	if err != nil {
		return err
	}

	d := dispute.Decision{
		Resolution:    req.Resolution,
		Reason:        req.Reason,
		DecidedAt:     time.Unix(req.DecidedAtUnix, 0),
		SignedTxHex:   req.SignedTxHex,
		ArbiterSigHex: req.ArbiterSigHex,
	}
	newStatus, err := s.orc.ApplyDisputeDecision(r.Context(), id, d)
	if err != nil {
		return err
	}

	resp.OK = true
	resp.NewStatus = newStatus
	return nil
}
