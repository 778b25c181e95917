// Package main provides escrowctl, the command-line client for a running
// escrowd instance, in the style of the teacher's swapcli.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"
)

const (
	flagEndpoint    = "endpoint"
	flagOrderID     = "order-id"
	flagBuyerID     = "buyer-id"
	flagVendorID    = "vendor-id"
	flagArbiterID   = "arbiter-id"
	flagAmount      = "amount-atomic"
	flagEscrowID    = "escrow-id"
	flagRequesterID = "requester-id"
	flagUserID      = "user-id"
	flagInfo        = "multisig-info"
	flagSignature   = "signature"
	flagResolution  = "resolution"
	flagReason      = "reason"
	flagDecidedAt   = "decided-at"
	flagSignedTx    = "signed-tx-hex"
	flagArbiterSig  = "arbiter-signature"
	flagQR          = "qr"

	defaultEndpoint = "http://127.0.0.1:8546/"
)

var endpointFlag = &cli.StringFlag{
	Name:    flagEndpoint,
	Aliases: []string{"e"},
	Usage:   "escrowd JSON-RPC endpoint",
	Value:   defaultEndpoint,
	EnvVars: []string{"ESCROWCTL_ENDPOINT"},
}

func main() {
	if err := cliApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

func cliApp() *cli.App {
	return &cli.App{
		Name:                 "escrowctl",
		Usage:                "Client for escrowd, a Monero multisig escrow orchestrator",
		EnableBashCompletion: true,
		Suggest:              true,
		Commands: []*cli.Command{
			{
				Name:  "create-escrow",
				Usage: "Create a new escrow and run multisig setup",
				Flags: []cli.Flag{
					endpointFlag,
					&cli.StringFlag{Name: flagOrderID, Required: true},
					&cli.StringFlag{Name: flagBuyerID, Required: true},
					&cli.StringFlag{Name: flagVendorID, Required: true},
					&cli.StringFlag{Name: flagArbiterID, Required: true},
					&cli.Uint64Flag{Name: flagAmount, Required: true, Usage: "amount in atomic units (1 XMR = 10^12)"},
					&cli.BoolFlag{Name: flagQR, Usage: "print the multisig address as a terminal QR code"},
				},
				Action: runCreateEscrow,
			},
			{
				Name:  "fund-notified",
				Usage: "Notify the orchestrator that the escrow address has been funded",
				Flags: requesterFlags(),
				Action: action("escrow.FundNotified"),
			},
			{
				Name:   "ship",
				Usage:  "Mark the order as shipped",
				Flags:  requesterFlags(),
				Action: action("escrow.Ship"),
			},
			{
				Name:   "confirm-receipt",
				Usage:  "Confirm receipt, completing the escrow",
				Flags:  requesterFlags(),
				Action: action("escrow.ConfirmReceipt"),
			},
			{
				Name:   "open-dispute",
				Usage:  "Open a dispute over this escrow",
				Flags:  requesterFlags(),
				Action: action("escrow.OpenDispute"),
			},
			{
				Name:   "cancel",
				Usage:  "Cancel an escrow before it is funded",
				Flags:  requesterFlags(),
				Action: action("escrow.Cancel"),
			},
			{
				Name:  "sync-balance",
				Usage: "Re-sync the multisig wallet and print its balance",
				Flags: requesterFlags(),
				Action: runSyncBalance,
			},
			{
				Name:  "submit-challenge",
				Usage: "Request a proof-of-possession challenge for multisig_info hardening",
				Flags: []cli.Flag{
					endpointFlag,
					&cli.StringFlag{Name: flagEscrowID, Required: true},
					&cli.StringFlag{Name: flagUserID, Required: true},
				},
				Action: runSubmitChallenge,
			},
			{
				Name:  "submit-multisig-info",
				Usage: "Submit multisig_info with a proof-of-possession signature",
				Flags: []cli.Flag{
					endpointFlag,
					&cli.StringFlag{Name: flagEscrowID, Required: true},
					&cli.StringFlag{Name: flagUserID, Required: true},
					&cli.StringFlag{Name: flagInfo, Required: true},
					&cli.StringFlag{Name: flagSignature, Required: true, Usage: "base64-encoded Ed25519 signature"},
				},
				Action: runSubmitMultisigInfo,
			},
			{
				Name:  "export-dispute",
				Usage: "Export a signed dispute bundle for the offline arbiter",
				Flags: []cli.Flag{
					endpointFlag,
					&cli.StringFlag{Name: flagEscrowID, Required: true},
					&cli.StringFlag{Name: flagArbiterID, Required: true},
					&cli.BoolFlag{Name: flagQR, Usage: "also request a QR-encoded PNG of the bundle"},
				},
				Action: runExportDispute,
			},
			{
				Name:  "apply-decision",
				Usage: "Apply a signed arbiter decision to a disputed escrow",
				Flags: []cli.Flag{
					endpointFlag,
					&cli.StringFlag{Name: flagEscrowID, Required: true},
					&cli.StringFlag{Name: flagResolution, Required: true, Usage: "Buyer or Vendor"},
					&cli.StringFlag{Name: flagReason},
					&cli.Int64Flag{Name: flagDecidedAt, Required: true, Usage: "decision timestamp, unix seconds"},
					&cli.StringFlag{Name: flagSignedTx, Required: true},
					&cli.StringFlag{Name: flagArbiterSig, Required: true, Usage: "hex-encoded Ed25519 signature"},
				},
				Action: runApplyDecision,
			},
		},
	}
}

func requesterFlags() []cli.Flag {
	return []cli.Flag{
		endpointFlag,
		&cli.StringFlag{Name: flagEscrowID, Required: true},
		&cli.StringFlag{Name: flagRequesterID, Required: true},
	}
}

// action returns a cli.ActionFunc that posts {escrow_id, requester_id} to
// method and prints "ok" on success, covering the five identically-shaped
// status-transition operations of spec.md §6.2.
func action(method string) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c := newClient(ctx.String(flagEndpoint))
		req := map[string]string{
			"escrow_id":    ctx.String(flagEscrowID),
			"requester_id": ctx.String(flagRequesterID),
		}
		var resp map[string]interface{}
		if err := c.call(ctx.Context, method, req, &resp); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	}
}

func runCreateEscrow(ctx *cli.Context) error {
	c := newClient(ctx.String(flagEndpoint))
	req := map[string]interface{}{
		"order_id":      ctx.String(flagOrderID),
		"buyer_id":      ctx.String(flagBuyerID),
		"vendor_id":     ctx.String(flagVendorID),
		"arbiter_id":    ctx.String(flagArbiterID),
		"amount_atomic": ctx.Uint64(flagAmount),
	}
	var resp struct {
		EscrowID        string `json:"escrow_id"`
		MultisigAddress string `json:"multisig_address"`
	}
	if err := c.call(ctx.Context, "escrow.CreateEscrow", req, &resp); err != nil {
		return err
	}

	fmt.Printf("Escrow ID: %s\n", resp.EscrowID)
	if resp.MultisigAddress == "" {
		fmt.Println("Multisig setup did not complete; check escrowd logs")
		return nil
	}
	fmt.Printf("Multisig address: %s\n", resp.MultisigAddress)

	if ctx.Bool(flagQR) {
		code, err := qrcode.New(resp.MultisigAddress, qrcode.Medium)
		if err != nil {
			return err
		}
		fmt.Println(code.ToString(true))
	}
	return nil
}

func runSyncBalance(ctx *cli.Context) error {
	c := newClient(ctx.String(flagEndpoint))
	req := map[string]string{
		"escrow_id":    ctx.String(flagEscrowID),
		"requester_id": ctx.String(flagRequesterID),
	}
	var resp struct {
		BalanceAtomic         uint64 `json:"balance_atomic"`
		UnlockedBalanceAtomic uint64 `json:"unlocked_balance_atomic"`
	}
	if err := c.call(ctx.Context, "escrow.SyncAndGetBalance", req, &resp); err != nil {
		return err
	}
	fmt.Printf("Balance: %d atomic units (%d unlocked)\n", resp.BalanceAtomic, resp.UnlockedBalanceAtomic)
	return nil
}

func runSubmitChallenge(ctx *cli.Context) error {
	c := newClient(ctx.String(flagEndpoint))
	req := map[string]string{
		"escrow_id": ctx.String(flagEscrowID),
		"user_id":   ctx.String(flagUserID),
	}
	var resp struct {
		Nonce     string `json:"nonce"`
		Message   string `json:"message"`
		ExpiresAt int64  `json:"expires_at"`
	}
	if err := c.call(ctx.Context, "escrow.SubmitMultisigChallenge", req, &resp); err != nil {
		return err
	}
	fmt.Printf("Nonce: %s\nMessage: %s\nExpires at (unix): %d\n", resp.Nonce, resp.Message, resp.ExpiresAt)
	return nil
}

func runSubmitMultisigInfo(ctx *cli.Context) error {
	c := newClient(ctx.String(flagEndpoint))
	req := map[string]string{
		"escrow_id":     ctx.String(flagEscrowID),
		"user_id":       ctx.String(flagUserID),
		"multisig_info": ctx.String(flagInfo),
		"signature":     ctx.String(flagSignature),
	}
	var resp map[string]interface{}
	if err := c.call(ctx.Context, "escrow.SubmitMultisigInfo", req, &resp); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runExportDispute(ctx *cli.Context) error {
	c := newClient(ctx.String(flagEndpoint))
	req := map[string]interface{}{
		"escrow_id":  ctx.String(flagEscrowID),
		"arbiter_id": ctx.String(flagArbiterID),
		"as_qr":      ctx.Bool(flagQR),
	}
	var resp json.RawMessage
	if err := c.call(ctx.Context, "escrow.ExportDispute", req, &resp); err != nil {
		return err
	}
	fmt.Println(string(resp))
	return nil
}

func runApplyDecision(ctx *cli.Context) error {
	c := newClient(ctx.String(flagEndpoint))
	req := map[string]interface{}{
		"escrow_id":         ctx.String(flagEscrowID),
		"resolution":        ctx.String(flagResolution),
		"reason":            ctx.String(flagReason),
		"decided_at":        ctx.Int64(flagDecidedAt),
		"signed_tx_hex":     ctx.String(flagSignedTx),
		"arbiter_signature": ctx.String(flagArbiterSig),
	}
	var resp struct {
		OK        bool   `json:"ok"`
		NewStatus string `json:"new_status"`
	}
	if err := c.call(ctx.Context, "escrow.ApplyDisputeDecision", req, &resp); err != nil {
		return err
	}
	fmt.Printf("ok, new status: %s\n", resp.NewStatus)
	return nil
}
