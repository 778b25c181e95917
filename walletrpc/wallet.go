package walletrpc

import (
	"context"
	"strings"
	"time"

	"github.com/MarinX/monerorpc/wallet"

	"github.com/athanor-escrow/escrowd/escrowerr"
)

// Prefixes identifying which round a multisig_info/prepare_info string came
// from (spec.md §4.1 "normative" protocol description).
const (
	PrepareInfoPrefix = "MultisigxV1"
	Round1InfoPrefix  = "MultisigxV2R1"
	Round2InfoPrefix  = "MultisigxV2R2"
)

// CreateWallet creates a new wallet file on the backend.
func (c *Client) CreateWallet(ctx context.Context, filename, password string) error {
	return c.withCall(ctx, DefaultTimeout, "create_wallet", func() error {
		return c.wallet.CreateWallet(&wallet.CreateWalletRequest{
			Filename: filename,
			Password: password,
			Language: "English",
		})
	})
}

// OpenWallet opens an existing wallet file on the backend.
func (c *Client) OpenWallet(ctx context.Context, filename, password string) error {
	return c.withCall(ctx, DefaultTimeout, "open_wallet", func() error {
		return c.wallet.OpenWallet(&wallet.OpenWalletRequest{
			Filename: filename,
			Password: password,
		})
	})
}

// CloseWallet closes whatever wallet is currently open on the backend.
func (c *Client) CloseWallet(ctx context.Context) error {
	return c.withCall(ctx, DefaultTimeout, "close_wallet", func() error {
		return c.wallet.CloseWallet()
	})
}

// SetAttribute sets a persistent wallet attribute, used to flip on
// enable-multisig-experimental (spec.md §4.1 "Pre-requisite").
func (c *Client) SetAttribute(ctx context.Context, key, value string) error {
	return c.withCall(ctx, DefaultTimeout, "set_attribute", func() error {
		return c.wallet.SetAttribute(&wallet.SetAttributeRequest{Key: key, Value: value})
	})
}

// GetAttribute reads back a previously-set wallet attribute.
func (c *Client) GetAttribute(ctx context.Context, key string) (string, error) {
	var value string
	err := c.withCall(ctx, DefaultTimeout, "get_attribute", func() error {
		resp, err := c.wallet.GetAttribute(&wallet.GetAttributeRequest{Key: key})
		if err != nil {
			return err
		}
		value = resp.Value
		return nil
	})
	return value, err
}

// GetVersion is the lightweight health-check RPC of spec.md §4.2.
func (c *Client) GetVersion(ctx context.Context) (uint64, error) {
	var version uint64
	err := c.withCall(ctx, 1*time.Second, "get_version", func() error {
		resp, err := c.wallet.GetVersion()
		if err != nil {
			return err
		}
		version = resp.Version
		return nil
	})
	return version, err
}

// PrepareMultisig performs round 0 of the multisig protocol (spec.md §4.1
// step 1), returning the wallet's prepare_info string.
func (c *Client) PrepareMultisig(ctx context.Context) (string, error) {
	var info string
	err := c.withCall(ctx, DefaultTimeout, "prepare_multisig", func() error {
		resp, err := c.wallet.PrepareMultisig()
		if err != nil {
			return err
		}
		info = resp.MultisigInfo
		return nil
	})
	return info, err
}

// MakeMultisigResult is the output of round 1.
type MakeMultisigResult struct {
	Address      string
	MultisigInfo string
}

// MakeMultisig performs round 1 (spec.md §4.1 step 2). threshold is pinned
// to 2 and exactly two otherInfos are required (spec.md §4.3).
func (c *Client) MakeMultisig(ctx context.Context, otherInfos [2]string, password string) (*MakeMultisigResult, error) {
	if err := validateOtherInfos(otherInfos); err != nil {
		return nil, err
	}

	var result MakeMultisigResult
	err := c.withCall(ctx, DefaultTimeout, "make_multisig", func() error {
		resp, err := c.wallet.MakeMultisig(&wallet.MakeMultisigRequest{
			MultisigInfo: otherInfos[:],
			Threshold:    2,
			Password:     password,
		})
		if err != nil {
			return err
		}
		result = MakeMultisigResult{Address: resp.Address, MultisigInfo: resp.MultisigInfo}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ExchangeMultisigKeys performs round 2 (spec.md §4.1 step 3). Inputs MUST
// be round-1 outputs, enforced here by prefix-checking at the RPC boundary
// (spec.md §4.1.3).
func (c *Client) ExchangeMultisigKeys(ctx context.Context, otherRound1Infos [2]string, password string) (*MakeMultisigResult, error) {
	if err := validateOtherInfos(otherRound1Infos); err != nil {
		return nil, err
	}
	for _, info := range otherRound1Infos {
		if !strings.HasPrefix(info, Round1InfoPrefix) {
			return nil, escrowerr.New(
				escrowerr.KindProtocolError,
				"exchange_multisig_keys input does not carry the round-1 prefix %q",
				Round1InfoPrefix,
			)
		}
	}

	var result MakeMultisigResult
	err := c.withCall(ctx, DefaultTimeout, "exchange_multisig_keys", func() error {
		resp, err := c.wallet.ExchangeMultisigKeys(&wallet.ExchangeMultisigKeysRequest{
			MultisigInfo: otherRound1Infos[:],
			Password:     password,
		})
		if err != nil {
			return err
		}
		result = MakeMultisigResult{Address: resp.Address, MultisigInfo: resp.MultisigInfo}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ExportMultisigInfo exports this wallet's view of unseen outputs, the first
// half of the cross-import cycle of spec.md §4.5.
func (c *Client) ExportMultisigInfo(ctx context.Context) (string, error) {
	var info string
	err := c.withCall(ctx, DefaultTimeout, "export_multisig_info", func() error {
		resp, err := c.wallet.ExportMultisigInfo()
		if err != nil {
			return err
		}
		info = resp.Info
		return nil
	})
	return info, err
}

// ImportMultisigInfo imports the other two wallets' exports (spec.md §4.5
// step 3), returning the number of outputs now visible.
func (c *Client) ImportMultisigInfo(ctx context.Context, otherInfos [2]string) (uint64, error) {
	if err := validateOtherInfos(otherInfos); err != nil {
		return 0, err
	}

	var nOutputs uint64
	err := c.withCall(ctx, ImportTimeout, "import_multisig_info", func() error {
		resp, err := c.wallet.ImportMultisigInfo(&wallet.ImportMultisigInfoRequest{Info: otherInfos[:]})
		if err != nil {
			return err
		}
		nOutputs = resp.NOutputs
		return nil
	})
	return nOutputs, err
}

// Balance mirrors spec.md §4.3's get_balance result.
type Balance struct {
	Balance         uint64
	UnlockedBalance uint64
}

// GetBalance reads the wallet's current balance (spec.md §4.5 step 4).
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var bal Balance
	err := c.withCall(ctx, DefaultTimeout, "get_balance", func() error {
		resp, err := c.wallet.GetBalance(&wallet.GetBalanceRequest{AccountIndex: 0})
		if err != nil {
			return err
		}
		bal = Balance{Balance: resp.Balance, UnlockedBalance: resp.UnlockedBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

// Destination is one output of a multisig transfer.
type Destination struct {
	Address string
	Amount  uint64
}

// TransferMultisig constructs an unsigned multisig transaction set
// (spec.md §4.3 transfer_multisig).
func (c *Client) TransferMultisig(ctx context.Context, destinations []Destination) (string, error) {
	dests := make([]wallet.Destination, len(destinations))
	for i, d := range destinations {
		dests[i] = wallet.Destination{Address: d.Address, Amount: d.Amount}
	}

	var txset string
	err := c.withCall(ctx, DefaultTimeout, "transfer_multisig", func() error {
		resp, err := c.wallet.Transfer(&wallet.TransferRequest{
			Destinations: dests,
			AccountIndex: 0,
		})
		if err != nil {
			return err
		}
		txset = resp.MultisigTxset
		return nil
	})
	return txset, err
}

// SignMultisigResult is the output of sign_multisig.
type SignMultisigResult struct {
	TxDataHex  string
	TxHashList []string
}

// SignMultisig signs a partially-signed multisig transaction (spec.md §4.3,
// used both by arbiter_sign and by the other co-signer in normal
// settlement).
func (c *Client) SignMultisig(ctx context.Context, txDataHex string) (*SignMultisigResult, error) {
	var result SignMultisigResult
	err := c.withCall(ctx, DefaultTimeout, "sign_multisig", func() error {
		resp, err := c.wallet.SignMultisig(&wallet.SignMultisigRequest{TxDataHex: txDataHex})
		if err != nil {
			return err
		}
		result = SignMultisigResult{TxDataHex: resp.TxDataHex, TxHashList: resp.TxHashList}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitMultisig broadcasts a fully-signed multisig transaction (spec.md
// §4.3 submit_multisig).
func (c *Client) SubmitMultisig(ctx context.Context, txDataHex string) ([]string, error) {
	var hashes []string
	err := c.withCall(ctx, DefaultTimeout, "submit_multisig", func() error {
		resp, err := c.wallet.SubmitMultisig(&wallet.SubmitMultisigRequest{TxDataHex: txDataHex})
		if err != nil {
			return err
		}
		hashes = resp.TxHashList
		return nil
	})
	return hashes, err
}

// validateOtherInfos enforces spec.md §4.3's "exactly two non-empty ASCII
// entries" rule for make_multisig/exchange_multisig_keys/import_multisig_info.
func validateOtherInfos(infos [2]string) error {
	for i, info := range infos {
		if info == "" {
			return escrowerr.New(escrowerr.KindValidation, "other_info[%d] must not be empty", i)
		}
		for _, r := range info {
			if r > 127 {
				return escrowerr.New(escrowerr.KindValidation, "other_info[%d] must be ASCII", i)
			}
		}
	}
	return nil
}
