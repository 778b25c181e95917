// Package walletrpctest provides an in-memory fake of walletrpc.WalletClient
// for use from other packages' tests (pool, multisig, lazysync), the same
// role the teacher's hand-rolled mockNet in instance_test.go plays for the
// network interface.
package walletrpctest

import (
	"context"
	"fmt"
	"sync"

	"github.com/athanor-escrow/escrowd/escrowerr"
	"github.com/athanor-escrow/escrowd/walletrpc"
)

// Fake is an in-memory stand-in for one wallet-rpc backend, enough to drive
// the full multisig protocol and balance sync without a real monero-wallet-rpc
// process.
type Fake struct {
	mu sync.Mutex

	URLValue string

	Opened     bool
	OpenedFile string
	Attributes map[string]string

	Address  string
	Balance  walletrpc.Balance
	Unhealthy bool

	round1Calls int
	round2Calls int

	// ExportedInfo is what ExportMultisigInfo returns for this fake.
	ExportedInfo string
	// ImportResult is what ImportMultisigInfo returns.
	ImportResult uint64

	SignResult   *walletrpc.SignMultisigResult
	SubmitHashes []string
	TransferTxset string
}

// New returns a Fake bound to the given backend URL.
func New(url string) *Fake {
	return &Fake{URLValue: url, Attributes: map[string]string{}}
}

func (f *Fake) URL() string { return f.URLValue }

func (f *Fake) CreateWallet(_ context.Context, filename, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Opened = true
	f.OpenedFile = filename
	return nil
}

func (f *Fake) OpenWallet(_ context.Context, filename, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Opened = true
	f.OpenedFile = filename
	return nil
}

func (f *Fake) CloseWallet(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Opened = false
	f.OpenedFile = ""
	return nil
}

func (f *Fake) SetAttribute(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Attributes[key] = value
	return nil
}

func (f *Fake) GetAttribute(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Attributes[key], nil
}

func (f *Fake) GetVersion(_ context.Context) (uint64, error) {
	if f.Unhealthy {
		return 0, escrowerr.New(escrowerr.KindBackendUnreachable, "fake backend %s is unhealthy", f.URLValue)
	}
	return 1, nil
}

func (f *Fake) PrepareMultisig(_ context.Context) (string, error) {
	return fmt.Sprintf("%s%s_prepare", walletrpc.PrepareInfoPrefix, f.URLValue), nil
}

func (f *Fake) MakeMultisig(_ context.Context, otherInfos [2]string, _ string) (*walletrpc.MakeMultisigResult, error) {
	f.mu.Lock()
	f.round1Calls++
	f.mu.Unlock()

	if f.Address == "" {
		f.Address = "5FakeSharedMultisigAddress"
	}
	return &walletrpc.MakeMultisigResult{
		Address:      f.Address,
		MultisigInfo: fmt.Sprintf("%s%s_r1", walletrpc.Round1InfoPrefix, f.URLValue),
	}, nil
}

func (f *Fake) ExchangeMultisigKeys(_ context.Context, otherRound1Infos [2]string, _ string) (*walletrpc.MakeMultisigResult, error) {
	f.mu.Lock()
	f.round2Calls++
	f.mu.Unlock()

	return &walletrpc.MakeMultisigResult{
		Address:      f.Address,
		MultisigInfo: fmt.Sprintf("%s%s_r2", walletrpc.Round2InfoPrefix, f.URLValue),
	}, nil
}

func (f *Fake) ExportMultisigInfo(_ context.Context) (string, error) {
	if f.ExportedInfo != "" {
		return f.ExportedInfo, nil
	}
	return fmt.Sprintf("export_%s", f.URLValue), nil
}

func (f *Fake) ImportMultisigInfo(_ context.Context, _ [2]string) (uint64, error) {
	return f.ImportResult, nil
}

func (f *Fake) GetBalance(_ context.Context) (*walletrpc.Balance, error) {
	b := f.Balance
	return &b, nil
}

func (f *Fake) TransferMultisig(_ context.Context, _ []walletrpc.Destination) (string, error) {
	return f.TransferTxset, nil
}

func (f *Fake) SignMultisig(_ context.Context, txDataHex string) (*walletrpc.SignMultisigResult, error) {
	if f.SignResult != nil {
		return f.SignResult, nil
	}
	return &walletrpc.SignMultisigResult{TxDataHex: txDataHex + "_signed"}, nil
}

func (f *Fake) SubmitMultisig(_ context.Context, _ string) ([]string, error) {
	return f.SubmitHashes, nil
}

var _ walletrpc.WalletClient = (*Fake)(nil)
