package walletrpc

import "context"

// WalletClient is the subset of *Client the rest of the orchestrator
// depends on. Extracting it as an interface lets the pool and multisig
// coordinator packages be tested against a fake backend instead of a real
// monero-wallet-rpc process, the way the teacher's `backend.Backend` and
// `swap.Manager` are consumed as interfaces rather than concrete structs.
type WalletClient interface {
	URL() string

	CreateWallet(ctx context.Context, filename, password string) error
	OpenWallet(ctx context.Context, filename, password string) error
	CloseWallet(ctx context.Context) error

	SetAttribute(ctx context.Context, key, value string) error
	GetAttribute(ctx context.Context, key string) (string, error)
	GetVersion(ctx context.Context) (uint64, error)

	PrepareMultisig(ctx context.Context) (string, error)
	MakeMultisig(ctx context.Context, otherInfos [2]string, password string) (*MakeMultisigResult, error)
	ExchangeMultisigKeys(ctx context.Context, otherRound1Infos [2]string, password string) (*MakeMultisigResult, error)
	ExportMultisigInfo(ctx context.Context) (string, error)
	ImportMultisigInfo(ctx context.Context, otherInfos [2]string) (uint64, error)

	GetBalance(ctx context.Context) (*Balance, error)
	TransferMultisig(ctx context.Context, destinations []Destination) (string, error)
	SignMultisig(ctx context.Context, txDataHex string) (*SignMultisigResult, error)
	SubmitMultisig(ctx context.Context, txDataHex string) ([]string, error)
}

var _ WalletClient = (*Client)(nil)
