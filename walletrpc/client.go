// Package walletrpc provides a typed, failure-modeled wrapper over one
// Monero wallet-RPC backend's JSON-RPC 2.0 endpoint (spec.md §4.3). One
// Client is constructed per backend URL; all of its calls are serialized,
// because the remote wallet-RPC process can only ever have one wallet open
// at a time.
//
// The underlying transport is github.com/MarinX/monerorpc, the same Monero
// JSON-RPC client the teacher repo imports directly in rpc/server.go
// (`wallet.GetBalanceResponse`).
package walletrpc

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/MarinX/monerorpc"
	"github.com/MarinX/monerorpc/wallet"
	logging "github.com/ipfs/go-log"

	"github.com/athanor-escrow/escrowd/escrowerr"
)

var log = logging.Logger("walletrpc")

// DefaultTimeout is the default per-call deadline of spec.md §4.3.
const DefaultTimeout = 30 * time.Second

// ImportTimeout is the larger deadline import_multisig_info gets, since it
// can exceed the default (spec.md §4.3).
const ImportTimeout = 90 * time.Second

// MaxConcurrentCalls bounds the permit pool guarding against pathological
// caller behavior (spec.md §4.2 "default 5"); actual ordering is still
// enforced by the per-backend mutex below.
const MaxConcurrentCalls = 5

// Client wraps one wallet-RPC backend. All exported methods serialize
// through callMu so that JSON-RPC calls to this backend happen strictly one
// at a time, matching the happens-before requirement of spec.md §5.
type Client struct {
	url    string
	wallet wallet.Wallet

	callMu  sync.Mutex
	permits chan struct{}
}

// isLoopbackHost reports whether host is 127.0.0.1, ::1, or localhost,
// per spec.md §4.2's "Loopback enforcement".
func isLoopbackHost(host string) bool {
	switch host {
	case "127.0.0.1", "::1", "localhost":
		return true
	default:
		return false
	}
}

// New constructs a Client for the given wallet-RPC URL, refusing any URL
// whose host is not loopback (spec.md §4.2/§8).
func New(rawURL string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, escrowerr.Wrap(escrowerr.KindValidation, err, "invalid wallet-rpc url %q", rawURL)
	}

	host := u.Hostname()
	if !isLoopbackHost(host) {
		return nil, escrowerr.New(
			escrowerr.KindValidation,
			"wallet-rpc url %q must resolve to a loopback address, got host %q",
			rawURL, host,
		)
	}

	mrpc := monerorpc.New(rawURL, nil)

	permits := make(chan struct{}, MaxConcurrentCalls)
	for i := 0; i < MaxConcurrentCalls; i++ {
		permits <- struct{}{}
	}

	return &Client{
		url:     rawURL,
		wallet:  mrpc.Wallet,
		permits: permits,
	}, nil
}

// URL returns the backend URL this client talks to.
func (c *Client) URL() string {
	return c.url
}

// withCall serializes fn behind the per-backend mutex and bounds total
// in-flight permits, mapping a context deadline into a BackendTimeout error
// and any other failure into the appropriate escrowerr.Kind.
func (c *Client) withCall(ctx context.Context, timeout time.Duration, name string, fn func() error) error {
	select {
	case <-c.permits:
	case <-ctx.Done():
		return escrowerr.Wrap(escrowerr.KindBackendTimeout, ctx.Err(), "%s: waiting for call permit", name)
	}
	defer func() { c.permits <- struct{}{} }()

	c.callMu.Lock()
	defer c.callMu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()

	select {
	case <-callCtx.Done():
		log.Warnf("%s: call to %s timed out after %s", name, c.url, timeout)
		return escrowerr.Wrap(escrowerr.KindBackendTimeout, callCtx.Err(), "%s timed out", name)
	case err := <-errCh:
		if err != nil {
			return classifyError(name, err)
		}
		return nil
	}
}

// classifyError maps a raw transport/RPC error into the failure model of
// spec.md §4.3: an error reported by wallet-rpc becomes RpcError and any
// other failure becomes Unreachable. Timeouts are mapped by withCall.
func classifyError(name string, err error) error {
	if rpcErr, ok := err.(*monerorpc.RPCError); ok {
		return &escrowerr.Error{
			Kind:    escrowerr.KindRPCError,
			Message: fmt.Sprintf("%s: wallet-rpc reported an error", name),
			Cause:   err,
			RPCCode: rpcErr.Code,
		}
	}
	return escrowerr.Wrap(escrowerr.KindBackendUnreachable, err, "%s: failed to reach wallet-rpc", name)
}
