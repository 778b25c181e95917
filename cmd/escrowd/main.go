// Package main provides the entrypoint of escrowd, the Monero multisig
// escrow orchestrator daemon, in the style of the teacher's swapd.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cockroachdb/apd/v3"
	"github.com/fatih/color"
	logging "github.com/ipfs/go-log"
	"github.com/urfave/cli/v2"

	"github.com/athanor-escrow/escrowd/config"
	"github.com/athanor-escrow/escrowd/dispute"
	"github.com/athanor-escrow/escrowd/lazysync"
	"github.com/athanor-escrow/escrowd/monitor"
	"github.com/athanor-escrow/escrowd/multisig"
	"github.com/athanor-escrow/escrowd/orchestrator"
	"github.com/athanor-escrow/escrowd/pool"
	"github.com/athanor-escrow/escrowd/rpc"
	"github.com/athanor-escrow/escrowd/store"
	"github.com/athanor-escrow/escrowd/walletrpc"
)

const flagConfig = "config"

var log = logging.Logger("escrowd")

func main() {
	if err := cliApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

func cliApp() *cli.App {
	return &cli.App{
		Name:  "escrowd",
		Usage: "Non-custodial Monero multisig escrow orchestrator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "path to an optional config file layered under ESCROWD_ env vars",
				EnvVars: []string{"ESCROWD_CONFIG_FILE"},
			},
		},
		Action: runDaemon,
	}
}

func runDaemon(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(flagConfig))
	if err != nil {
		return err
	}

	serverKey, err := loadOrGenerateServerKey(cfg.DataDir, cfg.InMemory)
	if err != nil {
		return err
	}

	db, err := store.OpenBadgerDB(filepath.Join(cfg.DataDir, "escrowdb"), cfg.InMemory)
	if err != nil {
		return fmt.Errorf("escrowd: failed to open database: %w", err)
	}
	defer db.Close()

	st, err := store.New(db, cfg.EncryptionKey)
	if err != nil {
		return err
	}

	p, err := pool.NewManager(cfg.BackendURLs, func(url string) (walletrpc.WalletClient, error) {
		return walletrpc.New(url)
	})
	if err != nil {
		return err
	}

	coordinator := multisig.New(st, p)
	syncEngine := lazysync.New(st, p)
	bridge := dispute.New(st, serverKey, cfg.ArbiterPubKey, nil)

	orc := orchestrator.New(st, coordinator, syncEngine, bridge, cfg.Timeouts.MultisigSetup)

	hub := rpc.NewHub()
	mon := monitor.New(st, rpc.NotifierWithHub(hub, orchestrator.Notifier()), cfg.Timeouts)

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mon.Start(runCtx)
	defer mon.Stop()

	server, err := rpc.NewServer(&rpc.Config{Ctx: runCtx, Address: cfg.ListenAddr, Orchestrator: orc, Hub: hub})
	if err != nil {
		return err
	}

	printBanner(cfg)

	err = server.Start()
	if runCtx.Err() != nil {
		log.Info("escrowd shutting down")
		return nil
	}
	return err
}

// printBanner announces the listen address and the number of wired RPC
// backends, echoing the teacher's colored completion banners
// (protocol/xmrmaker/swap_state.go) at startup instead of swap completion.
func printBanner(cfg *config.Config) {
	backends := apd.New(int64(len(cfg.BackendURLs)), 0)
	banner := color.New(color.Bold).Sprintf(
		"escrowd listening on %s (%s wallet-RPC backends, %d per role)",
		cfg.ListenAddr, backends.String(), len(cfg.BackendURLs)/3,
	)
	fmt.Println(banner)
}

// serverKeyFile is the filename, relative to DataDir, that persists the
// process's Ed25519 dispute-bundle signing key across restarts (spec.md
// §4.6 "sign bundle with a server-held Ed25519 key").
const serverKeyFile = "server_signing.key"

func loadOrGenerateServerKey(dataDir string, inMemory bool) (ed25519.PrivateKey, error) {
	if inMemory {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		return priv, err
	}

	path := filepath.Join(dataDir, serverKeyFile)
	if raw, err := os.ReadFile(path); err == nil {
		key, err := hex.DecodeString(string(raw))
		if err != nil || len(key) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("escrowd: %s is corrupt", path)
		}
		return ed25519.PrivateKey(key), nil
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("escrowd: failed to create data dir %s: %w", dataDir, err)
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("escrowd: failed to generate server signing key: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
		return nil, fmt.Errorf("escrowd: failed to persist server signing key: %w", err)
	}
	return priv, nil
}
