// Package rpc provides the HTTP JSON-RPC server that fronts the
// orchestrator's downstream operations (spec.md §6.2), in the teacher's
// gorilla/mux + gorilla/rpc/v2 + gorilla/handlers style
// (rpc/server.go in the teacher repo).
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	gorillarpc "github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	logging "github.com/ipfs/go-log"

	"github.com/athanor-escrow/escrowd/orchestrator"
)

var log = logging.Logger("rpc")

// EscrowNamespace is the JSON-RPC method prefix for the escrow service,
// e.g. "escrow.CreateEscrow".
const EscrowNamespace = "escrow"

// Server is the HTTP server fronting the orchestrator.
type Server struct {
	ctx        context.Context
	listener   net.Listener
	httpServer *http.Server
}

// Config configures NewServer.
type Config struct {
	Ctx          context.Context
	Address      string
	Orchestrator *orchestrator.Orchestrator

	// Hub, if non-nil, is mounted at /ws to stream escrow lifecycle events
	// (see ws.go). Optional: a nil Hub simply omits the route.
	Hub *Hub
}

// NewServer constructs (but does not start) the JSON-RPC server, registering
// the escrow service under EscrowNamespace.
func NewServer(cfg *Config) (*Server, error) {
	rpcServer := gorillarpc.NewServer()
	rpcServer.RegisterCodec(json2.NewCodec(), "application/json")

	serverCtx, serverCancel := context.WithCancel(cfg.Ctx)

	if err := rpcServer.RegisterService(NewEscrowService(cfg.Orchestrator), EscrowNamespace); err != nil {
		serverCancel()
		return nil, fmt.Errorf("rpc: failed to register escrow service: %w", err)
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(serverCtx, "tcp", cfg.Address)
	if err != nil {
		serverCancel()
		return nil, fmt.Errorf("rpc: failed to listen on %s: %w", cfg.Address, err)
	}

	r := mux.NewRouter()
	r.Handle("/", rpcServer)
	if cfg.Hub != nil {
		r.Handle("/ws", cfg.Hub)
	}

	headersOk := handlers.AllowedHeaders([]string{"content-type"})
	methodsOk := handlers.AllowedMethods([]string{"POST", "OPTIONS"})
	originsOk := handlers.AllowedOrigins([]string{"*"})

	httpServer := &http.Server{
		Addr:              ln.Addr().String(),
		ReadHeaderTimeout: time.Second,
		Handler:           handlers.CORS(headersOk, methodsOk, originsOk)(r),
		BaseContext: func(net.Listener) context.Context {
			return serverCtx
		},
	}

	return &Server{ctx: serverCtx, listener: ln, httpServer: httpServer}, nil
}

// HTTPURL returns the base URL clients should POST JSON-RPC requests to.
func (s *Server) HTTPURL() string {
	return fmt.Sprintf("http://%s", s.httpServer.Addr)
}

// Start serves requests until the server's context is cancelled or Stop is
// called. Mirrors the teacher's graceful/immediate shutdown split.
func (s *Server) Start() error {
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}

	log.Infof("starting JSON-RPC server on %s", s.HTTPURL())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-s.ctx.Done():
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			log.Warnf("rpc: shutdown error: %s", err)
		}
		return s.ctx.Err()
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("rpc: server failed: %s", err)
		} else {
			log.Info("rpc: server shut down")
		}
		return err
	}
}

// Stop gracefully shuts the server down, servicing in-flight requests.
func (s *Server) Stop() error {
	return s.httpServer.Shutdown(context.Background())
}
