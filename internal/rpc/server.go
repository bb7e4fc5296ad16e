package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/gorilla/mux"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
	"github.com/roach88/tastefi/internal/runtime"
)

const shutdownTimeout = 5 * time.Second

// ledgerAPI holds the methods registered in the Ledger namespace. Every
// exported method becomes an RPC method.
type ledgerAPI struct {
	rt     *runtime.Runtime
	logger *slog.Logger
}

func (a *ledgerAPI) SendTransaction(ctx context.Context, tx *ledger.Transaction) (*SendResult, error) {
	if tx == nil {
		return &SendResult{Err: ledger.NewTxError(ledger.CodeInvalidTransaction, "missing transaction")}, nil
	}
	sig, err := a.rt.Submit(ctx, tx)
	if err != nil {
		var te *ledger.TxError
		if errors.As(err, &te) {
			a.logger.Debug("transaction rejected in preflight", "signature", tx.ID().String(), "code", te.Code)
			return &SendResult{Signature: tx.ID(), Err: te}, nil
		}
		return nil, err
	}
	return &SendResult{Signature: sig}, nil
}

// GetSignatureStatus returns nil until the transaction is processed.
func (a *ledgerAPI) GetSignatureStatus(ctx context.Context, sig ledger.Signature) (*ledger.Receipt, error) {
	receipt, ok, err := a.rt.Status(ctx, sig)
	if err != nil || !ok {
		return nil, err
	}
	return receipt, nil
}

// GetAccountInfo returns nil for unknown accounts.
func (a *ledgerAPI) GetAccountInfo(ctx context.Context, pk identity.PublicKey) (*ledger.Account, error) {
	acct, err := a.rt.GetAccount(ctx, pk)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, nil
	}
	return acct, err
}

func (a *ledgerAPI) GetProgramAccounts(ctx context.Context, owner identity.PublicKey) ([]ledger.Account, error) {
	return a.rt.ProgramAccounts(ctx, owner)
}

func (a *ledgerAPI) GetSlot(ctx context.Context) (uint64, error) {
	return a.rt.Slot(), nil
}

// Server serves a runtime over HTTP.
type Server struct {
	rt     *runtime.Runtime
	router *mux.Router
	logger *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger. Default: slog.Default().
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a server for rt.
func NewServer(rt *runtime.Runtime, opts ...ServerOption) *Server {
	s := &Server{rt: rt, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	rpcServer := jsonrpc.NewServer()
	rpcServer.Register(Namespace, &ledgerAPI{rt: rt, logger: s.logger})

	s.router = mux.NewRouter()
	s.router.Handle(Path, rpcServer)
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"slot":   s.rt.Slot(),
	}); err != nil {
		s.logger.Warn("healthz write failed", "error", err)
	}
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()
	s.logger.Info("rpc listening", "addr", l.Addr().String(), "path", Path)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("rpc stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}
