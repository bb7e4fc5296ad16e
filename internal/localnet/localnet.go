// Package localnet boots an in-process ledger: a sqlite store, the
// single-writer runtime, and the dashboard program.
package localnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/tastefi/internal/dashboard"
	"github.com/roach88/tastefi/internal/idl"
	"github.com/roach88/tastefi/internal/runtime"
	"github.com/roach88/tastefi/internal/store"
)

// Config configures a Node.
type Config struct {
	// DBPath is the sqlite path. Empty means an in-memory store.
	DBPath string

	// Programs are deployed with the dashboard handlers. Empty means the
	// embedded restaurant_dashboard program.
	Programs []*idl.Program

	Logger *slog.Logger
}

// Node is a running localnet.
type Node struct {
	store    *store.Store
	rt       *runtime.Runtime
	programs []*idl.Program
	cancel   context.CancelFunc
	done     chan error
}

// Start opens the store, deploys the programs, and starts the runtime loop.
// The loop runs until Close.
func Start(ctx context.Context, cfg Config) (*Node, error) {
	path := cfg.DBPath
	if path == "" {
		path = store.MemoryPath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	programs := cfg.Programs
	if len(programs) == 0 {
		p, err := idl.Default()
		if err != nil {
			return nil, err
		}
		programs = []*idl.Program{p}
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}

	rt, err := runtime.New(ctx, st, runtime.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, err
	}
	for _, spec := range programs {
		p, err := dashboard.NewProgram(spec)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("deploy %s: %w", spec.Name, err)
		}
		if err := rt.Register(p); err != nil {
			st.Close()
			return nil, fmt.Errorf("deploy %s: %w", spec.Name, err)
		}
		logger.Debug("program deployed", "program", spec.Name, "id", spec.ID.String())
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n := &Node{
		store:    st,
		rt:       rt,
		programs: programs,
		cancel:   cancel,
		done:     make(chan error, 1),
	}
	go func() { n.done <- rt.Run(runCtx) }()

	logger.Info("localnet started", "db", path, "slot", rt.Slot())
	return n, nil
}

// Client returns a ledger client for the node.
func (n *Node) Client() *runtime.LocalClient {
	return n.rt.Client()
}

// Runtime returns the node's runtime.
func (n *Node) Runtime() *runtime.Runtime {
	return n.rt
}

// Programs returns the deployed program definitions.
func (n *Node) Programs() []*idl.Program {
	return n.programs
}

// Program returns the deployed program with the given name.
func (n *Node) Program(name string) (*idl.Program, bool) {
	for _, p := range n.programs {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Close drains queued transactions, stops the loop, and closes the store.
func (n *Node) Close() error {
	n.rt.Stop()
	runErr := <-n.done
	n.cancel()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, n.store.Close())
}
