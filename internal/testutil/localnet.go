package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/tastefi/internal/idl"
	"github.com/roach88/tastefi/internal/localnet"
)

// QuietLogger discards all records.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// StartLocalnet starts an in-memory localnet running the given programs
// (the embedded dashboard program when none are given) and closes it when
// the test ends.
func StartLocalnet(t testing.TB, programs ...*idl.Program) *localnet.Node {
	t.Helper()
	node, err := localnet.Start(context.Background(), localnet.Config{
		Programs: programs,
		Logger:   QuietLogger(),
	})
	if err != nil {
		t.Fatalf("start localnet: %v", err)
	}
	t.Cleanup(func() {
		if err := node.Close(); err != nil {
			t.Errorf("close localnet: %v", err)
		}
	})
	return node
}

// DefaultProgram returns the embedded dashboard program definition.
func DefaultProgram(t testing.TB) *idl.Program {
	t.Helper()
	p, err := idl.Default()
	if err != nil {
		t.Fatalf("load default program: %v", err)
	}
	return p
}
