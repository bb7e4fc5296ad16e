package harness

import (
	"errors"
	"log/slog"

	"github.com/roach88/tastefi/internal/dashboard"
	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/idl"
	"github.com/roach88/tastefi/internal/ledger"
)

// Env is everything a verification needs. It is passed explicitly; the
// harness keeps no process-wide state.
type Env struct {
	// Client reaches the ledger runtime.
	Client ledger.Client

	// Caller pays for writes, co-signs them, and must end up as the
	// record owner.
	Caller *identity.Identity

	// Generator supplies the fresh identity that keys each new record.
	Generator identity.Generator

	// Program is the dashboard program definition to call.
	Program *idl.Program

	// Logger receives step logs. Nil means slog.Default().
	Logger *slog.Logger
}

func (e *Env) validate() error {
	var errs []error
	if e == nil {
		return errors.New("env is nil")
	}
	if e.Client == nil {
		errs = append(errs, errors.New("env: client is required"))
	}
	if e.Caller == nil {
		errs = append(errs, errors.New("env: caller is required"))
	}
	if e.Generator == nil {
		errs = append(errs, errors.New("env: identity generator is required"))
	}
	if e.Program == nil {
		errs = append(errs, errors.New("env: program is required"))
	}
	return errors.Join(errs...)
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Env) dashboard() *dashboard.Client {
	return dashboard.NewClient(e.Client, e.Program)
}
