package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
	"github.com/roach88/tastefi/internal/store"
)

// ErrStopped is returned by Submit after Stop or after Run has exited.
var ErrStopped = errors.New("runtime stopped")

// Runtime is the single-writer localnet executor.
//
// Thread-safety model:
//   - Submit(), Await(), Status(), GetAccount(): safe from any goroutine
//   - Register(): safe from any goroutine; programs apply to transactions
//     processed after registration
//   - Run(): must be called from exactly one goroutine
type Runtime struct {
	store  *store.Store
	clock  *Clock
	queue  *txQueue
	logger *slog.Logger

	mu       sync.Mutex
	programs map[identity.PublicKey]Program
	pending  map[ledger.Signature]bool
	waiters  map[ledger.Signature][]chan error
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a runtime over st. The slot clock resumes after the latest
// slot already in the store.
func New(ctx context.Context, st *store.Store, opts ...Option) (*Runtime, error) {
	latest, err := st.LatestSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("new runtime: %w", err)
	}

	r := &Runtime{
		store:    st,
		clock:    NewClockAt(latest),
		queue:    newTxQueue(),
		logger:   slog.Default(),
		programs: make(map[identity.PublicKey]Program),
		pending:  make(map[ledger.Signature]bool),
		waiters:  make(map[ledger.Signature][]chan error),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Register deploys p at p.ID().
func (r *Runtime) Register(p Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
	if id == identity.SystemProgramID {
		return fmt.Errorf("register program: %s is reserved for the system program", id)
	}
	if _, exists := r.programs[id]; exists {
		return fmt.Errorf("register program: %s already registered", id)
	}
	r.programs[id] = p
	return nil
}

func (r *Runtime) program(id identity.PublicKey) (Program, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.programs[id]
	return p, ok
}

// Submit runs preflight checks and queues tx for execution. It returns the
// transaction signature to pass to Await.
//
// Preflight rejections (*ledger.TxError) are not recorded in the store.
func (r *Runtime) Submit(ctx context.Context, tx *ledger.Transaction) (ledger.Signature, error) {
	if err := tx.VerifySignatures(); err != nil {
		return ledger.Signature{}, err
	}
	sig := tx.ID()

	r.mu.Lock()
	if r.pending[sig] {
		r.mu.Unlock()
		return sig, ledger.NewTxError(ledger.CodeAlreadyProcessed, "transaction %s is already queued", sig)
	}
	r.pending[sig] = true
	r.mu.Unlock()

	done, err := r.store.HasTransaction(ctx, sig)
	if err == nil && done {
		err = ledger.NewTxError(ledger.CodeAlreadyProcessed, "transaction %s was already processed", sig)
	}
	if err == nil && !r.queue.Enqueue(tx) {
		err = ErrStopped
	}
	if err != nil {
		r.mu.Lock()
		delete(r.pending, sig)
		r.mu.Unlock()
		return sig, err
	}

	r.logger.Debug("transaction queued", "signature", sig, "fee_payer", tx.Message.FeePayer)
	return sig, nil
}

// Await blocks until sig has been processed and returns its receipt. A
// receipt carrying a rejection is returned with a nil error; callers
// inspect Receipt.Err.
func (r *Runtime) Await(ctx context.Context, sig ledger.Signature) (*ledger.Receipt, error) {
	ch := make(chan error, 1)
	r.mu.Lock()
	r.waiters[sig] = append(r.waiters[sig], ch)
	r.mu.Unlock()
	defer r.removeWaiter(sig, ch)

	// Registered before this lookup, so a commit between the lookup and the
	// select below still signals ch.
	if receipt, found, err := r.Status(ctx, sig); err != nil || found {
		return receipt, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-ch:
		if err != nil {
			return nil, err
		}
	}

	receipt, found, err := r.Status(ctx, sig)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("await %s: processed but not recorded", sig)
	}
	return receipt, nil
}

func (r *Runtime) removeWaiter(sig ledger.Signature, ch chan error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.waiters[sig]
	for i, c := range list {
		if c == ch {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.waiters, sig)
	} else {
		r.waiters[sig] = list
	}
}

// notify releases every waiter for sig with err.
func (r *Runtime) notify(sig ledger.Signature, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pending, sig)
	for _, ch := range r.waiters[sig] {
		select {
		case ch <- err:
		default:
		}
	}
}

// Status returns the receipt for sig if it has been processed.
func (r *Runtime) Status(ctx context.Context, sig ledger.Signature) (*ledger.Receipt, bool, error) {
	rec, err := r.store.GetTransaction(ctx, sig)
	if errors.Is(err, store.ErrTransactionNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec.Receipt(), true, nil
}

// GetAccount reads committed account state.
func (r *Runtime) GetAccount(ctx context.Context, pk identity.PublicKey) (*ledger.Account, error) {
	return r.store.GetAccount(ctx, pk)
}

// ProgramAccounts lists committed accounts owned by program.
func (r *Runtime) ProgramAccounts(ctx context.Context, program identity.PublicKey) ([]ledger.Account, error) {
	return r.store.ListAccountsByOwner(ctx, program)
}

// Slot returns the last processed slot.
func (r *Runtime) Slot() uint64 {
	return r.clock.Current()
}

// Run starts the single-writer transaction loop.
// Blocks until context is cancelled or Stop() is called; queued
// transactions are drained before a Stop takes effect.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// A store failure for one transaction is logged and reported to its
// waiters; processing continues with the next transaction.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("runtime starting", "slot", r.clock.Current())

	for {
		if tx, ok := r.queue.TryDequeue(); ok {
			r.process(ctx, tx)
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Info("runtime stopping: context cancelled")
			r.queue.Close()
			r.releaseAll(ErrStopped)
			return ctx.Err()

		case <-r.queue.Wait():
			// The signal channel closes when the queue is closed, so this
			// fires immediately once Stop() has been called.
			if r.queue.Len() == 0 && r.queue.Closed() {
				r.logger.Info("runtime stopping: queue closed")
				r.releaseAll(ErrStopped)
				return nil
			}
		}
	}
}

// releaseAll wakes waiters whose transactions will never be processed.
func (r *Runtime) releaseAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sig := range r.pending {
		for _, ch := range r.waiters[sig] {
			select {
			case ch <- err:
			default:
			}
		}
	}
	r.pending = make(map[ledger.Signature]bool)
}

// Stop closes the queue. Run returns once queued transactions are
// processed.
func (r *Runtime) Stop() {
	r.queue.Close()
}

// process executes and commits one transaction.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (r *Runtime) process(ctx context.Context, tx *ledger.Transaction) {
	sig := tx.ID()
	slot := r.clock.Next()

	writes, txErr := r.execute(ctx, tx, slot)
	rec := store.TransactionRecord{
		Signature: sig,
		Slot:      slot,
		FeePayer:  tx.Message.FeePayer,
		Message:   tx.Message,
		Err:       txErr,
	}

	if err := r.store.ApplyTransaction(ctx, rec, writes); err != nil {
		r.logger.Error("transaction commit failed",
			"error", err,
			"signature", sig,
			"slot", slot,
		)
		r.notify(sig, fmt.Errorf("commit transaction %s: %w", sig, err))
		return
	}

	if txErr != nil {
		r.logger.Info("transaction failed",
			"signature", sig,
			"slot", slot,
			"code", txErr.Code,
			"message", txErr.Message,
		)
	} else {
		r.logger.Info("transaction processed",
			"signature", sig,
			"slot", slot,
			"writes", len(writes),
		)
	}
	r.notify(sig, nil)
}

// execute runs every instruction against a shared write set. The first
// failing instruction aborts the transaction and discards all writes.
func (r *Runtime) execute(ctx context.Context, tx *ledger.Transaction, slot uint64) ([]store.AccountWrite, *ledger.TxError) {
	ws := newWriteSet(r.store)

	for i, ix := range tx.Message.Instructions {
		prog, ok := r.program(ix.ProgramID)
		if !ok {
			return nil, ledger.NewInstructionError(i, ledger.CodeProgramNotFound, "no program at %s", ix.ProgramID)
		}

		ic := &InstructionContext{
			ctx:       ctx,
			Index:     i,
			ProgramID: ix.ProgramID,
			Accounts:  ix.Accounts,
			Slot:      slot,
			ws:        ws,
		}
		if err := prog.Execute(ic, ix); err != nil {
			return nil, asTxError(i, err)
		}
	}
	return ws.writes(), nil
}

// asTxError attributes err to instruction i. Errors that are not already
// ledger rejections become InvalidTransaction.
func asTxError(i int, err error) *ledger.TxError {
	var te *ledger.TxError
	if errors.As(err, &te) {
		out := *te
		out.Instruction = i
		return &out
	}
	return ledger.NewInstructionError(i, ledger.CodeInvalidTransaction, "%v", err)
}
