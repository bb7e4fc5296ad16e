// Package runtime implements the localnet: an in-process ledger runtime
// that executes signed transactions against SQLite-backed account state.
//
// ARCHITECTURE:
//
// Single-Writer Transaction Loop:
// Submitted transactions pass preflight checks (signatures, duplicates) in
// the caller's goroutine and are then queued. Runtime.Run dequeues them one
// at a time, stamps each with the next slot, executes its instructions, and
// commits the outcome to the store. Only the Run goroutine writes.
//
// Processing Flow:
//  1. Submit() verifies signatures and enqueues
//  2. Run() dequeues in FIFO order
//  3. each instruction is dispatched to the program at its program ID
//  4. account writes are buffered; any instruction error discards them
//  5. the transaction record and surviving writes commit atomically
//  6. waiters blocked in Await() are released
//
// Slots are logical: a monotonic counter resumed from the store on start.
// There is no consensus, no fee accounting, and no parallel execution.
package runtime
