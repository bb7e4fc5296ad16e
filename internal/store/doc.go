// Package store provides SQLite-backed durable state for the localnet
// runtime.
//
// The store holds two tables:
//   - transactions: every processed transaction, successful or not, keyed
//     by its signature and stamped with the slot that processed it
//   - accounts: current account state, each row tagged with the slot of
//     the transaction that last wrote it
//
// A transaction and the account writes it produced commit in one SQL
// transaction, so readers never observe a partially applied write.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Open(":memory:") gives a private in-memory ledger; the pool is limited to
// one connection so every query sees the same database.
package store
