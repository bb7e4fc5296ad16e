// Package harness verifies the restaurant dashboard contract against a
// ledger: a profile written under a fresh identity must read back with the
// same name, content reference, and owner.
//
// # Single verification
//
// CreateAndVerify performs the whole cycle against an explicit Env:
//
//	v, err := harness.CreateAndVerify(ctx, &harness.Env{
//	    Client:    client,
//	    Caller:    wallet,
//	    Generator: identity.RandomGenerator{},
//	    Program:   program,
//	}, "Joe's Bistro", "Qm...")
//
// A rejected write surfaces as a *ledger.TxError, a differing record as a
// *MismatchError.
//
// # Scenario Format
//
// Scenarios script several writes and assert on the outcome:
//
//	name: joes_bistro
//	description: "Profile round-trips with the caller as owner"
//	flow:
//	  - invoke: create_and_verify
//	    as: bistro
//	    args: { name: "Joe's Bistro", ipfs_hash: "Qm..." }
//	    expect: { case: Success }
//	  - invoke: update_restaurant_profile
//	    as: orphan
//	    omit_cosigner: true
//	    args: { name: "Joe's Bistro", ipfs_hash: "Qm..." }
//	    expect: { case: MissingRequiredSignature }
//	assertions:
//	  - type: record_equals
//	    record: bistro
//	    expect: { name: "Joe's Bistro", ipfs_hash: "Qm...", owner: "$caller" }
//	  - type: record_absent
//	    record: orphan
//
// # Assertion Types
//
//   - trace_contains: an invocation with matching action and args exists
//   - trace_order: actions first appear in the given order
//   - trace_count: an action appears exactly N times
//   - record_equals: the labelled record has the expected fields
//   - record_absent: nothing was stored at the labelled identity
//   - records_distinct: labels were bound to different identities
//
// # Deterministic Testing
//
// Run executes each scenario on a fresh in-memory localnet with identities
// derived from the scenario seed, so slots and traces repeat exactly and
// can be compared with golden files.
package harness
