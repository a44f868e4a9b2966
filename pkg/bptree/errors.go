package bptree

import "errors"

// Sentinel errors returned at operation boundaries.
var (
	// ErrOutOfRange is returned when an index is out of range for the
	// operation (>= size for access/remove, > size for insert). Select
	// queries that ask for more occurrences of a symbol than exist return
	// -1 instead of an error.
	ErrOutOfRange = errors.New("bptree: index out of range")

	// ErrConfig is returned when a tree is configured with D_max < 4 or
	// L_max < 4, or a façade is given a zero-size alphabet where symbols
	// are required.
	ErrConfig = errors.New("bptree: invalid configuration")

	// ErrCorrupt is returned when a structure's internal cross-references
	// are inconsistent: a permutation entry whose partner cannot be found,
	// a range-tree level whose node-length table has the wrong size, or a
	// range-tree select that finds no matching bit. Short reads while
	// deserializing surface as the underlying I/O error instead.
	ErrCorrupt = errors.New("bptree: corrupt stream")
)

// DebugChecks makes the tree engine re-verify every invariant (aggregate
// totals, internal-node degrees, leaf-size bounds) after each mutating
// operation, aborting with a diagnostic on the first mismatch. Every
// check is a full-tree Verify, so production code leaves this false;
// tests may flip it on to catch regressions at the operation that
// introduced them rather than at the next Verify call.
var DebugChecks = false

// invariantViolation panics with a diagnostic. Called by the
// DebugChecks-gated post-operation verification, and directly for states
// no caller can recover from (key-space exhaustion in a permutation
// leaf).
func invariantViolation(msg string) {
	panic("bptree: invariant violation: " + msg)
}
