// Package facade declares the uniform surface every dynseq structure
// exposes: enough to let the CLI harness and tests treat DPS, DBS,
// DS64, DWT, DP, and DRR interchangeably for reporting and sanity checks,
// without collapsing their genuinely different access patterns into one
// interface.
package facade

// Facade is satisfied by every façade in this module. It is purely a
// convenience for code that wants to iterate over a set of structures
// generically (the benchmark harness, mainly).
type Facade interface {
	Size() int
	SizeInBytes() uint64
	Verify() error
	Clear()
}
