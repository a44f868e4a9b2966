// Package harness generates the random workloads consumed by
// cmd/dynseqbench's build/bench/verify subcommands. Every generator is
// seeded deterministically from pkg/config's Harness.Seed so a run is
// reproducible, and run invocations are tagged with a ksuid.
package harness

import (
	"math/rand"

	"github.com/segmentio/ksuid"
)

// RunID mints a fresh identifier tagging one benchmark invocation's
// output file and log line.
func RunID() string { return ksuid.New().String() }

// RandSeq returns n uint64 values in [0,maxValue), deterministic given
// seed.
func RandSeq(seed int64, n int, maxValue uint64) []uint64 {
	rng := rand.New(rand.NewSource(seed))
	if maxValue == 0 {
		maxValue = 1
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = uint64(rng.Int63n(int64(maxValue)))
	}
	return out
}

// RandBits returns n random bits, deterministic given seed.
func RandBits(seed int64, n int) []bool {
	rng := rand.New(rand.NewSource(seed))
	out := make([]bool, n)
	for i := range out {
		out[i] = rng.Intn(2) == 1
	}
	return out
}

// RandString returns n bytes drawn uniformly from alphabet, deterministic
// given seed. Used to build a DWT's initial text.
func RandString(seed int64, n int, alphabet []byte) []byte {
	rng := rand.New(rand.NewSource(seed))
	out := make([]byte, n)
	for i := range out {
		out[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return out
}

// RandPermutation returns a uniformly shuffled permutation of [0,n),
// deterministic given seed. Used to seed pkg/permutation.Build and
// pkg/rangetree.Build's rank array.
func RandPermutation(seed int64, n int) []uint64 {
	rng := rand.New(rand.NewSource(seed))
	perm := make([]uint64, n)
	for i := range perm {
		perm[i] = uint64(i)
	}
	rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	return perm
}

// RandIntPermutation is RandPermutation narrowed to int, the shape
// pkg/rangetree.Build(R []int) expects for its rank array.
func RandIntPermutation(seed int64, n int) []int {
	u := RandPermutation(seed, n)
	out := make([]int, n)
	for i, v := range u {
		out[i] = int(v)
	}
	return out
}

// RandPosition returns a uniformly random valid insertion position in
// [0,size], or 0 when size is 0.
func RandPosition(rng *rand.Rand, size int) int {
	if size <= 0 {
		return 0
	}
	return rng.Intn(size + 1)
}

// NewRNG constructs the shared *rand.Rand a benchmark loop mutates
// across successive operations (query_num draws), distinct from the
// one-shot generators above which each take their own seed so that
// build-time and query-time randomness don't interfere.
func NewRNG(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }
