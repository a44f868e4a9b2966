// Command dynseqbench is the CLI benchmark harness: it constructs a
// façade via build, issues random workloads, and prints (or scrapes, via
// --metrics-addr) timings. It is an external collaborator of the core
// library, not part of it.
package main

import (
	"github.com/succinct-go/dynseq/cmd/dynseqbench/cmd"
)

func main() {
	cmd.SetContainer(cmd.NewContainer())
	cmd.Execute()
}
