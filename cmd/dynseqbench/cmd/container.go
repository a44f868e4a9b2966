// Package cmd implements cmd/dynseqbench's cobra command tree: build,
// bench, verify, and dump subcommands over the six façades (root.go with
// persistent flags and PersistentPreRunE, one file per subcommand).
package cmd

import (
	"github.com/succinct-go/dynseq/pkg/benchmetrics"
	"github.com/succinct-go/dynseq/pkg/config"
)

// Container holds the dependencies every subcommand shares: a plain
// struct instead of a DI framework, injected once from main via
// SetContainer.
type Container struct {
	Config  *config.Config
	Metrics *benchmetrics.Metrics
}

// NewContainer constructs a container with default config and a freshly
// registered metrics set.
func NewContainer() *Container {
	return &Container{
		Config:  config.DefaultConfig(),
		Metrics: benchmetrics.New(),
	}
}

var container *Container

// SetContainer injects the shared container.
func SetContainer(c *Container) { container = c }
