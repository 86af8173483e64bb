package aggregator

import (
	"time"

	"github.com/actorcore/engine/pkg/pipeline"
)

// Config tunes the Aggregator's fan-out and pipeline behavior (spec §4.5,
// §5). Zero value is usable: DefaultConfig fills in the spec's defaults.
type Config struct {
	// ContributorTimeout is the deadline of the context every individual
	// contribute() call receives (spec §5: "default 200 ms, configurable").
	// A call that fails or returns after the deadline is dropped from the
	// resolve; a contributor that ignores its context still delays the
	// resolve until it returns.
	ContributorTimeout time.Duration

	// Pipeline gates the Bucket Processor's optional buckets for every
	// pipeline-routed dimension.
	Pipeline pipeline.Config
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{
		ContributorTimeout: 200 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	if c.ContributorTimeout <= 0 {
		c.ContributorTimeout = 200 * time.Millisecond
	}
	return c
}
