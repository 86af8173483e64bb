// Package config defines the Aggregator's configuration surface (spec §6:
// "a configuration object, not files"). Loading from YAML is an optional,
// explicitly non-hot-path convenience for embedders — construct a Config
// directly and pass it to aggregator.New for anything latency-sensitive.
package config

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/actorcore/engine/pkg/cache"
	"github.com/actorcore/engine/pkg/pipeline"
	"github.com/actorcore/engine/pkg/statcore"
)

// CacheLayerConfig tunes one cache layer's capacity and TTL.
type CacheLayerConfig struct {
	Enabled  bool
	Size     int
	TTL      time.Duration
	Eviction cache.EvictionPolicy // L1 only
	Path     string               // L2 (bbolt file)
	DSN      string               // L3 (Postgres)
}

// UnmarshalYAML reads TTL as a duration string ("30m") rather than yaml.v3's
// default of a bare int64 nanosecond count, mirroring the teacher's own
// loader.go pattern for every other duration field it loads from YAML.
func (c *CacheLayerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Enabled  bool                 `yaml:"enabled"`
		Size     int                  `yaml:"size"`
		TTL      string               `yaml:"ttl"`
		Eviction cache.EvictionPolicy `yaml:"eviction"`
		Path     string               `yaml:"path"`
		DSN      string               `yaml:"dsn"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = CacheLayerConfig{
		Enabled:  raw.Enabled,
		Size:     raw.Size,
		Eviction: raw.Eviction,
		Path:     raw.Path,
		DSN:      raw.DSN,
	}
	if raw.TTL != "" {
		ttl, err := time.ParseDuration(raw.TTL)
		if err != nil {
			return fmt.Errorf("config: invalid ttl %q: %w", raw.TTL, err)
		}
		c.TTL = ttl
	}
	return nil
}

// Config is the full configuration surface accepted by the engine (spec §6,
// "Configuration surface"): layer order, AcrossLayerPolicy, per-dimension
// merge rules, per-layer cache sizes/TTLs, and the contributor timeout.
type Config struct {
	LayerOrder         []string
	AcrossLayerPolicy  statcore.AcrossLayerPolicy
	MergeRules         map[string]statcore.MergeRule
	Pipeline           pipeline.Config
	ContributorTimeout time.Duration
	ActorCacheSize     int

	L1 CacheLayerConfig
	L2 CacheLayerConfig
	L3 CacheLayerConfig
}

// UnmarshalYAML reads ContributorTimeout as a duration string, same
// reasoning as CacheLayerConfig.UnmarshalYAML above.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		LayerOrder         []string                      `yaml:"layer_order"`
		AcrossLayerPolicy  statcore.AcrossLayerPolicy     `yaml:"across_layer_policy"`
		MergeRules         map[string]statcore.MergeRule  `yaml:"merge_rules"`
		Pipeline           pipeline.Config                `yaml:"pipeline"`
		ContributorTimeout string                         `yaml:"contributor_timeout"`
		ActorCacheSize     int                             `yaml:"actor_cache_size"`
		L1                 CacheLayerConfig               `yaml:"l1"`
		L2                 CacheLayerConfig               `yaml:"l2"`
		L3                 CacheLayerConfig               `yaml:"l3"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = Config{
		LayerOrder:        raw.LayerOrder,
		AcrossLayerPolicy: raw.AcrossLayerPolicy,
		MergeRules:        raw.MergeRules,
		Pipeline:          raw.Pipeline,
		ActorCacheSize:    raw.ActorCacheSize,
		L1:                raw.L1,
		L2:                raw.L2,
		L3:                raw.L3,
	}
	if raw.ContributorTimeout != "" {
		d, err := time.ParseDuration(raw.ContributorTimeout)
		if err != nil {
			return fmt.Errorf("config: invalid contributor_timeout %q: %w", raw.ContributorTimeout, err)
		}
		c.ContributorTimeout = d
	}
	return nil
}

// Defaults returns the spec's defaults: Intersect cross-layer policy, a
// 200ms contributor timeout, and an LRU L1 with L2/L3 disabled (an embedder
// opts into L2/L3 explicitly since they need a filesystem/DSN).
func Defaults() Config {
	return Config{
		AcrossLayerPolicy:  statcore.PolicyIntersect,
		MergeRules:         map[string]statcore.MergeRule{},
		ContributorTimeout: 200 * time.Millisecond,
		ActorCacheSize:     1024,
		L1: CacheLayerConfig{
			Enabled:  true,
			Size:     1024,
			TTL:      cache.DefaultTTL,
			Eviction: cache.EvictionLRU,
		},
		L2: CacheLayerConfig{
			TTL: cache.DefaultTTL,
		},
		L3: CacheLayerConfig{
			TTL: 24 * time.Hour,
		},
	}
}

// Merge overlays override onto Defaults(), using dario.cat/mergo so zero
// fields in override fall back to the default rather than zeroing out an
// otherwise-complete config (mergo.WithOverride treats override's non-zero
// fields as authoritative).
func Merge(override Config) (Config, error) {
	cfg := Defaults()
	if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks structural invariants: a non-empty layer order, and every
// merge rule's ClampDefault (if any) being internally consistent.
func (c Config) Validate() error {
	if len(c.LayerOrder) == 0 {
		return NewValidationError("layer_order", c.LayerOrder, ErrMissingRequiredField)
	}
	seen := make(map[string]bool, len(c.LayerOrder))
	for _, l := range c.LayerOrder {
		if l == "" {
			return NewValidationError("layer_order", c.LayerOrder, ErrInvalidValue)
		}
		if seen[l] {
			return NewValidationError("layer_order", l, ErrInvalidValue)
		}
		seen[l] = true
	}
	for dim, rule := range c.MergeRules {
		if rule.ClampDefault != nil && !rule.ClampDefault.Consistent() {
			return NewValidationError("merge_rules."+dim+".clamp_default", *rule.ClampDefault, ErrInvalidValue)
		}
	}
	if c.ContributorTimeout <= 0 {
		return NewValidationError("contributor_timeout", c.ContributorTimeout, ErrInvalidValue)
	}
	return nil
}

// LoadYAML reads path, expands environment variables shell-style (spec_full
// §9's ambient config stack), and unmarshals onto Defaults() via Merge. This
// is a collaborator-facing convenience, never called from the hot resolve
// path (spec §6: "File/MongoDB/YAML loading is a collaborator concern").
func LoadYAML(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, NewLoadError(path, ErrConfigNotFound)
		}
		return Config{}, NewLoadError(path, err)
	}

	expanded := ExpandEnv(raw)

	var override Config
	if err := yaml.Unmarshal(expanded, &override); err != nil {
		return Config{}, NewLoadError(path, ErrInvalidYAML)
	}

	cfg, err := Merge(override)
	if err != nil {
		return Config{}, NewLoadError(path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
