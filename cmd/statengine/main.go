// Command statengine is a minimal embedder: it wires the actor stat
// aggregation engine's registries, cache layers, and aggregator together and
// runs one sample resolve. The engine is a library — this binary is a
// smoke-test harness, not a server (no HTTP/gRPC surface; see SPEC_FULL.md
// Non-goals).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/actorcore/engine/pkg/aggregator"
	"github.com/actorcore/engine/pkg/cache"
	"github.com/actorcore/engine/pkg/cache/pgcache"
	"github.com/actorcore/engine/pkg/caplayer"
	"github.com/actorcore/engine/pkg/combiner"
	"github.com/actorcore/engine/pkg/config"
	"github.com/actorcore/engine/pkg/metrics"
	"github.com/actorcore/engine/pkg/registry"
	"github.com/actorcore/engine/pkg/statcore"
	"github.com/actorcore/engine/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("ACTORCORE_CONFIG", "./deploy/config/engine.yaml"),
		"Path to engine configuration YAML")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	log.Info("starting", "version", version.Full())

	envPath := filepath.Join(filepath.Dir(*configPath), ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Warn("no .env file loaded, continuing with existing environment", "path", envPath, "error", err)
	}

	cfg := config.Defaults()
	cfg.LayerOrder = []string{"innate", "equipment", "buffs"}
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.LoadYAML(*configPath)
		if err != nil {
			log.Error("failed to load engine configuration", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		log.Info("no configuration file found, using defaults", "path", *configPath)
	}

	ctx := context.Background()

	contributors := registry.New(1024)
	combinerReg := combiner.New()
	capLayers := caplayer.New(cfg.LayerOrder, cfg.AcrossLayerPolicy)
	for dim, rule := range cfg.MergeRules {
		combinerReg.SetRule(dim, rule)
	}

	l1 := cache.NewMemoryLayer(cfg.L1.Size, cfg.L1.Eviction)
	var l2 cache.Layer
	if cfg.L2.Enabled {
		bolt, err := cache.OpenBoltLayer(cfg.L2.Path)
		if err != nil {
			log.Error("failed to open L2 bbolt cache", "path", cfg.L2.Path, "error", err)
			os.Exit(1)
		}
		defer bolt.Close()
		l2 = bolt
	}
	var l3 cache.Layer
	if cfg.L3.Enabled {
		pg, err := pgcache.Open(ctx, cfg.L3.DSN)
		if err != nil {
			log.Error("failed to open L3 Postgres cache", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		l3 = cache.NewPgLayerAdapter(pg)
	}
	multiCache := cache.New(l1, l2, l3, log)

	recorder := metrics.NewInMemoryRecorder()

	if err := contributors.Register(innateContributor{}); err != nil {
		log.Error("failed to register contributor", "system_id", "innate", "error", err)
		os.Exit(1)
	}

	agg := aggregator.New(contributors, combinerReg, capLayers, multiCache, recorder, log, aggregator.Config{
		ContributorTimeout: cfg.ContributorTimeout,
		Pipeline:           cfg.Pipeline,
	})

	actor := statcore.NewActor("demo-hero", "human", 5)
	snap, err := agg.Resolve(ctx, actor)
	if err != nil {
		log.Error("resolve failed", "actor_id", actor.ID, "error", err)
		os.Exit(1)
	}

	log.Info("resolved actor snapshot",
		"actor_id", snap.ActorID,
		"version", snap.Version,
		"cache_hit", snap.CacheHit,
		"partial", snap.Partial,
		"primary", snap.Primary,
		"caps_used", snap.CapsUsed,
	)
}

// innateContributor is a placeholder subsystem demonstrating the Contributor
// contract; real embedders register their own game-specific contributors.
type innateContributor struct{}

func (innateContributor) SystemID() string { return "innate" }
func (innateContributor) Priority() int64  { return 0 }
func (innateContributor) Contribute(_ context.Context, actor *statcore.Actor, _ map[string]any) (statcore.SubsystemOutput, error) {
	return statcore.SubsystemOutput{
		SystemID: "innate",
		Primary: []statcore.Contribution{
			{Dimension: "health", System: "innate", Value: 100 + float64(actor.Level)*10},
			{Dimension: "strength", System: "innate", Value: 10},
		},
		Caps: []statcore.CapContribution{
			{Dimension: "health", Mode: statcore.CapModeHardMax, Kind: statcore.CapKindMax, Value: 100 + float64(actor.Level)*10, Layer: "innate", System: "innate"},
		},
	}, nil
}
