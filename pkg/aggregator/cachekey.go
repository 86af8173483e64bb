package aggregator

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/actorcore/engine/pkg/cache"
	"github.com/actorcore/engine/pkg/statcore"
)

// cacheKey computes the stable key spec §4.5 step 1 describes: a hash of
// (actor.id, actor.version, sorted subsystem ids attached to the actor,
// registry epoch). This is the key used for single-flight collapsing and
// for L1/L2 lookups. When actor.Subsystems is empty it degenerates to
// cache.Key's plain `actor:<id>:<version>:<epoch>` form — the canonical
// persisted layout from spec §6 — since there's nothing extra to fold in.
func cacheKey(actor *statcore.Actor, version, regEpoch int64) string {
	base := cache.Key(actor.ID, version, regEpoch)
	if len(actor.Subsystems) == 0 {
		return base
	}
	sorted := append([]string(nil), actor.Subsystems...)
	sort.Strings(sorted)
	h := fnv.New64a()
	h.Write([]byte(strings.Join(sorted, ",")))
	return base + ":" + strconv.FormatUint(h.Sum64(), 36)
}
