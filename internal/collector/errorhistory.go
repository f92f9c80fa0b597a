package collector

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/canaryhq/canary-agent/internal/plugin"
)

// errorHistoryCapacity bounds how many distinct plugins' error histories
// the loop keeps around. A host agent runs a fixed, small plugin set, but
// this caps memory if a misbehaving deployment registers many.
const errorHistoryCapacity = 64

// errorHistoryDepth is how many recent ErrorRecords are kept per plugin.
const errorHistoryDepth = 10

// errorHistory is a bounded per-plugin ring of recent collection failures,
// read back through Loop.RecentErrors. An LRU cache keyed by plugin name
// bounds the number of distinct plugins tracked, independent of how many
// failures any one of them has accumulated.
type errorHistory struct {
	cache *lru.Cache[string, []plugin.ErrorRecord]
}

func newErrorHistory() *errorHistory {
	cache, err := lru.New[string, []plugin.ErrorRecord](errorHistoryCapacity)
	if err != nil {
		// Only possible if errorHistoryCapacity <= 0, which is a
		// programmer error in this package, not a runtime condition.
		panic(err)
	}
	return &errorHistory{cache: cache}
}

// Record appends rec to pluginName's ring, trimming to errorHistoryDepth.
func (h *errorHistory) Record(pluginName string, rec plugin.ErrorRecord) {
	existing, _ := h.cache.Get(pluginName)
	existing = append(existing, rec)
	if len(existing) > errorHistoryDepth {
		existing = existing[len(existing)-errorHistoryDepth:]
	}
	h.cache.Add(pluginName, existing)
}

// Recent returns the bounded history for pluginName, most recent last.
func (h *errorHistory) Recent(pluginName string) []plugin.ErrorRecord {
	records, _ := h.cache.Get(pluginName)
	return records
}
