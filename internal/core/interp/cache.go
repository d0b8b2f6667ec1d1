package interp

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
)

// resultCache memoizes resolved positions keyed by (entity, quantized time).
// Repeated queries at the same simulated time are the common case: the
// culler, the LOD pass and the scene all ask for the same entity within one
// frame. Eviction is FIFO; correctness does not depend on what is cached
// because every entry is invalidated when its entity's samples change.
type resultCache struct {
	maxSize int
	quantum time.Duration

	entries map[uint64]cacheEntry
	order   []uint64
	// byEntity indexes live keys per entity for invalidation. Entries
	// removed by eviction are pruned here too, so the index never outgrows
	// the cache itself.
	byEntity map[string]map[uint64]struct{}
}

type cacheEntry struct {
	sample Sample
	owner  string
}

func newResultCache(maxSize int, quantum time.Duration) *resultCache {
	if maxSize <= 0 || quantum <= 0 {
		return &resultCache{}
	}
	return &resultCache{
		maxSize:  maxSize,
		quantum:  quantum,
		entries:  make(map[uint64]cacheEntry, maxSize),
		order:    make([]uint64, 0, maxSize),
		byEntity: make(map[string]map[uint64]struct{}),
	}
}

func (c *resultCache) enabled() bool { return c.entries != nil }

func (c *resultCache) key(entityID string, t time.Time) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(entityID)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(t.UnixNano()/int64(c.quantum)))
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

func (c *resultCache) get(entityID string, t time.Time) (Sample, bool) {
	if !c.enabled() {
		return Sample{}, false
	}
	e, ok := c.entries[c.key(entityID, t)]
	return e.sample, ok
}

func (c *resultCache) put(entityID string, t time.Time, s Sample) {
	if !c.enabled() {
		return
	}
	k := c.key(entityID, t)
	if _, exists := c.entries[k]; exists {
		c.entries[k] = cacheEntry{sample: s, owner: entityID}
		return
	}
	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.drop(oldest)
	}
	c.entries[k] = cacheEntry{sample: s, owner: entityID}
	c.order = append(c.order, k)
	keys := c.byEntity[entityID]
	if keys == nil {
		keys = make(map[uint64]struct{})
		c.byEntity[entityID] = keys
	}
	keys[k] = struct{}{}

	// Invalidation leaves stale keys in order; compact once they dominate.
	if len(c.order) > c.maxSize*2 {
		live := c.order[:0]
		for _, key := range c.order {
			if _, ok := c.entries[key]; ok {
				live = append(live, key)
			}
		}
		c.order = live
	}
}

// drop removes the entry and its owner-index reference. A key already
// invalidated is a no-op.
func (c *resultCache) drop(k uint64) {
	e, ok := c.entries[k]
	if !ok {
		return
	}
	delete(c.entries, k)
	if keys := c.byEntity[e.owner]; keys != nil {
		delete(keys, k)
		if len(keys) == 0 {
			delete(c.byEntity, e.owner)
		}
	}
}

func (c *resultCache) invalidate(entityID string) {
	if !c.enabled() {
		return
	}
	for k := range c.byEntity[entityID] {
		delete(c.entries, k)
	}
	delete(c.byEntity, entityID)
}

func (c *resultCache) len() int { return len(c.entries) }

// indexLen returns the number of keys held across the per-entity index.
func (c *resultCache) indexLen() int {
	n := 0
	for _, keys := range c.byEntity {
		n += len(keys)
	}
	return n
}
