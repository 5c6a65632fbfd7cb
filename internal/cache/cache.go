// Package cache implements forge's action cache: an in-memory dirty map
// backed by a lazily-flushed on-disk binary store, memoizing
// (inputs, env, tool) -> outputs for compile/link/test actions.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forgebuild/forge/internal/hasher"
	"github.com/forgebuild/forge/internal/logging"
	"github.com/forgebuild/forge/internal/types"
)

// Config bounds the on-disk action cache. Zero limits fall back to the
// defaults from DefaultConfig.
type Config struct {
	MaxSizeBytes int64
	MaxEntries   int
	MaxAge       time.Duration
	// RetryOnFailure controls whether a negative cache entry (recorded
	// build failure) short-circuits an identical re-run with the same
	// failure, or is always retried. Defaults to retrying.
	RetryOnFailure bool
}

// DefaultConfig returns the documented cache limits: 1 GiB, 10 000
// entries, 30 days.
func DefaultConfig() Config {
	return Config{
		MaxSizeBytes:   1 << 30, // 1 GiB
		MaxEntries:     10_000,
		MaxAge:         30 * 24 * time.Hour,
		RetryOnFailure: true,
	}
}

// entry wraps an ActionRecord with the doubly-linked-list pointers used
// for O(1) LRU bookkeeping.
type entry struct {
	record *types.ActionRecord
	dirty  bool
	prev   *entry
	next   *entry
}

// ActionCache is the two-layer memoization cache: an in-memory map
// serves every lookup/record; Flush is the only place that touches
// disk, so a build with hundreds of targets pays one write instead of
// hundreds.
type ActionCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	head    *entry
	tail    *entry
	size    int64

	cfg    Config
	store  *Store
	hasher *hasher.Hasher
	log    logging.Logger

	hits      int64
	misses    int64
	evictions int64
}

// Open loads path (if present) into memory and returns a ready cache.
// Disk corruption is never fatal: it is logged and the cache starts
// empty.
func Open(path string, cfg Config, h *hasher.Hasher, log logging.Logger) (*ActionCache, error) {
	if log == nil {
		log = logging.Noop()
	}
	def := DefaultConfig()
	if cfg.MaxSizeBytes == 0 {
		cfg.MaxSizeBytes = def.MaxSizeBytes
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}

	ac := &ActionCache{
		entries: make(map[string]*entry),
		cfg:     cfg,
		store:   NewStore(path),
		hasher:  h,
		log:     log.WithComponent("cache"),
	}
	ac.head = &entry{}
	ac.tail = &entry{}
	ac.head.next = ac.tail
	ac.tail.prev = ac.head

	records, err := ac.store.Load()
	if err != nil {
		ac.log.Warn(context.Background(), err, "action cache store unreadable, starting empty")
		return ac, nil
	}

	for _, r := range records {
		ac.insertLocked(r, false)
	}
	return ac, nil
}

// Lookup is the result of IsCached: whether the action is memoized at
// all, and if so whether the memoized result was a failure (a negative
// cache entry) rather than a success.
type Lookup struct {
	Cached       bool
	PriorFailure bool
}

// IsCached checks each input's metadata fingerprint first, recomputing
// the content hash only on mismatch, then compares env metadata and
// verifies declared outputs still exist.
//
// When the memoized record is a recorded failure and
// Config.RetryOnFailure is false, the lookup reports Cached=true,
// PriorFailure=true: the caller must short-circuit to the same failure
// rather than treat the hit as a success.
func (ac *ActionCache) IsCached(id types.ActionID, inputs []string, envHash string, outputsExist func([]string) bool) Lookup {
	ac.mu.Lock()
	e, ok := ac.entries[id.String()]
	if !ok {
		ac.misses++
		ac.mu.Unlock()
		return Lookup{}
	}
	record := e.record
	ac.mu.Unlock()

	if !record.Success && !ac.cfg.RetryOnFailure {
		// negative cache entry: short-circuit with the prior failure
		ac.mu.Lock()
		e.record.LastAccess = time.Now()
		e.dirty = true
		ac.moveToFront(e)
		ac.hits++
		ac.mu.Unlock()
		return Lookup{Cached: true, PriorFailure: true}
	}
	if !record.Success {
		ac.mu.Lock()
		ac.misses++
		ac.mu.Unlock()
		return Lookup{}
	}

	for _, want := range inputs {
		if !ac.inputMatches(record, want) {
			ac.mu.Lock()
			ac.misses++
			ac.mu.Unlock()
			return Lookup{}
		}
	}

	if record.EnvMetadataHash != envHash {
		ac.mu.Lock()
		ac.misses++
		ac.mu.Unlock()
		return Lookup{}
	}

	if outputsExist != nil && !outputsExist(record.OutputPaths) {
		ac.mu.Lock()
		ac.misses++
		ac.mu.Unlock()
		return Lookup{}
	}

	ac.mu.Lock()
	e.record.LastAccess = time.Now()
	e.dirty = true
	ac.moveToFront(e)
	ac.hits++
	ac.mu.Unlock()
	return Lookup{Cached: true}
}

// inputMatches re-derives one input's metadata/content hash and
// compares it to the stored record, recomputing the content hash only
// when the metadata fingerprint has changed (the two-tier contract).
func (ac *ActionCache) inputMatches(record *types.ActionRecord, path string) bool {
	var stored *types.InputMetadata
	for i := range record.InputsMetadata {
		if record.InputsMetadata[i].Path == path {
			stored = &record.InputsMetadata[i]
			break
		}
	}
	if stored == nil {
		return false
	}

	meta, err := ac.hasher.MetadataHash(path)
	if err != nil {
		return false
	}
	if meta == stored.MetadataHash {
		return true
	}

	content, err := ac.hasher.ContentHash(path)
	if err != nil {
		return false
	}
	return content == stored.ContentHash
}

// Record stores a completed action's result into the in-memory dirty
// map; it never touches disk.
func (ac *ActionCache) Record(record *types.ActionRecord) {
	record.LastAccess = time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.LastAccess
	}
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.insertLocked(record, true)
}

func (ac *ActionCache) insertLocked(record *types.ActionRecord, dirty bool) {
	key := record.ActionID.String()
	if existing, ok := ac.entries[key]; ok {
		ac.size -= existing.record.ByteSize
		existing.record = record
		existing.dirty = existing.dirty || dirty
		ac.size += record.ByteSize
		ac.moveToFront(existing)
		return
	}

	e := &entry{record: record, dirty: dirty}
	ac.entries[key] = e
	ac.size += record.ByteSize
	ac.addToFront(e)
}

// Flush writes every dirty record to disk in one framed, atomic write
// (write-temp-then-rename), running eviction first if the cache has
// grown past its configured limits.
func (ac *ActionCache) Flush() error {
	ac.mu.Lock()
	ac.evictLocked()

	dirty := make([]*types.ActionRecord, 0, len(ac.entries))
	for _, e := range ac.entries {
		if e.dirty {
			dirty = append(dirty, e.record)
		}
	}
	all := make([]*types.ActionRecord, 0, len(ac.entries))
	for _, e := range ac.entries {
		all = append(all, e.record)
	}
	ac.mu.Unlock()

	if len(dirty) == 0 {
		return nil
	}

	if err := ac.store.Save(all); err != nil {
		ac.log.Warn(context.Background(), err, "action cache flush failed, build result unaffected")
		return err
	}

	ac.mu.Lock()
	for _, e := range ac.entries {
		e.dirty = false
	}
	ac.mu.Unlock()
	return nil
}

// evictLocked implements the hybrid eviction policy: age-based removal
// first (cheap: one timestamp compare per record), then strict LRU by
// last access until back under the size/count limits.
func (ac *ActionCache) evictLocked() {
	now := time.Now()
	if ac.cfg.MaxAge > 0 {
		for e := ac.tail.prev; e != ac.head; {
			prev := e.prev
			if now.Sub(e.record.LastAccess) > ac.cfg.MaxAge {
				ac.removeLocked(e)
			}
			e = prev
		}
	}

	for (ac.cfg.MaxEntries > 0 && len(ac.entries) > ac.cfg.MaxEntries) ||
		(ac.cfg.MaxSizeBytes > 0 && ac.size > ac.cfg.MaxSizeBytes) {
		lru := ac.tail.prev
		if lru == ac.head {
			break
		}
		ac.removeLocked(lru)
	}
}

func (ac *ActionCache) removeLocked(e *entry) {
	ac.removeFromList(e)
	delete(ac.entries, e.record.ActionID.String())
	ac.size -= e.record.ByteSize
	ac.evictions++
}

func (ac *ActionCache) addToFront(e *entry) {
	e.prev = ac.head
	e.next = ac.head.next
	ac.head.next.prev = e
	ac.head.next = e
}

func (ac *ActionCache) removeFromList(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (ac *ActionCache) moveToFront(e *entry) {
	ac.removeFromList(e)
	ac.addToFront(e)
}

// Stats is a snapshot of the cache's counters, returned by
// ActionCache.Stats. It has the same fields as interfaces.Stats but is
// a distinct type.
type Stats struct {
	Entries   int
	SizeBytes int64
	Hits      int64
	Misses    int64
	Evictions int64
}

func (ac *ActionCache) Stats() Stats {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return Stats{
		Entries:   len(ac.entries),
		SizeBytes: ac.size,
		Hits:      atomic.LoadInt64(&ac.hits),
		Misses:    atomic.LoadInt64(&ac.misses),
		Evictions: atomic.LoadInt64(&ac.evictions),
	}
}

// HitRate returns hits / (hits + misses), or 0 when there is no data yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
