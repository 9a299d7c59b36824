// Package counters implements the named counter registry and per-worker
// counter storage (spec §4.5, C10): counters are keyed by name and a size in
// 64-bit words, bucketed into fixed power-of-two pools, and materialized as
// one page array per worker so the hot path never contends across workers.
package counters

import (
	"fmt"
)

// numPools covers sizes 1, 2, 4, 8, 16 words (pool k holds size 2^k).
const numPools = 5

const wordsPerPage = 512 // PAGE_SIZE(4096) / 8, per spec §4.5.

func poolForSize(words int) (int, error) {
	for k := 0; k < numPools; k++ {
		if words == 1<<k {
			return k, nil
		}
	}
	return 0, fmt.Errorf("counters: unsupported size %d words (want 1,2,4,8,16)", words)
}

// handle is where one registered counter lives: which pool, which page
// within that pool, and the word offset within the page.
type handle struct {
	name  string
	pool  int
	page  int
	words int
	// offset is the word offset of this counter's first word within
	// its page.
	offset int
}

// Registry maps counter names to their pool/page/offset handles. A
// Registry has a generation number so Storages spawned against different
// generations of the same name never alias each other's pages.
type Registry struct {
	gen      uint64
	byName   map[string]*handle
	poolNext [numPools]int // next free page-relative word offset per pool
	poolPage [numPools]int // current page index being filled per pool
}

// NewRegistry creates an empty registry at generation gen.
func NewRegistry(gen uint64) *Registry {
	return &Registry{gen: gen, byName: make(map[string]*handle)}
}

// Gen returns the registry's generation number.
func (r *Registry) Gen() uint64 { return r.gen }

// Register reserves space for a counter of the given name and word size,
// returning an error if the name is already registered in this generation.
func (r *Registry) Register(name string, words int) error {
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("counters: %q already registered in generation %d", name, r.gen)
	}
	pool, err := poolForSize(words)
	if err != nil {
		return err
	}

	if r.poolNext[pool]+words > wordsPerPage {
		r.poolPage[pool]++
		r.poolNext[pool] = 0
	}

	h := &handle{name: name, pool: pool, page: r.poolPage[pool], words: words, offset: r.poolNext[pool]}
	r.poolNext[pool] += words
	r.byName[name] = h
	return nil
}

// Lookup returns the handle-derived (pool, page, offset, words) location
// for name, or ok=false if unregistered.
func (r *Registry) Lookup(name string) (pool, page, offset, words int, ok bool) {
	h, exists := r.byName[name]
	if !exists {
		return 0, 0, 0, 0, false
	}
	return h.pool, h.page, h.offset, h.words, true
}

// Names returns all registered counter names, unordered.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}

// PageCount returns how many pages pool k currently spans.
func (r *Registry) PageCount(pool int) int {
	if r.poolNext[pool] == 0 && r.poolPage[pool] == 0 {
		return 0
	}
	return r.poolPage[pool] + 1
}

// Storage is the per-worker materialization of a Registry: one []uint64
// page array per (pool, page, worker). Storages are reference-counted by
// the configuration generations that reference them (spec §3 Ownership);
// here that's modeled by an explicit Retain/Release pair.
type Storage struct {
	registry *Registry
	numWorkers int
	// pages[pool][page] is a numWorkers*wordsPerPage flat slice, one
	// wordsPerPage segment per worker.
	pages [numPools][][]uint64
	refs  int
}

// NewStorage materializes empty pages for every pool/page the registry
// currently spans, for numWorkers workers.
func NewStorage(registry *Registry, numWorkers int) *Storage {
	s := &Storage{registry: registry, numWorkers: numWorkers, refs: 1}
	for pool := 0; pool < numPools; pool++ {
		pages := registry.PageCount(pool)
		s.pages[pool] = make([][]uint64, pages)
		for p := 0; p < pages; p++ {
			s.pages[pool][p] = make([]uint64, numWorkers*wordsPerPage)
		}
	}
	return s
}

// SpawnFrom materializes a Storage for newRegistry, copying over the page
// contents of every counter name present in both the old and new
// registries (spec §4.5: "copying pages for counters that outlive the
// configuration swap"). Counters only present in newRegistry start at
// zero.
func SpawnFrom(old *Storage, newRegistry *Registry) *Storage {
	s := NewStorage(newRegistry, old.numWorkers)
	for name, h := range newRegistry.byName {
		oldH, ok := old.registry.byName[name]
		if !ok {
			continue
		}
		if oldH.words != h.words {
			continue
		}
		for worker := 0; worker < old.numWorkers; worker++ {
			srcBase := worker*wordsPerPage + oldH.offset
			dstBase := worker*wordsPerPage + h.offset
			copy(s.pages[h.pool][h.page][dstBase:dstBase+h.words],
				old.pages[oldH.pool][oldH.page][srcBase:srcBase+oldH.words])
		}
	}
	return s
}

// Retain increments the storage's reference count.
func (s *Storage) Retain() { s.refs++ }

// Release decrements the storage's reference count, returning true once
// it reaches zero (the caller may now discard the pages).
func (s *Storage) Release() bool {
	s.refs--
	return s.refs <= 0
}

// Words returns the live word slice for counter name in worker's page,
// for direct increment on the hot path. It never allocates or mutates
// registry state.
func (s *Storage) Words(name string, worker int) ([]uint64, bool) {
	h, ok := s.registry.byName[name]
	if !ok {
		return nil, false
	}
	base := worker*wordsPerPage + h.offset
	return s.pages[h.pool][h.page][base : base+h.words], true
}

// Add64 increments a single-word counter's value for worker by delta. It
// panics (a programmer error, not a runtime condition) if name is not a
// 1-word counter.
func (s *Storage) Add64(name string, worker int, delta uint64) {
	words, ok := s.Words(name, worker)
	if !ok || len(words) != 1 {
		panic(fmt.Sprintf("counters: %q is not a registered 1-word counter", name))
	}
	words[0] += delta
}

// Sum accumulates counter name's values across every worker's page,
// word-by-word, returning the summed words. Read paths never mutate
// (spec §4.5).
func (s *Storage) Sum(name string) ([]uint64, bool) {
	h, ok := s.registry.byName[name]
	if !ok {
		return nil, false
	}
	sum := make([]uint64, h.words)
	for worker := 0; worker < s.numWorkers; worker++ {
		base := worker*wordsPerPage + h.offset
		page := s.pages[h.pool][h.page]
		for i := 0; i < h.words; i++ {
			sum[i] += page[base+i]
		}
	}
	return sum, true
}
