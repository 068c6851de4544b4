package domain

import (
	"go/token"
	"sync"

	m "gooze.dev/pkg/grafter/internal/model"
	"gooze.dev/pkg/grafter/internal/syntax"
)

// Record is the cached evaluation of one candidate.
type Record struct {
	m.Execution

	once  sync.Once
	index *syntax.Index
}

// NewRecord wraps an execution for the cache.
func NewRecord(exec m.Execution) *Record {
	return &Record{Execution: exec}
}

// Index parses the record's source on first use. It returns nil when the
// source does not parse.
func (r *Record) Index() *syntax.Index {
	r.once.Do(func() {
		tree, err := syntax.Parse(token.NewFileSet(), r.ID.String()+".go", []byte(r.Source))
		if err != nil {
			return
		}

		r.index = syntax.NewIndex(tree)
	})

	return r.index
}

// Cache holds the records of the candidates alive in the current and next
// generation.
type Cache struct {
	mu      sync.Mutex
	records map[m.CandidateID]*Record
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{records: make(map[m.CandidateID]*Record)}
}

// Put stores rec, replacing any record with the same id.
func (c *Cache) Put(rec *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[rec.ID] = rec
}

// Get returns the record for id.
func (c *Cache) Get(id m.CandidateID) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]

	return rec, ok
}

// Evict drops the records for ids.
func (c *Cache) Evict(ids ...m.CandidateID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.records, id)
	}
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.records)
}
