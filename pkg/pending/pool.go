// Package pending implements the pending pool: a single-writer-lane,
// insertion-order-preserving queue of validated entries awaiting a block.
//
// CONCURRENCY: exactly one writer lane at a time, enforced by mu. Readers
// (Snapshot) take a read lock and copy — they never observe a half-written
// pool and never block each other.
package pending

import (
	"errors"
	"sync"

	"github.com/natlangchain/ledgercore/pkg/entry"
	"github.com/natlangchain/ledgercore/pkg/validator"
)

var (
	// ErrNotValidated is returned when submit is called with a non-VALID
	// validation record.
	ErrNotValidated = errors.New("pending: entry does not carry a VALID validation record")
	// ErrDuplicate is returned when an entry's content identity
	// (entry.DuplicateKey) already appears in the pool or the sealed chain.
	ErrDuplicate = errors.New("pending: duplicate entry")
	// ErrPendingFull is returned when the pool is at or above its soft cap.
	ErrPendingFull = errors.New("pending: pool is over its soft cap")
)

// DuplicateChecker reports whether content with the given content-identity
// hash (entry.Entry.DuplicateKey) already exists in the sealed chain — the
// pool alone cannot know this.
type DuplicateChecker interface {
	ContainsHash(hashHex string) bool
}

// Pool is the concurrent staging area for validated entries.
type Pool struct {
	mu       sync.RWMutex
	entries  []entry.Entry
	byHash   map[string]bool
	softCap  int
	chain    DuplicateChecker
}

// New constructs an empty Pool with the given soft cap.
func New(softCap int, chain DuplicateChecker) *Pool {
	return &Pool{
		entries: make([]entry.Entry, 0),
		byHash:  make(map[string]bool),
		softCap: softCap,
		chain:   chain,
	}
}

// Submit appends e if it carries a VALID record, its content identity is
// not already present in the pool or chain, and the pool is under its soft
// cap.
func (p *Pool) Submit(e entry.Entry) error {
	if e.Validation.Decision != validator.Valid {
		return ErrNotValidated
	}

	h, err := e.DuplicateKey()
	if err != nil {
		return err
	}
	hashHex := h.String()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.byHash[hashHex] {
		return ErrDuplicate
	}
	if p.chain != nil && p.chain.ContainsHash(hashHex) {
		return ErrDuplicate
	}
	if len(p.entries) >= p.softCap {
		return ErrPendingFull
	}

	p.entries = append(p.entries, e)
	p.byHash[hashHex] = true
	return nil
}

// Snapshot returns a copy-on-read snapshot of the pool's current contents.
func (p *Pool) Snapshot() []entry.Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]entry.Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Len reports the current pool size.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Drain atomically removes and returns all entries, clearing the pool.
// Atomic with respect to concurrent Submit: a Submit either lands before
// or after a Drain, never straddling it.
func (p *Pool) Drain() []entry.Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.entries
	p.entries = make([]entry.Entry, 0)
	p.byHash = make(map[string]bool)
	return out
}

// Return puts entries back at the head of the pool, preserving their
// relative order, for use when a mine attempt fails after draining.
func (p *Pool) Return(entries []entry.Entry) {
	if len(entries) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	merged := make([]entry.Entry, 0, len(entries)+len(p.entries))
	merged = append(merged, entries...)
	merged = append(merged, p.entries...)
	p.entries = merged
	for _, e := range entries {
		if h, err := e.DuplicateKey(); err == nil {
			p.byHash[h.String()] = true
		}
	}
}
