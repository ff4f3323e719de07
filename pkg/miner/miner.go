// Package miner implements C6: it drains the pending pool, seals the
// drained entries into the next block under a difficulty policy, and
// appends the sealed block through the chain store. It also runs a
// background scheduler that triggers mining on cadence or on demand
// (see scheduler.go), mirroring the teacher's batch.Scheduler state
// machine repointed at sealing instead of anchoring.
package miner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/natlangchain/ledgercore/pkg/canon"
	"github.com/natlangchain/ledgercore/pkg/chainstore"
	"github.com/natlangchain/ledgercore/pkg/entry"
)

var (
	// ErrNothingToMine is returned when the pending pool is empty at mine
	// time.
	ErrNothingToMine = errors.New("miner: pending pool is empty")
	// ErrCancelled is returned when the cooperative cancellation token
	// fires between nonce attempts.
	ErrCancelled = errors.New("miner: mining cancelled")
	// ErrMiningBudgetExceeded is returned when mining does not converge
	// within the configured wall-clock budget.
	ErrMiningBudgetExceeded = errors.New("miner: mining budget exceeded")
)

// Pool is the subset of pending.Pool the miner depends on.
type Pool interface {
	Drain() []entry.Entry
	Return(entries []entry.Entry)
}

// Notifier is notified after a block is successfully sealed and appended,
// so derivative caches (the embedding index, C9) can refresh asynchronously
// without the miner depending on their concrete type.
type Notifier interface {
	NotifyBlockSealed(b chainstore.Block)
}

// Miner seals pending entries into the next block under a difficulty
// policy. It holds the pool's writer lane only inside Drain and Return and
// the chain store's only inside Append; neither is held during the nonce
// search. If another Mine appends first, Append fails with ErrStaleTip and
// the drained entries go back to the pool.
type Miner struct {
	pool       Pool
	store      chainstore.Store
	difficulty canon.DifficultyPredicate
	notifiers  []Notifier
	budget     time.Duration
}

// New constructs a Miner. budget <= 0 means no wall-clock budget.
func New(pool Pool, store chainstore.Store, difficulty canon.DifficultyPredicate, budget time.Duration) *Miner {
	return &Miner{pool: pool, store: store, difficulty: difficulty, budget: budget}
}

// AddNotifier registers a collaborator to be told about newly sealed
// blocks. Not safe for concurrent use with Mine; register before starting
// the scheduler.
func (m *Miner) AddNotifier(n Notifier) { m.notifiers = append(m.notifiers, n) }

// Mine drains the pending pool, seals a candidate block, and appends it.
// On any failure after draining, the drained entries are returned to the
// head of the pool preserving order — drain is conditional in effect,
// never silently losing entries.
func (m *Miner) Mine(ctx context.Context, minerID string) (chainstore.Block, error) {
	drained := m.pool.Drain()
	if len(drained) == 0 {
		return chainstore.Block{}, ErrNothingToMine
	}

	block, err := m.seal(ctx, drained)
	if err != nil {
		m.pool.Return(drained)
		return chainstore.Block{}, err
	}

	if err := m.store.Append(block); err != nil {
		m.pool.Return(drained)
		if errors.Is(err, chainstore.ErrStaleTip) {
			return chainstore.Block{}, fmt.Errorf("miner: %w", chainstore.ErrStaleTip)
		}
		return chainstore.Block{}, err
	}

	for _, n := range m.notifiers {
		n.NotifyBlockSealed(block)
	}
	return block, nil
}

// seal builds a candidate block atop the current tip and searches for a
// nonce satisfying the difficulty predicate, honoring ctx cancellation and
// the miner's wall-clock budget between attempts.
func (m *Miner) seal(ctx context.Context, entries []entry.Entry) (chainstore.Block, error) {
	tip, err := m.store.Tip()
	if err != nil {
		return chainstore.Block{}, err
	}

	candidate := chainstore.Block{
		Index:        tip.Index + 1,
		Timestamp:    time.Now().UTC(),
		PreviousHash: tip.Hash,
		Entries:      entries,
		Nonce:        0,
	}

	deadline := time.Time{}
	if m.budget > 0 {
		deadline = time.Now().Add(m.budget)
	}

	for nonce := uint64(0); ; nonce++ {
		select {
		case <-ctx.Done():
			return chainstore.Block{}, ErrCancelled
		default:
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return chainstore.Block{}, ErrMiningBudgetExceeded
		}

		candidate.Nonce = nonce
		h, err := candidate.ComputeHash()
		if err != nil {
			return chainstore.Block{}, err
		}
		if m.difficulty(h) {
			candidate.Hash = h
			return candidate, nil
		}
	}
}
