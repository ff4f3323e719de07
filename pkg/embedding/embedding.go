// Package embedding implements C9: a vector index over sealed entries,
// keyed by chain position, kept approximately in sync with the chain via
// the miner.Notifier hook rather than by blocking chain writes.
package embedding

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/natlangchain/ledgercore/pkg/chainstore"
	"github.com/natlangchain/ledgercore/pkg/entry"
)

// ErrDimensionMismatch is returned when a vector's length does not match
// the index's configured dimension.
var ErrDimensionMismatch = errors.New("embedding: vector dimension does not match index dimension")

// ErrIndexStale names the condition of the index generation trailing the
// chain. Query does not return it: Query always answers from what is
// indexed, and callers read Stale() to learn whether the index lags.
var ErrIndexStale = errors.New("embedding: index is stale relative to the chain")

// Provider is the Embedding Port: a single concrete provider turns
// sanitized entry text into a fixed-dimension vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ChainReader is the subset of chainstore.Store the index needs to rebuild
// itself from scratch.
type ChainReader interface {
	Len() uint64
	Get(index uint64) (chainstore.Block, error)
}

// Match is one scored nearest-neighbor result.
type Match struct {
	Ref        entry.Ref
	Similarity float64
}

// Index is a vector index over (block_index, entry_offset). It is a pure
// derivative of the chain: on any chain mutation the miner calls
// NotifyBlockSealed, which records the new chain length; once the index
// trails the chain by more than one block it reports stale until the caller
// (or a background refresh loop) calls Rebuild or Index for the new entries.
type Index struct {
	mu sync.RWMutex

	provider Provider
	dim      int

	vectors    map[entry.Ref][]float32
	generation uint64
	indexedLen uint64 // chain length as of the last successful Rebuild/IndexVector batch
	chainLen   uint64 // chain length as last reported by NotifyBlockSealed
}

// NewIndex constructs an empty Index bound to provider's dimension.
func NewIndex(provider Provider) *Index {
	return &Index{
		provider: provider,
		dim:      provider.Dimension(),
		vectors:  make(map[entry.Ref][]float32),
	}
}

// NotifyBlockSealed implements miner.Notifier. It does not embed
// synchronously — it only records the new chain length, so Stale() reports
// true once the index trails the chain by more than one block, until a
// caller refreshes.
func (ix *Index) NotifyBlockSealed(b chainstore.Block) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.chainLen = b.Index + 1
}

// IndexVector inserts or replaces the vector for ref.
func (ix *Index) IndexVector(ref entry.Ref, vector []float32) error {
	if len(vector) != ix.dim {
		return ErrDimensionMismatch
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors[ref] = normalize(vector)
	ix.generation++
	if ref.BlockIndex+1 > ix.indexedLen {
		ix.indexedLen = ref.BlockIndex + 1
	}
	return nil
}

// Query returns up to limit nearest neighbors of vector in descending
// cosine-similarity order. The caller decides whether Stale() should
// downgrade this call to lexical search; Query itself always answers from
// whatever is currently indexed.
func (ix *Index) Query(vector []float32, limit int) ([]Match, error) {
	if len(vector) != ix.dim {
		return nil, ErrDimensionMismatch
	}
	q := normalize(vector)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := make([]Match, 0, len(ix.vectors))
	for ref, v := range ix.vectors {
		matches = append(matches, Match{Ref: ref, Similarity: cosine(q, v)})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Rebuild iterates the full chain via reader and repopulates the index
// from scratch, embedding every entry through provider. It clears staleness
// on success.
func (ix *Index) Rebuild(ctx context.Context, reader ChainReader) error {
	n := reader.Len()
	fresh := make(map[entry.Ref][]float32)

	for i := uint64(0); i < n; i++ {
		b, err := reader.Get(i)
		if err != nil {
			return err
		}
		for offset, e := range b.Entries {
			vec, err := ix.provider.Embed(ctx, e.Content)
			if err != nil {
				return err
			}
			if len(vec) != ix.dim {
				return ErrDimensionMismatch
			}
			fresh[entry.Ref{BlockIndex: b.Index, Offset: offset}] = normalize(vec)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors = fresh
	ix.generation++
	ix.indexedLen = n
	if n > ix.chainLen {
		ix.chainLen = n
	}
	return nil
}

// Similarity embeds a and b through the provider and returns their cosine
// similarity, for use by pkg/contract's semantic scoring.
func (ix *Index) Similarity(ctx context.Context, a, b string) (float64, error) {
	va, err := ix.provider.Embed(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := ix.provider.Embed(ctx, b)
	if err != nil {
		return 0, err
	}
	return cosine(normalize(va), normalize(vb)), nil
}

// Stale reports whether the index trails the chain by more than the
// tolerated one-generation lag (one sealed block not yet reflected in the
// index).
func (ix *Index) Stale() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.chainLen > ix.indexedLen+1
}

// Generation reports the current index generation counter, for
// observability.
func (ix *Index) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.generation
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
