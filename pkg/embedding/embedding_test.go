package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/natlangchain/ledgercore/pkg/chainstore"
	"github.com/natlangchain/ledgercore/pkg/entry"
)

type fakeProvider struct {
	dim     int
	vectors map[string][]float32
}

func (p fakeProvider) Dimension() int { return p.dim }

func (p fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := p.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, p.dim), nil
}

func TestIndexVectorRejectsWrongDimension(t *testing.T) {
	ix := NewIndex(fakeProvider{dim: 4})
	err := ix.IndexVector(entry.Ref{}, []float32{1, 2})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQueryRanksByCosineSimilarity(t *testing.T) {
	ix := NewIndex(fakeProvider{dim: 2})
	require.NoError(t, ix.IndexVector(entry.Ref{BlockIndex: 1, Offset: 0}, []float32{1, 0}))
	require.NoError(t, ix.IndexVector(entry.Ref{BlockIndex: 2, Offset: 0}, []float32{0, 1}))
	require.NoError(t, ix.IndexVector(entry.Ref{BlockIndex: 3, Offset: 0}, []float32{0.9, 0.1}))

	matches, err := ix.Query([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, uint64(1), matches[0].Ref.BlockIndex)
	require.Equal(t, uint64(3), matches[1].Ref.BlockIndex)
}

type fakeChain struct {
	blocks []chainstore.Block
}

func (c fakeChain) Len() uint64 { return uint64(len(c.blocks)) }

func (c fakeChain) Get(index uint64) (chainstore.Block, error) {
	return c.blocks[index], nil
}

func TestRebuildFromChainPopulatesAllEntries(t *testing.T) {
	chain := fakeChain{blocks: []chainstore.Block{
		{Index: 0, Entries: []entry.Entry{{Content: "a"}, {Content: "b"}}},
		{Index: 1, Entries: []entry.Entry{{Content: "c"}}},
	}}
	ix := NewIndex(fakeProvider{dim: 3})

	require.NoError(t, ix.Rebuild(context.Background(), chain))

	matches, err := ix.Query([]float32{0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	require.False(t, ix.Stale())
}

func TestNotifyBlockSealedMarksStaleUntilRebuilt(t *testing.T) {
	ix := NewIndex(fakeProvider{dim: 2})
	require.False(t, ix.Stale(), "a fresh index with no chain yet is not stale")

	ix.NotifyBlockSealed(chainstore.Block{Index: 5})
	require.True(t, ix.Stale())

	chain := fakeChain{blocks: make([]chainstore.Block, 6)}
	for i := range chain.blocks {
		chain.blocks[i] = chainstore.Block{Index: uint64(i)}
	}
	require.NoError(t, ix.Rebuild(context.Background(), chain))
	require.False(t, ix.Stale())
}
