package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/natlangchain/ledgercore/pkg/entry"
)

type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(field, raw string, maxLen int) (string, error) {
	if len(raw) > maxLen {
		return "", ErrQueryTooLong
	}
	return raw, nil
}

func candidate(blockIdx uint64, offset int, content, intent, author string) Candidate {
	return Candidate{
		Ref: entry.Ref{BlockIndex: blockIdx, Offset: offset},
		Entry: entry.Entry{
			Content:   content,
			Intent:    intent,
			Author:    author,
			Timestamp: time.Unix(0, 0).UTC(),
		},
	}
}

func TestSearchMatchesCaseInsensitiveAcrossFields(t *testing.T) {
	ix := NewIndex(passthroughSanitizer{})
	candidates := []Candidate{
		candidate(0, 0, "The Weather is Sunny", "report", "alice"),
		candidate(0, 1, "no relevant content here", "other", "bob"),
		candidate(1, 0, "weather weather weather", "forecast", "carol"),
	}

	results, err := ix.Search(context.Background(), candidates, "WEATHER", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, uint64(1), results[0].Ref.BlockIndex) // higher term frequency ranks first
	require.Equal(t, uint64(0), results[1].Ref.BlockIndex)
}

func TestSearchTieBreaksByChainPosition(t *testing.T) {
	ix := NewIndex(passthroughSanitizer{})
	candidates := []Candidate{
		candidate(2, 0, "alpha", "x", "a"),
		candidate(1, 5, "alpha", "x", "a"),
		candidate(1, 2, "alpha", "x", "a"),
	}

	results, err := ix.Search(context.Background(), candidates, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, entry.Ref{BlockIndex: 1, Offset: 2}, results[0].Ref)
	require.Equal(t, entry.Ref{BlockIndex: 1, Offset: 5}, results[1].Ref)
	require.Equal(t, entry.Ref{BlockIndex: 2, Offset: 0}, results[2].Ref)
}

func TestSearchRespectsLimit(t *testing.T) {
	ix := NewIndex(passthroughSanitizer{})
	var candidates []Candidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, candidate(uint64(i), 0, "match", "x", "a"))
	}

	results, err := ix.Search(context.Background(), candidates, "match", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestSearchEmptyQueryReturnsNothing(t *testing.T) {
	ix := NewIndex(passthroughSanitizer{})
	results, err := ix.Search(context.Background(), []Candidate{candidate(0, 0, "x", "y", "z")}, "   ", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}
