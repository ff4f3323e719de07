package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/natlangchain/ledgercore/pkg/canon"
	"github.com/natlangchain/ledgercore/pkg/entry"
	"github.com/natlangchain/ledgercore/pkg/validator"
)

type fakeExtractor struct {
	decision validator.Decision
	err      error
}

func (f fakeExtractor) Decide(ctx context.Context, req validator.Request) (validator.Record, error) {
	if f.err != nil {
		return validator.Record{}, f.err
	}
	return validator.Record{Decision: f.decision}, nil
}

func offerEntry(author, obligation, currency string, value int64) entry.Entry {
	reg := DefaultRegistry()
	return entry.Entry{
		Author: author,
		Metadata: map[string]canon.MetadataValue{
			reg.TypeKey():      canon.StringMeta(string(KindOffer)),
			reg.ObligationKey(): canon.StringMeta(obligation),
			reg.CurrencyKey():   canon.StringMeta(currency),
			reg.ValueKey():      canon.IntMeta(value),
		},
	}
}

func seekEntry(author, obligation, currency string, value int64) entry.Entry {
	reg := DefaultRegistry()
	return entry.Entry{
		Author: author,
		Metadata: map[string]canon.MetadataValue{
			reg.TypeKey():      canon.StringMeta(string(KindSeek)),
			reg.ObligationKey(): canon.StringMeta(obligation),
			reg.CurrencyKey():   canon.StringMeta(currency),
			reg.ValueKey():      canon.IntMeta(value),
		},
	}
}

func TestParseReturnsNilForUntaggedEntry(t *testing.T) {
	p := NewParser(fakeExtractor{decision: validator.Valid}, DefaultRegistry())
	terms, err := p.Parse(context.Background(), entry.Entry{Content: "just a statement"})
	require.NoError(t, err)
	require.Nil(t, terms)
}

func TestParseReturnsNilForUnknownKind(t *testing.T) {
	reg := DefaultRegistry()
	p := NewParser(fakeExtractor{decision: validator.Valid}, reg)
	e := entry.Entry{Metadata: map[string]canon.MetadataValue{
		reg.TypeKey(): canon.StringMeta("NOT_A_KIND"),
	}}
	terms, err := p.Parse(context.Background(), e)
	require.NoError(t, err)
	require.Nil(t, terms)
}

func TestParseExtractsTermsFromMetadata(t *testing.T) {
	reg := DefaultRegistry()
	p := NewParser(fakeExtractor{decision: validator.Valid}, reg)
	e := offerEntry("alice", "deliver 10 widgets", "USD", 100)

	terms, err := p.Parse(context.Background(), e)
	require.NoError(t, err)
	require.NotNil(t, terms)
	require.Equal(t, KindOffer, terms.Kind)
	require.Equal(t, "deliver 10 widgets", terms.Obligation)
	require.Equal(t, "USD", terms.Currency)
	require.Equal(t, float64(100), terms.Value)
}

func TestParsePropagatesValidatorError(t *testing.T) {
	reg := DefaultRegistry()
	wantErr := require.New(t)
	p := NewParser(fakeExtractor{err: validator.ErrValidatorUnavailable}, reg)
	e := offerEntry("alice", "x", "USD", 1)

	terms, err := p.Parse(context.Background(), e)
	wantErr.ErrorIs(err, validator.ErrValidatorUnavailable)
	wantErr.Nil(terms)
}

func TestParseReturnsNilWhenValidatorRejects(t *testing.T) {
	reg := DefaultRegistry()
	p := NewParser(fakeExtractor{decision: validator.Invalid}, reg)
	e := offerEntry("alice", "x", "USD", 1)

	terms, err := p.Parse(context.Background(), e)
	require.NoError(t, err)
	require.Nil(t, terms)
}

type fixedSimilarity struct {
	score float64
}

func (f fixedSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	return f.score, nil
}

func TestFindMatchesPairsOffersWithSeeksAndRanksByScore(t *testing.T) {
	reg := DefaultRegistry()
	parser := NewParser(fakeExtractor{decision: validator.Valid}, reg)
	matcher := NewMatcher(parser)

	candidates := []Candidate{
		{Ref: entry.Ref{BlockIndex: 1}, Entry: offerEntry("alice", "deliver widgets", "USD", 100)},
		{Ref: entry.Ref{BlockIndex: 2}, Entry: seekEntry("bob", "need widgets", "USD", 100)},
		{Ref: entry.Ref{BlockIndex: 3}, Entry: seekEntry("carol", "need widgets", "EUR", 500)},
	}

	matches, err := matcher.FindMatches(context.Background(), candidates, fixedSimilarity{score: 0.8})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// Matching currency and equal value scores highest.
	require.Equal(t, entry.Ref{BlockIndex: 2}, matches[0].Seek)
	require.Equal(t, entry.Ref{BlockIndex: 3}, matches[1].Seek)
	require.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestFindMatchesDegradesToTermScoreWithoutSemanticScorer(t *testing.T) {
	reg := DefaultRegistry()
	parser := NewParser(fakeExtractor{decision: validator.Valid}, reg)
	matcher := NewMatcher(parser)

	candidates := []Candidate{
		{Ref: entry.Ref{BlockIndex: 1}, Entry: offerEntry("alice", "deliver widgets", "USD", 100)},
		{Ref: entry.Ref{BlockIndex: 2}, Entry: seekEntry("bob", "need widgets", "USD", 100)},
	}

	matches, err := matcher.FindMatches(context.Background(), candidates, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.InDelta(t, 0.3, matches[0].Score, 1e-9)
}

func TestRegistryRegisterKindExtendsVocabulary(t *testing.T) {
	reg := DefaultRegistry()
	require.False(t, reg.IsKnownKind(Kind("AMENDMENT")))
	reg.RegisterKind(Kind("AMENDMENT"))
	require.True(t, reg.IsKnownKind(Kind("AMENDMENT")))
}
