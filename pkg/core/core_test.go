package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/natlangchain/ledgercore/pkg/canon"
	"github.com/natlangchain/ledgercore/pkg/chainstore"
	"github.com/natlangchain/ledgercore/pkg/contract"
	"github.com/natlangchain/ledgercore/pkg/drift"
	"github.com/natlangchain/ledgercore/pkg/entry"
	"github.com/natlangchain/ledgercore/pkg/miner"
	"github.com/natlangchain/ledgercore/pkg/pending"
	"github.com/natlangchain/ledgercore/pkg/sanitizer"
	"github.com/natlangchain/ledgercore/pkg/search"
	"github.com/natlangchain/ledgercore/pkg/validator"
)

func newTestCore(t *testing.T) (*Core, chainstore.Store, *pending.Pool) {
	t.Helper()
	table, err := sanitizer.DefaultPatternTable()
	require.NoError(t, err)
	firewall, err := sanitizer.New(table)
	require.NoError(t, err)

	store := chainstore.NewMemoryStore()
	pool := pending.New(10, store)
	v := validator.NewHeuristic("test-validator")
	m := miner.New(pool, store, func(canon.Hash) bool { return true }, 0)
	reg := contract.DefaultRegistry()
	parser := contract.NewParser(v, reg)
	matcher := contract.NewMatcher(parser)
	driftDetector := drift.NewDetector(v, firewall)
	lexIndex := search.NewIndex(firewall)

	c := New(Config{
		Sanitizer:  firewall,
		Validator:  v,
		Pool:       pool,
		Store:      store,
		Miner:      m,
		Search:     lexIndex,
		Parser:     parser,
		Matcher:    matcher,
		Drift:      driftDetector,
		Candidates: noCandidates{},
	})
	return c, store, pool
}

type noCandidates struct{}

func (noCandidates) Candidates(ctx context.Context) ([]contract.Candidate, error) { return nil, nil }

func TestSubmitEntryAdmitsValidContentToPool(t *testing.T) {
	c, _, pool := newTestCore(t)
	rc := RequestContext{CallerID: "alice"}

	result, err := c.SubmitEntry(context.Background(), rc, SubmitEntryRequest{
		Content: "deliver the report by Friday",
		Author:  "alice",
		Intent:  "status update",
	})
	require.NoError(t, err)
	require.True(t, result.Accepted)
	require.Equal(t, 1, pool.Len())
}

func TestSubmitEntryRejectsForbiddenMetadataKey(t *testing.T) {
	c, _, _ := newTestCore(t)
	rc := RequestContext{CallerID: "alice"}

	_, err := c.SubmitEntry(context.Background(), rc, SubmitEntryRequest{
		Content:  "x",
		Author:   "alice",
		Metadata: map[string]canon.MetadataValue{"block_index": canon.IntMeta(1)},
	})
	require.ErrorIs(t, err, ErrForbiddenMetadata)
}

func TestSubmitEntryRejectsInvalidExternalRef(t *testing.T) {
	c, _, _ := newTestCore(t)
	rc := RequestContext{CallerID: "alice"}

	_, err := c.SubmitEntry(context.Background(), rc, SubmitEntryRequest{
		Content: "x",
		Author:  "alice",
		Metadata: map[string]canon.MetadataValue{
			canon.ExternalRefKey: canon.StringMeta("not-an-address"),
		},
	})
	require.ErrorIs(t, err, canon.ErrInvalidExternalRef)
}

func TestSubmitEntryDeniesUnauthorizedCaller(t *testing.T) {
	c, _, _ := newTestCore(t)
	c.authz = denyAll{}
	rc := RequestContext{CallerID: "mallory"}

	_, err := c.SubmitEntry(context.Background(), rc, SubmitEntryRequest{Content: "x", Author: "mallory"})
	require.ErrorIs(t, err, ErrUnauthorized)
}

type denyAll struct{}

func (denyAll) Authorize(RequestContext, string) error { return errors.New("denied") }

func TestMineSealsPendingEntriesIntoBlock(t *testing.T) {
	c, store, _ := newTestCore(t)
	rc := RequestContext{CallerID: "system"}

	_, err := c.SubmitEntry(context.Background(), rc, SubmitEntryRequest{
		Content: "deliver the report by Friday",
		Author:  "alice",
	})
	require.NoError(t, err)

	block, err := c.Mine(context.Background(), rc)
	require.NoError(t, err)
	require.Equal(t, uint64(1), block.Index)
	require.Equal(t, uint64(2), store.Len())
}

func TestSubmitEntryRejectsDuplicateWithPoolErrorRecoverable(t *testing.T) {
	c, _, pool := newTestCore(t)
	rc := RequestContext{CallerID: "alice"}
	req := SubmitEntryRequest{
		Content: "deliver the report by Friday",
		Author:  "alice",
		Intent:  "status update",
	}

	result, err := c.SubmitEntry(context.Background(), rc, req)
	require.NoError(t, err)
	require.True(t, result.Accepted)
	require.Equal(t, 1, pool.Len())

	result, err = c.SubmitEntry(context.Background(), rc, req)
	require.ErrorIs(t, err, pending.ErrDuplicate)
	require.False(t, result.Accepted)
	require.Equal(t, "pool", result.RejectedAt)
	require.Equal(t, 1, pool.Len())
}

func TestSearchSemanticDegradesWithoutEmbeddingIndex(t *testing.T) {
	c, _, _ := newTestCore(t)
	rc := RequestContext{CallerID: "alice"}

	result, err := c.SearchSemantic(context.Background(), rc, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.True(t, result.Degraded)
	require.Empty(t, result.Matches)
}

func TestSearchLexicalFindsMatchingCandidate(t *testing.T) {
	c, _, _ := newTestCore(t)
	rc := RequestContext{CallerID: "alice"}

	candidates := []search.Candidate{
		{Ref: entry.Ref{BlockIndex: 0, Offset: 0}, Entry: entry.Entry{Content: "the weather is sunny"}},
	}
	results, err := c.SearchLexical(context.Background(), rc, candidates, "weather", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestGetChainInfoReportsGenesis(t *testing.T) {
	c, _, _ := newTestCore(t)
	rc := RequestContext{CallerID: "system"}

	info, err := c.GetChainInfo(context.Background(), rc)
	require.NoError(t, err)
	require.Equal(t, uint64(1), info.Length)
	require.Equal(t, uint64(0), info.TipIdx)
}
