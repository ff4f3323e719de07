// Package core implements C11: the single dispatch surface consumed by any
// transport adapter (HTTP, CLI, whatever is wired at the edge). It is the
// only place forbidden-metadata rejection and authorization checks apply —
// every collaborator package underneath trusts its caller.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/natlangchain/ledgercore/pkg/canon"
	"github.com/natlangchain/ledgercore/pkg/chainstore"
	"github.com/natlangchain/ledgercore/pkg/contract"
	"github.com/natlangchain/ledgercore/pkg/drift"
	"github.com/natlangchain/ledgercore/pkg/embedding"
	"github.com/natlangchain/ledgercore/pkg/entry"
	"github.com/natlangchain/ledgercore/pkg/merkle"
	"github.com/natlangchain/ledgercore/pkg/miner"
	"github.com/natlangchain/ledgercore/pkg/observability"
	"github.com/natlangchain/ledgercore/pkg/pending"
	"github.com/natlangchain/ledgercore/pkg/sanitizer"
	"github.com/natlangchain/ledgercore/pkg/search"
	"github.com/natlangchain/ledgercore/pkg/validator"
)

// Sentinel errors for the dispatch surface. Collaborator packages raise
// their own more specific sentinels; these wrap them at the boundary so a
// caller only needs to know this package's taxonomy.
var (
	ErrUnauthorized      = errors.New("core: caller is not authorized for this operation")
	ErrForbiddenMetadata = errors.New("core: metadata carries a system-owned key")
)

// RequestContext carries the caller identity alongside the standard
// context.Context cancellation token and deadline that every dispatch
// operation takes.
type RequestContext struct {
	CallerID string
}

// Authorizer decides whether a caller may invoke a given dispatch
// operation. The zero value of AllowAll satisfies this trivially; a real
// deployment wires in its own policy.
type Authorizer interface {
	Authorize(rc RequestContext, operation string) error
}

// AllowAll is the default Authorizer: every caller may invoke every
// operation. Suitable for single-tenant or trusted-network deployments.
type AllowAll struct{}

// Authorize always succeeds.
func (AllowAll) Authorize(RequestContext, string) error { return nil }

// ContractCandidateSource supplies the snapshot of entries find_matches and
// parse_contract reason over — the pending pool, the sealed chain, or both,
// at the dispatch layer's discretion.
type ContractCandidateSource interface {
	Candidates(ctx context.Context) ([]contract.Candidate, error)
}

// Core wires every collaborator package behind the dispatch surface.
type Core struct {
	sanitizer  *sanitizer.Firewall
	validator  validator.Validator
	pool       *pending.Pool
	store      chainstore.Store
	miner      *miner.Miner
	search     *search.Index
	embeddings *embedding.Index
	parser     *contract.Parser
	matcher    *contract.Matcher
	drift      *drift.Detector
	candidates ContractCandidateSource
	authz      Authorizer
	metrics    *observability.Metrics
	logger     *log.Logger
}

// Config groups the collaborators a Core is constructed from. All fields
// are required except Authz (defaults to AllowAll), Metrics (nil disables
// metric recording), and Embeddings (nil makes SearchSemantic report
// Degraded).
type Config struct {
	Sanitizer  *sanitizer.Firewall
	Validator  validator.Validator
	Pool       *pending.Pool
	Store      chainstore.Store
	Miner      *miner.Miner
	Search     *search.Index
	Embeddings *embedding.Index
	Parser     *contract.Parser
	Matcher    *contract.Matcher
	Drift      *drift.Detector
	Candidates ContractCandidateSource
	Authz      Authorizer
	Metrics    *observability.Metrics
}

// New constructs a Core from cfg.
func New(cfg Config) *Core {
	authz := cfg.Authz
	if authz == nil {
		authz = AllowAll{}
	}
	return &Core{
		sanitizer:  cfg.Sanitizer,
		validator:  cfg.Validator,
		pool:       cfg.Pool,
		store:      cfg.Store,
		miner:      cfg.Miner,
		search:     cfg.Search,
		embeddings: cfg.Embeddings,
		parser:     cfg.Parser,
		matcher:    cfg.Matcher,
		drift:      cfg.Drift,
		candidates: cfg.Candidates,
		authz:      authz,
		metrics:    cfg.Metrics,
		logger:     observability.Logger("core"),
	}
}

// SubmitEntryRequest is the caller-supplied shape for submit_entry, before
// any system-owned field is attached.
type SubmitEntryRequest struct {
	Content  string
	Author   string
	Intent   string
	Metadata map[string]canon.MetadataValue
}

// SubmitEntryResult reports the outcome of submit_entry: either the entry
// reached the pending pool, or it was rejected with a reason.
type SubmitEntryResult struct {
	Accepted   bool
	Record     validator.Record
	RejectedAt string // "sanitizer" | "validator" | "pool"
}

// SubmitEntry runs a candidate entry through sanitize -> validate -> pool
// submission. Sanitizer and validator failures are reported to the caller
// and never persisted.
func (c *Core) SubmitEntry(ctx context.Context, rc RequestContext, req SubmitEntryRequest) (SubmitEntryResult, error) {
	if err := c.authz.Authorize(rc, "submit_entry"); err != nil {
		return SubmitEntryResult{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	for k := range req.Metadata {
		if entry.IsForbiddenKey(k) {
			return SubmitEntryResult{}, fmt.Errorf("%w: %q", ErrForbiddenMetadata, k)
		}
	}
	if v, ok := req.Metadata[canon.ExternalRefKey]; ok && v.IsString {
		if err := canon.ValidateExternalRef(v.Str); err != nil {
			return SubmitEntryResult{}, err
		}
	}

	content, err := c.sanitizer.Sanitize("content", req.Content, entry.MaxContentBytes)
	if err != nil {
		c.logEvent("entry-rejected", fmt.Sprintf("reason=sanitizer-content %s", sanitizerLogFields(err)))
		return SubmitEntryResult{RejectedAt: "sanitizer"}, nil
	}
	author, err := c.sanitizer.Sanitize("author", req.Author, entry.MaxAuthorBytes)
	if err != nil {
		c.logEvent("entry-rejected", fmt.Sprintf("reason=sanitizer-author %s", sanitizerLogFields(err)))
		return SubmitEntryResult{RejectedAt: "sanitizer"}, nil
	}
	intent, err := c.sanitizer.Sanitize("intent", req.Intent, entry.MaxIntentBytes)
	if err != nil {
		c.logEvent("entry-rejected", fmt.Sprintf("reason=sanitizer-intent %s", sanitizerLogFields(err)))
		return SubmitEntryResult{RejectedAt: "sanitizer"}, nil
	}

	rec, err := c.validator.Decide(ctx, validator.Request{Content: content, Author: author, Intent: intent})
	if err != nil {
		if c.metrics != nil {
			c.metrics.EntriesRejected.WithLabelValues("validator-unavailable").Inc()
		}
		c.logEvent("validator-unavailable", fmt.Sprintf("err=%v", err))
		return SubmitEntryResult{RejectedAt: "validator"}, nil
	}
	if c.metrics != nil {
		c.metrics.ValidatorDecisions.WithLabelValues(string(rec.Decision)).Inc()
	}
	if rec.Decision != validator.Valid {
		if c.metrics != nil {
			c.metrics.EntriesRejected.WithLabelValues("validator-decision").Inc()
		}
		c.logEvent("entry-rejected", fmt.Sprintf("reason=validator-decision decision=%s", rec.Decision))
		return SubmitEntryResult{Record: rec, RejectedAt: "validator"}, nil
	}

	e := entry.Entry{
		Content:    content,
		Author:     author,
		Intent:     intent,
		Timestamp:  time.Now().UTC(),
		Metadata:   req.Metadata,
		Validation: rec,
	}
	if err := c.pool.Submit(e); err != nil {
		if c.metrics != nil {
			c.metrics.EntriesRejected.WithLabelValues("pool").Inc()
		}
		c.logEvent("entry-rejected", fmt.Sprintf("reason=pool err=%v", err))
		return SubmitEntryResult{Record: rec, RejectedAt: "pool"}, fmt.Errorf("pool: %w", err)
	}

	if c.metrics != nil {
		c.metrics.PendingPoolDepth.Set(float64(c.pool.Len()))
	}
	c.logEvent("entry-admitted", fmt.Sprintf("author=%s", author))
	return SubmitEntryResult{Accepted: true, Record: rec}, nil
}

// ValidateOnly runs sanitize -> validate without ever touching the pending
// pool, for callers that want a decision without committing to admission.
func (c *Core) ValidateOnly(ctx context.Context, rc RequestContext, req SubmitEntryRequest) (validator.Record, error) {
	if err := c.authz.Authorize(rc, "validate_only"); err != nil {
		return validator.Record{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	content, err := c.sanitizer.Sanitize("content", req.Content, entry.MaxContentBytes)
	if err != nil {
		return validator.Record{}, err
	}
	author, err := c.sanitizer.Sanitize("author", req.Author, entry.MaxAuthorBytes)
	if err != nil {
		return validator.Record{}, err
	}
	intent, err := c.sanitizer.Sanitize("intent", req.Intent, entry.MaxIntentBytes)
	if err != nil {
		return validator.Record{}, err
	}
	return c.validator.Decide(ctx, validator.Request{Content: content, Author: author, Intent: intent})
}

// Mine triggers an out-of-band mine attempt, draining the pending pool into
// a newly sealed block.
func (c *Core) Mine(ctx context.Context, rc RequestContext) (chainstore.Block, error) {
	if err := c.authz.Authorize(rc, "mine"); err != nil {
		return chainstore.Block{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	start := time.Now()
	block, err := c.miner.Mine(ctx, rc.CallerID)
	if c.metrics != nil {
		c.metrics.MiningDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if errors.Is(err, chainstore.ErrChainBroken) {
			c.logEvent("integrity-failure", fmt.Sprintf("err=%v", err))
		}
		return chainstore.Block{}, err
	}
	if c.metrics != nil {
		c.metrics.BlocksSealed.Inc()
		c.metrics.PendingPoolDepth.Set(float64(c.pool.Len()))
	}
	c.logEvent("block-sealed", fmt.Sprintf("index=%d entries=%d", block.Index, len(block.Entries)))
	return block, nil
}

// ChainInfo summarizes the chain's current state.
type ChainInfo struct {
	Length  uint64
	TipHash canon.Hash
	TipIdx  uint64
}

// GetChainInfo reports the chain's current length and tip.
func (c *Core) GetChainInfo(ctx context.Context, rc RequestContext) (ChainInfo, error) {
	if err := c.authz.Authorize(rc, "get_chain_info"); err != nil {
		return ChainInfo{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	tip, err := c.store.Tip()
	if err != nil {
		return ChainInfo{}, err
	}
	return ChainInfo{Length: c.store.Len(), TipHash: tip.Hash, TipIdx: tip.Index}, nil
}

// GetBlock returns the block at index.
func (c *Core) GetBlock(ctx context.Context, rc RequestContext, index uint64) (chainstore.Block, error) {
	if err := c.authz.Authorize(rc, "get_block"); err != nil {
		return chainstore.Block{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return c.store.Get(index)
}

// InclusionReceipt is the portable result of get_inclusion_receipt: a
// Merkle proof that the entry at ref is included in the block whose hash
// is BlockHash. The proof verifies against its own MerkleRoot, which
// BlockHash does not commit to.
type InclusionReceipt struct {
	Proof     *merkle.InclusionProof
	BlockHash canon.Hash
}

// GetInclusionReceipt builds an inclusion proof for the entry at ref,
// reading the containing block from the store on demand.
func (c *Core) GetInclusionReceipt(ctx context.Context, rc RequestContext, ref entry.Ref) (InclusionReceipt, error) {
	if err := c.authz.Authorize(rc, "get_inclusion_receipt"); err != nil {
		return InclusionReceipt{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	proof, blockHash, err := chainstore.InclusionReceipt(c.store, ref)
	if err != nil {
		return InclusionReceipt{}, err
	}
	return InclusionReceipt{Proof: proof, BlockHash: blockHash}, nil
}

// ValidateChain walks the full chain checking every invariant.
func (c *Core) ValidateChain(ctx context.Context, rc RequestContext) error {
	if err := c.authz.Authorize(rc, "validate_chain"); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if err := c.store.Verify(); err != nil {
		c.logEvent("integrity-failure", fmt.Sprintf("err=%v", err))
		return err
	}
	return nil
}

// ListPending returns a snapshot of the pending pool.
func (c *Core) ListPending(ctx context.Context, rc RequestContext) ([]entry.Entry, error) {
	if err := c.authz.Authorize(rc, "list_pending"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return c.pool.Snapshot(), nil
}

// SearchLexical runs query through lexical search over the given
// candidates (typically a snapshot of chain + pool assembled by the
// caller).
func (c *Core) SearchLexical(ctx context.Context, rc RequestContext, candidates []search.Candidate, query string, limit int) ([]search.Result, error) {
	if err := c.authz.Authorize(rc, "search_lexical"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return c.search.Search(ctx, candidates, query, limit)
}

// SearchSemanticResult reports whether the semantic index was usable, or
// whether the call degraded to lexical search.
type SearchSemanticResult struct {
	Matches  []embedding.Match
	Degraded bool
}

// SearchSemantic embeds query and searches the embedding index. If the
// index is stale beyond its tolerated lag, it reports Degraded and leaves
// Matches empty instead of returning an error — callers fall back to
// SearchLexical themselves. A stale or unavailable embedding index never
// blocks chain writes.
func (c *Core) SearchSemantic(ctx context.Context, rc RequestContext, queryVector []float32, limit int) (SearchSemanticResult, error) {
	if err := c.authz.Authorize(rc, "search_semantic"); err != nil {
		return SearchSemanticResult{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if c.embeddings == nil || c.embeddings.Stale() {
		if c.metrics != nil {
			c.metrics.EmbeddingStale.Set(1)
		}
		c.logEvent("embedding-stale", "degrading to lexical search")
		return SearchSemanticResult{Degraded: true}, nil
	}
	if c.metrics != nil {
		c.metrics.EmbeddingStale.Set(0)
	}
	matches, err := c.embeddings.Query(queryVector, limit)
	if err != nil {
		return SearchSemanticResult{Degraded: true}, nil
	}
	return SearchSemanticResult{Matches: matches}, nil
}

// FindContractMatches pairs OFFERs with SEEKs over the configured candidate
// source.
func (c *Core) FindContractMatches(ctx context.Context, rc RequestContext) ([]contract.Match, error) {
	if err := c.authz.Authorize(rc, "find_contract_matches"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	cands, err := c.candidates.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	var sem interface {
		Similarity(ctx context.Context, a, b string) (float64, error)
	}
	if c.embeddings != nil && !c.embeddings.Stale() {
		sem = c.embeddings
	}
	return c.matcher.FindMatches(ctx, cands, sem)
}

// ParseContract extracts best-effort contract terms from e.
func (c *Core) ParseContract(ctx context.Context, rc RequestContext, e entry.Entry) (*contract.Terms, error) {
	if err := c.authz.Authorize(rc, "parse_contract"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return c.parser.Parse(ctx, e)
}

// CheckDrift scores how far executionLog has drifted from onChainIntent.
func (c *Core) CheckDrift(ctx context.Context, rc RequestContext, onChainIntent, executionLog string) (drift.Report, error) {
	if err := c.authz.Authorize(rc, "check_drift"); err != nil {
		return drift.Report{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return c.drift.CheckDrift(ctx, onChainIntent, executionLog)
}

func (c *Core) logEvent(event string, detail string) {
	if c.logger == nil {
		return
	}
	c.logger.Printf("event=%s %s", event, detail)
}

// sanitizerLogFields extracts the matched pattern id from a sanitizer
// rejection for the observability event, without ever returning it to the
// caller (sanitizer.InjectionError.Public hides it externally for that
// reason).
func sanitizerLogFields(err error) string {
	var injErr *sanitizer.InjectionError
	if errors.As(err, &injErr) {
		return fmt.Sprintf("pattern_id=%s", injErr.PatternID)
	}
	return fmt.Sprintf("err=%v", err)
}
