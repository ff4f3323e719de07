// Package contract implements C7: a best-effort sub-protocol riding on top
// of entries whose metadata marks them as contract-related. Parsing and
// matching are both advisory — nothing here is a consensus or settlement
// mechanism, it only emits candidates for a human or a downstream system
// to act on.
package contract

import (
	"context"
	"strings"

	"github.com/natlangchain/ledgercore/pkg/entry"
	"github.com/natlangchain/ledgercore/pkg/validator"
)

// Kind is the closed set of contract-protocol tags an entry's metadata may
// carry under the registered contract-type key.
type Kind string

const (
	KindOffer    Kind = "OFFER"
	KindSeek     Kind = "SEEK"
	KindProposal Kind = "PROPOSAL"
	KindResponse Kind = "RESPONSE"
	KindClosure  Kind = "CLOSURE"
)

// Terms is a best-effort, non-authoritative extraction of a contract
// entry's structure. Every field may be the zero value if extraction could
// not find it; Terms is never treated as binding.
type Terms struct {
	Kind       Kind
	Parties    []string
	Obligation string
	Conditions []string
	Timeline   string
	Value      float64
	Currency   string
}

// Match pairs an OFFER with a SEEK by compatibility. Score is advisory;
// nothing is committed by producing one.
type Match struct {
	Offer entry.Ref
	Seek  entry.Ref
	Score float64
}

// Candidate is one chain or pool entry together with its position, the
// shape find_matches needs to score pairs and parse needs to extract terms
// from.
type Candidate struct {
	Ref   entry.Ref
	Entry entry.Entry
}

// extractor is the subset of validator.Validator the parser depends on for
// natural-language extraction of contract structure.
type extractor interface {
	Decide(ctx context.Context, req validator.Request) (validator.Record, error)
}

// Parser extracts Terms from entries tagged as contracts, using the
// validator port for the natural-language half of the job. Extraction is
// always best-effort: Parse returns (nil, nil) rather than an error when it
// cannot produce terms, matching the "Option<ContractTerms>, never throws"
// contract.
type Parser struct {
	validator extractor
	registry  *Registry
}

// NewParser constructs a Parser against v for extraction and reg for
// recognizing which metadata keys mark an entry as contract-related.
func NewParser(v extractor, reg *Registry) *Parser {
	return &Parser{validator: v, registry: reg}
}

// Parse returns the best-effort Terms for e, or nil if e is not recognized
// as a contract entry or extraction could not produce usable terms. It
// never returns a non-nil error for malformed or ambiguous input — only
// for a validator call that could not complete at all.
func (p *Parser) Parse(ctx context.Context, e entry.Entry) (*Terms, error) {
	kindVal, ok := e.Metadata[p.registry.TypeKey()]
	if !ok || !kindVal.IsString {
		return nil, nil
	}
	kind := Kind(kindVal.Str)
	if !p.registry.IsKnownKind(kind) {
		return nil, nil
	}

	req := validator.Request{Content: e.Content, Intent: e.Intent, Author: e.Author}
	rec, err := p.validator.Decide(ctx, req)
	if err != nil {
		return nil, err
	}
	if rec.Decision != validator.Valid {
		return nil, nil
	}

	terms := &Terms{Kind: kind, Parties: []string{e.Author}}
	if v, ok := e.Metadata[p.registry.ObligationKey()]; ok && v.IsString {
		terms.Obligation = v.Str
	}
	if v, ok := e.Metadata[p.registry.TimelineKey()]; ok && v.IsString {
		terms.Timeline = v.Str
	}
	if v, ok := e.Metadata[p.registry.CurrencyKey()]; ok && v.IsString {
		terms.Currency = v.Str
	}
	if v, ok := e.Metadata[p.registry.ValueKey()]; ok && !v.IsString {
		terms.Value = float64(v.Int)
	}
	if v, ok := e.Metadata[p.registry.ConditionsKey()]; ok && v.IsString {
		terms.Conditions = splitConditions(v.Str)
	}
	return terms, nil
}

func splitConditions(raw string) []string {
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Matcher pairs OFFERs with SEEKs across a snapshot of candidates. It holds
// no chain or pool reference itself — find_matches is given a snapshot by
// the caller so matching never blocks a writer lane.
type Matcher struct {
	parser *Parser
}

// NewMatcher constructs a Matcher using p to extract Terms from candidates.
func NewMatcher(p *Parser) *Matcher { return &Matcher{parser: p} }

// semanticScorer scores how semantically compatible two pieces of contract
// text are, in [0,1]. The embedding index (C9) implements this.
type semanticScorer interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// FindMatches pairs every OFFER in candidates with every SEEK, scoring each
// pair as 0.7*semantic + 0.3*term-compatibility, and returns all pairs
// sorted by descending score. sem may be nil, in which case the semantic
// term contributes 0 and the score is 0.3*term-compatibility.
func (m *Matcher) FindMatches(ctx context.Context, candidates []Candidate, sem semanticScorer) ([]Match, error) {
	var offers, seeks []Candidate
	termsByRef := make(map[entry.Ref]*Terms)

	for _, c := range candidates {
		terms, err := m.parser.Parse(ctx, c.Entry)
		if err != nil {
			return nil, err
		}
		if terms == nil {
			continue
		}
		termsByRef[c.Ref] = terms
		switch terms.Kind {
		case KindOffer:
			offers = append(offers, c)
		case KindSeek:
			seeks = append(seeks, c)
		}
	}

	var matches []Match
	for _, o := range offers {
		for _, s := range seeks {
			oTerms, sTerms := termsByRef[o.Ref], termsByRef[s.Ref]

			var semScore float64
			if sem != nil {
				var err error
				semScore, err = sem.Similarity(ctx, o.Entry.Content, s.Entry.Content)
				if err != nil {
					semScore = 0
				}
			}
			termScore := termCompatibility(oTerms, sTerms)
			score := 0.7*semScore + 0.3*termScore
			matches = append(matches, Match{Offer: o.Ref, Seek: s.Ref, Score: score})
		}
	}

	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Score > matches[j-1].Score; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	return matches, nil
}

// termCompatibility compares currency and value proximity between an offer
// and a seek, returning a score in [0,1].
func termCompatibility(offer, seek *Terms) float64 {
	if offer == nil || seek == nil {
		return 0
	}
	score := 0.0
	weight := 0.0

	weight++
	if offer.Currency != "" && offer.Currency == seek.Currency {
		score++
	}

	weight++
	if offer.Value > 0 && seek.Value > 0 {
		lo, hi := offer.Value, seek.Value
		if lo > hi {
			lo, hi = hi, lo
		}
		score += lo / hi
	}

	if weight == 0 {
		return 0
	}
	return score / weight
}
