// Package search implements C8: case-insensitive, non-regex lexical search
// over entry content, intent, and author, scored by term frequency and
// tie-broken on chain position.
package search

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/natlangchain/ledgercore/pkg/entry"
)

// ErrQueryTooLong is returned when the query exceeds the bounded length
// lexical search enforces before ever touching the sanitizer.
var ErrQueryTooLong = errors.New("search: query exceeds maximum length")

// MaxQueryBytes bounds a lexical query before it is passed through the
// sanitizer, so a pathologically long query never reaches the firewall.
const MaxQueryBytes = 1024

// Sanitizer is the subset of sanitizer.Firewall lexical search depends on:
// every query is screened before it is matched against entry text.
type Sanitizer interface {
	Sanitize(field string, raw string, maxLen int) (string, error)
}

// Candidate is one entry together with its chain position, the unit
// search_lexical ranks and returns references to.
type Candidate struct {
	Ref   entry.Ref
	Entry entry.Entry
}

// Result is one scored match.
type Result struct {
	Ref   entry.Ref
	Score float64
}

// Index performs lexical search over a fixed snapshot of candidates. It
// holds no chain or pool reference itself; the caller is responsible for
// taking a consistent snapshot before calling Search.
type Index struct {
	sanitizer Sanitizer
}

// NewIndex constructs an Index that sanitizes queries through s before
// matching.
func NewIndex(s Sanitizer) *Index {
	return &Index{sanitizer: s}
}

// Search returns up to limit candidates matching query as a case-insensitive
// substring of content, intent, or author, scored by term frequency within
// those fields combined and tie-broken by ascending (block_index,
// entry_offset).
func (ix *Index) Search(ctx context.Context, candidates []Candidate, query string, limit int) ([]Result, error) {
	if len(query) > MaxQueryBytes {
		return nil, ErrQueryTooLong
	}
	clean, err := ix.sanitizer.Sanitize("search_query", query, MaxQueryBytes)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(clean))
	if needle == "" {
		return nil, nil
	}

	var results []Result
	for _, c := range candidates {
		score := termFrequency(needle, c.Entry.Content) +
			termFrequency(needle, c.Entry.Intent) +
			termFrequency(needle, c.Entry.Author)
		if score > 0 {
			results = append(results, Result{Ref: c.Ref, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Ref.BlockIndex != results[j].Ref.BlockIndex {
			return results[i].Ref.BlockIndex < results[j].Ref.BlockIndex
		}
		return results[i].Ref.Offset < results[j].Ref.Offset
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// termFrequency counts non-overlapping occurrences of needle in haystack,
// case-insensitively.
func termFrequency(needle, haystack string) float64 {
	lower := strings.ToLower(haystack)
	if needle == "" {
		return 0
	}
	return float64(strings.Count(lower, needle))
}
