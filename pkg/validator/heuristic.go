package validator

import (
	"context"
	"strings"
)

// Heuristic is a deterministic validator used for tests and degraded mode:
// it admits any well-formed input (non-empty content and author, content
// within a sane length) without calling out to an LLM.
type Heuristic struct {
	ID         string
	MaxContent int
}

// NewHeuristic constructs a Heuristic validator with sensible defaults.
func NewHeuristic(id string) *Heuristic {
	return &Heuristic{ID: id, MaxContent: 64 * 1024}
}

func (h *Heuristic) Decide(ctx context.Context, req Request) (Record, error) {
	content := strings.TrimSpace(req.Content)
	author := strings.TrimSpace(req.Author)

	if content == "" || author == "" || len(req.Content) > h.MaxContent {
		return Record{
			Decision:     Invalid,
			Paraphrase:   "",
			Reasoning:    "missing required field or content too long",
			ValidatorID:  h.ID,
			ModelVersion: "heuristic-v1",
		}, nil
	}

	return Record{
		Decision:     Valid,
		Paraphrase:   content,
		Reasoning:    "well-formed input admitted by heuristic policy",
		ValidatorID:  h.ID,
		ModelVersion: "heuristic-v1",
	}, nil
}
