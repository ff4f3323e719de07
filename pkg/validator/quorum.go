package validator

import (
	"context"
	"fmt"
	"sync"
)

// ValidateThreshold reports whether approveCount/totalCount meets or
// exceeds threshold (e.g. 2.0/3.0 for a 2/3 supermajority).
func ValidateThreshold(approveCount, totalCount int, threshold float64) bool {
	if totalCount == 0 {
		return false
	}
	return float64(approveCount)/float64(totalCount) >= threshold
}

// CalculateRequiredCount returns the minimum vote count needed to meet
// threshold out of total, with at least one required whenever total > 0.
func CalculateRequiredCount(total int, threshold float64) int {
	required := int(float64(total) * threshold)
	if total > 0 && !ValidateThreshold(required, total, threshold) {
		required++
	}
	if required == 0 && total > 0 {
		required = 1
	}
	return required
}

// IsByzantineFaultTolerant reports whether a validator set of the given
// size can tolerate maxFaults Byzantine failures (n >= 3f+1).
func IsByzantineFaultTolerant(totalValidators, maxFaults int) bool {
	return totalValidators >= 3*maxFaults+1
}

// Quorum is a Validator that fans a request out to N independent
// validators and takes the majority decision across
// {VALID, NEEDS_CLARIFICATION, INVALID}; a tie favors INVALID.
type Quorum struct {
	ID         string
	Members    []Validator
}

// NewQuorum constructs a quorum-of-N validator over the given members.
func NewQuorum(id string, members []Validator) *Quorum {
	return &Quorum{ID: id, Members: members}
}

func (q *Quorum) Decide(ctx context.Context, req Request) (Record, error) {
	if len(q.Members) == 0 {
		return Record{}, fmt.Errorf("%w: quorum has no members", ErrValidatorUnavailable)
	}

	records := make([]Record, len(q.Members))
	errs := make([]error, len(q.Members))

	var wg sync.WaitGroup
	for i, m := range q.Members {
		wg.Add(1)
		go func(i int, m Validator) {
			defer wg.Done()
			rec, err := m.Decide(ctx, req)
			records[i] = rec
			errs[i] = err
		}(i, m)
	}
	wg.Wait()

	counts := map[Decision]int{}
	var representative Record
	haveRepresentative := false
	for i, err := range errs {
		if err != nil {
			continue
		}
		counts[records[i].Decision]++
		if !haveRepresentative || records[i].Decision == Valid {
			representative = records[i]
			haveRepresentative = true
		}
	}

	if !haveRepresentative {
		return Record{}, fmt.Errorf("%w: all quorum members failed", ErrValidatorUnavailable)
	}

	decision := majority(counts)

	return Record{
		Decision:     decision,
		Paraphrase:   representative.Paraphrase,
		Reasoning:    fmt.Sprintf("quorum of %d: %v", len(q.Members), counts),
		ValidatorID:  q.ID,
		ModelVersion: "quorum-v1",
	}, nil
}

// majority picks the decision with the most votes; ties — including a
// three-way tie or a tie between VALID and any other decision — resolve
// to INVALID, per the fail-closed admission policy.
func majority(counts map[Decision]int) Decision {
	best := Invalid
	bestCount := -1
	tied := false

	for _, d := range []Decision{Valid, NeedsClarification, Invalid} {
		c := counts[d]
		if c > bestCount {
			best = d
			bestCount = c
			tied = false
		} else if c == bestCount {
			tied = true
		}
	}

	if tied {
		return Invalid
	}
	return best
}
