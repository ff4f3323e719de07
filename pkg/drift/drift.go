// Package drift implements C10: scoring how far an execution log has
// drifted from the on-chain intent it was supposed to carry out. The
// detector only reports; it never mutates chain or pool state.
package drift

import (
	"context"
	"fmt"

	"github.com/natlangchain/ledgercore/pkg/validator"
)

// Band is the closed set of severity bands a drift score maps to.
type Band string

const (
	BandAllow  Band = "ALLOW"
	BandWarn   Band = "WARN"
	BandReview Band = "REVIEW"
	BandBlock  Band = "BLOCK"
	BandHalt   Band = "HALT"
)

// Report is the outcome of one check_drift call.
type Report struct {
	Score          float64
	Band           Band
	Concerns       []string
	Recommendation string
}

// bandFor maps a [0,1] drift score to its fixed band. Thresholds are fixed
// by the bands themselves, not configurable, since they are part of the
// detector's external contract.
func bandFor(score float64) Band {
	switch {
	case score < 0.3:
		return BandAllow
	case score < 0.5:
		return BandWarn
	case score < 0.7:
		return BandReview
	case score < 0.9:
		return BandBlock
	default:
		return BandHalt
	}
}

// Sanitizer screens the intent and execution log text before either
// reaches the validator port.
type Sanitizer interface {
	Sanitize(field string, raw string, maxLen int) (string, error)
}

// MaxFieldBytes bounds each sanitized input to check_drift.
const MaxFieldBytes = 64 * 1024

// scorer is the subset of validator.Validator the detector depends on for
// multi-factor drift scoring.
type scorer interface {
	Decide(ctx context.Context, req validator.Request) (validator.Record, error)
}

// Detector computes drift reports using a validator port for the
// underlying multi-factor judgment (intent alignment, value preservation,
// reasoning coherence).
type Detector struct {
	validator scorer
	sanitizer Sanitizer
}

// NewDetector constructs a Detector.
func NewDetector(v scorer, s Sanitizer) *Detector {
	return &Detector{validator: v, sanitizer: s}
}

// CheckDrift sanitizes onChainIntent and executionLog, then asks the
// validator port to judge how far the execution log has drifted from the
// intent. The validator's decision is mapped to a fixed drift score (see
// scoreFromDecision) and its Reasoning, if any, becomes the report's
// concern; a validator that returns an error yields score 1.0 (HALT),
// since silence about drift is itself the most severe signal.
func (d *Detector) CheckDrift(ctx context.Context, onChainIntent, executionLog string) (Report, error) {
	intent, err := d.sanitizer.Sanitize("drift_intent", onChainIntent, MaxFieldBytes)
	if err != nil {
		return Report{}, err
	}
	log, err := d.sanitizer.Sanitize("drift_execution_log", executionLog, MaxFieldBytes)
	if err != nil {
		return Report{}, err
	}

	rec, err := d.validator.Decide(ctx, validator.Request{
		Content: log,
		Intent:  intent,
		Author:  "drift-detector",
	})
	if err != nil {
		return Report{
			Score:          1.0,
			Band:           BandHalt,
			Concerns:       []string{"validator unavailable for drift scoring"},
			Recommendation: "halt and escalate for manual review",
		}, nil
	}

	score := scoreFromDecision(rec.Decision)
	band := bandFor(score)
	concerns := concernsFor(rec)

	return Report{
		Score:          score,
		Band:           band,
		Concerns:       concerns,
		Recommendation: recommendationFor(band),
	}, nil
}

// scoreFromDecision maps the validator's coarse decision to a drift score.
// VALID carries no detected drift; NEEDS_CLARIFICATION signals partial
// misalignment; INVALID signals the execution log does not correspond to
// the stated intent at all.
func scoreFromDecision(d validator.Decision) float64 {
	switch d {
	case validator.Valid:
		return 0.1
	case validator.NeedsClarification:
		return 0.4
	case validator.Invalid:
		return 0.8
	default:
		return 1.0
	}
}

func concernsFor(rec validator.Record) []string {
	if rec.Reasoning == "" {
		return nil
	}
	return []string{rec.Reasoning}
}

func recommendationFor(b Band) string {
	switch b {
	case BandAllow:
		return "no action required"
	case BandWarn:
		return "log and continue monitoring"
	case BandReview:
		return "flag for human review before the next related entry is admitted"
	case BandBlock:
		return "block further related entries pending review"
	case BandHalt:
		return "halt and escalate immediately"
	default:
		return fmt.Sprintf("unrecognized band %q", b)
	}
}
