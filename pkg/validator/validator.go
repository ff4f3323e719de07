// Package validator implements the Validator Port: the pluggable
// admission decision every candidate entry must pass before it reaches
// the pending pool. Three variants are provided — heuristic, single-LLM,
// and quorum-of-N — behind the same Validator interface.
package validator

import (
	"context"
	"errors"
)

// Decision is the closed set of outcomes a validator may return.
type Decision string

const (
	Valid               Decision = "VALID"
	NeedsClarification  Decision = "NEEDS_CLARIFICATION"
	Invalid             Decision = "INVALID"
)

// Record is the validator's decision, paraphrase, and reasoning for one
// candidate entry. Only Decision == Valid permits admission.
type Record struct {
	Decision     Decision
	Paraphrase   string
	Reasoning    string
	ValidatorID  string
	ModelVersion string
}

// Request is the sanitized candidate text a validator decides over.
type Request struct {
	Content string
	Intent  string
	Author  string
}

var (
	// ErrValidatorRejected names a non-VALID decision. The dispatch layer
	// does not return it; it reports such a decision through
	// SubmitEntryResult.RejectedAt.
	ErrValidatorRejected = errors.New("validator: decision was not VALID")
	// ErrValidatorProtocol marks a malformed or schema-invalid response.
	ErrValidatorProtocol = errors.New("validator: response malformed or schema-invalid")
	// ErrValidatorTransient marks a retryable I/O or rate-limit failure.
	ErrValidatorTransient = errors.New("validator: transient failure")
	// ErrValidatorUnavailable marks exhausted retries.
	ErrValidatorUnavailable = errors.New("validator: retries exhausted")
)

// Validator is the capability every admission path depends on.
type Validator interface {
	Decide(ctx context.Context, req Request) (Record, error)
}
