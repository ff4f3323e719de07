package canon

import "time"

// ValidationDecision is the closed enum a validator may return.
type ValidationDecision string

const (
	DecisionValid               ValidationDecision = "VALID"
	DecisionNeedsClarification  ValidationDecision = "NEEDS_CLARIFICATION"
	DecisionInvalid             ValidationDecision = "INVALID"
)

// ValidationFields is the canonical field order for a validation record.
type ValidationFields struct {
	Decision      ValidationDecision
	Paraphrase    string
	Reasoning     string
	ValidatorID   string
	ModelVersion  string
}

func (v ValidationFields) canonicalize(b *builder) {
	b.writeString(string(v.Decision))
	b.writeString(v.Paraphrase)
	b.writeString(v.Reasoning)
	b.writeString(v.ValidatorID)
	b.writeString(v.ModelVersion)
}

// EntryFields is the canonical field order for an entry: content, author,
// intent, timestamp, sorted(metadata), validation record.
type EntryFields struct {
	Content    string
	Author     string
	Intent     string
	Timestamp  time.Time
	Metadata   map[string]MetadataValue
	Validation ValidationFields
}

// Canonicalize produces the deterministic byte form of an entry.
func (e EntryFields) Canonicalize() ([]byte, error) {
	b := newBuilder()
	b.writeString(e.Content)
	b.writeString(e.Author)
	b.writeString(e.Intent)
	b.writeString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	metaBytes, err := CanonicalizeMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}
	b.writeBytes(metaBytes)
	e.Validation.canonicalize(b)
	return b.bytes(), nil
}

// Hash returns the SHA-256 digest of the entry's canonical bytes.
func (e EntryFields) Hash() (Hash, error) {
	data, err := e.Canonicalize()
	if err != nil {
		return Hash{}, err
	}
	return Sum(data), nil
}
