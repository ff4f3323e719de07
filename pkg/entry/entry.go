// Package entry defines the Entry — one immutable natural-language
// statement authored by a named party — and the opaque reference used to
// resolve it through the chain store once sealed.
package entry

import (
	"errors"
	"time"

	"github.com/natlangchain/ledgercore/pkg/canon"
	"github.com/natlangchain/ledgercore/pkg/validator"
)

// Hard bounds from the data model.
const (
	MaxContentBytes = 64 * 1024
	MaxAuthorBytes  = 256
	MaxIntentBytes  = 2 * 1024
)

// ErrForbiddenMetadataKey is returned when ingress metadata carries a
// system-owned key that callers are not permitted to set directly.
var ErrForbiddenMetadataKey = errors.New("entry: metadata key is system-owned")

// forbiddenKeys are rejected at the dispatch boundary on ingress — they are
// owned by the system, never by a caller.
var forbiddenKeys = map[string]bool{
	"block_index":  true,
	"entry_offset": true,
	"sealed_at":    true,
}

// IsForbiddenKey reports whether k is a system-owned metadata key.
func IsForbiddenKey(k string) bool { return forbiddenKeys[k] }

// Entry is one admitted, immutable natural-language statement.
type Entry struct {
	Content    string
	Author     string
	Intent     string
	Timestamp  time.Time
	Metadata   map[string]canon.MetadataValue
	Validation validator.Record
}

// Ref is an opaque, non-authoritative reference to an entry's position
// once sealed. No reference is authoritative until the target block is
// appended to the chain store.
type Ref struct {
	BlockIndex uint64
	Offset     int
}

// CanonicalFields converts an Entry into the field-ordered shape C1 hashes.
func (e Entry) CanonicalFields() canon.EntryFields {
	return canon.EntryFields{
		Content:   e.Content,
		Author:    e.Author,
		Intent:    e.Intent,
		Timestamp: e.Timestamp,
		Metadata:  e.Metadata,
		Validation: canon.ValidationFields{
			Decision:     canon.ValidationDecision(e.Validation.Decision),
			Paraphrase:   e.Validation.Paraphrase,
			Reasoning:    e.Validation.Reasoning,
			ValidatorID:  e.Validation.ValidatorID,
			ModelVersion: e.Validation.ModelVersion,
		},
	}
}

// Hash returns the entry's canonical hash, a pure function of its bytes.
func (e Entry) Hash() (canon.Hash, error) {
	return e.CanonicalFields().Hash()
}

// DuplicateKey returns the canonical hash of the entry's content identity —
// everything Hash covers except the submission timestamp. The pool and
// store use this, not Hash, to decide whether a resubmission is a
// duplicate: the same statement resubmitted later still carries a fresh
// Timestamp and must not be treated as new content.
func (e Entry) DuplicateKey() (canon.Hash, error) {
	f := e.CanonicalFields()
	f.Timestamp = time.Time{}
	return f.Hash()
}

// Bytes returns the entry's canonical byte form.
func (e Entry) Bytes() ([]byte, error) {
	return e.CanonicalFields().Canonicalize()
}
