// Package chainstore implements the append-only hash-chained ledger: block
// construction, the Store Port abstraction, and its concrete backends.
package chainstore

import (
	"fmt"
	"time"

	"github.com/natlangchain/ledgercore/pkg/canon"
	"github.com/natlangchain/ledgercore/pkg/entry"
	"github.com/natlangchain/ledgercore/pkg/validator"
)

// GenesisContent is the fixed natural-language statement sealed into the
// single system entry of the genesis block.
const GenesisContent = "This ledger records natural-language statements admitted by consensus of their validators, ordered and hashed as recorded."

// genesisAuthor and genesisValidatorID mark genesis as system-authored.
// Ingress does not reject these values as a caller's author; system-owned
// metadata keys are restricted separately (see entry.IsForbiddenKey).
const (
	genesisAuthor      = "system"
	genesisValidatorID = "genesis"
)

// Block is one sealed, immutable unit of the chain: an ordered batch of
// entries plus the proof-of-work metadata that binds it to its predecessor.
type Block struct {
	Index        uint64
	Timestamp    time.Time
	PreviousHash canon.Hash
	Nonce        uint64
	Entries      []entry.Entry
	Hash         canon.Hash
}

// canonicalFields projects a Block into the field-ordered shape C1 hashes.
func (b Block) canonicalFields() (canon.BlockFields, error) {
	entryBytes := make([][]byte, len(b.Entries))
	for i, e := range b.Entries {
		eb, err := e.Bytes()
		if err != nil {
			return canon.BlockFields{}, fmt.Errorf("chainstore: canonicalize entry %d: %w", i, err)
		}
		entryBytes[i] = eb
	}
	return canon.BlockFields{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		PreviousHash: b.PreviousHash,
		Nonce:        b.Nonce,
		Entries:      entryBytes,
	}, nil
}

// ComputeHash recomputes a block's hash from its fields, independent of
// whatever is cached in b.Hash.
func (b Block) ComputeHash() (canon.Hash, error) {
	fields, err := b.canonicalFields()
	if err != nil {
		return canon.Hash{}, err
	}
	return fields.Hash(), nil
}

// genesisEntry is the single system-authored entry the genesis block
// carries, describing the chain's purpose.
func genesisEntry() entry.Entry {
	return entry.Entry{
		Content:  GenesisContent,
		Author:   genesisAuthor,
		Intent:   "bootstrap",
		Timestamp: time.Unix(0, 0).UTC(),
		Metadata: map[string]canon.MetadataValue{},
		Validation: validator.Record{
			Decision:     validator.Valid,
			Paraphrase:   GenesisContent,
			Reasoning:    "genesis entry is admitted unconditionally at chain bootstrap",
			ValidatorID:  genesisValidatorID,
			ModelVersion: "genesis-v1",
		},
	}
}

// Genesis constructs the fixed first block of a chain: index 0, the
// all-zero previous hash, and a single system-authored entry.
func Genesis() Block {
	b := Block{
		Index:        0,
		Timestamp:    time.Unix(0, 0).UTC(),
		PreviousHash: canon.ZeroHash,
		Nonce:        0,
		Entries:      []entry.Entry{genesisEntry()},
	}
	h, err := b.ComputeHash()
	if err != nil {
		// Genesis's fields are fixed at compile time; this cannot fail.
		panic(fmt.Sprintf("chainstore: genesis hash: %v", err))
	}
	b.Hash = h
	return b
}
