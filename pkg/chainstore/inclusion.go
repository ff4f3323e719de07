package chainstore

import (
	"fmt"

	"github.com/natlangchain/ledgercore/pkg/canon"
	"github.com/natlangchain/ledgercore/pkg/entry"
	"github.com/natlangchain/ledgercore/pkg/merkle"
)

// ErrEntryOffsetOutOfRange is returned when an inclusion proof is requested
// for an offset beyond a block's entry count.
var ErrEntryOffsetOutOfRange = fmt.Errorf("chainstore: entry offset out of range")

// entryTree builds a Merkle tree over a block's per-entry leaf hashes,
// on demand rather than at seal time — the block's own hash never depends
// on this tree, only the portable inclusion proof does.
func entryTree(b Block) (*merkle.Tree, error) {
	leaves := make([][]byte, len(b.Entries))
	for i, e := range b.Entries {
		h, err := e.Hash()
		if err != nil {
			return nil, fmt.Errorf("chainstore: hash entry %d: %w", i, err)
		}
		leaves[i] = h[:]
	}
	return merkle.BuildTree(leaves)
}

// InclusionReceipt builds a Merkle inclusion proof for the entry at ref,
// read from s, and returns the containing block's hash. The proof verifies
// against its own MerkleRoot; the block hash does not commit to that root.
func InclusionReceipt(s Store, ref entry.Ref) (*merkle.InclusionProof, canon.Hash, error) {
	b, err := s.Get(ref.BlockIndex)
	if err != nil {
		return nil, canon.Hash{}, err
	}
	if ref.Offset < 0 || ref.Offset >= len(b.Entries) {
		return nil, canon.Hash{}, fmt.Errorf("%w: block %d has %d entries, got offset %d", ErrEntryOffsetOutOfRange, b.Index, len(b.Entries), ref.Offset)
	}

	tree, err := entryTree(b)
	if err != nil {
		return nil, canon.Hash{}, err
	}
	proof, err := tree.GenerateProof(ref.Offset)
	if err != nil {
		return nil, canon.Hash{}, err
	}
	return proof, b.Hash, nil
}

// VerifyInclusionReceipt re-derives the Merkle root from proof and compares
// it against the entry's claimed containing block hash's Merkle root. Since
// the block hash itself does not embed the Merkle root, callers verify a
// receipt against a root they independently trust (e.g. one published
// alongside the block by an attestation, C16) rather than against blockHash
// directly; VerifyInclusionReceipt here recomputes that root from s for
// convenience in the common case of a locally trusted store.
func VerifyInclusionReceipt(s Store, ref entry.Ref, proof *merkle.InclusionProof) (bool, error) {
	b, err := s.Get(ref.BlockIndex)
	if err != nil {
		return false, err
	}
	tree, err := entryTree(b)
	if err != nil {
		return false, err
	}
	root := tree.Root()
	leafHash, err := b.Entries[ref.Offset].Hash()
	if err != nil {
		return false, err
	}
	return merkle.VerifyProof(leafHash[:], proof, root)
}
