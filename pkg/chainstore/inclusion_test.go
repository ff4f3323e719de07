package chainstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/natlangchain/ledgercore/pkg/entry"
	"github.com/natlangchain/ledgercore/pkg/validator"
)

func TestInclusionReceiptVerifiesAgainstItsOwnBlock(t *testing.T) {
	store := NewMemoryStore()
	tip, err := store.Tip()
	require.NoError(t, err)

	entries := []entry.Entry{
		{Content: "first", Author: "alice", Timestamp: time.Unix(0, 0).UTC(), Validation: validator.Record{Decision: validator.Valid}},
		{Content: "second", Author: "bob", Timestamp: time.Unix(0, 0).UTC(), Validation: validator.Record{Decision: validator.Valid}},
	}
	block := Block{Index: tip.Index + 1, PreviousHash: tip.Hash, Timestamp: time.Now().UTC(), Entries: entries}
	h, err := block.ComputeHash()
	require.NoError(t, err)
	block.Hash = h
	require.NoError(t, store.Append(block))

	ref := entry.Ref{BlockIndex: block.Index, Offset: 1}
	proof, blockHash, err := InclusionReceipt(store, ref)
	require.NoError(t, err)
	require.Equal(t, block.Hash, blockHash)
	require.Equal(t, 1, proof.LeafIndex)

	ok, err := VerifyInclusionReceipt(store, ref, proof)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInclusionReceiptRejectsOffsetOutOfRange(t *testing.T) {
	store := NewMemoryStore()
	_, _, err := InclusionReceipt(store, entry.Ref{BlockIndex: 0, Offset: 99})
	require.ErrorIs(t, err, ErrEntryOffsetOutOfRange)
}
