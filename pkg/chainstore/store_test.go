package chainstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/natlangchain/ledgercore/pkg/canon"
	"github.com/natlangchain/ledgercore/pkg/entry"
	"github.com/natlangchain/ledgercore/pkg/validator"
)

func sealedEntry(content string) entry.Entry {
	return entry.Entry{
		Content:    content,
		Author:     "alice",
		Intent:     "status update",
		Timestamp:  time.Unix(100, 0).UTC(),
		Metadata:   map[string]canon.MetadataValue{},
		Validation: validator.Record{Decision: validator.Valid, ValidatorID: "v1"},
	}
}

func TestGenesisAloneVerifies(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Verify())
	require.Equal(t, uint64(1), store.Len())
}

func TestAppendRejectsStaleTip(t *testing.T) {
	store := NewMemoryStore()
	tip, err := store.Tip()
	require.NoError(t, err)

	stale := Block{Index: tip.Index + 1, PreviousHash: canon.ZeroHash, Timestamp: time.Now().UTC()}
	h, err := stale.ComputeHash()
	require.NoError(t, err)
	stale.Hash = h

	err = store.Append(stale)
	require.ErrorIs(t, err, ErrStaleTip)
}

func TestVerifyDetectsTamperedPreviousHash(t *testing.T) {
	store := NewMemoryStore()
	tip, err := store.Tip()
	require.NoError(t, err)

	b1 := Block{Index: tip.Index + 1, PreviousHash: tip.Hash, Timestamp: time.Now().UTC(), Entries: []entry.Entry{sealedEntry("first")}}
	h1, err := b1.ComputeHash()
	require.NoError(t, err)
	b1.Hash = h1
	require.NoError(t, store.Append(b1))

	b2 := Block{Index: b1.Index + 1, PreviousHash: b1.Hash, Timestamp: time.Now().UTC(), Entries: []entry.Entry{sealedEntry("second")}}
	h2, err := b2.ComputeHash()
	require.NoError(t, err)
	b2.Hash = h2
	require.NoError(t, store.Append(b2))

	b3 := Block{Index: b2.Index + 1, PreviousHash: b2.Hash, Timestamp: time.Now().UTC(), Entries: []entry.Entry{sealedEntry("third")}}
	h3, err := b3.ComputeHash()
	require.NoError(t, err)
	b3.Hash = h3
	require.NoError(t, store.Append(b3))

	// Tamper with block 3's previous_hash directly in the backing slice,
	// bypassing Append so Verify is what has to catch it.
	store.blocks[3].PreviousHash = store.blocks[1].Hash

	err = store.Verify()
	require.ErrorIs(t, err, ErrChainBroken)
}

func TestVerifyDetectsGenesisMismatch(t *testing.T) {
	store := NewMemoryStore()
	store.blocks[0].Hash[0] ^= 0xff

	err := store.Verify()
	require.ErrorIs(t, err, ErrChainBroken)
}

func TestAppendRejectsIndexGap(t *testing.T) {
	store := NewMemoryStore()
	tip, err := store.Tip()
	require.NoError(t, err)

	b := Block{Index: tip.Index + 2, PreviousHash: tip.Hash, Timestamp: time.Now().UTC(), Entries: []entry.Entry{sealedEntry("skips an index")}}
	h, err := b.ComputeHash()
	require.NoError(t, err)
	b.Hash = h

	err = store.Append(b)
	require.ErrorIs(t, err, ErrChainBroken)
}

func TestVerifyDetectsIndexGap(t *testing.T) {
	store := NewMemoryStore()
	tip, err := store.Tip()
	require.NoError(t, err)

	b1 := Block{Index: tip.Index + 1, PreviousHash: tip.Hash, Timestamp: time.Now().UTC(), Entries: []entry.Entry{sealedEntry("first")}}
	h1, err := b1.ComputeHash()
	require.NoError(t, err)
	b1.Hash = h1
	require.NoError(t, store.Append(b1))

	// Corrupt the stored index directly, bypassing Append's own guard, so
	// Verify is what has to catch the gap.
	store.blocks[1].Index = 5

	err = store.Verify()
	require.ErrorIs(t, err, ErrChainBroken)
}

func TestGetReturnsNotFoundPastTip(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestContainsHashFindsSealedEntryRegardlessOfResubmissionTimestamp(t *testing.T) {
	store := NewMemoryStore()
	tip, err := store.Tip()
	require.NoError(t, err)

	e := sealedEntry("deliver the report by Friday")
	b := Block{Index: tip.Index + 1, PreviousHash: tip.Hash, Timestamp: time.Now().UTC(), Entries: []entry.Entry{e}}
	h, err := b.ComputeHash()
	require.NoError(t, err)
	b.Hash = h
	require.NoError(t, store.Append(b))

	resubmitted := e
	resubmitted.Timestamp = time.Now().UTC()
	key, err := resubmitted.DuplicateKey()
	require.NoError(t, err)
	require.True(t, store.ContainsHash(key.String()))
}
