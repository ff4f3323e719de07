package canon

import (
	"testing"
	"time"
)

func sampleEntry() EntryFields {
	return EntryFields{
		Content:   "I offer web development at $100/hour.",
		Author:    "alice",
		Intent:    "offer",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Metadata: map[string]MetadataValue{
			"region": StringMeta("us-east"),
			"rank":   IntMeta(3),
		},
		Validation: ValidationFields{
			Decision:     DecisionValid,
			Paraphrase:   "offers web dev services",
			Reasoning:    "well-formed",
			ValidatorID:  "heuristic-1",
			ModelVersion: "v0",
		},
	}
}

func TestEntryHashDeterministic(t *testing.T) {
	e := sampleEntry()
	h1, err := e.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := e.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %s vs %s", h1, h2)
	}
}

func TestEntryHashMetadataOrderIndependent(t *testing.T) {
	e1 := sampleEntry()
	e2 := sampleEntry()
	e2.Metadata = map[string]MetadataValue{
		"rank":   IntMeta(3),
		"region": StringMeta("us-east"),
	}
	h1, _ := e1.Hash()
	h2, _ := e2.Hash()
	if h1 != h2 {
		t.Fatalf("map iteration order must not affect hash")
	}
}

func TestEntryHashChangesWithContent(t *testing.T) {
	e1 := sampleEntry()
	e2 := sampleEntry()
	e2.Content = "different content"
	h1, _ := e1.Hash()
	h2, _ := e2.Hash()
	if h1 == h2 {
		t.Fatalf("expected different hashes for different content")
	}
}

func TestBlockHashChain(t *testing.T) {
	e := sampleEntry()
	entryBytes, err := e.Canonicalize()
	if err != nil {
		t.Fatalf("canonicalize entry: %v", err)
	}
	genesis := BlockFields{
		Index:        0,
		Timestamp:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PreviousHash: ZeroHash,
		Nonce:        0,
		Entries:      [][]byte{entryBytes},
	}
	gh := genesis.Hash()

	next := BlockFields{
		Index:        1,
		Timestamp:    time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		PreviousHash: gh,
		Nonce:        42,
		Entries:      [][]byte{entryBytes},
	}
	if next.PreviousHash != gh {
		t.Fatalf("previous hash mismatch")
	}
	if next.Hash().IsZero() {
		t.Fatalf("block hash should never be zero")
	}
}

func TestMeetsDifficulty(t *testing.T) {
	var h Hash
	h[0] = 0x00
	h[1] = 0xab
	if !MeetsDifficulty(h, 2) {
		t.Fatalf("expected two leading hex zeros to pass K=2")
	}
	if MeetsDifficulty(h, 3) {
		t.Fatalf("expected K=3 to fail: third nibble is 'a'")
	}
}
