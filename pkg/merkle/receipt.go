package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Receipt is a portable Merkle inclusion proof that can be independently
// re-verified without trusting the chain store that produced it.
//
// Verification invariants (fail-closed):
//  1. Start must be exactly 32 bytes (the entry's leaf hash).
//  2. Anchor must be exactly 32 bytes (the sealing block's Merkle root).
//  3. Each Entries[i].Hash must be exactly 32 bytes.
//  4. Merkle recomputation from Start through Entries must equal Anchor.
type Receipt struct {
	Start      string         `json:"start"`
	Anchor     string         `json:"anchor"`
	LocalBlock uint64         `json:"local_block"`
	Entries    []ReceiptEntry `json:"entries"`
}

// ReceiptEntry is a single step of the Merkle path from Start to Anchor.
type ReceiptEntry struct {
	Hash  string `json:"hash"`
	Right bool   `json:"right"`
}

// Validate verifies the receipt structure and Merkle recomputation.
func (r *Receipt) Validate() error {
	startHex, err := mustHex32Lower(r.Start, "receipt.start")
	if err != nil {
		return err
	}
	anchorHex, err := mustHex32Lower(r.Anchor, "receipt.anchor")
	if err != nil {
		return err
	}

	start, _ := hex.DecodeString(startHex)
	anchor, _ := hex.DecodeString(anchorHex)

	current := start
	for i, entry := range r.Entries {
		entryHex, err := mustHex32Lower(entry.Hash, fmt.Sprintf("receipt.entries[%d].hash", i))
		if err != nil {
			return err
		}
		sibling, _ := hex.DecodeString(entryHex)
		if entry.Right {
			current = receiptHashPair(current, sibling)
		} else {
			current = receiptHashPair(sibling, current)
		}
	}

	if !bytes.Equal(current, anchor) {
		return fmt.Errorf("merkle: recomputation mismatch: computed=%x, expected=%x", current, anchor)
	}
	return nil
}

// ComputeRoot recomputes the Merkle root from Start through Entries,
// checking each hash's hex form, but does not compare the result with
// Anchor; call Validate for the fail-closed path.
func (r *Receipt) ComputeRoot() ([32]byte, error) {
	startHex, err := mustHex32Lower(r.Start, "receipt.start")
	if err != nil {
		return [32]byte{}, err
	}
	start, _ := hex.DecodeString(startHex)

	current := start
	for i, entry := range r.Entries {
		entryHex, err := mustHex32Lower(entry.Hash, fmt.Sprintf("receipt.entries[%d].hash", i))
		if err != nil {
			return [32]byte{}, err
		}
		sibling, _ := hex.DecodeString(entryHex)
		if entry.Right {
			current = receiptHashPair(current, sibling)
		} else {
			current = receiptHashPair(sibling, current)
		}
	}

	var result [32]byte
	copy(result[:], current)
	return result, nil
}

func (r *Receipt) ToJSON() ([]byte, error) { return json.Marshal(r) }

func ReceiptFromJSON(data []byte) (*Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FromProof converts an InclusionProof (tree-relative path) into a portable
// Receipt whose Anchor is blockHash. Validate passes only when that value is
// the proof's Merkle root; a block hash from chainstore is not.
func FromProof(proof *InclusionProof, blockHash string, localBlock uint64) *Receipt {
	entries := make([]ReceiptEntry, len(proof.Path))
	for i, node := range proof.Path {
		entries[i] = ReceiptEntry{Hash: node.Hash, Right: node.Position == Right}
	}
	return &Receipt{
		Start:      proof.LeafHash,
		Anchor:     blockHash,
		LocalBlock: localBlock,
		Entries:    entries,
	}
}

func receiptHashPair(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// CombineHashes concatenates and hashes multiple byte slices — a helper for
// composing leaf hashes from more than one field.
func CombineHashes(hashes ...[]byte) []byte {
	var combined []byte
	for _, h := range hashes {
		combined = append(combined, h...)
	}
	return HashData(combined)
}

func mustHex32Lower(s string, label string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%s: empty", label)
	}
	if len(s) != 64 {
		return "", fmt.Errorf("%s: expected 64 hex chars (32 bytes), got len=%d", label, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%s: invalid hex: %w", label, err)
	}
	return s, nil
}
