package canon

import "time"

// BlockFields is the canonical field order for a block: index, timestamp,
// previous_hash (hex lowercase), nonce, entries (each in canonical form,
// concatenated length-prefixed).
type BlockFields struct {
	Index        uint64
	Timestamp    time.Time
	PreviousHash Hash
	Nonce        uint64
	Entries      [][]byte // pre-canonicalized entry bytes, in block order
}

// Canonicalize produces the deterministic byte form of a block.
func (bf BlockFields) Canonicalize() []byte {
	b := newBuilder()
	b.writeInt(int64(bf.Index))
	b.writeString(bf.Timestamp.UTC().Format(time.RFC3339Nano))
	b.writeString(bf.PreviousHash.String())
	b.writeInt(int64(bf.Nonce))
	b.writeInt(int64(len(bf.Entries)))
	for _, e := range bf.Entries {
		b.writeBytes(e)
	}
	return b.buf
}

// Hash returns the SHA-256 digest of the block's canonical bytes.
func (bf BlockFields) Hash() Hash {
	return Sum(bf.Canonicalize())
}

// MeetsDifficulty reports whether h satisfies a leading-hex-zeros difficulty
// predicate. K is the number of required leading hex zero digits.
func MeetsDifficulty(h Hash, k int) bool {
	hexStr := h.String()
	if k > len(hexStr) {
		k = len(hexStr)
	}
	for i := 0; i < k; i++ {
		if hexStr[i] != '0' {
			return false
		}
	}
	return true
}

// DifficultyPredicate is a pluggable difficulty check, kept as a function
// type so the policy can evolve past plain leading-zero counting.
type DifficultyPredicate func(Hash) bool

// LeadingZeros returns a DifficultyPredicate requiring k leading hex zeros.
func LeadingZeros(k int) DifficultyPredicate {
	return func(h Hash) bool { return MeetsDifficulty(h, k) }
}
