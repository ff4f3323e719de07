// Package canon implements the canonical byte encoding that every entry and
// block hash is computed over. The encoding is a fixed field order, fixed
// scalar encodings (decimal integers, ISO-8601 UTC timestamps, UTF-8 text)
// and lexicographically sorted map keys at every nesting level — an
// RFC8785-like discipline applied to a closed set of domain types rather
// than to arbitrary JSON.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrBadMetadata is returned when a metadata value is not one of the
// recognized scalar kinds.
var ErrBadMetadata = errors.New("canon: metadata value is not a recognized scalar kind")

// Hash is a 32-byte SHA-256 digest.
type Hash [32]byte

// ZeroHash is the fixed previous-hash value used by the genesis block.
var ZeroHash Hash

func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// MarshalText renders h as lowercase hex, for use as a storage key or in
// JSON.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses a lowercase-hex hash produced by MarshalText.
func (h *Hash) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("canon: parse hash: %w", err)
	}
	if len(decoded) != len(h) {
		return fmt.Errorf("canon: hash has %d bytes, want %d", len(decoded), len(h))
	}
	copy(h[:], decoded)
	return nil
}

// Sum computes the SHA-256 digest of concatenated byte slices.
func Sum(parts ...[]byte) Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// builder accumulates canonical bytes with length-prefixed fields so that
// field boundaries are unambiguous regardless of content.
type builder struct {
	buf []byte
}

func newBuilder() *builder { return &builder{} }

func (b *builder) writeBytes(p []byte) {
	var lenBuf [8]byte
	n := uint64(len(p))
	for i := 7; i >= 0; i-- {
		lenBuf[i] = byte(n & 0xff)
		n >>= 8
	}
	b.buf = append(b.buf, lenBuf[:]...)
	b.buf = append(b.buf, p...)
}

func (b *builder) writeString(s string) { b.writeBytes([]byte(s)) }

func (b *builder) writeInt(n int64) { b.writeString(strconv.FormatInt(n, 10)) }

func (b *builder) bytes() []byte { return b.buf }

// MetadataValue is the closed set of scalar kinds a metadata value may hold.
// Exactly one field is populated; IsString distinguishes string from int.
type MetadataValue struct {
	IsString bool
	Str      string
	Int      int64
}

// StringMeta constructs a string-valued metadata entry.
func StringMeta(s string) MetadataValue { return MetadataValue{IsString: true, Str: s} }

// IntMeta constructs an integer-valued metadata entry.
func IntMeta(n int64) MetadataValue { return MetadataValue{Int: n} }

func (v MetadataValue) canonicalize(b *builder) error {
	if v.IsString {
		b.writeString("s")
		b.writeString(v.Str)
		return nil
	}
	b.writeString("i")
	b.writeInt(v.Int)
	return nil
}

// CanonicalizeMetadata serializes a metadata map with keys sorted
// lexicographically, each entry length-prefixed. Unrecognized scalar kinds
// never reach this function — callers construct MetadataValue explicitly.
func CanonicalizeMetadata(m map[string]MetadataValue) ([]byte, error) {
	b := newBuilder()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.writeInt(int64(len(keys)))
	for _, k := range keys {
		b.writeString(k)
		if err := m[k].canonicalize(b); err != nil {
			return nil, fmt.Errorf("metadata key %q: %w", k, err)
		}
	}
	return b.bytes(), nil
}
