package chainstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	dbm "github.com/cometbft/cometbft-db"
)

// blockKey encodes a block index as an 8-byte big-endian key so that
// iteration order in the underlying KV matches chain order.
func blockKey(index uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, index)
	return key
}

var tipKey = []byte("__tip__")

// KVStore is a Store backed by a CometBFT dbm.DB — the same key-value
// abstraction the teacher wraps for its own persistent ledger, repointed
// here at sealed blocks keyed by index instead of governance records.
type KVStore struct {
	mu  sync.Mutex
	db  dbm.DB
	// hashIndex caches sealed entry hashes for fast duplicate checks,
	// since scanning every block on each Submit would defeat the point
	// of a KV backend.
	hashIndex map[string]bool
}

// NewKVStore wraps db as a Store, seeding the genesis block on first use.
func NewKVStore(db dbm.DB) (*KVStore, error) {
	s := &KVStore{db: db, hashIndex: make(map[string]bool)}

	existing, err := db.Get(tipKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if existing == nil {
		genesis := Genesis()
		if err := s.putBlock(genesis); err != nil {
			return nil, err
		}
		if err := db.SetSync(tipKey, blockKey(0)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		for _, e := range genesis.Entries {
			if h, err := e.DuplicateKey(); err == nil {
				s.hashIndex[h.String()] = true
			}
		}
	} else {
		if err := s.rebuildHashIndex(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *KVStore) putBlock(b Block) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("chainstore: marshal block %d: %w", b.Index, err)
	}
	if err := s.db.SetSync(blockKey(b.Index), data); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *KVStore) getBlock(index uint64) (Block, error) {
	data, err := s.db.Get(blockKey(index))
	if err != nil {
		return Block{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if data == nil {
		return Block{}, ErrNotFound
	}
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return Block{}, fmt.Errorf("chainstore: unmarshal block %d: %w", index, err)
	}
	return b, nil
}

func (s *KVStore) rebuildHashIndex() error {
	n, err := s.lenLocked()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		b, err := s.getBlock(i)
		if err != nil {
			return err
		}
		for _, e := range b.Entries {
			if h, err := e.DuplicateKey(); err == nil {
				s.hashIndex[h.String()] = true
			}
		}
	}
	return nil
}

func (s *KVStore) lenLocked() (uint64, error) {
	tipIdxBytes, err := s.db.Get(tipKey)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if tipIdxBytes == nil {
		return 0, nil
	}
	return binary.BigEndian.Uint64(tipIdxBytes) + 1, nil
}

func (s *KVStore) Append(next Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip, err := s.tipLocked()
	if err != nil {
		return err
	}
	if next.PreviousHash != tip.Hash {
		return ErrStaleTip
	}
	if next.Index != tip.Index+1 {
		return fmt.Errorf("%w: expected index %d, got %d", ErrChainBroken, tip.Index+1, next.Index)
	}
	computed, err := next.ComputeHash()
	if err != nil {
		return err
	}
	if computed != next.Hash {
		return fmt.Errorf("%w: block %d hash does not match its fields", ErrChainBroken, next.Index)
	}

	if err := s.putBlock(next); err != nil {
		return err
	}
	if err := s.db.SetSync(tipKey, blockKey(next.Index)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for _, e := range next.Entries {
		if h, err := e.DuplicateKey(); err == nil {
			s.hashIndex[h.String()] = true
		}
	}
	return nil
}

func (s *KVStore) tipLocked() (Block, error) {
	n, err := s.lenLocked()
	if err != nil {
		return Block{}, err
	}
	return s.getBlock(n - 1)
}

func (s *KVStore) Get(index uint64) (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getBlock(index)
}

func (s *KVStore) Tip() (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tipLocked()
}

func (s *KVStore) Len() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.lenLocked()
	if err != nil {
		return 0
	}
	return n
}

func (s *KVStore) ContainsHash(hashHex string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashIndex[hashHex]
}

func (s *KVStore) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lenLocked()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: empty chain", ErrChainBroken)
	}

	genesis := Genesis()
	var prev Block
	for i := uint64(0); i < n; i++ {
		b, err := s.getBlock(i)
		if err != nil {
			return err
		}
		if i == 0 && b.Hash != genesis.Hash {
			return fmt.Errorf("%w: genesis mismatch", ErrChainBroken)
		}
		if b.Index != i {
			return fmt.Errorf("%w: block at position %d carries index %d", ErrChainBroken, i, b.Index)
		}
		computed, err := b.ComputeHash()
		if err != nil {
			return fmt.Errorf("%w: block %d: %v", ErrChainBroken, b.Index, err)
		}
		if computed != b.Hash {
			return fmt.Errorf("%w: block %d hash mismatch", ErrChainBroken, b.Index)
		}
		if i > 0 && b.PreviousHash != prev.Hash {
			return fmt.Errorf("%w: block %d previous_hash does not match block %d", ErrChainBroken, b.Index, prev.Index)
		}
		prev = b
	}
	return nil
}
