package chainstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/natlangchain/ledgercore/pkg/entry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore is a Store backed by PostgreSQL, for durable multi-process
// deployments where the chain must outlive any single node.
type PostgresStore struct {
	db     *sql.DB
	logger *log.Logger
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithLogger overrides the store's component logger.
func WithLogger(logger *log.Logger) PostgresOption {
	return func(s *PostgresStore) { s.logger = logger }
}

// NewPostgresStore opens a pooled connection to dsn, runs pending
// migrations, and seeds the genesis block if the table is empty.
func NewPostgresStore(dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("chainstore: database DSN cannot be empty")
	}

	s := &PostgresStore{
		logger: log.New(log.Writer(), "[chainstore/postgres] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}
	s.db = db

	if err := s.migrateUp(ctx); err != nil {
		db.Close()
		return nil, err
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM blocks").Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: count blocks: %v", ErrStoreUnavailable, err)
	}
	if count == 0 {
		if err := s.insertBlock(ctx, Genesis()); err != nil {
			db.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) insertBlock(ctx context.Context, b Block) error {
	entriesJSON, err := json.Marshal(b.Entries)
	if err != nil {
		return fmt.Errorf("chainstore: marshal entries for block %d: %w", b.Index, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO blocks (index, hash, previous_hash, nonce, sealed_at, entries)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.Index, b.Hash.String(), b.PreviousHash.String(), b.Nonce, b.Timestamp, entriesJSON)
	if err != nil {
		return fmt.Errorf("%w: insert block %d: %v", ErrStoreUnavailable, b.Index, err)
	}
	return nil
}

func (s *PostgresStore) scanBlock(r *sql.Row) (Block, error) {
	var idx, nonce int64
	var hashHex, prevHex string
	var sealedAt time.Time
	var entriesJSON []byte

	if err := r.Scan(&idx, &hashHex, &prevHex, &nonce, &sealedAt, &entriesJSON); err != nil {
		if err == sql.ErrNoRows {
			return Block{}, ErrNotFound
		}
		return Block{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var entries []entry.Entry
	if err := json.Unmarshal(entriesJSON, &entries); err != nil {
		return Block{}, fmt.Errorf("chainstore: unmarshal entries: %w", err)
	}

	b := Block{
		Index:     uint64(idx),
		Timestamp: sealedAt,
		Nonce:     uint64(nonce),
		Entries:   entries,
	}
	if err := b.Hash.UnmarshalText([]byte(hashHex)); err != nil {
		return Block{}, fmt.Errorf("chainstore: parse hash: %w", err)
	}
	if err := b.PreviousHash.UnmarshalText([]byte(prevHex)); err != nil {
		return Block{}, fmt.Errorf("chainstore: parse previous hash: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Append(next Block) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var tipHashHex string
	if err := tx.QueryRowContext(ctx, "SELECT hash FROM blocks ORDER BY index DESC LIMIT 1").Scan(&tipHashHex); err != nil {
		return fmt.Errorf("%w: read tip: %v", ErrStoreUnavailable, err)
	}
	if tipHashHex != next.PreviousHash.String() {
		return ErrStaleTip
	}

	computed, err := next.ComputeHash()
	if err != nil {
		return err
	}
	if computed != next.Hash {
		return fmt.Errorf("%w: block %d hash does not match its fields", ErrChainBroken, next.Index)
	}

	entriesJSON, err := json.Marshal(next.Entries)
	if err != nil {
		return fmt.Errorf("chainstore: marshal entries for block %d: %w", next.Index, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO blocks (index, hash, previous_hash, nonce, sealed_at, entries)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		next.Index, next.Hash.String(), next.PreviousHash.String(), next.Nonce, next.Timestamp, entriesJSON); err != nil {
		return fmt.Errorf("%w: insert block %d: %v", ErrStoreUnavailable, next.Index, err)
	}

	return tx.Commit()
}

func (s *PostgresStore) Get(index uint64) (Block, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := s.db.QueryRowContext(ctx, "SELECT index, hash, previous_hash, nonce, sealed_at, entries FROM blocks WHERE index = $1", index)
	return s.scanBlock(r)
}

func (s *PostgresStore) Tip() (Block, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := s.db.QueryRowContext(ctx, "SELECT index, hash, previous_hash, nonce, sealed_at, entries FROM blocks ORDER BY index DESC LIMIT 1")
	return s.scanBlock(r)
}

func (s *PostgresStore) Len() uint64 {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var count uint64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM blocks").Scan(&count); err != nil {
		return 0
	}
	return count
}

func (s *PostgresStore) ContainsHash(hashHex string) bool {
	n := s.Len()
	for i := uint64(0); i < n; i++ {
		b, err := s.Get(i)
		if err != nil {
			return false
		}
		for _, e := range b.Entries {
			if h, err := e.DuplicateKey(); err == nil && h.String() == hashHex {
				return true
			}
		}
	}
	return false
}

func (s *PostgresStore) Verify() error {
	n := s.Len()
	if n == 0 {
		return fmt.Errorf("%w: empty chain", ErrChainBroken)
	}
	genesis := Genesis()
	var prev Block
	for i := uint64(0); i < n; i++ {
		b, err := s.Get(i)
		if err != nil {
			return err
		}
		if i == 0 && b.Hash != genesis.Hash {
			return fmt.Errorf("%w: genesis mismatch", ErrChainBroken)
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

// migrateUp applies any embedded migration not yet recorded in
// schema_migrations, in filename order.
func (s *PostgresStore) migrateUp(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("chainstore: read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrStoreUnavailable, err)
	}

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		var applied bool
		if err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version=$1)", version).Scan(&applied); err != nil {
			return fmt.Errorf("%w: check migration %s: %v", ErrStoreUnavailable, version, err)
		}
		if applied {
			continue
		}
		sqlBytes, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("chainstore: read migration %s: %w", name, err)
		}
		s.logger.Printf("applying migration %s", version)
		if _, err := s.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("%w: apply migration %s: %v", ErrStoreUnavailable, version, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			return fmt.Errorf("%w: record migration %s: %v", ErrStoreUnavailable, version, err)
		}
	}
	return nil
}
