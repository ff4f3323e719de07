package chainstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// FirestoreMirror publishes sealed blocks to Firestore for external
// dashboards. It is a write-behind mirror, never a source of truth: a
// mirror publish failure is logged and swallowed, it never fails Append,
// adapted from the teacher's firestore.Client no-op-when-disabled pattern.
type FirestoreMirror struct {
	mu        sync.RWMutex
	app       *firebase.App
	client    *gcpfirestore.Client
	projectID string
	collection string
	logger    *log.Logger
	enabled   bool
}

// MirrorConfig configures a FirestoreMirror.
type MirrorConfig struct {
	ProjectID       string
	CredentialsFile string
	Collection      string
	Enabled         bool
	Logger          *log.Logger
}

// NewFirestoreMirror constructs a mirror. If cfg.Enabled is false the
// returned mirror is a no-op: MirrorBlock always succeeds without touching
// the network, matching the store's "never block on the mirror" contract.
func NewFirestoreMirror(ctx context.Context, cfg MirrorConfig) (*FirestoreMirror, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[firestore-mirror] ", log.LstdFlags|log.Lmicroseconds)
	}
	if cfg.Collection == "" {
		cfg.Collection = "ledgercore_blocks"
	}

	m := &FirestoreMirror{
		projectID:  cfg.ProjectID,
		collection: cfg.Collection,
		logger:     cfg.Logger,
		enabled:    cfg.Enabled,
	}
	if !cfg.Enabled {
		cfg.Logger.Println("firestore mirror disabled, running in no-op mode")
		return m, nil
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("chainstore: FIRESTORE_PROJECT_ID is required when the mirror is enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("chainstore: initialize firebase app: %w", err)
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("chainstore: create firestore client: %w", err)
	}

	m.app = app
	m.client = fsClient
	cfg.Logger.Printf("firestore mirror initialized for project %s", cfg.ProjectID)
	return m, nil
}

// mirrorDoc is the Firestore document shape a sealed block is mirrored as.
type mirrorDoc struct {
	Index        uint64 `firestore:"index"`
	Hash         string `firestore:"hash"`
	PreviousHash string `firestore:"previous_hash"`
	Nonce        uint64 `firestore:"nonce"`
	EntryCount   int    `firestore:"entry_count"`
}

// MirrorBlock publishes b to Firestore. Failures are logged, never
// returned, so a dashboard outage can never affect chain writes.
func (m *FirestoreMirror) MirrorBlock(ctx context.Context, b Block) {
	m.mu.RLock()
	enabled, client := m.enabled, m.client
	m.mu.RUnlock()

	if !enabled || client == nil {
		return
	}

	doc := mirrorDoc{
		Index:        b.Index,
		Hash:         b.Hash.String(),
		PreviousHash: b.PreviousHash.String(),
		Nonce:        b.Nonce,
		EntryCount:   len(b.Entries),
	}
	_, err := client.Collection(m.collection).Doc(fmt.Sprintf("%d", b.Index)).Set(ctx, doc)
	if err != nil {
		m.logger.Printf("mirror publish failed for block %d: %v", b.Index, err)
	}
}

// NotifyBlockSealed implements miner.Notifier, mirroring every sealed block
// as it is appended.
func (m *FirestoreMirror) NotifyBlockSealed(b Block) {
	m.MirrorBlock(context.Background(), b)
}

// Close releases the underlying Firestore client, if one was constructed.
func (m *FirestoreMirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}
