// Command ledgercore boots the natural-language ledger core: it loads
// configuration, constructs every collaborator behind pkg/core's dispatch
// surface, runs an explicit warm_up step, and starts the background mining
// scheduler. It exposes no HTTP surface of its own — wiring a transport
// adapter on top of pkg/core is left to the deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/natlangchain/ledgercore/pkg/canon"
	"github.com/natlangchain/ledgercore/pkg/chainstore"
	"github.com/natlangchain/ledgercore/pkg/config"
	"github.com/natlangchain/ledgercore/pkg/contract"
	"github.com/natlangchain/ledgercore/pkg/core"
	"github.com/natlangchain/ledgercore/pkg/drift"
	"github.com/natlangchain/ledgercore/pkg/embedding"
	"github.com/natlangchain/ledgercore/pkg/entry"
	"github.com/natlangchain/ledgercore/pkg/miner"
	"github.com/natlangchain/ledgercore/pkg/observability"
	"github.com/natlangchain/ledgercore/pkg/pending"
	"github.com/natlangchain/ledgercore/pkg/sanitizer"
	"github.com/natlangchain/ledgercore/pkg/search"
	"github.com/natlangchain/ledgercore/pkg/validator"
)

func main() {
	logger := observability.Logger("main")

	var validatorID = flag.String("validator-id", "", "validator ID (overrides VALIDATOR_ID env var)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *validatorID != "" {
		cfg.ValidatorID = *validatorID
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	store, storeNotifier, err := buildStore(cfg)
	if err != nil {
		logger.Fatalf("build store: %v", err)
	}

	table, err := loadPatternTable(cfg)
	if err != nil {
		logger.Fatalf("load sanitizer pattern table: %v", err)
	}
	firewall, err := sanitizer.New(table)
	if err != nil {
		logger.Fatalf("construct firewall: %v", err)
	}

	v, err := buildValidator(cfg, firewall)
	if err != nil {
		logger.Fatalf("build validator: %v", err)
	}

	pool := pending.New(cfg.PendingPoolSoftCap, store)
	m := miner.New(pool, store, canon.LeadingZeros(cfg.DifficultyPrefixZeros), cfg.MiningBudget())
	if storeNotifier != nil {
		m.AddNotifier(storeNotifier)
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	reg := contract.DefaultRegistry()
	parser := contract.NewParser(v, reg)
	matcher := contract.NewMatcher(parser)
	driftDetector := drift.NewDetector(v, firewall)
	lexIndex := search.NewIndex(firewall)

	var embedIdx *embedding.Index
	if cfg.EmbeddingProviderURL != "" {
		provider := embedding.NewHTTPProvider(embedding.HTTPProviderConfig{
			Endpoint: cfg.EmbeddingProviderURL,
			Dim:      cfg.EmbeddingDimension,
			Timeout:  cfg.ValidatorTimeout(),
		})
		embedIdx = embedding.NewIndex(provider)
		m.AddNotifier(embedIdx)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// warm_up: explicit, asynchronous, separate from construction. No
	// network I/O happened inside any constructor above except opening the
	// configured store, which warm_up verifies here.
	if err := warmUp(ctx, store, embedIdx); err != nil {
		logger.Fatalf("warm_up: %v", err)
	}

	c := core.New(core.Config{
		Sanitizer:  firewall,
		Validator:  v,
		Pool:       pool,
		Store:      store,
		Miner:      m,
		Search:     lexIndex,
		Embeddings: embedIdx,
		Parser:     parser,
		Matcher:    matcher,
		Drift:      driftDetector,
		Candidates: chainSnapshot{store: store, pool: pool},
		Metrics:    metrics,
	})
	schedCfg := miner.DefaultSchedulerConfig()
	schedCfg.Interval = cfg.MiningPollInterval() * 15
	schedCfg.CheckInterval = cfg.MiningPollInterval()
	schedCfg.Watermark = cfg.MiningWatermark
	schedCfg.MinerID = cfg.ValidatorID
	sched := miner.NewScheduler(m, pool, schedCfg)
	sched.Start(ctx)

	rc := core.RequestContext{CallerID: "system"}
	info, err := c.GetChainInfo(ctx, rc)
	if err != nil {
		logger.Fatalf("read chain info at startup: %v", err)
	}
	logger.Printf("ledgercore ready (validator_id=%s, store_backend=%s, validator_mode=%s, chain_length=%d, tip=%s)",
		cfg.ValidatorID, cfg.StoreBackend, cfg.ValidatorMode, info.Length, info.TipHash)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("shutting down")
	sched.Stop()
	cancel()
}

// buildStore constructs the configured Store Port backend. When the backend
// layers a mirror sink on top of the source of truth, it also returns a
// miner.Notifier the caller attaches once the miner exists.
func buildStore(cfg *config.Config) (chainstore.Store, miner.Notifier, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		return chainstore.NewMemoryStore(), nil, nil
	case config.StoreBackendKV:
		db, err := dbm.NewGoLevelDB("ledgercore", ".")
		if err != nil {
			return nil, nil, fmt.Errorf("open goleveldb: %w", err)
		}
		store, err := chainstore.NewKVStore(db)
		return store, nil, err
	case config.StoreBackendPostgres:
		store, err := chainstore.NewPostgresStore(cfg.DatabaseURL)
		return store, nil, err
	case config.StoreBackendFirestoreMirror:
		// Firestore is a write-behind mirror layered on top of the
		// in-memory store, not a standalone source of truth.
		mem := chainstore.NewMemoryStore()
		mirror, err := chainstore.NewFirestoreMirror(context.Background(), chainstore.MirrorConfig{
			ProjectID: cfg.FirestoreProjectID,
			Enabled:   true,
		})
		if err != nil {
			return nil, nil, err
		}
		return mem, mirror, nil
	default:
		return nil, nil, fmt.Errorf("unrecognized store backend %q", cfg.StoreBackend)
	}
}

func loadPatternTable(cfg *config.Config) (*sanitizer.PatternTable, error) {
	if cfg.SanitizerPatternTablePath == "" {
		return sanitizer.DefaultPatternTable()
	}
	data, err := os.ReadFile(cfg.SanitizerPatternTablePath)
	if err != nil {
		return nil, fmt.Errorf("read pattern table %s: %w", cfg.SanitizerPatternTablePath, err)
	}
	return sanitizer.LoadPatternTable(data)
}

func buildValidator(cfg *config.Config, firewall *sanitizer.Firewall) (validator.Validator, error) {
	switch cfg.ValidatorMode {
	case config.ValidatorModeHeuristic:
		return validator.NewHeuristic(cfg.ValidatorID), nil
	case config.ValidatorModeSingleLLM:
		llmCfg := validator.LLMConfig{
			Endpoint:     cfg.ValidatorEndpoint,
			ModelVersion: cfg.ValidatorModelVersion,
			ValidatorID:  cfg.ValidatorID,
			Timeout:      cfg.ValidatorTimeout(),
			MaxRetries:   cfg.ValidatorMaxRetries,
			BackoffBase:  cfg.ValidatorBackoffBase(),
		}
		return validator.NewLLM(llmCfg, firewall), nil
	case config.ValidatorModeQuorum:
		members := make([]validator.Validator, cfg.ValidatorQuorumN)
		for i := range members {
			llmCfg := validator.LLMConfig{
				Endpoint:     cfg.ValidatorEndpoint,
				ModelVersion: cfg.ValidatorModelVersion,
				ValidatorID:  fmt.Sprintf("%s-%d", cfg.ValidatorID, i),
				Timeout:      cfg.ValidatorTimeout(),
				MaxRetries:   cfg.ValidatorMaxRetries,
				BackoffBase:  cfg.ValidatorBackoffBase(),
			}
			members[i] = validator.NewLLM(llmCfg, firewall)
		}
		return validator.NewQuorum(cfg.ValidatorID, members), nil
	default:
		return nil, fmt.Errorf("unrecognized validator mode %q", cfg.ValidatorMode)
	}
}

// warmUp opens the store (already done by buildStore), verifies the chain,
// and — if an embedding provider is configured — rebuilds the embedding
// index before the core is marked ready. Runs once, explicitly, separate
// from construction.
func warmUp(ctx context.Context, store chainstore.Store, idx *embedding.Index) error {
	if err := store.Verify(); err != nil {
		return fmt.Errorf("chain failed integrity check at startup: %w", err)
	}
	if idx != nil {
		if err := idx.Rebuild(ctx, store); err != nil {
			return fmt.Errorf("embedding index warm-up: %w", err)
		}
	}
	return nil
}

// chainSnapshot assembles the candidate set find_matches and parse_contract
// reason over from both the sealed chain and the pending pool.
type chainSnapshot struct {
	store chainstore.Store
	pool  *pending.Pool
}

func (s chainSnapshot) Candidates(ctx context.Context) ([]contract.Candidate, error) {
	var out []contract.Candidate

	n := s.store.Len()
	for i := uint64(0); i < n; i++ {
		b, err := s.store.Get(i)
		if err != nil {
			return nil, err
		}
		for offset, e := range b.Entries {
			out = append(out, contract.Candidate{Ref: entry.Ref{BlockIndex: b.Index, Offset: offset}, Entry: e})
		}
	}
	for _, e := range s.pool.Snapshot() {
		out = append(out, contract.Candidate{Entry: e})
	}
	return out, nil
}

