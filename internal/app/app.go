// Package app assembles a curation gate from configuration: storage
// backend, model clients behind the resilience gateway, duplicate
// detector, frequency tracker, decision engine and the queue itself.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/backup"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/cache"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/config"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/decision"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/dedup"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/frequency"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/llm"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/metrics"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/notify"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/services"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/postgres"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/sqlite"
)

// Options override pieces New would otherwise build from configuration.
type Options struct {
	// Registerer receives the metrics. Nil disables metrics.
	Registerer prometheus.Registerer

	// Logger replaces the logger built from cfg.Logging.
	Logger *logrus.Logger

	// Embedder, Curator and Fallback replace the configured providers.
	Embedder llm.EmbeddingGenerator
	Curator  llm.TextGenerator
	Fallback llm.TextGenerator
}

// App is a wired curation gate. Close releases everything it opened.
type App struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Metrics    *metrics.Metrics
	Backend    storage.Backend
	Namespaces *services.NamespaceService
	Tracker    *frequency.Tracker
	Engine     *decision.Engine
	Detector   *dedup.Detector
	Store      *curation.Store

	// Indexer is the full-text index approvals publish into.
	Indexer curation.KnowledgeIndexer

	// SQLite is set when the sqlite engine is in use.
	SQLite *sqlite.Backend

	redis   *redis.Client
	watcher *notify.PolicyWatcher
}

// New builds an App from cfg, which must already be valid.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &App{Config: cfg, Logger: logger}
	if opts.Registerer != nil {
		a.Metrics = metrics.New(opts.Registerer)
	}

	policy, err := decision.LoadPolicy(cfg.Curation.PolicyPath)
	if err != nil {
		return nil, err
	}

	if err := a.openBackend(); err != nil {
		return nil, err
	}

	fpCache, err := a.connectCache(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	embedder, curator, fallback, err := a.models(opts)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Tracker = frequency.NewTracker(a.Backend.Frequency(), embedder, logger, frequency.WithMetrics(a.Metrics))
	a.Engine = decision.NewEngine(policy, a.Tracker, a.Backend.Documents(), logger, a.Metrics)

	corpus := &dedup.StoreCorpus{Documents: a.Backend.Documents(), Curation: a.Backend.Curation(), Cache: fpCache}
	a.Detector = dedup.NewDetector(corpus, embedder, curator, dedup.Config{
		FailClosed: func(namespace string) bool { return a.Engine.Policy().FailClosed(namespace) },
	}, logger, a.Metrics)

	deps := curation.Deps{
		Items:      a.Backend.Curation(),
		Documents:  a.Backend.Documents(),
		Detector:   a.Detector,
		Frequency:  a.Tracker,
		Engine:     a.Engine,
		Embedder:   embedder,
		Curator:    curator,
		Fallback:   fallback,
		Indexer:    a.Indexer,
		Namespaces: a.Namespaces,
		Cache:      fpCache,
		Logger:     logger,
		Metrics:    a.Metrics,
	}
	if cfg.Curation.CuratorProfilePath != "" {
		deps.Curators = &FileCuratorResolver{Path: cfg.Curation.CuratorProfilePath}
	}

	a.Store, err = curation.NewStore(deps, curation.Config{
		AnalysisTimeout:       cfg.Curation.AnalysisTimeout,
		MaxConcurrentAnalyses: cfg.Curation.MaxConcurrentAnalyses,
		CuratorCacheTTL:       cfg.Curation.CuratorCacheTTL,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"engine":       cfg.Storage.Engine,
		"provider":     cfg.LLM.Provider,
		"fallback":     cfg.LLM.FallbackProvider,
		"redis":        fpCache != nil,
		"policy":       cfg.Curation.PolicyPath,
		"curator_file": cfg.Curation.CuratorProfilePath,
	}).Info("curation gate ready")
	return a, nil
}

func (a *App) openBackend() error {
	cfg := a.Config.Storage
	switch cfg.Engine {
	case "postgres":
		b, err := postgres.Open(cfg.PostgresDSN, a.Logger)
		if err != nil {
			return err
		}
		a.Backend = b
		a.Indexer = b.KnowledgeIndex()
		a.Namespaces = services.NewNamespaceService(b.DB(), services.DialectPostgres)
	default:
		if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		b, err := sqlite.Open(cfg.SQLitePath(), a.Logger)
		if err != nil {
			return err
		}
		a.Backend = b
		a.SQLite = b
		a.Indexer = b.KnowledgeIndex()
		a.Namespaces = services.NewNamespaceService(b.DB(), services.DialectSQLite)
	}
	return nil
}

func (a *App) connectCache(ctx context.Context) (*cache.FingerprintCache, error) {
	if !a.Config.Redis.Enabled {
		return nil, nil
	}
	client, err := cache.Connect(ctx, a.Config.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.redis = client
	return cache.NewFingerprintCache(client, a.Config.Redis.TTL, a.Logger), nil
}

// models builds the embedding gateway and the guarded curator and fallback
// generators. A nil fallback means the chain goes straight to the
// synthetic verdict.
func (a *App) models(opts Options) (llm.Embedder, llm.TextGenerator, llm.TextGenerator, error) {
	cfg := a.Config.LLM
	guard := llm.GuardConfig{
		Timeout:        cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
		Burst:          cfg.Burst,
	}

	embedGen := opts.Embedder
	if embedGen == nil {
		var err error
		embedGen, err = llm.NewEmbeddingGenerator(embeddingProvider(cfg))
		if err != nil {
			return nil, nil, nil, err
		}
	}

	curatorGen := opts.Curator
	if curatorGen == nil {
		var err error
		curatorGen, err = llm.NewTextGenerator(textProvider(cfg, cfg.Provider))
		if err != nil {
			return nil, nil, nil, err
		}
	}

	fallbackGen := opts.Fallback
	if fallbackGen == nil && cfg.FallbackProvider != "" {
		var err error
		fallbackGen, err = llm.NewTextGenerator(textProvider(cfg, cfg.FallbackProvider))
		if err != nil {
			return nil, nil, nil, err
		}
	}

	embedder := llm.NewGateway(embedGen, guard, a.Logger)
	curator := llm.TextGenerator(llm.NewGuarded(curatorGen, guard, a.Logger))
	var fallback llm.TextGenerator
	if fallbackGen != nil {
		fallback = llm.NewGuarded(fallbackGen, guard, a.Logger)
	}
	return embedder, curator, fallback, nil
}

func textProvider(cfg config.LLMConfig, provider string) llm.ProviderConfig {
	pc := llm.ProviderConfig{Provider: provider, Timeout: cfg.RequestTimeout}
	switch provider {
	case "openai":
		pc.Model, pc.APIKey = cfg.OpenAIModel, cfg.OpenAIAPIKey
	case "anthropic":
		pc.Model, pc.APIKey = cfg.AnthropicModel, cfg.AnthropicAPIKey
	default:
		pc.Model, pc.BaseURL = cfg.OllamaModel, cfg.OllamaURL
	}
	return pc
}

// embeddingProvider uses OpenAI embeddings when OpenAI is the curator
// provider and Ollama otherwise, since Anthropic has no embedding endpoint.
func embeddingProvider(cfg config.LLMConfig) llm.ProviderConfig {
	if cfg.Provider == "openai" {
		return llm.ProviderConfig{Provider: "openai", Model: cfg.EmbeddingModel, APIKey: cfg.OpenAIAPIKey, Timeout: cfg.RequestTimeout}
	}
	return llm.ProviderConfig{Provider: "ollama", Model: cfg.EmbeddingModel, BaseURL: cfg.OllamaURL, Timeout: cfg.RequestTimeout}
}

// WatchPolicy starts hot reloading of the policy file when configured.
// Reloads also drop the cached curator profile so both change together.
func (a *App) WatchPolicy() error {
	if !a.Config.Curation.WatchPolicy {
		return nil
	}
	a.watcher = notify.NewPolicyWatcher(a.Config.Curation.PolicyPath, func(p *decision.Policy) {
		a.Engine.SetPolicy(p)
		a.Store.InvalidateCurator()
	}, a.Logger)
	return a.watcher.Start()
}

// BackupService returns the snapshot service for the sqlite database.
func (a *App) BackupService() (*backup.Service, error) {
	if a.SQLite == nil {
		return nil, errors.New("snapshots are only supported for the sqlite engine")
	}
	return NewBackupService(a.Config, a.Logger)
}

// NewBackupService builds the snapshot service without opening the
// database, which restores require.
func NewBackupService(cfg *config.Config, logger logrus.FieldLogger) (*backup.Service, error) {
	if cfg.Storage.Engine != "sqlite" {
		return nil, errors.New("snapshots are only supported for the sqlite engine")
	}
	b := cfg.Backup
	return backup.NewService(backup.Config{
		DBPath: cfg.Storage.SQLitePath(),
		Dir:    cfg.BackupDir(),
		Verify: b.Verify,
		Retention: backup.RetentionPolicy{
			Hourly:  b.Hourly,
			Daily:   b.Daily,
			Weekly:  b.Weekly,
			Monthly: b.Monthly,
		},
	}, logger)
}

// Close stops the watcher and releases the cache and database.
func (a *App) Close() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Backend != nil {
		errs = append(errs, a.Backend.Close())
	}
	return errors.Join(errs...)
}
