package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/catalog"
	"github.com/spigell/skillmatch/internal/embedding/gemini"
	"github.com/spigell/skillmatch/internal/embedding/hashing"
	"github.com/spigell/skillmatch/internal/embedding/openai"
	"github.com/spigell/skillmatch/internal/embedding/sqlcache"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/secrets"
	"github.com/spigell/skillmatch/internal/skills"
	"github.com/spigell/skillmatch/internal/store"
)

type modelEmbedder interface {
	skills.Embedder
	Model() string
}

func noopClose() error { return nil }

// newEmbedder builds the configured backend, wrapped by the sqlite cache when
// enabled. The returned close function must be called once the embedder is
// no longer used.
func newEmbedder(ctx context.Context, cfg *EmbeddingConfig, log *zap.Logger) (skills.Embedder, func() error, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))

	var (
		emb modelEmbedder
		err error
	)
	switch backend {
	case "", hashing.Name:
		backend = hashing.Name
		emb = hashing.New(cfg.Dimensions)
	case gemini.Name:
		emb, err = newGemini(ctx, cfg, log)
	case openai.Name:
		emb, err = newOpenAI(cfg, log)
	default:
		return nil, nil, fmt.Errorf("unsupported embedding backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, nil, err
	}

	log.Info("embedding backend ready", logger.Embedding(backend, emb.Model())...)

	if !cfg.Cache.Enabled {
		return emb, noopClose, nil
	}

	path, err := cachePath(cfg.Cache.Path)
	if err != nil {
		return nil, nil, err
	}

	cached, err := sqlcache.Open(path, emb, cacheNamespace(backend, emb.Model(), cfg.Dimensions), logger.WithEmbedding(log, backend, emb.Model()))
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() error {
		hits, misses := cached.Stats()
		log.Debug("embedding cache stats", zap.Int64("hits", hits), zap.Int64("misses", misses))
		return cached.Close()
	}
	return cached, closeFn, nil
}

func newGemini(ctx context.Context, cfg *EmbeddingConfig, log *zap.Logger) (modelEmbedder, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set embedding.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	return gemini.New(ctx, gemini.Config{
		APIKey:            apiKey,
		Model:             cfg.Gemini.Model,
		Dimensions:        cfg.Dimensions,
		MaxRetries:        cfg.Gemini.MaxRetries,
		RequestsPerSecond: cfg.Gemini.RequestsPerSecond,
	}, log)
}

func newOpenAI(cfg *EmbeddingConfig, log *zap.Logger) (modelEmbedder, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "openai api key",
		Value: cfg.OpenAI.APIKey,
		File:  cfg.OpenAI.APIKeyFile,
		Env:   "OPENAI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set embedding.openai.api-key-file or OPENAI_API_KEY)", err)
	}

	return openai.New(openai.Config{
		APIKey:     apiKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.Model,
		Dimensions: cfg.Dimensions,
		MaxRetries: cfg.OpenAI.MaxRetries,
	}, log)
}

// cacheNamespace keys cached vectors by backend, model and requested size so
// a dimensions change never mixes vectors of different lengths.
func cacheNamespace(backend, model string, dimensions int) string {
	ns := backend + "/" + model
	if dimensions > 0 {
		ns += "@" + strconv.Itoa(dimensions)
	}
	return ns
}

func cachePath(configured string) (string, error) {
	if path := strings.TrimSpace(configured); path != "" {
		return path, nil
	}

	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache directory: %w (set embedding.cache.path)", err)
	}
	return filepath.Join(dir, app, "embeddings.db"), nil
}

// newMatcher wires catalog and embedding backend into a matcher.
func newMatcher(ctx context.Context, config *Config, log *zap.Logger) (*skills.Matcher, func() error, error) {
	cat, err := catalog.Load(config.CatalogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading skill catalog: %w", err)
	}

	emb, closeFn, err := newEmbedder(ctx, &config.Embedding, log)
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedding backend: %w", err)
	}

	return skills.NewMatcher(emb, cat, log, config.Embedding.MaxLogLength), closeFn, nil
}

// openStore connects to PostgreSQL when a DSN is configured. A nil store
// means persistence is disabled.
func openStore(ctx context.Context, config *Config, log *zap.Logger) (*store.DB, error) {
	dsn, err := secrets.Load(secrets.Source{
		Name:  "store dsn",
		Value: config.Store.DSN,
		File:  config.Store.DSNFile,
	})
	if err != nil {
		if strings.TrimSpace(config.Store.DSN) == "" && strings.TrimSpace(config.Store.DSNFile) == "" {
			log.Debug("result store disabled")
			return nil, nil
		}
		return nil, err
	}

	db, err := store.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing result store: %w", err)
	}

	log.Info("result store enabled")
	return db, nil
}
