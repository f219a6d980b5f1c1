package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/embedding/hashing"
	"github.com/spigell/skillmatch/internal/embedding/sqlcache"
	"github.com/spigell/skillmatch/internal/filtering"
	"github.com/spigell/skillmatch/internal/postings"
	"github.com/spigell/skillmatch/internal/queue"
	"github.com/spigell/skillmatch/internal/skills"
)

func configFromYAML(t *testing.T, doc string) (*Config, error) {
	t.Helper()

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return decodeConfig(v)
}

func TestDecodeConfig(t *testing.T) {
	t.Parallel()

	cfg, err := configFromYAML(t, `
candidate:
  skills: "Go, Docker; PostgreSQL"
jobs:
  - id: backend
    title: Backend Engineer
    company:
      name: Acme
    required_skills: [Go, Kubernetes]
    preferred_skills: "Rust"
  - title: Data Engineer
    required_skills: [SQL]
ranking:
  min-score: 0.4
  exclude-companies: [Initech]
`)
	require.NoError(t, err)

	assert.Equal(t, []string{"Go", "Docker", "PostgreSQL"}, cfg.candidateSkills())
	assert.Equal(t, "hashing", cfg.Embedding.Backend)
	assert.Equal(t, 200, cfg.Embedding.MaxLogLength)
	assert.Equal(t, 4, cfg.Ranking.Concurrency)
	assert.Equal(t, 0.4, cfg.Ranking.MinScore)
	assert.Equal(t, queue.DefaultRequestQueue, cfg.Worker.RequestQueue)

	jobs, err := cfg.loadPostings()
	require.NoError(t, err)
	require.Equal(t, 2, jobs.Len())
	assert.Equal(t, []string{"backend", "2"}, jobs.IDs())
	assert.Equal(t, []string{"Rust"}, jobs.Items[0].PreferredSkills)
	assert.Equal(t, "Acme", jobs.Items[0].Company.Name)

	filters := filterConfig(cfg)
	assert.Equal(t, []string{"Initech"}, filters.Companies)
	assert.Equal(t, 0.4, filters.MinScore)
}

func TestDecodeConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown backend", doc: "embedding:\n  backend: word2vec\n"},
		{name: "score above one", doc: "ranking:\n  min-score: 1.5\n"},
		{name: "negative workers", doc: "worker:\n  workers: -1\n"},
		{name: "bad base url", doc: "embedding:\n  openai:\n    base-url: not a url\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := configFromYAML(t, tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestSelectPosting(t *testing.T) {
	t.Parallel()

	jobs := &postings.Postings{Items: []*postings.Posting{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B"},
	}}
	noPrompt := func(*postings.Postings) (int, error) {
		return 0, errors.New("prompt must not be shown")
	}

	p, err := selectPosting(jobs, "b", noPrompt)
	require.NoError(t, err)
	assert.Equal(t, "B", p.Title)

	_, err = selectPosting(jobs, "c", noPrompt)
	assert.ErrorContains(t, err, "no such job id c")

	p, err = selectPosting(jobs, "", func(*postings.Postings) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, "b", p.ID)

	p, err = selectPosting(&postings.Postings{Items: jobs.Items[:1]}, "", noPrompt)
	require.NoError(t, err)
	assert.Equal(t, "a", p.ID)

	_, err = selectPosting(&postings.Postings{}, "", noPrompt)
	assert.Error(t, err)
}

func TestWriteResult(t *testing.T) {
	t.Parallel()

	m := skills.NewMatcher(oneHot{"docker": 0, "sql": 1}, nil, nil, 0)
	result, err := m.MatchSkills(context.Background(), []string{"Docker"}, []string{"docker", "SQL"}, nil)
	require.NoError(t, err)

	var text bytes.Buffer
	require.NoError(t, writeResult(&text, outputText, result))
	out := text.String()
	assert.Contains(t, out, "Overall match score: 50%")
	assert.Contains(t, out, "Required skills covered: 50%")
	assert.Contains(t, out, "Docker ~ docker (similarity 1.00, confidence 1.00, required)")
	assert.Contains(t, out, "  - SQL: medium difficulty, 1-3 months, high priority\n")
	assert.Contains(t, out, "Learn SQL (medium difficulty, 1-3 months estimated time)")

	var js bytes.Buffer
	require.NoError(t, writeResult(&js, outputJSON, result))
	assert.Contains(t, js.String(), `"overall_match_score": 0.5`)
	assert.Contains(t, js.String(), `"missing_skills": [`)
}

func TestNewEmbedder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	emb, closeFn, err := newEmbedder(ctx, &EmbeddingConfig{Backend: "hashing", Dimensions: 64}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, closeFn())
	assert.IsType(t, &hashing.Embedder{}, emb)

	cachePath := filepath.Join(t.TempDir(), "cache", "embeddings.db")
	cached, closeFn, err := newEmbedder(ctx, &EmbeddingConfig{Cache: CacheConfig{Enabled: true, Path: cachePath}}, zap.NewNop())
	require.NoError(t, err)

	first, err := cached.Embed(ctx, []string{"go"})
	require.NoError(t, err)
	second, err := cached.Embed(ctx, []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.NoError(t, closeFn())
	assert.FileExists(t, cachePath)

	_, _, err = newEmbedder(ctx, &EmbeddingConfig{Backend: "word2vec"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported embedding backend")
}

type fixedSizeEmbedder struct{ dim int }

func (e fixedSizeEmbedder) Embed(_ context.Context, phrases []string) ([][]float32, error) {
	out := make([][]float32, len(phrases))
	for i := range phrases {
		vec := make([]float32, e.dim)
		vec[i%e.dim] = 1
		out[i] = vec
	}
	return out, nil
}

func TestCacheNamespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gemini/text-embedding-004", cacheNamespace("gemini", "text-embedding-004", 0))
	assert.Equal(t, "gemini/text-embedding-004@256", cacheNamespace("gemini", "text-embedding-004", 256))
	assert.NotEqual(t,
		cacheNamespace("openai", "text-embedding-3-small", 512),
		cacheNamespace("openai", "text-embedding-3-small", 1536),
	)
}

func TestCacheSurvivesDimensionsChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "embeddings.db")

	for _, dim := range []int{768, 256} {
		cached, err := sqlcache.Open(path, fixedSizeEmbedder{dim: dim}, cacheNamespace("gemini", "text-embedding-004", dim), zap.NewNop())
		require.NoError(t, err)

		matcher := skills.NewMatcher(cached, nil, nil, 0)
		result, err := matcher.MatchSkills(ctx, []string{"Go", "Docker"}, []string{"Go"}, []string{"Kubernetes"})
		require.NoError(t, err, "dimensions %d", dim)
		require.NotNil(t, result)

		vectors, err := cached.Embed(ctx, []string{"go"})
		require.NoError(t, err)
		assert.Len(t, vectors[0], dim)
		require.NoError(t, cached.Close())
	}
}

func TestNewEmbedderMissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, _, err := newEmbedder(context.Background(), &EmbeddingConfig{Backend: "gemini"}, zap.NewNop())
	assert.ErrorContains(t, err, "GEMINI_API_KEY")

	_, _, err = newEmbedder(context.Background(), &EmbeddingConfig{Backend: "openai"}, zap.NewNop())
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestOpenStoreDisabled(t *testing.T) {
	t.Parallel()

	db, err := openStore(context.Background(), &Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestPrepareFiltersWithoutCandidate(t *testing.T) {
	t.Parallel()

	var found bool
	for _, status := range filtering.Describe(prepareFilters(nil)) {
		if status.Name == "skills_match" {
			found = true
			assert.False(t, status.Enabled)
			assert.Equal(t, "candidate has no skills configured", status.Reason)
		}
	}
	assert.True(t, found)
}

// oneHot embeds every known phrase on its own axis.
type oneHot map[string]int

func (o oneHot) Embed(_ context.Context, phrases []string) ([][]float32, error) {
	out := make([][]float32, len(phrases))
	for i, p := range phrases {
		vec := make([]float32, 8)
		idx, ok := o[p]
		if !ok {
			idx = 7
		}
		vec[idx] = 1
		out[i] = vec
	}
	return out, nil
}
