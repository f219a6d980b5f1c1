package skills

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMatchSkillsScenario(t *testing.T) {
	t.Parallel()

	m := NewMatcher(newTableEmbedder(nil), nil, nil, 0)

	result, err := m.MatchSkills(context.Background(),
		[]string{"Python", "Django", "PostgreSQL", "Git", "HTML", "CSS"},
		[]string{"Python", "JavaScript", "React", "Node.js", "MongoDB"},
		[]string{"Docker", "AWS", "Machine Learning"},
	)
	require.NoError(t, err)

	require.Len(t, result.Matches, 6*5+6*3)
	first := result.Matches[0]
	assert.Equal(t, "Python", first.CandidateSkill)
	assert.Equal(t, "Python", first.JobSkill)
	assert.InDelta(t, 1.0, first.Similarity, 1e-9)
	assert.True(t, first.IsMatch)
	assert.True(t, first.Required)
	assert.True(t, first.HighConfidence)
	assert.Equal(t, 1.0, first.Confidence)

	for i, rec := range result.Matches {
		assert.Equal(t, i < 30, rec.Required, "record %d namespace", i)
	}

	assert.InDelta(t, 0.2, result.RequiredCoverage, 1e-9)
	assert.Equal(t, 0.0, result.PreferredCoverage)
	assert.Equal(t, []string{"JavaScript", "React", "Node.js", "MongoDB", "Docker", "AWS", "Machine Learning"}, result.MissingSkills)
	assert.InDelta(t, 0.2, result.OverallScore, 1e-9)

	require.Len(t, result.Gaps, 7)
	js := result.Gaps[0]
	assert.Equal(t, "JavaScript", js.MissingSkill)
	assert.Equal(t, DifficultyMedium, js.Difficulty)
	assert.Equal(t, "1-3 months", js.EstimatedTime)
	assert.Equal(t, PriorityHigh, js.Priority)
	assert.Empty(t, js.SimilarSkills)

	ml := result.Gaps[6]
	assert.Equal(t, DifficultyHard, ml.Difficulty)
	assert.Equal(t, "3-6 months", ml.EstimatedTime)
	assert.Equal(t, PriorityMedium, ml.Priority)

	require.NotEmpty(t, result.LearningRecommendations)
	assert.LessOrEqual(t, len(result.LearningRecommendations), 4)
	assert.Equal(t, []string{
		"Learn JavaScript (medium difficulty, 1-3 months estimated time)",
		"Learn React (medium difficulty, 1-3 months estimated time)",
		"Learn Node.js (medium difficulty, 1-3 months estimated time)",
		"Focus on the top 1 high-priority skills first",
	}, result.LearningRecommendations)
}

func TestMatchSkillsEmptyInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		candidate     []string
		required      []string
		preferred     []string
		wantMissing   []string
		wantRecs      []string
		wantEmbedCall bool
	}{
		{
			name:        "no candidate skills",
			candidate:   nil,
			required:    []string{"Python"},
			wantMissing: []string{"Python"},
			wantRecs:    []string{"Learn Python (medium difficulty, 1-3 months estimated time)"},
		},
		{
			name:        "no job skills",
			candidate:   []string{"Go"},
			wantMissing: []string{},
			wantRecs:    []string{alignedMessage},
		},
		{
			name:        "blank entries only",
			candidate:   []string{"  ", ""},
			required:    []string{"\t"},
			preferred:   []string{" "},
			wantMissing: []string{},
			wantRecs:    []string{alignedMessage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			emb := newTableEmbedder(nil)
			m := NewMatcher(emb, nil, nil, 0)

			result, err := m.MatchSkills(context.Background(), tt.candidate, tt.required, tt.preferred)
			require.NoError(t, err)

			assert.Equal(t, 0.0, result.OverallScore)
			assert.Equal(t, 0.0, result.RequiredCoverage)
			assert.Equal(t, 0.0, result.PreferredCoverage)
			assert.Empty(t, result.Matches)
			assert.Equal(t, tt.wantMissing, result.MissingSkills)
			assert.Equal(t, tt.wantRecs, result.LearningRecommendations)
			assert.Zero(t, emb.callCount())
		})
	}
}

func TestMatchSkillsExactMatchesScoreOne(t *testing.T) {
	t.Parallel()

	m := NewMatcher(newTableEmbedder(nil), nil, nil, 0)

	result, err := m.MatchSkills(context.Background(),
		[]string{"Go", "Rust", "js"},
		[]string{"rust", "JavaScript", " GO "},
		nil,
	)
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.OverallScore)
	assert.Equal(t, 1.0, result.RequiredCoverage)
	assert.Empty(t, result.MissingSkills)
	assert.Equal(t, []string{alignedMessage}, result.LearningRecommendations)
}

func TestMatchSkillsThresholdBoundary(t *testing.T) {
	t.Parallel()

	// cos((1,0,0,0), (7,7,1,1)) = 7/10.
	emb := newTableEmbedder(map[string][]float32{
		"alpha": {1, 0, 0, 0},
		"beta":  {7, 7, 1, 1},
	})
	m := NewMatcher(emb, nil, nil, 0)

	result, err := m.MatchSkills(context.Background(), []string{"alpha"}, []string{"beta"}, []string{"beta"})
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)

	req := result.Matches[0]
	assert.Equal(t, 0.7, req.Similarity)
	assert.True(t, req.IsMatch)
	assert.False(t, req.HighConfidence)
	assert.InDelta(t, 0.84, req.Confidence, 1e-9)

	pref := result.Matches[1]
	assert.False(t, pref.Required)
	assert.InDelta(t, 0.77, pref.Confidence, 1e-9)

	assert.Empty(t, result.MissingSkills)
	assert.InDelta(t, 0.7, result.OverallScore, 1e-9)
}

func TestIsMatch(t *testing.T) {
	t.Parallel()

	assert.True(t, IsMatch(0.70))
	assert.True(t, IsMatch(1))
	assert.False(t, IsMatch(0.699999))
	assert.False(t, IsMatch(-0.5))
}

func TestConfidenceIsCapped(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, confidence(0.9, true))
	assert.InDelta(t, 0.99, confidence(0.9, false), 1e-9)
	assert.Equal(t, 1.0, confidence(0.95, false))
	assert.InDelta(t, 0.6, confidence(0.5, true), 1e-9)
}

func TestMatchSkillsSimilarSkills(t *testing.T) {
	t.Parallel()

	emb := newTableEmbedder(map[string][]float32{
		"django":     {1, 0.5, 0, 0},
		"flask":      {1, 0, 0, 0},
		"fastapi":    {0.6, 0.8, 0, 0},
		"excel":      {0, 0, 1, 0},
		"kubernetes": {0, 0, 0, 1},
	})
	m := NewMatcher(emb, nil, nil, 0)

	result, err := m.MatchSkills(context.Background(),
		[]string{"Django", "Excel"},
		[]string{"Flask", "Kubernetes"},
		[]string{"FastAPI"},
	)
	require.NoError(t, err)

	// django·flask = 1/sqrt(1.25) ≈ 0.894, django·fastapi = 1/sqrt(1.25) ≈ 0.894.
	assert.Equal(t, []string{"Kubernetes"}, result.MissingSkills)
	require.Len(t, result.Gaps, 1)
	gap := result.Gaps[0]
	assert.Empty(t, gap.SimilarSkills)
	assert.Equal(t, DifficultyHard, gap.Difficulty)
	assert.Equal(t, []string{"Learn Kubernetes (hard difficulty, 3-6 months estimated time)"}, result.LearningRecommendations)
	assert.Equal(t, 0.5, result.RequiredCoverage)
	assert.Equal(t, 1.0, result.PreferredCoverage)
}

func TestMatchSkillsSimilarButNotMatching(t *testing.T) {
	t.Parallel()

	// vue·react = 0.6 and vue·sql = 0.64: related, below the match threshold.
	emb := newTableEmbedder(map[string][]float32{
		"vue":   {0.6, 0.8, 0},
		"react": {1, 0, 0},
		"sql":   {0, 0.8, 0.6},
	})
	m := NewMatcher(emb, nil, nil, 0)

	result, err := m.MatchSkills(context.Background(), []string{"Vue"}, []string{"React", "SQL"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"React", "SQL"}, result.MissingSkills)
	require.Len(t, result.Gaps, 2)
	assert.Equal(t, []string{"Vue"}, result.Gaps[0].SimilarSkills)
	assert.Equal(t, []string{"Vue"}, result.Gaps[1].SimilarSkills)
	assert.Equal(t, []string{
		"Learn SQL (medium difficulty, 1-3 months estimated time) - You already know similar skills: Vue",
		"Learn React (medium difficulty, 1-3 months estimated time) - You already know similar skills: Vue",
	}, result.LearningRecommendations)
	assert.InDelta(t, 0.62, result.OverallScore, 1e-9)
}

func TestMatchSkillsOpposedVectorsScoreZero(t *testing.T) {
	t.Parallel()

	emb := newTableEmbedder(map[string][]float32{
		"frontend": {1, 0},
		"backend":  {-1, 0},
	})
	m := NewMatcher(emb, nil, nil, 0)

	result, err := m.MatchSkills(context.Background(), []string{"Frontend"}, []string{"Backend"}, nil)
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, 0.0, result.Matches[0].Similarity)
	assert.Equal(t, 0.0, result.Matches[0].Confidence)
	assert.False(t, result.Matches[0].IsMatch)
	assert.Equal(t, 0.0, result.OverallScore)
}

func TestMatchSkillsMissingAppearsOnce(t *testing.T) {
	t.Parallel()

	m := NewMatcher(newTableEmbedder(nil), nil, nil, 0)

	result, err := m.MatchSkills(context.Background(),
		[]string{"Go"},
		[]string{"Rust", "Rust", "Zig"},
		[]string{"Zig", "Elixir", "Rust"},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"Rust", "Zig", "Elixir"}, result.MissingSkills)
	assert.Len(t, result.Gaps, 3)
	assert.Len(t, result.Matches, 6)
}

func TestMatchSkillsIdempotent(t *testing.T) {
	t.Parallel()

	m := NewMatcher(newTableEmbedder(map[string][]float32{
		"python": {0.3, 0.4, 0.5},
		"django": {0.35, 0.45, 0.2},
	}), nil, nil, 0)

	candidate := []string{"Python", "Django", "Terraform"}
	required := []string{"Django", "Go"}
	preferred := []string{"Python"}

	first, err := m.MatchSkills(context.Background(), candidate, required, preferred)
	require.NoError(t, err)
	second, err := m.MatchSkills(context.Background(), candidate, required, preferred)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMatchSkillsBatchesEmbeddingCalls(t *testing.T) {
	t.Parallel()

	emb := newTableEmbedder(nil)
	m := NewMatcher(emb, nil, nil, 0)

	_, err := m.MatchSkills(context.Background(),
		[]string{"Python", "python", "JS"},
		[]string{"Python", "JavaScript"},
		[]string{"Python"},
	)
	require.NoError(t, err)

	require.Equal(t, 3, emb.callCount())
	assert.Equal(t, []string{"python", "javascript"}, emb.calls[0])
	assert.Equal(t, []string{"python", "javascript"}, emb.calls[1])
	assert.Equal(t, []string{"python"}, emb.calls[2])
}

func TestMatchSkillsEmbeddingErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("backend unavailable")

	tests := []struct {
		name     string
		embedder Embedder
		wantErr  error
	}{
		{
			name:     "backend failure",
			embedder: embedFunc(func(context.Context, []string) ([][]float32, error) { return nil, boom }),
			wantErr:  boom,
		},
		{
			name: "wrong vector count",
			embedder: embedFunc(func(_ context.Context, phrases []string) ([][]float32, error) {
				return [][]float32{{1, 0}}, nil
			}),
		},
		{
			name: "non finite value",
			embedder: embedFunc(func(_ context.Context, phrases []string) ([][]float32, error) {
				out := make([][]float32, len(phrases))
				for i := range out {
					out[i] = []float32{float32(math.NaN()), 1}
				}
				return out, nil
			}),
		},
		{
			name: "dimension differs between lists",
			embedder: func() Embedder {
				calls := 0
				return embedFunc(func(_ context.Context, phrases []string) ([][]float32, error) {
					calls++
					out := make([][]float32, len(phrases))
					for i := range out {
						out[i] = make([]float32, calls+1)
						out[i][0] = 1
					}
					return out, nil
				})
			}(),
		},
		{
			name: "ragged vectors",
			embedder: embedFunc(func(_ context.Context, phrases []string) ([][]float32, error) {
				out := make([][]float32, len(phrases))
				for i := range out {
					out[i] = make([]float32, i+1)
				}
				return out, nil
			}),
		},
		{
			name: "empty vectors",
			embedder: embedFunc(func(_ context.Context, phrases []string) ([][]float32, error) {
				return make([][]float32, len(phrases)), nil
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := NewMatcher(tt.embedder, nil, nil, 0)
			result, err := m.MatchSkills(context.Background(), []string{"Go", "Rust"}, []string{"Go"}, nil)
			require.Error(t, err)
			assert.Nil(t, result)

			var backendErr *EmbeddingBackendError
			require.ErrorAs(t, err, &backendErr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestMatchSkillsLogsSummary(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)
	m := NewMatcher(newTableEmbedder(nil), nil, zap.New(core), 0)

	_, err := m.MatchSkills(context.Background(), []string{"Go"}, []string{"Go", "Rust"}, nil)
	require.NoError(t, err)

	entries := observed.FilterMessage("skills matching completed").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, int64(1), ctx["matched_pairs"])
	assert.Equal(t, int64(1), ctx["missing_skills"])
	assert.Equal(t, 0.5, ctx["overall_score"])
}
