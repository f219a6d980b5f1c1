// Package skills compares a candidate's skills with a job's required and
// preferred skills using embedding similarity.
package skills

import (
	"context"
	"strings"

	"github.com/spigell/skillmatch/internal/utils"
	"go.uber.org/zap"
)

const defaultMaxLogLength = 200

// Matcher runs matching passes. It keeps no per-run state, so one Matcher may
// serve concurrent callers as long as its Embedder does.
type Matcher struct {
	embedder  Embedder
	catalog   *Catalog
	logger    *zap.Logger
	maxLogLen int
}

func NewMatcher(embedder Embedder, catalog *Catalog, logger *zap.Logger, maxLogLength int) *Matcher {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Matcher{
		embedder:  embedder,
		catalog:   catalog,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Catalog returns the catalog used for normalization.
func (m *Matcher) Catalog() *Catalog {
	return m.catalog
}

// MatchSkills compares candidate against required and preferred job skills.
// Blank entries are ignored. Any embedding failure aborts the run.
func (m *Matcher) MatchSkills(ctx context.Context, candidate, required, preferred []string) (*Result, error) {
	candidate = dropBlank(candidate)
	required = dropBlank(required)
	preferred = dropBlank(preferred)

	normCandidate := m.catalog.Normalize(candidate)
	normRequired := m.catalog.Normalize(required)
	normPreferred := m.catalog.Normalize(preferred)

	m.logger.Debug("normalized skills",
		zap.String("candidate", utils.TruncateForLog(strings.Join(normCandidate, ", "), m.maxLogLen)),
		zap.String("required", utils.TruncateForLog(strings.Join(normRequired, ", "), m.maxLogLen)),
		zap.String("preferred", utils.TruncateForLog(strings.Join(normPreferred, ", "), m.maxLogLen)),
	)

	var candidateVectors [][]float32
	if len(candidate) > 0 && (len(required) > 0 || len(preferred) > 0) {
		var err error
		candidateVectors, err = embedUnique(ctx, m.embedder, normCandidate, "candidate")
		if err != nil {
			return nil, err
		}
	}

	requiredSim, err := m.against(ctx, candidateVectors, normRequired, "required")
	if err != nil {
		return nil, err
	}
	preferredSim, err := m.against(ctx, candidateVectors, normPreferred, "preferred")
	if err != nil {
		return nil, err
	}

	matches := make([]SkillMatch, 0, len(candidate)*(len(required)+len(preferred)))
	matches = appendMatches(matches, candidate, required, requiredSim, true)
	matches = appendMatches(matches, candidate, preferred, preferredSim, false)

	missing := missingSkills(required, preferred, matches)

	gaps, err := m.analyzeGaps(ctx, missing, candidate)
	if err != nil {
		return nil, err
	}

	result := &Result{
		CandidateSkills:         candidate,
		RequiredSkills:          required,
		PreferredSkills:         preferred,
		Matches:                 matches,
		OverallScore:            overallScore(required, requiredSim),
		RequiredCoverage:        coverage(required, matches, true),
		PreferredCoverage:       coverage(preferred, matches, false),
		MissingSkills:           missing,
		Gaps:                    gaps,
		LearningRecommendations: Recommendations(gaps, len(missing)),
	}

	m.logger.Info("skills matching completed",
		zap.Int("candidate_skills", len(candidate)),
		zap.Int("required_skills", len(required)),
		zap.Int("preferred_skills", len(preferred)),
		zap.Int("matched_pairs", len(result.MatchedPairs())),
		zap.Int("missing_skills", len(missing)),
		zap.Float64("overall_score", result.OverallScore),
		zap.Float64("required_coverage", result.RequiredCoverage),
	)

	return result, nil
}

// against builds the candidate × job similarity matrix for one namespace.
// The job list is embedded in its own batched call.
func (m *Matcher) against(ctx context.Context, candidateVectors [][]float32, jobSkills []string, stage string) ([][]float64, error) {
	if len(candidateVectors) == 0 || len(jobSkills) == 0 {
		return emptyMatrix(len(candidateVectors)), nil
	}

	jobVectors, err := embedUnique(ctx, m.embedder, jobSkills, stage)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("embedded job skills",
		zap.String("namespace", stage),
		zap.Int("phrases", len(jobSkills)),
		zap.Int("dimension", len(jobVectors[0])),
	)

	return cosineMatrix(candidateVectors, jobVectors)
}

func appendMatches(dst []SkillMatch, candidate, jobSkills []string, sim [][]float64, required bool) []SkillMatch {
	for i, c := range candidate {
		if i >= len(sim) {
			break
		}
		for j, js := range jobSkills {
			// Opposed vectors mean unrelated skills, not negative relatedness.
			s := clamp01(sim[i][j])
			dst = append(dst, SkillMatch{
				CandidateSkill: c,
				JobSkill:       js,
				Similarity:     s,
				IsMatch:        IsMatch(s),
				Confidence:     confidence(s, required),
				HighConfidence: s >= HighConfidenceThreshold,
				Required:       required,
			})
		}
	}
	return dst
}

func dropBlank(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
