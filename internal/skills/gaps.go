package skills

import (
	"context"

	"go.uber.org/zap"
)

// analyzeGaps builds a SkillGap for every missing skill. Related candidate
// skills are compared on lowercased, unnormalized text in a separate pass.
func (m *Matcher) analyzeGaps(ctx context.Context, missing, candidate []string) ([]SkillGap, error) {
	gaps := make([]SkillGap, 0, len(missing))
	if len(missing) == 0 {
		return gaps, nil
	}

	var sim [][]float64
	if len(candidate) > 0 {
		var err error
		sim, err = SimilarityMatrix(ctx, m.embedder, lowerAll(missing), lowerAll(candidate))
		if err != nil {
			return nil, err
		}
	}

	for i, skill := range missing {
		similar := []string{}
		if sim != nil {
			for j, c := range candidate {
				if sim[i][j] > SimilarThreshold {
					similar = append(similar, c)
				}
			}
		}

		difficulty := m.catalog.Difficulty(skill)
		gaps = append(gaps, SkillGap{
			MissingSkill:  skill,
			SimilarSkills: similar,
			Difficulty:    difficulty,
			EstimatedTime: difficulty.LearningTime(),
			Priority:      m.catalog.Priority(skill),
		})
	}

	m.logger.Debug("skill gaps analyzed", zap.Int("gaps", len(gaps)))

	return gaps, nil
}

func lowerAll(phrases []string) []string {
	out := make([]string, len(phrases))
	for i, p := range phrases {
		out[i] = cleanPhrase(p)
	}
	return out
}
