package skills

const (
	// MatchThreshold is the inclusive similarity at which a pair counts as a match.
	MatchThreshold = 0.70
	// SimilarThreshold is the exclusive similarity above which a candidate
	// skill is reported as related to a missing skill.
	SimilarThreshold = 0.50
	// HighConfidenceThreshold marks matches that need no manual review.
	HighConfidenceThreshold = 0.85

	requiredBoost  = 1.20
	preferredBoost = 1.10
)

// SkillMatch is one candidate skill compared against one job skill.
type SkillMatch struct {
	CandidateSkill string  `json:"user_skill"`
	JobSkill       string  `json:"job_skill"`
	Similarity     float64 `json:"similarity_score"`
	IsMatch        bool    `json:"is_match"`
	Confidence     float64 `json:"confidence"`
	HighConfidence bool    `json:"high_confidence"`
	Required       bool    `json:"required"`
}

// SkillGap describes a job skill the candidate does not have.
type SkillGap struct {
	MissingSkill  string     `json:"missing_skill"`
	SimilarSkills []string   `json:"similar_user_skills"`
	Difficulty    Difficulty `json:"learning_difficulty"`
	EstimatedTime string     `json:"estimated_learning_time"`
	Priority      Priority   `json:"priority"`
}

// Result is the outcome of one matching run.
type Result struct {
	CandidateSkills         []string     `json:"user_skills"`
	RequiredSkills          []string     `json:"job_required_skills"`
	PreferredSkills         []string     `json:"job_preferred_skills"`
	Matches                 []SkillMatch `json:"skill_matches"`
	OverallScore            float64      `json:"overall_match_score"`
	RequiredCoverage        float64      `json:"required_skills_covered"`
	PreferredCoverage       float64      `json:"preferred_skills_covered"`
	MissingSkills           []string     `json:"missing_skills"`
	Gaps                    []SkillGap   `json:"skill_gaps"`
	LearningRecommendations []string     `json:"learning_recommendations"`
}

// MatchedPairs returns only the records that count as matches.
func (r *Result) MatchedPairs() []SkillMatch {
	var out []SkillMatch
	for _, m := range r.Matches {
		if m.IsMatch {
			out = append(out, m)
		}
	}
	return out
}

// IsMatch applies the inclusive match threshold.
func IsMatch(similarity float64) bool {
	return similarity >= MatchThreshold
}

func confidence(similarity float64, required bool) float64 {
	boost := preferredBoost
	if required {
		boost = requiredBoost
	}
	c := similarity * boost
	if c > 1 {
		return 1
	}
	return c
}
