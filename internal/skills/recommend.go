package skills

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxRecommendations = 3
	alignedMessage     = "Great job! Your skills align well with the job requirements."
)

// Recommendations turns gaps into learning advice. missing is the total number
// of missing skills and controls the trailing summary line.
func Recommendations(gaps []SkillGap, missing int) []string {
	if len(gaps) == 0 {
		return []string{alignedMessage}
	}

	ordered := make([]SkillGap, len(gaps))
	copy(ordered, gaps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority == PriorityHigh && ordered[j].Priority != PriorityHigh
	})
	if len(ordered) > maxRecommendations {
		ordered = ordered[:maxRecommendations]
	}

	recs := make([]string, 0, len(ordered)+1)
	for _, gap := range ordered {
		line := fmt.Sprintf("Learn %s (%s difficulty, %s estimated time)", gap.MissingSkill, gap.Difficulty, gap.EstimatedTime)
		if len(gap.SimilarSkills) > 0 {
			line += " - You already know similar skills: " + strings.Join(gap.SimilarSkills, ", ")
		}
		recs = append(recs, line)
	}

	if missing > maxRecommendations {
		high := 0
		for _, gap := range gaps {
			if gap.Priority == PriorityHigh {
				high++
			}
		}
		if high > 0 {
			recs = append(recs, fmt.Sprintf("Focus on the top %d high-priority skills first", high))
		} else {
			recs = append(recs, fmt.Sprintf("Focus on the top %d skills first", len(ordered)))
		}
	}

	return recs
}
