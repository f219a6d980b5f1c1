package skills

// coverage is the share of distinct job skills in one namespace that have at
// least one matching record.
func coverage(jobSkills []string, matches []SkillMatch, required bool) float64 {
	distinct := make(map[string]struct{}, len(jobSkills))
	for _, s := range jobSkills {
		distinct[s] = struct{}{}
	}
	if len(distinct) == 0 {
		return 0
	}

	covered := make(map[string]struct{})
	for _, m := range matches {
		if m.Required != required || !m.IsMatch {
			continue
		}
		if _, ok := distinct[m.JobSkill]; ok {
			covered[m.JobSkill] = struct{}{}
		}
	}

	return float64(len(covered)) / float64(len(distinct))
}

// overallScore averages, over distinct required skills, the best similarity any
// candidate skill reaches. sim is indexed [candidate][required].
func overallScore(required []string, sim [][]float64) float64 {
	if len(required) == 0 || len(sim) == 0 {
		return 0
	}

	best := make(map[string]float64, len(required))
	for j, skill := range required {
		top := sim[0][j]
		for i := 1; i < len(sim); i++ {
			if sim[i][j] > top {
				top = sim[i][j]
			}
		}
		if prev, ok := best[skill]; !ok || top > prev {
			best[skill] = top
		}
	}

	var sum float64
	for _, v := range best {
		sum += v
	}
	return clamp01(sum / float64(len(best)))
}

// missingSkills lists job skills with no matching record, required first, each
// once, in order of first appearance.
func missingSkills(required, preferred []string, matches []SkillMatch) []string {
	matched := make(map[string]struct{})
	for _, m := range matches {
		if m.IsMatch {
			matched[m.JobSkill] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	missing := []string{}
	for _, list := range [][]string{required, preferred} {
		for _, skill := range list {
			if _, ok := matched[skill]; ok {
				continue
			}
			if _, ok := seen[skill]; ok {
				continue
			}
			seen[skill] = struct{}{}
			missing = append(missing, skill)
		}
	}
	return missing
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
