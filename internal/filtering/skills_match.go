package filtering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/postings"
	"github.com/spigell/skillmatch/internal/skills"
)

const matcherActor = "matcher"

type skillsMatchFilter struct {
	disabled bool
	reason   string
	config   Config
	results  map[string]*skills.Result
}

// NewSkillsMatch creates the step that scores every posting against the
// candidate's skills and drops postings under the configured thresholds.
func NewSkillsMatch() Filter {
	return &skillsMatchFilter{}
}

func (f *skillsMatchFilter) Name() string { return "skills_match" }

func (f *skillsMatchFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *skillsMatchFilter) IsEnabled() bool { return !f.disabled }

func (f *skillsMatchFilter) Validate(cfg *Config) error {
	f.config = Config{}
	if cfg != nil {
		f.config = *cfg
	}
	if f.config.MinScore < 0 || f.config.MinScore > 1 {
		return fmt.Errorf("min score must be within [0,1], got %.2f", f.config.MinScore)
	}
	if f.config.MinRequiredCoverage < 0 || f.config.MinRequiredCoverage > 1 {
		return fmt.Errorf("min required coverage must be within [0,1], got %.2f", f.config.MinRequiredCoverage)
	}
	return nil
}

func (f *skillsMatchFilter) Apply(ctx context.Context, deps Deps, p *postings.Postings) (*postings.Postings, Step, error) {
	initial := p.Len()
	if deps.Matcher == nil {
		return p, Step{}, errors.New("skills matcher is required")
	}
	if len(deps.Candidate) == 0 && deps.Logger != nil {
		deps.Logger.Warn("candidate has no skills; every posting will score zero")
	}

	jobs := make([]skills.JobSkills, len(p.Items))
	for i, posting := range p.Items {
		jobs[i] = skills.JobSkills{
			ID:        posting.ID,
			Required:  posting.RequiredSkills,
			Preferred: posting.PreferredSkills,
		}
	}

	outcomes := skills.MatchJobs(ctx, deps.Matcher, deps.Candidate, jobs, f.config.Concurrency)

	f.results = make(map[string]*skills.Result, len(outcomes))
	kept := make([]*postings.Posting, 0, initial)
	dropped := &postings.Postings{}

	for i, outcome := range outcomes {
		posting := p.Items[i]

		if outcome.Err != nil {
			if deps.Logger != nil {
				deps.Logger.Warn("skills matching failed",
					logger.Job(posting.ID),
					zap.Error(outcome.Err),
				)
			}
			posting.Match = &postings.MatchSummary{Error: outcome.Err.Error()}
			kept = append(kept, posting)
			continue
		}

		result := outcome.Result
		posting.Match = summarize(result)
		f.results[posting.ID] = result

		if deps.Store != nil {
			if err := deps.Store.SaveResult(ctx, deps.RunID, posting.ID, result); err != nil {
				return p, Step{}, fmt.Errorf("save result for %s: %w", posting.ID, err)
			}
		}

		if reason := f.rejection(result); reason != "" {
			if deps.Logger != nil {
				deps.Logger.Info("posting rejected by skills match",
					logger.Job(posting.ID),
					zap.Float64("score", result.OverallScore),
					zap.Float64("required_coverage", result.RequiredCoverage),
					zap.String("reason", reason),
				)
			}
			dropped.Items = append(dropped.Items, posting)
			continue
		}

		kept = append(kept, posting)
	}

	p.Items = kept

	if path := strings.TrimSpace(f.config.ExcludeFile); path != "" && dropped.Len() > 0 {
		if err := appendExcluded(path, dropped); err != nil {
			return p, Step{}, err
		}
	}

	return p, Step{Initial: initial, Dropped: initial - p.Len(), Left: p.Len()}, nil
}

func (f *skillsMatchFilter) rejection(r *skills.Result) string {
	if r.OverallScore < f.config.MinScore {
		return fmt.Sprintf("score %.2f below %.2f", r.OverallScore, f.config.MinScore)
	}
	if r.RequiredCoverage < f.config.MinRequiredCoverage {
		return fmt.Sprintf("required coverage %.2f below %.2f", r.RequiredCoverage, f.config.MinRequiredCoverage)
	}
	return ""
}

func (f *skillsMatchFilter) Results() map[string]*skills.Result {
	if f.results == nil {
		return map[string]*skills.Result{}
	}
	return f.results
}

func (f *skillsMatchFilter) Status() Status {
	details := map[string]string{
		"min_score":             strconv.FormatFloat(f.config.MinScore, 'f', 2, 64),
		"min_required_coverage": strconv.FormatFloat(f.config.MinRequiredCoverage, 'f', 2, 64),
		"concurrency":           strconv.Itoa(f.config.Concurrency),
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

func summarize(r *skills.Result) *postings.MatchSummary {
	return &postings.MatchSummary{
		Score:             r.OverallScore,
		RequiredCoverage:  r.RequiredCoverage,
		PreferredCoverage: r.PreferredCoverage,
		Missing:           r.MissingSkills,
		Recommendations:   r.LearningRecommendations,
	}
}

func appendExcluded(path string, dropped *postings.Postings) error {
	excluded, err := postings.LoadExcluded(path)
	if err != nil {
		return fmt.Errorf("getting excluded postings from file: %w", err)
	}
	excluded.Append(dropped.ToExcluded(matcherActor, "below skills match thresholds"))
	if err := excluded.ToFile(path); err != nil {
		return fmt.Errorf("writing exclude file: %w", err)
	}
	return nil
}
