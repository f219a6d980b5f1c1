package skills

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// JobSkills is the skill demand of one job posting.
type JobSkills struct {
	ID        string
	Required  []string
	Preferred []string
}

// JobOutcome holds the result or the error of matching one job.
type JobOutcome struct {
	ID     string
	Result *Result
	Err    error
}

// MatchJobs runs one independent matching pass per job with at most limit
// passes in flight. A failed job keeps its error and never stops the others.
// Outcomes are returned in job order.
func MatchJobs(ctx context.Context, m *Matcher, candidate []string, jobs []JobSkills, limit int) []JobOutcome {
	outcomes := make([]JobOutcome, len(jobs))
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, job := range jobs {
		g.Go(func() error {
			result, err := m.MatchSkills(ctx, candidate, job.Required, job.Preferred)
			outcomes[i] = JobOutcome{ID: job.ID, Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
