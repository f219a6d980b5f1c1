package filtering

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/postings"
	"github.com/spigell/skillmatch/internal/skills"
)

// Filter represents a single ranking step applied to postings.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, p *postings.Postings) (*postings.Postings, Step, error)
}

// ResultSaver persists matching results.
type ResultSaver interface {
	SaveResult(ctx context.Context, runID uuid.UUID, jobID string, result *skills.Result) error
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger    *zap.Logger
	Matcher   *skills.Matcher
	Candidate []string
	Store     ResultSaver
	RunID     uuid.UUID
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	Companies           []string
	ExcludeFile         string
	MinScore            float64
	MinRequiredCoverage float64
	Concurrency         int
	Top                 int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the standard ranking pipeline.
func Default() []Filter {
	return []Filter{
		NewExcludeFile(),
		NewCompanies(),
		NewSkillsMatch(),
		NewTop(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially, returning the remaining
// postings and the matching results collected along the way.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, p *postings.Postings) (*postings.Postings, map[string]*skills.Result, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	results := make(map[string]*skills.Result)
	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, p)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		p = next

		if collector, ok := step.(interface {
			Results() map[string]*skills.Result
		}); ok {
			for id, result := range collector.Results() {
				results[id] = result
			}
		}
	}

	return p, results, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
