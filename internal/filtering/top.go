package filtering

import (
	"context"
	"strconv"

	"github.com/spigell/skillmatch/internal/postings"
)

type topFilter struct {
	limit int
}

// NewTop creates the step that orders postings by match score and keeps the
// best ones. A zero limit keeps everything.
func NewTop() Filter {
	return &topFilter{}
}

func (f *topFilter) Name() string { return "top" }

func (f *topFilter) Disable(string) {}

func (f *topFilter) IsEnabled() bool { return true }

func (f *topFilter) Validate(cfg *Config) error {
	f.limit = 0
	if cfg != nil && cfg.Top > 0 {
		f.limit = cfg.Top
	}
	return nil
}

func (f *topFilter) Apply(_ context.Context, _ Deps, p *postings.Postings) (*postings.Postings, Step, error) {
	initial := p.Len()
	p.SortByScore()
	if f.limit > 0 && p.Len() > f.limit {
		p.Items = p.Items[:f.limit]
	}
	return p, Step{Initial: initial, Dropped: initial - p.Len(), Left: p.Len()}, nil
}

func (f *topFilter) Status() Status {
	details := map[string]string{}
	if f.limit > 0 {
		details["limit"] = strconv.Itoa(f.limit)
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
