package postings

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

type ExcludedPostings struct {
	Items []*ExcludedPosting
}

type ExcludedPosting struct {
	ID          string
	URL         string
	CompanyName string
	Actor       string
	Reason      string `json:",omitempty"`
	ExcludedAt  time.Time
}

// ToExcluded records every posting as excluded by actor.
func (v *Postings) ToExcluded(actor, reason string) *ExcludedPostings {
	excluded := &ExcludedPostings{}
	now := time.Now().UTC()
	for _, p := range v.Items {
		excluded.Items = append(excluded.Items, &ExcludedPosting{
			ID:          p.ID,
			URL:         p.URL,
			CompanyName: p.Company.Name,
			Actor:       actor,
			Reason:      reason,
			ExcludedAt:  now,
		})
	}
	return excluded
}

// LoadExcluded reads the exclude file. A missing or empty file is an empty list.
func LoadExcluded(path string) (*ExcludedPostings, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ExcludedPostings{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedPostings{}, nil
	}

	var excluded ExcludedPostings
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (v *ExcludedPostings) Append(s *ExcludedPostings) {
	v.Items = append(v.Items, s.Items...)
}

func (v *ExcludedPostings) IDs() []string {
	ids := make([]string, 0, len(v.Items))
	for _, p := range v.Items {
		ids = append(ids, p.ID)
	}
	return ids
}

func (v *ExcludedPostings) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
