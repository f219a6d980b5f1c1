package postings

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	PostingIDField          = "ID"
	PostingCompanyIDField   = "CompanyID"
	PostingCompanyNameField = "CompanyName"
)

type Postings struct {
	Items []*Posting `json:"items"`
}

type Company struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Posting is a job posting with the skills it asks for.
type Posting struct {
	ID              string        `json:"id"`
	Title           string        `json:"title,omitempty"`
	Company         Company       `json:"company,omitempty"`
	URL             string        `json:"url,omitempty"`
	Location        string        `json:"location,omitempty"`
	Description     string        `json:"description,omitempty"`
	RequiredSkills  []string      `json:"required_skills,omitempty"`
	PreferredSkills []string      `json:"preferred_skills,omitempty"`
	Match           *MatchSummary `json:"match,omitempty"`
}

// MatchSummary is what the ranking keeps from a matching run.
type MatchSummary struct {
	Score             float64  `json:"score"`
	RequiredCoverage  float64  `json:"required_coverage"`
	PreferredCoverage float64  `json:"preferred_coverage"`
	Missing           []string `json:"missing,omitempty"`
	Recommendations   []string `json:"recommendations,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// ParseSkills splits a skill string on commas, semicolons and newlines.
func ParseSkills(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

var stringSliceType = reflect.TypeOf([]string{})

// skillsHook lets skill lists be written as one comma separated string.
func skillsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != stringSliceType {
		return data, nil
	}
	return ParseSkills(reflect.ValueOf(data).String()), nil
}

// Decode converts loosely typed items (config sections, decoded JSON) into
// postings. Postings without an ID get their position as ID.
func Decode(items []any) (*Postings, error) {
	var decoded []*Posting

	cfg := &mapstructure.DecoderConfig{
		DecodeHook:       skillsHook,
		Result:           &decoded,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode postings: %w", err)
	}

	for i, p := range decoded {
		if p == nil {
			return nil, fmt.Errorf("decode postings: item %d is empty", i)
		}
		if strings.TrimSpace(p.ID) == "" {
			p.ID = strconv.Itoa(i + 1)
		}
	}

	return &Postings{Items: decoded}, nil
}

// LoadFile reads postings from a JSON file holding either a list of postings
// or an object with an "items" list.
func LoadFile(path string) (*Postings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse postings file %q: %w", path, err)
	}

	switch v := raw.(type) {
	case []any:
		return Decode(v)
	case map[string]any:
		items, ok := v["items"].([]any)
		if !ok {
			return nil, fmt.Errorf("postings file %q: missing items list", path)
		}
		return Decode(items)
	default:
		return nil, fmt.Errorf("postings file %q: unexpected top level value", path)
	}
}

func (v *Postings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func (p *Posting) GetStringField(name string) string {
	switch name {
	case PostingIDField:
		return p.ID
	case PostingCompanyIDField:
		return p.Company.ID
	case PostingCompanyNameField:
		return p.Company.Name
	default:
		return ""
	}
}

// ReportByCompany groups postings by company for display.
func (v *Postings) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, p := range v.Items {
		key := p.Company.Name
		if p.Company.ID != "" {
			key = fmt.Sprintf("%s (%s)", p.Company.Name, p.Company.ID)
		}
		entry := map[string]string{
			"title":           p.Title,
			"url":             p.URL,
			"location":        p.Location,
			"required skills": strings.Join(p.RequiredSkills, ", "),
		}
		if m := p.Match; m != nil {
			if m.Error != "" {
				entry["match_error"] = m.Error
			} else {
				entry["match_score"] = strconv.FormatFloat(m.Score, 'f', 2, 64)
				entry["required_coverage"] = strconv.FormatFloat(m.RequiredCoverage, 'f', 2, 64)
				entry["missing"] = strings.Join(m.Missing, ", ")
			}
		}
		report[key] = append(report[key], entry)
	}
	return report
}

func (v *Postings) Len() int {
	return len(v.Items)
}

func (v *Postings) FindByID(id string) *Posting {
	for _, p := range v.Items {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (v *Postings) IDs() []string {
	ids := make([]string, 0, len(v.Items))
	for _, p := range v.Items {
		ids = append(ids, p.ID)
	}
	return ids
}

// Titles returns "title @ company" labels in posting order.
func (v *Postings) Titles() []string {
	titles := make([]string, 0, len(v.Items))
	for _, p := range v.Items {
		label := p.Title
		if label == "" {
			label = p.ID
		}
		if p.Company.Name != "" {
			label += " @ " + p.Company.Name
		}
		titles = append(titles, label)
	}
	return titles
}

// Exclude removes every posting whose field matches one of targets and
// returns the removed IDs. Order of the remaining postings is kept.
func (v *Postings) Exclude(name string, targets []string) []string {
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[t] = struct{}{}
	}

	var excluded []string
	kept := v.Items[:0]
	for _, p := range v.Items {
		if _, ok := set[p.GetStringField(name)]; ok {
			excluded = append(excluded, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	clear(v.Items[len(kept):])
	v.Items = kept
	return excluded
}

// RemoveByIndex removes the posting at idx keeping order.
func (v *Postings) RemoveByIndex(idx int) {
	v.Items = append(v.Items[:idx], v.Items[idx+1:]...)
}

// SortByScore orders postings by match score, best first. Postings without a
// successful match go last.
func (v *Postings) SortByScore() {
	sort.SliceStable(v.Items, func(i, j int) bool {
		return score(v.Items[i]) > score(v.Items[j])
	})
}

func score(p *Posting) float64 {
	if p.Match == nil || p.Match.Error != "" {
		return -1
	}
	return p.Match.Score
}
