package skills

import (
	"sort"
	"strings"
	"sync"
)

// Difficulty is the estimated effort needed to learn a missing skill.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// LearningTime returns the fixed time estimate for the difficulty.
func (d Difficulty) LearningTime() string {
	switch d {
	case DifficultyEasy:
		return "1-2 weeks"
	case DifficultyHard:
		return "3-6 months"
	default:
		return "1-3 months"
	}
}

// Valid reports whether d is one of the known difficulty levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// Priority ranks missing skills for recommendations.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// Catalog holds the read-only tables used by the matcher: synonyms for
// normalization, difficulty classes and the set of high-value skills.
// A Catalog is never mutated after construction and is safe for concurrent use.
type Catalog struct {
	synonyms     map[string][]string
	canonical    map[string]string
	difficulty   map[string]Difficulty
	highPriority map[string]struct{}
}

// NewCatalog validates the tables and builds a Catalog. Every phrase must map
// to at most one canonical skill: a variant listed under two canonicals, or a
// variant that is itself another canonical, is a *ConfigurationError.
func NewCatalog(synonyms map[string][]string, difficulty map[string]Difficulty, highPriority []string) (*Catalog, error) {
	c := &Catalog{
		synonyms:     make(map[string][]string, len(synonyms)),
		canonical:    make(map[string]string),
		difficulty:   make(map[string]Difficulty, len(difficulty)),
		highPriority: make(map[string]struct{}, len(highPriority)),
	}

	// Sorted keys keep the reported conflict stable across runs.
	keys := make([]string, 0, len(synonyms))
	for key := range synonyms {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		canonical := cleanPhrase(key)
		if canonical == "" {
			return nil, &ConfigurationError{Phrase: key, Reason: "empty canonical skill"}
		}
		if owner, ok := c.canonical[canonical]; ok {
			return nil, &ConfigurationError{
				Phrase:     canonical,
				Canonicals: []string{owner, canonical},
				Reason:     "canonical skill defined twice",
			}
		}
		c.canonical[canonical] = canonical
	}

	for _, key := range keys {
		canonical := cleanPhrase(key)
		variants := make([]string, 0, len(synonyms[key]))
		for _, raw := range synonyms[key] {
			variant := cleanPhrase(raw)
			if variant == "" {
				return nil, &ConfigurationError{Phrase: canonical, Reason: "empty variant"}
			}
			if variant == canonical {
				continue
			}
			if owner, ok := c.canonical[variant]; ok && owner != canonical {
				return nil, &ConfigurationError{
					Phrase:     variant,
					Canonicals: sortedPair(owner, canonical),
					Reason:     "variant is ambiguous",
				}
			}
			c.canonical[variant] = canonical
			variants = append(variants, variant)
		}
		c.synonyms[canonical] = variants
	}

	for skill, level := range difficulty {
		name := cleanPhrase(skill)
		if name == "" {
			return nil, &ConfigurationError{Phrase: skill, Reason: "empty difficulty entry"}
		}
		if !level.Valid() {
			return nil, &ConfigurationError{Phrase: name, Reason: "unknown difficulty " + string(level)}
		}
		c.difficulty[name] = level
	}

	for _, skill := range highPriority {
		name := cleanPhrase(skill)
		if name == "" {
			return nil, &ConfigurationError{Phrase: skill, Reason: "empty high priority entry"}
		}
		c.highPriority[name] = struct{}{}
	}

	return c, nil
}

// Canonical returns the normalized form of a single phrase.
func (c *Catalog) Canonical(phrase string) string {
	cleaned := cleanPhrase(phrase)
	if canonical, ok := c.canonical[cleaned]; ok {
		return canonical
	}
	return cleaned
}

// Normalize maps each phrase to its canonical form. The output has the same
// length and order as the input.
func (c *Catalog) Normalize(phrases []string) []string {
	normalized := make([]string, len(phrases))
	for i, phrase := range phrases {
		normalized[i] = c.Canonical(phrase)
	}
	return normalized
}

// Difficulty classifies a skill. Unknown skills are medium.
func (c *Catalog) Difficulty(skill string) Difficulty {
	name := c.Canonical(skill)
	if level, ok := c.difficulty[name]; ok {
		return level
	}
	if level, ok := c.difficulty[cleanPhrase(skill)]; ok {
		return level
	}
	return DifficultyMedium
}

// Priority returns high for the configured high-value skills.
func (c *Catalog) Priority(skill string) Priority {
	if _, ok := c.highPriority[c.Canonical(skill)]; ok {
		return PriorityHigh
	}
	if _, ok := c.highPriority[cleanPhrase(skill)]; ok {
		return PriorityHigh
	}
	return PriorityMedium
}

// Variants returns a copy of the variants registered for a canonical skill.
func (c *Catalog) Variants(canonical string) []string {
	variants := c.synonyms[cleanPhrase(canonical)]
	out := make([]string, len(variants))
	copy(out, variants)
	return out
}

// Stats reports table sizes for diagnostics.
func (c *Catalog) Stats() (canonicals, variants, classified, highPriority int) {
	for _, v := range c.synonyms {
		variants += len(v)
	}
	return len(c.synonyms), variants, len(c.difficulty), len(c.highPriority)
}

func cleanPhrase(phrase string) string {
	return strings.ToLower(strings.TrimSpace(phrase))
}

func sortedPair(a, b string) []string {
	if a > b {
		a, b = b, a
	}
	return []string{a, b}
}

// DefaultSynonyms is the built-in synonym table.
func DefaultSynonyms() map[string][]string {
	return map[string][]string{
		"python":           {"python programming", "python development", "python coding"},
		"javascript":       {"js", "javascript programming", "javascript development"},
		"react":            {"react.js", "reactjs", "react development"},
		"node.js":          {"nodejs", "node", "node.js development"},
		"aws":              {"amazon web services", "aws cloud", "amazon aws"},
		"docker":           {"docker containers", "dockerization", "containerization"},
		"kubernetes":       {"k8s", "kubernetes orchestration", "container orchestration"},
		"postgresql":       {"postgres", "postgresql database", "postgres db"},
		"mysql":            {"mysql database", "mysql db", "mysql development"},
		"mongodb":          {"mongo", "mongodb database", "nosql"},
		"git":              {"git version control", "git development", "version control"},
		"agile":            {"agile methodology", "agile development"},
		"scrum":            {"scrum methodology", "agile scrum", "scrum development"},
		"machine learning": {"ml", "machine learning algorithms", "ai/ml"},
		"data science":     {"data analysis", "data analytics", "data scientist"},
		"devops":           {"devops engineering", "devops practices", "ci/cd"},
		"api":              {"rest api", "api development", "web services"},
		"microservices":    {"microservice architecture", "microservices development"},
		"sql":              {"sql database", "sql programming", "database queries"},
	}
}

// DefaultDifficulty is the built-in difficulty classification.
func DefaultDifficulty() map[string]Difficulty {
	table := make(map[string]Difficulty)
	for _, s := range []string{"git", "html", "css", "agile", "scrum"} {
		table[s] = DifficultyEasy
	}
	for _, s := range []string{"javascript", "python", "sql", "docker", "api"} {
		table[s] = DifficultyMedium
	}
	for _, s := range []string{"machine learning", "kubernetes", "microservices", "devops", "data science"} {
		table[s] = DifficultyHard
	}
	return table
}

// DefaultHighPriority lists the built-in high-value skills.
func DefaultHighPriority() []string {
	return []string{"python", "javascript", "sql"}
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := NewCatalog(DefaultSynonyms(), DefaultDifficulty(), DefaultHighPriority())
	if err != nil {
		panic(err)
	}
	return c
})

// DefaultCatalog returns the shared built-in catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}
