// Package catalog loads skill catalogs from TOML files.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spigell/skillmatch/internal/skills"
)

// File is the on-disk catalog layout. Every section is optional; a section
// present in the file replaces the built-in one.
type File struct {
	HighPriority []string            `toml:"high_priority" validate:"omitempty,dive,required"`
	Synonyms     map[string][]string `toml:"synonyms" validate:"omitempty,dive,keys,required,endkeys,min=1,dive,required"`
	Difficulty   Difficulty          `toml:"difficulty"`
}

// Difficulty lists skills per learning difficulty.
type Difficulty struct {
	Easy   []string `toml:"easy" validate:"omitempty,dive,required"`
	Medium []string `toml:"medium" validate:"omitempty,dive,required"`
	Hard   []string `toml:"hard" validate:"omitempty,dive,required"`
}

var validate = validator.New()

// Load reads the catalog at path. An empty path yields the built-in catalog.
// Ambiguous synonym tables are reported as *skills.ConfigurationError.
func Load(path string) (*skills.Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return skills.DefaultCatalog(), nil
	}

	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("decode catalog %q: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("catalog %q: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("catalog %q: %w", path, err)
	}

	synonyms := skills.DefaultSynonyms()
	if md.IsDefined("synonyms") {
		synonyms = f.Synonyms
	}

	difficulty := skills.DefaultDifficulty()
	if md.IsDefined("difficulty") {
		difficulty = f.Difficulty.table()
	}

	highPriority := skills.DefaultHighPriority()
	if md.IsDefined("high_priority") {
		highPriority = f.HighPriority
	}

	c, err := skills.NewCatalog(synonyms, difficulty, highPriority)
	if err != nil {
		return nil, fmt.Errorf("catalog %q: %w", path, err)
	}
	return c, nil
}

func (d Difficulty) table() map[string]skills.Difficulty {
	table := make(map[string]skills.Difficulty)
	for _, s := range d.Easy {
		table[s] = skills.DifficultyEasy
	}
	for _, s := range d.Medium {
		table[s] = skills.DifficultyMedium
	}
	for _, s := range d.Hard {
		table[s] = skills.DifficultyHard
	}
	return table
}
