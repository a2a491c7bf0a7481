package normalize

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var tablesYAML []byte

// Tables holds the synonym and lookup tables the Standardizer is built from.
// Loaded once at process start and never mutated.
type Tables struct {
	CourseTypes struct {
		Dirt      []string `yaml:"dirt"`
		Turf      []string `yaml:"turf"`
		Synthetic []string `yaml:"synthetic"`
	} `yaml:"course_types"`
	// Ordered: earlier entries win when several codes appear in one value.
	RaceTypeHierarchy []RaceTypeEntry   `yaml:"race_type_hierarchy"`
	Equipment         map[string]string `yaml:"equipment"`
	TrackConditions   map[string]string `yaml:"track_conditions"`
}

// RaceTypeEntry pairs a race-type code with its class level.
type RaceTypeEntry struct {
	Code  string `yaml:"code"`
	Level int    `yaml:"level"`
}

// LoadTables parses the embedded lookup tables.
func LoadTables() (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(tablesYAML, &t); err != nil {
		return nil, eris.Wrap(err, "normalize: parse tables")
	}
	return &t, nil
}

// MustTables is LoadTables for tests and process init, panicking on a broken
// embedded file.
func MustTables() *Tables {
	t, err := LoadTables()
	if err != nil {
		panic(err)
	}
	return t
}
