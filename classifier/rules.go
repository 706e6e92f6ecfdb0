// Package classifier assigns hospitals to Taiwanese cities and regions using a layered rule
// lookup: institution code prefix, exact hospital name, then ordered name patterns.
package classifier

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// Region is one of the four coarse zones cities are aggregated into
type Region string

const (
	North   Region = "北部"
	Central Region = "中部"
	South   Region = "南部"
	East    Region = "東部"
)

// Regions lists every region in output order
var Regions = []Region{North, Central, South, East}

// ErrInvalidRules is returned when a rules document cannot be used
var ErrInvalidRules = errors.New("invalid classification rules")

//go:embed rules.yaml
var defaultRulesYAML []byte

// NamePattern maps a regular expression over hospital names to a city
type NamePattern struct {
	Pattern string
	City    string
	re      *regexp.Regexp
}

// Rules holds the static lookup tables. A Rules value is never modified after loading.
type Rules struct {
	CodeToCity        map[string]string
	CityToRegion      map[string]Region
	SpecificHospitals map[string]string
	NamePatterns      []NamePattern
}

type rulesDocument struct {
	Regions []struct {
		Name   string   `yaml:"name"`
		Cities []string `yaml:"cities"`
	} `yaml:"regions"`
	CodeToCity        map[string]string `yaml:"code_to_city"`
	SpecificHospitals map[string]string `yaml:"specific_hospitals"`
	NamePatterns      []struct {
		Pattern string `yaml:"pattern"`
		City    string `yaml:"city"`
	} `yaml:"name_patterns"`
}

// DefaultRules returns the tables embedded in the binary
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRulesFile reads a rules document from disk
func LoadRulesFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes and validates a YAML rules document
func ParseRules(data []byte) (*Rules, error) {
	var doc rulesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	rules := &Rules{
		CodeToCity:        make(map[string]string, len(doc.CodeToCity)),
		CityToRegion:      make(map[string]Region),
		SpecificHospitals: make(map[string]string, len(doc.SpecificHospitals)),
		NamePatterns:      make([]NamePattern, 0, len(doc.NamePatterns)),
	}

	for _, r := range doc.Regions {
		region := Region(r.Name)
		if !slices.Contains(Regions, region) {
			return nil, fmt.Errorf("%w: unknown region %q", ErrInvalidRules, r.Name)
		}
		for _, city := range r.Cities {
			if existing, ok := rules.CityToRegion[city]; ok && existing != region {
				return nil, fmt.Errorf("%w: city %s listed under both %s and %s", ErrInvalidRules, city, existing, region)
			}
			rules.CityToRegion[city] = region
		}
	}

	for code, city := range doc.CodeToCity {
		rules.CodeToCity[code] = city
	}
	for name, city := range doc.SpecificHospitals {
		rules.SpecificHospitals[name] = city
	}

	for i, p := range doc.NamePatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: name pattern %d: %v", ErrInvalidRules, i, err)
		}
		rules.NamePatterns = append(rules.NamePatterns, NamePattern{Pattern: p.Pattern, City: p.City, re: re})
	}

	if err := rules.validate(); err != nil {
		return nil, err
	}

	return rules, nil
}

// validate checks that every city named by a lookup table resolves to a region
func (r *Rules) validate() error {
	var missing []string
	check := func(city string) {
		if _, ok := r.CityToRegion[city]; !ok && !slices.Contains(missing, city) {
			missing = append(missing, city)
		}
	}

	for _, city := range r.CodeToCity {
		check(city)
	}
	for _, city := range r.SpecificHospitals {
		check(city)
	}
	for _, p := range r.NamePatterns {
		check(p.City)
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: cities without a region: %v", ErrInvalidRules, missing)
	}
	return nil
}

// RegionOf returns the region a city belongs to
func (r *Rules) RegionOf(city string) (Region, bool) {
	region, ok := r.CityToRegion[city]
	return region, ok
}
