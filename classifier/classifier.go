package classifier

import (
	"slices"

	"github.com/giygas/nhi-hospitals/entities"
)

// matcher resolves a hospital to a city, or reports no match
type matcher func(name, code string) (string, bool)

// Classifier runs the rule stack over hospital records
type Classifier struct {
	rules    *Rules
	matchers []matcher
}

// NewClassifier builds the ordered rule stack for the given tables
func NewClassifier(rules *Rules) *Classifier {
	c := &Classifier{rules: rules}
	c.matchers = []matcher{c.byCode, c.bySpecificName, c.byNamePattern}
	return c
}

// Rules returns the tables the classifier was built with
func (c *Classifier) Rules() *Rules {
	return c.rules
}

// Classify returns the city for a hospital. The first rule that matches wins.
func (c *Classifier) Classify(name, code string) (string, bool) {
	for _, match := range c.matchers {
		if city, ok := match(name, code); ok {
			return city, true
		}
	}
	return "", false
}

// byCode looks up the 4 character code prefix, then the 2 character prefix in the same table
func (c *Classifier) byCode(_, code string) (string, bool) {
	if code == "" {
		return "", false
	}

	if city, ok := c.rules.CodeToCity[prefix(code, 4)]; ok {
		return city, true
	}

	// No 2 character keys ship in the default table; kept so a custom table can add them.
	if city, ok := c.rules.CodeToCity[prefix(code, 2)]; ok {
		return city, true
	}

	return "", false
}

func (c *Classifier) bySpecificName(name, _ string) (string, bool) {
	city, ok := c.rules.SpecificHospitals[name]
	return city, ok
}

func (c *Classifier) byNamePattern(name, _ string) (string, bool) {
	for _, p := range c.rules.NamePatterns {
		if p.re.MatchString(name) {
			return p.City, true
		}
	}
	return "", false
}

// prefix returns the first n characters of s, or all of s when it is shorter
func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ClassifyAll classifies every record and groups the hospitals by region and city.
// Hospitals whose city has no region are reported as unclassified.
func (c *Classifier) ClassifyAll(records []entities.HospitalRecord) *Result {
	result := NewResult()
	unclassified := make(map[string]struct{})

	for _, record := range records {
		city, ok := c.Classify(record.Name, record.InstitutionCode)
		if !ok {
			unclassified[record.Name] = struct{}{}
			continue
		}

		region, ok := c.rules.RegionOf(city)
		if !ok {
			unclassified[record.Name] = struct{}{}
			continue
		}

		result.add(region, city, record.Name)
	}

	for name := range unclassified {
		result.Unclassified = append(result.Unclassified, name)
	}
	slices.Sort(result.Unclassified)
	result.normalize()

	return result
}
