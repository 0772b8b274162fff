package domain

import (
	"math"
	"sort"
)

// SeverityAllCode is the wildcard severity aggregating every scenario of an
// execution, always evaluated after the project-defined severities.
const SeverityAllCode = "*"

// Severity is a project-defined triage tier with its own pass/fail threshold.
type Severity struct {
	Code             string `yaml:"code" json:"code" mapstructure:"code"`
	Position         int    `yaml:"position" json:"position" mapstructure:"position"`
	Name             string `yaml:"name" json:"name" mapstructure:"name"`
	ShortName        string `yaml:"short_name,omitempty" json:"shortName,omitempty" mapstructure:"short_name"`
	Initials         string `yaml:"initials,omitempty" json:"initials,omitempty" mapstructure:"initials"`
	DefaultOnMissing bool   `yaml:"default_on_missing,omitempty" json:"defaultOnMissing,omitempty" mapstructure:"default_on_missing"`
}

// SeverityAll is the synthetic "Global" severity entry.
var SeverityAll = Severity{
	Code:      SeverityAllCode,
	Position:  math.MaxInt32,
	Name:      "Global",
	ShortName: "Global",
	Initials:  "Global",
}

// SortSeverities orders severities by position, in place.
func SortSeverities(severities []Severity) {
	sort.SliceStable(severities, func(i, j int) bool {
		return severities[i].Position < severities[j].Position
	})
}

// DefaultSeverity returns the severity applied to scenarios that carry no
// severity tag, and false when the project defines none.
func DefaultSeverity(severities []Severity) (Severity, bool) {
	for _, s := range severities {
		if s.DefaultOnMissing {
			return s, true
		}
	}

	return Severity{}, false
}
