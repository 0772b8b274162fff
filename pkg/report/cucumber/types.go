// Package cucumber parses Cucumber JSON reports into executed scenarios.
package cucumber

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// Step result statuses as serialized in Cucumber JSON reports.
const (
	StatusPassed    = "passed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusPending   = "pending"
	StatusUndefined = "undefined"
)

const (
	backgroundKeyword = "Background"
)

var scenarioKeywords = map[string]struct{}{
	"Scenario":         {},
	"Scenario Outline": {},
}

// Feature is one *.feature file entry of a report.json.
type Feature struct {
	URI      string    `json:"uri"`
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Keyword  string    `json:"keyword"`
	Line     int       `json:"line"`
	Tags     []Tag     `json:"tags"`
	Elements []Element `json:"elements"`
}

// Element is a background, scenario or expanded scenario-outline example.
type Element struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Keyword string `json:"keyword"`
	Line    int    `json:"line"`
	Steps   []Step `json:"steps"`
	Before  []Hook `json:"before"`
	After   []Hook `json:"after"`
	Tags    []Tag  `json:"tags"`
}

// Step is one Given/When/Then line of a scenario.
type Step struct {
	Keyword    string      `json:"keyword"`
	Name       string      `json:"name"`
	Line       int         `json:"line"`
	Result     Result      `json:"result"`
	Match      Match       `json:"match"`
	Rows       []Row       `json:"rows"`
	DocString  *DocString  `json:"doc_string"`
	Embeddings []Embedding `json:"embeddings"`
}

// Hook is a @Before or @After hook execution.
type Hook struct {
	Result     Result      `json:"result"`
	Match      Match       `json:"match"`
	Embeddings []Embedding `json:"embeddings"`
}

// Result is the outcome of a step or hook.
type Result struct {
	Status       string `json:"status"`
	Duration     int64  `json:"duration"`
	ErrorMessage string `json:"error_message"`
}

// Match locates the glue code a step or hook executed, with the argument
// values the step definition captured.
type Match struct {
	Location  string     `json:"location"`
	Arguments []Argument `json:"arguments"`
}

// Argument is one captured step-definition argument.
type Argument struct {
	Val    string `json:"val"`
	Offset int    `json:"offset"`
}

// Row is one line of a step's data table.
type Row struct {
	Cells []string `json:"cells"`
	Line  int      `json:"line"`
}

// DocString is a triple-quoted block attached to a step.
type DocString struct {
	ContentType string `json:"content_type"`
	Value       string `json:"value"`
	Line        int    `json:"line"`
}

// Embedding is a binary or textual attachment of a step or hook.
type Embedding struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Tag is a Gherkin tag on a feature or scenario.
type Tag struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// ParseReport parses the content of a report.json.
func ParseReport(data []byte) ([]Feature, error) {
	var features []Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, fmt.Errorf("parsing cucumber report: %w", err)
	}

	return features, nil
}

// IsScenario reports whether the element is a scenario or scenario outline.
func (e *Element) IsScenario() bool {
	_, ok := scenarioKeywords[e.Keyword]

	return ok
}

// IsBackground reports whether the element is a background.
func (e *Element) IsBackground() bool {
	return e.Keyword == backgroundKeyword
}

// IsPassed reports whether every hook and step of the element passed. With
// Cucumber JSON reports a failing @Before hook leaves the scenario marked
// passed, so hooks have to be checked too.
func (e *Element) IsPassed() bool {
	for _, h := range e.Before {
		if h.Result.Status != StatusPassed {
			return false
		}
	}

	for _, s := range e.Steps {
		if s.Result.Status != StatusPassed {
			return false
		}
	}

	for _, h := range e.After {
		if h.Result.Status != StatusPassed {
			return false
		}
	}

	return true
}

// Scenario outlines are expanded to scenarios whose id ends with ";;2",
// ";;3" and so on, starting at 2.
var scenarioOutlinePattern = regexp.MustCompile(`^.*;;([0-9]+)$`)

// IsSingleScenarioOrFirstOfOutline reports whether the element is a plain
// scenario or the first expanded example of an outline.
func (e *Element) IsSingleScenarioOrFirstOfOutline() bool {
	m := scenarioOutlinePattern.FindStringSubmatch(e.ID)
	if m == nil {
		return true
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return true
	}

	return n <= 2
}

// TagNames returns the sorted, de-duplicated names of the given tags.
func TagNames(tags []Tag) []string {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t.Name] = struct{}{}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
