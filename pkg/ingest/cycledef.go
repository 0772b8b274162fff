package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethpandaops/ingestoor/pkg/domain"
)

// testTypesSeparator separates the test-type codes of a platform rule.
const testTypesSeparator = ","

// severityTagAll marks a run as exercising every severity.
const severityTagAll = "all"

// CycleDefinition is the test plan archived by the CI job: which countries
// deploy on which platforms, which test types run against them, and the
// quality thresholds the cycle is judged by.
type CycleDefinition struct {
	BlockingValidation bool                               `json:"blockingValidation"`
	QualityThresholds  map[string]domain.QualityThreshold `json:"qualityThresholds"`
	PlatformsRules     map[string][]PlatformRule          `json:"platformsRules"`
}

// PlatformRule declares what one country deploys and runs on a platform.
type PlatformRule struct {
	Enabled            bool   `json:"enabled"`
	Country            string `json:"country"`
	TestTypes          string `json:"testTypes"`
	CountryTags        string `json:"countryTags"`
	SeverityTags       string `json:"severityTags"`
	BlockingValidation bool   `json:"blockingValidation"`
}

// TypeCodes returns the test-type codes of the rule.
func (r *PlatformRule) TypeCodes() []string {
	if r.TestTypes == "" {
		return nil
	}

	codes := strings.Split(r.TestTypes, testTypesSeparator)
	for i := range codes {
		codes[i] = strings.TrimSpace(codes[i])
	}

	return codes
}

// ReadCycleDefinition reads the cycle-definition file at the given path.
// Absence is not an error: it returns (nil, nil), and the caller decides how
// far the execution degrades without a test plan.
func ReadCycleDefinition(path string) (*CycleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading cycle definition: %w", err)
	}

	var def CycleDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing cycle definition: %w", err)
	}

	return &def, nil
}

// SeverityCodes parses a run's severity tags: the severity codes the run
// exercises, or all project severities when the tags are empty or "all".
func SeverityCodes(severityTags string, all []domain.Severity) []string {
	tags := strings.TrimSpace(severityTags)
	if tags == "" || tags == severityTagAll {
		codes := make([]string, len(all))
		for i, s := range all {
			codes[i] = s.Code
		}

		return codes
	}

	parts := strings.Split(tags, testTypesSeparator)
	codes := make([]string, 0, len(parts))

	for _, part := range parts {
		if code := strings.TrimSpace(part); code != "" {
			codes = append(codes, code)
		}
	}

	return codes
}
