package ingest

import (
	"encoding/json"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/config"
	"github.com/ethpandaops/ingestoor/pkg/domain"
	"github.com/ethpandaops/ingestoor/pkg/store"
)

// ComputeQuality aggregates the execution's scenario outcomes into
// per-severity verdicts and the execution-level quality status. Only runs
// flagged includeInThresholds contribute. The execution's qualityThresholds
// column must already carry the serialized thresholds of the cycle
// definition; without thresholds no aggregation is attempted.
func ComputeQuality(
	log logrus.FieldLogger,
	project *config.ProjectConfig,
	execution *store.Execution,
) {
	execution.QualityStatus = domain.QualityIncomplete
	execution.QualitySeverities = ""

	if execution.QualityThresholds == "" {
		return
	}

	var thresholds map[string]domain.QualityThreshold
	if err := json.Unmarshal([]byte(execution.QualityThresholds), &thresholds); err != nil {
		log.WithError(err).Warn("Unparseable quality thresholds: quality stays INCOMPLETE")

		return
	}

	severities := make([]domain.Severity, len(project.Severities))
	copy(severities, project.Severities)
	domain.SortSeverities(severities)

	defaultSeverity, hasDefault := domain.DefaultSeverity(severities)

	severityByCode := make(map[string]domain.Severity, len(severities))
	for _, s := range severities {
		severityByCode[s.Code] = s
	}

	var includedRuns []*store.Run

	activeCodes := make(map[string]struct{})

	for i := range execution.Runs {
		run := &execution.Runs[i]
		if !run.IncludeInThresholds {
			continue
		}

		includedRuns = append(includedRuns, run)

		for _, code := range SeverityCodes(run.SeverityTags, severities) {
			if _, known := severityByCode[code]; known {
				activeCodes[code] = struct{}{}
			}
		}
	}

	counts := make(map[string]*domain.ScenarioCount, len(activeCodes)+1)
	for code := range activeCodes {
		counts[code] = &domain.ScenarioCount{}
	}

	global := &domain.ScenarioCount{}

	// A run that did not terminate, or terminated without producing a
	// single scenario, means the numbers below are partial.
	incomplete := len(includedRuns) == 0

	for _, run := range includedRuns {
		if run.Status != domain.JobStatusDone || len(run.ExecutedScenarios) == 0 {
			incomplete = true
		}

		for j := range run.ExecutedScenarios {
			scenario := &run.ExecutedScenarios[j]

			code := scenario.Severity
			if _, known := severityByCode[code]; !known {
				if !hasDefault {
					countScenario(global, scenario)

					continue
				}

				code = defaultSeverity.Code
			}

			if count, active := counts[code]; active {
				countScenario(count, scenario)
			}

			countScenario(global, scenario)
		}
	}

	var breakdown []domain.QualitySeverity

	anyFailed := false

	appendEntry := func(severity domain.Severity, count *domain.ScenarioCount) {
		entry := domain.QualitySeverity{
			Severity:      severity,
			ScenarioCount: *count,
			Percent:       percent(count),
		}

		threshold, ok := thresholds[severity.Code]
		if !ok {
			incomplete = true
			entry.Status = domain.QualityIncomplete
		} else {
			entry.Thresholds = threshold
			entry.Status = domain.QualityPassed

			if entry.Percent < threshold.Failure {
				entry.Status = domain.QualityFailed
				anyFailed = true
			}
		}

		breakdown = append(breakdown, entry)
	}

	for _, severity := range severities {
		if count, active := counts[severity.Code]; active {
			appendEntry(severity, count)
		}
	}

	// The wildcard "Global" severity aggregates everything, always last.
	appendEntry(domain.SeverityAll, global)

	switch {
	case anyFailed:
		execution.QualityStatus = domain.QualityFailed
	case incomplete:
		execution.QualityStatus = domain.QualityIncomplete
	default:
		execution.QualityStatus = domain.QualityPassed
	}

	serialized, err := json.Marshal(breakdown)
	if err != nil {
		log.WithError(err).Warn("Cannot serialize quality severities")

		return
	}

	execution.QualitySeverities = string(serialized)
}

func countScenario(count *domain.ScenarioCount, scenario *store.ExecutedScenario) {
	count.Total++

	if len(scenario.Errors) == 0 {
		count.Passed++
	} else {
		count.Failed++
	}
}

// percent is the rounded share of passed scenarios; an empty severity is
// vacuously passing.
func percent(count *domain.ScenarioCount) int {
	if count.Total == 0 {
		return 100
	}

	return int(math.Round(100 * float64(count.Passed) / float64(count.Total)))
}
