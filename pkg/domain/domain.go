// Package domain holds the enumerations and small value types shared by the
// ingestion pipeline, the store and the API.
package domain

// JobStatus is the lifecycle state of a CI job (execution, run or country
// deployment), distinct from the quality verdict.
type JobStatus string

const (
	// JobStatusPending means the job has not started (no URL known yet).
	JobStatusPending JobStatus = "PENDING"
	// JobStatusRunning means the job started but has no result yet.
	JobStatusRunning JobStatus = "RUNNING"
	// JobStatusDone means the job terminated with a result.
	JobStatusDone JobStatus = "DONE"
	// JobStatusUnavailable means the job never ran or was not found.
	JobStatusUnavailable JobStatus = "UNAVAILABLE"
)

// Result is the build outcome reported by the CI system, independent of test
// outcomes.
type Result string

const (
	ResultAborted  Result = "ABORTED"
	ResultFailure  Result = "FAILURE"
	ResultNotBuilt Result = "NOT_BUILT"
	ResultSuccess  Result = "SUCCESS"
	ResultUnstable Result = "UNSTABLE"
)

// QualityStatus is the execution-level verdict computed from scenario counts
// against severity thresholds.
type QualityStatus string

const (
	// QualityIncomplete means the numbers are not the whole story: thresholds
	// could not be evaluated or at least one expected run did not terminate.
	QualityIncomplete QualityStatus = "INCOMPLETE"
	QualityFailed     QualityStatus = "FAILED"
	QualityPassed     QualityStatus = "PASSED"
)

// Acceptance marks whether a human triaged the execution.
type Acceptance string

const (
	AcceptanceNew       Acceptance = "NEW"
	AcceptanceDiscarded Acceptance = "DISCARDED"
)

// Technology identifies the report format of a test type's source.
type Technology string

const (
	TechnologyCucumber Technology = "cucumber"
	TechnologyPostman  Technology = "postman"
	TechnologyCypress  Technology = "cypress"
)

// Known reports whether t is a technology the pipeline can index.
func (t Technology) Known() bool {
	switch t {
	case TechnologyCucumber, TechnologyPostman, TechnologyCypress:
		return true
	default:
		return false
	}
}
