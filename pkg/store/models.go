package store

import (
	"time"

	"github.com/ethpandaops/ingestoor/pkg/domain"
)

// Execution is one full test campaign for a given build of a
// (project, branch, cycle) combination.
type Execution struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ProjectCode string `gorm:"index:idx_executions_job_url;index:idx_executions_version;not null" json:"project"`
	Branch      string `gorm:"not null" json:"branch"`
	Name        string `gorm:"not null" json:"name"`
	Release     string `json:"release,omitempty"`
	Version     string `gorm:"index:idx_executions_version" json:"version,omitempty"`

	BuildDateTime *time.Time `json:"build_date_time,omitempty"`
	TestDateTime  *time.Time `json:"test_date_time,omitempty"`

	JobURL  string `gorm:"index:idx_executions_job_url" json:"job_url,omitempty"`
	JobLink string `json:"job_link,omitempty"`

	Status        domain.JobStatus  `gorm:"not null" json:"status"`
	Result        domain.Result     `json:"result,omitempty"`
	Acceptance    domain.Acceptance `gorm:"not null" json:"acceptance"`
	DiscardReason string            `json:"discard_reason,omitempty"`

	BlockingValidation bool `json:"blocking_validation"`

	// QualityThresholds and QualitySeverities are JSON documents: the
	// per-severity thresholds echoed from the cycle definition, and the
	// ordered per-severity breakdown computed by the quality aggregator.
	QualityThresholds string               `json:"quality_thresholds,omitempty"`
	QualityStatus     domain.QualityStatus `json:"quality_status,omitempty"`
	QualitySeverities string               `json:"quality_severities,omitempty"`

	Duration          *int64 `json:"duration,omitempty"`
	EstimatedDuration *int64 `json:"estimated_duration,omitempty"`

	Runs               []Run               `gorm:"constraint:OnDelete:CASCADE" json:"runs,omitempty"`
	CountryDeployments []CountryDeployment `gorm:"constraint:OnDelete:CASCADE" json:"country_deployments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CountryDeployment is the application-deployment step for one country
// within an execution, distinct from the test runs against that deployment.
type CountryDeployment struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	ExecutionID uint `gorm:"index;not null" json:"-"`

	CountryCode string `gorm:"not null" json:"country"`
	Platform    string `json:"platform,omitempty"`

	JobURL  string `json:"job_url,omitempty"`
	JobLink string `json:"job_link,omitempty"`

	Status domain.JobStatus `gorm:"not null" json:"status"`
	Result domain.Result    `json:"result,omitempty"`

	StartDateTime     *time.Time `json:"start_date_time,omitempty"`
	EstimatedDuration *int64     `json:"estimated_duration,omitempty"`
	Duration          *int64     `json:"duration,omitempty"`
}

// Run is the portion of an execution for one (country, test type) pair.
type Run struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	ExecutionID uint `gorm:"index;not null" json:"-"`

	CountryCode string            `gorm:"not null" json:"country"`
	TypeCode    string            `gorm:"not null" json:"type"`
	Technology  domain.Technology `json:"technology,omitempty"`

	Comment  string `json:"comment,omitempty"`
	Platform string `json:"platform,omitempty"`

	JobURL  string `json:"job_url,omitempty"`
	JobLink string `json:"job_link,omitempty"`

	Status domain.JobStatus `gorm:"not null" json:"status"`

	CountryTags  string `json:"country_tags,omitempty"`
	SeverityTags string `json:"severity_tags,omitempty"`

	StartDateTime     *time.Time `json:"start_date_time,omitempty"`
	EstimatedDuration *int64     `json:"estimated_duration,omitempty"`
	Duration          *int64     `json:"duration,omitempty"`

	// IncludeInThresholds marks whether this run's scenarios count toward
	// quality aggregation.
	IncludeInThresholds bool `json:"include_in_thresholds"`

	ExecutedScenarios []ExecutedScenario `gorm:"constraint:OnDelete:CASCADE" json:"executed_scenarios,omitempty"`
}

// ExecutedScenario is one parsed test case with its step trace.
type ExecutedScenario struct {
	ID    uint `gorm:"primaryKey" json:"id"`
	RunID uint `gorm:"index" json:"-"`

	FeatureFile string `json:"feature_file,omitempty"`
	FeatureName string `json:"feature_name,omitempty"`
	FeatureTags string `json:"feature_tags,omitempty"`
	Tags        string `json:"tags,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Name        string `gorm:"not null" json:"name"`

	// CucumberID is the stable composite identifier used for
	// cross-execution matching and history.
	CucumberID string `json:"cucumber_id,omitempty"`
	Line       int    `json:"line"`

	// Content is the serialized step trace: one "line:status:duration:text"
	// entry per step, joined by newlines.
	Content string `json:"content,omitempty"`

	StartDateTime *time.Time `json:"start_date_time,omitempty"`

	ScreenshotURL       string `json:"screenshot_url,omitempty"`
	VideoURL            string `json:"video_url,omitempty"`
	LogsURL             string `json:"logs_url,omitempty"`
	HTTPRequestsURL     string `json:"http_requests_url,omitempty"`
	JavaScriptErrorsURL string `json:"javascript_errors_url,omitempty"`
	DiffReportURL       string `json:"diff_report_url,omitempty"`
	CucumberReportURL   string `json:"cucumber_report_url,omitempty"`
	APIServer           string `json:"api_server,omitempty"`
	SeleniumNode        string `json:"selenium_node,omitempty"`

	Errors []Error `gorm:"constraint:OnDelete:CASCADE" json:"errors,omitempty"`
}

// Error is one failed step within an executed scenario.
type Error struct {
	ID                 uint `gorm:"primaryKey" json:"id"`
	ExecutedScenarioID uint `gorm:"index" json:"-"`

	Step string `gorm:"not null" json:"step"`

	// StepDefinition is a generalized regex form of the step, used for
	// error-pattern grouping.
	StepDefinition string `json:"step_definition,omitempty"`
	StepLine       int    `json:"step_line"`
	Exception      string `json:"exception,omitempty"`
}

// ExecutionCompletionRequest is a queue entry meaning someone is waiting to
// be notified that the execution at this job URL finished indexing.
type ExecutionCompletionRequest struct {
	JobURL    string    `gorm:"primaryKey" json:"job_url"`
	CreatedAt time.Time `json:"created_at"`
}
