// Package ingest implements the execution ingestion pipeline: it walks an
// extracted archive, parses its reports, reconciles the result against
// persisted state and computes quality verdicts.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethpandaops/ingestoor/pkg/domain"
)

// BuildInfo is the per-directory-level metadata side file. Any subset of
// fields may be present depending on the level: root files describe the
// execution, country files the deployment, run files the test job. Absent
// fields mean "unknown, keep defaults or previous values".
type BuildInfo struct {
	URL  string `json:"url"`
	Link string `json:"link"`

	// Timestamp is the job start, epoch milliseconds. VersionTimestamp is
	// the moment the tested build was produced.
	Timestamp        int64 `json:"timestamp"`
	VersionTimestamp int64 `json:"versionTimestamp"`

	Building bool `json:"building"`

	// Status is the explicitly declared job status. When empty the status
	// is derived from building/result/url.
	Status domain.JobStatus `json:"status"`
	Result domain.Result    `json:"result"`

	Release string `json:"release"`
	Version string `json:"version"`
	Comment string `json:"comment"`

	Platform     string `json:"platform"`
	CountryTags  string `json:"countryTags"`
	SeverityTags string `json:"severityTags"`

	IncludeInThresholds *bool `json:"includeInThresholds"`

	Duration          *int64 `json:"duration"`
	EstimatedDuration *int64 `json:"estimatedDuration"`
}

// ReadBuildInformation reads the build-information file at the given path.
// Absence is not an error: it returns (nil, nil) so callers treat the level
// as "fields unknown".
func ReadBuildInformation(path string) (*BuildInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading build information: %w", err)
	}

	var info BuildInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing build information: %w", err)
	}

	return &info, nil
}

// JobStatus derives the job lifecycle state declared by the build info:
// an explicitly declared status wins; otherwise no URL means PENDING, a
// build still in progress or without result means RUNNING, NOT_BUILT means
// UNAVAILABLE and any terminal result means DONE.
func (b *BuildInfo) JobStatus() domain.JobStatus {
	if b == nil || b.URL == "" {
		return domain.JobStatusPending
	}

	if b.Status != "" {
		return b.Status
	}

	if b.Building || b.Result == "" {
		return domain.JobStatusRunning
	}

	if b.Result == domain.ResultNotBuilt {
		return domain.JobStatusUnavailable
	}

	return domain.JobStatusDone
}

// StartDateTime returns the job start as a time, when known.
func (b *BuildInfo) StartDateTime() *time.Time {
	if b == nil || b.Timestamp == 0 {
		return nil
	}

	t := time.UnixMilli(b.Timestamp).UTC()

	return &t
}

// BuildDateTime returns the tested build's creation time, when known.
func (b *BuildInfo) BuildDateTime() *time.Time {
	if b == nil || b.VersionTimestamp == 0 {
		return nil
	}

	t := time.UnixMilli(b.VersionTimestamp).UTC()

	return &t
}
