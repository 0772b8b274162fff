package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/ingestoor/pkg/domain"
	"github.com/ethpandaops/ingestoor/pkg/store"
)

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const testCycleDefinition = `{
  "blockingValidation": true,
  "qualityThresholds": {
    "sanity-check": {"failure": 100, "warning": 100},
    "high": {"failure": 90, "warning": 95},
    "*": {"failure": 80, "warning": 90}
  },
  "platformsRules": {
    "euin": [
      {
        "enabled": true,
        "country": "fr",
        "testTypes": "api,firefox",
        "countryTags": "all",
        "severityTags": "all",
        "blockingValidation": true
      },
      {
        "enabled": true,
        "country": "us",
        "testTypes": "firefox",
        "countryTags": "all",
        "severityTags": "all",
        "blockingValidation": true
      }
    ]
  }
}`

const testCucumberReport = `[
  {
    "uri": "demo/account.feature",
    "id": "account",
    "name": "Account",
    "elements": [
      {
        "id": "account;create-account",
        "name": "Create account",
        "keyword": "Scenario",
        "line": 6,
        "tags": [{"name": "@severity-sanity-check"}],
        "steps": [
          {
            "keyword": "When ",
            "name": "the user creates an account",
            "line": 7,
            "result": {"status": "passed", "duration": 1000}
          }
        ]
      }
    ]
  }
]`

// writeDoneExecution lays out a complete extracted archive: root metadata of
// a finished job, a test plan, one country with one cucumber run.
func writeDoneExecution(t *testing.T, dir string) {
	t.Helper()

	writeTestFile(t, dir, "buildInformation.json", `{
		"url": "https://ci.example.org/job/42/",
		"result": "SUCCESS",
		"timestamp": 1581908400000,
		"versionTimestamp": 1581904800000,
		"release": "v3",
		"version": "34910c9971abebce9f633920d8f8cf90853f38ea"
	}`)
	writeTestFile(t, dir, "cycleDefinition.json", testCycleDefinition)

	writeTestFile(t, dir, "fr/buildInformation.json", `{
		"url": "https://ci.example.org/job/fr/8/",
		"result": "SUCCESS"
	}`)
	writeTestFile(t, dir, "fr/firefox/buildInformation.json", `{
		"url": "https://ci.example.org/job/fr/firefox/3/"
	}`)
	writeTestFile(t, dir, "fr/firefox/report.json", testCucumberReport)
}

func reconcile(
	t *testing.T,
	dir string,
	existing *store.Execution,
	completionRequested bool,
) (*store.Execution, error) {
	t.Helper()

	r := NewReconciler(testLogger(), testProject(), 2)

	return r.Reconcile(
		context.Background(), dir, "master", "day", existing, completionRequested)
}

func TestReconcile_DoneExecution(t *testing.T) {
	dir := t.TempDir()
	writeDoneExecution(t, dir)

	execution, err := reconcile(t, dir, nil, false)
	require.NoError(t, err)
	require.NotNil(t, execution)

	assert.Equal(t, "phoenix", execution.ProjectCode)
	assert.Equal(t, "master", execution.Branch)
	assert.Equal(t, "day", execution.Name)
	assert.Equal(t, "v3", execution.Release)
	assert.Equal(t, domain.JobStatusDone, execution.Status)
	assert.Equal(t, domain.ResultSuccess, execution.Result)
	assert.Equal(t, domain.AcceptanceNew, execution.Acceptance)
	assert.True(t, execution.BlockingValidation)

	require.NotNil(t, execution.TestDateTime)
	require.NotNil(t, execution.BuildDateTime)
	assert.True(t, execution.BuildDateTime.Before(*execution.TestDateTime))

	require.Len(t, execution.CountryDeployments, 2)
	fr, us := execution.CountryDeployments[0], execution.CountryDeployments[1]

	assert.Equal(t, "fr", fr.CountryCode)
	assert.Equal(t, "euin", fr.Platform)
	assert.Equal(t, domain.JobStatusDone, fr.Status)

	// "us" was planned but never uploaded.
	assert.Equal(t, "us", us.CountryCode)
	assert.Equal(t, domain.JobStatusUnavailable, us.Status)
	assert.Empty(t, us.JobURL)

	// fr/api, fr/firefox, us/firefox. "manual" has no technology and is
	// absent from the plan anyway.
	require.Len(t, execution.Runs, 3)

	runsByKey := make(map[string]*store.Run)
	for i := range execution.Runs {
		run := &execution.Runs[i]
		runsByKey[run.CountryCode+"/"+run.TypeCode] = run
	}

	frFirefox := runsByKey["fr/firefox"]
	require.NotNil(t, frFirefox)
	assert.Equal(t, domain.JobStatusDone, frFirefox.Status)
	assert.True(t, frFirefox.IncludeInThresholds)
	require.Len(t, frFirefox.ExecutedScenarios, 1)
	assert.Equal(t, "Create account", frFirefox.ExecutedScenarios[0].Name)

	// fr/api was planned but its directory is absent: with the execution
	// DONE it can never arrive.
	frAPI := runsByKey["fr/api"]
	require.NotNil(t, frAPI)
	assert.Equal(t, domain.JobStatusUnavailable, frAPI.Status)
	assert.Empty(t, frAPI.ExecutedScenarios)

	usFirefox := runsByKey["us/firefox"]
	require.NotNil(t, usFirefox)
	assert.Equal(t, domain.JobStatusUnavailable, usFirefox.Status)

	// One expected run has no scenarios: quality is incomplete.
	assert.Equal(t, domain.QualityIncomplete, execution.QualityStatus)
	assert.NotEmpty(t, execution.QualityThresholds)
	assert.NotEmpty(t, execution.QualitySeverities)
}

func TestReconcile_ExistingDoneIsNeverReindexed(t *testing.T) {
	dir := t.TempDir()
	writeDoneExecution(t, dir)

	existing := &store.Execution{
		ID:     7,
		Status: domain.JobStatusDone,
	}

	execution, err := reconcile(t, dir, existing, false)
	require.NoError(t, err)
	assert.Nil(t, execution)
}

func TestReconcile_SparseMetadataKeepsExistingFields(t *testing.T) {
	dir := t.TempDir()
	writeDoneExecution(t, dir)

	// The new root metadata has no release field this time.
	writeTestFile(t, dir, "buildInformation.json", `{
		"url": "https://ci.example.org/job/42/",
		"building": true
	}`)

	existing := &store.Execution{
		ID:      7,
		Status:  domain.JobStatusRunning,
		Release: "v3",
		Version: "34910c9971abebce9f633920d8f8cf90853f38ea",
		JobURL:  "https://ci.example.org/job/42/",
	}

	execution, err := reconcile(t, dir, existing, false)
	require.NoError(t, err)
	require.NotNil(t, execution)

	assert.Equal(t, "v3", execution.Release)
	assert.Equal(t, "34910c9971abebce9f633920d8f8cf90853f38ea", execution.Version)
	assert.Equal(t, domain.JobStatusRunning, execution.Status)
}

func TestReconcile_NoCycleDefinition(t *testing.T) {
	t.Run("running job is skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "buildInformation.json", `{
			"url": "https://ci.example.org/job/42/",
			"building": true
		}`)

		execution, err := reconcile(t, dir, nil, false)
		require.NoError(t, err)
		assert.Nil(t, execution)
	})

	t.Run("finished job is indexed bare", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "buildInformation.json", `{
			"url": "https://ci.example.org/job/42/",
			"result": "SUCCESS"
		}`)

		execution, err := reconcile(t, dir, nil, false)
		require.NoError(t, err)
		require.NotNil(t, execution)

		assert.Equal(t, domain.JobStatusDone, execution.Status)
		assert.False(t, execution.BlockingValidation)
		assert.Empty(t, execution.Runs)
		assert.Empty(t, execution.CountryDeployments)
		assert.Equal(t, domain.QualityIncomplete, execution.QualityStatus)
	})

	t.Run("completion request forces bare indexing", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "buildInformation.json", `{
			"url": "https://ci.example.org/job/42/",
			"building": true
		}`)

		execution, err := reconcile(t, dir, nil, true)
		require.NoError(t, err)
		require.NotNil(t, execution)
		assert.False(t, execution.BlockingValidation)
	})
}

func TestReconcile_FinalizesChildrenWhenDone(t *testing.T) {
	dir := t.TempDir()
	writeDoneExecution(t, dir)

	// The fr country job declares itself still running; the root is DONE,
	// so it can never be crawled again.
	writeTestFile(t, dir, "fr/buildInformation.json", `{
		"url": "https://ci.example.org/job/fr/8/",
		"building": true
	}`)

	execution, err := reconcile(t, dir, nil, false)
	require.NoError(t, err)
	require.NotNil(t, execution)
	require.Equal(t, domain.JobStatusDone, execution.Status)

	for _, deployment := range execution.CountryDeployments {
		assert.NotEqual(t, domain.JobStatusRunning, deployment.Status)
		assert.NotEqual(t, domain.JobStatusPending, deployment.Status)
	}

	for _, run := range execution.Runs {
		assert.NotEqual(t, domain.JobStatusRunning, run.Status)
		assert.NotEqual(t, domain.JobStatusPending, run.Status)
	}
}

func TestReconcile_LateCountryUploadIsParsed(t *testing.T) {
	dir := t.TempDir()
	writeDoneExecution(t, dir)

	// The "us" upload arrives this time, without run-level metadata.
	writeTestFile(t, dir, "us/buildInformation.json", `{
		"url": "https://ci.example.org/job/us/1/",
		"result": "SUCCESS"
	}`)
	writeTestFile(t, dir, "us/firefox/report.json", testCucumberReport)

	execution, err := reconcile(t, dir, nil, false)
	require.NoError(t, err)
	require.NotNil(t, execution)

	var usFirefox *store.Run

	for i := range execution.Runs {
		if execution.Runs[i].CountryCode == "us" && execution.Runs[i].TypeCode == "firefox" {
			usFirefox = &execution.Runs[i]
		}
	}

	require.NotNil(t, usFirefox)
	assert.Equal(t, domain.JobStatusDone, usFirefox.Status)
	require.Len(t, usFirefox.ExecutedScenarios, 1)
}

func TestReconcile_UnknownDirsAreSkipped(t *testing.T) {
	dir := t.TempDir()
	writeDoneExecution(t, dir)

	// Directories matching no configured country or type are ignored.
	writeTestFile(t, dir, "atlantis/firefox/report.json", testCucumberReport)
	writeTestFile(t, dir, "fr/telepathy/report.json", testCucumberReport)

	execution, err := reconcile(t, dir, nil, false)
	require.NoError(t, err)
	require.NotNil(t, execution)

	for _, deployment := range execution.CountryDeployments {
		assert.NotEqual(t, "atlantis", deployment.CountryCode)
	}

	for _, run := range execution.Runs {
		assert.NotEqual(t, "telepathy", run.TypeCode)
	}
}

func TestReconcile_BrokenRunReportLeavesRunEmpty(t *testing.T) {
	dir := t.TempDir()
	writeDoneExecution(t, dir)
	writeTestFile(t, dir, "fr/firefox/report.json", "this is not json")

	execution, err := reconcile(t, dir, nil, false)
	require.NoError(t, err)
	require.NotNil(t, execution)

	var frFirefox *store.Run

	for i := range execution.Runs {
		if execution.Runs[i].CountryCode == "fr" && execution.Runs[i].TypeCode == "firefox" {
			frFirefox = &execution.Runs[i]
		}
	}

	require.NotNil(t, frFirefox)
	assert.Empty(t, frFirefox.ExecutedScenarios)
}

func TestLeafJobStatus(t *testing.T) {
	tests := []struct {
		name string
		info BuildInfo
		want domain.JobStatus
	}{
		{
			name: "explicit status wins",
			info: BuildInfo{Status: domain.JobStatusUnavailable, Building: true},
			want: domain.JobStatusUnavailable,
		},
		{
			name: "building",
			info: BuildInfo{Building: true},
			want: domain.JobStatusRunning,
		},
		{
			name: "not built",
			info: BuildInfo{Result: domain.ResultNotBuilt},
			want: domain.JobStatusUnavailable,
		},
		{
			name: "terminal result",
			info: BuildInfo{Result: domain.ResultFailure},
			want: domain.JobStatusDone,
		},
		{
			name: "url with content",
			info: BuildInfo{URL: "https://ci.example.org/x/"},
			want: domain.JobStatusDone,
		},
		{
			name: "nothing at all falls back",
			info: BuildInfo{},
			want: domain.JobStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want,
				leafJobStatus(&tt.info, domain.JobStatusPending))
		})
	}
}
