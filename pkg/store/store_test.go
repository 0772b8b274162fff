package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/ingestoor/pkg/config"
	"github.com/ethpandaops/ingestoor/pkg/domain"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	st := NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{
			Path: filepath.Join(t.TempDir(), "test.db"),
		},
	})

	require.NoError(t, st.Start(context.Background()))
	t.Cleanup(func() { _ = st.Stop() })

	return st
}

func testExecution() *Execution {
	return &Execution{
		ProjectCode:   "phoenix",
		Branch:        "master",
		Name:          "day",
		Version:       "34910c9971",
		JobURL:        "https://ci.example.org/job/42/",
		Status:        domain.JobStatusDone,
		Result:        domain.ResultSuccess,
		Acceptance:    domain.AcceptanceNew,
		QualityStatus: domain.QualityPassed,
		CountryDeployments: []CountryDeployment{
			{CountryCode: "fr", Platform: "euin", Status: domain.JobStatusDone},
		},
		Runs: []Run{
			{
				CountryCode:         "fr",
				TypeCode:            "firefox",
				Technology:          domain.TechnologyCucumber,
				Status:              domain.JobStatusDone,
				IncludeInThresholds: true,
				ExecutedScenarios: []ExecutedScenario{
					{
						Name:       "Create account",
						CucumberID: "account;create-account",
						Severity:   "sanity-check",
						Content:    "7:passed:1000:When the user creates an account",
						Errors: []Error{
							{Step: "a step", StepLine: 7, Exception: "boom"},
						},
					},
				},
			},
		},
	}
}

func TestSaveAndFindExecution(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	execution := testExecution()
	require.NoError(t, st.SaveExecution(ctx, execution))
	require.NotZero(t, execution.ID)

	t.Run("by job url", func(t *testing.T) {
		found, err := st.FindExecutionByJobURL(ctx, "phoenix", execution.JobURL)
		require.NoError(t, err)
		require.NotNil(t, found)

		assert.Equal(t, execution.ID, found.ID)
		require.Len(t, found.Runs, 1)
		require.Len(t, found.Runs[0].ExecutedScenarios, 1)
		require.Len(t, found.Runs[0].ExecutedScenarios[0].Errors, 1)
		require.Len(t, found.CountryDeployments, 1)
		assert.Equal(t, "boom", found.Runs[0].ExecutedScenarios[0].Errors[0].Exception)
	})

	t.Run("by version", func(t *testing.T) {
		found, err := st.FindExecutionByVersion(ctx, "phoenix", "34910c9971")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, execution.ID, found.ID)
	})

	t.Run("missing rows return nil", func(t *testing.T) {
		found, err := st.FindExecutionByJobURL(ctx, "phoenix", "https://nope/")
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = st.FindExecutionByJobURL(ctx, "phoenix", "")
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = st.FindExecutionByVersion(ctx, "phoenix", "cafebabe")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("project scoping", func(t *testing.T) {
		found, err := st.FindExecutionByJobURL(ctx, "other", execution.JobURL)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestSaveExecution_ReplacesChildren(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	execution := testExecution()
	require.NoError(t, st.SaveExecution(ctx, execution))

	id := execution.ID

	// Save again with a different child tree.
	updated, err := st.FindExecutionByJobURL(ctx, "phoenix", execution.JobURL)
	require.NoError(t, err)
	require.NotNil(t, updated)

	updated.Runs = []Run{
		{
			CountryCode: "us",
			TypeCode:    "api",
			Technology:  domain.TechnologyPostman,
			Status:      domain.JobStatusDone,
			ExecutedScenarios: []ExecutedScenario{
				{Name: "Ping", CucumberID: "all/Ping"},
				{Name: "Pong", CucumberID: "all/Pong"},
			},
		},
	}
	updated.CountryDeployments = []CountryDeployment{
		{CountryCode: "us", Status: domain.JobStatusDone},
	}

	require.NoError(t, st.SaveExecution(ctx, updated))
	assert.Equal(t, id, updated.ID)

	found, err := st.FindExecutionByJobURL(ctx, "phoenix", execution.JobURL)
	require.NoError(t, err)
	require.NotNil(t, found)

	require.Len(t, found.Runs, 1)
	assert.Equal(t, "us", found.Runs[0].CountryCode)
	assert.Len(t, found.Runs[0].ExecutedScenarios, 2)
	require.Len(t, found.CountryDeployments, 1)
	assert.Equal(t, "us", found.CountryDeployments[0].CountryCode)
}

func TestGetAndListExecutions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := testExecution()
	require.NoError(t, st.SaveExecution(ctx, first))

	second := testExecution()
	second.JobURL = "https://ci.example.org/job/43/"
	second.Version = "deadbeef"
	require.NoError(t, st.SaveExecution(ctx, second))

	got, err := st.GetExecution(ctx, "phoenix", first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Runs, 1)

	missing, err := st.GetExecution(ctx, "phoenix", 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	executions, err := st.ListExecutions(ctx, "phoenix", 10)
	require.NoError(t, err)
	require.Len(t, executions, 2)
	// Newest first.
	assert.Equal(t, second.ID, executions[0].ID)

	limited, err := st.ListExecutions(ctx, "phoenix", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestCompletionRequests(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	jobURL := "https://ci.example.org/job/42/"

	has, err := st.HasCompletionRequest(ctx, jobURL)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, st.CreateCompletionRequest(ctx, jobURL))
	// Creating twice is idempotent.
	require.NoError(t, st.CreateCompletionRequest(ctx, jobURL))

	has, err = st.HasCompletionRequest(ctx, jobURL)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = st.HasCompletionRequest(ctx, "")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, st.DeleteCompletionRequest(ctx, jobURL))

	has, err = st.HasCompletionRequest(ctx, jobURL)
	require.NoError(t, err)
	assert.False(t, has)

	// Deleting an absent request is not an error.
	require.NoError(t, st.DeleteCompletionRequest(ctx, jobURL))
	require.NoError(t, st.DeleteCompletionRequest(ctx, ""))
}
