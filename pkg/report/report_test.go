package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/ingestoor/pkg/config"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func testIndexer() *config.IndexerConfig {
	return &config.IndexerConfig{
		BuildInformationPath:         config.DefaultBuildInformationPath,
		CycleDefinitionPath:          config.DefaultCycleDefinitionPath,
		CucumberReportPath:           config.DefaultCucumberReportPath,
		CucumberStepDefinitionsPath:  config.DefaultCucumberStepDefinitionsPath,
		PostmanReportsPath:           config.DefaultPostmanReportsPath,
		CypressReportSuffix:          config.DefaultCypressReportSuffix,
		CypressStepDefinitionsSuffix: config.DefaultCypressStepDefinitionsSuffix,
		CypressMediaPath:             config.DefaultCypressMediaPath,
	}
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const cucumberReport = `[
  {
    "uri": "demo/account.feature",
    "name": "Account",
    "elements": [
      {
        "id": "account;create-account",
        "name": "Create account",
        "keyword": "Scenario",
        "line": 6,
        "steps": [
          {
            "keyword": "When ",
            "name": "the user creates an account",
            "line": 7,
            "result": {
              "status": "failed",
              "duration": 1000,
              "error_message": "boom"
            }
          }
        ]
      }
    ]
  }
]`

const newmanReport = `{
  "collection": {
    "info": {"name": "Accounts"},
    "item": [
      {
        "id": "req-1",
        "name": "Ping",
        "request": {"method": "GET", "url": {"raw": "https://api.example.org/ping"}}
      }
    ]
  },
  "run": {
    "executions": [
      {
        "item": {"id": "req-1"},
        "response": {"code": 200, "responseTime": 5},
        "assertions": [{"assertion": "status is 200"}]
      }
    ]
  }
}`

func TestParsers_CoverEveryTechnology(t *testing.T) {
	parsers := Parsers(testLogger(), testIndexer())

	require.Len(t, parsers, 3)

	for technology, parser := range parsers {
		assert.Equal(t, technology, parser.Technology())
	}
}

func TestCucumberParser(t *testing.T) {
	parser := newCucumberParser(testLogger(), testIndexer())

	t.Run("missing report yields nothing", func(t *testing.T) {
		scenarios, err := parser.ParseRunDir(t.TempDir(), "fr")
		require.NoError(t, err)
		assert.Empty(t, scenarios)
	})

	t.Run("report with step definitions", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "report.json", cucumberReport)
		writeTestFile(t, dir, "stepDefinitions.json",
			`["^the user creates an account$"]`)

		scenarios, err := parser.ParseRunDir(dir, "fr")
		require.NoError(t, err)
		require.Len(t, scenarios, 1)
		assert.Equal(t, "Create account", scenarios[0].Name)

		require.Len(t, scenarios[0].Errors, 1)
		assert.Equal(t, "^the user creates an account$", scenarios[0].Errors[0].StepDefinition)
	})

	t.Run("unparseable report is an error", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "report.json", "nope")

		_, err := parser.ParseRunDir(dir, "fr")
		require.Error(t, err)
	})
}

func TestPostmanParser(t *testing.T) {
	parser := newPostmanParser(testLogger(), testIndexer())

	t.Run("missing reports dir yields nothing", func(t *testing.T) {
		scenarios, err := parser.ParseRunDir(t.TempDir(), "fr")
		require.NoError(t, err)
		assert.Empty(t, scenarios)
	})

	t.Run("country filter and shared position counter", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "reports/accounts_all.json", newmanReport)
		writeTestFile(t, dir, "reports/orders_fr.json", newmanReport)
		writeTestFile(t, dir, "reports/orders_us.json", newmanReport)
		writeTestFile(t, dir, "reports/notes.txt", "not a report")

		scenarios, err := parser.ParseRunDir(dir, "fr")
		require.NoError(t, err)
		require.Len(t, scenarios, 2)

		// Sorted file order, one position counter across files.
		assert.Equal(t, "accounts.json", scenarios[0].FeatureFile)
		assert.Equal(t, 0, scenarios[0].Line)
		assert.Equal(t, "orders.json", scenarios[1].FeatureFile)
		assert.Equal(t, 1, scenarios[1].Line)
	})
}

func TestCypressParser(t *testing.T) {
	parser := newCypressParser(testLogger(), testIndexer())

	t.Run("missing dir yields nothing", func(t *testing.T) {
		scenarios, err := parser.ParseRunDir(
			filepath.Join(t.TempDir(), "absent"), "fr")
		require.NoError(t, err)
		assert.Empty(t, scenarios)
	})

	t.Run("per file isolation and media", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "account.cucumber.json", cucumberReport)
		writeTestFile(t, dir, "broken.cucumber.json", "nope")
		writeTestFile(t, dir, "cypress-media.json", `[
			{
				"feature": "demo/account.feature",
				"video": "https://media.example.org/account.mp4",
				"screenshots": {"Create account": "https://media.example.org/create.png"}
			}
		]`)

		scenarios, err := parser.ParseRunDir(dir, "fr")
		require.NoError(t, err)

		// The broken report is skipped, not fatal.
		require.Len(t, scenarios, 1)
		assert.Equal(t, "https://media.example.org/account.mp4", scenarios[0].VideoURL)
		assert.Equal(t, "https://media.example.org/create.png", scenarios[0].ScreenshotURL)
	})

	t.Run("step definitions side file", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "account.cucumber.json", cucumberReport)
		writeTestFile(t, dir, "account.stepDefinitions.json",
			`["^the user creates an account$"]`)

		scenarios, err := parser.ParseRunDir(dir, "fr")
		require.NoError(t, err)
		require.Len(t, scenarios, 1)
		require.Len(t, scenarios[0].Errors, 1)
		assert.Equal(t, "^the user creates an account$",
			scenarios[0].Errors[0].StepDefinition)
	})
}
