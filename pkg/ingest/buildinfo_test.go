package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/ingestoor/pkg/domain"
)

func TestReadBuildInformation(t *testing.T) {
	dir := t.TempDir()

	t.Run("absent file", func(t *testing.T) {
		info, err := ReadBuildInformation(filepath.Join(dir, "nope.json"))
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("malformed file", func(t *testing.T) {
		writeTestFile(t, dir, "bad.json", "{")

		_, err := ReadBuildInformation(filepath.Join(dir, "bad.json"))
		require.Error(t, err)
	})

	t.Run("valid file", func(t *testing.T) {
		writeTestFile(t, dir, "buildInformation.json", `{
			"url": "https://ci.example.org/job/42/",
			"result": "SUCCESS",
			"timestamp": 1581908400000
		}`)

		info, err := ReadBuildInformation(filepath.Join(dir, "buildInformation.json"))
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, domain.ResultSuccess, info.Result)

		start := info.StartDateTime()
		require.NotNil(t, start)
		assert.Equal(t, 2020, start.Year())
		assert.Nil(t, info.BuildDateTime())
	})
}

func TestBuildInfo_JobStatus(t *testing.T) {
	tests := []struct {
		name string
		info *BuildInfo
		want domain.JobStatus
	}{
		{name: "nil info", info: nil, want: domain.JobStatusPending},
		{name: "no url", info: &BuildInfo{Result: domain.ResultSuccess}, want: domain.JobStatusPending},
		{
			name: "explicit status wins",
			info: &BuildInfo{URL: "https://x/", Status: domain.JobStatusDone, Building: true},
			want: domain.JobStatusDone,
		},
		{
			name: "building",
			info: &BuildInfo{URL: "https://x/", Building: true, Result: domain.ResultSuccess},
			want: domain.JobStatusRunning,
		},
		{
			name: "no result yet",
			info: &BuildInfo{URL: "https://x/"},
			want: domain.JobStatusRunning,
		},
		{
			name: "not built",
			info: &BuildInfo{URL: "https://x/", Result: domain.ResultNotBuilt},
			want: domain.JobStatusUnavailable,
		},
		{
			name: "terminal result",
			info: &BuildInfo{URL: "https://x/", Result: domain.ResultAborted},
			want: domain.JobStatusDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.JobStatus())
		})
	}
}

func TestReadCycleDefinition(t *testing.T) {
	dir := t.TempDir()

	t.Run("absent file", func(t *testing.T) {
		def, err := ReadCycleDefinition(filepath.Join(dir, "nope.json"))
		require.NoError(t, err)
		assert.Nil(t, def)
	})

	t.Run("valid file", func(t *testing.T) {
		writeTestFile(t, dir, "cycleDefinition.json", testCycleDefinition)

		def, err := ReadCycleDefinition(filepath.Join(dir, "cycleDefinition.json"))
		require.NoError(t, err)
		require.NotNil(t, def)

		assert.True(t, def.BlockingValidation)
		assert.Len(t, def.QualityThresholds, 3)
		require.Len(t, def.PlatformsRules["euin"], 2)
		assert.Equal(t, []string{"api", "firefox"}, def.PlatformsRules["euin"][0].TypeCodes())
	})
}

func TestSeverityCodes(t *testing.T) {
	all := testProject().Severities

	assert.Equal(t, []string{"sanity-check", "high"}, SeverityCodes("", all))
	assert.Equal(t, []string{"sanity-check", "high"}, SeverityCodes("all", all))
	assert.Equal(t, []string{"high"}, SeverityCodes("high", all))
	assert.Equal(t, []string{"sanity-check", "high"}, SeverityCodes(" sanity-check , high ", all))
}
