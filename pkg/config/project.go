package config

import (
	"fmt"

	"github.com/ethpandaops/ingestoor/pkg/domain"
)

// Default relative paths of the files the indexer reads inside an extracted
// archive. Each is overridable per project.
const (
	DefaultBuildInformationPath = "buildInformation.json"
	DefaultCycleDefinitionPath  = "cycleDefinition.json"

	DefaultCucumberReportPath           = "report.json"
	DefaultCucumberStepDefinitionsPath  = "stepDefinitions.json"
	DefaultPostmanReportsPath           = "reports"
	DefaultCypressReportSuffix          = ".cucumber.json"
	DefaultCypressStepDefinitionsSuffix = ".stepDefinitions.json"
	DefaultCypressMediaPath             = "cypress-media.json"
)

// ProjectConfig is the read-only catalogue of one project: its countries,
// test types, severities and indexer file-path overrides.
type ProjectConfig struct {
	Code string `yaml:"code" mapstructure:"code"`
	Name string `yaml:"name,omitempty" mapstructure:"name"`

	Countries  []CountryConfig   `yaml:"countries" mapstructure:"countries"`
	Types      []TypeConfig      `yaml:"types" mapstructure:"types"`
	Severities []domain.Severity `yaml:"severities" mapstructure:"severities"`

	Indexer IndexerConfig `yaml:"indexer,omitempty" mapstructure:"indexer"`
}

// CountryConfig declares a country the project deploys and tests.
type CountryConfig struct {
	Code string `yaml:"code" mapstructure:"code"`
	Name string `yaml:"name,omitempty" mapstructure:"name"`
}

// TypeConfig declares a test type. A type with an empty technology is
// declared-but-not-indexable: it may appear in test plans but its runs are
// never parsed.
type TypeConfig struct {
	Code       string            `yaml:"code" mapstructure:"code"`
	Name       string            `yaml:"name,omitempty" mapstructure:"name"`
	Technology domain.Technology `yaml:"technology,omitempty" mapstructure:"technology"`
}

// IndexerConfig overrides where the indexer looks for files inside an
// extracted archive.
type IndexerConfig struct {
	BuildInformationPath string `yaml:"build_information_path,omitempty" mapstructure:"build_information_path"`
	CycleDefinitionPath  string `yaml:"cycle_definition_path,omitempty" mapstructure:"cycle_definition_path"`

	// DeleteAfterIndexing removes the extracted incoming directory once the
	// execution has been indexed as DONE.
	DeleteAfterIndexing bool `yaml:"delete_after_indexing,omitempty" mapstructure:"delete_after_indexing"`

	CucumberReportPath          string `yaml:"cucumber_report_path,omitempty" mapstructure:"cucumber_report_path"`
	CucumberStepDefinitionsPath string `yaml:"cucumber_step_definitions_path,omitempty" mapstructure:"cucumber_step_definitions_path"`

	PostmanReportsPath string `yaml:"postman_reports_path,omitempty" mapstructure:"postman_reports_path"`

	CypressReportSuffix          string `yaml:"cypress_report_suffix,omitempty" mapstructure:"cypress_report_suffix"`
	CypressStepDefinitionsSuffix string `yaml:"cypress_step_definitions_suffix,omitempty" mapstructure:"cypress_step_definitions_suffix"`
	CypressMediaPath             string `yaml:"cypress_media_path,omitempty" mapstructure:"cypress_media_path"`
}

func (p *ProjectConfig) applyDefaults() {
	if p.Indexer.BuildInformationPath == "" {
		p.Indexer.BuildInformationPath = DefaultBuildInformationPath
	}

	if p.Indexer.CycleDefinitionPath == "" {
		p.Indexer.CycleDefinitionPath = DefaultCycleDefinitionPath
	}

	if p.Indexer.CucumberReportPath == "" {
		p.Indexer.CucumberReportPath = DefaultCucumberReportPath
	}

	if p.Indexer.CucumberStepDefinitionsPath == "" {
		p.Indexer.CucumberStepDefinitionsPath = DefaultCucumberStepDefinitionsPath
	}

	if p.Indexer.PostmanReportsPath == "" {
		p.Indexer.PostmanReportsPath = DefaultPostmanReportsPath
	}

	if p.Indexer.CypressReportSuffix == "" {
		p.Indexer.CypressReportSuffix = DefaultCypressReportSuffix
	}

	if p.Indexer.CypressStepDefinitionsSuffix == "" {
		p.Indexer.CypressStepDefinitionsSuffix = DefaultCypressStepDefinitionsSuffix
	}

	if p.Indexer.CypressMediaPath == "" {
		p.Indexer.CypressMediaPath = DefaultCypressMediaPath
	}
}

func (p *ProjectConfig) validate() error {
	codes := make(map[string]struct{}, len(p.Countries))

	for i, country := range p.Countries {
		if country.Code == "" {
			return fmt.Errorf("country %d: code is required", i)
		}

		if _, exists := codes[country.Code]; exists {
			return fmt.Errorf("duplicate country code %q", country.Code)
		}

		codes[country.Code] = struct{}{}
	}

	typeCodes := make(map[string]struct{}, len(p.Types))

	for i, typ := range p.Types {
		if typ.Code == "" {
			return fmt.Errorf("type %d: code is required", i)
		}

		if _, exists := typeCodes[typ.Code]; exists {
			return fmt.Errorf("duplicate type code %q", typ.Code)
		}

		typeCodes[typ.Code] = struct{}{}

		if typ.Technology != "" && !typ.Technology.Known() {
			return fmt.Errorf("type %q: unknown technology %q", typ.Code, typ.Technology)
		}
	}

	defaults := 0

	for _, severity := range p.Severities {
		if severity.Code == "" {
			return fmt.Errorf("severity without code")
		}

		if severity.Code == domain.SeverityAllCode {
			return fmt.Errorf("severity code %q is reserved", domain.SeverityAllCode)
		}

		if severity.DefaultOnMissing {
			defaults++
		}
	}

	if defaults > 1 {
		return fmt.Errorf("only one severity may be default_on_missing")
	}

	return nil
}

// Country returns the declared country with the given code.
func (p *ProjectConfig) Country(code string) (*CountryConfig, bool) {
	for i := range p.Countries {
		if p.Countries[i].Code == code {
			return &p.Countries[i], true
		}
	}

	return nil, false
}

// Type returns the declared test type with the given code.
func (p *ProjectConfig) Type(code string) (*TypeConfig, bool) {
	for i := range p.Types {
		if p.Types[i].Code == code {
			return &p.Types[i], true
		}
	}

	return nil, false
}
