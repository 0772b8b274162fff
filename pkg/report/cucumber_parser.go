package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/config"
	"github.com/ethpandaops/ingestoor/pkg/domain"
	"github.com/ethpandaops/ingestoor/pkg/report/cucumber"
	"github.com/ethpandaops/ingestoor/pkg/store"
)

// Compile-time interface check.
var _ Parser = (*cucumberParser)(nil)

type cucumberParser struct {
	log                 logrus.FieldLogger
	reportPath          string
	stepDefinitionsPath string
}

func newCucumberParser(
	log logrus.FieldLogger,
	indexer *config.IndexerConfig,
) *cucumberParser {
	return &cucumberParser{
		log:                 log.WithField("component", "cucumber-parser"),
		reportPath:          indexer.CucumberReportPath,
		stepDefinitionsPath: indexer.CucumberStepDefinitionsPath,
	}
}

func (p *cucumberParser) Technology() domain.Technology {
	return domain.TechnologyCucumber
}

func (p *cucumberParser) ParseRunDir(dir, country string) ([]store.ExecutedScenario, error) {
	data, err := os.ReadFile(filepath.Join(dir, p.reportPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading cucumber report: %w", err)
	}

	features, err := cucumber.ParseReport(data)
	if err != nil {
		return nil, err
	}

	return cucumber.ExtractScenarios(p.log, features, p.loadStepDefinitions(dir)), nil
}

// loadStepDefinitions reads the optional step-definitions side file. Its
// absence is fine: error step definitions are simulated from the step text.
func (p *cucumberParser) loadStepDefinitions(dir string) []string {
	data, err := os.ReadFile(filepath.Join(dir, p.stepDefinitionsPath))
	if err != nil {
		if !os.IsNotExist(err) {
			p.log.WithError(err).Info("Cannot read step definitions: simulating them")
		}

		return nil
	}

	definitions, err := cucumber.ParseStepDefinitions(data)
	if err != nil {
		p.log.WithError(err).Info("Cannot parse step definitions: simulating them")

		return nil
	}

	return definitions
}
