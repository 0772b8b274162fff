// Package report turns technology-specific test reports into the common
// executed-scenario model. The set of supported technologies is closed:
// parsers are dispatched by the technology tag of a run's test type.
package report

import (
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/config"
	"github.com/ethpandaops/ingestoor/pkg/domain"
	"github.com/ethpandaops/ingestoor/pkg/store"
)

// Parser extracts the executed scenarios of one run directory. All scenarios
// of a run are produced atomically: per-scenario step and error arithmetic
// needs the whole report.
type Parser interface {
	Technology() domain.Technology

	// ParseRunDir parses the report files found under dir for the given
	// country code. A missing report file yields no scenarios and no error;
	// unparseable content is an error the caller degrades to an empty run.
	ParseRunDir(dir, country string) ([]store.ExecutedScenario, error)
}

// Parsers returns one parser per supported technology, configured with the
// project's file-path overrides.
func Parsers(
	log logrus.FieldLogger,
	indexer *config.IndexerConfig,
) map[domain.Technology]Parser {
	return map[domain.Technology]Parser{
		domain.TechnologyCucumber: newCucumberParser(log, indexer),
		domain.TechnologyPostman:  newPostmanParser(log, indexer),
		domain.TechnologyCypress:  newCypressParser(log, indexer),
	}
}
