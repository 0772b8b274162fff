package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/config"
	"github.com/ethpandaops/ingestoor/pkg/domain"
	"github.com/ethpandaops/ingestoor/pkg/report/postman"
	"github.com/ethpandaops/ingestoor/pkg/store"
)

// Compile-time interface check.
var _ Parser = (*postmanParser)(nil)

type postmanParser struct {
	log         logrus.FieldLogger
	reportsPath string
}

func newPostmanParser(
	log logrus.FieldLogger,
	indexer *config.IndexerConfig,
) *postmanParser {
	return &postmanParser{
		log:         log.WithField("component", "postman-parser"),
		reportsPath: indexer.PostmanReportsPath,
	}
}

func (p *postmanParser) Technology() domain.Technology {
	return domain.TechnologyPostman
}

// ParseRunDir parses every Newman report of the run's reports directory that
// applies to the given country. A single position counter spans all report
// files, so request lines stay unique across collections.
func (p *postmanParser) ParseRunDir(dir, country string) ([]store.ExecutedScenario, error) {
	reportsDir := filepath.Join(dir, p.reportsPath)

	entries, err := os.ReadDir(reportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("listing newman reports: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		if !postman.FileMatchesCountry(entry.Name(), country) {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	var (
		scenarios []store.ExecutedScenario
		position  int
	)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(reportsDir, name))
		if err != nil {
			return scenarios, fmt.Errorf("reading newman report %s: %w", name, err)
		}

		parsed, err := postman.ParseReport(data)
		if err != nil {
			return scenarios, fmt.Errorf("report %s: %w", name, err)
		}

		scenarios = append(scenarios,
			postman.ExtractScenarios(p.log, parsed, name, &position)...)
	}

	return scenarios, nil
}
