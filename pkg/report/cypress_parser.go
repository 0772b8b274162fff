package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/config"
	"github.com/ethpandaops/ingestoor/pkg/domain"
	"github.com/ethpandaops/ingestoor/pkg/report/cucumber"
	"github.com/ethpandaops/ingestoor/pkg/store"
)

// Compile-time interface check.
var _ Parser = (*cypressParser)(nil)

// cypressParser reads Cypress runs: the same structured-step grammar as
// Cucumber, but split into one report file per spec, with optional
// per-feature step-definitions side files and a media manifest carrying
// screenshot/video URLs.
type cypressParser struct {
	log                   logrus.FieldLogger
	reportSuffix          string
	stepDefinitionsSuffix string
	mediaPath             string
}

func newCypressParser(
	log logrus.FieldLogger,
	indexer *config.IndexerConfig,
) *cypressParser {
	return &cypressParser{
		log:                   log.WithField("component", "cypress-parser"),
		reportSuffix:          indexer.CypressReportSuffix,
		stepDefinitionsSuffix: indexer.CypressStepDefinitionsSuffix,
		mediaPath:             indexer.CypressMediaPath,
	}
}

func (p *cypressParser) Technology() domain.Technology {
	return domain.TechnologyCypress
}

func (p *cypressParser) ParseRunDir(dir, country string) ([]store.ExecutedScenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("listing cypress reports: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), p.reportSuffix) {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	media := p.loadMedia(dir)

	var scenarios []store.ExecutedScenario

	for _, name := range names {
		parsed, err := p.parseReportFile(dir, name)
		if err != nil {
			// One broken spec report must not abort its siblings.
			p.log.WithError(err).WithField("file", name).
				Warn("Skipping unparseable cypress report")

			continue
		}

		scenarios = append(scenarios, parsed...)
	}

	applyMedia(scenarios, media)

	return scenarios, nil
}

func (p *cypressParser) parseReportFile(dir, name string) ([]store.ExecutedScenario, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("reading cypress report: %w", err)
	}

	features, err := cucumber.ParseReport(data)
	if err != nil {
		return nil, err
	}

	return cucumber.ExtractScenarios(p.log, features, p.loadStepDefinitions(dir, name)), nil
}

// loadStepDefinitions reads the side file sharing the report's filename
// prefix (the portion before the first dot). Absence or corruption leaves
// this feature's error step definitions simulated and never aborts sibling
// features.
func (p *cypressParser) loadStepDefinitions(dir, reportName string) []string {
	prefix := reportName
	if idx := strings.Index(reportName, "."); idx >= 0 {
		prefix = reportName[:idx]
	}

	data, err := os.ReadFile(filepath.Join(dir, prefix+p.stepDefinitionsSuffix))
	if err != nil {
		if !os.IsNotExist(err) {
			p.log.WithError(err).WithField("file", reportName).
				Info("Cannot read step definitions: simulating them")
		}

		return nil
	}

	definitions, err := cucumber.ParseStepDefinitions(data)
	if err != nil {
		p.log.WithError(err).WithField("file", reportName).
			Info("Cannot parse step definitions: simulating them")

		return nil
	}

	return definitions
}

// cypressMediaEntry maps the scenarios of one feature file to their
// recorded assets.
type cypressMediaEntry struct {
	Feature     string            `json:"feature"`
	Video       string            `json:"video"`
	Screenshots map[string]string `json:"screenshots"`
}

func (p *cypressParser) loadMedia(dir string) []cypressMediaEntry {
	data, err := os.ReadFile(filepath.Join(dir, p.mediaPath))
	if err != nil {
		return nil
	}

	var entries []cypressMediaEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		p.log.WithError(err).Info("Cannot parse cypress media manifest: ignoring it")

		return nil
	}

	return entries
}

func applyMedia(scenarios []store.ExecutedScenario, media []cypressMediaEntry) {
	if len(media) == 0 {
		return
	}

	byFeature := make(map[string]*cypressMediaEntry, len(media))
	for i := range media {
		byFeature[media[i].Feature] = &media[i]
	}

	for i := range scenarios {
		entry, ok := byFeature[scenarios[i].FeatureFile]
		if !ok {
			continue
		}

		if scenarios[i].VideoURL == "" {
			scenarios[i].VideoURL = entry.Video
		}

		if url, ok := entry.Screenshots[scenarios[i].Name]; ok && scenarios[i].ScreenshotURL == "" {
			scenarios[i].ScreenshotURL = url
		}
	}
}
