package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/ingestoor/pkg/config"
	"github.com/ethpandaops/ingestoor/pkg/domain"
	"github.com/ethpandaops/ingestoor/pkg/report"
	"github.com/ethpandaops/ingestoor/pkg/store"
)

// Reconciler builds the desired persisted state of one execution from an
// extracted archive directory, merging with any pre-existing execution.
type Reconciler struct {
	log         logrus.FieldLogger
	project     *config.ProjectConfig
	parsers     map[domain.Technology]report.Parser
	concurrency int
}

// NewReconciler creates a reconciler for one project.
func NewReconciler(
	log logrus.FieldLogger,
	project *config.ProjectConfig,
	concurrency int,
) *Reconciler {
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Reconciler{
		log:         log.WithField("component", "reconciler"),
		project:     project,
		parsers:     report.Parsers(log, &project.Indexer),
		concurrency: concurrency,
	}
}

// Reconcile walks the extracted directory and produces the execution to
// persist, or nil when nothing should be saved: the existing execution is
// already DONE, or the test plan is missing on a job that may still upload a
// complete archive later.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	dir, branch, cycle string,
	existing *store.Execution,
	completionRequested bool,
) (*store.Execution, error) {
	if existing != nil && existing.Status == domain.JobStatusDone {
		r.log.Info("Execution is already DONE: no further indexing")

		return nil, nil
	}

	rootInfo, err := ReadBuildInformation(
		filepath.Join(dir, r.project.Indexer.BuildInformationPath))
	if err != nil {
		r.log.WithError(err).Warn("Unreadable root build information: treating fields as unknown")

		rootInfo = nil
	}

	execution := existing
	if execution == nil {
		execution = &store.Execution{
			ProjectCode:   r.project.Code,
			Status:        domain.JobStatusPending,
			Acceptance:    domain.AcceptanceNew,
			QualityStatus: domain.QualityIncomplete,
		}
	}

	execution.Branch = branch
	execution.Name = cycle

	applyRootBuildInfo(execution, rootInfo)

	cycleDef, err := ReadCycleDefinition(
		filepath.Join(dir, r.project.Indexer.CycleDefinitionPath))
	if err != nil {
		r.log.WithError(err).Warn("Unreadable cycle definition: treating it as missing")

		cycleDef = nil
	}

	if cycleDef == nil {
		// Without a test plan nothing can be said about runs. Index the bare
		// execution only when the job is finished, so a later upload of a
		// complete archive still gets indexed.
		if execution.Status == domain.JobStatusDone || completionRequested {
			r.log.Info("No cycle definition in finished job: indexing bare execution")

			execution.BlockingValidation = false
			execution.QualityThresholds = ""
			execution.QualityStatus = domain.QualityIncomplete
			execution.QualitySeverities = ""
			execution.Runs = nil
			execution.CountryDeployments = nil

			return execution, nil
		}

		r.log.Info("No cycle definition yet: not indexing")

		return nil, nil
	}

	// blockingValidation and thresholds always come from the fresh cycle
	// definition, never from the previously persisted execution.
	execution.BlockingValidation = cycleDef.BlockingValidation
	execution.QualityThresholds = serializeThresholds(r.log, cycleDef.QualityThresholds)

	countries := r.plannedCountries(cycleDef)
	countries = r.addUnplannedCountries(countries, dir)

	results := make([]countryResult, len(countries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := range countries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			results[i] = r.processCountry(dir, &countries[i])

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	execution.Runs = nil
	execution.CountryDeployments = nil

	for i := range results {
		execution.CountryDeployments = append(execution.CountryDeployments, results[i].deployment)
		execution.Runs = append(execution.Runs, results[i].runs...)
	}

	finalizeChildren(execution)

	ComputeQuality(r.log, r.project, execution)

	return execution, nil
}

// applyRootBuildInfo overwrites the execution's scalar fields with whatever
// the new metadata supplies. Metadata is sparse by design: absent fields
// keep the previously persisted values.
func applyRootBuildInfo(execution *store.Execution, info *BuildInfo) {
	if info == nil {
		return
	}

	execution.Status = info.JobStatus()

	if info.Release != "" {
		execution.Release = info.Release
	}

	if info.Version != "" {
		execution.Version = info.Version
	}

	if t := info.BuildDateTime(); t != nil {
		execution.BuildDateTime = t
	}

	if t := info.StartDateTime(); t != nil {
		execution.TestDateTime = t
	}

	if info.URL != "" {
		execution.JobURL = info.URL
	}

	if info.Link != "" {
		execution.JobLink = info.Link
	}

	if info.Result != "" {
		execution.Result = info.Result
	}

	if info.Duration != nil {
		execution.Duration = info.Duration
	}

	if info.EstimatedDuration != nil {
		execution.EstimatedDuration = info.EstimatedDuration
	}
}

type plannedType struct {
	code       string
	technology domain.Technology
}

type plannedCountry struct {
	code     string
	platform string
	rule     PlatformRule
	types    []plannedType

	// planned is false for country directories physically present but not
	// declared by the test plan: still processed, logged as unexpected.
	planned bool
}

type countryResult struct {
	deployment store.CountryDeployment
	runs       []store.Run
}

// plannedCountries flattens the cycle definition's platform rules into the
// ordered list of countries to expect on disk.
func (r *Reconciler) plannedCountries(def *CycleDefinition) []plannedCountry {
	platforms := make([]string, 0, len(def.PlatformsRules))
	for platform := range def.PlatformsRules {
		platforms = append(platforms, platform)
	}

	sort.Strings(platforms)

	var countries []plannedCountry

	seen := make(map[string]struct{})

	for _, platform := range platforms {
		for _, rule := range def.PlatformsRules[platform] {
			if !rule.Enabled {
				continue
			}

			if _, exists := r.project.Country(rule.Country); !exists {
				r.log.WithField("country", rule.Country).
					Warn("Test plan references unknown country: skipping it")

				continue
			}

			if _, dup := seen[rule.Country]; dup {
				r.log.WithField("country", rule.Country).
					Warn("Test plan declares country twice: keeping the first rule")

				continue
			}

			seen[rule.Country] = struct{}{}

			countries = append(countries, plannedCountry{
				code:     rule.Country,
				platform: platform,
				rule:     rule,
				types:    r.plannedTypes(&rule),
				planned:  true,
			})
		}
	}

	return countries
}

// plannedTypes resolves a rule's test-type codes against the project
// catalogue. Unknown types are excluded rather than failing the upload;
// types without a technology are declared-but-not-indexable and produce no
// run.
func (r *Reconciler) plannedTypes(rule *PlatformRule) []plannedType {
	var types []plannedType

	for _, code := range rule.TypeCodes() {
		typ, ok := r.project.Type(code)
		if !ok {
			r.log.WithField("type", code).
				Warn("Test plan references unknown type: skipping it")

			continue
		}

		if typ.Technology == "" {
			continue
		}

		types = append(types, plannedType{code: typ.Code, technology: typ.Technology})
	}

	return types
}

// addUnplannedCountries appends country directories present on disk but
// absent from the test plan. Their data is trusted and parsed anyway.
func (r *Reconciler) addUnplannedCountries(
	countries []plannedCountry, dir string,
) []plannedCountry {
	entries, err := os.ReadDir(dir)
	if err != nil {
		r.log.WithError(err).Warn("Cannot list extracted directory")

		return countries
	}

	planned := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		planned[c.code] = struct{}{}
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		if _, ok := planned[entry.Name()]; ok {
			continue
		}

		if _, known := r.project.Country(entry.Name()); !known {
			r.log.WithField("dir", entry.Name()).
				Warn("Directory matches no known country: skipping it")

			continue
		}

		r.log.WithField("country", entry.Name()).
			Warn("Country directory not in test plan: processing it anyway")

		countries = append(countries, plannedCountry{
			code:    entry.Name(),
			planned: false,
		})
	}

	return countries
}

// processCountry builds the deployment row and the runs of one country.
// Failures are degraded locally: a broken report leaves its run empty and
// never aborts sibling runs or countries.
func (r *Reconciler) processCountry(dir string, country *plannedCountry) countryResult {
	countryDir := filepath.Join(dir, country.code)

	if _, err := os.Stat(countryDir); os.IsNotExist(err) {
		// Planned but absent: an UNAVAILABLE placeholder row per entity,
		// with no fabricated URLs or dates.
		result := countryResult{
			deployment: store.CountryDeployment{
				CountryCode: country.code,
				Platform:    country.platform,
				Status:      domain.JobStatusUnavailable,
			},
		}

		for _, typ := range country.types {
			result.runs = append(result.runs, r.unavailableRun(country, typ))
		}

		return result
	}

	info, err := ReadBuildInformation(
		filepath.Join(countryDir, r.project.Indexer.BuildInformationPath))
	if err != nil {
		r.log.WithError(err).WithField("country", country.code).
			Warn("Unreadable country build information: treating fields as unknown")

		info = nil
	}

	runDirs := listSubdirs(countryDir)

	result := countryResult{
		deployment: r.buildDeployment(country, info, len(runDirs) > 0),
	}

	typesOnDisk := make(map[string]struct{}, len(runDirs))
	for _, name := range runDirs {
		typesOnDisk[name] = struct{}{}
	}

	plannedSet := make(map[string]struct{}, len(country.types))

	for _, typ := range country.types {
		plannedSet[typ.code] = struct{}{}

		if _, present := typesOnDisk[typ.code]; !present {
			result.runs = append(result.runs, r.unavailableRun(country, typ))

			continue
		}

		result.runs = append(result.runs,
			r.processRun(countryDir, country, typ, true))
	}

	// Present but unplanned types are included anyway, with their data
	// trusted toward quality thresholds.
	for _, name := range runDirs {
		if _, ok := plannedSet[name]; ok {
			continue
		}

		typ, known := r.project.Type(name)
		if !known {
			r.log.WithField("dir", name).
				Warn("Directory matches no known type: skipping it")

			continue
		}

		if typ.Technology == "" {
			continue
		}

		r.log.WithFields(logrus.Fields{
			"country": country.code,
			"type":    typ.Code,
		}).Warn("Type directory not in test plan: processing it anyway")

		result.runs = append(result.runs,
			r.processRun(countryDir, country, plannedType{code: typ.Code, technology: typ.Technology}, false))
	}

	return result
}

func (r *Reconciler) buildDeployment(
	country *plannedCountry,
	info *BuildInfo,
	hasRuns bool,
) store.CountryDeployment {
	deployment := store.CountryDeployment{
		CountryCode: country.code,
		Platform:    country.platform,
		Status:      domain.JobStatusUnavailable,
	}

	if info == nil {
		return deployment
	}

	if info.Platform != "" {
		deployment.Platform = info.Platform
	}

	deployment.JobURL = info.URL
	deployment.JobLink = info.Link
	// The deployment result is whatever the metadata declares, literally.
	deployment.Result = info.Result
	deployment.StartDateTime = info.StartDateTime()
	deployment.Duration = info.Duration
	deployment.EstimatedDuration = info.EstimatedDuration

	switch {
	case info.Status != "":
		deployment.Status = info.Status
	case hasRuns:
		deployment.Status = leafJobStatus(info, domain.JobStatusPending)
	}

	return deployment
}

func (r *Reconciler) unavailableRun(country *plannedCountry, typ plannedType) store.Run {
	return store.Run{
		CountryCode:         country.code,
		TypeCode:            typ.code,
		Technology:          typ.technology,
		Platform:            country.platform,
		Status:              domain.JobStatusUnavailable,
		CountryTags:         country.rule.CountryTags,
		SeverityTags:        country.rule.SeverityTags,
		IncludeInThresholds: country.rule.BlockingValidation,
	}
}

func (r *Reconciler) processRun(
	countryDir string,
	country *plannedCountry,
	typ plannedType,
	planned bool,
) store.Run {
	runDir := filepath.Join(countryDir, typ.code)

	run := store.Run{
		CountryCode: country.code,
		TypeCode:    typ.code,
		Technology:  typ.technology,
		Platform:    country.platform,
		Status:      domain.JobStatusDone,
	}

	if planned {
		run.CountryTags = country.rule.CountryTags
		run.SeverityTags = country.rule.SeverityTags
		run.IncludeInThresholds = country.rule.BlockingValidation
	} else {
		run.IncludeInThresholds = true
	}

	info, err := ReadBuildInformation(
		filepath.Join(runDir, r.project.Indexer.BuildInformationPath))
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"country": country.code,
			"type":    typ.code,
		}).Warn("Unreadable run build information: treating fields as unknown")

		info = nil
	}

	if info != nil {
		run.JobURL = info.URL
		run.JobLink = info.Link
		run.Comment = info.Comment
		run.StartDateTime = info.StartDateTime()
		run.Duration = info.Duration
		run.EstimatedDuration = info.EstimatedDuration

		if info.Platform != "" {
			run.Platform = info.Platform
		}

		if info.CountryTags != "" {
			run.CountryTags = info.CountryTags
		}

		if info.SeverityTags != "" {
			run.SeverityTags = info.SeverityTags
		}

		if info.IncludeInThresholds != nil {
			run.IncludeInThresholds = *info.IncludeInThresholds
		}

		// A leaf directory with content but no declared status is DONE.
		run.Status = leafJobStatus(info, domain.JobStatusDone)
	}

	parser, ok := r.parsers[typ.technology]
	if !ok {
		r.log.WithField("technology", typ.technology).
			Warn("No parser for technology: leaving run empty")

		return run
	}

	scenarios, err := parser.ParseRunDir(runDir, country.code)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"country": country.code,
			"type":    typ.code,
		}).Warn("Cannot parse run reports: recording run with partial data")
	}

	run.ExecutedScenarios = scenarios

	return run
}

// leafJobStatus derives the status of a country or run level from its build
// information: an explicit status wins, a build in progress is RUNNING, a
// result maps to its terminal status, and a silent-but-present level falls
// back to the given default.
func leafJobStatus(info *BuildInfo, fallback domain.JobStatus) domain.JobStatus {
	switch {
	case info.Status != "":
		return info.Status
	case info.Building:
		return domain.JobStatusRunning
	case info.Result == domain.ResultNotBuilt:
		return domain.JobStatusUnavailable
	case info.Result != "":
		return domain.JobStatusDone
	case info.URL != "":
		return domain.JobStatusDone
	default:
		return fallback
	}
}

// finalizeChildren terminates child statuses once the execution itself is
// DONE: it will not be crawled again, so nothing can stay PENDING or
// RUNNING.
func finalizeChildren(execution *store.Execution) {
	if execution.Status != domain.JobStatusDone {
		return
	}

	for i := range execution.CountryDeployments {
		switch execution.CountryDeployments[i].Status {
		case domain.JobStatusPending:
			execution.CountryDeployments[i].Status = domain.JobStatusUnavailable
		case domain.JobStatusRunning:
			execution.CountryDeployments[i].Status = domain.JobStatusDone
		}
	}

	for i := range execution.Runs {
		switch execution.Runs[i].Status {
		case domain.JobStatusPending:
			execution.Runs[i].Status = domain.JobStatusUnavailable
		case domain.JobStatusRunning:
			execution.Runs[i].Status = domain.JobStatusDone
		}
	}
}

func serializeThresholds(
	log logrus.FieldLogger,
	thresholds map[string]domain.QualityThreshold,
) string {
	if len(thresholds) == 0 {
		return ""
	}

	data, err := json.Marshal(thresholds)
	if err != nil {
		log.WithError(err).Warn("Cannot serialize quality thresholds")

		return ""
	}

	return string(data)
}

func listSubdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string

	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	return names
}
