package cucumber

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/store"
)

// ExtractScenarios turns the parsed features of one report into executed
// scenarios. A Background element's rendered content is merged into every
// scenario that follows it in the same feature. Scenario-outline examples
// are all kept: an executed report lists one element per example run.
func ExtractScenarios(
	log logrus.FieldLogger,
	features []Feature,
	stepDefinitions []string,
) []store.ExecutedScenario {
	var scenarios []store.ExecutedScenario

	for i := range features {
		feature := &features[i]
		backgroundContent := ""

		for j := range feature.Elements {
			element := &feature.Elements[j]

			switch {
			case element.IsBackground():
				backgroundContent = BuildScenarioContent(element, "")
			case element.IsScenario():
				scenarios = append(scenarios,
					extractScenario(log, feature, element, backgroundContent, stepDefinitions))
			}
		}
	}

	return scenarios
}

func extractScenario(
	log logrus.FieldLogger,
	feature *Feature,
	element *Element,
	backgroundContent string,
	stepDefinitions []string,
) store.ExecutedScenario {
	featureTags := TagNames(feature.Tags)
	elementTags := TagNames(element.Tags)
	allTags := TagNames(append(append([]Tag{}, feature.Tags...), element.Tags...))

	attachments := ExtractAttachments(element)

	return store.ExecutedScenario{
		FeatureFile: feature.URI,
		FeatureName: feature.Name,
		FeatureTags: strings.Join(featureTags, " "),
		Tags:        strings.Join(elementTags, " "),
		Severity:    ExtractSeverity(allTags),
		Name:        element.Name,
		CucumberID:  cucumberID(feature, element),
		Line:        element.Line,
		Content:     BuildScenarioContent(element, backgroundContent),

		ScreenshotURL:       attachments.ScreenshotURL,
		VideoURL:            attachments.VideoURL,
		LogsURL:             attachments.LogsURL,
		HTTPRequestsURL:     attachments.HTTPRequestsURL,
		JavaScriptErrorsURL: attachments.JavaScriptErrorsURL,
		DiffReportURL:       attachments.DiffReportURL,
		CucumberReportURL:   attachments.CucumberReportURL,
		APIServer:           attachments.APIServer,
		SeleniumNode:        attachments.SeleniumNode,

		Errors: ExtractErrors(log, element, stepDefinitions),
	}
}

// cucumberID is the stable identifier used to match the scenario across
// executions: the report's element id when present, else file and line.
func cucumberID(feature *Feature, element *Element) string {
	if element.ID != "" {
		return element.ID
	}

	return feature.URI + ":" + strconv.Itoa(element.Line)
}
