package postman

import (
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/store"
)

// FolderDelimiter joins folder and request names into a scenario name.
const FolderDelimiter = " ▶ "

// Virtual lines for the synthetic script steps, mirroring the before/after
// hook convention of structured-step reports. The request itself sits at -1
// and assertions occupy 0..n.
const (
	preRequestScriptLine = -100000
	requestLine          = -1
	testScriptLine       = 100000

	preRequestScriptText = "<Pre-Request Script>"
	testScriptText       = "<Test Script>"
)

// cucumberIDMaxLength bounds the stable identifier; when the folder path is
// longer, the last characters win (the deepest folders are the meaningful
// ones).
const cucumberIDMaxLength = 640

const severityTagPrefix = "@severity-"

// untitledName replaces a name segment that was nothing but a severity tag.
const untitledName = "Untitled"

// ExtractScenarios turns a parsed Newman report into executed scenarios.
// Requests without an execution entry are dropped. The position counter
// numbers requests across every report file of a run, so that two requests
// with the same name in different collections keep distinct lines.
func ExtractScenarios(
	log logrus.FieldLogger,
	report *Report,
	fileName string,
	position *int,
) []store.ExecutedScenario {
	executions := make(map[string]*Execution, len(report.Run.Executions))
	for i := range report.Run.Executions {
		executions[report.Run.Executions[i].Item.ID] = &report.Run.Executions[i]
	}

	failures := make(map[string]*FailureError, len(report.Run.Failures))

	for i := range report.Run.Failures {
		failure := &report.Run.Failures[i]
		if failure.Source == nil {
			continue
		}

		if _, exists := failures[failure.Source.ID]; !exists {
			failures[failure.Source.ID] = failure.Error
		}
	}

	var scenarios []store.ExecutedScenario

	var walk func(items []Item, path []string)

	walk = func(items []Item, path []string) {
		for i := range items {
			item := &items[i]

			if item.Request == nil {
				walk(item.Items, append(path, item.Name))

				continue
			}

			execution, ok := executions[item.ID]
			if !ok {
				log.WithField("request", item.Name).
					Debug("Request has no execution entry: dropping")

				continue
			}

			scenarios = append(scenarios, extractScenario(
				report, fileName, item, append(path, item.Name), execution, failures[item.ID], position))
		}
	}

	walk(report.Collection.Items, nil)

	return scenarios
}

func extractScenario(
	report *Report,
	fileName string,
	item *Item,
	path []string,
	execution *Execution,
	failure *FailureError,
	position *int,
) store.ExecutedScenario {
	severity := ""
	cleaned := make([]string, len(path))

	for i, segment := range path {
		if code := severityFromName(segment); code != "" {
			// The deepest tagged folder or request wins.
			severity = code
		}

		cleaned[i] = removeSeverityTag(segment)
	}

	line := *position
	*position++

	content, scenarioErrors := buildContent(item, execution, failure)

	scenario := store.ExecutedScenario{
		FeatureFile: CollectionFileName(fileName),
		FeatureName: report.Collection.Info.Name,
		Severity:    severity,
		Name:        strings.Join(cleaned, FolderDelimiter),
		CucumberID:  truncateLeft(strings.Join(path, "/"), cucumberIDMaxLength),
		Line:        line,
		Content:     content,
		Errors:      scenarioErrors,
	}

	if execution.Response != nil {
		if t, ok := responseDate(execution.Response); ok {
			scenario.StartDateTime = &t
		}
	}

	return scenario
}

// buildContent renders the synthetic step trace of a request: optional
// pre-request script, the request itself, one line per assertion, optional
// test script. The element carrying the matched failure is marked failed,
// everything else passed.
func buildContent(
	item *Item,
	execution *Execution,
	failure *FailureError,
) (string, []store.Error) {
	failedAssertion := -1

	for i := range execution.Assertions {
		if execution.Assertions[i].Error != nil {
			failedAssertion = i

			break
		}
	}

	requestFailed := failedAssertion < 0 && failure != nil

	var (
		lines  []string
		errors []store.Error
	)

	appendLine := func(line int, failed bool, duration int64, text string) {
		status := "passed"
		if failed {
			status = "failed"
		}

		lines = append(lines, strconv.Itoa(line)+":"+status+":"+
			strconv.FormatInt(duration, 10)+":"+text)
	}

	if hasScript(item, "prerequest") {
		appendLine(preRequestScriptLine, false, 0, preRequestScriptText)
	}

	requestText := item.Request.Method + " " + item.Request.URL.String()

	var requestDuration int64
	if execution.Response != nil {
		// Newman reports milliseconds; traces store nanoseconds.
		requestDuration = execution.Response.ResponseTime * int64(time.Millisecond)
	}

	appendLine(requestLine, requestFailed, requestDuration, requestText)

	if requestFailed {
		errors = append(errors, store.Error{
			Step:           requestText,
			StepDefinition: requestText,
			StepLine:       requestLine,
			Exception:      failure.Exception(),
		})
	}

	for i := range execution.Assertions {
		assertion := &execution.Assertions[i]
		failed := i == failedAssertion

		appendLine(i, failed, 0, assertion.Assertion)

		if failed {
			errors = append(errors, store.Error{
				Step:           assertion.Assertion,
				StepDefinition: assertion.Assertion,
				StepLine:       i,
				Exception:      assertion.Error.Exception(),
			})
		}
	}

	if hasScript(item, "test") {
		appendLine(testScriptLine, false, 0, testScriptText)
	}

	return strings.Join(lines, "\n"), errors
}

func hasScript(item *Item, listen string) bool {
	for i := range item.Events {
		if item.Events[i].Listen == listen && len(item.Events[i].Script.Exec) > 0 {
			return true
		}
	}

	return false
}

func responseDate(response *Response) (time.Time, bool) {
	for _, header := range response.Headers {
		if strings.EqualFold(header.Key, "Date") {
			t, err := time.Parse(time.RFC1123, header.Value)
			if err != nil {
				return time.Time{}, false
			}

			return t, true
		}
	}

	return time.Time{}, false
}

// severityFromName extracts the severity code from a "@severity-<code>"
// prefix on a folder or request name.
func severityFromName(name string) string {
	if !strings.HasPrefix(name, severityTagPrefix) {
		return ""
	}

	rest := strings.TrimPrefix(name, severityTagPrefix)
	if idx := strings.IndexAny(rest, " :\t"); idx >= 0 {
		rest = rest[:idx]
	}

	return rest
}

// removeSeverityTag strips the severity tag and its separators from a
// displayed name segment.
func removeSeverityTag(name string) string {
	code := severityFromName(name)
	if code == "" {
		return name
	}

	rest := strings.TrimPrefix(name, severityTagPrefix+code)
	rest = strings.TrimLeft(rest, ":-\t ")

	if rest == "" {
		return untitledName
	}

	return rest
}

func truncateLeft(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	return s[len(s)-maxLen:]
}
