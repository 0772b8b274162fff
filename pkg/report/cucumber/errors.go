package cucumber

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/store"
)

// ExtractErrors returns one error per hook or step of the element that
// carries a failure: anything with a non-empty error message, plus undefined
// steps (which get a synthesized message). Skipped and passed steps never
// produce errors, even downstream of a failed step.
func ExtractErrors(
	log logrus.FieldLogger,
	element *Element,
	stepDefinitions []string,
) []store.Error {
	var errors []store.Error

	for i := range element.Before {
		if err, ok := hookError(&element.Before[i], beforeHookName, i); ok {
			errors = append(errors, err)
		}
	}

	for i := range element.Steps {
		if err, ok := stepError(log, &element.Steps[i], stepDefinitions); ok {
			errors = append(errors, err)
		}
	}

	for i := range element.After {
		if err, ok := hookError(&element.After[i], afterHookName, i); ok {
			errors = append(errors, err)
		}
	}

	return errors
}

func hookError(hook *Hook, hookName string, index int) (store.Error, bool) {
	if hook.Result.ErrorMessage == "" {
		return store.Error{}, false
	}

	return store.Error{
		Step:           hookName + " " + hook.Match.Location,
		StepDefinition: hook.Match.Location,
		StepLine:       virtualHookLine(hookName, index),
		Exception:      normalizeNewlines(hook.Result.ErrorMessage),
	}, true
}

func stepError(
	log logrus.FieldLogger,
	step *Step,
	stepDefinitions []string,
) (store.Error, bool) {
	exception := step.Result.ErrorMessage
	if exception == "" {
		if step.Result.Status != StatusUndefined {
			return store.Error{}, false
		}

		exception = "Undefined step: " + step.Name
	}

	return store.Error{
		Step:           step.Name,
		StepDefinition: MatchStepDefinition(log, stepDefinitions, step.Name, step.Match.Arguments),
		StepLine:       step.Line,
		Exception:      normalizeNewlines(exception),
	}, true
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
