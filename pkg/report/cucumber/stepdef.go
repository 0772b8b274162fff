package cucumber

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseStepDefinitions parses a stepDefinitions.json file: a JSON array of
// step regular expressions.
func ParseStepDefinitions(data []byte) ([]string, error) {
	var definitions []string
	if err := json.Unmarshal(data, &definitions); err != nil {
		return nil, fmt.Errorf("parsing step definitions: %w", err)
	}

	return definitions, nil
}

// MatchStepDefinition returns the step definition matching the step name, or
// a simulated one when none of the provided definitions matches. When
// several match, the first one wins.
func MatchStepDefinition(
	log logrus.FieldLogger,
	stepDefinitions []string,
	stepName string,
	arguments []Argument,
) string {
	var matching []string

	for _, definition := range stepDefinitions {
		re, err := regexp.Compile(definition)
		if err != nil {
			continue
		}

		if matchesEntirely(re, stepName) {
			matching = append(matching, definition)
		}
	}

	if len(matching) == 0 {
		log.WithField("step", stepName).
			Debug("No matching step definition: simulating one")

		return SimulateStepDefinition(stepName, arguments)
	}

	if len(matching) > 1 {
		log.WithField("step", stepName).
			Warn("Multiple matching step definitions: taking the first one")
	}

	return matching[0]
}

func matchesEntirely(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)

	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// SimulateStepDefinition builds a generalized regex form of a step from its
// captured arguments: digit-only arguments become `(\d+)` unless preceded by
// a quote (then they were probably meant as generic strings), everything
// else becomes `([^"]*)`, and the literal text around them is escaped.
func SimulateStepDefinition(stepName string, arguments []Argument) string {
	var b strings.Builder

	b.WriteByte('^')

	lastIndex := 0

	for _, arg := range arguments {
		if arg.Offset > len(stepName) || arg.Offset < lastIndex {
			continue
		}

		if arg.Offset > lastIndex {
			b.WriteString(escapeLiteral(stepName[lastIndex:arg.Offset]))
		}

		numeric := isDigits(arg.Val)
		if numeric && arg.Offset > 0 && stepName[arg.Offset-1] == '"' {
			numeric = false
		}

		if numeric {
			b.WriteString(`(\d+)`)
		} else {
			b.WriteString(`([^"]*)`)
		}

		lastIndex = arg.Offset + len(arg.Val)
	}

	if lastIndex < len(stepName) {
		b.WriteString(escapeLiteral(stepName[lastIndex:]))
	}

	b.WriteByte('$')

	return b.String()
}

var regexLiterals = regexp.MustCompile(`([<(\[{\\^\-=$!|\]})?*+.>])`)

func escapeLiteral(text string) string {
	return regexLiterals.ReplaceAllString(text, `\$1`)
}
