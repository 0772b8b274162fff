package cucumber

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func TestMatchStepDefinition(t *testing.T) {
	definitions := []string{
		`^I wait (\d+) seconds?$`,
		`^the "([^"]*)" page opens$`,
	}

	t.Run("matching definition wins", func(t *testing.T) {
		got := MatchStepDefinition(testLogger(), definitions, "I wait 5 seconds", nil)
		assert.Equal(t, `^I wait (\d+) seconds?$`, got)
	})

	t.Run("partial match does not count", func(t *testing.T) {
		// "I wait 5 seconds, then click" only matches a prefix.
		got := MatchStepDefinition(testLogger(), definitions,
			"I wait 5 seconds, then click", nil)
		assert.Equal(t, `^I wait 5 seconds, then click$`, got)
	})

	t.Run("first of several matches wins", func(t *testing.T) {
		got := MatchStepDefinition(testLogger(), []string{
			`^I wait .*$`,
			`^I wait (\d+) seconds?$`,
		}, "I wait 5 seconds", nil)
		assert.Equal(t, `^I wait .*$`, got)
	})

	t.Run("invalid regex is skipped", func(t *testing.T) {
		got := MatchStepDefinition(testLogger(), []string{
			`^I wait ([0-9+ seconds$`,
			`^I wait (\d+) seconds?$`,
		}, "I wait 5 seconds", nil)
		assert.Equal(t, `^I wait (\d+) seconds?$`, got)
	})
}

func TestSimulateStepDefinition(t *testing.T) {
	tests := []struct {
		name      string
		step      string
		arguments []Argument
		want      string
	}{
		{
			name: "no arguments",
			step: "I log out",
			want: "^I log out$",
		},
		{
			name:      "numeric argument",
			step:      "I wait 5 seconds",
			arguments: []Argument{{Val: "5", Offset: 7}},
			want:      `^I wait (\d+) seconds$`,
		},
		{
			name:      "quoted argument",
			step:      `I open the "cart" page`,
			arguments: []Argument{{Val: "cart", Offset: 12}},
			want:      `^I open the "([^"]*)" page$`,
		},
		{
			name:      "quoted digits stay generic",
			step:      `I type "42" in the field`,
			arguments: []Argument{{Val: "42", Offset: 8}},
			want:      `^I type "([^"]*)" in the field$`,
		},
		{
			name: "literal specials are escaped",
			step: "the total is $10 (incl. VAT)",
			want: `^the total is \$10 \(incl\. VAT\)$`,
		},
		{
			name: "out of range offset is ignored",
			step: "short",
			arguments: []Argument{
				{Val: "nope", Offset: 99},
			},
			want: "^short$",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SimulateStepDefinition(tt.step, tt.arguments))
		})
	}
}
