package cucumber

import (
	"strconv"
	"strings"
)

// Hooks have no source line: they are rendered at virtual lines far outside
// any real feature file so they sort before and after the scenario steps.
const (
	beforeHookLineBase = -100000
	afterHookLineBase  = 100000

	beforeHookName = "@Before"
	afterHookName  = "@After"
)

// BuildScenarioContent renders the step-by-step trace of a scenario: one
// "line:status:durationNanos:text" entry per hook or step, joined by
// newlines. When backgroundContent is not empty it is inserted between the
// @Before hooks and the scenario steps, wrapped in zero-duration
// "element:" markers.
func BuildScenarioContent(scenario *Element, backgroundContent string) string {
	var b strings.Builder

	appendHooks(&b, scenario.Before, beforeHookName)

	if backgroundContent != "" {
		newLine(&b)
		b.WriteString("0:element:Background:\n")
		b.WriteString(backgroundContent)
		b.WriteString("\n0:element:Scenario:")
	}

	appendSteps(&b, scenario.Steps)
	appendHooks(&b, scenario.After, afterHookName)

	return b.String()
}

func virtualHookLine(hookName string, hookIndex int) int {
	if hookName == afterHookName {
		return afterHookLineBase + hookIndex
	}

	return beforeHookLineBase + hookIndex
}

func appendHooks(b *strings.Builder, hooks []Hook, hookName string) {
	for i, hook := range hooks {
		newLine(b)
		writeInt(b, virtualHookLine(hookName, i))
		b.WriteByte(':')
		b.WriteString(hook.Result.Status)
		b.WriteByte(':')
		writeInt64(b, hook.Result.Duration)
		b.WriteByte(':')
		b.WriteString(hookName)
		b.WriteByte(' ')
		b.WriteString(hook.Match.Location)
	}
}

func appendSteps(b *strings.Builder, steps []Step) {
	for i := range steps {
		step := &steps[i]

		newLine(b)
		writeInt(b, step.Line)
		b.WriteByte(':')
		b.WriteString(step.Result.Status)
		b.WriteByte(':')
		writeInt64(b, step.Result.Duration)
		b.WriteByte(':')
		b.WriteString(step.Keyword)
		b.WriteString(step.Name)

		appendRows(b, step)
		appendDocString(b, step)
	}
}

// appendRows renders a step's data table. Cell columns are padded to the
// widest cell of the column: digits-only cells are left-padded, everything
// else right-padded.
func appendRows(b *strings.Builder, step *Step) {
	if len(step.Rows) == 0 {
		return
	}

	sizes := columnSizes(step.Rows)

	for _, row := range step.Rows {
		newLine(b)
		writeInt(b, row.Line)
		b.WriteByte(':')
		b.WriteString(step.Result.Status)
		b.WriteByte(':')

		for i, cell := range row.Cells {
			if isDigits(cell) {
				cell = pad(cell, sizes[i], true)
			} else {
				cell = pad(cell, sizes[i], false)
			}

			b.WriteString("| ")
			b.WriteString(cell)
			b.WriteByte(' ')
		}

		b.WriteByte('|')
	}
}

// appendDocString renders a step's doc string: an opening quote marker with
// the content type, one entry per line of the block, and a closing marker,
// all carrying the step's line and status but no duration.
func appendDocString(b *strings.Builder, step *Step) {
	if step.DocString == nil {
		return
	}

	prefix := func() {
		b.WriteByte('\n')
		writeInt(b, step.Line)
		b.WriteByte(':')
		b.WriteString(step.Result.Status)
		b.WriteByte(':')
	}

	newLine(b)
	writeInt(b, step.Line)
	b.WriteByte(':')
	b.WriteString(step.Result.Status)
	b.WriteByte(':')
	b.WriteString(`"""`)
	b.WriteString(step.DocString.ContentType)

	value := strings.ReplaceAll(step.DocString.Value, "\r\n", "\n")
	for _, line := range strings.Split(value, "\n") {
		prefix()
		b.WriteString(line)
	}

	prefix()
	b.WriteString(`"""`)
}

func columnSizes(rows []Row) []int {
	maxColumns := 0
	for _, row := range rows {
		if len(row.Cells) > maxColumns {
			maxColumns = len(row.Cells)
		}
	}

	sizes := make([]int, maxColumns)

	for _, row := range rows {
		for i, cell := range row.Cells {
			if len(cell) > sizes[i] {
				sizes[i] = len(cell)
			}
		}
	}

	return sizes
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

func pad(s string, width int, left bool) string {
	if len(s) >= width {
		return s
	}

	padding := strings.Repeat(" ", width-len(s))
	if left {
		return padding + s
	}

	return s + padding
}

func newLine(b *strings.Builder) {
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
}

func writeInt(b *strings.Builder, n int) {
	b.WriteString(strconv.Itoa(n))
}

func writeInt64(b *strings.Builder, n int64) {
	b.WriteString(strconv.FormatInt(n, 10))
}
