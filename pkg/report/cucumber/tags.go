package cucumber

import (
	"strings"
)

// severityTagPrefix marks the tag carrying a scenario's severity code,
// e.g. "@severity-sanity-check".
const severityTagPrefix = "@severity-"

// ExtractSeverity returns the severity code found in the given sorted tag
// names, or an empty string when no severity tag is present. With several
// severity tags the first in sort order wins.
func ExtractSeverity(tagNames []string) string {
	for _, name := range tagNames {
		if strings.HasPrefix(name, severityTagPrefix) {
			return strings.TrimPrefix(name, severityTagPrefix)
		}
	}

	return ""
}
