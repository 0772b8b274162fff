package postman

import (
	"regexp"
	"strings"
)

// CountryScopeAll marks a report applying to every country of the project.
const CountryScopeAll = "all"

// Report files are named <collection>_<scope>.json where scope is "all" or
// country codes joined by '+', e.g. "accounts_fr+us.json".
var countryScopeSuffix = regexp.MustCompile(`_([a-z]{2,3}(?:\+[a-z]{2,3})*)\.json$`)

// FileScope returns the country codes a report file applies to, and true
// when the file name carries a scope suffix. A file without a scope suffix
// applies to every country.
func FileScope(fileName string) ([]string, bool) {
	m := countryScopeSuffix.FindStringSubmatch(fileName)
	if m == nil {
		return nil, false
	}

	return strings.Split(m[1], "+"), true
}

// FileMatchesCountry reports whether the report file applies to the given
// country code.
func FileMatchesCountry(fileName, country string) bool {
	scope, ok := FileScope(fileName)
	if !ok {
		return true
	}

	for _, code := range scope {
		if code == CountryScopeAll || code == country {
			return true
		}
	}

	return false
}

// CollectionFileName strips the country scope from a report file name,
// returning the logical collection file: "accounts_fr+us.json" becomes
// "accounts.json".
func CollectionFileName(fileName string) string {
	if m := countryScopeSuffix.FindStringIndex(fileName); m != nil {
		return fileName[:m[0]] + ".json"
	}

	return fileName
}
