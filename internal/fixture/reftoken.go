package fixture

import "regexp"

// refRegex matches a whole-string reference token: `@` followed by a fixture
// name. Embedded `@` characters inside longer strings are plain data.
var refRegex = regexp.MustCompile(`^@([A-Za-z0-9_][A-Za-z0-9_-]*)$`)

// RefTarget reports whether s is a reference token and returns the named
// target.
func RefTarget(s string) (string, bool) {
	matches := refRegex.FindStringSubmatch(s)
	if matches == nil {
		return "", false
	}
	return matches[1], true
}
