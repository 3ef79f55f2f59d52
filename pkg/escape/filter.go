package escape

import "regexp"

// filterValueMatcher finds an '=' and the longest run of characters after it
// that contains no parenthesis.
var filterValueMatcher = regexp.MustCompile(`=[^()]+`)

// FilterValue escapes a single assertion value for use in a search filter.
func FilterValue(raw string) string {
	return Characters(raw, filterEscapeMap)
}

// FilterValues escapes every assertion value found in filter and leaves the
// filter structure (attribute names, operators, parentheses) untouched.
//
// Matches are taken left to right without overlap. A filter without any
// '=' is returned unchanged.
func FilterValues(filter string) string {
	return filterValueMatcher.ReplaceAllStringFunc(filter, func(match string) string {
		return "=" + FilterValue(match[1:])
	})
}
