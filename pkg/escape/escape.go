package escape

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// EscapeMap maps a single character to the literal text replacing it.
// The zero value escapes nothing.
type EscapeMap struct {
	table map[rune]string
}

var (
	dnEscapeMap = NewEscapeMap(map[rune]string{
		'\\': `\\`,
		',':  `\,`,
		'+':  `\+`,
		'"':  `\"`,
		'<':  `\<`,
		'>':  `\>`,
		';':  `\;`,
	})

	filterEscapeMap = NewEscapeMap(map[rune]string{
		'\\': `\5c`,
		'*':  `\2a`,
		'(':  `\28`,
		')':  `\29`,
		0:    `\00`,
	})
)

// NewEscapeMap copies pairs into a new EscapeMap. Later changes to pairs do
// not affect the returned map.
func NewEscapeMap(pairs map[rune]string) EscapeMap {
	table := make(map[rune]string, len(pairs))
	for k, v := range pairs {
		table[k] = v
	}

	return EscapeMap{table: table}
}

// DNEscapeMap returns the substitutions applied to distinguished names.
// Space and '#' are not part of it; DN handles them by position.
func DNEscapeMap() EscapeMap {
	return dnEscapeMap
}

// FilterEscapeMap returns the substitutions applied to filter values.
func FilterEscapeMap() EscapeMap {
	return filterEscapeMap
}

// Lookup returns the replacement for r and whether r is escaped at all.
func (m EscapeMap) Lookup(r rune) (string, bool) {
	replacement, ok := m.table[r]

	return replacement, ok
}

// Keys returns the escaped characters in ascending order.
func (m EscapeMap) Keys() []rune {
	keys := make([]rune, 0, len(m.table))
	for k := range m.table {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

// Len returns the number of escaped characters.
func (m EscapeMap) Len() int {
	return len(m.table)
}

// Characters replaces every character of raw found in m by its replacement
// and copies everything else unchanged, including bytes that are not valid
// UTF-8.
func Characters(raw string, m EscapeMap) string {
	if raw == "" || m.Len() == 0 {
		return raw
	}

	var sb strings.Builder

	sb.Grow(len(raw))

	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])

		if r != utf8.RuneError || size > 1 {
			if replacement, ok := m.Lookup(r); ok {
				sb.WriteString(replacement)
				i += size

				continue
			}
		}

		sb.WriteString(raw[i : i+size])
		i += size
	}

	return sb.String()
}
