package escape

import "strings"

// DN escapes raw for literal use as, or inside, a distinguished name.
//
// The characters of DNEscapeMap are backslash escaped everywhere. A leading
// space or '#' and a trailing space are escaped as well; interior spaces are
// kept. A full DN passed in has its RDN separators escaped too.
func DN(raw string) string {
	escaped := Characters(raw, dnEscapeMap)

	var sb strings.Builder

	sb.Grow(len(escaped) + 2)

	if len(raw) > 0 && (raw[0] == ' ' || raw[0] == '#') {
		sb.WriteByte('\\')
	}

	// A trailing space is never rewritten by the map, so it is still the last
	// byte of escaped.
	if len(raw) > 1 && raw[len(raw)-1] == ' ' {
		sb.WriteString(escaped[:len(escaped)-1])
		sb.WriteString(`\ `)

		return sb.String()
	}

	sb.WriteString(escaped)

	return sb.String()
}
