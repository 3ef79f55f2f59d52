package escape

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var escapeSequence = regexp.MustCompile(`\\(5c|2a|28|29|00)`)

func TestFilterValues(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"no assertion", "no equals here", "no equals here"},
		{"asterisk in value", "(cn=John*Doe)", `(cn=John\2aDoe)`},
		{"null in value", "(uid=abc\x00)", `(uid=abc\00)`},
		{"backslash in value", `(cn=a\b)`, `(cn=a\5cb)`},
		{"nested filter", `(&(objectClass=person)(cn=a\b))`, `(&(objectClass=person)(cn=a\5cb))`},
		{"presence becomes literal", "(cn=*)", `(cn=\2a)`},
		{"several values", "(|(cn=*)(uid=x*y))", `(|(cn=\2a)(uid=x\2ay))`},
		{"equals inside value", "cn=a=b*", `cn=a=b\2a`},
		{"empty value", "(cn=)", "(cn=)"},
		{"ordering operator", "(uidNumber>=5*)", `(uidNumber>=5\2a)`},
		{"parenthesis ends the value", "(cn=John (Doe))", "(cn=John (Doe))"},
		{"injection keeps structure", "*)(uid=*))(|(uid=*", `*)(uid=\2a))(|(uid=\2a`},
		{"unbalanced input", "(cn=a*", `(cn=a\2a`},
		{"multibyte value", "(sn=Lučić*)", `(sn=Lučić\2a)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FilterValues(tt.input))
		})
	}
}

func TestFilterValue(t *testing.T) {
	assert.Equal(t, "", FilterValue(""))
	assert.Equal(t, "John Doe", FilterValue("John Doe"))
	assert.Equal(t, `a\28b\29c`, FilterValue("a(b)c"))
	assert.Equal(t, `\2a\29\28uid=\2a`, FilterValue("*)(uid=*"))
	assert.Equal(t, `\5c\00`, FilterValue("\\\x00"))
}

func TestFilterValuesCompleteness(t *testing.T) {
	inputs := []string{
		"(cn=John*Doe)",
		"(uid=abc\x00)",
		`(&(cn=\\*)(sn=\x00\x00))`,
		"*)(uid=*))(|(uid=*",
		"admin)(|(password=*)",
		"(cn=" + strings.Repeat("*\\", 64) + ")",
		"=*=\\=\x00",
	}

	for _, input := range inputs {
		assertValuesEscaped(t, FilterValues(input))
	}
}

func TestFilterValuesKeepsStructure(t *testing.T) {
	inputs := []string{"(cn=John (Doe))", "*)(uid=*))(|(uid=*", "((((a=b))))", "(&(a=*)(|(b=\\)(c=\x00)))"}

	for _, input := range inputs {
		out := FilterValues(input)

		assert.Equal(t, strings.Count(input, "("), strings.Count(out, "("), "input %q", input)
		assert.Equal(t, strings.Count(input, ")"), strings.Count(out, ")"), "input %q", input)
		assert.Equal(t, strings.Count(input, "="), strings.Count(out, "="), "input %q", input)
	}
}

func TestFilterValuesCompiles(t *testing.T) {
	inputs := []string{
		"(cn=John*Doe)",
		"(uid=abc\x00)",
		`(&(objectClass=person)(cn=a\b))`,
		"(|(cn=*)(uid=x*y))",
	}

	for _, input := range inputs {
		_, err := ldap.CompileFilter(FilterValues(input))
		assert.NoError(t, err, "input %q", input)
	}
}

func TestFilterValueReversible(t *testing.T) {
	inputs := []string{"", "plain", "a(b)c", "\\\\**\x00", "Lučić*"}

	for _, input := range inputs {
		decoded, err := unescapeFilterValue(FilterValue(input))
		require.NoError(t, err)
		assert.Equal(t, input, decoded)
	}
}

// assertValuesEscaped checks that every value located in filter carries its
// special characters only as escape sequences.
func assertValuesEscaped(t *testing.T, filter string) {
	t.Helper()

	for _, match := range filterValueMatcher.FindAllString(filter, -1) {
		value := escapeSequence.ReplaceAllString(match[1:], "")

		assert.NotContains(t, value, `\`, "value %q", match)
		assert.NotContains(t, value, "*", "value %q", match)
		assert.NotContains(t, value, "\x00", "value %q", match)
	}
}

func unescapeFilterValue(s string) (string, error) {
	var sb strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			sb.WriteByte(s[i])

			continue
		}

		b, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", err
		}

		sb.WriteByte(byte(b))
		i += 2
	}

	return sb.String(), nil
}
