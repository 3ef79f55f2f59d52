package escape

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacters(t *testing.T) {
	custom := NewEscapeMap(map[rune]string{'č': "c", 'ć': "c"})

	tests := []struct {
		name     string
		input    string
		escapes  EscapeMap
		expected string
	}{
		{
			name:     "empty input",
			input:    "",
			escapes:  FilterEscapeMap(),
			expected: "",
		},
		{
			name:     "nothing to escape",
			input:    "John Doe",
			escapes:  FilterEscapeMap(),
			expected: "John Doe",
		},
		{
			name:     "every filter character",
			input:    "\\*()\x00",
			escapes:  FilterEscapeMap(),
			expected: `\5c\2a\28\29\00`,
		},
		{
			name:     "every dn character",
			input:    `\,+"<>;`,
			escapes:  DNEscapeMap(),
			expected: `\\\,\+\"\<\>\;`,
		},
		{
			name:     "dn map keeps spaces and hashes",
			input:    " #a b# ",
			escapes:  DNEscapeMap(),
			expected: " #a b# ",
		},
		{
			name:     "dn map keeps null",
			input:    "a\x00b",
			escapes:  DNEscapeMap(),
			expected: "a\x00b",
		},
		{
			name:     "multibyte characters around escapes",
			input:    "Lučić*",
			escapes:  FilterEscapeMap(),
			expected: `Lučić\2a`,
		},
		{
			name:     "invalid utf-8 passes through",
			input:    "a\xffb*\xfe",
			escapes:  FilterEscapeMap(),
			expected: "a\xffb\\2a\xfe",
		},
		{
			name:     "custom map with multibyte keys",
			input:    "Lučić",
			escapes:  custom,
			expected: "Lucic",
		},
		{
			name:     "zero value map",
			input:    `a*b\c`,
			escapes:  EscapeMap{},
			expected: `a*b\c`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Characters(tt.input, tt.escapes))
		})
	}
}

func TestCharactersIdentityOnSafeInput(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"John Doe",
		"uid=jdoe",
		"ou=People",
		"Ünïcödé ✓",
		"\t\n\r",
	}

	for _, input := range inputs {
		for _, escapes := range []EscapeMap{DNEscapeMap(), FilterEscapeMap()} {
			safe := strings.Map(func(r rune) rune {
				if _, ok := escapes.Lookup(r); ok {
					return -1
				}

				return r
			}, input)

			assert.Equal(t, safe, Characters(safe, escapes))
		}
	}
}

func TestCharactersNeverShrinks(t *testing.T) {
	inputs := []string{"", "a", `\\\\`, "((((", "\x00\x00", "a,b;c", "\xff\xfe"}

	for _, input := range inputs {
		assert.GreaterOrEqual(t, len(Characters(input, DNEscapeMap())), len(input))
		assert.GreaterOrEqual(t, len(Characters(input, FilterEscapeMap())), len(input))
	}
}

func TestCharactersTwiceEscapesBackslashes(t *testing.T) {
	once := Characters("a*b", FilterEscapeMap())
	require.Equal(t, `a\2ab`, once)
	assert.Equal(t, `a\5c2ab`, Characters(once, FilterEscapeMap()))

	once = Characters("a,b", DNEscapeMap())
	require.Equal(t, `a\,b`, once)
	assert.Equal(t, `a\\\,b`, Characters(once, DNEscapeMap()))
}

func TestNewEscapeMapCopiesPairs(t *testing.T) {
	pairs := map[rune]string{'x': "y"}
	escapes := NewEscapeMap(pairs)

	pairs['x'] = "z"
	pairs['a'] = "b"

	replacement, ok := escapes.Lookup('x')
	require.True(t, ok)
	assert.Equal(t, "y", replacement)

	_, ok = escapes.Lookup('a')
	assert.False(t, ok)
	assert.Equal(t, 1, escapes.Len())
}

func TestEscapeMapKeys(t *testing.T) {
	assert.Equal(t, []rune{'"', '+', ',', ';', '<', '>', '\\'}, DNEscapeMap().Keys())
	assert.Equal(t, []rune{0, '(', ')', '*', '\\'}, FilterEscapeMap().Keys())
	assert.Empty(t, EscapeMap{}.Keys())
}

func TestEscapeMapsDoNotOverlapStructure(t *testing.T) {
	// DN escaping must not produce characters the filter extractor treats as
	// value boundaries.
	for _, k := range DNEscapeMap().Keys() {
		replacement, _ := DNEscapeMap().Lookup(k)
		assert.NotContains(t, replacement, "(")
		assert.NotContains(t, replacement, ")")
	}

	for _, k := range FilterEscapeMap().Keys() {
		replacement, _ := FilterEscapeMap().Lookup(k)
		assert.NotContains(t, replacement, "=")
		assert.NotContains(t, replacement, "(")
		assert.NotContains(t, replacement, ")")
	}
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 200; j++ {
				assert.Equal(t, `a\,b\+c`, DN("a,b+c"))
				assert.Equal(t, `(cn=John\2aDoe)`, FilterValues("(cn=John*Doe)"))
			}
		}()
	}

	wg.Wait()
}
