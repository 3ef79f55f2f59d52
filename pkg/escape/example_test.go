package escape_test

import (
	"fmt"

	"github.com/franchb/ldapsafe/pkg/escape"
)

func ExampleDN() {
	fmt.Println(escape.DN(" Doe, John"))
	fmt.Println(escape.DN("#admins"))
	// Output:
	// \ Doe\, John
	// \#admins
}

func ExampleFilterValues() {
	fmt.Println(escape.FilterValues("(&(objectClass=person)(cn=John*))"))
	// Output: (&(objectClass=person)(cn=John\2a))
}

func ExampleFilterValue() {
	fmt.Printf("(uid=%s)\n", escape.FilterValue("*)(uid=*"))
	// Output: (uid=\2a\29\28uid=\2a)
}

func ExampleCharacters() {
	upper := escape.NewEscapeMap(map[rune]string{'a': "A", 'e': "E"})

	fmt.Println(escape.Characters("escape", upper))
	// Output: EscApE
}
