package dbx

import (
	"strings"
	"unicode"
)

// converts helloWorld -> HELLO_WORLD
func FromCamelCase(name string) string {
	var sb strings.Builder
	for i, letter := range name {
		if i > 0 && unicode.IsUpper(letter) {
			sb.WriteRune('_')
		}
		sb.WriteRune(unicode.ToUpper(letter))
	}
	return sb.String()
}

// converts hello_world -> HelloWorld and name -> Name
func ToCamelCase(name string) string {
	var sb strings.Builder
	upper := true
	for _, letter := range name {
		if letter == '_' {
			upper = true
			continue
		}
		if upper {
			sb.WriteRune(unicode.ToUpper(letter))
			upper = false
		} else {
			sb.WriteRune(letter)
		}
	}
	return sb.String()
}
