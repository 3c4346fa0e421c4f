package generator

import (
	"strconv"
	"strings"
	"unicode"
)

// TypeName converts an endpoint or key name such as "change-bank-account"
// or "manager_id" to a PascalCase type name.
func TypeName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "" {
		return "Root"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "T" + out
	}
	return out
}

// propertyKey renders an object key, quoting it when it is not a valid
// identifier.
func propertyKey(key string) string {
	if needsQuoting(key) {
		return strconv.Quote(key)
	}
	return key
}

func needsQuoting(name string) bool {
	if name == "" {
		return true
	}
	if unicode.IsDigit(rune(name[0])) {
		return true
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$' {
			return true
		}
	}
	return false
}
