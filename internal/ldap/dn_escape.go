package ldap

import (
	"strings"
)

// EscapeDNValue escapes an attribute value for use inside a DN (RFC 4514).
//
// ParseDN hands back unescaped values; this puts the escaping back when a DN
// is rebuilt from its components:
//   - "Doe, John" → "Doe\, John"
//   - " John " → "\ John\ "
//   - "#123" → "\#123"
func EscapeDNValue(value string) string {
	if !needsDNEscaping(value) {
		return value
	}

	var result strings.Builder
	result.Grow(len(value) + 10)

	last := len(value) - 1
	for i, r := range value {
		switch {
		case strings.ContainsRune(`,+"\<>;`, r):
			result.WriteRune('\\')
			result.WriteRune(r)
		case r == '#' && i == 0:
			result.WriteString(`\#`)
		case r == ' ' && (i == 0 || i == last):
			result.WriteString(`\ `)
		case r == 0:
			result.WriteString(`\00`)
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

func needsDNEscaping(value string) bool {
	if value == "" {
		return false
	}
	if value[0] == ' ' || value[0] == '#' || value[len(value)-1] == ' ' {
		return true
	}
	return strings.ContainsAny(value, ",+\"\\<>;\x00")
}
