package format

import (
	"encoding/base64"
	"strings"

	"github.com/isometry/dirconv/internal/ldap"
)

// NeedsEncoding reports whether a value must be base64-encoded to survive
// LDIF and DSML text transport.
//
// A value is safe iff its first byte is not NUL, LF, CR, SPACE, ':', '<' or
// non-ASCII, its last byte is not SPACE, and no byte is NUL, LF, CR or
// non-ASCII. The empty value is safe.
func NeedsEncoding(value []byte) bool {
	if len(value) == 0 {
		return false
	}

	switch first := value[0]; {
	case first == 0x00, first == '\n', first == '\r', first == ' ', first == ':', first == '<':
		return true
	case first >= 0x80:
		return true
	}

	if value[len(value)-1] == ' ' {
		return true
	}

	for _, b := range value {
		if b == 0x00 || b == '\n' || b == '\r' || b >= 0x80 {
			return true
		}
	}

	return false
}

// NeedsEncodingString is NeedsEncoding for strings.
func NeedsEncodingString(s string) bool {
	return NeedsEncoding([]byte(s))
}

// EncodeBase64 encodes a value with the standard alphabet.
func EncodeBase64(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}

// DecodeBase64 decodes a standard base64 value, ignoring embedded whitespace.
func DecodeBase64(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)

	b, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, &ldap.Error{
			Operation: "base64 decode",
			Category:  ldap.ErrorCategoryGrammar,
			Expected:  "base64 value",
			Found:     truncate(s, 32),
			Cause:     err,
		}
	}
	return b, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
