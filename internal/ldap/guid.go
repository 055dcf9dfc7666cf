package ldap

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// GUIDHandler converts Active Directory objectGUID values.
// Active Directory stores GUIDs in a mixed-endian format that differs from standard UUID byte ordering.
type GUIDHandler struct{}

// NewGUIDHandler creates a new GUID handler instance.
func NewGUIDHandler() *GUIDHandler {
	return &GUIDHandler{}
}

var (
	// Hyphenated GUID format: 12345678-1234-1234-1234-123456789012
	hyphenatedGUIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	// Compact GUID format: 32 hex digits
	compactGUIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
)

const (
	GUIDBytesLength   = 16 // GUID is always 16 bytes
	GUIDStringLength  = 36 // Hyphenated GUID string length
	CompactGUIDLength = 32 // Compact GUID string length
)

// IsValidGUID checks if a string is a valid GUID format (hyphenated or compact).
func (g *GUIDHandler) IsValidGUID(guidString string) bool {
	switch len(guidString) {
	case GUIDStringLength:
		return hyphenatedGUIDRegex.MatchString(guidString)
	case CompactGUIDLength:
		return compactGUIDRegex.MatchString(guidString)
	default:
		return false
	}
}

// NormalizeGUID converts a GUID string to lower-case hyphenated format.
func (g *GUIDHandler) NormalizeGUID(guidString string) (string, error) {
	guidString = strings.TrimSpace(guidString)
	if guidString == "" {
		return "", fmt.Errorf("GUID string cannot be empty")
	}

	if !g.IsValidGUID(guidString) {
		return "", fmt.Errorf("invalid GUID format: %s", guidString)
	}

	guidString = strings.ToLower(guidString)
	if len(guidString) == CompactGUIDLength {
		return hyphenate(guidString), nil
	}
	return guidString, nil
}

func hyphenate(h string) string {
	return fmt.Sprintf("%s-%s-%s-%s-%s", h[0:8], h[8:12], h[12:16], h[16:20], h[20:32])
}

// swapGUIDEndianness converts between the standard and the AD byte layout.
// Data1, Data2 and Data3 are byte-reversed; Data4 keeps its order. The
// transformation is its own inverse.
func swapGUIDEndianness(in []byte) []byte {
	out := make([]byte, GUIDBytesLength)

	out[0], out[1], out[2], out[3] = in[3], in[2], in[1], in[0]
	out[4], out[5] = in[5], in[4]
	out[6], out[7] = in[7], in[6]
	copy(out[8:], in[8:])

	return out
}

// StringToGUIDBytes converts a GUID string to Active Directory byte format.
func (g *GUIDHandler) StringToGUIDBytes(guidString string) ([]byte, error) {
	normalizedGUID, err := g.NormalizeGUID(guidString)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize GUID: %w", err)
	}

	guidBytes, err := hex.DecodeString(strings.ReplaceAll(normalizedGUID, "-", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode GUID hex: %w", err)
	}

	return swapGUIDEndianness(guidBytes), nil
}

// GUIDBytesToString converts Active Directory GUID bytes to standard string format.
func (g *GUIDHandler) GUIDBytesToString(guidBytes []byte) (string, error) {
	if len(guidBytes) != GUIDBytesLength {
		return "", fmt.Errorf("invalid GUID byte length: expected %d, got %d", GUIDBytesLength, len(guidBytes))
	}

	return hyphenate(hex.EncodeToString(swapGUIDEndianness(guidBytes))), nil
}
