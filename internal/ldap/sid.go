package ldap

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/go-objectsid"
)

// SIDHandler converts Active Directory objectSid values.
// Active Directory stores SIDs in binary format that needs to be converted to human-readable strings.
type SIDHandler struct{}

// NewSIDHandler creates a new SID handler instance.
func NewSIDHandler() *SIDHandler {
	return &SIDHandler{}
}

// minSIDLength is the revision, sub-authority count and 6-byte identifier authority.
const minSIDLength = 8

// ConvertBinarySIDToString converts a binary SID to its S-1-5-21-... representation.
func (s *SIDHandler) ConvertBinarySIDToString(binarySID []byte) (string, error) {
	if len(binarySID) < minSIDLength {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(binarySID))
	}

	subAuthorities := int(binarySID[1])
	if want := minSIDLength + 4*subAuthorities; len(binarySID) != want {
		return "", fmt.Errorf("invalid binary SID length: expected %d bytes, got %d", want, len(binarySID))
	}

	sid := objectsid.Decode(binarySID)

	return sid.String(), nil
}

// ValidateSIDString validates that a string is a properly formatted SID.
func (s *SIDHandler) ValidateSIDString(sidString string) error {
	if sidString == "" {
		return fmt.Errorf("SID string cannot be empty")
	}

	if len(sidString) < 5 || !strings.HasPrefix(sidString, "S-") {
		return fmt.Errorf("invalid SID format: must start with 'S-'")
	}

	return nil
}
