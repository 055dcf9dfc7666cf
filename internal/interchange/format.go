// Package interchange selects the LDIF, DSML or JSON engine for a format
// descriptor and drives conversions between them.
package interchange

import (
	"strconv"
	"strings"

	"github.com/isometry/dirconv/internal/ldap"
)

// Format is an interchange format family.
type Format int

const (
	LDIF Format = iota + 1
	DSML
	JSON
)

func (f Format) String() string {
	switch f {
	case LDIF:
		return "ldif"
	case DSML:
		return "dsml"
	case JSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name, ignoring case.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ldif":
		return LDIF, nil
	case "dsml":
		return DSML, nil
	case "json":
		return JSON, nil
	}
	return 0, &ldap.Error{
		Operation: "parse format",
		Category:  ldap.ErrorCategoryUnsupportedFormat,
		Expected:  "ldif, dsml or json",
		Found:     strconv.Quote(name),
	}
}

// Descriptor selects one engine: a format and, for DSML, its version.
// Version 0 means the default version of the format.
type Descriptor struct {
	Format  Format
	Version int
}

// Predefined descriptors.
var (
	LDIFv1 = Descriptor{Format: LDIF, Version: 1}
	DSMLv1 = Descriptor{Format: DSML, Version: 1}
	DSMLv2 = Descriptor{Format: DSML, Version: 2}
	JSONv1 = Descriptor{Format: JSON, Version: 1}
)

// ParseDescriptor parses "ldif", "json", "dsml", or a name with a trailing
// version such as "dsml2" or "dsml-2".
func ParseDescriptor(s string) (Descriptor, error) {
	name := strings.ToLower(strings.TrimSpace(s))

	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}

	var d Descriptor
	if i < len(name) {
		v, err := strconv.Atoi(name[i:])
		if err != nil {
			return Descriptor{}, &ldap.Error{
				Operation: "parse format",
				Category:  ldap.ErrorCategoryUnsupportedVer,
				Found:     strconv.Quote(s),
				Cause:     err,
			}
		}
		d.Version = v
	}

	f, err := ParseFormat(strings.TrimRight(name[:i], "-v"))
	if err != nil {
		return Descriptor{}, err
	}
	d.Format = f

	return d.Normalize()
}

// Normalize fills in the default version and rejects versions the format
// does not have.
func (d Descriptor) Normalize() (Descriptor, error) {
	if d.Version == 0 {
		d.Version = 1
	}

	supported := d.Version == 1
	if d.Format == DSML {
		supported = d.Version == 1 || d.Version == 2
	}
	if d.Format != LDIF && d.Format != DSML && d.Format != JSON {
		return Descriptor{}, &ldap.Error{
			Operation: "select format",
			Category:  ldap.ErrorCategoryUnsupportedFormat,
			Found:     d.Format.String(),
		}
	}
	if !supported {
		return Descriptor{}, &ldap.Error{
			Operation: "select format",
			Category:  ldap.ErrorCategoryUnsupportedVer,
			Message:   d.Format.String() + " version " + strconv.Itoa(d.Version) + " is not supported",
		}
	}
	return d, nil
}

func (d Descriptor) String() string {
	if d.Format == DSML {
		return d.Format.String() + strconv.Itoa(d.Version)
	}
	return d.Format.String()
}
