package ldap

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// NamingAttributeType returns the attribute type of the leftmost RDN of dn.
//
// Input:  "cn=john,ou=users,dc=example,dc=com"
// Output: "cn"
//
// An empty string is returned when the DN cannot be parsed or is empty.
func NamingAttributeType(dn string) string {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return ""
	}

	parsedDN, err := ldap.ParseDN(dn)
	if err != nil || len(parsedDN.RDNs) == 0 || len(parsedDN.RDNs[0].Attributes) == 0 {
		return ""
	}

	return parsedDN.RDNs[0].Attributes[0].Type
}

// ValidateDNSyntax validates that a string is a properly formatted Distinguished Name.
func ValidateDNSyntax(dn string) error {
	if dn == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	_, err := ldap.ParseDN(dn)
	if err != nil {
		return fmt.Errorf("invalid DN syntax: %w", err)
	}

	return nil
}

// ValidateRDNSyntax validates a single relative distinguished name.
func ValidateRDNSyntax(rdn string) error {
	if err := ValidateDNSyntax(rdn); err != nil {
		return err
	}

	parsed, _ := ldap.ParseDN(rdn)
	if len(parsed.RDNs) != 1 {
		return fmt.Errorf("invalid RDN syntax: %q has %d components", rdn, len(parsed.RDNs))
	}
	return nil
}

// reconstructDN rebuilds a DN from parsed components, keeping attribute types as written.
func reconstructDN(parsedDN *ldap.DN) string {
	var rdnStrings []string

	for _, rdn := range parsedDN.RDNs {
		var attrStrings []string

		for _, attr := range rdn.Attributes {
			attrStrings = append(attrStrings, fmt.Sprintf("%s=%s", attr.Type, EscapeDNValue(attr.Value)))
		}

		// Join multiple attributes in the same RDN with "+"
		rdnStrings = append(rdnStrings, strings.Join(attrStrings, "+"))
	}

	return strings.Join(rdnStrings, ",")
}

// GetDNParent returns the parent DN by removing the first RDN component.
// For example, "CN=John,OU=Users,DC=example,DC=com" becomes "OU=Users,DC=example,DC=com".
func GetDNParent(dn string) (string, error) {
	if dn == "" {
		return "", fmt.Errorf("DN cannot be empty")
	}

	parsedDN, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("invalid DN syntax: %w", err)
	}

	if len(parsedDN.RDNs) <= 1 {
		return "", nil
	}

	return reconstructDN(&ldap.DN{RDNs: parsedDN.RDNs[1:]}), nil
}

// RenamedDN computes the DN an entry will have after a rename record is applied.
func RenamedDN(r *Record) (string, error) {
	if r.Kind() != KindRename {
		return r.DN(), nil
	}

	parent := r.NewSuperior()
	if parent == "" {
		var err error
		parent, err = GetDNParent(r.DN())
		if err != nil {
			return "", err
		}
	}

	if parent == "" {
		return r.NewRDN(), nil
	}
	return r.NewRDN() + "," + parent, nil
}
