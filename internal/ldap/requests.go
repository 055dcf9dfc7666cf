package ldap

import (
	"github.com/go-ldap/ldap/v3"
)

// LDAPControls converts the record's controls for use with go-ldap requests.
func (r *Record) LDAPControls() []ldap.Control {
	if len(r.controls) == 0 {
		return nil
	}

	out := make([]ldap.Control, 0, len(r.controls))
	for _, c := range r.controls {
		out = append(out, ldap.NewControlString(c.OID, c.Critical, string(c.Value)))
	}
	return out
}

// Request builds the go-ldap request replaying this record against a
// directory: *ldap.AddRequest for Content and Add, *ldap.DelRequest,
// *ldap.ModifyRequest or *ldap.ModifyDNRequest.
func (r *Record) Request() (any, error) {
	if err := ValidateDNSyntax(r.dn); err != nil {
		return nil, &Error{
			Operation: "build request",
			Category:  ErrorCategoryProtocol,
			Message:   err.Error(),
			DN:        r.dn,
			Cause:     err,
		}
	}

	switch r.kind {
	case KindContent, KindAdd:
		req := ldap.NewAddRequest(r.dn, r.LDAPControls())
		for _, attr := range r.attrs {
			req.Attribute(attr.Name, attr.Strings())
		}
		return req, nil

	case KindDelete:
		return ldap.NewDelRequest(r.dn, r.LDAPControls()), nil

	case KindModify:
		req := ldap.NewModifyRequest(r.dn, r.LDAPControls())
		for _, m := range r.mods {
			switch m.Op {
			case ModAdd:
				req.Add(m.Attribute.Name, m.Attribute.Strings())
			case ModDelete:
				req.Delete(m.Attribute.Name, m.Attribute.Strings())
			case ModReplace:
				req.Replace(m.Attribute.Name, m.Attribute.Strings())
			case ModIncrement:
				if len(m.Attribute.Values) != 1 {
					return nil, &Error{
						Operation: "build request",
						Category:  ErrorCategoryProtocol,
						Message:   "increment requires exactly one value",
						Attribute: m.Attribute.Name,
						DN:        r.dn,
					}
				}
				req.Increment(m.Attribute.Name, m.Attribute.Values[0].String())
			}
		}
		return req, nil

	case KindRename:
		if err := ValidateRDNSyntax(r.newRDN); err != nil {
			return nil, &Error{
				Operation: "build request",
				Category:  ErrorCategoryProtocol,
				Message:   err.Error(),
				Attribute: "newrdn",
				DN:        r.dn,
				Cause:     err,
			}
		}
		return ldap.NewModifyDNWithControlsRequest(r.dn, r.newRDN, r.deleteOldRDN, r.newSuperior, r.LDAPControls()), nil
	}

	return nil, NewError("build request", ErrorCategoryProtocol, "unknown record kind %d", r.kind)
}
