package ldap

import (
	"strings"
	"unicode/utf8"
)

// Active Directory attributes whose binary values have a canonical text form.
const (
	AttributeObjectGUID = "objectGUID"
	AttributeObjectSID  = "objectSid"
)

// FormatWellKnownBinary renders binary values of objectGUID and objectSid in
// their canonical text form. ok is false for any other attribute or when the
// bytes are malformed.
func FormatWellKnownBinary(attrName string, v Value) (string, bool) {
	name := strings.TrimSpace(attrName)

	switch {
	case strings.EqualFold(name, AttributeObjectGUID):
		s, err := NewGUIDHandler().GUIDBytesToString(v.Bytes())
		return s, err == nil
	case strings.EqualFold(name, AttributeObjectSID):
		s, err := NewSIDHandler().ConvertBinarySIDToString(v.Bytes())
		return s, err == nil
	}

	return "", false
}

// ValidateWellKnownValue checks an objectGUID or objectSid value. Either the
// binary form or the canonical text form is accepted; values of any other
// attribute always pass.
func ValidateWellKnownValue(attrName string, v Value) error {
	if err := checkWellKnown(attrName, v); err != nil {
		return err
	}
	return nil
}

// ValidateWellKnownValues runs ValidateWellKnownValue over every value a
// record carries, including modification values.
func ValidateWellKnownValues(r *Record) error {
	attrs := append([]*Attribute(nil), r.Attributes()...)
	for _, m := range r.Modifications() {
		if m.Attribute != nil {
			attrs = append(attrs, m.Attribute)
		}
	}

	for _, a := range attrs {
		for _, v := range a.Values {
			if err := checkWellKnown(a.Name, v); err != nil {
				err.DN = r.DN()
				return err
			}
		}
	}
	return nil
}

func checkWellKnown(attrName string, v Value) *Error {
	name := strings.TrimSpace(attrName)
	b := v.Bytes()

	var err error
	switch {
	case strings.EqualFold(name, AttributeObjectGUID):
		g := NewGUIDHandler()
		if len(b) == GUIDBytesLength {
			_, err = g.GUIDBytesToString(b)
		} else {
			_, err = g.StringToGUIDBytes(string(b))
		}
	case strings.EqualFold(name, AttributeObjectSID):
		s := NewSIDHandler()
		if utf8.Valid(b) && strings.HasPrefix(string(b), "S-") {
			err = s.ValidateSIDString(string(b))
		} else {
			_, err = s.ConvertBinarySIDToString(b)
		}
	}
	if err == nil {
		return nil
	}

	return &Error{
		Operation: "validate value",
		Category:  ErrorCategoryProtocol,
		Attribute: name,
		Message:   err.Error(),
		Cause:     err,
	}
}
