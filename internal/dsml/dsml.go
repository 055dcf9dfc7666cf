// Package dsml reads and writes Directory Services Markup Language
// documents: the entry-centric version 1 and the request-centric version 2
// batch format.
package dsml

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/isometry/dirconv/internal/format"
	"github.com/isometry/dirconv/internal/ldap"
)

// Namespaces.
const (
	NamespaceV1  = "http://www.dsml.org/DSML"
	NamespaceV2  = "urn:oasis:names:tc:DSML:2:0:core"
	NamespaceXSD = "http://www.w3.org/2001/XMLSchema"
	NamespaceXSI = "http://www.w3.org/2001/XMLSchema-instance"
)

// Element and attribute names.
const (
	elemDSML             = "dsml"
	elemDirectoryEntries = "directory-entries"
	elemDirectorySchema  = "directory-schema"
	elemEntry            = "entry"
	elemObjectClass      = "objectclass"
	elemOCValue          = "oc-value"
	elemAttr             = "attr"
	elemValue            = "value"

	elemBatchRequest  = "batchRequest"
	elemAddRequest    = "addRequest"
	elemModifyRequest = "modifyRequest"
	elemDelRequest    = "delRequest"
	elemModDNRequest  = "modDNRequest"
	elemModification  = "modification"
	elemControl       = "control"
	elemControlValue  = "controlValue"

	attrDN           = "dn"
	attrName         = "name"
	attrEncoding     = "encoding"
	attrType         = "type"
	attrOperation    = "operation"
	attrCriticality  = "criticality"
	attrNewRDN       = "newrdn"
	attrNewSuperior  = "newSuperior"
	attrDeleteOldRDN = "deleteoldrdn"
	attrRequestID    = "requestID"
)

const (
	opReadV1 = "dsml v1 read"
	opReadV2 = "dsml v2 read"
	opWrite  = "dsml write"
)

// decodeValue turns element text into a value of the named attribute.
func decodeValue(name, text string, base64 bool, filters *format.Filters) (ldap.Value, error) {
	if !base64 {
		if filters.IsBinary(name) {
			return ldap.BinaryValue([]byte(text)), nil
		}
		return ldap.TextValue(text), nil
	}

	b, err := format.DecodeBase64(text)
	if err != nil {
		return ldap.Value{}, err
	}
	if filters.IsBinary(name) || !utf8.Valid(b) {
		return ldap.BinaryValue(b), nil
	}
	return ldap.TextValue(string(b)), nil
}

// isBase64Type reports whether an xsi:type names base64Binary.
func isBase64Type(t string) bool {
	if i := strings.LastIndexByte(t, ':'); i >= 0 {
		t = t[i+1:]
	}
	return t == "base64Binary"
}

// parseBool accepts the xsd:boolean lexical forms.
func parseBool(s string) (bool, bool) {
	switch strings.TrimSpace(s) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}

// positioned attaches the event position to a value decoding error.
func positioned(err error, op string, ev Event) error {
	var ie *ldap.Error
	if errors.As(err, &ie) {
		c := ie.At(ev.Line, ev.Column)
		c.Operation = op
		return c
	}
	return err
}
