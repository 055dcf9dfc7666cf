package dsml

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/isometry/dirconv/internal/format"
	"github.com/isometry/dirconv/internal/ldap"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;",
		"\t", "&#9;", "\n", "&#10;", "\r", "&#13;")
)

// xmlSafe reports whether b is valid UTF-8 made only of characters XML 1.0
// allows in element content.
func xmlSafe(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		switch {
		case r == '\t', r == '\n', r == '\r':
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= 0x10FFFF:
		default:
			return false
		}
	}
	return true
}

// Writer emits DSML version 1 or 2 documents.
type Writer struct {
	out     *bufio.Writer
	closer  io.Closer
	opts    *format.Options
	version int
	depth   int

	requestID string
	// element is the request element opened by the last PrintEntryStart.
	element string
}

// NewWriter creates a DSML writer for version 1 or 2.
func NewWriter(w io.Writer, version int, opts *format.Options) (*Writer, error) {
	if version != 1 && version != 2 {
		return nil, &ldap.Error{
			Operation: opWrite,
			Category:  ldap.ErrorCategoryUnsupportedVer,
			Expected:  "1 or 2",
			Found:     strconv.Itoa(version),
		}
	}

	o, err := format.Resolve(opts)
	if err != nil {
		return nil, err
	}

	writer := &Writer{
		out:       bufio.NewWriter(w),
		opts:      o,
		version:   version,
		requestID: o.RequestID,
	}
	if writer.requestID == "" && o.GenerateRequestID {
		writer.requestID = uuid.NewString()
	}
	if c, ok := w.(io.Closer); ok {
		writer.closer = c
	}
	return writer, nil
}

// RequestID returns the batch request id written in version 2 documents.
func (w *Writer) RequestID() string {
	return w.requestID
}

type xmlAttr struct {
	name, value string
}

func (w *Writer) write(s string) error {
	if _, err := w.out.WriteString(s); err != nil {
		return ldap.WrapIO(opWrite, err)
	}
	return nil
}

func (w *Writer) tag(name string, attrs []xmlAttr, closing string) string {
	var b strings.Builder
	b.WriteString(strings.Repeat(w.opts.Indent, w.depth))
	b.WriteString("<dsml:")
	b.WriteString(name)
	for _, a := range attrs {
		b.WriteString(" ")
		b.WriteString(a.name)
		b.WriteString(`="`)
		b.WriteString(attrEscaper.Replace(a.value))
		b.WriteString(`"`)
	}
	b.WriteString(closing)
	return b.String()
}

func (w *Writer) open(name string, attrs ...xmlAttr) error {
	err := w.write(w.tag(name, attrs, ">") + w.opts.LineEnding)
	w.depth++
	return err
}

func (w *Writer) close(name string) error {
	w.depth--
	return w.write(strings.Repeat(w.opts.Indent, w.depth) + "</dsml:" + name + ">" + w.opts.LineEnding)
}

func (w *Writer) empty(name string, attrs ...xmlAttr) error {
	return w.write(w.tag(name, attrs, "/>") + w.opts.LineEnding)
}

func (w *Writer) leaf(name, text string, attrs ...xmlAttr) error {
	return w.write(w.tag(name, attrs, ">") + textEscaper.Replace(text) + "</dsml:" + name + ">" + w.opts.LineEnding)
}

// PrintPrologue writes the XML declaration and opens the document root.
func (w *Writer) PrintPrologue() error {
	if err := w.write(`<?xml version="1.0" encoding="UTF-8"?>` + w.opts.LineEnding); err != nil {
		return err
	}

	if w.version == 1 {
		if err := w.open(elemDSML, xmlAttr{"xmlns:dsml", NamespaceV1}); err != nil {
			return err
		}
		return w.open(elemDirectoryEntries)
	}

	attrs := []xmlAttr{
		{"xmlns:dsml", NamespaceV2},
		{"xmlns:xsd", NamespaceXSD},
		{"xmlns:xsi", NamespaceXSI},
	}
	if w.requestID != "" {
		attrs = append(attrs, xmlAttr{attrRequestID, w.requestID})
	}
	return w.open(elemBatchRequest, attrs...)
}

// PrintEntryStart opens an entry (v1) or an addRequest (v2).
func (w *Writer) PrintEntryStart(dn string) error {
	w.element = elemEntry
	if w.version == 2 {
		w.element = elemAddRequest
	}
	return w.open(w.element, xmlAttr{attrDN, dn})
}

// PrintAttribute writes an attribute block. Version 1 renders objectClass as
// an objectclass block; version 2 writes every attribute the same way.
func (w *Writer) PrintAttribute(attr *ldap.Attribute) error {
	if attr == nil || !w.opts.Filters.Accepts(attr.Name) {
		return nil
	}
	if w.version == 1 && attr.Is(ldap.AttributeObjectClass) {
		return w.block(elemObjectClass, elemOCValue, attr, nil)
	}
	return w.block(elemAttr, elemValue, attr, []xmlAttr{{attrName, attr.Name}})
}

func (w *Writer) block(element, child string, attr *ldap.Attribute, attrs []xmlAttr) error {
	if err := w.open(element, attrs...); err != nil {
		return err
	}
	binary := w.opts.Filters.IsBinary(attr.Name)
	for _, v := range attr.Values {
		if err := w.value(child, v, binary); err != nil {
			return err
		}
	}
	return w.close(element)
}

func (w *Writer) value(element string, v ldap.Value, binary bool) error {
	if !binary && !v.IsBinary() && !format.NeedsEncoding(v.Bytes()) && xmlSafe(v.Bytes()) {
		return w.leaf(element, v.String())
	}

	marker := xmlAttr{attrEncoding, "base64"}
	if w.version == 2 {
		marker = xmlAttr{"xsi:type", "xsd:base64Binary"}
	}
	return w.leaf(element, format.EncodeBase64(v.Bytes()), marker)
}

// PrintEntryEnd closes the element opened by PrintEntryStart.
func (w *Writer) PrintEntryEnd(string) error {
	return w.close(w.element)
}

// PrintEpilogue closes the document and flushes.
func (w *Writer) PrintEpilogue() error {
	if w.version == 1 {
		if err := w.close(elemDirectoryEntries); err != nil {
			return err
		}
		if err := w.close(elemDSML); err != nil {
			return err
		}
	} else if err := w.close(elemBatchRequest); err != nil {
		return err
	}
	return ldap.WrapIO(opWrite, w.out.Flush())
}

// Close flushes and closes the destination.
func (w *Writer) Close() error {
	if err := w.out.Flush(); err != nil {
		return ldap.WrapIO("dsml close", err)
	}
	if w.closer != nil {
		return ldap.WrapIO("dsml close", w.closer.Close())
	}
	return nil
}

// WriteRecord writes r. Version 1 carries entry content only. Version 2
// writes an addRequest for every record unless KindAwareRequests is set;
// controls are written in both modes.
func (w *Writer) WriteRecord(r *ldap.Record) error {
	if w.version == 1 {
		if r.Kind() != ldap.KindContent && r.Kind() != ldap.KindAdd {
			w.opts.Logger.Debug("DSML v1 has no change records, writing entry content only", map[string]any{
				"dn":   r.DN(),
				"kind": r.Kind().String(),
			})
		}
		return r.ToStream(w)
	}

	element := elemAddRequest
	attrs := []xmlAttr{{attrDN, r.DN()}}
	if w.opts.KindAwareRequests {
		switch r.Kind() {
		case ldap.KindDelete:
			element = elemDelRequest
		case ldap.KindModify:
			element = elemModifyRequest
		case ldap.KindRename:
			element = elemModDNRequest
			attrs = append(attrs,
				xmlAttr{attrNewRDN, r.NewRDN()},
				xmlAttr{attrDeleteOldRDN, strconv.FormatBool(r.DeleteOldRDN())})
			if r.NewSuperior() != "" {
				attrs = append(attrs, xmlAttr{attrNewSuperior, r.NewSuperior()})
			}
		}
	}

	if err := w.open(element, attrs...); err != nil {
		return err
	}
	for _, c := range r.Controls() {
		if err := w.control(c); err != nil {
			return err
		}
	}

	switch {
	case element == elemModifyRequest:
		for _, m := range r.Modifications() {
			if !w.opts.Filters.Accepts(m.Attribute.Name) {
				continue
			}
			attrs := []xmlAttr{{attrName, m.Attribute.Name}, {attrOperation, m.Op.String()}}
			if err := w.block(elemModification, elemValue, m.Attribute, attrs); err != nil {
				return err
			}
		}
	case element == elemAddRequest:
		for _, attr := range r.OrderedAttributes() {
			if err := w.PrintAttribute(attr); err != nil {
				return err
			}
		}
	}

	ldap.LogRecordEvent(w.opts.Logger, "dsml_request_written", r)
	return w.close(element)
}

func (w *Writer) control(c ldap.Control) error {
	attrs := []xmlAttr{{attrType, c.OID}, {attrCriticality, strconv.FormatBool(c.Critical)}}
	if !c.HasValue() {
		return w.empty(elemControl, attrs...)
	}
	if err := w.open(elemControl, attrs...); err != nil {
		return err
	}
	if err := w.leaf(elemControlValue, format.EncodeBase64(c.Value), xmlAttr{"xsi:type", "xsd:base64Binary"}); err != nil {
		return err
	}
	return w.close(elemControl)
}
