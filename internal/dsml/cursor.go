package dsml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/isometry/dirconv/internal/ldap"
)

// EventKind identifies a cursor event.
type EventKind int

const (
	StartElement EventKind = iota
	EndElement
	Text
	EndDocument
)

func (k EventKind) String() string {
	switch k {
	case StartElement:
		return "start element"
	case EndElement:
		return "end element"
	case Text:
		return "text"
	case EndDocument:
		return "end of document"
	default:
		return "unknown"
	}
}

// Event is one step of the cursor.
type Event struct {
	Kind   EventKind
	Name   xml.Name
	Attrs  []xml.Attr
	Text   string
	Line   int
	Column int
}

// describe renders the event for "found" diagnostics.
func (e Event) describe() string {
	switch e.Kind {
	case StartElement:
		return "<" + e.Name.Local + ">"
	case EndElement:
		return "</" + e.Name.Local + ">"
	case Text:
		return fmt.Sprintf("text %q", truncate(strings.TrimSpace(e.Text)))
	default:
		return e.Kind.String()
	}
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}

// Cursor is a forward-only pull cursor over an XML document.
type Cursor struct {
	dec *xml.Decoder
	op  string

	// declared holds every namespace bound to a prefix anywhere so far.
	declared map[string]bool
}

// NewCursor creates a cursor. Documents declaring a non-UTF-8 encoding are
// decoded through the IANA charset registry.
func NewCursor(r io.Reader, op string) *Cursor {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	return &Cursor{
		dec:      dec,
		op:       op,
		declared: make(map[string]bool),
	}
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return nil, ldap.NewError("dsml charset", ldap.ErrorCategoryUnsupportedFormat, "unsupported document encoding %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Declared reports whether the document bound a prefix to namespace.
func (c *Cursor) Declared(namespace string) bool {
	return c.declared[namespace]
}

// Next returns the next event. Comments, processing instructions and
// directives are skipped; the end of input is an EndDocument event.
func (c *Cursor) Next() (Event, error) {
	for {
		line, column := c.dec.InputPos()

		tok, err := c.dec.Token()
		if errors.Is(err, io.EOF) {
			return Event{Kind: EndDocument, Line: line, Column: column}, nil
		}
		if err != nil {
			var se *xml.SyntaxError
			if errors.As(err, &se) {
				return Event{}, &ldap.Error{
					Operation: c.op,
					Category:  ldap.ErrorCategoryGrammar,
					Line:      se.Line,
					Expected:  "well-formed XML",
					Found:     se.Msg,
					Cause:     err,
				}
			}
			return Event{}, ldap.WrapIO(c.op, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" {
					c.declared[a.Value] = true
				}
			}
			t = t.Copy()
			return Event{Kind: StartElement, Name: t.Name, Attrs: t.Attr, Line: line, Column: column}, nil
		case xml.EndElement:
			return Event{Kind: EndElement, Name: t.Name, Line: line, Column: column}, nil
		case xml.CharData:
			return Event{Kind: Text, Text: string(t), Line: line, Column: column}, nil
		}
	}
}

// NextTag returns the next start element, end element or end of document,
// skipping whitespace. Any other text is a grammar violation.
func (c *Cursor) NextTag() (Event, error) {
	for {
		ev, err := c.Next()
		if err != nil {
			return Event{}, err
		}
		if ev.Kind != Text {
			return ev, nil
		}
		if strings.TrimSpace(ev.Text) != "" {
			return Event{}, c.unexpected("element", ev)
		}
	}
}

// ExpectStart consumes the next tag, which must open the named element.
func (c *Cursor) ExpectStart(namespace, local string) (Event, error) {
	ev, err := c.NextTag()
	if err != nil {
		return Event{}, err
	}
	if !c.IsStart(ev, namespace, local) {
		return Event{}, c.unexpected("<"+local+">", ev)
	}
	return ev, nil
}

// IsStart reports whether ev opens the named element. Elements in no
// namespace are accepted for documents that omit the declaration.
func (c *Cursor) IsStart(ev Event, namespace, local string) bool {
	return ev.Kind == StartElement && ev.Name.Local == local && inNamespace(ev.Name, namespace)
}

// IsEnd reports whether ev closes the named element.
func (c *Cursor) IsEnd(ev Event, namespace, local string) bool {
	return ev.Kind == EndElement && ev.Name.Local == local && inNamespace(ev.Name, namespace)
}

func inNamespace(name xml.Name, namespace string) bool {
	return name.Space == namespace || name.Space == ""
}

// ReadText reads character data up to and including the end of the current
// element. Child elements are a grammar violation.
func (c *Cursor) ReadText() (string, error) {
	var b strings.Builder
	for {
		ev, err := c.Next()
		if err != nil {
			return "", err
		}
		switch ev.Kind {
		case Text:
			b.WriteString(ev.Text)
		case EndElement:
			return b.String(), nil
		default:
			return "", c.unexpected("text", ev)
		}
	}
}

// Skip discards the rest of the current element, children included.
func (c *Cursor) Skip() error {
	depth := 1
	for depth > 0 {
		ev, err := c.Next()
		if err != nil {
			return err
		}
		switch ev.Kind {
		case StartElement:
			depth++
		case EndElement:
			depth--
		case EndDocument:
			return c.unexpected("end element", ev)
		}
	}
	return nil
}

func (c *Cursor) unexpected(expected string, ev Event) *ldap.Error {
	return ldap.GrammarError(c.op, ev.Line, ev.Column, expected, ev.describe())
}

// attrs returns the attributes of ev named local. Unqualified attributes
// always match; namespace-qualified ones match when the document declared
// a prefix for namespace.
func (c *Cursor) attrs(ev Event, namespace, local string) []xml.Attr {
	var out []xml.Attr
	for _, a := range ev.Attrs {
		if !strings.EqualFold(a.Name.Local, local) {
			continue
		}
		if a.Name.Space == "" || (a.Name.Space == namespace && c.Declared(namespace)) {
			out = append(out, a)
		}
	}
	return out
}

// Attr returns the single value of a required attribute.
func (c *Cursor) Attr(ev Event, namespace, local string) (string, error) {
	v, ok, err := c.OptionalAttr(ev, namespace, local)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ldap.Error{
			Operation: c.op,
			Category:  ldap.ErrorCategoryMissingAttribute,
			Line:      ev.Line,
			Column:    ev.Column,
			Attribute: local,
			Message:   "required on <" + ev.Name.Local + ">",
		}
	}
	return v, nil
}

// OptionalAttr returns the value of an attribute that may be absent.
func (c *Cursor) OptionalAttr(ev Event, namespace, local string) (string, bool, error) {
	matches := c.attrs(ev, namespace, local)
	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		return matches[0].Value, true, nil
	default:
		return "", false, &ldap.Error{
			Operation: c.op,
			Category:  ldap.ErrorCategoryDuplicate,
			Line:      ev.Line,
			Column:    ev.Column,
			Attribute: local,
			Message:   fmt.Sprintf("%d occurrences on <%s>", len(matches), ev.Name.Local),
		}
	}
}
