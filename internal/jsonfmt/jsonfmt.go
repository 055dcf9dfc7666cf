// Package jsonfmt writes records as a JSON array of objects. The format is
// output only: the reader yields no records.
package jsonfmt

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/isometry/dirconv/internal/format"
	"github.com/isometry/dirconv/internal/ldap"
)

const opWrite = "json write"

// Writer emits `[{"dn": "...", "attr": ["v1", ...]}, ...]`.
type Writer struct {
	out    *bufio.Writer
	closer io.Closer
	opts   *format.Options

	entries int
	scratch bytes.Buffer
	enc     *json.Encoder
}

// NewWriter creates a JSON writer. If w is an io.Closer it is closed by Close.
func NewWriter(w io.Writer, opts *format.Options) (*Writer, error) {
	o, err := format.Resolve(opts)
	if err != nil {
		return nil, err
	}

	writer := &Writer{out: bufio.NewWriter(w), opts: o}
	writer.enc = json.NewEncoder(&writer.scratch)
	writer.enc.SetEscapeHTML(false)
	if c, ok := w.(io.Closer); ok {
		writer.closer = c
	}
	return writer, nil
}

func (w *Writer) write(s string) error {
	if _, err := w.out.WriteString(s); err != nil {
		return ldap.WrapIO(opWrite, err)
	}
	return nil
}

// quote renders s as a JSON string literal.
func (w *Writer) quote(s string) (string, error) {
	w.scratch.Reset()
	if err := w.enc.Encode(s); err != nil {
		return "", ldap.WrapIO(opWrite, err)
	}
	return string(bytes.TrimRight(w.scratch.Bytes(), "\n")), nil
}

// PrintPrologue opens the array.
func (w *Writer) PrintPrologue() error {
	return w.write("[")
}

// PrintEntryStart opens an object holding the dn.
func (w *Writer) PrintEntryStart(dn string) error {
	sep := ""
	if w.entries > 0 {
		sep = ","
	}
	q, err := w.quote(dn)
	if err != nil {
		return err
	}
	return w.write(sep + w.opts.LineEnding + w.opts.Indent + `{"dn": ` + q)
}

// PrintAttribute adds one key mapped to the attribute's values.
func (w *Writer) PrintAttribute(attr *ldap.Attribute) error {
	if attr == nil || !w.opts.Filters.Accepts(attr.Name) {
		return nil
	}

	name, err := w.quote(attr.Name)
	if err != nil {
		return err
	}

	var b bytes.Buffer
	b.WriteString(", " + name + ": [")
	for i, v := range attr.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		q, err := w.quote(w.text(attr.Name, v))
		if err != nil {
			return err
		}
		b.WriteString(q)
	}
	b.WriteString("]")
	return w.write(b.String())
}

// text renders a value as a JSON string: objectGUID and objectSid in their
// canonical form, other binary values base64-encoded.
func (w *Writer) text(name string, v ldap.Value) string {
	if !v.IsBinary() && !w.opts.Filters.IsBinary(name) {
		return v.String()
	}
	if s, ok := ldap.FormatWellKnownBinary(name, v); ok {
		return s
	}
	return format.EncodeBase64(v.Bytes())
}

// PrintEntryEnd closes the object.
func (w *Writer) PrintEntryEnd(string) error {
	w.entries++
	return w.write("}")
}

// PrintEpilogue closes the array and flushes.
func (w *Writer) PrintEpilogue() error {
	end := "]"
	if w.entries > 0 {
		end = w.opts.LineEnding + "]"
	}
	if err := w.write(end + w.opts.LineEnding); err != nil {
		return err
	}
	return ldap.WrapIO(opWrite, w.out.Flush())
}

// Close flushes and closes the destination.
func (w *Writer) Close() error {
	if err := w.out.Flush(); err != nil {
		return ldap.WrapIO("json close", err)
	}
	if w.closer != nil {
		return ldap.WrapIO("json close", w.closer.Close())
	}
	return nil
}

// Reader is the input side of the JSON format. JSON is not read back;
// Next always reports the end of input.
type Reader struct {
	closer io.Closer
}

// NewReader creates a reader over r that yields no records.
func NewReader(r io.Reader) *Reader {
	reader := &Reader{}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}
	return reader
}

// Next returns io.EOF.
func (r *Reader) Next() (*ldap.Record, error) {
	return nil, io.EOF
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	if r.closer != nil {
		return ldap.WrapIO("json close", r.closer.Close())
	}
	return nil
}
