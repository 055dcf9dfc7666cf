package ldif

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/isometry/dirconv/internal/format"
	"github.com/isometry/dirconv/internal/ldap"
)

const opWrite = "ldif write"

// Writer serialises records as LDIF.
type Writer struct {
	out    *bufio.Writer
	closer io.Closer
	opts   *format.Options

	// spooled counts the values written to files per attribute name.
	spooled map[string]int
}

// NewWriter creates an LDIF writer. If w is an io.Closer it is closed by Close.
func NewWriter(w io.Writer, opts *format.Options) (*Writer, error) {
	o, err := format.Resolve(opts)
	if err != nil {
		return nil, err
	}

	writer := &Writer{
		out:     bufio.NewWriter(w),
		opts:    o,
		spooled: make(map[string]int),
	}
	if c, ok := w.(io.Closer); ok {
		writer.closer = c
	}
	return writer, nil
}

func (w *Writer) line(s string) error {
	if !w.opts.NoFold {
		s = Fold(s, w.opts.FoldWidth, w.opts.LineEnding)
	}
	if _, err := w.out.WriteString(s + w.opts.LineEnding); err != nil {
		return ldap.WrapIO(opWrite, err)
	}
	return nil
}

// valueLine renders name and value, base64-encoding when forced or unsafe.
func (w *Writer) valueLine(name string, value []byte, forceBase64 bool) error {
	sep := w.opts.Separator
	if forceBase64 || format.NeedsEncoding(value) {
		return w.line(name + sep + sep + " " + format.EncodeBase64(value))
	}
	return w.line(name + sep + " " + string(value))
}

// PrintPrologue writes the version line when enabled.
func (w *Writer) PrintPrologue() error {
	if !w.opts.IncludeVersion {
		return nil
	}
	return w.line("version" + w.opts.Separator + " " + strconv.Itoa(Version))
}

// PrintEntryStart writes the dn line.
func (w *Writer) PrintEntryStart(dn string) error {
	return w.valueLine(ldap.AttributeDN, []byte(dn), false)
}

// PrintAttribute writes one line per value. Filtered attributes are skipped.
func (w *Writer) PrintAttribute(attr *ldap.Attribute) error {
	if attr == nil || !w.opts.Filters.Accepts(attr.Name) {
		return nil
	}

	binary := w.opts.Filters.IsBinary(attr.Name)
	for _, v := range attr.Values {
		if w.opts.ValuesToFiles {
			if err := w.spool(attr.Name, v.Bytes()); err != nil {
				return err
			}
			continue
		}
		if err := w.valueLine(attr.Name, v.Bytes(), binary || v.IsBinary()); err != nil {
			return err
		}
	}
	return nil
}

// spool writes value to <SpoolDir>/<name>.<n> and references it by URL.
func (w *Writer) spool(name string, value []byte) error {
	key := strings.ToLower(name)
	w.spooled[key]++

	path := filepath.Join(w.opts.SpoolDir, fmt.Sprintf("%s.%d", name, w.spooled[key]))
	if err := os.WriteFile(path, value, 0o600); err != nil {
		return ldap.WrapIO(opWrite, err)
	}

	w.opts.Logger.Trace("Spooled attribute value", map[string]any{
		"attribute": name,
		"path":      path,
		"bytes":     len(value),
	})
	return w.line(name + w.opts.Separator + "< " + format.FileURL(path))
}

// PrintEntryEnd writes the blank line separating records.
func (w *Writer) PrintEntryEnd(string) error {
	if _, err := w.out.WriteString(w.opts.LineEnding); err != nil {
		return ldap.WrapIO(opWrite, err)
	}
	return nil
}

// PrintEpilogue flushes buffered output.
func (w *Writer) PrintEpilogue() error {
	return ldap.WrapIO(opWrite, w.out.Flush())
}

// Close flushes and closes the destination.
func (w *Writer) Close() error {
	if err := w.out.Flush(); err != nil {
		return ldap.WrapIO("ldif close", err)
	}
	if w.closer != nil {
		return ldap.WrapIO("ldif close", w.closer.Close())
	}
	return nil
}

// WriteRecord writes r with its controls and change grammar.
func (w *Writer) WriteRecord(r *ldap.Record) error {
	if err := w.PrintEntryStart(r.DN()); err != nil {
		return err
	}

	for _, c := range r.Controls() {
		if err := w.control(c); err != nil {
			return err
		}
	}

	changeType := r.Kind().String()
	if r.Kind() == ldap.KindContent {
		changeType = ""
		if len(r.Controls()) > 0 {
			// Controls are only legal on change records.
			changeType = ldap.KindAdd.String()
		}
	}
	if changeType != "" {
		if err := w.line("changetype" + w.opts.Separator + " " + changeType); err != nil {
			return err
		}
	}

	var err error
	switch r.Kind() {
	case ldap.KindContent, ldap.KindAdd:
		for _, attr := range r.OrderedAttributes() {
			if err = w.PrintAttribute(attr); err != nil {
				break
			}
		}
	case ldap.KindModify:
		err = w.modifications(r)
	case ldap.KindRename:
		err = w.rename(r)
	}
	if err != nil {
		return err
	}

	ldap.LogRecordEvent(w.opts.Logger, "ldif_record_written", r)
	return w.PrintEntryEnd(r.DN())
}

func (w *Writer) control(c ldap.Control) error {
	s := "control" + w.opts.Separator + " " + c.OID + " " + strconv.FormatBool(c.Critical)
	if c.HasValue() {
		sep := w.opts.Separator
		if format.NeedsEncoding(c.Value) {
			s += sep + sep + " " + format.EncodeBase64(c.Value)
		} else {
			s += sep + " " + string(c.Value)
		}
	}
	return w.line(s)
}

func (w *Writer) modifications(r *ldap.Record) error {
	for _, m := range r.Modifications() {
		if !w.opts.Filters.Accepts(m.Attribute.Name) {
			continue
		}
		if err := w.line(m.Op.String() + w.opts.Separator + " " + m.Attribute.Name); err != nil {
			return err
		}
		if err := w.PrintAttribute(m.Attribute); err != nil {
			return err
		}
		if err := w.line("-"); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) rename(r *ldap.Record) error {
	if err := w.valueLine("newrdn", []byte(r.NewRDN()), false); err != nil {
		return err
	}

	deleteOld := "0"
	if r.DeleteOldRDN() {
		deleteOld = "1"
	}
	if err := w.line("deleteoldrdn" + w.opts.Separator + " " + deleteOld); err != nil {
		return err
	}

	if r.NewSuperior() != "" {
		return w.valueLine("newsuperior", []byte(r.NewSuperior()), false)
	}
	return nil
}
