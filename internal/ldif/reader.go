package ldif

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/isometry/dirconv/internal/format"
	"github.com/isometry/dirconv/internal/ldap"
)

const opRead = "ldif read"

// Supported LDIF version.
const Version = 1

// valueKind is the encoding of a value on an attribute line.
type valueKind int

const (
	valuePlain  valueKind = iota // name: value
	valueBase64                  // name:: base64
	valueURL                     // name:< url
)

// attrLine is a parsed "name<sep>value" line.
type attrLine struct {
	name string
	kind valueKind
	raw  string
	line int
}

// Reader parses LDIF content and change records.
type Reader struct {
	lines  *lineReader
	opts   *format.Options
	closer io.Closer

	started bool
	done    bool
	version int
	records int
}

// NewReader creates an LDIF reader. If r is an io.Closer it is closed by Close.
func NewReader(r io.Reader, opts *format.Options) (*Reader, error) {
	o, err := format.Resolve(opts)
	if err != nil {
		return nil, err
	}

	reader := &Reader{
		lines: newLineReader(r),
		opts:  o,
	}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}
	return reader, nil
}

// Version returns the version declared by the input, 0 if none.
func (r *Reader) Version() int {
	return r.version
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	r.done = true
	if r.closer != nil {
		return ldap.WrapIO("ldif close", r.closer.Close())
	}
	return nil
}

// Next parses the next record. It returns io.EOF when the input is exhausted.
func (r *Reader) Next() (*ldap.Record, error) {
	if r.done {
		return nil, io.EOF
	}

	first, ok, err := r.nextNonBlank()
	if err != nil {
		return nil, r.fail(err)
	}
	if !ok {
		r.done = true
		return nil, io.EOF
	}

	if !r.started {
		r.started = true
		if l, perr := r.parseLine(first); perr == nil && strings.EqualFold(l.name, "version") {
			if err := r.parseVersion(l); err != nil {
				return nil, r.fail(err)
			}
			first, ok, err = r.nextNonBlank()
			if err != nil {
				return nil, r.fail(err)
			}
			if !ok {
				r.done = true
				return nil, io.EOF
			}
		}
	}

	body, err := r.paragraph()
	if err != nil {
		return nil, r.fail(err)
	}

	rec, err := r.parseRecord(first, body)
	if err != nil {
		return nil, r.fail(err)
	}

	r.records++
	ldap.LogRecordEvent(r.opts.Logger, "ldif_record_read", rec)
	return rec, nil
}

func (r *Reader) fail(err error) error {
	r.done = true
	r.opts.Logger.Debug("LDIF parse failed", map[string]any{
		"records_read": r.records,
		"error":        err.Error(),
	})
	return err
}

func (r *Reader) nextNonBlank() (logicalLine, bool, error) {
	for {
		l, ok, err := r.lines.next()
		if err != nil || !ok {
			return logicalLine{}, false, err
		}
		if !l.blank() {
			return l, true, nil
		}
	}
}

// paragraph collects the logical lines up to the next blank line or end of input.
func (r *Reader) paragraph() ([]logicalLine, error) {
	var body []logicalLine
	for {
		l, ok, err := r.lines.next()
		if err != nil {
			return nil, err
		}
		if !ok || l.blank() {
			return body, nil
		}
		body = append(body, l)
	}
}

func (r *Reader) parseVersion(l attrLine) error {
	v, err := strconv.Atoi(strings.TrimSpace(l.raw))
	if err != nil || v != Version {
		return &ldap.Error{
			Operation: opRead,
			Category:  ldap.ErrorCategoryUnsupportedVer,
			Line:      l.line,
			Expected:  strconv.Itoa(Version),
			Found:     strings.TrimSpace(l.raw),
		}
	}
	r.version = v
	return nil
}

// parseLine splits a logical line into name, value kind and raw value.
func (r *Reader) parseLine(l logicalLine) (attrLine, error) {
	sep := r.opts.Separator

	idx := strings.Index(l.text, sep)
	if idx <= 0 {
		return attrLine{}, ldap.GrammarError(opRead, l.line, 1, "attribute"+sep+" value", strconv.Quote(truncate(l.text)))
	}

	out := attrLine{
		name: strings.TrimSpace(l.text[:idx]),
		line: l.line,
	}
	rest := l.text[idx+len(sep):]

	switch {
	case strings.HasPrefix(rest, sep):
		out.kind = valueBase64
		out.raw = strings.TrimSpace(rest[len(sep):])
	case strings.HasPrefix(rest, "<"):
		out.kind = valueURL
		out.raw = strings.TrimSpace(rest[1:])
	default:
		out.kind = valuePlain
		out.raw = strings.TrimLeft(rest, " ")
	}

	if out.name == "" {
		return attrLine{}, ldap.GrammarError(opRead, l.line, 1, "attribute name", strconv.Quote(truncate(l.text)))
	}
	return out, nil
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

// bytes decodes the value of an attribute line.
func (r *Reader) bytes(l attrLine) ([]byte, error) {
	switch l.kind {
	case valueBase64:
		b, err := format.DecodeBase64(l.raw)
		if err != nil {
			return nil, positioned(err, l.line)
		}
		return b, nil
	case valueURL:
		b, err := format.Dereference(l.raw)
		if err != nil {
			return nil, positioned(err, l.line)
		}
		return b, nil
	default:
		return []byte(l.raw), nil
	}
}

// text decodes the value of a line that must be text (dn, newrdn, ...).
func (r *Reader) text(l attrLine) (string, error) {
	b, err := r.bytes(l)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// value decodes an attribute value applying the binary classification.
func (r *Reader) value(l attrLine) (ldap.Value, error) {
	b, err := r.bytes(l)
	if err != nil {
		return ldap.Value{}, err
	}
	if r.opts.Filters.IsBinary(l.name) || (l.kind != valuePlain && !utf8.Valid(b)) {
		return ldap.BinaryValue(b), nil
	}
	return ldap.TextValue(string(b)), nil
}

func positioned(err error, line int) error {
	var ie *ldap.Error
	if errors.As(err, &ie) {
		c := ie.At(line, 0)
		c.Operation = opRead
		return c
	}
	return err
}

func (r *Reader) parseRecord(first logicalLine, body []logicalLine) (*ldap.Record, error) {
	dnLine, err := r.parseLine(first)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(dnLine.name, ldap.AttributeDN) {
		return nil, ldap.GrammarError(opRead, first.line, 1, "dn"+r.opts.Separator, dnLine.name+r.opts.Separator)
	}
	dn, err := r.text(dnLine)
	if err != nil {
		return nil, err
	}

	lines := make([]attrLine, 0, len(body))
	for _, l := range body {
		if strings.TrimRight(l.text, " ") == "-" {
			lines = append(lines, attrLine{name: "-", line: l.line})
			continue
		}
		al, err := r.parseLine(l)
		if err != nil {
			return nil, err
		}
		lines = append(lines, al)
	}

	i := 0
	var controls []ldap.Control
	readControls := func() error {
		for i < len(lines) && strings.EqualFold(lines[i].name, "control") {
			c, err := r.parseControl(lines[i])
			if err != nil {
				return err
			}
			controls = append(controls, c)
			i++
		}
		return nil
	}

	if err := readControls(); err != nil {
		return nil, err
	}

	changeType := ""
	changeLine := dnLine.line
	if i < len(lines) && strings.EqualFold(lines[i].name, "changetype") {
		changeType = strings.ToLower(strings.TrimSpace(lines[i].raw))
		changeLine = lines[i].line
		i++
		if err := readControls(); err != nil {
			return nil, err
		}
	}

	var rec *ldap.Record
	switch changeType {
	case "":
		rec = ldap.NewContent(dn)
		err = r.parseContent(rec, lines[i:])
	case "add":
		rec = ldap.NewAdd(dn)
		err = r.parseContent(rec, lines[i:])
	case "delete":
		rec = ldap.NewDelete(dn)
		err = r.parseContent(rec, lines[i:])
	case "modify":
		rec = ldap.NewModify(dn)
		err = r.parseModify(rec, lines[i:])
	case "moddn", "modrdn":
		rec, err = r.parseRename(dn, dnLine.line, lines[i:])
	default:
		return nil, &ldap.Error{
			Operation: opRead,
			Category:  ldap.ErrorCategoryUnknownChangeOp,
			Line:      changeLine,
			Expected:  "add, delete, modify, moddn or modrdn",
			Found:     changeType,
			DN:        dn,
		}
	}
	if err != nil {
		return nil, err
	}

	rec.SetControls(controls)
	return rec, nil
}

// parseControl parses "control: <oid> [true|false][: v | :: b64 | :< url]".
func (r *Reader) parseControl(l attrLine) (ldap.Control, error) {
	sep := r.opts.Separator
	s := strings.TrimSpace(l.raw)

	end := strings.IndexAny(s, " "+sep)
	if end < 0 {
		end = len(s)
	}
	c := ldap.Control{OID: s[:end]}
	if !validOID(c.OID) {
		return ldap.Control{}, ldap.GrammarError(opRead, l.line, 0, "control OID", strconv.Quote(c.OID))
	}

	rest := strings.TrimLeft(s[end:], " ")
	lower := strings.ToLower(rest)
	switch {
	case strings.HasPrefix(lower, "true"):
		c.Critical = true
		rest = rest[len("true"):]
	case strings.HasPrefix(lower, "false"):
		rest = rest[len("false"):]
	}
	rest = strings.TrimLeft(rest, " ")

	if rest == "" {
		return c, nil
	}
	if !strings.HasPrefix(rest, sep) {
		return ldap.Control{}, ldap.GrammarError(opRead, l.line, 0, "true, false or "+sep+" value", strconv.Quote(truncate(rest)))
	}

	v := attrLine{name: "control", line: l.line}
	rest = rest[len(sep):]
	switch {
	case strings.HasPrefix(rest, sep):
		v.kind, v.raw = valueBase64, strings.TrimSpace(rest[len(sep):])
	case strings.HasPrefix(rest, "<"):
		v.kind, v.raw = valueURL, strings.TrimSpace(rest[1:])
	default:
		v.kind, v.raw = valuePlain, strings.TrimLeft(rest, " ")
	}

	b, err := r.bytes(v)
	if err != nil {
		return ldap.Control{}, err
	}
	c.Value = b
	return c, nil
}

func validOID(oid string) bool {
	if oid == "" || oid[0] == '.' || oid[len(oid)-1] == '.' {
		return false
	}
	for _, ch := range oid {
		if (ch < '0' || ch > '9') && ch != '.' {
			return false
		}
	}
	return !strings.Contains(oid, "..")
}

// parseContent reads attribute lines of content, add and delete records.
func (r *Reader) parseContent(rec *ldap.Record, lines []attrLine) error {
	for _, l := range lines {
		if isClauseEnd(l) {
			return ldap.GrammarError(opRead, l.line, 1, "attribute"+r.opts.Separator+" value", `"-"`)
		}
		v, err := r.value(l)
		if err != nil {
			return err
		}
		if rec.Kind() != ldap.KindDelete && !r.opts.Filters.Accepts(l.name) {
			continue
		}
		attr := &ldap.Attribute{Name: l.name, Values: []ldap.Value{v}}
		if err := rec.Add(attr); err != nil {
			return positioned(err, l.line)
		}
	}
	return nil
}

// parseModify reads "add:|delete:|replace:|increment: attr" clauses.
func (r *Reader) parseModify(rec *ldap.Record, lines []attrLine) error {
	i := 0
	for i < len(lines) {
		head := lines[i]
		op, ok := ldap.ParseModOp(head.name)
		if !ok {
			return &ldap.Error{
				Operation: opRead,
				Category:  ldap.ErrorCategoryUnknownChangeOp,
				Line:      head.line,
				Expected:  "add, delete, replace or increment",
				Found:     head.name,
				DN:        rec.DN(),
			}
		}

		name, err := r.text(head)
		if err != nil {
			return err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return &ldap.Error{
				Operation: opRead,
				Category:  ldap.ErrorCategoryMissingAttribute,
				Line:      head.line,
				Message:   head.name + " clause names no attribute",
				DN:        rec.DN(),
			}
		}
		i++

		attr := &ldap.Attribute{Name: name}
		for i < len(lines) && !isClauseEnd(lines[i]) {
			l := lines[i]
			if !strings.EqualFold(l.name, name) {
				return ldap.GrammarError(opRead, l.line, 1, name+r.opts.Separator+" or -", l.name+r.opts.Separator)
			}
			v, err := r.value(l)
			if err != nil {
				return err
			}
			attr.Add(v)
			i++
		}
		if i < len(lines) {
			i++ // "-"
		}

		if (op == ldap.ModAdd || op == ldap.ModIncrement) && len(attr.Values) == 0 {
			return &ldap.Error{
				Operation: opRead,
				Category:  ldap.ErrorCategoryMissingAttribute,
				Line:      head.line,
				Message:   op.String() + " clause has no values",
				Attribute: name,
				DN:        rec.DN(),
			}
		}

		if !r.opts.Filters.Accepts(name) {
			continue
		}
		if err := rec.AddModification(op, attr); err != nil {
			return positioned(err, head.line)
		}
	}
	return nil
}

// isClauseEnd reports whether the line is the "-" modify clause terminator.
func isClauseEnd(l attrLine) bool {
	return l.name == "-" && l.raw == ""
}

// parseRename reads newrdn, deleteoldrdn and newsuperior/newparent lines.
func (r *Reader) parseRename(dn string, dnLine int, lines []attrLine) (*ldap.Record, error) {
	var (
		newRDN, newSuperior string
		deleteOld           bool
		seenRDN, seenDel    bool
		seenSup             bool
	)

	duplicate := func(l attrLine) error {
		return &ldap.Error{
			Operation: opRead,
			Category:  ldap.ErrorCategoryDuplicate,
			Line:      l.line,
			Attribute: l.name,
			DN:        dn,
		}
	}

	for _, l := range lines {
		switch strings.ToLower(l.name) {
		case "newrdn":
			if seenRDN {
				return nil, duplicate(l)
			}
			v, err := r.text(l)
			if err != nil {
				return nil, err
			}
			newRDN, seenRDN = strings.TrimSpace(v), true
		case "deleteoldrdn":
			if seenDel {
				return nil, duplicate(l)
			}
			switch strings.TrimSpace(l.raw) {
			case "0":
				deleteOld = false
			case "1":
				deleteOld = true
			default:
				return nil, ldap.GrammarError(opRead, l.line, 0, "0 or 1", strconv.Quote(l.raw))
			}
			seenDel = true
		case "newsuperior", "newparent":
			if seenSup {
				return nil, duplicate(l)
			}
			v, err := r.text(l)
			if err != nil {
				return nil, err
			}
			newSuperior, seenSup = strings.TrimSpace(v), true
		default:
			return nil, ldap.GrammarError(opRead, l.line, 1, "newrdn, deleteoldrdn or newsuperior", l.name)
		}
	}

	if newRDN == "" {
		return nil, &ldap.Error{
			Operation: opRead,
			Category:  ldap.ErrorCategoryMissingAttribute,
			Line:      dnLine,
			Attribute: "newrdn",
			DN:        dn,
		}
	}

	return ldap.NewRename(dn, newRDN, newSuperior, deleteOld), nil
}
