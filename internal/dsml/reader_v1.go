package dsml

import (
	"io"

	"github.com/isometry/dirconv/internal/format"
	"github.com/isometry/dirconv/internal/ldap"
)

// V1Reader reads the entries of a DSML version 1 document as Content records.
type V1Reader struct {
	cur    *Cursor
	opts   *format.Options
	closer io.Closer

	done    bool
	records int
}

// NewV1Reader positions a reader on the entries container of a DSML v1
// document. Schema blocks ahead of the container are skipped.
func NewV1Reader(r io.Reader, opts *format.Options) (*V1Reader, error) {
	o, err := format.Resolve(opts)
	if err != nil {
		return nil, err
	}

	reader := &V1Reader{
		cur:  NewCursor(r, opReadV1),
		opts: o,
	}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}

	if _, err := reader.cur.ExpectStart(NamespaceV1, elemDSML); err != nil {
		return nil, err
	}

	for {
		ev, err := reader.cur.NextTag()
		if err != nil {
			return nil, err
		}
		switch {
		case reader.cur.IsStart(ev, NamespaceV1, elemDirectorySchema):
			if err := reader.cur.Skip(); err != nil {
				return nil, err
			}
		case reader.cur.IsStart(ev, NamespaceV1, elemDirectoryEntries):
			return reader, nil
		case reader.cur.IsEnd(ev, NamespaceV1, elemDSML):
			reader.done = true
			return reader, nil
		default:
			return nil, reader.cur.unexpected("<"+elemDirectoryEntries+">", ev)
		}
	}
}

// Close releases the underlying stream.
func (r *V1Reader) Close() error {
	r.done = true
	if r.closer != nil {
		return ldap.WrapIO("dsml close", r.closer.Close())
	}
	return nil
}

// Next returns the next entry, or io.EOF at the close of the entries
// container.
func (r *V1Reader) Next() (*ldap.Record, error) {
	if r.done {
		return nil, io.EOF
	}

	ev, err := r.cur.NextTag()
	if err != nil {
		return nil, r.fail(err)
	}

	switch {
	case r.cur.IsEnd(ev, NamespaceV1, elemDirectoryEntries):
		r.done = true
		return nil, io.EOF
	case r.cur.IsStart(ev, NamespaceV1, elemEntry):
		rec, err := r.entry(ev)
		if err != nil {
			return nil, r.fail(err)
		}
		r.records++
		ldap.LogRecordEvent(r.opts.Logger, "dsml_entry_read", rec)
		return rec, nil
	default:
		return nil, r.fail(r.cur.unexpected("<"+elemEntry+">", ev))
	}
}

func (r *V1Reader) fail(err error) error {
	r.done = true
	r.opts.Logger.Debug("DSML v1 parse failed", map[string]any{
		"records_read": r.records,
		"error":        err.Error(),
	})
	return err
}

func (r *V1Reader) entry(start Event) (*ldap.Record, error) {
	dn, err := r.cur.Attr(start, NamespaceV1, attrDN)
	if err != nil {
		return nil, err
	}
	rec := ldap.NewContent(dn)

	for {
		ev, err := r.cur.NextTag()
		if err != nil {
			return nil, err
		}

		var attr *ldap.Attribute
		switch {
		case r.cur.IsEnd(ev, NamespaceV1, elemEntry):
			return rec, nil
		case r.cur.IsStart(ev, NamespaceV1, elemObjectClass):
			attr, err = r.values(ldap.AttributeObjectClass, elemObjectClass, elemOCValue)
		case r.cur.IsStart(ev, NamespaceV1, elemAttr):
			var name string
			if name, err = r.cur.Attr(ev, NamespaceV1, attrName); err == nil {
				attr, err = r.values(name, elemAttr, elemValue)
			}
		default:
			return nil, r.cur.unexpected("<"+elemObjectClass+"> or <"+elemAttr+">", ev)
		}
		if err != nil {
			return nil, err
		}

		if !r.opts.Filters.Accepts(attr.Name) {
			continue
		}
		if err := rec.Add(attr); err != nil {
			return nil, positioned(err, opReadV1, ev)
		}
	}
}

// values reads the value children of a block up to its end tag.
func (r *V1Reader) values(name, block, child string) (*ldap.Attribute, error) {
	attr := &ldap.Attribute{Name: name}
	for {
		ev, err := r.cur.NextTag()
		if err != nil {
			return nil, err
		}
		if r.cur.IsEnd(ev, NamespaceV1, block) {
			return attr, nil
		}
		if !r.cur.IsStart(ev, NamespaceV1, child) {
			return nil, r.cur.unexpected("<"+child+">", ev)
		}

		encoding, _, err := r.cur.OptionalAttr(ev, NamespaceV1, attrEncoding)
		if err != nil {
			return nil, err
		}
		text, err := r.cur.ReadText()
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(name, text, encoding == "base64", r.opts.Filters)
		if err != nil {
			return nil, positioned(err, opReadV1, ev)
		}
		attr.Add(v)
	}
}
