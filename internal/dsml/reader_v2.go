package dsml

import (
	"io"
	"strings"

	"github.com/isometry/dirconv/internal/format"
	"github.com/isometry/dirconv/internal/ldap"
)

// Batch processing attributes.
const (
	ProcessingSequential = "sequential"
	ProcessingParallel   = "parallel"

	ResponseOrderSequential = "sequential"
	ResponseOrderUnordered  = "unordered"

	OnErrorExit   = "exit"
	OnErrorResume = "resume"
)

// BatchRequest holds the attributes of a batchRequest root.
type BatchRequest struct {
	RequestID     string
	Processing    string
	ResponseOrder string
	OnError       string
}

// V2Reader reads the requests of a DSML version 2 batch as change records.
type V2Reader struct {
	cur    *Cursor
	opts   *format.Options
	closer io.Closer
	batch  BatchRequest

	done    bool
	records int
}

// NewV2Reader reads the batchRequest root of a DSML v2 document.
func NewV2Reader(r io.Reader, opts *format.Options) (*V2Reader, error) {
	o, err := format.Resolve(opts)
	if err != nil {
		return nil, err
	}

	reader := &V2Reader{
		cur:  NewCursor(r, opReadV2),
		opts: o,
	}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}

	root, err := reader.cur.ExpectStart(NamespaceV2, elemBatchRequest)
	if err != nil {
		return nil, err
	}
	if reader.batch, err = reader.batchAttributes(root); err != nil {
		return nil, err
	}

	o.Logger.Debug("DSML v2 batch opened", map[string]any{
		"request_id":     reader.batch.RequestID,
		"processing":     reader.batch.Processing,
		"response_order": reader.batch.ResponseOrder,
		"on_error":       reader.batch.OnError,
	})
	return reader, nil
}

func (r *V2Reader) batchAttributes(root Event) (BatchRequest, error) {
	choose := func(name, fallback string, allowed ...string) (string, error) {
		v, ok, err := r.cur.OptionalAttr(root, NamespaceV2, name)
		if err != nil || !ok {
			return fallback, err
		}
		for _, a := range allowed {
			if v == a {
				return v, nil
			}
		}
		return fallback, nil
	}

	var (
		b   BatchRequest
		err error
	)
	if b.RequestID, _, err = r.cur.OptionalAttr(root, NamespaceV2, attrRequestID); err != nil {
		return b, err
	}
	if b.Processing, err = choose("processing", ProcessingSequential, ProcessingSequential, ProcessingParallel); err != nil {
		return b, err
	}
	if b.ResponseOrder, err = choose("responseOrder", ResponseOrderSequential, ResponseOrderSequential, ResponseOrderUnordered); err != nil {
		return b, err
	}
	if b.OnError, err = choose("onError", OnErrorExit, OnErrorExit, OnErrorResume); err != nil {
		return b, err
	}
	return b, nil
}

// Batch returns the batch attributes read at construction.
func (r *V2Reader) Batch() BatchRequest {
	return r.batch
}

// Close releases the underlying stream.
func (r *V2Reader) Close() error {
	r.done = true
	if r.closer != nil {
		return ldap.WrapIO("dsml close", r.closer.Close())
	}
	return nil
}

// Next returns the next request, or io.EOF at the end of the batch.
func (r *V2Reader) Next() (*ldap.Record, error) {
	if r.done {
		return nil, io.EOF
	}

	ev, err := r.cur.NextTag()
	if err != nil {
		return nil, r.fail(err)
	}
	if r.cur.IsEnd(ev, NamespaceV2, elemBatchRequest) {
		r.done = true
		return nil, io.EOF
	}

	var rec *ldap.Record
	switch {
	case r.cur.IsStart(ev, NamespaceV2, elemAddRequest):
		rec, err = r.request(ev, ldap.KindAdd)
	case r.cur.IsStart(ev, NamespaceV2, elemModifyRequest):
		rec, err = r.request(ev, ldap.KindModify)
	case r.cur.IsStart(ev, NamespaceV2, elemDelRequest):
		rec, err = r.request(ev, ldap.KindDelete)
	case r.cur.IsStart(ev, NamespaceV2, elemModDNRequest):
		rec, err = r.request(ev, ldap.KindRename)
	default:
		err = r.cur.unexpected("addRequest, modifyRequest, delRequest or modDNRequest", ev)
	}
	if err != nil {
		return nil, r.fail(err)
	}

	r.records++
	ldap.LogRecordEvent(r.opts.Logger, "dsml_request_read", rec)
	return rec, nil
}

func (r *V2Reader) fail(err error) error {
	r.done = true
	r.opts.Logger.Debug("DSML v2 parse failed", map[string]any{
		"records_read": r.records,
		"error":        err.Error(),
	})
	return err
}

// request reads one request element of the given kind.
func (r *V2Reader) request(start Event, kind ldap.Kind) (*ldap.Record, error) {
	dn, err := r.cur.Attr(start, NamespaceV2, attrDN)
	if err != nil {
		return nil, err
	}

	var rec *ldap.Record
	switch kind {
	case ldap.KindAdd:
		rec = ldap.NewAdd(dn)
	case ldap.KindModify:
		rec = ldap.NewModify(dn)
	case ldap.KindDelete:
		rec = ldap.NewDelete(dn)
	case ldap.KindRename:
		if rec, err = r.rename(start, dn); err != nil {
			return nil, err
		}
	}

	for {
		ev, err := r.cur.NextTag()
		if err != nil {
			return nil, err
		}

		switch {
		case ev.Kind == EndElement && ev.Name.Local == start.Name.Local:
			return rec, nil
		case r.cur.IsStart(ev, NamespaceV2, elemControl):
			c, err := r.control(ev)
			if err != nil {
				return nil, err
			}
			rec.AddControl(c)
		case kind == ldap.KindAdd && r.cur.IsStart(ev, NamespaceV2, elemAttr):
			attr, err := r.attribute(ev, elemAttr)
			if err != nil {
				return nil, err
			}
			if !r.opts.Filters.Accepts(attr.Name) {
				continue
			}
			if err := rec.Add(attr); err != nil {
				return nil, positioned(err, opReadV2, ev)
			}
		case kind == ldap.KindModify && r.cur.IsStart(ev, NamespaceV2, elemModification):
			if err := r.modification(ev, rec); err != nil {
				return nil, err
			}
		default:
			return nil, r.cur.unexpected(r.expectedChild(kind), ev)
		}
	}
}

func (r *V2Reader) expectedChild(kind ldap.Kind) string {
	switch kind {
	case ldap.KindAdd:
		return "<control> or <attr>"
	case ldap.KindModify:
		return "<control> or <modification>"
	default:
		return "<control>"
	}
}

func (r *V2Reader) rename(start Event, dn string) (*ldap.Record, error) {
	newRDN, err := r.cur.Attr(start, NamespaceV2, attrNewRDN)
	if err != nil {
		return nil, err
	}
	newSuperior, _, err := r.cur.OptionalAttr(start, NamespaceV2, attrNewSuperior)
	if err != nil {
		return nil, err
	}

	// xsd default for deleteoldrdn is true.
	deleteOld := true
	raw, ok, err := r.cur.OptionalAttr(start, NamespaceV2, attrDeleteOldRDN)
	if err != nil {
		return nil, err
	}
	if ok {
		if deleteOld, ok = parseBool(raw); !ok {
			return nil, ldap.GrammarError(opReadV2, start.Line, start.Column, "true or false", raw)
		}
	}

	return ldap.NewRename(dn, newRDN, newSuperior, deleteOld), nil
}

func (r *V2Reader) control(start Event) (ldap.Control, error) {
	oid, err := r.cur.Attr(start, NamespaceV2, attrType)
	if err != nil {
		return ldap.Control{}, err
	}
	c := ldap.Control{OID: oid}

	if raw, ok, err := r.cur.OptionalAttr(start, NamespaceV2, attrCriticality); err != nil {
		return ldap.Control{}, err
	} else if ok {
		if c.Critical, ok = parseBool(raw); !ok {
			return ldap.Control{}, ldap.GrammarError(opReadV2, start.Line, start.Column, "true or false", raw)
		}
	}

	for {
		ev, err := r.cur.NextTag()
		if err != nil {
			return ldap.Control{}, err
		}
		switch {
		case r.cur.IsEnd(ev, NamespaceV2, elemControl):
			return c, nil
		case r.cur.IsStart(ev, NamespaceV2, elemControlValue) && c.Value == nil:
			text, err := r.cur.ReadText()
			if err != nil {
				return ldap.Control{}, err
			}
			if c.Value, err = format.DecodeBase64(text); err != nil {
				return ldap.Control{}, positioned(err, opReadV2, ev)
			}
		default:
			return ldap.Control{}, r.cur.unexpected("<"+elemControlValue+">", ev)
		}
	}
}

func (r *V2Reader) modification(start Event, rec *ldap.Record) error {
	opName, _, err := r.cur.OptionalAttr(start, NamespaceV2, attrOperation)
	if err != nil {
		return err
	}
	if strings.TrimSpace(opName) == "" {
		return &ldap.Error{
			Operation: opReadV2,
			Category:  ldap.ErrorCategoryMissingAttribute,
			Line:      start.Line,
			Column:    start.Column,
			Attribute: attrOperation,
			DN:        rec.DN(),
		}
	}
	op, ok := ldap.ParseModOp(opName)
	if !ok {
		return &ldap.Error{
			Operation: opReadV2,
			Category:  ldap.ErrorCategoryUnknownChangeOp,
			Line:      start.Line,
			Column:    start.Column,
			Expected:  "add, delete, replace or increment",
			Found:     opName,
			DN:        rec.DN(),
		}
	}

	attr, err := r.attribute(start, elemModification)
	if err != nil {
		return err
	}
	if !r.opts.Filters.Accepts(attr.Name) {
		return nil
	}
	if err := rec.AddModification(op, attr); err != nil {
		return positioned(err, opReadV2, start)
	}
	return nil
}

// attribute reads the name attribute and value children of an attr or
// modification element.
func (r *V2Reader) attribute(start Event, block string) (*ldap.Attribute, error) {
	name, err := r.cur.Attr(start, NamespaceV2, attrName)
	if err != nil {
		return nil, err
	}
	attr := &ldap.Attribute{Name: name}

	for {
		ev, err := r.cur.NextTag()
		if err != nil {
			return nil, err
		}
		if r.cur.IsEnd(ev, NamespaceV2, block) {
			return attr, nil
		}
		if !r.cur.IsStart(ev, NamespaceV2, elemValue) {
			return nil, r.cur.unexpected("<"+elemValue+">", ev)
		}

		base64 := false
		for _, a := range ev.Attrs {
			switch {
			case (a.Name.Space == NamespaceXSI || a.Name.Space == "xsi") && a.Name.Local == attrType:
				base64 = isBase64Type(a.Value)
			case a.Name.Local == attrEncoding:
				base64 = a.Value == "base64"
			}
		}

		text, err := r.cur.ReadText()
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(name, text, base64, r.opts.Filters)
		if err != nil {
			return nil, positioned(err, opReadV2, ev)
		}
		attr.Add(v)
	}
}
