package ldap

import (
	"strings"
	"unicode/utf8"
)

// Kind identifies the directory operation a Record represents.
type Kind int

const (
	KindContent Kind = iota // Plain entry content, no change type
	KindAdd
	KindDelete
	KindModify
	KindRename
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindAdd:
		return "add"
	case KindDelete:
		return "delete"
	case KindModify:
		return "modify"
	case KindRename:
		return "moddn"
	default:
		return "unknown"
	}
}

// Attribute name conventions shared by every engine.
const (
	AttributeDN          = "dn"
	AttributeObjectClass = "objectClass"
)

// Value is a single attribute value, either text or a raw byte sequence.
type Value struct {
	data   []byte
	binary bool
}

// TextValue creates a text value.
func TextValue(s string) Value {
	return Value{data: []byte(s)}
}

// BinaryValue creates a binary value. The bytes are copied.
func BinaryValue(b []byte) Value {
	return Value{data: append([]byte(nil), b...), binary: true}
}

// String returns the value as text.
func (v Value) String() string {
	return string(v.data)
}

// Bytes returns the raw value bytes.
func (v Value) Bytes() []byte {
	return v.data
}

// IsBinary reports whether the value was created from raw bytes.
func (v Value) IsBinary() bool {
	return v.binary
}

// IsText reports whether the value can be rendered as UTF-8 text.
func (v Value) IsText() bool {
	return !v.binary && utf8.Valid(v.data)
}

// Attribute is a named, possibly multi-valued attribute.
type Attribute struct {
	Name   string
	Values []Value
}

// NewAttribute creates a text attribute.
func NewAttribute(name string, values ...string) *Attribute {
	attr := &Attribute{Name: name}
	for _, v := range values {
		attr.Values = append(attr.Values, TextValue(v))
	}
	return attr
}

// NewBinaryAttribute creates an attribute holding binary values.
func NewBinaryAttribute(name string, values ...[]byte) *Attribute {
	attr := &Attribute{Name: name}
	for _, v := range values {
		attr.Values = append(attr.Values, BinaryValue(v))
	}
	return attr
}

// Add appends values to the attribute.
func (a *Attribute) Add(values ...Value) {
	a.Values = append(a.Values, values...)
}

// Strings returns every value as text.
func (a *Attribute) Strings() []string {
	out := make([]string, len(a.Values))
	for i, v := range a.Values {
		out[i] = v.String()
	}
	return out
}

// Is reports whether the attribute has the given name, ignoring case and
// surrounding whitespace.
func (a *Attribute) Is(name string) bool {
	return strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(name))
}

func (a *Attribute) clone() *Attribute {
	return &Attribute{Name: a.Name, Values: append([]Value(nil), a.Values...)}
}

// ModOp is the operation of a single modification item.
type ModOp int

const (
	ModAdd ModOp = iota
	ModDelete
	ModReplace
	ModIncrement
)

func (op ModOp) String() string {
	switch op {
	case ModAdd:
		return "add"
	case ModDelete:
		return "delete"
	case ModReplace:
		return "replace"
	case ModIncrement:
		return "increment"
	default:
		return "unknown"
	}
}

// ParseModOp parses a modification keyword (case-insensitive).
func ParseModOp(s string) (ModOp, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add":
		return ModAdd, true
	case "delete":
		return ModDelete, true
	case "replace":
		return ModReplace, true
	case "increment":
		return ModIncrement, true
	}
	return 0, false
}

// Modification is one (operation, attribute) pair of a Modify record.
type Modification struct {
	Op        ModOp
	Attribute *Attribute
}

// Control is a protocol extension attached to an operation.
type Control struct {
	OID      string
	Critical bool
	Value    []byte // nil when the control carries no value
}

// HasValue reports whether the control carries a value.
func (c Control) HasValue() bool {
	return c.Value != nil
}

// StreamWriter is the narrow sink a Record drives in ToStream.
type StreamWriter interface {
	PrintEntryStart(dn string) error
	PrintAttribute(attr *Attribute) error
	PrintEntryEnd(dn string) error
}

// Record is one directory entry or change operation.
type Record struct {
	kind     Kind
	dn       string
	attrs    []*Attribute
	index    map[string]int
	mods     []Modification
	controls []Control

	newRDN       string
	newSuperior  string
	deleteOldRDN bool
}

func newRecord(kind Kind, dn string) *Record {
	return &Record{kind: kind, dn: dn, index: make(map[string]int)}
}

// NewContent creates a plain content record.
func NewContent(dn string) *Record {
	return newRecord(KindContent, dn)
}

// NewAdd creates an add change record.
func NewAdd(dn string) *Record {
	return newRecord(KindAdd, dn)
}

// NewDelete creates a delete change record. It never carries attributes.
func NewDelete(dn string) *Record {
	return newRecord(KindDelete, dn)
}

// NewModify creates a modify change record.
func NewModify(dn string) *Record {
	return newRecord(KindModify, dn)
}

// NewRename creates a rename (moddn) change record.
func NewRename(dn, newRDN, newSuperior string, deleteOldRDN bool) *Record {
	r := newRecord(KindRename, dn)
	r.newRDN = newRDN
	r.newSuperior = newSuperior
	r.deleteOldRDN = deleteOldRDN
	return r
}

// Kind returns the record kind.
func (r *Record) Kind() Kind {
	return r.kind
}

// DN returns the distinguished name.
func (r *Record) DN() string {
	return r.dn
}

// SetDN sets the distinguished name of an incrementally built record.
func (r *Record) SetDN(dn string) {
	r.dn = dn
}

// NewRDN returns the new relative name of a rename record.
func (r *Record) NewRDN() string {
	return r.newRDN
}

// NewSuperior returns the new parent of a rename record, empty if unchanged.
func (r *Record) NewSuperior() string {
	return r.newSuperior
}

// DeleteOldRDN reports whether the old RDN value is removed on rename.
func (r *Record) DeleteOldRDN() bool {
	return r.deleteOldRDN
}

func (r *Record) carriesContent() bool {
	return r.kind == KindContent || r.kind == KindAdd
}

// Add appends the attribute's values to the same-named attribute, or inserts
// the attribute at the end when the record has none by that name.
func (r *Record) Add(attr *Attribute) error {
	if attr == nil {
		return nil
	}

	if !r.carriesContent() {
		return &Error{
			Operation: "record add",
			Category:  ErrorCategoryProtocol,
			Message:   "content mutation not supported for " + r.kind.String() + " records",
			Attribute: attr.Name,
			DN:        r.dn,
		}
	}

	name := strings.TrimSpace(attr.Name)
	if name == "" {
		return &Error{
			Operation: "record add",
			Category:  ErrorCategoryProtocol,
			Message:   "attribute name cannot be empty",
			DN:        r.dn,
		}
	}
	if strings.EqualFold(name, AttributeDN) {
		return &Error{
			Operation: "record add",
			Category:  ErrorCategoryProtocol,
			Message:   "dn is carried by the record, not as an attribute",
			Attribute: attr.Name,
			DN:        r.dn,
		}
	}

	key := strings.ToLower(name)
	if i, ok := r.index[key]; ok {
		r.attrs[i].Add(attr.Values...)
		return nil
	}

	r.index[key] = len(r.attrs)
	r.attrs = append(r.attrs, attr.clone())
	return nil
}

// Attribute returns the attribute with the given name, or nil.
func (r *Record) Attribute(name string) *Attribute {
	if i, ok := r.index[strings.ToLower(strings.TrimSpace(name))]; ok {
		return r.attrs[i]
	}
	return nil
}

// Attributes returns the attributes in insertion order.
func (r *Record) Attributes() []*Attribute {
	return r.attrs
}

// Len returns the number of distinct attributes.
func (r *Record) Len() int {
	return len(r.attrs)
}

// AddModification appends a modification item to a Modify record.
func (r *Record) AddModification(op ModOp, attr *Attribute) error {
	if r.kind != KindModify {
		return &Error{
			Operation: "record modify",
			Category:  ErrorCategoryProtocol,
			Message:   "modifications are only supported for modify records",
			DN:        r.dn,
		}
	}
	if attr == nil || strings.TrimSpace(attr.Name) == "" {
		return &Error{
			Operation: "record modify",
			Category:  ErrorCategoryMissingAttribute,
			Message:   "modification requires an attribute",
			DN:        r.dn,
		}
	}
	r.mods = append(r.mods, Modification{Op: op, Attribute: attr.clone()})
	return nil
}

// Modifications returns the modification items in replay order.
func (r *Record) Modifications() []Modification {
	return r.mods
}

// Controls returns the attached controls in order.
func (r *Record) Controls() []Control {
	return r.controls
}

// SetControls replaces the control list.
func (r *Record) SetControls(controls []Control) {
	r.controls = append([]Control(nil), controls...)
}

// AddControl appends a control.
func (r *Record) AddControl(c Control) {
	r.controls = append(r.controls, c)
}

// OrderedAttributes returns the attributes in presentation order: objectClass
// first, then the naming attribute of the leftmost RDN, then the rest in
// stored order.
func (r *Record) OrderedAttributes() []*Attribute {
	if len(r.attrs) == 0 {
		return nil
	}

	out := make([]*Attribute, 0, len(r.attrs))
	used := make([]bool, len(r.attrs))

	take := func(name string) {
		if name == "" {
			return
		}
		if i, ok := r.index[strings.ToLower(name)]; ok && !used[i] {
			used[i] = true
			out = append(out, r.attrs[i])
		}
	}

	take(AttributeObjectClass)
	take(NamingAttributeType(r.dn))

	for i, attr := range r.attrs {
		if !used[i] {
			out = append(out, attr)
		}
	}
	return out
}

// ToStream drives a writer with this record's content.
func (r *Record) ToStream(w StreamWriter) error {
	if err := w.PrintEntryStart(r.dn); err != nil {
		return err
	}
	for _, attr := range r.OrderedAttributes() {
		if err := w.PrintAttribute(attr); err != nil {
			return err
		}
	}
	return w.PrintEntryEnd(r.dn)
}
