// Package ldaptest provides helpers for comparing records in tests.
package ldaptest

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/isometry/dirconv/internal/ldap"
)

// RecordView is the comparable projection of a record.
type RecordView struct {
	Kind         string
	DN           string
	Attributes   []AttributeView
	Mods         []ModView
	Controls     []ldap.Control
	NewRDN       string
	NewSuperior  string
	DeleteOldRDN bool
}

type AttributeView struct {
	Name   string
	Values []ValueView
}

type ValueView struct {
	Data   string
	Binary bool
}

type ModView struct {
	Op        string
	Attribute AttributeView
}

// View projects r for comparison.
func View(r *ldap.Record) RecordView {
	if r == nil {
		return RecordView{}
	}

	v := RecordView{
		Kind:         r.Kind().String(),
		DN:           r.DN(),
		Controls:     r.Controls(),
		NewRDN:       r.NewRDN(),
		NewSuperior:  r.NewSuperior(),
		DeleteOldRDN: r.DeleteOldRDN(),
	}
	for _, a := range r.Attributes() {
		v.Attributes = append(v.Attributes, attributeView(a))
	}
	for _, m := range r.Modifications() {
		v.Mods = append(v.Mods, ModView{Op: m.Op.String(), Attribute: attributeView(m.Attribute)})
	}
	return v
}

func attributeView(a *ldap.Attribute) AttributeView {
	out := AttributeView{Name: a.Name}
	for _, val := range a.Values {
		out.Values = append(out.Values, ValueView{Data: string(val.Bytes()), Binary: val.IsBinary()})
	}
	return out
}

// Diff returns a human-readable difference between two records, empty when
// they are equivalent.
func Diff(want, got *ldap.Record) string {
	return cmp.Diff(View(want), View(got), cmpopts.EquateEmpty())
}

// DiffAll is Diff over record slices.
func DiffAll(want, got []*ldap.Record) string {
	wv := make([]RecordView, len(want))
	for i, r := range want {
		wv[i] = View(r)
	}
	gv := make([]RecordView, len(got))
	for i, r := range got {
		gv[i] = View(r)
	}
	return cmp.Diff(wv, gv, cmpopts.EquateEmpty())
}
