// Package format holds the contracts and utilities shared by every
// interchange engine: reader and writer interfaces, attribute filters, the
// byte-safety rule, base64 helpers and value dereferencing.
package format

import (
	"errors"
	"io"

	"github.com/isometry/dirconv/internal/ldap"
)

// Reader yields records one at a time. Next returns io.EOF once the input
// is exhausted; any other error is fatal for the stream.
type Reader interface {
	Next() (*ldap.Record, error)
	Close() error
}

// Writer serialises records. PrintPrologue and PrintEpilogue bracket the
// whole stream.
type Writer interface {
	ldap.StreamWriter
	PrintPrologue() error
	PrintEpilogue() error
	Close() error
}

// RecordWriter is implemented by writers that render change records in full
// (controls, change types, modifications).
type RecordWriter interface {
	WriteRecord(r *ldap.Record) error
}

// WriteRecord writes r through the writer's record support when available
// and through r.ToStream otherwise.
func WriteRecord(w Writer, r *ldap.Record) error {
	if rw, ok := w.(RecordWriter); ok {
		return rw.WriteRecord(r)
	}
	return r.ToStream(w)
}

// ReadAll drains a reader.
func ReadAll(r Reader) ([]*ldap.Record, error) {
	var out []*ldap.Record
	for {
		rec, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, rec)
	}
}
