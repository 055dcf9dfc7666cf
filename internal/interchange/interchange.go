package interchange

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/isometry/dirconv/internal/dsml"
	"github.com/isometry/dirconv/internal/format"
	"github.com/isometry/dirconv/internal/jsonfmt"
	"github.com/isometry/dirconv/internal/ldap"
	"github.com/isometry/dirconv/internal/ldif"
)

// NewReader returns the reader for desc over r. If r is an io.Closer it is
// closed by the reader's Close. On error the returned reader is nil.
func NewReader(desc Descriptor, r io.Reader, opts *format.Options) (format.Reader, error) {
	d, err := desc.Normalize()
	if err != nil {
		return nil, err
	}

	var rd format.Reader
	switch d.Format {
	case LDIF:
		rd, err = ldif.NewReader(r, opts)
	case DSML:
		if d.Version == 2 {
			rd, err = dsml.NewV2Reader(r, opts)
		} else {
			rd, err = dsml.NewV1Reader(r, opts)
		}
	default:
		rd = jsonfmt.NewReader(r)
	}
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// NewWriter returns the writer for desc over w. If w is an io.Closer it is
// closed by the writer's Close. On error the returned writer is nil.
func NewWriter(desc Descriptor, w io.Writer, opts *format.Options) (format.Writer, error) {
	d, err := desc.Normalize()
	if err != nil {
		return nil, err
	}

	var wr format.Writer
	switch d.Format {
	case LDIF:
		wr, err = ldif.NewWriter(w, opts)
	case DSML:
		wr, err = dsml.NewWriter(w, d.Version, opts)
	default:
		wr, err = jsonfmt.NewWriter(w, opts)
	}
	if err != nil {
		return nil, err
	}
	return wr, nil
}

// Open opens path and returns a reader over it.
func Open(desc Descriptor, path string, opts *format.Options) (format.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ldap.WrapIO("open "+path, err)
	}

	r, err := NewReader(desc, f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// Create creates or truncates path and returns a writer over it.
func Create(desc Descriptor, path string, opts *format.Options) (format.Writer, error) {
	if _, err := desc.Normalize(); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, ldap.WrapIO("create "+path, err)
	}

	w, err := NewWriter(desc, f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// Stats counts the records a conversion copied.
type Stats struct {
	Records int
	ByKind  map[ldap.Kind]int
}

func (s *Stats) add(r *ldap.Record) {
	if s.ByKind == nil {
		s.ByKind = make(map[ldap.Kind]int)
	}
	s.Records++
	s.ByKind[r.Kind()]++
}

// Fields renders the counts as log fields.
func (s Stats) Fields() map[string]any {
	fields := map[string]any{"records": s.Records}
	for kind, n := range s.ByKind {
		fields[kind.String()] = n
	}
	return fields
}

type convertConfig struct {
	logger ldap.Logger
}

// ConvertOption configures Convert.
type ConvertOption func(*convertConfig)

// WithLogger logs the conversion through l.
func WithLogger(l ldap.Logger) ConvertOption {
	return func(c *convertConfig) {
		c.logger = l
	}
}

// Convert copies every record of r to w between the writer's prologue and
// epilogue. It stops at the first error, or when ctx is done, without
// writing the epilogue. Neither r nor w is closed.
func Convert(ctx context.Context, r format.Reader, w format.Writer, opts ...ConvertOption) (Stats, error) {
	cfg := convertConfig{logger: ldap.NopLogger{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	var stats Stats
	err := ldap.LogOperation(cfg.logger, "convert", nil, func() error {
		if err := w.PrintPrologue(); err != nil {
			return err
		}

		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}

			if err := format.WriteRecord(w, rec); err != nil {
				return err
			}
			stats.add(rec)
		}

		return w.PrintEpilogue()
	})
	if err != nil {
		return stats, err
	}

	cfg.logger.Info("Conversion complete", stats.Fields())
	return stats, nil
}
