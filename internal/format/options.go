package format

import (
	"fmt"

	"github.com/creasty/defaults"

	"github.com/isometry/dirconv/internal/ldap"
)

// Options configures a reader or writer. Zero fields take the values of
// their default tags.
type Options struct {
	// Separator between attribute name and value in LDIF.
	Separator string `default:":"`

	// FoldWidth is the maximum LDIF physical line length.
	FoldWidth int `default:"77"`

	// NoFold disables LDIF line folding.
	NoFold bool

	// LineEnding terminates every line written.
	LineEnding string `default:"\r\n"`

	// IncludeVersion writes "version: 1" as the LDIF prologue.
	IncludeVersion bool

	// ValuesToFiles spools every LDIF value to <SpoolDir>/<name>.<n>.
	ValuesToFiles bool
	SpoolDir      string `default:"."`

	// Indent is the per-depth indentation of DSML output.
	Indent string `default:"  "`

	// KindAwareRequests makes the DSML v2 writer emit delRequest,
	// modifyRequest and modDNRequest instead of addRequest for every record.
	KindAwareRequests bool

	// RequestID sets the DSML v2 batchRequest requestID.
	RequestID string

	// GenerateRequestID assigns a random requestID when RequestID is empty.
	GenerateRequestID bool

	// NoDefaultBinary leaves DefaultBinaryAttributes out of a freshly
	// created binary set.
	NoDefaultBinary bool

	Filters *Filters
	Logger  ldap.Logger
}

// DefaultOptions returns options with every default applied.
func DefaultOptions() *Options {
	o := &Options{}
	if err := o.applyDefaults(); err != nil {
		panic(err)
	}
	return o
}

func (o *Options) applyDefaults() error {
	if err := defaults.Set(o); err != nil {
		return fmt.Errorf("failed to apply option defaults: %w", err)
	}
	if o.Filters == nil {
		o.Filters = NewFilters()
		if !o.NoDefaultBinary {
			o.Filters.RegisterBinary(DefaultBinaryAttributes...)
		}
	}
	if o.Logger == nil {
		o.Logger = ldap.NopLogger{}
	}
	return nil
}

// Resolve returns a copy of o with defaults applied; nil yields DefaultOptions.
func Resolve(o *Options) (*Options, error) {
	if o == nil {
		return DefaultOptions(), nil
	}

	c := *o
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	if c.FoldWidth < 2 {
		return nil, fmt.Errorf("fold width must be at least 2, got %d", c.FoldWidth)
	}
	return &c, nil
}
