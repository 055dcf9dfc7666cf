package format

import (
	"strings"
)

// DefaultBinaryAttributes are attributes whose values are raw bytes in common
// directory schemas.
var DefaultBinaryAttributes = []string{
	"audio",
	"authorityRevocationList",
	"cACertificate",
	"certificateRevocationList",
	"crossCertificatePair",
	"deltaRevocationList",
	"jpegPhoto",
	"objectGUID",
	"objectSid",
	"photo",
	"supportedAlgorithms",
	"thumbnailPhoto",
	"userCertificate",
	"userPKCS12",
	"userSMIMECertificate",
}

// Filters holds the binary, exclude and include attribute name sets of one
// reader or writer. Lookups are case-insensitive and whitespace-trimmed.
type Filters struct {
	binary  map[string]struct{}
	exclude map[string]struct{}
	include map[string]struct{}
}

// NewFilters creates empty filter sets.
func NewFilters() *Filters {
	return &Filters{
		binary:  make(map[string]struct{}),
		exclude: make(map[string]struct{}),
		include: make(map[string]struct{}),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func register(set map[string]struct{}, names []string) {
	for _, n := range names {
		if key := normalizeName(n); key != "" {
			set[key] = struct{}{}
		}
	}
}

func unregister(set map[string]struct{}, names []string) {
	for _, n := range names {
		delete(set, normalizeName(n))
	}
}

func contains(set map[string]struct{}, name string) bool {
	_, ok := set[normalizeName(name)]
	return ok
}

// RegisterBinary marks attributes whose values are always treated as bytes.
func (f *Filters) RegisterBinary(names ...string) { register(f.binary, names) }

// UnregisterBinary removes attributes from the binary set.
func (f *Filters) UnregisterBinary(names ...string) { unregister(f.binary, names) }

// RegisterExclude marks attributes that are dropped.
func (f *Filters) RegisterExclude(names ...string) { register(f.exclude, names) }

// UnregisterExclude removes attributes from the exclude set.
func (f *Filters) UnregisterExclude(names ...string) { unregister(f.exclude, names) }

// RegisterInclude restricts output to the given attributes.
func (f *Filters) RegisterInclude(names ...string) { register(f.include, names) }

// UnregisterInclude removes attributes from the include set.
func (f *Filters) UnregisterInclude(names ...string) { unregister(f.include, names) }

// IsBinary reports whether the attribute is in the binary set.
func (f *Filters) IsBinary(name string) bool {
	return f != nil && contains(f.binary, name)
}

// IsExcluded reports whether the attribute is in the exclude set.
func (f *Filters) IsExcluded(name string) bool {
	return f != nil && contains(f.exclude, name)
}

// IsIncluded reports whether the attribute is in the include set.
func (f *Filters) IsIncluded(name string) bool {
	return f != nil && contains(f.include, name)
}

// Accepts reports whether an attribute survives filtering: it is not
// excluded and, when an include set is configured, it is included.
func (f *Filters) Accepts(name string) bool {
	if f == nil {
		return true
	}
	if contains(f.exclude, name) {
		return false
	}
	return len(f.include) == 0 || contains(f.include, name)
}
