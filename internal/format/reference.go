package format

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/isometry/dirconv/internal/ldap"
)

// Dereference resolves an external value reference (LDIF "name:< url").
// Only file URLs are supported; anything else is a malformed reference.
func Dereference(rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ldap.Error{
			Operation: "dereference",
			Category:  ldap.ErrorCategoryMalformedRef,
			Found:     rawURL,
			Message:   "unparsable URL",
			Cause:     err,
		}
	}

	if !strings.EqualFold(u.Scheme, "file") {
		return nil, &ldap.Error{
			Operation: "dereference",
			Category:  ldap.ErrorCategoryMalformedRef,
			Expected:  "file URL",
			Found:     rawURL,
		}
	}

	path := u.Path
	if path == "" {
		// file:relative/path
		path = u.Opaque
	}
	if path == "" {
		return nil, &ldap.Error{
			Operation: "dereference",
			Category:  ldap.ErrorCategoryMalformedRef,
			Message:   "file URL has no path",
			Found:     rawURL,
		}
	}

	data, err := os.ReadFile(filepath.Clean(filepath.FromSlash(path))) // #nosec G304 - references come from the document being imported
	if err != nil {
		return nil, ldap.WrapIO("dereference", err)
	}
	return data, nil
}

// FileURL renders an absolute file URL for path.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
