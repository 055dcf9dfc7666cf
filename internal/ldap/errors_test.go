package ldap

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "category only",
			err:      &Error{Category: ErrorCategoryIO},
			expected: "io_failure",
		},
		{
			name: "grammar with position",
			err: &Error{
				Operation: "ldif read",
				Category:  ErrorCategoryGrammar,
				Line:      3,
				Column:    5,
				Expected:  "attribute separator",
				Found:     `"cn"`,
			},
			expected: `ldif read: grammar_violation at line 3, column 5 - expected attribute separator, found "cn"`,
		},
		{
			name: "line without column",
			err: &Error{
				Operation: "ldif read",
				Category:  ErrorCategoryMissingAttribute,
				Line:      7,
				Attribute: "newrdn",
				DN:        "cn=a,dc=com",
			},
			expected: "ldif read: missing_attribute at line 7 - attribute: newrdn - DN: cn=a,dc=com",
		},
		{
			name: "expected without found",
			err: &Error{
				Category: ErrorCategoryGrammar,
				Expected: "<dsml:entry>",
			},
			expected: "grammar_violation - expected <dsml:entry>, found nothing",
		},
		{
			name: "cause differing from message",
			err: &Error{
				Operation: "dsml read",
				Category:  ErrorCategoryIO,
				Message:   "reading input",
				Cause:     io.ErrUnexpectedEOF,
			},
			expected: "dsml read: io_failure - reading input - unexpected EOF",
		},
		{
			name: "cause equal to message",
			err: &Error{
				Category: ErrorCategoryIO,
				Message:  "unexpected EOF",
				Cause:    io.ErrUnexpectedEOF,
			},
			expected: "io_failure - unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorSentinels(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		sentinel error
	}{
		{ErrorCategoryGrammar, ErrGrammarViolation},
		{ErrorCategoryMissingAttribute, ErrMissingAttribute},
		{ErrorCategoryDuplicate, ErrDuplicateAttribute},
		{ErrorCategoryUnsupportedVer, ErrUnsupportedVersion},
		{ErrorCategoryUnknownChangeOp, ErrUnknownChangeOperation},
		{ErrorCategoryProtocol, ErrProtocolViolation},
		{ErrorCategoryMalformedRef, ErrMalformedReference},
		{ErrorCategoryIO, ErrIOFailure},
		{ErrorCategoryUnsupportedFormat, ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &Error{Category: tt.category})

			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.category, GetErrorCategory(err))

			for _, other := range tests {
				if other.category != tt.category {
					assert.NotErrorIs(t, err, other.sentinel)
				}
			}
		})
	}

	assert.Equal(t, ErrorCategoryUnknown, GetErrorCategory(nil))
	assert.Equal(t, ErrorCategoryUnknown, GetErrorCategory(errors.New("plain")))
}

func TestErrorHelperFunctions(t *testing.T) {
	assert.True(t, IsGrammarViolation(GrammarError("op", 1, 1, "a", "b")))
	assert.True(t, IsMissingAttribute(&Error{Category: ErrorCategoryMissingAttribute}))
	assert.True(t, IsProtocolViolation(NewError("op", ErrorCategoryProtocol, "bad %s", "thing")))
	assert.True(t, IsIOFailure(WrapIO("op", io.ErrClosedPipe)))

	assert.False(t, IsGrammarViolation(errors.New("plain")))
	assert.False(t, IsIOFailure(nil))
}

func TestNewError(t *testing.T) {
	err := NewError("record add", ErrorCategoryProtocol, "cannot add %q", "dn")

	assert.Equal(t, "record add", err.Operation)
	assert.Equal(t, `cannot add "dn"`, err.Message)
	assert.Equal(t, ErrorCategoryProtocol, err.GetCategory())
}

func TestErrorAt(t *testing.T) {
	orig := &Error{Category: ErrorCategoryMissingAttribute, Attribute: "dn"}
	moved := orig.At(4, 2)

	assert.Equal(t, 4, moved.Line)
	assert.Equal(t, 2, moved.Column)
	assert.Equal(t, "dn", moved.Attribute)
	assert.Zero(t, orig.Line)
}

func TestWrapIO(t *testing.T) {
	assert.NoError(t, WrapIO("op", nil))

	wrapped := WrapIO("ldif write", io.ErrShortWrite)
	var ie *Error
	require.ErrorAs(t, wrapped, &ie)
	assert.Equal(t, "ldif write", ie.Operation)
	assert.Equal(t, ErrorCategoryIO, ie.Category)
	assert.ErrorIs(t, wrapped, io.ErrShortWrite)

	named := &Error{Operation: "first", Category: ErrorCategoryGrammar}
	assert.Same(t, named, WrapIO("second", named))
	assert.Equal(t, "first", named.Operation)
}

func TestWrapIODoesNotMutate(t *testing.T) {
	tests := []struct {
		name string
		wrap func(*Error) error
	}{
		{name: "bare", wrap: func(e *Error) error { return e }},
		{name: "wrapped", wrap: func(e *Error) error { return fmt.Errorf("xml: %w", e) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &Error{Category: ErrorCategoryUnsupportedFormat, Message: "bad charset"}

			got := WrapIO("dsml read", tt.wrap(inner))
			var ie *Error
			require.ErrorAs(t, got, &ie)
			assert.NotSame(t, inner, ie)
			assert.Equal(t, "dsml read", ie.Operation)
			assert.Equal(t, "bad charset", ie.Message)
			assert.ErrorIs(t, got, ErrUnsupportedFormat)

			assert.Empty(t, inner.Operation, "caller's error is left untouched")

			again := WrapIO("ldif read", tt.wrap(inner))
			assert.Equal(t, "ldif read", again.(*Error).Operation)
		})
	}
}

func TestResultCode(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected uint16
	}{
		{ErrorCategoryGrammar, ldap.LDAPResultProtocolError},
		{ErrorCategoryUnknownChangeOp, ldap.LDAPResultProtocolError},
		{ErrorCategoryMissingAttribute, ldap.LDAPResultObjectClassViolation},
		{ErrorCategoryDuplicate, ldap.LDAPResultObjectClassViolation},
		{ErrorCategoryUnsupportedVer, ldap.LDAPResultNotSupported},
		{ErrorCategoryUnsupportedFormat, ldap.LDAPResultNotSupported},
		{ErrorCategoryProtocol, ldap.LDAPResultUnwillingToPerform},
		{ErrorCategoryMalformedRef, ldap.LDAPResultInvalidAttributeSyntax},
		{ErrorCategoryIO, ldap.LDAPResultLocalError},
		{ErrorCategoryUnknown, ldap.LDAPResultOther},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.expected, (&Error{Category: tt.category}).ResultCode())
		})
	}
}
