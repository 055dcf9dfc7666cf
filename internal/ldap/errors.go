package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory represents different categories of interchange errors.
type ErrorCategory string

const (
	ErrorCategoryGrammar           ErrorCategory = "grammar_violation"
	ErrorCategoryMissingAttribute  ErrorCategory = "missing_attribute"
	ErrorCategoryDuplicate         ErrorCategory = "duplicate_attribute"
	ErrorCategoryUnsupportedVer    ErrorCategory = "unsupported_version"
	ErrorCategoryUnknownChangeOp   ErrorCategory = "unknown_change_operation"
	ErrorCategoryProtocol          ErrorCategory = "protocol_violation"
	ErrorCategoryMalformedRef      ErrorCategory = "malformed_reference"
	ErrorCategoryIO                ErrorCategory = "io_failure"
	ErrorCategoryUnsupportedFormat ErrorCategory = "unsupported_format"
	ErrorCategoryUnknown           ErrorCategory = "unknown"
)

// Sentinel errors, one per category. An *Error matches the sentinel of its
// category through errors.Is.
var (
	ErrGrammarViolation       = errors.New("grammar violation")
	ErrMissingAttribute       = errors.New("missing attribute")
	ErrDuplicateAttribute     = errors.New("duplicate attribute")
	ErrUnsupportedVersion     = errors.New("unsupported version")
	ErrUnknownChangeOperation = errors.New("unknown change operation")
	ErrProtocolViolation      = errors.New("protocol violation")
	ErrMalformedReference     = errors.New("malformed reference")
	ErrIOFailure              = errors.New("i/o failure")
	ErrUnsupportedFormat      = errors.New("unsupported format")
)

var categorySentinels = map[ErrorCategory]error{
	ErrorCategoryGrammar:           ErrGrammarViolation,
	ErrorCategoryMissingAttribute:  ErrMissingAttribute,
	ErrorCategoryDuplicate:         ErrDuplicateAttribute,
	ErrorCategoryUnsupportedVer:    ErrUnsupportedVersion,
	ErrorCategoryUnknownChangeOp:   ErrUnknownChangeOperation,
	ErrorCategoryProtocol:          ErrProtocolViolation,
	ErrorCategoryMalformedRef:      ErrMalformedReference,
	ErrorCategoryIO:                ErrIOFailure,
	ErrorCategoryUnsupportedFormat: ErrUnsupportedFormat,
}

// Error provides positioned error information for parse and write operations.
type Error struct {
	Operation string        // The operation that failed (e.g. "ldif read")
	Category  ErrorCategory // Error category
	Line      int           // 1-based input line, 0 when unknown
	Column    int           // 1-based input column, 0 when unknown
	Expected  string        // Expected token for grammar violations
	Found     string        // Token actually found
	Attribute string        // Attribute involved (if applicable)
	DN        string        // DN of the record being processed (if known)
	Message   string        // Human-readable message
	Cause     error         // Underlying error
}

func (e *Error) Error() string {
	var parts []string

	head := string(e.Category)
	if e.Operation != "" {
		head = fmt.Sprintf("%s: %s", e.Operation, e.Category)
	}
	if e.Line > 0 {
		if e.Column > 0 {
			head = fmt.Sprintf("%s at line %d, column %d", head, e.Line, e.Column)
		} else {
			head = fmt.Sprintf("%s at line %d", head, e.Line)
		}
	}
	parts = append(parts, head)

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Expected != "" || e.Found != "" {
		parts = append(parts, fmt.Sprintf("expected %s, found %s", orNothing(e.Expected), orNothing(e.Found)))
	}

	if e.Attribute != "" {
		parts = append(parts, fmt.Sprintf("attribute: %s", e.Attribute))
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("DN: %s", e.DN))
	}

	if e.Cause != nil && e.Cause.Error() != e.Message {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, " - ")
}

func orNothing(s string) string {
	if s == "" {
		return "nothing"
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel error of e's category.
func (e *Error) Is(target error) bool {
	sentinel, ok := categorySentinels[e.Category]
	return ok && sentinel == target
}

// GetCategory returns the error category.
func (e *Error) GetCategory() ErrorCategory {
	return e.Category
}

// At returns a copy of the error positioned at the given line and column.
func (e *Error) At(line, column int) *Error {
	c := *e
	c.Line = line
	c.Column = column
	return &c
}

// ResultCode maps the error category onto the closest LDAP result code.
func (e *Error) ResultCode() uint16 {
	switch e.Category {
	case ErrorCategoryGrammar, ErrorCategoryUnknownChangeOp:
		return ldap.LDAPResultProtocolError
	case ErrorCategoryMissingAttribute, ErrorCategoryDuplicate:
		return ldap.LDAPResultObjectClassViolation
	case ErrorCategoryUnsupportedVer, ErrorCategoryUnsupportedFormat:
		return ldap.LDAPResultNotSupported
	case ErrorCategoryProtocol:
		return ldap.LDAPResultUnwillingToPerform
	case ErrorCategoryMalformedRef:
		return ldap.LDAPResultInvalidAttributeSyntax
	case ErrorCategoryIO:
		return ldap.LDAPResultLocalError
	default:
		return ldap.LDAPResultOther
	}
}

// NewError creates a new categorised error.
func NewError(operation string, category ErrorCategory, format string, args ...any) *Error {
	return &Error{
		Operation: operation,
		Category:  category,
		Message:   fmt.Sprintf(format, args...),
	}
}

// GrammarError creates a grammar violation describing the expected and found tokens.
func GrammarError(operation string, line, column int, expected, found string) *Error {
	return &Error{
		Operation: operation,
		Category:  ErrorCategoryGrammar,
		Line:      line,
		Column:    column,
		Expected:  expected,
		Found:     found,
	}
}

// WrapIO wraps an underlying stream error so raw I/O errors never leak. An
// *Error already in the chain is returned, as a copy naming operation when
// it names none.
func WrapIO(operation string, err error) error {
	if err == nil {
		return nil
	}

	var ie *Error
	if errors.As(err, &ie) {
		if ie.Operation != "" {
			return ie
		}
		c := *ie
		c.Operation = operation
		return &c
	}

	return &Error{
		Operation: operation,
		Category:  ErrorCategoryIO,
		Message:   err.Error(),
		Cause:     err,
	}
}

// GetErrorCategory returns the category of an error.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var ie *Error
	if errors.As(err, &ie) {
		return ie.GetCategory()
	}

	return ErrorCategoryUnknown
}

// IsGrammarViolation checks if an error is a structural mismatch.
func IsGrammarViolation(err error) bool {
	return errors.Is(err, ErrGrammarViolation)
}

// IsMissingAttribute checks if an error reports an absent required attribute.
func IsMissingAttribute(err error) bool {
	return errors.Is(err, ErrMissingAttribute)
}

// IsProtocolViolation checks if an error reports an illegal record mutation.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}

// IsIOFailure checks if an error wraps an underlying stream failure.
func IsIOFailure(err error) bool {
	return errors.Is(err, ErrIOFailure)
}
