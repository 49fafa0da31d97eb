// Package errdefs defines the structured error type shared by every envswitch
// component. Callers branch on the Kind rather than on message text.
package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error so the CLI layer can render an actionable message.
type Kind string

const (
	KindInvalidName        Kind = "invalid_name"
	KindInvalidVarName     Kind = "invalid_var_name"
	KindValueTooLong       Kind = "value_too_long"
	KindInvalidValue       Kind = "invalid_value"
	KindTooManyVariables   Kind = "too_many_variables"
	KindDescriptionTooLong Kind = "description_too_long"
	KindNotFound           Kind = "not_found"
	KindAlreadyExists      Kind = "already_exists"
	KindCorruptFile        Kind = "corrupt_file"
	KindIOError            Kind = "io_error"
	KindFormatError        Kind = "format_error"
	KindUnknownFormat      Kind = "unknown_format"
	KindUnknownAlias       Kind = "unknown_alias"
	KindBackupFailed       Kind = "backup_failed"
)

// Sentinels usable with errors.Is. Matching compares Kind only.
var (
	ErrInvalidName        = &Error{Kind: KindInvalidName}
	ErrInvalidVarName     = &Error{Kind: KindInvalidVarName}
	ErrValueTooLong       = &Error{Kind: KindValueTooLong}
	ErrInvalidValue       = &Error{Kind: KindInvalidValue}
	ErrTooManyVariables   = &Error{Kind: KindTooManyVariables}
	ErrDescriptionTooLong = &Error{Kind: KindDescriptionTooLong}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrCorruptFile        = &Error{Kind: KindCorruptFile}
	ErrIO                 = &Error{Kind: KindIOError}
	ErrFormat             = &Error{Kind: KindFormatError}
	ErrUnknownFormat      = &Error{Kind: KindUnknownFormat}
	ErrUnknownAlias       = &Error{Kind: KindUnknownAlias}
	ErrBackupFailed       = &Error{Kind: KindBackupFailed}
)

// Error is a classified error with context.
type Error struct {
	// Kind is the error classification.
	Kind Kind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Alias is the configuration alias involved, if any.
	Alias string `json:"alias,omitempty"`

	// Field names the offending variable key or document field.
	Field string `json:"field,omitempty"`

	// Line is the 1-based input line for decode errors, 0 when unknown.
	Line int `json:"line,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if b.Len() == 0 {
		b.WriteString(string(e.Kind))
	}

	var ctx []string
	if e.Alias != "" {
		ctx = append(ctx, "alias="+e.Alias)
	}
	if e.Field != "" {
		ctx = append(ctx, "field="+e.Field)
	}
	if e.Line > 0 {
		ctx = append(ctx, fmt.Sprintf("line=%d", e.Line))
	}
	if e.Operation != "" {
		ctx = append(ctx, "operation="+e.Operation)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Hint returns a short suggestion the CLI can print under the error.
func (e *Error) Hint() string {
	switch e.Kind {
	case KindInvalidName:
		return "names may contain only letters, numbers, hyphens and underscores, and must not start with a hyphen"
	case KindInvalidVarName:
		return "variable names must start with a letter or underscore and contain only letters, numbers and underscores"
	case KindInvalidValue:
		return "values and descriptions must be valid UTF-8 text"
	case KindNotFound, KindUnknownAlias:
		return "run 'envswitch list' to see available configurations"
	case KindAlreadyExists:
		return "choose a different name, or import with --merge or --force"
	case KindCorruptFile:
		return "restore a backup with 'envswitch backup restore' or move the file aside to start fresh"
	case KindFormatError:
		return "fix the reported line or field and try again"
	case KindUnknownFormat:
		return "pass --format json|env|yaml or use a .json, .env or .yaml extension"
	case KindBackupFailed:
		return "check permissions on the configuration directory; nothing was imported"
	default:
		return ""
	}
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFound creates a not-found error for an alias.
func NotFound(alias string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("configuration %q not found", alias),
		Alias:   alias,
	}
}

// AlreadyExists creates an already-exists error for an alias.
func AlreadyExists(alias string) *Error {
	return &Error{
		Kind:    KindAlreadyExists,
		Message: fmt.Sprintf("configuration %q already exists", alias),
		Alias:   alias,
	}
}

// WithAlias adds alias context to an error.
func (e *Error) WithAlias(alias string) *Error {
	e.Alias = alias
	return e
}

// WithField adds field context to an error.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithLine adds input line context to an error.
func (e *Error) WithLine(line int) *Error {
	e.Line = line
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// KindOf returns the Kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound returns true if the error is a not-found error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsCorrupt returns true if the error reports an unreadable store document.
func IsCorrupt(err error) bool {
	return KindOf(err) == KindCorruptFile
}

// IsValidation returns true if the error was raised by input validation.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindInvalidName, KindInvalidVarName, KindValueTooLong, KindInvalidValue,
		KindTooManyVariables, KindDescriptionTooLong:
		return true
	}
	return false
}

// HintFor returns the hint of the first *Error in the chain.
func HintFor(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Hint()
	}
	return ""
}
