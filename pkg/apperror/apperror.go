// Package apperror defines the failure kinds surfaced by the bank connect client.
//
// Every error returned by the client carries exactly one Kind. Callers match on
// kinds with errors.Is against the sentinel values below, e.g.
//
//	if errors.Is(err, apperror.ErrEntityNotFound) { ... }
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidArgument is a local precondition violation on a caller supplied value.
	KindInvalidArgument
	// KindNotYetUploaded means no statement or link id has been established for the entity.
	KindNotYetUploaded
	// KindEntityNotFound means the remote service does not know the identifier.
	KindEntityNotFound
	// KindExtractionFailed means the remote service reported extraction failure.
	KindExtractionFailed
	// KindServiceTimeout means the retry or poll budget ran out without a definitive answer.
	KindServiceTimeout
	// KindServiceFailed is an unclassified non-success response or transport failure.
	KindServiceFailed
	// KindFormatChanged means a success response is missing expected fields.
	KindFormatChanged
	KindInvalidBankName
	KindPasswordIncorrect
	KindUnparsablePDF
	KindCannotIdentifyBank
	KindFileProcessFailed
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindInvalidArgument:    "invalid_argument",
	KindNotYetUploaded:     "not_yet_uploaded",
	KindEntityNotFound:     "entity_not_found",
	KindExtractionFailed:   "extraction_failed",
	KindServiceTimeout:     "service_timeout",
	KindServiceFailed:      "service_failed",
	KindFormatChanged:      "format_changed",
	KindInvalidBankName:    "invalid_bank_name",
	KindPasswordIncorrect:  "password_incorrect",
	KindUnparsablePDF:      "unparsable_pdf",
	KindCannotIdentifyBank: "cannot_identify_bank",
	KindFileProcessFailed:  "file_process_failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var defaultMessages = map[Kind]string{
	KindInvalidArgument:    "invalid argument",
	KindNotYetUploaded:     "no statement uploaded yet, upload a statement to set the entity id",
	KindEntityNotFound:     "couldn't find the entity with given entity id",
	KindExtractionFailed:   "couldn't extract data from the given statement",
	KindServiceTimeout:     "couldn't reach the service",
	KindServiceFailed:      "service returned an unexpected response",
	KindFormatChanged:      "service response format changed",
	KindInvalidBankName:    "invalid bank name",
	KindPasswordIncorrect:  "pdf password incorrect",
	KindUnparsablePDF:      "pdf is not parsable",
	KindCannotIdentifyBank: "couldn't identify the bank of the statement",
	KindFileProcessFailed:  "couldn't process the statement file",
}

// Error is a classified client failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	prefix := e.Kind.String()
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates an error of the given kind caused by err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Cause: err}
}

// InvalidArgument is shorthand for a KindInvalidArgument error.
func InvalidArgument(op, format string, args ...any) *Error {
	return New(KindInvalidArgument, op, fmt.Sprintf(format, args...))
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether err is a transport or availability failure that a
// bounded retry may overcome. Content rejections, missing entities and
// caller mistakes are never retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindServiceFailed, KindFormatChanged, KindUnknown:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is.
var (
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrNotYetUploaded     = &Error{Kind: KindNotYetUploaded}
	ErrEntityNotFound     = &Error{Kind: KindEntityNotFound}
	ErrExtractionFailed   = &Error{Kind: KindExtractionFailed}
	ErrServiceTimeout     = &Error{Kind: KindServiceTimeout}
	ErrServiceFailed      = &Error{Kind: KindServiceFailed}
	ErrFormatChanged      = &Error{Kind: KindFormatChanged}
	ErrInvalidBankName    = &Error{Kind: KindInvalidBankName}
	ErrPasswordIncorrect  = &Error{Kind: KindPasswordIncorrect}
	ErrUnparsablePDF      = &Error{Kind: KindUnparsablePDF}
	ErrCannotIdentifyBank = &Error{Kind: KindCannotIdentifyBank}
	ErrFileProcessFailed  = &Error{Kind: KindFileProcessFailed}
)
