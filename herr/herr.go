// Package herr defines the structured error surface shared by every Hayride
// capability. Host errors cross the component boundary as a (code, message)
// pair attached to a resource handle; this package is the Go side of that
// pair, with a capability tag and an errors.As-friendly chain.
package herr

import (
	"errors"
	"fmt"
)

// Capability identifies which component raised an error.
type Capability string

const (
	CapCore       Capability = "core"
	CapAI         Capability = "ai"
	CapDB         Capability = "db"
	CapSilo       Capability = "silo"
	CapWAC        Capability = "wac"
	CapHTTP       Capability = "http"
	CapWebSocket  Capability = "websocket"
	CapMCP        Capability = "mcp"
	CapLinker     Capability = "linker"
	CapWitInspect Capability = "witinspect"
)

// Kind is the coarse-grained classification a capability error belongs to.
type Kind string

const (
	KindCapabilityDisabled   Kind = "capability_disabled"
	KindUnsupportedOperation Kind = "unsupported_operation"
	KindInvalidArgument      Kind = "invalid_argument"
	KindInvalidEncoding      Kind = "invalid_encoding"
	KindTooLarge             Kind = "too_large"
	KindNotFound             Kind = "not_found"
	KindTimeout              Kind = "timeout"
	KindRuntimeError         Kind = "runtime_error"

	KindOpenFailed             Kind = "open_failed"
	KindQueryFailed            Kind = "query_failed"
	KindExecuteFailed          Kind = "execute_failed"
	KindPrepareFailed          Kind = "prepare_failed"
	KindCloseFailed            Kind = "close_failed"
	KindBeginTransactionFailed Kind = "begin_transaction_failed"
	KindCommitFailed           Kind = "commit_failed"
	KindRollbackFailed         Kind = "rollback_failed"
	KindNextFailed             Kind = "next_failed"
	KindEndOfRows              Kind = "end_of_rows"

	KindConnectionFailed  Kind = "connection_failed"
	KindCreateTableFailed Kind = "create_table_failed"
	KindEmbedFailed       Kind = "embed_failed"
	KindRegisterFailed    Kind = "register_failed"
	KindMissingTable      Kind = "missing_table"
	KindInvalidOption     Kind = "invalid_option"

	KindModelNotFound    Kind = "model_not_found"
	KindInvalidModelName Kind = "invalid_model_name"

	KindThreadNotFound  Kind = "thread_not_found"
	KindInvalidThreadID Kind = "invalid_thread_id"
	KindThreadFailed    Kind = "thread_failed"
	KindMorphNotFound   Kind = "morph_not_found"
	KindEngineError     Kind = "engine_error"
	KindFailedToSpawn   Kind = "failed_to_spawn"

	KindFileNotFound  Kind = "file_not_found"
	KindComposeFailed Kind = "compose_failed"
	KindResolveFailed Kind = "resolve_failed"
	KindEncodeFailed  Kind = "encode_failed"

	KindGetVersionFailed Kind = "get_version_failed"
	KindSetFailed        Kind = "set_failed"
	KindGetFailed        Kind = "get_failed"
	KindConfigNotSet     Kind = "config_not_set"
)

// Error is the structured error type every capability returns. It carries
// enough information for a component to decide how to map the failure back
// onto its own error channel.
type Error struct {
	capability Capability
	kind       Kind
	code       string
	message    string
	cause      error
}

// New constructs an Error. capability and kind are required; a missing one
// is a programming error, caught early by panicking.
func New(capability Capability, kind Kind, code, message string) *Error {
	return NewWithCause(capability, kind, code, message, nil)
}

// NewWithCause is New plus an underlying cause, preserved for errors.Unwrap.
func NewWithCause(capability Capability, kind Kind, code, message string, cause error) *Error {
	if capability == "" {
		panic("herr: capability is required")
	}
	if kind == "" {
		panic("herr: kind is required")
	}
	return &Error{capability: capability, kind: kind, code: code, message: message, cause: cause}
}

// Errorf is New with a formatted message.
func Errorf(capability Capability, kind Kind, code, format string, args ...any) *Error {
	return New(capability, kind, code, fmt.Sprintf(format, args...))
}

func (e *Error) Capability() Capability { return e.capability }
func (e *Error) Kind() Kind             { return e.kind }
func (e *Error) Code() string           { return e.code }
func (e *Error) Message() string        { return e.message }

func (e *Error) Error() string {
	msg := e.message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if e.code == "" {
		return fmt.Sprintf("%s: %s: %s", e.capability, e.kind, msg)
	}
	return fmt.Sprintf("%s: %s(%s): %s", e.capability, e.kind, e.code, msg)
}

// Unwrap preserves the original error chain.
func (e *Error) Unwrap() error { return e.cause }

// As returns the first *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	he, ok := As(err)
	return ok && he.kind == kind
}

// Per-capability convenience constructors, mirroring toolerrors.New's shape.

func Core(kind Kind, code, message string) *Error { return New(CapCore, kind, code, message) }
func AI(kind Kind, code, message string) *Error   { return New(CapAI, kind, code, message) }
func DB(kind Kind, code, message string) *Error   { return New(CapDB, kind, code, message) }
func Silo(kind Kind, code, message string) *Error { return New(CapSilo, kind, code, message) }
func WAC(kind Kind, code, message string) *Error  { return New(CapWAC, kind, code, message) }
