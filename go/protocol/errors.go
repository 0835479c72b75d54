package protocol

import (
	"errors"
	"fmt"
)

// ErrorCategory is the closed taxonomy every failure maps into.
type ErrorCategory string

const (
	CatValidation     ErrorCategory = "VALIDATION"
	CatSecurity       ErrorCategory = "SECURITY"
	CatAuthentication ErrorCategory = "AUTHENTICATION"
	CatAuthorization  ErrorCategory = "AUTHORIZATION"
	CatNotFound       ErrorCategory = "NOT_FOUND"
	CatConflict       ErrorCategory = "CONFLICT"
	CatConnection     ErrorCategory = "CONNECTION"
	CatTimeout        ErrorCategory = "TIMEOUT"
	CatThrottle       ErrorCategory = "THROTTLE"
	CatAdmission      ErrorCategory = "ADMISSION"
	CatUnknown        ErrorCategory = "UNKNOWN"
)

// maxQueryInError caps how much SQL text an execution error may carry.
const maxQueryInError = 200

// OperationError is the gateway's error type. UserMessage is safe to show to
// end users; InternalMessage is for logs only.
type OperationError struct {
	Category        ErrorCategory
	Code            string
	UserMessage     string
	InternalMessage string
	Details         map[string]any
	cause           error
}

func (e *OperationError) Error() string {
	if e.InternalMessage != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.InternalMessage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.UserMessage)
}

func (e *OperationError) Unwrap() error { return e.cause }

// WithCause attaches an underlying error.
func (e *OperationError) WithCause(err error) *OperationError {
	e.cause = err
	return e
}

// WithDetail adds one detail entry.
func (e *OperationError) WithDetail(key string, value any) *OperationError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func newError(cat ErrorCategory, code, user, internal string) *OperationError {
	if internal == "" {
		internal = user
	}
	return &OperationError{Category: cat, Code: code, UserMessage: user, InternalMessage: internal}
}

// ValidationError rejects a structurally invalid request.
func ValidationError(user, internal string) *OperationError {
	return newError(CatValidation, "ValidationError", user, internal)
}

// SecurityError rejects identifiers or SQL that fail safety checks.
func SecurityError(user, internal string) *OperationError {
	return newError(CatSecurity, "SecurityError", user, internal)
}

// AuthenticationError signals a missing or unusable identity.
func AuthenticationError(user, internal string) *OperationError {
	return newError(CatAuthentication, "AuthenticationError", user, internal)
}

// TokenExpiredError is an AUTHENTICATION failure for stale OBO tokens.
func TokenExpiredError(internal string) *OperationError {
	return newError(CatAuthentication, "TokenExpiredError",
		"Your session has expired. Please refresh the page.", internal)
}

// AuthorizationError signals the identity lacks access.
func AuthorizationError(user, internal string) *OperationError {
	return newError(CatAuthorization, "AuthorizationError", user, internal)
}

// NotFoundError signals a missing record or resource.
func NotFoundError(user, internal string) *OperationError {
	return newError(CatNotFound, "NotFoundError", user, internal)
}

// ConflictError signals an optimistic-concurrency or state conflict.
func ConflictError(user, internal string) *OperationError {
	return newError(CatConflict, "ConflictError", user, internal)
}

// ConnectionError signals the warehouse could not be reached or leased.
func ConnectionError(user, internal string) *OperationError {
	return newError(CatConnection, "ConnectionError", user, internal)
}

// TimeoutError signals a statement or connect deadline elapsed.
func TimeoutError(user, internal string) *OperationError {
	return newError(CatTimeout, "TimeoutError", user, internal)
}

// ThrottleError signals the per-session rate limit rejected the request.
func ThrottleError(retryAfterSeconds float64) *OperationError {
	e := newError(CatThrottle, "ThrottleError",
		"Too many requests. Please slow down.",
		fmt.Sprintf("session rate limit exceeded, retry after %.1fs", retryAfterSeconds))
	return e.WithDetail("retry_after_seconds", retryAfterSeconds)
}

// AdmissionError signals the concurrency gate rejected the request.
func AdmissionError(limit int) *OperationError {
	e := newError(CatAdmission, "AdmissionError",
		"The system is busy. Please try again shortly.",
		fmt.Sprintf("admission gate full, limit=%d", limit))
	return e.WithDetail("max_concurrent_queries", limit)
}

// QueryExecutionError wraps a warehouse failure, truncating the offending
// SQL so logs and responses stay bounded.
func QueryExecutionError(cause error, query string) *OperationError {
	if len(query) > maxQueryInError {
		query = query[:maxQueryInError] + "..."
	}
	e := newError(CatConnection, "QueryExecutionError",
		"The query could not be executed.", cause.Error())
	e.cause = cause
	return e.WithDetail("query", query)
}

// MetadataAccessError wraps an information_schema failure for a table.
func MetadataAccessError(cause error, tableRef string) *OperationError {
	e := newError(CatConnection, "MetadataAccessError",
		"Table metadata is unavailable.", cause.Error())
	e.cause = cause
	return e.WithDetail("table_ref", tableRef)
}

// ErrorDetailFrom maps any error into the closed taxonomy. Unrecognized
// errors become UNKNOWN with a generic user message.
func ErrorDetailFrom(err error) *ErrorDetail {
	var op *OperationError
	if errors.As(err, &op) {
		return &ErrorDetail{
			Category: op.Category,
			Code:     op.Code,
			Message:  op.UserMessage,
			Details:  op.Details,
		}
	}
	return &ErrorDetail{
		Category: CatUnknown,
		Code:     "UnknownError",
		Message:  "An unexpected error occurred.",
	}
}

// CategoryOf returns the taxonomy category of err, CatUnknown when untyped.
func CategoryOf(err error) ErrorCategory {
	var op *OperationError
	if errors.As(err, &op) {
		return op.Category
	}
	return CatUnknown
}
