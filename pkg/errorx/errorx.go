package errorx

import (
	"errors"
	"fmt"
)

// CodeError is an error carrying a business error code.
// It implements the error interface, supports wrapping an underlying cause,
// and is recognized by errors.Is/errors.As.
type CodeError struct {
	Code  int
	Msg   string
	cause error
}

// Error implements the standard error interface.
// When a cause is present the format is "msg: cause", otherwise just msg.
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

// Unwrap lets errors.Is/errors.As walk down to the wrapped cause.
func (e *CodeError) Unwrap() error {
	return e.cause
}

// Is makes CodeErrors with the same code comparable through errors.Is,
// so wrapped instances still match the package sentinels below.
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a CodeError.
func New(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

// Newf creates a CodeError with a formatted message.
func Newf(code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an underlying error with a business code and message.
// Usage: errorx.Wrap(err, CodeNotFound, "group not found")
func Wrap(err error, code int, msg string) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   msg,
		cause: err,
	}
}

// Wrapf wraps an underlying error with a formatted message.
// Usage: errorx.Wrapf(err, CodeNotFound, "group %s not found", uuid)
func Wrapf(err error, code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   fmt.Sprintf(format, args...),
		cause: err,
	}
}

// GetCode extracts the business code from an error, falling back to
// CodeServerBusy for plain errors.
func GetCode(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeServerBusy
}

// Business status codes.
const (
	CodeSuccess      = 1000
	CodeInvalidParam = 1001
	CodeServerBusy   = 1005
	CodeUnauthorized = 1006
	CodeNotFound     = 1008
	CodeDBError      = 1010
	CodeCacheError   = 1011

	// Matching and assignment codes.
	CodeLocationRequired     = 1101 // cannot match without a coordinate
	CodeRaceLost             = 1102 // a concurrent join filled the group first
	CodeAlreadyMember        = 1103 // join is an idempotent no-op
	CodeAssignmentInProgress = 1104 // another attempt holds the venue lock
	CodeProviderUnavailable  = 1105 // venue search failed or timed out
	CodeInvariantViolation   = 1106 // member counter drifted from participant rows
)

// Predefined error instances. Usable both as return values and as
// errors.Is comparison targets.
var (
	ErrInvalidParam = New(CodeInvalidParam, "invalid request parameter")
	ErrServerBusy   = New(CodeServerBusy, "server busy")
	ErrUnauthorized = New(CodeUnauthorized, "not a member of this group")

	ErrLocationRequired     = New(CodeLocationRequired, "a location is required to join a group")
	ErrRaceLost             = New(CodeRaceLost, "group filled up concurrently")
	ErrAlreadyMember        = New(CodeAlreadyMember, "already a member of this group")
	ErrAssignmentInProgress = New(CodeAssignmentInProgress, "venue assignment already in progress")
	ErrProviderUnavailable  = New(CodeProviderUnavailable, "venue provider unavailable")
	ErrInvariantViolation   = New(CodeInvariantViolation, "member count does not match participant rows")
)

// IsNotFound reports whether the error is a not-found error
// (including gorm.ErrRecordNotFound wrapped by the repository layer).
func IsNotFound(err error) bool {
	var codeErr *CodeError
	if errors.As(err, &codeErr) && codeErr.Code == CodeNotFound {
		return true
	}
	return err != nil && err.Error() == "record not found"
}
