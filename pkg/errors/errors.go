// Package errors defines the sentinel errors shared by the admin client and
// the emulator, and maps them to canonical RPC codes, HTTP statuses and the
// google.rpc.Status carried by failed operations.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrAborted            = errors.New("aborted")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrResourceExhausted  = errors.New("resource exhausted")
	ErrUnavailable        = errors.New("unavailable")
	ErrCancelled          = errors.New("cancelled")
	ErrInternal           = errors.New("internal error")
	ErrDeadlineExceeded   = errors.New("deadline exceeded")
	ErrUnimplemented      = errors.New("unimplemented")
)

var sentinelCodes = []struct {
	err  error
	code codes.Code
}{
	{ErrNotFound, codes.NotFound},
	{ErrAlreadyExists, codes.AlreadyExists},
	{ErrInvalidArgument, codes.InvalidArgument},
	{ErrFailedPrecondition, codes.FailedPrecondition},
	{ErrAborted, codes.Aborted},
	{ErrUnauthenticated, codes.Unauthenticated},
	{ErrPermissionDenied, codes.PermissionDenied},
	{ErrResourceExhausted, codes.ResourceExhausted},
	{ErrUnavailable, codes.Unavailable},
	{ErrCancelled, codes.Canceled},
	{ErrInternal, codes.Internal},
	{ErrDeadlineExceeded, codes.DeadlineExceeded},
	{ErrUnimplemented, codes.Unimplemented},
}

// AppError attaches a human-readable message and an RPC code to a sentinel.
type AppError struct {
	Err     error
	Message string
	Code    codes.Code
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps sentinel with message. The code is derived from the sentinel.
func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
		Code:    Code(sentinel),
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return New(sentinel, fmt.Sprintf(format, args...))
}

// Sentinel returns the sentinel error for c, or ErrInternal for codes
// without one.
func Sentinel(c codes.Code) error {
	for _, sc := range sentinelCodes {
		if sc.code == c {
			return sc.err
		}
	}
	return ErrInternal
}

// Code returns the canonical RPC code of err.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != codes.OK {
		return appErr.Code
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Unknown
}

// Message returns the message of err without the sentinel prefix.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if st, ok := status.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}

// HTTPStatusCode maps err to the HTTP status used by the REST binding.
func HTTPStatusCode(err error) int {
	return HTTPStatusFromCode(Code(err))
}

// HTTPStatusFromCode follows the google.rpc.Code to HTTP mapping.
func HTTPStatusFromCode(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return 499
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeFromHTTPStatus is the inverse of HTTPStatusFromCode for responses
// that carry no status name.
func CodeFromHTTPStatus(s int) codes.Code {
	switch s {
	case http.StatusOK:
		return codes.OK
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.Aborted
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case 499:
		return codes.Canceled
	case http.StatusNotImplemented:
		return codes.Unimplemented
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// CodeName returns the google.rpc.Code enum name, e.g. "NOT_FOUND".
func CodeName(c codes.Code) string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// CodeFromName parses a google.rpc.Code enum name.
func CodeFromName(name string) (codes.Code, bool) {
	for c, n := range codeNames {
		if n == name {
			return c, true
		}
	}
	return codes.Unknown, false
}

var codeNames = map[codes.Code]string{
	codes.OK:                 "OK",
	codes.Canceled:           "CANCELLED",
	codes.Unknown:            "UNKNOWN",
	codes.InvalidArgument:    "INVALID_ARGUMENT",
	codes.DeadlineExceeded:   "DEADLINE_EXCEEDED",
	codes.NotFound:           "NOT_FOUND",
	codes.AlreadyExists:      "ALREADY_EXISTS",
	codes.PermissionDenied:   "PERMISSION_DENIED",
	codes.ResourceExhausted:  "RESOURCE_EXHAUSTED",
	codes.FailedPrecondition: "FAILED_PRECONDITION",
	codes.Aborted:            "ABORTED",
	codes.OutOfRange:         "OUT_OF_RANGE",
	codes.Unimplemented:      "UNIMPLEMENTED",
	codes.Internal:           "INTERNAL",
	codes.Unavailable:        "UNAVAILABLE",
	codes.DataLoss:           "DATA_LOSS",
	codes.Unauthenticated:    "UNAUTHENTICATED",
}

// ToStatus converts err into a gRPC status error for returning from a
// handler. Errors that already carry a status pass through.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(interface{ GRPCStatus() *status.Status }); ok {
		return err
	}
	return status.Error(Code(err), Message(err))
}

// FromStatus converts a gRPC status error received by a client back into an
// AppError wrapping the matching sentinel.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	return FromCode(st.Code(), st.Message())
}

// FromCode builds the AppError for a code and message.
func FromCode(c codes.Code, message string) error {
	if c == codes.OK {
		return nil
	}
	return &AppError{Err: Sentinel(c), Message: message, Code: c}
}

// ToRPCStatus renders err as the google.rpc.Status stored on a failed
// operation.
func ToRPCStatus(err error) *proto.Status {
	if err == nil {
		return nil
	}
	return &proto.Status{Code: int32(Code(err)), Message: Message(err)}
}

// FromRPCStatus converts the error of a finished operation into a Go error.
func FromRPCStatus(st *proto.Status) error {
	if st == nil || st.Code == 0 {
		return nil
	}
	return FromCode(codes.Code(st.Code), st.Message)
}
