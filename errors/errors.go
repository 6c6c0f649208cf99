// Package errors is a fork of `github.com/go-errors/errors` that adds gRPC
// status codes, error causes and stack-traces. It is used across driverhub to
// build the sentinel errors returned by the resolver, loader and license gate.
//
// Sentinels are declared once and marked at the point they are returned, so
// the stack trace points at the failing call while identity is preserved:
//
//	var ErrResolutionFailed = errors.NewC("library resolution failed", codes.FailedPrecondition)
//
//	func resolve() error {
//	    return errors.Mark(ErrResolutionFailed, 0).WithCause(err)
//	}
//
// Callers can then test with either this package's Is or the standard library:
//
//	if errors.Is(err, resolver.ErrResolutionFailed) {
//	    fmt.Println(err.(*errors.Error).ErrorStack())
//	}
package errors

import (
	"bytes"
	baseErrors "errors"
	"fmt"
	"reflect"
	"runtime"

	"google.golang.org/grpc/codes"
)

// The maximum number of stackframes on any error.
var MaxStackDepth = 50

// Error is an error with an attached stacktrace. It can be used
// wherever the builtin error interface is expected.
type Error struct {
	Err    error
	stack  []uintptr
	frames []StackFrame
	prefix string

	// Underlying failure that triggered this error, if any.
	cause error

	// gRPC status code used to classify the error.
	code codes.Code
}

// New makes an Error from the given value. If that value is already an
// error then it will be used directly, if not, it will be passed to
// fmt.Errorf("%v"). The stacktrace will point to the line of code that
// called New.
func New(e interface{}) *Error {
	return newError(e, codes.Unknown, 1)
}

// NewC makes an Error with a status code defined.
func NewC(e interface{}, code codes.Code) *Error {
	return newError(e, code, 1)
}

func newError(e interface{}, code codes.Code, skip int) *Error {
	var err error

	switch e := e.(type) {
	case error:
		err = e
	default:
		err = fmt.Errorf("%v", e)
	}

	stack := make([]uintptr, MaxStackDepth)
	length := runtime.Callers(2+skip, stack[:])
	return &Error{
		Err:   err,
		stack: stack[:length],
		code:  code,
	}
}

// Wrap makes an Error from the given value. If that value is already an
// error then it will be used directly, if not, it will be passed to
// fmt.Errorf("%v"). The skip parameter indicates how far up the stack
// to start the stacktrace. 0 is from the current call, 1 from its caller, etc.
func Wrap(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}
	if err, ok := e.(*Error); ok {
		return err
	}
	return newError(e, codes.Unknown, 1+skip)
}

// MaybeWrap wraps non-nil errors and returns nil otherwise. Useful for
// returning the result of a function call directly.
func MaybeWrap(err error, skip int) error {
	if err == nil {
		return nil
	}
	return Wrap(err, 1+skip)
}

// WrapPrefix makes an Error from the given value. If that value is already an
// error then it will be used directly, if not, it will be passed to
// fmt.Errorf("%v"). The prefix parameter is used to add a prefix to the
// error message when calling Error(). The skip parameter indicates how far
// up the stack to start the stacktrace.
func WrapPrefix(e interface{}, prefix string, skip int) *Error {
	if e == nil {
		return nil
	}

	err := Wrap(e, 1+skip)

	if err.prefix != "" {
		prefix = fmt.Sprintf("%s: %s", prefix, err.prefix)
	}

	return &Error{
		Err:    err.Err,
		stack:  err.stack,
		code:   err.code,
		cause:  err.cause,
		prefix: prefix,
	}
}

// Mark takes an error and sets the stack trace from the point it was called,
// overriding any previous stack trace that may have been set. Marking a
// sentinel returns a copy, so the sentinel itself is never mutated.
func Mark(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}
	if err, ok := e.(*Error); ok {
		stack := make([]uintptr, MaxStackDepth)
		length := runtime.Callers(2+skip, stack[:])
		return &Error{
			Err:    err.Err,
			stack:  stack[:length],
			code:   err.code,
			cause:  err.cause,
			prefix: err.prefix,
		}
	}
	return Wrap(e, 1+skip)
}

// WithCode takes an error and adds a gRPC status code to it. If the error is
// not already an `Error`, it will be wrapped in one.
func WithCode(err error, code codes.Code) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, 1).WithCode(code)
}

// Errorf creates a new error with the given message. You can use it
// as a drop-in replacement for fmt.Errorf() to provide descriptive
// errors in return values.
func Errorf(format string, a ...interface{}) *Error {
	return Wrap(fmt.Errorf(format, a...), 1)
}

// Is detects whether the error is equal to a given error. Errors
// are considered equal by this function if they are matched by errors.Is
// or if their contained errors are matched through errors.Is.
func Is(e error, original error) bool {
	if e == original {
		return true
	}

	if e, ok := e.(*Error); ok {
		if Is(e.Err, original) {
			return true
		}
		return e.cause != nil && Is(e.cause, original)
	}

	if original, ok := original.(*Error); ok {
		return Is(e, original.Err)
	}

	return baseErrors.Is(e, original)
}

// As is a passthrough to the standard library's errors.As.
func As(err error, target any) bool {
	return baseErrors.As(err, target)
}

// Join is a passthrough to the standard library's errors.Join.
func Join(errs ...error) error {
	return baseErrors.Join(errs...)
}

// Error returns the underlying error's message, including the prefix and the
// cause when present.
func (err *Error) Error() string {
	msg := err.Err.Error()
	if err.prefix != "" {
		msg = fmt.Sprintf("%s: %s", err.prefix, msg)
	}
	if err.cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, err.cause.Error())
	}
	return msg
}

// Is lets the standard library match a marked copy against its sentinel.
func (err *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Err == nil || err.Err == nil {
		return false
	}
	if !reflect.TypeOf(t.Err).Comparable() || !reflect.TypeOf(err.Err).Comparable() {
		return false
	}
	return t.Err == err.Err
}

// Stack returns the callstack formatted the same way that go does
// in runtime/debug.Stack()
func (err *Error) Stack() []byte {
	buf := bytes.Buffer{}

	for _, frame := range err.StackFrames() {
		buf.WriteString(frame.String())
	}

	return buf.Bytes()
}

// Callers returns the raw program counters of the stack.
func (err *Error) Callers() []uintptr {
	return err.stack
}

// ErrorStack returns a string that contains both the
// error message and the callstack.
func (err *Error) ErrorStack() string {
	return err.TypeName() + " " + err.Error() + "\n" + string(err.Stack())
}

// StackFrames returns an array of frames containing information about the
// stack.
func (err *Error) StackFrames() []StackFrame {
	if err.frames == nil {
		err.frames = make([]StackFrame, len(err.stack))

		for i, pc := range err.stack {
			err.frames[i] = NewStackFrame(pc)
		}
	}

	return err.frames
}

// TypeName returns the type this error. e.g. *errors.stringError.
func (err *Error) TypeName() string {
	return reflect.TypeOf(err.Err).String()
}

// Unwrap returns the wrapped error followed by the cause, if any.
func (err *Error) Unwrap() []error {
	if err.cause != nil {
		return []error{err.Err, err.cause}
	}
	return []error{err.Err}
}

// Cause returns the failure attached with WithCause.
func (err *Error) Cause() error {
	return err.cause
}

// WithCause attaches the underlying failure. The cause participates in Is, As
// and in the error message.
func (err *Error) WithCause(cause error) *Error {
	err.cause = cause
	return err
}

// Code returns the gRPC status code associated with the error.
func (err *Error) Code() codes.Code {
	return err.code
}

// WithCode sets the gRPC status code associated with the error.
func (err *Error) WithCode(code codes.Code) *Error {
	err.code = code
	return err
}

// Code returns a gRPC status code for an error. If the error is nil, it returns
// codes.OK. If any error in the chain exposes a `Code()` method, it is
// returned. Otherwise codes.Unknown is returned.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var coded codedError
	if baseErrors.As(err, &coded) {
		return coded.Code()
	}
	return codes.Unknown
}

type codedError interface {
	Code() codes.Code
}
