// Package apperr defines the error taxonomy the kernel surfaces instead of
// panics. Every fallible kernel operation returns one of these classes so
// callers (the action pipeline, the bridge, the CLI) can switch on Class
// without parsing error strings.
package apperr

import "fmt"

// Class names one of the five error classes of the kernel's error handling
// design: a validation failure rejects a single action, a resource failure
// rejects an action or module call for lack of budget, an overflow failure
// rejects an operation that would wrap a counter, an integrity failure halts
// the node, and a module failure discards a WASM module's output.
type Class string

const (
	Validation Class = "validation"
	Resource   Class = "resource"
	Overflow   Class = "overflow"
	Integrity  Class = "integrity"
	Module     Class = "module"
)

// Error wraps an underlying cause with a Class and a machine-checkable Code
// (e.g. "InsufficientResources", "CostOverflow", "ArtifactMissing"). Code
// values are the same strings emitted in ActionRejected/ModuleCallFailed
// event payloads, so tests and replay comparisons can match on Code alone.
type Error struct {
	Class Class
	Code  string
	Err   error
}

func New(class Class, code string, err error) *Error {
	return &Error{Class: class, Code: code, Err: err}
}

func Newf(class Class, code, format string, args ...any) *Error {
	return &Error{Class: class, Code: code, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Class, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Class, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err is an *Error of the given class, following wrapped
// errors the same way errors.Is does.
func Is(err error, class Class) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			return ae.Class == class
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Code extracts the machine-checkable code from err, or "" if err is not
// (or does not wrap) an *Error.
func Code(err error) string {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			return ae.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// Wrap adds context to err without losing its Class/Code, mirroring the
// teacher's pkg/utils.Wrap helper but taxonomy-aware. It returns nil if err
// is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*Error); ok {
		return &Error{Class: ae.Class, Code: ae.Code, Err: fmt.Errorf("%s: %w", message, ae.Err)}
	}
	return fmt.Errorf("%s: %w", message, err)
}
