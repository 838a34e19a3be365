// Package errs defines the framework's single error type.
//
// Every subsystem reports failures as an *Error tagged with a Kind instead of
// a dedicated error type per component. The source error keeps its stack
// trace (github.com/pkg/errors) so a top-level handler can log it.
//
//	if errs.Is(err, errs.NotFound) { ... }
//	status := errs.HTTPStatus(errs.KindOf(err))
package errs

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies an Error.
type Kind uint8

const (
	Internal Kind = iota
	Container
	NotFound
	Circular
	Autowire
	Scope
	Interceptor
	ControllerNotFound
	ActionNotFound
	BadAction
	Validation
	Config
	Console
	Cache
	Database
	Bootloader
)

var kindNames = [...]string{
	Internal:           "internal",
	Container:          "container",
	NotFound:           "not_found",
	Circular:           "circular_dependency",
	Autowire:           "autowire",
	Scope:              "scope",
	Interceptor:        "interceptor",
	ControllerNotFound: "controller_not_found",
	ActionNotFound:     "action_not_found",
	BadAction:          "bad_action",
	Validation:         "validation",
	Config:             "config",
	Console:            "console",
	Cache:              "cache",
	Database:           "database",
	Bootloader:         "bootloader",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is a tagged framework error.
type Error struct {
	Kind    Kind
	Op      string // failing operation, e.g. "container.Make"
	Subject string // alias, controller or key involved, may be empty
	Err     error
}

func (e *Error) Error() string {
	msg := "unknown error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Subject == "" {
		return e.Op + ": " + msg
	}
	return fmt.Sprintf("%s [%s]: %s", e.Op, e.Subject, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error whose source carries a stack trace.
func New(kind Kind, op, subject, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: errors.Errorf(format, args...)}
}

// Wrap tags err with kind. A nil err yields nil.
func Wrap(kind Kind, op, subject string, err error) error {
	if err == nil {
		return nil
	}
	if !hasStack(err) {
		err = errors.WithStack(err)
	}
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether any *Error in err's tree has the given kind. Joined
// errors are searched depth first.
func Is(err error, kind Kind) bool {
	switch x := err.(type) {
	case nil:
		return false
	case *Error:
		return x.Kind == kind || Is(x.Err, kind)
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if Is(e, kind) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return Is(x.Unwrap(), kind)
	}
	return false
}

// HTTPStatus maps a kind onto a response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound, ControllerNotFound, ActionNotFound:
		return http.StatusNotFound
	case BadAction:
		return http.StatusBadRequest
	case Validation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func hasStack(err error) bool {
	var st stackTracer
	return stderrors.As(err, &st)
}
