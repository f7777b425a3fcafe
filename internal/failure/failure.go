// Package failure defines the error kinds a run can end with.
//
// Every stage of the import pipeline returns plain errors; the ones that
// matter to the caller are wrapped in an *Error so the command can decide
// whether to retry (ConnectionError) or stop.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	// Unknown is used for errors that were never classified.
	Unknown Kind = iota
	// InvalidArgument is a malformed schema name or filter. Raised before any query.
	InvalidArgument
	// ConnectionError is an unreachable host or rejected credentials.
	ConnectionError
	// QueryError is a catalog query rejected by the database.
	QueryError
	// DataIntegrityError is catalog data that cannot be assembled into a consistent model.
	DataIntegrityError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case ConnectionError:
		return "connection error"
	case QueryError:
		return "query error"
	case DataIntegrityError:
		return "data integrity error"
	default:
		return "error"
	}
}

// Error is a classified failure.
type Error struct {
	Kind  Kind
	Stage string
	// Fields names the connection settings implicated by a ConnectionError
	// (host, port, user, password, database, schema).
	Fields []string
	// Code is the database error code of a QueryError or ConnectionError, if any.
	Code string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " (check %s)", strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error wrapping a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// WithStage records the pipeline stage on the first *Error in err's chain,
// or wraps err as Unknown if it was never classified.
func WithStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Stage == "" {
			cp := *fe
			cp.Stage = stage
			return &cp
		}
		return err
	}
	return &Error{Kind: Unknown, Stage: stage, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldsOf returns the connection fields implicated by err.
func FieldsOf(err error) []string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Fields
	}
	return nil
}

// StageOf returns the stage recorded on err, or "".
func StageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Stage
	}
	return ""
}
