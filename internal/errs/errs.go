// Package errs defines the failure taxonomy shared by the photo search,
// acquisition and download code. Every failure carries a Kind so callers
// can branch with errors.Is against the Err* sentinels.
package errs

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindTransport         Kind = "TransportError"
	KindHTTPStatus        Kind = "HttpStatusError"
	KindEmptyBody         Kind = "EmptyBodyError"
	KindMalformedResponse Kind = "MalformedResponseError"
	KindRemoteAPI         Kind = "RemoteApiError"
	KindSchema            Kind = "SchemaError"
	KindNoResults         Kind = "NoResultsError"
	KindDownload          Kind = "DownloadError"
	KindNotFound          Kind = "NotFound"
	KindUnavailable       Kind = "Unavailable"
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrTransport         = &Error{Kind: KindTransport}
	ErrHTTPStatus        = &Error{Kind: KindHTTPStatus}
	ErrEmptyBody         = &Error{Kind: KindEmptyBody}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrRemoteAPI         = &Error{Kind: KindRemoteAPI}
	ErrSchema            = &Error{Kind: KindSchema}
	ErrNoResults         = &Error{Kind: KindNoResults}
	ErrDownload          = &Error{Kind: KindDownload}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
)

// Error is a classified failure with an optional cause
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	msg := e.msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithCause returns a copy of e with the underlying error attached
func (e *Error) WithCause(c error) *Error {
	cp := *e
	cp.cause = c
	return &cp
}

// Trace returns the message followed by the chain of causes, one per line
func (e *Error) Trace() string {
	b := &strings.Builder{}
	b.WriteString(e.msg)
	indent := "\n\t"
	err := errors.Unwrap(e)
	for err != nil {
		b.WriteString(indent)
		b.WriteString("Caused by: ")
		if ce, ok := err.(*Error); ok {
			b.WriteString(ce.msg)
		} else {
			b.WriteString(err.Error())
		}
		indent += "\t"
		err = errors.Unwrap(err)
	}
	return b.String()
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newErr(k Kind, m string) *Error {
	return &Error{Kind: k, msg: m}
}

func Transport(m string) *Error         { return newErr(KindTransport, m) }
func HTTPStatus(m string) *Error        { return newErr(KindHTTPStatus, m) }
func EmptyBody(m string) *Error         { return newErr(KindEmptyBody, m) }
func MalformedResponse(m string) *Error { return newErr(KindMalformedResponse, m) }
func RemoteAPI(m string) *Error         { return newErr(KindRemoteAPI, m) }
func Schema(m string) *Error            { return newErr(KindSchema, m) }
func NoResults(m string) *Error         { return newErr(KindNoResults, m) }
func Download(m string) *Error          { return newErr(KindDownload, m) }
func NotFound(m string) *Error          { return newErr(KindNotFound, m) }
func Unavailable(m string) *Error       { return newErr(KindUnavailable, m) }
