package interactive

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrNoHostsFound is returned when host discovery produced an empty
	// candidate list.
	ErrNoHostsFound = errors.New("interactive: no hosts found")

	// ErrClosed is returned for calls that were pending when the connection
	// closed, and for calls issued against a closed client.
	ErrClosed = errors.New("interactive: closed connection")

	// ErrReplyTimeout is returned when the service did not reply to a call
	// within the request timeout.
	ErrReplyTimeout = errors.New("interactive: reply timeout")
)

// ReplyError is a structured error returned by the service in a reply packet.
type ReplyError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`

	// Method is the client method that triggered the error. Filled in by the
	// session, never present on the wire.
	Method string `json:"-"`
}

func (e *ReplyError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("interactive: %s: error %d at %s: %s", e.Method, e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("interactive: %s: error %d: %s", e.Method, e.Code, e.Message)
}

// CodecError wraps a frame that could not be parsed or a payload that could
// not be encoded.
type CodecError struct {
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("interactive: codec: %v", e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// ConnectError aggregates the per-candidate failures after every discovered
// host has been tried.
type ConnectError struct {
	// Errs holds one wrapped error per attempted host, in attempt order.
	Errs *multierror.Error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("interactive: all hosts failed: %v", e.Errs)
}

func (e *ConnectError) Unwrap() error { return e.Errs }
