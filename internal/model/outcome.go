package model

import (
	"errors"
	"fmt"
	"time"
)

// Probe failure sentinels. Each ErrorKind maps to exactly one of these via Err,
// so callers can use errors.Is on wrapped probe errors.
var (
	// ErrConnectFailure is returned when the TCP connection could not be
	// established (refused, unreachable, reset or timed out).
	ErrConnectFailure = errors.New("connect failure")

	// ErrIOFailure is returned when writing the request or reading the
	// response failed for a reason other than a timeout or reset.
	ErrIOFailure = errors.New("i/o failure")

	// ErrReadTimeout is returned when no response arrived before the read deadline.
	ErrReadTimeout = errors.New("read timeout")

	// ErrShortResponse is returned when fewer than 19 bytes were read.
	ErrShortResponse = errors.New("response is shorter than 19 bytes")

	// ErrWrongProtocol is returned when the response is not an X.224 connection confirm.
	ErrWrongProtocol = errors.New("protocol is not rdp")

	// ErrNegotiationFailure is returned for an RDP negotiation failure frame
	// whose failure code does not imply the service is present.
	ErrNegotiationFailure = errors.New("rdp negotiation failure")
)

// ErrorKind classifies the result of a single probe.
// The zero value KindNone means the endpoint was confirmed alive.
type ErrorKind int

const (
	// KindNone indicates no error: the endpoint speaks RDP.
	KindNone ErrorKind = iota

	// KindConnectFailure indicates the connection could not be established.
	KindConnectFailure

	// KindIOFailure indicates a write or non-timeout read error.
	KindIOFailure

	// KindReadTimeout indicates the server did not answer in time.
	KindReadTimeout

	// KindShortResponse indicates fewer than 19 bytes were read.
	KindShortResponse

	// KindWrongProtocol indicates the framing or connection confirm markers were absent.
	KindWrongProtocol

	// KindNegotiationFailure indicates a failure frame with an unhandled reason code.
	KindNegotiationFailure
)

// Kinds lists every ErrorKind in declaration order.
var Kinds = []ErrorKind{
	KindNone,
	KindConnectFailure,
	KindIOFailure,
	KindReadTimeout,
	KindShortResponse,
	KindWrongProtocol,
	KindNegotiationFailure,
}

// String returns a stable, lowercase identifier for the kind.
// These identifiers are used in logs, JSON reports and the history database.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "alive"
	case KindConnectFailure:
		return "connect_failure"
	case KindIOFailure:
		return "io_failure"
	case KindReadTimeout:
		return "read_timeout"
	case KindShortResponse:
		return "short_response"
	case KindWrongProtocol:
		return "wrong_protocol"
	case KindNegotiationFailure:
		return "negotiation_failure"
	default:
		return "unknown"
	}
}

// Err returns the sentinel error for this kind, or nil for KindNone.
func (k ErrorKind) Err() error {
	switch k {
	case KindNone:
		return nil
	case KindConnectFailure:
		return ErrConnectFailure
	case KindIOFailure:
		return ErrIOFailure
	case KindReadTimeout:
		return ErrReadTimeout
	case KindShortResponse:
		return ErrShortResponse
	case KindWrongProtocol:
		return ErrWrongProtocol
	case KindNegotiationFailure:
		return ErrNegotiationFailure
	default:
		return errors.New("unknown probe error")
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	for _, kind := range Kinds {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", string(text))
}

// Outcome is the result of probing one endpoint.
// Exactly one Outcome is produced for every scheduled Endpoint.
type Outcome struct {
	// Endpoint is the probed target.
	Endpoint Endpoint `json:"endpoint"`

	// Kind is KindNone when the endpoint is alive.
	Kind ErrorKind `json:"kind"`

	// Err is the underlying error. It wraps Kind.Err() and is nil when alive.
	Err error `json:"-"`

	// TimedOut distinguishes a connect timeout from a refusal when Kind is
	// KindConnectFailure.
	TimedOut bool `json:"timed_out,omitempty"`

	// Negotiation is the RDP_NEG type byte (offset 11), 0 when the response
	// never reached that offset.
	Negotiation byte `json:"negotiation,omitempty"`

	// Code is the byte at offset 15: the low byte of the selected protocol
	// for a negotiation response, or the failure code for a failure frame.
	Code byte `json:"code,omitempty"`

	// Response holds a copy of the bytes read, for verbose diagnostics.
	Response []byte `json:"-"`

	// Elapsed is the wall time spent on the probe.
	Elapsed time.Duration `json:"elapsed"`
}

// Alive reports whether the endpoint was confirmed to speak RDP.
func (o Outcome) Alive() bool {
	return o.Kind == KindNone
}

// Error returns the error message or an empty string when alive.
func (o Outcome) Error() string {
	if o.Err == nil {
		if o.Kind == KindNone {
			return ""
		}
		return o.Kind.Err().Error()
	}
	return o.Err.Error()
}
