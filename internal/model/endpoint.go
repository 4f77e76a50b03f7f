package model

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Endpoint errors.
var (
	// ErrEmptyEndpoint is returned when the endpoint text is empty.
	ErrEmptyEndpoint = errors.New("endpoint cannot be empty")
	// ErrInvalidEndpoint is returned when the text is not an "a.b.c.d:port" socket address.
	ErrInvalidEndpoint = errors.New("invalid endpoint: expected IPv4 address and port")
	// ErrNotIPv4 is returned for socket addresses that are not plain IPv4.
	ErrNotIPv4 = errors.New("invalid endpoint: only IPv4 addresses are supported")
	// ErrZeroPort is returned when the port is 0.
	ErrZeroPort = errors.New("invalid endpoint: port must be between 1 and 65535")
)

// Endpoint is an immutable value object identifying one probe target:
// an IPv4 address and a TCP port.
type Endpoint struct {
	addr netip.AddrPort
}

// NewEndpoint creates an Endpoint from a netip.AddrPort.
// IPv4-mapped IPv6 addresses are rejected rather than unmapped so that the
// printed endpoint is always the literal that was supplied.
func NewEndpoint(addr netip.AddrPort) (Endpoint, error) {
	if !addr.IsValid() {
		return Endpoint{}, ErrInvalidEndpoint
	}
	if !addr.Addr().Is4() {
		return Endpoint{}, ErrNotIPv4
	}
	if addr.Port() == 0 {
		return Endpoint{}, ErrZeroPort
	}
	return Endpoint{addr: addr}, nil
}

// ParseEndpoint parses an "a.b.c.d:port" literal.
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, ErrEmptyEndpoint
	}

	addr, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidEndpoint, s)
	}
	return NewEndpoint(addr)
}

// MustParseEndpoint parses an endpoint or panics.
// Use only for known-valid literals in tests or initialization.
func MustParseEndpoint(s string) Endpoint {
	ep, err := ParseEndpoint(s)
	if err != nil {
		panic(err)
	}
	return ep
}

// AddrPort returns the underlying address and port.
func (e Endpoint) AddrPort() netip.AddrPort {
	return e.addr
}

// Addr returns the IPv4 address.
func (e Endpoint) Addr() netip.Addr {
	return e.addr.Addr()
}

// Port returns the TCP port.
func (e Endpoint) Port() uint16 {
	return e.addr.Port()
}

// IsZero reports whether e is the zero Endpoint.
func (e Endpoint) IsZero() bool {
	return !e.addr.IsValid()
}

// String returns the endpoint as "a.b.c.d:port".
func (e Endpoint) String() string {
	if e.IsZero() {
		return ""
	}
	return e.addr.String()
}

// MarshalText implements encoding.TextMarshaler so endpoints serialize as
// plain socket address strings in JSON reports.
func (e Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Endpoint) UnmarshalText(text []byte) error {
	ep, err := ParseEndpoint(string(text))
	if err != nil {
		return err
	}
	*e = ep
	return nil
}
