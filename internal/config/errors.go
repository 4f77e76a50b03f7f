package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so that callers can use
// errors.Is() while users still get a readable message.
var (
	// ErrNoInput is returned when no target list is given.
	ErrNoInput = errors.New("no target list specified: use --input FILE (or - for stdin)")

	// ErrInvalidRate is returned when the rate is not positive.
	ErrInvalidRate = errors.New("invalid rate: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A zero timeout would make every probe fail immediately.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidProxy is returned when the proxy is not a socks5:// URL with a host.
	ErrInvalidProxy = errors.New("invalid proxy: expected socks5://[user:pass@]host:port")

	// ErrInvalidExclude is returned when an exclude entry is neither a CIDR
	// prefix nor an IPv4 address.
	ErrInvalidExclude = errors.New("invalid exclude entry")
)
