package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/rdpscan/internal/target"
)

// Default configuration values.
const (
	// DefaultRate is the maximum number of probes in flight.
	// 100 keeps well below the default open file limit of most systems
	// while saturating typical uplinks for a 19-byte probe.
	DefaultRate = 100

	// DefaultTimeout bounds each network operation of a probe: connect,
	// write and read are each given this much time.
	DefaultTimeout = 10 * time.Second

	// AppName is the application name used for XDG directory paths.
	AppName = "rdpscan"
)

// Config holds all configuration options for rdpscan.
// This struct is populated from CLI flags and the optional config file and
// passed through the application rather than kept as global state.
type Config struct {
	// InputFile is the target list: one "a.b.c.d:port" per line.
	// "-" reads the list from standard input.
	InputFile string

	// Rate is the maximum number of concurrent probes.
	// It bounds concurrency, not requests per second.
	Rate int

	// Timeout is applied to each network operation of a probe individually.
	Timeout time.Duration

	// Verbose enables one diagnostic line per probe on stderr and hides
	// the progress bar.
	Verbose bool

	// Proxy routes probes through a SOCKS5 proxy ("socks5://host:port").
	// Credentials may be given as userinfo. Empty means direct connections.
	Proxy string

	// Exclude lists CIDR prefixes or IPv4 addresses that are removed from
	// the target list before scanning.
	Exclude []string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .rdpscan in the current directory,
	// the user's home directory and the XDG config directory.
	ConfigFilePath string

	// JSONReport writes the end-of-run summary as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport writes the end-of-run summary as Markdown.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the summary report.
	// When empty, no summary report is written unless a format flag is set,
	// in which case it goes to stderr.
	ReportFile string

	// DBDir is the directory path for storing the SQLite history database.
	// Defaults to XDG data directory (~/.local/share/rdpscan on Linux).
	DBDir string

	// SaveToDB records each run in the history database.
	SaveToDB bool

	// NoProgress hides the progress bar even on a terminal.
	NoProgress bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Rate:     DefaultRate,
		Timeout:  DefaultTimeout,
		DBDir:    XDGDataDir(),
		SaveToDB: true,
	}
}

// XDGDataDir returns the XDG data directory for rdpscan.
// On Linux: ~/.local/share/rdpscan
// On macOS: ~/Library/Application Support/rdpscan
// On Windows: %LOCALAPPDATA%\rdpscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for rdpscan.
// On Linux: ~/.config/rdpscan
// On macOS: ~/Library/Application Support/rdpscan
// On Windows: %APPDATA%\rdpscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found, as a sentinel error that callers can
// match with errors.Is. Validation runs once after flag parsing, before the
// target list is read.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return ErrNoInput
	}

	if c.Rate <= 0 {
		return ErrInvalidRate
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.Proxy != "" {
		if err := validateProxy(c.Proxy); err != nil {
			return err
		}
	}

	if _, err := target.ParsePrefixes(c.Exclude); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExclude, err)
	}

	return nil
}

// validateProxy checks the proxy URL shape.
func validateProxy(proxy string) error {
	u, err := url.Parse(proxy)
	if err != nil || u.Host == "" {
		return ErrInvalidProxy
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return ErrInvalidProxy
	}
	return nil
}

// WantsReport reports whether an end-of-run summary report should be written.
func (c *Config) WantsReport() bool {
	return c.ReportFile != "" || c.JSONReport || c.MarkdownReport
}
