// Package target loads and filters the list of endpoints to probe.
//
// A target list has one IPv4 socket address per line. Blank lines and lines
// starting with '#' are skipped. The whole list is validated before any
// probe starts: the first malformed line aborts loading.
package target

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/rdpscan/internal/model"
)

// Stdin is the file name that makes LoadFile read standard input.
const Stdin = "-"

// ErrNoTargets is returned when a list contains no endpoints.
var ErrNoTargets = errors.New("target list contains no endpoints")

// ParseError reports a malformed line in a target list.
type ParseError struct {
	// Line is the 1-based line number.
	Line int

	// Text is the offending line, trimmed.
	Text string

	// Err is the underlying parse error.
	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads endpoints from r in input order. Duplicates are kept; each
// line is one probe.
func Load(r io.Reader) ([]model.Endpoint, error) {
	var eps []model.Endpoint

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ep, err := model.ParseEndpoint(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: line, Err: err}
		}
		eps = append(eps, ep)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}
	if len(eps) == 0 {
		return nil, ErrNoTargets
	}

	return eps, nil
}

// LoadFile reads endpoints from path, or from os.Stdin when path is "-".
func LoadFile(path string) ([]model.Endpoint, error) {
	if path == Stdin {
		return Load(os.Stdin)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open target list: %w", err)
	}
	defer f.Close()

	eps, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return eps, nil
}

// ParsePrefixes parses exclusion entries. Each entry is a CIDR prefix or a
// single IPv4 address, which is treated as a /32.
func ParsePrefixes(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid exclude prefix %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude address %q: %w", entry, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Filter returns the endpoints whose address is not covered by any prefix,
// preserving order. The input slice is not modified.
func Filter(eps []model.Endpoint, exclude []netip.Prefix) []model.Endpoint {
	if len(exclude) == 0 {
		return eps
	}

	kept := make([]model.Endpoint, 0, len(eps))
	for _, ep := range eps {
		if !excluded(ep.Addr(), exclude) {
			kept = append(kept, ep)
		}
	}
	return kept
}

// excluded reports whether addr falls in any prefix.
func excluded(addr netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
