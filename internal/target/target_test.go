package target

import (
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/rdpscan/internal/model"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("reads endpoints in order", func(t *testing.T) {
		t.Parallel()

		input := "192.0.2.1:3389\n\n# office\n  192.0.2.2:3390  \r\n192.0.2.1:3389\n"
		eps, err := Load(strings.NewReader(input))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"192.0.2.1:3389", "192.0.2.2:3390", "192.0.2.1:3389"}
		if len(eps) != len(want) {
			t.Fatalf("expected %d endpoints, got %d", len(want), len(eps))
		}
		for i, ep := range eps {
			if ep.String() != want[i] {
				t.Errorf("endpoint %d: expected %s, got %s", i, want[i], ep)
			}
		}
	})

	t.Run("list without endpoints", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name  string
			input string
		}{
			{name: "empty", input: ""},
			{name: "blank lines", input: "\n  \n\r\n"},
			{name: "comments only", input: "# nothing\n\n# here\n"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				eps, err := Load(strings.NewReader(tt.input))
				if !errors.Is(err, ErrNoTargets) {
					t.Errorf("expected ErrNoTargets, got %v", err)
				}
				if eps != nil {
					t.Errorf("expected nil endpoints, got %v", eps)
				}
			})
		}
	})

	t.Run("malformed line aborts with line number", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name  string
			input string
			line  int
		}{
			{name: "hostname", input: "192.0.2.1:3389\nexample.com:3389\n", line: 2},
			{name: "missing port", input: "192.0.2.1\n", line: 1},
			{name: "ipv6", input: "# c\n\n[2001:db8::1]:3389\n", line: 3},
			{name: "zero port", input: "192.0.2.1:0\n", line: 1},
			{name: "port out of range", input: "192.0.2.1:70000\n", line: 1},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				_, err := Load(strings.NewReader(tt.input))
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("expected *ParseError, got %v", err)
				}
				if pe.Line != tt.line {
					t.Errorf("expected line %d, got %d", tt.line, pe.Line)
				}
				if !strings.Contains(pe.Error(), "line ") {
					t.Errorf("unexpected message %q", pe.Error())
				}
			})
		}
	})

	t.Run("parse error unwraps to model sentinel", func(t *testing.T) {
		t.Parallel()

		_, err := Load(strings.NewReader("not-an-endpoint\n"))
		if !errors.Is(err, model.ErrInvalidEndpoint) {
			t.Errorf("expected ErrInvalidEndpoint, got %v", err)
		}
	})
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	t.Run("reads file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "targets.txt")
		if err := os.WriteFile(path, []byte("192.0.2.10:3389\n192.0.2.11:3389\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		eps, err := LoadFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(eps) != 2 {
			t.Errorf("expected 2 endpoints, got %d", len(eps))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.txt"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})

	t.Run("error names the file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.txt")
		if err := os.WriteFile(path, []byte("bad\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		_, err := LoadFile(path)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("expected *ParseError, got %v", err)
		}
		if !strings.Contains(err.Error(), path) {
			t.Errorf("expected error to name %s, got %v", path, err)
		}
	})
}

func TestParsePrefixes(t *testing.T) {
	t.Parallel()

	t.Run("prefixes and addresses", func(t *testing.T) {
		t.Parallel()

		got, err := ParsePrefixes([]string{"10.0.0.0/8", " 192.0.2.5 ", "", "198.51.100.77/24"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []netip.Prefix{
			netip.MustParsePrefix("10.0.0.0/8"),
			netip.MustParsePrefix("192.0.2.5/32"),
			netip.MustParsePrefix("198.51.100.0/24"),
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d prefixes, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("prefix %d: expected %s, got %s", i, want[i], got[i])
			}
		}
	})

	t.Run("invalid entries", func(t *testing.T) {
		t.Parallel()

		for _, entry := range []string{"10.0.0.0/33", "not-an-ip", "10.0.0/8"} {
			if _, err := ParsePrefixes([]string{entry}); err == nil {
				t.Errorf("expected error for %q", entry)
			}
		}
	})
}

func TestFilter(t *testing.T) {
	t.Parallel()

	eps := []model.Endpoint{
		model.MustParseEndpoint("10.1.2.3:3389"),
		model.MustParseEndpoint("192.0.2.5:3389"),
		model.MustParseEndpoint("192.0.2.6:3389"),
		model.MustParseEndpoint("198.51.100.1:3389"),
	}

	t.Run("no prefixes keeps everything", func(t *testing.T) {
		t.Parallel()

		if got := Filter(eps, nil); len(got) != len(eps) {
			t.Errorf("expected %d endpoints, got %d", len(eps), len(got))
		}
	})

	t.Run("removes covered endpoints in order", func(t *testing.T) {
		t.Parallel()

		exclude := []netip.Prefix{
			netip.MustParsePrefix("10.0.0.0/8"),
			netip.MustParsePrefix("192.0.2.5/32"),
		}
		got := Filter(eps, exclude)

		want := []string{"192.0.2.6:3389", "198.51.100.1:3389"}
		if len(got) != len(want) {
			t.Fatalf("expected %d endpoints, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i].String() != want[i] {
				t.Errorf("endpoint %d: expected %s, got %s", i, want[i], got[i])
			}
		}
		if len(eps) != 4 || eps[0].String() != "10.1.2.3:3389" {
			t.Error("input slice was modified")
		}
	})
}
