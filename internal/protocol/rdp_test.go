package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/rdpscan/internal/model"
)

// frame builds a 19-byte confirm frame with the given negotiation type and code.
func frame(negType, code byte) []byte {
	return []byte{
		0x03, 0x00, 0x00, 0x13,
		0x0e,
		0xd0, 0x00, 0x00, 0x12, 0x34, 0x00,
		negType, 0x00,
		0x08, 0x00,
		code, 0x00, 0x00, 0x00,
	}
}

func TestRequest(t *testing.T) {
	t.Parallel()

	want := []byte{
		0x03, 0x00, 0x00, 0x13, 0x0e, 0xe0, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x01, 0x00, 0x08, 0x00, 0x0b, 0x00, 0x00, 0x00,
	}

	t.Run("matches the wire bytes", func(t *testing.T) {
		t.Parallel()

		if got := Request(); !bytes.Equal(got, want) {
			t.Errorf("Request() = % x, want % x", got, want)
		}
	})

	t.Run("returns a copy", func(t *testing.T) {
		t.Parallel()

		got := Request()
		got[0] = 0xff
		if Request()[0] != 0x03 {
			t.Error("mutating the returned slice changed the request frame")
		}
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	withByte := func(b []byte, offset int, v byte) []byte {
		c := append([]byte(nil), b...)
		c[offset] = v
		return c
	}

	tests := []struct {
		name string
		resp []byte
		want model.ErrorKind
	}{
		{name: "negotiation response", resp: frame(0x02, 0x00), want: model.KindNone},
		{name: "negotiation response ignores code", resp: frame(0x02, 0x7f), want: model.KindNone},
		{name: "ssl required failure is alive", resp: frame(0x03, 0x01), want: model.KindNone},
		{name: "ssl not allowed failure is alive", resp: frame(0x03, 0x02), want: model.KindNone},
		{name: "hybrid required failure is alive", resp: frame(0x03, 0x05), want: model.KindNone},
		{name: "cert not on server", resp: frame(0x03, 0x03), want: model.KindNegotiationFailure},
		{name: "inconsistent flags", resp: frame(0x03, 0x04), want: model.KindNegotiationFailure},
		{name: "ssl with user auth required", resp: frame(0x03, 0x06), want: model.KindNegotiationFailure},
		{name: "unknown failure code", resp: frame(0x03, 0x00), want: model.KindNegotiationFailure},
		{name: "unknown negotiation type", resp: frame(0x01, 0x00), want: model.KindWrongProtocol},
		{name: "zero negotiation type", resp: frame(0x00, 0x00), want: model.KindWrongProtocol},
		{name: "wrong tpkt version", resp: withByte(frame(0x02, 0), 0, 0x16), want: model.KindWrongProtocol},
		{name: "not a connection confirm", resp: withByte(frame(0x02, 0), 5, 0xe0), want: model.KindWrongProtocol},
		{name: "empty", resp: nil, want: model.KindShortResponse},
		{name: "one byte short", resp: frame(0x02, 0)[:18], want: model.KindShortResponse},
		{name: "short garbage", resp: []byte("SSH-2.0"), want: model.KindShortResponse},
		{name: "http banner", resp: []byte("HTTP/1.1 400 Bad Request\r\n\r\n"), want: model.KindWrongProtocol},
		{name: "trailing bytes are ignored", resp: append(frame(0x02, 0), 0xde, 0xad), want: model.KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := Classify(tt.resp)
			if v.Kind != tt.want {
				t.Errorf("Classify() kind = %v, want %v", v.Kind, tt.want)
			}
			if v.Alive() != (tt.want == model.KindNone) {
				t.Errorf("Alive() = %v, want %v", v.Alive(), tt.want == model.KindNone)
			}
		})
	}
}

func TestClassifyLengthBoundary(t *testing.T) {
	t.Parallel()

	// Any prefix of a valid frame shorter than 19 bytes is short, regardless of content.
	full := frame(0x02, 0x00)
	for n := 0; n < MinFrameSize; n++ {
		if got := Classify(full[:n]).Kind; got != model.KindShortResponse {
			t.Errorf("len %d: kind = %v, want %v", n, got, model.KindShortResponse)
		}
	}
}

func TestClassifyNegotiationTypes(t *testing.T) {
	t.Parallel()

	// Exhaustive over the negotiation type byte with a valid frame otherwise.
	for b := 0; b <= 0xff; b++ {
		got := Classify(frame(byte(b), 0x00)).Kind
		var want model.ErrorKind
		switch byte(b) {
		case NegotiationResponse:
			want = model.KindNone
		case NegotiationFailure:
			want = model.KindNegotiationFailure
		default:
			want = model.KindWrongProtocol
		}
		if got != want {
			t.Errorf("negotiation type 0x%02x: kind = %v, want %v", b, got, want)
		}
	}
}

func TestClassifyFailureCodes(t *testing.T) {
	t.Parallel()

	for c := 0; c <= 0xff; c++ {
		got := Classify(frame(NegotiationFailure, byte(c))).Kind
		want := model.KindNegotiationFailure
		if c == 1 || c == 2 || c == 5 {
			want = model.KindNone
		}
		if got != want {
			t.Errorf("failure code 0x%02x: kind = %v, want %v", c, got, want)
		}
	}
}

func TestClassifyDoesNotModifyInput(t *testing.T) {
	t.Parallel()

	resp := frame(0x03, 0x03)
	orig := append([]byte(nil), resp...)
	_ = Classify(resp)
	if !bytes.Equal(resp, orig) {
		t.Error("Classify modified its input")
	}
}

func TestVerdictErr(t *testing.T) {
	t.Parallel()

	t.Run("alive has no error", func(t *testing.T) {
		t.Parallel()

		if err := Classify(frame(0x02, 0)).Err(); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("negotiation failure names the code", func(t *testing.T) {
		t.Parallel()

		err := Classify(frame(0x03, 0x06)).Err()
		if !errors.Is(err, model.ErrNegotiationFailure) {
			t.Fatalf("expected ErrNegotiationFailure, got %v", err)
		}
		if !strings.Contains(err.Error(), "SSL_WITH_USER_AUTH_REQUIRED_BY_SERVER") {
			t.Errorf("error %q does not name the failure code", err)
		}
	})

	t.Run("wrong protocol names the negotiation type", func(t *testing.T) {
		t.Parallel()

		err := Classify(frame(0x09, 0)).Err()
		if !errors.Is(err, model.ErrWrongProtocol) {
			t.Fatalf("expected ErrWrongProtocol, got %v", err)
		}
		if !strings.Contains(err.Error(), "0x09") {
			t.Errorf("error %q does not name the negotiation type", err)
		}
	})

	t.Run("short response", func(t *testing.T) {
		t.Parallel()

		if err := Classify(nil).Err(); !errors.Is(err, model.ErrShortResponse) {
			t.Errorf("expected ErrShortResponse, got %v", err)
		}
	})
}

func TestFailureCodeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code byte
		want string
	}{
		{code: FailureSSLRequired, want: "SSL_REQUIRED_BY_SERVER"},
		{code: FailureSSLNotAllowed, want: "SSL_NOT_ALLOWED_BY_SERVER"},
		{code: FailureSSLCertNotOnServer, want: "SSL_CERT_NOT_ON_SERVER"},
		{code: FailureInconsistentFlags, want: "INCONSISTENT_FLAGS"},
		{code: FailureHybridRequired, want: "HYBRID_REQUIRED_BY_SERVER"},
		{code: FailureSSLWithUserAuthRequired, want: "SSL_WITH_USER_AUTH_REQUIRED_BY_SERVER"},
		{code: 0x00, want: "UNKNOWN_FAILURE_0x00"},
		{code: 0xab, want: "UNKNOWN_FAILURE_0xab"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if got := FailureCodeName(tt.code); got != tt.want {
				t.Errorf("FailureCodeName(0x%02x) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}
