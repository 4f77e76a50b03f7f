package protocol

import (
	"fmt"

	"github.com/nao1215/rdpscan/internal/model"
)

// Frame layout of the X.224 Connection Confirm carrying an RDP negotiation
// structure ([MS-RDPBCGR] 2.2.1.2). Offsets are relative to the TPKT header.
const (
	// MinFrameSize is the length of a TPKT header, an X.224 CC TPDU and an
	// 8-byte RDP_NEG_RSP / RDP_NEG_FAILURE.
	MinFrameSize = 19

	// ResponseBufferSize is the capacity of the single read performed per probe.
	ResponseBufferSize = 64

	offsetTPKTVersion     = 0
	offsetX224Code        = 5
	offsetNegotiationType = 11
	offsetNegotiationCode = 15

	tpktVersion           byte = 0x03
	x224ConnectionConfirm byte = 0xd0

	// NegotiationResponse is the RDP_NEG_RSP type byte.
	NegotiationResponse byte = 0x02
	// NegotiationFailure is the RDP_NEG_FAILURE type byte.
	NegotiationFailure byte = 0x03
)

// request is the 19-byte X.224 Connection Request sent to every endpoint:
//
//	03 00 00 13        TPKT version 3, length 19
//	0e                 X.224 length indicator
//	e0 00 00 00 00 00  X.224 CR TPDU
//	01 00 08 00        RDP_NEG_REQ type 1, flags 0, length 8
//	0b 00 00 00        requestedProtocols SSL | HYBRID | HYBRID_EX
var request = [MinFrameSize]byte{
	0x03, 0x00, 0x00, 0x13,
	0x0e,
	0xe0, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00,
	0x08, 0x00,
	0x0b, 0x00, 0x00, 0x00,
}

// Request returns a copy of the connection request frame.
func Request() []byte {
	b := request
	return b[:]
}

// RDP_NEG_FAILURE failure codes.
const (
	FailureSSLRequired             byte = 0x01
	FailureSSLNotAllowed           byte = 0x02
	FailureSSLCertNotOnServer      byte = 0x03
	FailureInconsistentFlags       byte = 0x04
	FailureHybridRequired          byte = 0x05
	FailureSSLWithUserAuthRequired byte = 0x06
)

// benignFailures are failure codes sent by servers that run RDP but declined
// the requested security protocol. Such endpoints are reported as alive.
var benignFailures = map[byte]bool{
	FailureSSLRequired:    true,
	FailureSSLNotAllowed:  true,
	FailureHybridRequired: true,
}

var failureCodeNames = map[byte]string{
	FailureSSLRequired:             "SSL_REQUIRED_BY_SERVER",
	FailureSSLNotAllowed:           "SSL_NOT_ALLOWED_BY_SERVER",
	FailureSSLCertNotOnServer:      "SSL_CERT_NOT_ON_SERVER",
	FailureInconsistentFlags:       "INCONSISTENT_FLAGS",
	FailureHybridRequired:          "HYBRID_REQUIRED_BY_SERVER",
	FailureSSLWithUserAuthRequired: "SSL_WITH_USER_AUTH_REQUIRED_BY_SERVER",
}

// FailureCodeName returns the protocol name of an RDP_NEG_FAILURE code.
func FailureCodeName(code byte) string {
	if name, ok := failureCodeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_FAILURE_0x%02x", code)
}

// Verdict is the classifier's decision for one response.
type Verdict struct {
	// Kind is model.KindNone when the response confirms RDP.
	Kind model.ErrorKind

	// Negotiation is the byte at offset 11, or 0 if the frame was rejected earlier.
	Negotiation byte

	// Code is the byte at offset 15, or 0 if the frame was rejected earlier.
	Code byte
}

// Alive reports whether the verdict confirms the endpoint.
func (v Verdict) Alive() bool {
	return v.Kind == model.KindNone
}

// Err returns the sentinel error for the verdict, decorated with the failure
// code for negotiation failures.
func (v Verdict) Err() error {
	switch v.Kind {
	case model.KindNone:
		return nil
	case model.KindNegotiationFailure:
		return fmt.Errorf("%w: %s", model.ErrNegotiationFailure, FailureCodeName(v.Code))
	case model.KindWrongProtocol:
		if v.Negotiation != 0 {
			return fmt.Errorf("%w: unexpected negotiation type 0x%02x", model.ErrWrongProtocol, v.Negotiation)
		}
		return model.ErrWrongProtocol
	default:
		return v.Kind.Err()
	}
}

// marker is one fixed-offset byte that must be present in a confirm frame.
type marker struct {
	offset int
	want   byte
}

// frameMarkers are checked in order before the negotiation structure is read.
var frameMarkers = []marker{
	{offset: offsetTPKTVersion, want: tpktVersion},
	{offset: offsetX224Code, want: x224ConnectionConfirm},
}

// negotiationRules maps the negotiation type byte to a verdict given the code byte.
var negotiationRules = map[byte]func(code byte) model.ErrorKind{
	NegotiationResponse: func(byte) model.ErrorKind {
		return model.KindNone
	},
	NegotiationFailure: func(code byte) model.ErrorKind {
		if benignFailures[code] {
			return model.KindNone
		}
		return model.KindNegotiationFailure
	},
}

// Classify decides whether resp is an RDP connection confirm.
// It has no side effects and does not retain resp.
func Classify(resp []byte) Verdict {
	if len(resp) < MinFrameSize {
		return Verdict{Kind: model.KindShortResponse}
	}

	for _, m := range frameMarkers {
		if resp[m.offset] != m.want {
			return Verdict{Kind: model.KindWrongProtocol}
		}
	}

	v := Verdict{
		Negotiation: resp[offsetNegotiationType],
		Code:        resp[offsetNegotiationCode],
	}

	rule, ok := negotiationRules[v.Negotiation]
	if !ok {
		v.Kind = model.KindWrongProtocol
		return v
	}
	v.Kind = rule(v.Code)
	return v
}
