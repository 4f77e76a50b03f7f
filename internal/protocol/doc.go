// Package protocol implements the RDP connection probe.
//
// # Architecture
//
// The package is split into two parts:
//   - Classify: a pure function that decides whether a server response is an
//     RDP X.224 Connection Confirm.
//   - Prober: performs one TCP round trip per endpoint (connect, send the
//     19-byte Connection Request, read once) and reports a model.Outcome.
//
// Classify has no I/O and can be tested byte by byte. The Prober never retries;
// a failed probe is reported once with its model.ErrorKind.
//
// # Wire Format
//
// The request is a TPKT header, an X.224 Connection Request TPDU and an
// RDP_NEG_REQ asking for SSL, HYBRID and HYBRID_EX:
//
//	03 00 00 13 0e e0 00 00 00 00 00 01 00 08 00 0b 00 00 00
//
// A response is accepted when it is at least 19 bytes, starts with TPKT
// version 3 and carries the Connection Confirm code 0xd0 at offset 5. The
// negotiation type at offset 11 must be RDP_NEG_RSP (0x02), or
// RDP_NEG_FAILURE (0x03) with failure code 1, 2 or 5 at offset 15.
//
// # Usage
//
//	p := protocol.NewProber(protocol.WithTimeout(5 * time.Second))
//	out := p.Probe(ctx, model.MustParseEndpoint("192.0.2.10:3389"))
//	if out.Alive() {
//		fmt.Println(out.Endpoint)
//	}
//
// Connections can be routed through a SOCKS5 proxy with NewDialer and WithDialer.
//
// # Security Considerations
//
// The probe stops after the negotiation response. It never starts TLS or
// CredSSP and never sends credentials to the target.
package protocol
