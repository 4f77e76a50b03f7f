package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"
	"time"

	"github.com/nao1215/rdpscan/internal/model"
	"golang.org/x/net/proxy"
)

// DefaultTimeout bounds each network operation of a probe.
const DefaultTimeout = 10 * time.Second

// Proxy errors.
var (
	// ErrInvalidProxyURL is returned when the proxy URL cannot be parsed.
	ErrInvalidProxyURL = errors.New("invalid proxy url")
	// ErrUnsupportedProxy is returned for proxy schemes other than socks5/socks5h.
	ErrUnsupportedProxy = errors.New("unsupported proxy scheme: expected socks5:// or socks5h://")
)

// Prober performs the RDP negotiation round trip against one endpoint.
// A Prober holds no per-probe state and is safe for concurrent use.
type Prober struct {
	// dialer establishes TCP connections, directly or through a SOCKS5 proxy.
	dialer proxy.ContextDialer

	// timeout bounds connect, write and read individually.
	timeout time.Duration
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithTimeout sets the per-operation timeout. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) ProberOption {
	return func(p *Prober) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithDialer sets the dialer used to reach endpoints.
// net.Dialer and the dialers returned by NewDialer both satisfy proxy.ContextDialer.
func WithDialer(dialer proxy.ContextDialer) ProberOption {
	return func(p *Prober) {
		if dialer != nil {
			p.dialer = dialer
		}
	}
}

// NewProber creates a Prober that dials directly with DefaultTimeout.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		dialer:  &net.Dialer{},
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Timeout returns the per-operation timeout.
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// NewDialer returns a direct dialer when proxyURL is empty, or a SOCKS5
// dialer for socks5:// and socks5h:// URLs. Credentials in the URL are used
// for SOCKS5 username/password authentication.
func NewDialer(proxyURL string) (proxy.ContextDialer, error) {
	direct := &net.Dialer{}
	if proxyURL == "" {
		return direct, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		return nil, ErrInvalidProxyURL
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, ErrUnsupportedProxy
	}

	d, err := proxy.FromURL(u, direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, ErrUnsupportedProxy
	}
	return cd, nil
}

// Probe connects to ep, sends the connection request, reads one response and
// classifies it. Every failure is reported in the returned Outcome; Probe
// never retries.
//
// Cancelling ctx aborts the probe at its current step.
func (p *Prober) Probe(ctx context.Context, ep model.Endpoint) model.Outcome {
	start := time.Now()
	out := model.Outcome{Endpoint: ep}

	p.probe(ctx, &out)

	out.Elapsed = time.Since(start)
	return out
}

// probe runs the round trip and fills out.
func (p *Prober) probe(ctx context.Context, out *model.Outcome) {
	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	conn, err := p.dialer.DialContext(dialCtx, "tcp", out.Endpoint.String())
	cancel()
	if err != nil {
		out.Kind = model.KindConnectFailure
		out.TimedOut = isTimeout(err)
		out.Err = fmt.Errorf("%w: %w", model.ErrConnectFailure, err)
		return
	}
	defer conn.Close()

	// Unblock a pending write or read when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now()) //nolint:errcheck // best effort
	})
	defer stop()

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true) //nolint:errcheck // latency tweak only
	}

	if err := conn.SetWriteDeadline(time.Now().Add(p.timeout)); err != nil {
		setIOError(out, model.KindIOFailure, err)
		return
	}
	if _, err := conn.Write(request[:]); err != nil {
		setIOError(out, writeErrorKind(err), err)
		return
	}

	buf := make([]byte, ResponseBufferSize)
	if err := conn.SetReadDeadline(time.Now().Add(p.timeout)); err != nil {
		setIOError(out, model.KindIOFailure, err)
		return
	}
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		setIOError(out, readErrorKind(err), err)
		return
	}

	// A zero-byte read is not a failure by itself; the classifier rejects it.
	if n > 0 {
		out.Response = append([]byte(nil), buf[:n]...)
	}

	v := Classify(buf[:n])
	out.Kind = v.Kind
	out.Negotiation = v.Negotiation
	out.Code = v.Code
	out.Err = v.Err()
}

// setIOError records a write/read failure of the given kind.
func setIOError(out *model.Outcome, kind model.ErrorKind, err error) {
	out.Kind = kind
	out.TimedOut = kind == model.KindConnectFailure && isTimeout(err)
	out.Err = fmt.Errorf("%w: %w", kind.Err(), err)
}

// writeErrorKind maps a write error to a kind. A peer reset surfaces here
// when the server drops the connection right after accepting it.
func writeErrorKind(err error) model.ErrorKind {
	if isConnectionReset(err) {
		return model.KindConnectFailure
	}
	return model.KindIOFailure
}

// readErrorKind maps a read error to a kind.
func readErrorKind(err error) model.ErrorKind {
	switch {
	case isTimeout(err):
		return model.KindReadTimeout
	case isConnectionReset(err):
		return model.KindConnectFailure
	default:
		return model.KindIOFailure
	}
}

// isTimeout reports whether err is a deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isConnectionReset reports whether err means the peer tore the connection down.
func isConnectionReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}
