package transcriber

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"time"
)

// ConnectMetrics times the phases of opening a streaming connection.
type ConnectMetrics struct {
	DNS       time.Duration
	TCP       time.Duration
	TLS       time.Duration
	Handshake time.Duration
	Total     time.Duration
}

func (m *ConnectMetrics) Sum() time.Duration {
	return m.DNS + m.TCP + m.TLS + m.Handshake
}

// withConnectTrace records into m while the dial runs under the returned
// context. The caller sets Total.
func withConnectTrace(ctx context.Context, m *ConnectMetrics) context.Context {
	var dnsStart, tcpStart, tlsStart, wroteRequest time.Time
	trace := &httptrace.ClientTrace{
		DNSStart:          func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { m.DNS = time.Since(dnsStart) },
		ConnectStart:      func(_, _ string) { tcpStart = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { m.TCP = time.Since(tcpStart) },
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone:  func(tls.ConnectionState, error) { m.TLS = time.Since(tlsStart) },
		WroteRequest:      func(httptrace.WroteRequestInfo) { wroteRequest = time.Now() },
		GotFirstResponseByte: func() {
			if !wroteRequest.IsZero() {
				m.Handshake = time.Since(wroteRequest)
			}
		},
	}
	return httptrace.WithClientTrace(ctx, trace)
}
