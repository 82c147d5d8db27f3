package httputil

import (
	"crypto/tls"
	"net/http"
	"time"
)

// DefaultTransportWithMinTLS12 clones http.DefaultTransport and enforces a
// TLS 1.2+ floor for outbound calls. Shared by every RPC/adapter client so
// the TLS floor is set in exactly one place.
func DefaultTransportWithMinTLS12() http.RoundTripper {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}

	cloned := base.Clone()
	if cloned.TLSClientConfig != nil {
		cloned.TLSClientConfig = cloned.TLSClientConfig.Clone()
		if cloned.TLSClientConfig.MinVersion < tls.VersionTLS12 {
			cloned.TLSClientConfig.MinVersion = tls.VersionTLS12
		}
	} else {
		cloned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return cloned
}

// CopyHTTPClientWithTimeout returns base (or a fresh *http.Client if base is
// nil) configured with timeout. When force is false and base already has a
// non-zero timeout, the existing timeout wins.
func CopyHTTPClientWithTimeout(base *http.Client, timeout time.Duration, force bool) *http.Client {
	if base == nil {
		return &http.Client{Timeout: timeout, Transport: DefaultTransportWithMinTLS12()}
	}
	clone := *base
	if force || clone.Timeout == 0 {
		clone.Timeout = timeout
	}
	if clone.Transport == nil {
		clone.Transport = DefaultTransportWithMinTLS12()
	}
	return &clone
}
