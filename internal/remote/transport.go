package remote

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 30 * time.Second

// TransportOptions describes how requests reach the backend.
type TransportOptions struct {
	UseProxy bool
	ProxyURL string
	Timeout  time.Duration
}

// NewHTTPClient returns an HTTP client honoring the proxy settings.
//
// A socks5:// or socks5h:// proxy URL dials every connection through that
// proxy. Any other absolute URL is a relay: a request for
// https://host/path is sent to {proxy}/https/host/path instead. Relative
// proxy URLs cannot be resolved outside a browser and are ignored.
func NewHTTPClient(opts TransportOptions, log *zap.Logger) (*http.Client, error) {
	log = nopIfNil(log)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	if !opts.UseProxy || opts.ProxyURL == "" {
		return client, nil
	}

	u, err := url.Parse(opts.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}

	switch {
	case u.Scheme == "socks5" || u.Scheme == "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks proxy: %w", err)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nil
		transport.DialContext = contextDialer(dialer)
		client.Transport = transport
		log.Debug("using socks proxy", zap.String("proxy", u.Redacted()))
	case u.IsAbs() && u.Host != "":
		client.Transport = &relayTransport{prefix: strings.TrimSuffix(u.String(), "/"), next: http.DefaultTransport}
		log.Debug("using relay proxy", zap.String("proxy", u.Redacted()))
	default:
		log.Warn("ignoring relative proxy url", zap.String("proxy", opts.ProxyURL))
	}
	return client, nil
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

// relayTransport rewrites every request to go through a forwarding relay.
type relayTransport struct {
	prefix string
	next   http.RoundTripper
}

func (t *relayTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	target, err := url.Parse(relayURL(t.prefix, req.URL))
	if err != nil {
		return nil, fmt.Errorf("relay url: %w", err)
	}
	out := req.Clone(req.Context())
	out.URL = target
	out.Host = ""
	return t.next.RoundTrip(out)
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the
// wrapped transport.
func (t *relayTransport) CloseIdleConnections() {
	if c, ok := t.next.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

// relayURL maps https://host/path?q to {prefix}/https/host/path?q.
func relayURL(prefix string, target *url.URL) string {
	s := prefix + "/" + target.Scheme + "/" + target.Host + target.EscapedPath()
	if target.RawQuery != "" {
		s += "?" + target.RawQuery
	}
	return s
}
