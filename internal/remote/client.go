// Package remote talks to the backends that hold the synced state blob.
//
// Every backend implements Client. The chunked KV backend (Upstash) splits
// values larger than its per-key limit across several keys; the WebDAV
// backend stores the blob as a single file.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/state-sync/internal/config"
)

// Sentinel errors for remote failures.
var (
	ErrTransport    = errors.New("remote transport failure")
	ErrUnauthorized = errors.New("remote unauthorized")
	ErrChunkMissing = errors.New("remote chunk missing")
	ErrChunkCount   = errors.New("remote chunk count out of range")
)

// Client is the contract every backend implements.
type Client interface {
	// Check probes the backend. It never fails; problems report false.
	Check(ctx context.Context) bool
	// Get returns the stored blob, or "" when nothing has been stored.
	Get(ctx context.Context) (string, error)
	// Set replaces the stored blob.
	Set(ctx context.Context, value string) error
}

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when the backend answers with an unexpected
// status code.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap lets errors.Is match ErrTransport, plus ErrUnauthorized for
// 401 and 403 answers.
func (e *StatusError) Unwrap() []error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return []error{ErrTransport, ErrUnauthorized}
	}
	return []error{ErrTransport}
}

// New returns the client for the configured provider.
func New(cfg *config.Config, doer Doer, log *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderUpstash:
		return NewUpstash(cfg.Upstash, doer, log), nil
	case config.ProviderWebDAV:
		return NewWebDAV(cfg.WebDAV, doer, log), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// Open builds the HTTP transport described by cfg and returns the client
// for the configured provider.
func Open(cfg *config.Config, log *zap.Logger) (Client, error) {
	httpClient, err := NewHTTPClient(TransportOptions{
		UseProxy: cfg.UseProxy,
		ProxyURL: cfg.ProxyURL,
	}, log)
	if err != nil {
		return nil, err
	}
	return New(cfg, httpClient, log)
}

// joinURL joins endpoint and path with exactly one slash between them.
func joinURL(endpoint, path string) string {
	return strings.TrimSuffix(endpoint, "/") + "/" + strings.TrimPrefix(path, "/")
}

// do sends req and returns the response body. Statuses not listed in ok
// produce a *StatusError.
func do(doer Doer, req *http.Request, ok ...int) (int, []byte, error) {
	resp, err := doer.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	for _, code := range ok {
		if resp.StatusCode == code {
			return resp.StatusCode, body, nil
		}
	}
	return resp.StatusCode, body, &StatusError{
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		StatusCode: resp.StatusCode,
		Body:       truncate(strings.TrimSpace(string(body)), 200),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
