package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcliao/state-sync/internal/config"
)

type fakeWebDAV struct {
	mu      sync.Mutex
	files   map[string]string
	folders map[string]bool
	status  int // forced status for every request when non-zero
}

func (f *fakeWebDAV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != "bob" || pass != "pw" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}

	switch r.Method {
	case "MKCOL":
		if f.folders[r.URL.Path] {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.folders[r.URL.Path] = true
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		v, ok := f.files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, v)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.files[r.URL.Path] = string(body)
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeWebDAV) file(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[path]
}

func (f *fakeWebDAV) hasFolder(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.folders[path]
}

func newTestWebDAV(t *testing.T, password string) (*WebDAV, *fakeWebDAV) {
	t.Helper()
	fake := &fakeWebDAV{files: map[string]string{}, folders: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := config.WebDAVConfig{Endpoint: srv.URL + "/dav", Username: "bob", Password: password}
	return NewWebDAV(cfg, srv.Client(), nil), fake
}

func TestWebDAVCheckCreatesFolder(t *testing.T) {
	ctx := context.Background()
	w, fake := newTestWebDAV(t, "pw")

	require.True(t, w.Check(ctx))
	require.True(t, fake.hasFolder("/dav/chatgpt-next-web"))

	// Second MKCOL answers 405, which still counts as reachable.
	require.True(t, w.Check(ctx))
}

func TestWebDAVCheckUnauthorized(t *testing.T) {
	w, _ := newTestWebDAV(t, "nope")
	require.False(t, w.Check(context.Background()))
}

func TestWebDAVGetMissingFile(t *testing.T) {
	w, _ := newTestWebDAV(t, "pw")
	got, err := w.Get(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestWebDAVSetGet(t *testing.T) {
	ctx := context.Background()
	w, fake := newTestWebDAV(t, "pw")

	require.NoError(t, w.Set(ctx, `{"a":1}`))
	require.Equal(t, `{"a":1}`, fake.file("/dav/chatgpt-next-web/backup.json"))

	got, err := w.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, got)
}

func TestWebDAVServerError(t *testing.T) {
	ctx := context.Background()
	w, fake := newTestWebDAV(t, "pw")
	fake.mu.Lock()
	fake.status = http.StatusInternalServerError
	fake.mu.Unlock()

	_, err := w.Get(ctx)
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, w.Set(ctx, "x"), ErrTransport)
	require.False(t, w.Check(ctx))
}
