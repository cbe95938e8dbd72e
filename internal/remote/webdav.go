package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/state-sync/internal/config"
)

const (
	webdavFolder = "chatgpt-next-web"
	webdavFile   = "backup.json"
)

// methodMkcol creates a WebDAV collection.
const methodMkcol = "MKCOL"

// WebDAV stores the blob as a single file on a WebDAV server.
type WebDAV struct {
	endpoint string
	username string
	password string
	http     Doer
	log      *zap.Logger
}

// NewWebDAV creates a client for the server at cfg.Endpoint.
func NewWebDAV(cfg config.WebDAVConfig, doer Doer, log *zap.Logger) *WebDAV {
	return &WebDAV{
		endpoint: cfg.Endpoint,
		username: cfg.Username,
		password: cfg.Password,
		http:     doer,
		log:      nopIfNil(log).Named("webdav"),
	}
}

// Check ensures the backup folder exists. 405 means it already did.
func (w *WebDAV) Check(ctx context.Context) bool {
	req, err := w.newRequest(ctx, methodMkcol, webdavFolder, "")
	if err != nil {
		w.log.Warn("failed to check", zap.Error(err))
		return false
	}
	status, _, err := do(w.http, req, http.StatusOK, http.StatusCreated, http.StatusMethodNotAllowed)
	if err != nil {
		w.log.Warn("failed to check", zap.Int("status", status), zap.Error(err))
		return false
	}
	w.log.Debug("check", zap.Int("status", status))
	return true
}

// Get downloads the backup file; a missing file yields "".
func (w *WebDAV) Get(ctx context.Context) (string, error) {
	req, err := w.newRequest(ctx, http.MethodGet, webdavFolder+"/"+webdavFile, "")
	if err != nil {
		return "", err
	}
	status, body, err := do(w.http, req, http.StatusOK)
	w.log.Debug("get file", zap.Int("status", status))

	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Set uploads the backup file, replacing any previous one.
func (w *WebDAV) Set(ctx context.Context, value string) error {
	req, err := w.newRequest(ctx, http.MethodPut, webdavFolder+"/"+webdavFile, value)
	if err != nil {
		return err
	}
	status, _, err := do(w.http, req, http.StatusOK, http.StatusCreated, http.StatusNoContent)
	w.log.Debug("put file", zap.Int("status", status), zap.Int("bytes", len(value)))
	return err
}

func (w *WebDAV) newRequest(ctx context.Context, method, path, body string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, joinURL(w.endpoint, path), strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(w.username, w.password)
	return req, nil
}
