package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/state-sync/internal/chunker"
	"github.com/rcliao/state-sync/internal/config"
)

const (
	// fetchConcurrency caps parallel chunk reads and deletes.
	fetchConcurrency = 8
	// maxChunkCount bounds the chunks of one value, about 1 GiB at the
	// default chunk size.
	maxChunkCount = 1024
)

// Upstash stores the blob in an Upstash Redis database through its REST
// API. The value is split into chunks of at most chunkSize bytes:
//
//	{storeKey}-chunk-0 .. {storeKey}-chunk-{n-1}
//	{storeKey}-chunk-count = n
//
// The count key is written last, so a reader that sees a count can rely on
// every chunk it references being present.
type Upstash struct {
	endpoint  string
	apiKey    string
	storeKey  string
	chunkSize int
	http      Doer
	log       *zap.Logger
}

// UpstashOption configures an Upstash client.
type UpstashOption func(*Upstash)

// WithChunkSize overrides the per-key size limit.
func WithChunkSize(n int) UpstashOption {
	return func(u *Upstash) {
		if n > 0 {
			u.chunkSize = n
		}
	}
}

// NewUpstash creates a client for the database at cfg.Endpoint. An empty
// username falls back to config.DefaultStoreKey.
func NewUpstash(cfg config.UpstashConfig, doer Doer, log *zap.Logger, opts ...UpstashOption) *Upstash {
	storeKey := cfg.Username
	if storeKey == "" {
		storeKey = config.DefaultStoreKey
	}
	u := &Upstash{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		storeKey:  storeKey,
		chunkSize: chunker.DefaultMaxSize,
		http:      doer,
		log:       nopIfNil(log).Named("upstash"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// StoreKey returns the key prefix this client reads and writes.
func (u *Upstash) StoreKey() string { return u.storeKey }

func (u *Upstash) chunkCountKey() string { return u.storeKey + "-chunk-count" }

func (u *Upstash) chunkKey(i int) string { return u.storeKey + "-chunk-" + strconv.Itoa(i) }

// Check probes the store key; only a 200 answer counts as reachable.
func (u *Upstash) Check(ctx context.Context) bool {
	req, err := u.newRequest(ctx, http.MethodGet, "get/"+url.PathEscape(u.storeKey), "")
	if err != nil {
		u.log.Warn("failed to check", zap.Error(err))
		return false
	}
	status, _, err := do(u.http, req, http.StatusOK)
	if err != nil {
		u.log.Warn("failed to check", zap.Int("status", status), zap.Error(err))
		return false
	}
	u.log.Debug("check", zap.Int("status", status))
	return true
}

// Get reassembles the stored value. A missing or non-numeric chunk count
// means nothing has been stored yet and yields "". Any failed chunk read
// fails the whole call.
func (u *Upstash) Get(ctx context.Context) (string, error) {
	raw, ok, err := u.redisGet(ctx, u.chunkCountKey())
	if err != nil {
		return "", fmt.Errorf("read chunk count: %w", err)
	}
	if !ok {
		return "", nil
	}
	count, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || count < 0 {
		u.log.Debug("ignoring invalid chunk count", zap.String("value", raw))
		return "", nil
	}
	if count == 0 {
		return "", nil
	}
	if count > maxChunkCount {
		return "", fmt.Errorf("%w: %d", ErrChunkCount, count)
	}

	chunks := make([]string, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i := range count {
		g.Go(func() error {
			v, ok, err := u.redisGet(gctx, u.chunkKey(i))
			if err != nil {
				return fmt.Errorf("read chunk %d: %w", i, err)
			}
			if !ok {
				return fmt.Errorf("%w: %s", ErrChunkMissing, u.chunkKey(i))
			}
			chunks[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return chunker.Join(chunks), nil
}

// Set writes the chunks one at a time in index order and publishes the
// chunk count only after all of them succeeded.
func (u *Upstash) Set(ctx context.Context, value string) error {
	chunks := chunker.SplitUTF8(value, u.chunkSize)
	if len(chunks) > maxChunkCount {
		return fmt.Errorf("%w: value needs %d chunks", ErrChunkCount, len(chunks))
	}
	for i, c := range chunks {
		if err := u.redisSet(ctx, u.chunkKey(i), c); err != nil {
			return fmt.Errorf("write chunk %d: %w", i, err)
		}
	}
	if err := u.redisSet(ctx, u.chunkCountKey(), strconv.Itoa(len(chunks))); err != nil {
		return fmt.Errorf("write chunk count: %w", err)
	}
	u.log.Debug("stored value", zap.Int("chunks", len(chunks)), zap.Int("bytes", len(value)))
	return nil
}

// DropAll deletes every key under the store key prefix and returns how many
// deletes succeeded. Individual delete failures are logged, not returned.
func (u *Upstash) DropAll(ctx context.Context) (int, error) {
	keys, err := u.redisKeys(ctx, u.storeKey+"*")
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}

	var deleted atomic.Int64
	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := u.redisDel(ctx, key); err != nil {
				u.log.Warn("failed to delete key", zap.String("key", key), zap.Error(err))
				return nil
			}
			deleted.Add(1)
			return nil
		})
	}
	g.Wait()

	u.log.Info("dropped keys", zap.Int("matched", len(keys)), zap.Int64("deleted", deleted.Load()))
	return int(deleted.Load()), nil
}

type redisResult struct {
	Result json.RawMessage `json:"result"`
}

// redisGet returns the string stored at key. ok is false when the key does
// not exist.
func (u *Upstash) redisGet(ctx context.Context, key string) (string, bool, error) {
	req, err := u.newRequest(ctx, http.MethodGet, "get/"+url.PathEscape(key), "")
	if err != nil {
		return "", false, err
	}
	status, body, err := do(u.http, req, http.StatusOK)
	u.log.Debug("get key", zap.String("key", key), zap.Int("status", status))
	if err != nil {
		return "", false, err
	}

	var res redisResult
	if err := json.Unmarshal(body, &res); err != nil {
		return "", false, fmt.Errorf("%w: decode get %s: %v", ErrTransport, key, err)
	}
	if len(res.Result) == 0 || string(res.Result) == "null" {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(res.Result, &s); err != nil {
		// Integers come back unquoted from some clients; keep their text.
		return string(res.Result), true, nil
	}
	return s, true, nil
}

func (u *Upstash) redisSet(ctx context.Context, key, value string) error {
	req, err := u.newRequest(ctx, http.MethodPost, "set/"+url.PathEscape(key), value)
	if err != nil {
		return err
	}
	status, _, err := do(u.http, req, http.StatusOK)
	u.log.Debug("set key", zap.String("key", key), zap.Int("status", status))
	return err
}

func (u *Upstash) redisKeys(ctx context.Context, pattern string) ([]string, error) {
	req, err := u.newRequest(ctx, http.MethodGet, "keys/"+url.PathEscape(pattern), "")
	if err != nil {
		return nil, err
	}
	_, body, err := do(u.http, req, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var res struct {
		Result []string `json:"result"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: decode keys: %v", ErrTransport, err)
	}
	return res.Result, nil
}

func (u *Upstash) redisDel(ctx context.Context, key string) error {
	req, err := u.newRequest(ctx, http.MethodPost, "del/"+url.PathEscape(key), "")
	if err != nil {
		return err
	}
	_, _, err = do(u.http, req, http.StatusOK)
	return err
}

func (u *Upstash) newRequest(ctx context.Context, method, path, body string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, joinURL(u.endpoint, path), strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.apiKey)
	return req, nil
}
