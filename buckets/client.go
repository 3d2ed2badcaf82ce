// Package buckets is a client for a hierarchical object-storage
// "buckets" API: create/inspect/delete buckets, stream-list buckets and
// objects, and upload/download objects with user-defined metadata.
//
// The client is stateless between calls and safe for concurrent use;
// the only shared resource is the Transport's connection pool. It
// performs no retries; retry policy belongs to the Transport layer.
//
// Usage:
//
//	cfg := buckets.DefaultConfig("https://storage.example.com", "myaccount")
//	client, err := buckets.New(cfg)
//	if err != nil { ... }
//	defer client.Close()
//
//	err = client.CreateBucket(ctx, "b1")
package buckets

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aripsetiawan24/manta-buckets-go/internal/logger"
	"github.com/aripsetiawan24/manta-buckets-go/internal/metrics"
)

// Transport performs one authenticated HTTP exchange. Any *http.Client
// satisfies it; the transport package provides the signing adapter the
// service expects. Authentication, pooling, timeouts, and retries all
// live behind this boundary.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// idleCloser is implemented by transports that pool connections.
type idleCloser interface {
	CloseIdleConnections()
}

// Config holds all settings needed to construct a Client.
type Config struct {
	// URL is the service base URL, e.g. "https://storage.example.com".
	URL string

	// Account is the account (login) name owning the buckets.
	Account string

	// Transport performs the HTTP exchanges. http.DefaultClient is
	// used when nil.
	Transport Transport
}

// DefaultConfig returns a Config using http.DefaultClient.
func DefaultConfig(rawURL, account string) *Config {
	return &Config{
		URL:     rawURL,
		Account: account,
	}
}

// Client is a handle on the buckets API. Create one per service
// endpoint, share it across goroutines, and Close it when done to
// release pooled connections. Multiple independent Clients may coexist.
type Client struct {
	cfg       *Config
	base      *url.URL
	transport Transport
	closed    atomic.Bool
}

// New validates cfg and returns a Client. No network activity happens
// until the first call.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, newError(ErrKindInvalidArgument, opNone, "service URL must not be empty")
	}
	if cfg.Account == "" {
		return nil, newError(ErrKindInvalidArgument, opNone, "account name must not be empty")
	}
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, wrapError(ErrKindInvalidArgument, opNone, "malformed service URL", err)
	}
	t := cfg.Transport
	if t == nil {
		t = http.DefaultClient
	}
	return &Client{cfg: cfg, base: base, transport: t}, nil
}

// Close marks the client closed and releases the transport's pooled
// connections. Every call after Close fails fast with a client-closed
// error and never touches the network. Close is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if ic, ok := c.transport.(idleCloser); ok {
		ic.CloseIdleConnections()
	}
	return nil
}

// --- Bucket operations ---

// CreateBucket creates the named bucket.
func (c *Client) CreateBucket(ctx context.Context, bucket string) error {
	path, err := c.bucketPath(OpCreateBucket, bucket)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, OpCreateBucket, http.MethodPut, path, nil, nil, nil, 0)
	if err != nil {
		return err
	}
	return c.finish(OpCreateBucket, resp)
}

// HeadBucket checks that the named bucket exists. A missing bucket is
// reported as a not-found error.
func (c *Client) HeadBucket(ctx context.Context, bucket string) error {
	path, err := c.bucketPath(OpHeadBucket, bucket)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, OpHeadBucket, http.MethodHead, path, nil, nil, nil, 0)
	if err != nil {
		return err
	}
	return c.finish(OpHeadBucket, resp)
}

// DeleteBucket removes the named bucket. The service rejects deletion
// of a non-empty bucket; a missing bucket is a not-found error.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	path, err := c.bucketPath(OpDeleteBucket, bucket)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, OpDeleteBucket, http.MethodDelete, path, nil, nil, nil, 0)
	if err != nil {
		return err
	}
	return c.finish(OpDeleteBucket, resp)
}

// ListBuckets opens a streaming listing of the account's buckets.
// The caller must drain or Close the returned stream.
func (c *Client) ListBuckets(ctx context.Context, opts ListOptions) (*BucketStream, error) {
	path, err := c.bucketsPath(OpListBuckets)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, OpListBuckets, http.MethodGet, path, opts.query(), nil, nil, 0)
	if err != nil {
		return nil, err
	}
	if err := c.checkStatus(OpListBuckets, resp); err != nil {
		return nil, err
	}
	return newStream[BucketEntry](OpListBuckets, "bucket", resp.Body), nil
}

// IsSupported probes whether the service offers the buckets API.
// A 404 or 405 answer means "not supported", not an error.
func (c *Client) IsSupported(ctx context.Context) (bool, error) {
	path, err := c.bucketsPath(OpIsSupported)
	if err != nil {
		return false, err
	}
	resp, err := c.do(ctx, OpIsSupported, http.MethodOptions, path, nil, nil, nil, 0)
	if err != nil {
		return false, err
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		drain(resp)
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed:
		drain(resp)
		return false, nil
	default:
		return false, c.checkStatus(OpIsSupported, resp)
	}
}

// --- Request plumbing ---

// maxErrorBody bounds how much of an error response body is retained.
const maxErrorBody = 1 << 20

// do builds and performs one HTTP exchange. It fails fast after Close,
// maps transport failures to the error taxonomy, and leaves status
// interpretation to the caller. body may be nil for body-less requests.
func (c *Client) do(ctx context.Context, op Op, method, path string, q url.Values, hdr http.Header, body io.Reader, contentLength int64) (*http.Response, error) {
	if c.closed.Load() {
		return nil, newError(ErrKindClientClosed, op, "client is closed")
	}

	// path is already escaped segment by segment; splicing it onto the
	// base keeps %2F inside object names intact on the wire.
	endpoint := strings.TrimSuffix(c.base.String(), "/") + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var pr *payloadReader
	if body != nil {
		pr = &payloadReader{r: body}
		body = pr
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, wrapError(ErrKindInvalidArgument, op, "building request failed", err)
	}
	if body != nil && contentLength > 0 {
		req.ContentLength = contentLength
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	log := logger.FromContext(ctx)
	start := time.Now()
	resp, err := c.transport.Do(req)
	if err != nil {
		metrics.ObserveRequest(op.String(), 0, time.Since(start))
		if pr != nil && pr.err != nil {
			// The local payload source failed; the transport aborted
			// the request rather than send a truncated body.
			return nil, wrapError(ErrKindPayloadStream, op, "payload source failed mid-transfer", pr.err)
		}
		log.With().Str("method", method).Str("path", path).Err(err).Logger().Debug("request failed")
		return nil, wrapError(ErrKindTransport, op, "request failed", err)
	}
	metrics.ObserveRequest(op.String(), resp.StatusCode, time.Since(start))
	log.With().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Logger().Debug("request completed")
	return resp, nil
}

// checkStatus maps a non-2xx response to an error, consuming and
// closing the body. On success the body is left open for the caller.
func (c *Client) checkStatus(op Op, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var raw []byte
	if resp.Body != nil {
		raw, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
	}

	kind := ErrKindHTTPStatus
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		kind = ErrKindNotFound
	}

	var svc serviceError
	if len(raw) > 0 && strings.Contains(resp.Header.Get("Content-Type"), "json") {
		json.Unmarshal(bytes.TrimSpace(raw), &svc) //nolint:errcheck
	}
	msg := svc.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &Error{
		Kind:       kind,
		Op:         op,
		Message:    msg,
		StatusCode: resp.StatusCode,
		Code:       svc.Code,
		Body:       raw,
	}
}

// finish consumes a response that carries no payload the caller wants:
// it checks the status, then drains and closes the body so the
// connection can be reused.
func (c *Client) finish(op Op, resp *http.Response) error {
	if err := c.checkStatus(op, resp); err != nil {
		return err
	}
	drain(resp)
	return nil
}

// drain discards any unread body and closes it.
func drain(resp *http.Response) {
	if resp.Body != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck
		resp.Body.Close()
	}
}

// serviceError is the JSON error envelope the service answers with.
type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
