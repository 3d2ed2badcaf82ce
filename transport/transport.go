// Package transport is the authenticated-HTTP adapter the buckets
// client calls through. It owns everything the client core deliberately
// does not: connection pooling, HTTP-Signature authentication, request
// identifiers, and opt-in retry of transient failures.
//
// Usage:
//
//	signer, err := transport.LoadKeySigner("~/.ssh/id_rsa")
//	if err != nil { ... }
//
//	cfg := transport.DefaultConfig()
//	cfg.KeyID = "/myaccount/keys/aa:bb:cc"
//	cfg.Signer = signer
//
//	client, err := buckets.New(&buckets.Config{
//	    URL:       "https://storage.example.com",
//	    Account:   "myaccount",
//	    Transport: transport.New(cfg),
//	})
package transport

import (
	"crypto/tls"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/xid"
)

// userAgent identifies this client on the wire.
const userAgent = "manta-buckets-go/1.0"

// Config holds all settings for the transport.
type Config struct {
	// KeyID identifies the public key registered with the service,
	// e.g. "/myaccount/keys/<fingerprint>".
	KeyID string

	// Signer signs the date header of every request. When nil,
	// requests go out unsigned (useful against local test services).
	Signer *KeySigner

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// HTTPClient performs the exchanges. A pooled client is built
	// from the remaining fields when nil.
	HTTPClient *http.Client

	// InsecureSkipVerify disables TLS certificate verification.
	// Development use only.
	InsecureSkipVerify bool

	// Retry enables bounded exponential-backoff retry of transient
	// failures. Nil means no retries.
	Retry *RetryConfig
}

// RetryConfig bounds the retry loop. Only replayable requests (no body
// or GetBody set) are ever retried.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int

	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration

	// Multiplier grows the delay after each attempt.
	Multiplier float64

	// Jitter randomizes each delay by ±50% to avoid thundering herds.
	Jitter bool
}

// DefaultRetryConfig returns three retries starting at 500ms.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
	}
}

// DefaultConfig returns an unauthenticated transport config with
// pooling and no retries.
func DefaultConfig() *Config {
	return &Config{}
}

// Transport wraps *http.Client with per-request Date, User-Agent, and
// X-Request-Id headers plus HTTP-Signature authentication. It is safe
// for concurrent use and satisfies the buckets.Transport interface.
type Transport struct {
	cfg    *Config
	client *http.Client
}

// New builds a Transport from cfg, falling back to DefaultConfig when
// nil.
func New(cfg *Config) *Transport {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	client := cfg.HTTPClient
	if client == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.MaxIdleConnsPerHost = 16
		if cfg.InsecureSkipVerify {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		client = &http.Client{Transport: tr}
	}
	return &Transport{cfg: cfg, client: client}
}

// Do performs one exchange, signing and decorating the request first.
// Transient failures are retried per the configured policy; requests
// whose body cannot be replayed are never retried.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	if err := t.decorate(req); err != nil {
		return nil, err
	}

	retry := t.cfg.Retry
	if retry == nil || retry.MaxRetries <= 0 || !replayable(req) {
		return t.client.Do(req)
	}

	interval := retry.InitialInterval
	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if req.Body != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, lastErr
				}
				req.Body = body
			}
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff(interval, retry)):
			}
			interval = nextInterval(interval, retry)
		}

		resp, err := t.client.Do(req)
		if err == nil && !transientStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt == retry.MaxRetries {
			return resp, err
		}
		if err != nil {
			lastErr = err
			continue
		}
		// Transient status: discard this response and try again.
		resp.Body.Close()
		lastErr = fmt.Errorf("transient status %d", resp.StatusCode)
	}
}

// CloseIdleConnections releases the connection pool. buckets.Client
// calls this from Close.
func (t *Transport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}

// decorate attaches the ambient headers and, when a signer is
// configured, the Authorization signature over the date header.
func (t *Transport) decorate(req *http.Request) error {
	date := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set("Date", date)
	req.Header.Set("X-Request-Id", xid.New().String())

	ua := t.cfg.UserAgent
	if ua == "" {
		ua = userAgent
	}
	req.Header.Set("User-Agent", ua)

	if t.cfg.Signer == nil {
		return nil
	}
	sig, err := t.cfg.Signer.Sign([]byte("date: " + date))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf(
		"Signature keyId=%q,algorithm=%q,headers=%q,signature=%q",
		t.cfg.KeyID, t.cfg.Signer.Algorithm(), "date", sig))
	return nil
}

// replayable reports whether req can safely be sent more than once.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.GetBody != nil
}

// transientStatus reports whether a status is worth retrying.
func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func backoff(interval time.Duration, cfg *RetryConfig) time.Duration {
	if !cfg.Jitter {
		return interval
	}
	half := interval / 2
	return half + time.Duration(rand.Int63n(int64(interval)+1))
}

func nextInterval(interval time.Duration, cfg *RetryConfig) time.Duration {
	next := time.Duration(float64(interval) * cfg.Multiplier)
	if cfg.MaxInterval > 0 && next > cfg.MaxInterval {
		next = cfg.MaxInterval
	}
	return next
}
