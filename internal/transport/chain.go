package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/tempmail/internal/logging"
)

// DefaultTimeout bounds a single attempt through one proxy prefix.
const DefaultTimeout = 5 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

var (
	// ErrUnavailable is matched by every Failure: no prefix produced data.
	ErrUnavailable = errors.New("no data available")

	// ErrTimeout marks an attempt that hit its per-request deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrMalformed marks an attempt whose body was not the expected JSON.
	ErrMalformed = errors.New("malformed response")
)

// StatusError is a non-2xx response from one attempt.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, body)
}

// Failure is returned when every prefix of the chain failed. Attempts
// holds one error per prefix, in the order they were tried.
type Failure struct {
	Method   string
	Target   string
	Attempts []error
}

func (f *Failure) Error() string {
	parts := make([]string, len(f.Attempts))
	for i, err := range f.Attempts {
		parts[i] = err.Error()
	}
	return fmt.Sprintf(
		"%s %s: all %d attempts failed: %s",
		f.Method, f.Target, len(f.Attempts), strings.Join(parts, "; "),
	)
}

// Unwrap exposes ErrUnavailable and every attempt error to errors.Is/As.
func (f *Failure) Unwrap() []error {
	return append([]error{ErrUnavailable}, f.Attempts...)
}

// LastStatus returns the status code of the last attempt that received
// an HTTP response, or 0 when none did.
func (f *Failure) LastStatus() int {
	for i := len(f.Attempts) - 1; i >= 0; i-- {
		var se *StatusError
		if errors.As(f.Attempts[i], &se) {
			return se.Code
		}
	}
	return 0
}

// HasStatus reports whether any attempt received one of the given codes.
func (f *Failure) HasStatus(codes ...int) bool {
	for _, err := range f.Attempts {
		var se *StatusError
		if !errors.As(err, &se) {
			continue
		}
		for _, c := range codes {
			if se.Code == c {
				return true
			}
		}
	}
	return false
}

// StatusOf returns the last HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var f *Failure
	if errors.As(err, &f) {
		return f.LastStatus()
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Request describes one logical call. Body, when set, is sent as JSON.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   interface{}
}

// Chain issues requests directly or through an ordered list of relay
// proxy prefixes, falling through to the next prefix on any failure.
type Chain struct {
	proxies    []string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Chain) { ch.httpClient = c }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(ch *Chain) {
		if d > 0 {
			ch.timeout = d
		}
	}
}

// WithLogger sets the logger used for attempt diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(ch *Chain) { ch.logger = logging.OrNop(l) }
}

// New creates a Chain. An empty proxies list calls targets directly.
func New(proxies []string, opts ...Option) *Chain {
	c := &Chain{
		proxies:    append([]string(nil), proxies...),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Proxies returns the configured prefixes.
func (c *Chain) Proxies() []string {
	return append([]string(nil), c.proxies...)
}

// Get performs a GET and decodes the JSON response into result.
func (c *Chain) Get(
	ctx context.Context,
	target string,
	header http.Header,
	result interface{},
) error {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: target, Header: header}, result)
}

// Post performs a POST with a JSON body and decodes the JSON response.
func (c *Chain) Post(
	ctx context.Context,
	target string,
	header http.Header,
	body interface{},
	result interface{},
) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    target,
		Header: header,
		Body:   body,
	}, result)
}

// Delete performs a DELETE, ignoring any response body.
func (c *Chain) Delete(ctx context.Context, target string, header http.Header) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, URL: target, Header: header}, nil)
}

// Do tries each prefix in order and returns on the first attempt that
// yields a 2xx response whose body decodes into result. When every prefix
// fails it returns a *Failure; result is left untouched in that case.
func (c *Chain) Do(ctx context.Context, req Request, result interface{}) error {
	var payload []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	prefixes := c.proxies
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}

	failure := &Failure{Method: req.Method, Target: req.URL}
	for _, prefix := range prefixes {
		if err := ctx.Err(); err != nil {
			failure.Attempts = append(failure.Attempts, err)
			break
		}

		err := c.attempt(ctx, prefix, req, payload, result)
		if err == nil {
			return nil
		}

		c.logger.Debug("transport attempt failed",
			zap.String("method", req.Method),
			zap.String("target", req.URL),
			zap.String("proxy", prefix),
			zap.Error(err),
		)
		failure.Attempts = append(failure.Attempts, err)
	}

	c.logger.Warn("transport exhausted",
		zap.String("method", req.Method),
		zap.String("target", req.URL),
		zap.Int("attempts", len(failure.Attempts)),
	)
	return failure
}

// attempt performs one request through one prefix under its own deadline.
func (c *Chain) attempt(
	parent context.Context,
	prefix string,
	req Request,
	payload []byte,
	result interface{},
) error {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	target := req.URL
	if prefix != "" {
		target = prefix + url.QueryEscape(req.URL)
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
			return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w reading body", ErrTimeout)
		}
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	if result == nil {
		return nil
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return fmt.Errorf("%w: empty body with status %d", ErrMalformed, resp.StatusCode)
	}

	return decodeInto(respBody, result)
}

// decodeInto unmarshals into a fresh value and only assigns it to result
// on success, so a failed attempt never leaves partial data behind.
func decodeInto(data []byte, result interface{}) error {
	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", result)
	}

	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}
