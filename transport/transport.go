// Package transport holds the HTTP plumbing shared by the agent and gallery
// clients: URL joining, per-request headers and verbose wire logging.
package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader is set on every outgoing request.
const RequestIDHeader = "X-Request-ID"

// Options configures the *http.Client built by New.
type Options struct {
	// Timeout of 0 means no timeout.
	Timeout time.Duration
	Headers map[string]string
	Verbose bool
	Logger  *log.Logger
	// Base is the underlying RoundTripper, http.DefaultTransport when nil.
	Base http.RoundTripper
}

// New builds a client that stamps request ids and configured headers and,
// when Verbose is set, dumps requests and responses.
func New(opts Options) *http.Client {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if opts.Verbose {
		logger := opts.Logger
		if logger == nil {
			logger = log.Default()
		}
		base = &loggingTransport{next: base, logger: logger}
	}
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &headerTransport{
			next:    base,
			headers: opts.Headers,
		},
	}
}

// JoinURL resolves rel against base, keeping any path prefix of base.
// Absolute rel URLs are returned as-is.
func JoinURL(base, rel string) (string, error) {
	baseURL, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return "", err
	}

	relURL, err := url.Parse(rel)
	if err != nil {
		return "", err
	}

	if relURL.Scheme != "" && relURL.Host != "" {
		return rel, nil
	}

	result := &url.URL{
		Scheme:   baseURL.Scheme,
		User:     baseURL.User,
		Host:     baseURL.Host,
		Path:     path.Join("/", baseURL.Path, relURL.Path),
		RawQuery: relURL.RawQuery,
	}

	return result.String(), nil
}

type headerTransport struct {
	next    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return t.next.RoundTrip(req)
}

type loggingTransport struct {
	next   http.RoundTripper
	logger *log.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.logger.Printf(">>> %s %s %s", req.Method, req.URL, req.Proto)
	for k, v := range req.Header {
		t.logger.Printf(">>> %s: %s", k, v)
	}

	if req.Body != nil {
		reqBody, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewBuffer(reqBody))
		t.logger.Printf(">>> %s", prettyBody(reqBody))
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Printf("<<< error: %v", err)
		return nil, err
	}

	t.logger.Printf("<<< %s %s", resp.Proto, resp.Status)
	for k, v := range resp.Header {
		t.logger.Printf("<<< %s: %s", k, v)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewBuffer(respBody))
	t.logger.Printf("<<< %s", prettyBody(respBody))

	return resp, nil
}

func prettyBody(body []byte) []byte {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return body
	}
	return out
}
